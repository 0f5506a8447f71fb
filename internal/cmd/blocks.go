package cmd

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/thirteen37/ngxconf/internal/config"
	"github.com/thirteen37/ngxconf/internal/directive"
	"github.com/thirteen37/ngxconf/internal/render"
)

func newBlocksCmd(root *rootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blocks",
		Short: "Manage the blocks that take no parameter",
		Long: `Manage the blocks rendered without parameter, like http or events.

An object under such a block is its body rather than a map from parameters
to bodies. The built-in set covers main/http, main/events, main/stream,
main/mail and their server blocks; the tool config adds more under
blocks_without_param.`,
	}
	cmd.AddCommand(newBlocksListCmd(root), newBlocksAddCmd(root), newBlocksRemoveCmd(root))
	return cmd
}

// configFile returns the tool config file to edit: --config, the file found
// in the working directory, or a new .ngxconf.yaml.
func configFile(root *rootOpts) (*config.Config, string, error) {
	cfg, err := config.Load(root.cfgFile, "")
	if err != nil {
		return nil, "", &render.UserError{Err: err}
	}
	switch {
	case root.cfgFile != "":
		return cfg, root.cfgFile, nil
	case cfg.File() != "":
		return cfg, cfg.File(), nil
	default:
		return cfg, config.DefaultName + ".yaml", nil
	}
}

func newBlocksListCmd(root *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the blocks that take no parameter",
		Args:  userArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := configFile(root)
			if err != nil {
				return err
			}
			builtin := directive.DefaultBlocks()
			out := cmd.OutOrStdout()
			for _, p := range cfg.Blocks().Paths() {
				if builtin.Has(p) {
					fmt.Fprintf(out, "  %s (built-in)\n", p)
				} else {
					fmt.Fprintf(out, "  %s\n", p)
				}
			}
			return nil
		},
	}
}

func newBlocksAddCmd(root *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "add <path>",
		Short: "Add a block that takes no parameter",
		Long: `Add a block that takes no parameter to the tool config.

Arguments:
  path  Slash path of the block (e.g., main/http/upstream) or a JSON array`,
		Example: `  ngxconf blocks add main/http/types
  ngxconf blocks add '["main","stream","upstream"]'`,
		Args: userArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, file, err := configFile(root)
			if err != nil {
				return err
			}
			if directive.DefaultBlocks().Has(config.NormalizeBlock(args[0])) {
				fmt.Fprintf(cmd.OutOrStdout(), "Block %s is built in\n", args[0])
				return nil
			}
			if !cfg.AddBlock(args[0]) {
				fmt.Fprintf(cmd.OutOrStdout(), "Block %s already exists\n", args[0])
				return nil
			}
			if err := cfg.Save(file); err != nil {
				return errors.Wrapf(err, "failed to save %s", file)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added block %s\n", args[0])
			return nil
		},
	}
}

func newBlocksRemoveCmd(root *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <path>",
		Short: "Remove a block added to the tool config",
		Long: `Remove a block that takes no parameter from the tool config.
Built-in blocks cannot be removed.

Arguments:
  path  Slash path of the block (e.g., main/http/upstream) or a JSON array`,
		Example: `  ngxconf blocks remove main/http/types`,
		Args:    userArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, file, err := configFile(root)
			if err != nil {
				return err
			}
			if !cfg.RemoveBlock(args[0]) {
				if directive.DefaultBlocks().Has(config.NormalizeBlock(args[0])) {
					return &render.UserError{Err: errors.Errorf("block %s is built in and cannot be removed", args[0])}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Block %s not found\n", args[0])
				return nil
			}
			if err := cfg.Save(file); err != nil {
				return errors.Wrapf(err, "failed to save %s", file)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed block %s\n", args[0])
			return nil
		},
	}
}
