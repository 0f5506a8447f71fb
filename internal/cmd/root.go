// Package cmd provides the CLI commands for ngxconf.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/thirteen37/ngxconf/internal/config"
	"github.com/thirteen37/ngxconf/internal/render"
)

// Exit codes.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitUserError = 10
)

type rootOpts struct {
	cfgFile  string
	debug    bool
	logLevel string
}

const longRootCmdDescription = `ngxconf renders nginx configuration files from JSON, YAML, TOML and INI
trees. Objects become blocks, lists become repeated directives, and
the tool configuration (.ngxconf.yaml) adds rewrite rules applied on the way.

It can also run as a script interpreter: a file starting with
"#!/usr/bin/env ngxconf" renders its own body when executed.`

// NewRootCmd builds the command tree. Logs go to stderr.
func NewRootCmd() *cobra.Command {
	opts := &rootOpts{}
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	rootCmd := &cobra.Command{
		Use:           "ngxconf",
		Short:         "Render nginx configuration from structured data",
		Long:          longRootCmdDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.SetOutput(cmd.ErrOrStderr())
		},
	}
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &render.UserError{Err: err}
	})

	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "tool config file (default is ./.ngxconf.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "turn on debug logging")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")

	rootCmd.AddCommand(
		newRenderCmd(opts, logger),
		newInspectCmd(opts, logger),
		newConvertCmd(opts, logger),
		newInitCmd(opts, logger),
		newBlocksCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the root command with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	rootCmd := NewRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "ngxconf: %v\n", err)
	}
	return ExitCode(err)
}

// ExitCode maps an error to the process exit code: 10 for errors caused by
// the input or the invocation, 1 for anything else.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case render.IsUserError(err):
		return ExitUserError
	default:
		return ExitFailure
	}
}

// loadConfig reads the tool configuration, with the flags of cmd that were
// set overriding it, and applies the log level to logger.
func loadConfig(cmd *cobra.Command, opts *rootOpts, logger *logrus.Logger) (*config.Config, error) {
	cfg, err := config.LoadWithFlags(opts.cfgFile, "", cmd.Flags())
	if err != nil {
		return nil, &render.UserError{Err: err}
	}

	level := logrus.InfoLevel
	if cfg.LogLevel != "" {
		if level, err = logrus.ParseLevel(cfg.LogLevel); err != nil {
			return nil, &render.UserError{Err: errors.Wrapf(err, "invalid log level")}
		}
	}
	if opts.debug {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	if cfg.File() != "" {
		logger.WithField("file", cfg.File()).Debug("loaded tool config")
	}
	return cfg, nil
}

// userArgs marks argument validation failures as user errors.
func userArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return &render.UserError{Err: err}
		}
		return nil
	}
}
