// ngxconf renders nginx configuration files from structured data.
package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/thirteen37/ngxconf/internal/cmd"
	"github.com/thirteen37/ngxconf/internal/preserve"
	"github.com/thirteen37/ngxconf/internal/render"
	"github.com/thirteen37/ngxconf/internal/script"
)

func main() {
	// Interpreter mode: argv[0] = interpreter, argv[1] = script path
	if len(os.Args) == 2 && isScript(os.Args[1]) {
		if err := runAsInterpreter(os.Args[1], os.Stdin, os.Stdout, os.Stderr); err != nil {
			fmt.Fprintf(os.Stderr, "ngxconf: %v\n", err)
			os.Exit(cmd.ExitCode(err))
		}
		return
	}

	os.Exit(cmd.Execute(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// isScript reports whether filename names a regular file starting with "#!".
func isScript(filename string) bool {
	f, err := os.Open(filename)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, 2)
	if _, err := io.ReadFull(f, head); err != nil {
		return false
	}
	return bytes.Equal(head, []byte("#!"))
}

// runAsInterpreter renders a script. When the current configuration is
// piped in, its marked hand-edited regions are kept in the output.
func runAsInterpreter(scriptPath string, stdin io.Reader, stdout, stderr io.Writer) error {
	s, err := script.ParseFile(scriptPath)
	if err != nil {
		return &render.UserError{Err: errors.Wrapf(err, "failed to parse script")}
	}

	logger := logrus.New()
	logger.SetOutput(stderr)
	logger.SetLevel(logrus.WarnLevel)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	out, err := render.RenderScript(s, render.Options{}, logger)
	if err != nil {
		return err
	}

	current, err := readCurrent(stdin)
	if err != nil {
		return errors.Wrapf(err, "failed to read stdin")
	}
	if current != "" {
		out = preserve.Apply(out+"\n", current)
	}
	return render.WriteOutput("", out, false, stdout)
}

// readCurrent reads the current file from stdin unless stdin is a terminal.
func readCurrent(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok {
		if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
			return "", nil
		}
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
