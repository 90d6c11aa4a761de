package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"go_irimager/core"
)

func main() {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, newApp(), os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the command line and maps the result to an exit code.
func execute(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	a.close()
	code := core.ExitCodeFor(err)
	if err != nil {
		printError(stderr, code, err)
	}
	return code
}

// printError writes the final error line: the exit code's name, the config
// error code when there is one, then the message.
func printError(w io.Writer, code int, err error) {
	if core.IsSignalExit(code) {
		color.New(color.FgYellow).Fprintf(w, "%s: %v\n", core.ExitCodeName(code), err)
		return
	}
	label := core.ExitCodeName(code)
	if ec := core.GetErrorCode(err); ec != "" {
		label += " " + ec
	}
	color.New(color.FgRed).Fprintf(w, "Error (%s): %v\n", label, err)
}
