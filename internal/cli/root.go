// Package cli wires the build engine's packages into cobra subtools:
// build, clean, graph, query, targets.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Exit codes, matching the engine's own failure taxonomy rather than a
// single pass/fail bit.
const (
	ExitSuccess           = 0
	ExitBuildFailure      = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

// ExitError carries a specific process exit code alongside a message.
type ExitError struct {
	Code int
	Msg  string
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ExitError) Unwrap() error { return e.Err }

func wrapExit(code int, msg string, err error) *ExitError {
	return &ExitError{Code: code, Msg: msg, Err: err}
}

// RootOptions holds flags shared by every subcommand.
type RootOptions struct {
	ManifestPath string
	Verbose      bool
}

// NewRootCommand builds the "forge" root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "forge",
		Short:         "An incremental build executor",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ManifestPath, "manifest", "f", "build.forge", "path to the build manifest")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "print commands as they run")

	cmd.AddCommand(newBuildCommand(opts))
	cmd.AddCommand(newCleanCommand(opts))
	cmd.AddCommand(newGraphCommand(opts))
	cmd.AddCommand(newQueryCommand(opts))
	cmd.AddCommand(newTargetsCommand(opts))

	return cmd
}

// ExitCodeOf extracts a process exit code from err, defaulting to
// ExitInternalError for anything not already classified.
func ExitCodeOf(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if ee, ok := err.(*ExitError); ok {
		return ee.Code
	}
	return ExitInternalError
}
