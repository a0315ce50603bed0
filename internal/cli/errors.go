package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// UsageError is a bad invocation; the caller exits with status 2.
type UsageError struct{ Msg string }

func (e UsageError) Error() string { return e.Msg }

// ErrReported means the failure was already shown to the user.
var ErrReported = errors.New("failure already reported")

func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return UsageError{Msg: fmt.Sprintf("%s: %v\nUsage: %s", cmd.CommandPath(), err, cmd.UseLine())}
		}
		return nil
	}
}

// asUsage maps cobra's own parse failures onto UsageError.
func asUsage(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, prefix := range []string{"unknown command", "required flag", "unknown flag", "unknown shorthand flag"} {
		if strings.HasPrefix(msg, prefix) {
			return UsageError{Msg: msg + "\n(run with --help for usage)"}
		}
	}
	return err
}
