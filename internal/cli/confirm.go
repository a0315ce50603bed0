package cli

import (
	"bufio"
	"fmt"
	"strings"
)

// confirm asks a yes/no question on the terminal. --yes skips it; without a
// terminal, or with --no-input, --yes is required.
func (a *app) confirm(question string, yes bool) (bool, error) {
	if yes {
		return true, nil
	}
	if a.flags.noInput {
		return false, UsageError{Msg: "confirmation required: pass --yes when --no-input is set"}
	}
	if !a.isTTY() {
		return false, UsageError{Msg: "confirmation required: pass --yes when stdin is not a terminal"}
	}
	fmt.Fprintf(a.stderr, "%s [s/N]: ", question)
	line, err := bufio.NewReader(a.stdin).ReadString('\n')
	if err != nil && line == "" {
		return false, nil
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "s", "si", "sí", "y", "yes":
		return true, nil
	}
	return false, nil
}
