package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

type Options struct {
	JSON    bool
	Plain   bool
	Quiet   bool
	Verbose bool
	NoColor bool

	Stdout io.Writer
	Stderr io.Writer
}

// Output prints user-facing messages. It satisfies the dispatcher's notifier.
type Output struct {
	JSON    bool
	Plain   bool
	Quiet   bool
	Verbose bool

	stdout io.Writer
	stderr io.Writer

	green  *color.Color
	yellow *color.Color
	red    *color.Color
	gray   *color.Color
	bold   *color.Color
}

func New(opts Options) *Output {
	if opts.NoColor || opts.Plain {
		color.NoColor = true
	}
	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &Output{
		JSON:    opts.JSON,
		Plain:   opts.Plain,
		Quiet:   opts.Quiet,
		Verbose: opts.Verbose,
		stdout:  stdout,
		stderr:  stderr,
		green:   color.New(color.FgGreen),
		yellow:  color.New(color.FgYellow),
		red:     color.New(color.FgRed),
		gray:    color.New(color.FgHiBlack),
		bold:    color.New(color.Bold),
	}
}

func (o *Output) Green(s string) string {
	return o.green.Sprint(s)
}

func (o *Output) Yellow(s string) string {
	return o.yellow.Sprint(s)
}

func (o *Output) Red(s string) string {
	return o.red.Sprint(s)
}

func (o *Output) Gray(s string) string {
	return o.gray.Sprint(s)
}

func (o *Output) Bold(s string) string {
	return o.bold.Sprint(s)
}

func (o *Output) Info(msg string) {
	if o.JSON || o.Quiet {
		return
	}
	fmt.Fprintln(o.stdout, msg)
}

func (o *Output) Success(msg string) {
	if o.JSON || o.Quiet {
		return
	}
	fmt.Fprintln(o.stdout, o.Green(msg))
}

// Warn goes to stderr in JSON mode so it never corrupts the document.
func (o *Output) Warn(msg string) {
	if o.Quiet {
		return
	}
	if o.JSON {
		fmt.Fprintln(o.stderr, msg)
		return
	}
	fmt.Fprintln(o.stdout, o.Yellow(msg))
}

func (o *Output) Debug(msg string) {
	if o.JSON || !o.Verbose {
		return
	}
	fmt.Fprintln(o.stderr, o.Gray(msg))
}

func (o *Output) Error(msg string) {
	fmt.Fprintln(o.stderr, o.Red(msg))
}

func (o *Output) Print(msg string) {
	if o.JSON || o.Quiet {
		return
	}
	fmt.Fprintln(o.stdout, msg)
}

func (o *Output) Write(msg string) {
	if o.JSON || o.Quiet {
		return
	}
	fmt.Fprint(o.stdout, msg)
}

func (o *Output) EmitJSON(v any) error {
	enc := json.NewEncoder(o.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Table prints tab-aligned rows under a header. Plain mode drops the header.
func (o *Output) Table(header []string, rows [][]string) error {
	if o.JSON || o.Quiet {
		return nil
	}
	w := tabwriter.NewWriter(o.stdout, 0, 0, 2, ' ', 0)
	if !o.Plain && len(header) > 0 {
		fmt.Fprintln(w, strings.Join(header, "\t"))
	}
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}
