// Package printer writes colored status lines for the lotdesk CLI.
package printer

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

// Printer sends normal output to Out and failures to Err.
type Printer struct {
	Out io.Writer
	Err io.Writer
}

func New(out, errOut io.Writer) *Printer {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	return &Printer{Out: out, Err: errOut}
}

func (p *Printer) Success(format string, a ...any) {
	_, _ = green.Fprintf(p.Out, "✓ %s\n", fmt.Sprintf(format, a...))
}

func (p *Printer) Warning(format string, a ...any) {
	_, _ = yellow.Fprintf(p.Out, "! %s\n", fmt.Sprintf(format, a...))
}

func (p *Printer) Step(format string, a ...any) {
	_, _ = cyan.Fprintf(p.Out, "→ %s\n", fmt.Sprintf(format, a...))
}

func (p *Printer) Info(format string, a ...any) {
	_, _ = fmt.Fprintf(p.Out, format+"\n", a...)
}

// Error prints title in red with an explanation and numbered suggestions,
// then returns title as an error for cobra to exit with.
func (p *Printer) Error(title, explanation string, suggestions ...string) error {
	_, _ = red.Fprintf(p.Err, "%s\n", title)
	if explanation != "" {
		_, _ = fmt.Fprintf(p.Err, "\n%s\n", explanation)
	}
	switch len(suggestions) {
	case 0:
	case 1:
		_, _ = fmt.Fprintf(p.Err, "\n%s\n", suggestions[0])
	default:
		_, _ = fmt.Fprintln(p.Err, "\nIntente:")
		for i, s := range suggestions {
			_, _ = fmt.Fprintf(p.Err, "  %d. %s\n", i+1, s)
		}
	}
	return fmt.Errorf("%s", title)
}
