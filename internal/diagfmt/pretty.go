package diagfmt

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"gfxprep/internal/diag"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
)

// Pretty форматирует диагностики в человекочитаемый вид.
// Идёт по bag.Items() (ожидается bag.Sort() заранее), по одной строке:
// <path>: <SEV> <CODE>: <Message>
// Диагностики ниже opts.MinSeverity пропускаются.
func Pretty(w io.Writer, bag *diag.Bag, opts PrettyOpts) error {
	if bag == nil {
		return nil
	}
	for _, d := range bag.Items() {
		if d.Severity < opts.MinSeverity {
			continue
		}
		sev := d.Severity.String()
		if opts.Color {
			sev = severityColor(d.Severity).Sprint(sev)
		}
		path := formatPath(d.Path, opts.PathMode, opts.BaseDir)
		if _, err := fmt.Fprintf(w, "%s: %s %s: %s\n", path, sev, d.Code.ID(), d.Message); err != nil {
			return err
		}
	}
	return nil
}

func severityColor(s diag.Severity) *color.Color {
	switch s {
	case diag.SevError:
		return errorColor
	case diag.SevWarning:
		return warningColor
	default:
		return infoColor
	}
}
