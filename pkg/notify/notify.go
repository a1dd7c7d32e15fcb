// Package notify prints styled, user-facing progress messages. Logs go
// through pkg/logger; notify is for the lines a person is meant to read.
package notify

import (
	"fmt"
	"io"
	"os"
	"strings"

	fcolor "github.com/fatih/color"
	"golang.org/x/term"
)

// MessageType selects the symbol and color of a message.
type MessageType int

const (
	ErrorType MessageType = iota
	WarningType
	ActivityType
	SuccessType
	InfoType
	TitleType
)

type style struct {
	symbol string
	attrs  []fcolor.Attribute
}

func styleOf(t MessageType) style {
	switch t {
	case ErrorType:
		return style{"✗ ", []fcolor.Attribute{fcolor.FgRed}}
	case WarningType:
		return style{"⚠ ", []fcolor.Attribute{fcolor.FgYellow}}
	case ActivityType:
		return style{"► ", []fcolor.Attribute{fcolor.Reset}}
	case SuccessType:
		return style{"✔ ", []fcolor.Attribute{fcolor.FgGreen}}
	case InfoType:
		return style{"ℹ ", []fcolor.Attribute{fcolor.FgBlue}}
	case TitleType:
		return style{"", []fcolor.Attribute{fcolor.Bold}}
	default:
		return style{"", []fcolor.Attribute{fcolor.Reset}}
	}
}

// Notifier writes messages to Out. Quiet drops everything below warnings.
type Notifier struct {
	Out   io.Writer
	Color bool
	Quiet bool
}

// New returns a Notifier for w with color enabled only on a terminal.
func New(w io.Writer, quiet, noColor bool) *Notifier {
	return &Notifier{Out: w, Quiet: quiet, Color: !noColor && ColorEnabled(w)}
}

// ColorEnabled reports whether w is a terminal and NO_COLOR is unset.
func ColorEnabled(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Write prints one message.
func (n *Notifier) Write(t MessageType, format string, args ...any) {
	if n == nil || n.Out == nil {
		return
	}
	if n.Quiet && t != ErrorType && t != WarningType {
		return
	}
	content := format
	if len(args) > 0 {
		content = fmt.Sprintf(format, args...)
	}
	st := styleOf(t)
	content = indent(content, st.symbol)

	c := fcolor.New(st.attrs...)
	if n.Color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	if _, err := c.Fprintf(n.Out, "%s%s\n", st.symbol, content); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "notify: failed to print message: %v\n", err)
	}
}

func (n *Notifier) Errorf(format string, args ...any)    { n.Write(ErrorType, format, args...) }
func (n *Notifier) Warnf(format string, args ...any)     { n.Write(WarningType, format, args...) }
func (n *Notifier) Activityf(format string, args ...any) { n.Write(ActivityType, format, args...) }
func (n *Notifier) Successf(format string, args ...any)  { n.Write(SuccessType, format, args...) }
func (n *Notifier) Infof(format string, args ...any)     { n.Write(InfoType, format, args...) }
func (n *Notifier) Titlef(format string, args ...any)    { n.Write(TitleType, format, args...) }

// Plain prints s without styling, honoring Quiet.
func (n *Notifier) Plain(s string) {
	if n == nil || n.Out == nil || n.Quiet {
		return
	}
	_, _ = fmt.Fprint(n.Out, s)
}

// indent aligns continuation lines under the first line's text.
func indent(content, symbol string) string {
	if symbol == "" || !strings.Contains(content, "\n") {
		return content
	}
	pad := strings.Repeat(" ", len([]rune(symbol)))
	lines := strings.Split(content, "\n")
	for i := 1; i < len(lines); i++ {
		if lines[i] != "" {
			lines[i] = pad + lines[i]
		}
	}
	return strings.Join(lines, "\n")
}
