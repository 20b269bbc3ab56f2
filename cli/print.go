package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// printf prints a line to w.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// infof prints a green line to w.
func infof(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	color.New(color.FgGreen).Fprintf(w, format+"\n", a...)
}

// warningf prints a yellow warning line to w.
func warningf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	color.New(color.FgYellow, color.Bold).Fprint(w, "Warning: ")
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// headerf prints a bold cyan heading to w.
func headerf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	color.New(color.FgCyan, color.Bold).Fprintf(w, format+"\n", a...)
}
