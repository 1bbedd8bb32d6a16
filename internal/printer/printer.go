// Package printer provides consistent colored CLI output for volley commands.
package printer

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

func init() {
	// Force color output even when not connected to a TTY.
	// Users can disable with the NO_COLOR environment variable.
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green = color.New(color.FgGreen)
	red   = color.New(color.FgRed, color.Bold)
	cyan  = color.New(color.FgCyan)
)

// Success prints a success message in green with a checkmark prefix.
func Success(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		msg = "✓ " + msg
	}
	green.Print(msg)
}

// Info prints an informational message in the default color.
func Info(format string, a ...any) {
	fmt.Printf(format, a...)
}

// Step prints a step message with emphasis (used in multi-step operations).
func Step(format string, a ...any) {
	cyan.Printf("→ %s", fmt.Sprintf(format, a...))
}

// Error prints a formatted error with optional suggestions to stderr and
// returns a simple error for Cobra (which won't re-print it thanks to
// SilenceErrors).
func Error(title string, explanation string, suggestions []string) error {
	red.Fprintf(os.Stderr, "%s\n", title)

	if explanation != "" {
		fmt.Fprintf(os.Stderr, "\n%s\n", explanation)
	}

	for _, suggestion := range suggestions {
		fmt.Fprintf(os.Stderr, "\n%s\n", suggestion)
	}

	return fmt.Errorf("%s", title)
}

// Printf prints a plain formatted message.
func Printf(format string, a ...any) {
	fmt.Printf(format, a...)
}

// Println prints a plain message.
func Println(a ...any) {
	fmt.Println(a...)
}
