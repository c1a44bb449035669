// Package printer renders styled console output.
package printer

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Style definitions for consistent console output across the application.
var (
	faintStyle   = lipgloss.NewStyle().Faint(true)
	boldStyle    = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")) // Green
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3")) // Yellow
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")) // Red
)

// Faint returns text with faint styling.
func Faint(text string) string {
	return faintStyle.Render(text)
}

// Bold returns text with bold styling.
func Bold(text string) string {
	return boldStyle.Render(text)
}

// Success returns text with success (green) styling.
func Success(text string) string {
	return successStyle.Render(text)
}

// Warning returns text with warning (yellow) styling.
func Warning(text string) string {
	return warningStyle.Render(text)
}

// Error returns text with error (red) styling.
func Error(text string) string {
	return errorStyle.Render(text)
}

// Printer writes results to out and decorations to errOut, so that
// piping the output yields plain ids.
type Printer struct {
	out    io.Writer
	errOut io.Writer
}

// New creates a printer.
func New(out, errOut io.Writer) *Printer {
	return &Printer{
		out:    out,
		errOut: errOut,
	}
}

// Summary reports the items a command processed, e.g. "Successfully published:".
func (p *Printer) Summary(verb string, items []string) {
	if len(items) == 0 {
		_, _ = fmt.Fprintln(p.errOut, Warning("Nothing was "+verb+"."))

		return
	}

	_, _ = fmt.Fprintln(p.errOut, Success("Successfully "+verb+":"))
	p.Items(items)
}

// Items prints one item per line.
func (p *Printer) Items(items []string) {
	for _, item := range items {
		_, _ = fmt.Fprintln(p.out, item)
	}
}

// Title prints a bold heading.
func (p *Printer) Title(text string) {
	_, _ = fmt.Fprintln(p.errOut, Bold(text))
}

// Failure prints an error message.
func (p *Printer) Failure(err error) {
	_, _ = fmt.Fprintln(p.errOut, Error("Error: "+err.Error()))
}

// Hint prints a faint remark.
func (p *Printer) Hint(text string) {
	_, _ = fmt.Fprintln(p.errOut, Faint(text))
}
