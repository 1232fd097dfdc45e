package cli

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	primaryColor = lipgloss.Color("#5865F2")
	dimColor     = lipgloss.Color("#72767D")
	successColor = lipgloss.Color("#57F287")
	errorColor   = lipgloss.Color("#ED4245")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	labelStyle   = lipgloss.NewStyle().Foreground(dimColor)
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5E7EB"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(successColor)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(errorColor)
	hintStyle    = lipgloss.NewStyle().Italic(true).Foreground(dimColor)
)

const (
	iconServer = "◎"
	iconCheck  = "✓"
	iconCross  = "✗"
)

// UI is a small subset of the teacher's blueprints/chat/cli.UI, trimmed
// to what a single-path demo needs: a header, key/value rows, and
// success/error lines.
type UI struct{}

func NewUI() *UI { return &UI{} }

func (u *UI) Header(icon, title string) {
	fmt.Println()
	fmt.Printf("%s %s\n", icon, titleStyle.Render(title))
}

func (u *UI) Info(label, value string) {
	fmt.Printf("  %s %s\n", labelStyle.Render(label+":"), valueStyle.Render(value))
}

func (u *UI) Blank() { fmt.Println() }

func (u *UI) Success(message string, d time.Duration) {
	fmt.Printf("%s %s %s\n", successStyle.Render(iconCheck), message, labelStyle.Render(fmt.Sprintf("(%s)", d.Round(time.Millisecond))))
}

func (u *UI) Error(message string) {
	fmt.Printf("%s %s\n", errorStyle.Render(iconCross), message)
}

func (u *UI) Hint(message string) {
	fmt.Printf("  %s\n", hintStyle.Render(message))
}
