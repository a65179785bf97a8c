package cli

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/pbaity/folio/internal/builder"
	"github.com/pbaity/folio/internal/rebuild"
)

// Styles
var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FA9A")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF4C4C")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFB86C")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))
)

// statusLine renders one rebuild outcome for the terminal.
func statusLine(o rebuild.Outcome) string {
	switch {
	case o.Err != nil:
		return errorStyle.Render("✗ build failed") + " " + o.Err.Error()
	case o.HookErr != nil:
		return warnStyle.Render("! built, hooks failed") + " " + mutedStyle.Render(summary(o.Result)) +
			"\n  " + o.HookErr.Error()
	default:
		return successStyle.Render("✓ built") + " " + mutedStyle.Render(summary(o.Result))
	}
}

func summary(r *builder.Result) string {
	if r == nil {
		return ""
	}
	s := fmt.Sprintf("%d pages, %d assets", r.Rendered, r.Copied)
	if r.Drafts > 0 {
		s += fmt.Sprintf(", %d drafts skipped", r.Drafts)
	}
	s += fmt.Sprintf("; %d written, %d unchanged", r.Written, r.Unchanged)
	if r.Removed > 0 {
		s += fmt.Sprintf(", %d removed", r.Removed)
	}
	return s + fmt.Sprintf(" in %s [%s]", r.Duration.Round(time.Millisecond), r.Fingerprint)
}
