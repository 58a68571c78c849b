package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Style definitions
var (
	// Colors
	primaryColor   = lipgloss.Color("#3b82f6")
	successColor   = lipgloss.Color("#10b981")
	warningColor   = lipgloss.Color("#f59e0b")
	errorColor     = lipgloss.Color("#ef4444")
	mutedColor     = lipgloss.Color("#94a3b8")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	normalStyle = lipgloss.NewStyle()

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor)
)

// Lines of the file list shown while building
const visibleFiles = 10

func (m Model) renderBuild() string {
	title := titleStyle.Render(fmt.Sprintf("Building %d documents", len(m.entries)))

	var lines []string
	for _, e := range m.entries {
		if e.status == StatusPending {
			continue
		}
		lines = append(lines, m.renderEntry(e))
	}
	if len(lines) > visibleFiles {
		lines = lines[len(lines)-visibleFiles:]
	}
	if len(lines) == 0 {
		lines = []string{mutedStyle.Render("Waiting for workers...")}
	}

	parts := []string{title, boxStyle.Render(strings.Join(lines, "\n"))}

	if len(m.entries) > 0 {
		ratio := float64(m.done) / float64(len(m.entries))
		parts = append(parts, m.progress.ViewAs(ratio))
	}

	switch {
	case m.finished:
		parts = append(parts, renderSummary(m.Summary(), time.Since(m.started), m.err))
	case m.quitting:
		parts = append(parts, warningStyle.Render("Build canceled"))
	default:
		parts = append(parts, helpStyle.Render(DefaultKeyMap.Quit.Help().Key+": "+DefaultKeyMap.Quit.Help().Desc))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...) + "\n"
}

func (m Model) renderEntry(e entry) string {
	if e.status == StatusRunning {
		return fmt.Sprintf("%s %s", m.spinner.View(), normalStyle.Render(e.result.Path))
	}
	return renderResult(e.result)
}

// renderResult renders one finished document on a single line
func renderResult(r FileResult) string {
	switch {
	case r.Err != nil:
		return fmt.Sprintf("%s %s\n  %s", errorStyle.Render("✗"), errorStyle.Render(r.Path), mutedStyle.Render(r.Err.Error()))
	case r.Cached:
		return fmt.Sprintf("%s %s %s", successStyle.Render("✓"), r.Path,
			mutedStyle.Render(fmt.Sprintf("(cached, %s)", FormatSize(r.Size))))
	default:
		return fmt.Sprintf("%s %s %s", successStyle.Render("✓"), r.Path,
			mutedStyle.Render(fmt.Sprintf("(%s, %s)", FormatSize(r.Size), r.Duration.Round(time.Millisecond))))
	}
}

func renderSummary(s Summary, elapsed time.Duration, err error) string {
	line := fmt.Sprintf("%d compiled, %d cached, %d failed, %s written in %s",
		s.Compiled, s.Cached, s.Failed, FormatSize(s.Bytes), elapsed.Round(time.Millisecond))
	switch {
	case err != nil:
		return errorStyle.Render("Build failed: ") + line + "\n" + errorStyle.Render(err.Error())
	case s.Failed > 0:
		return warningStyle.Render("Build finished with errors: ") + line
	default:
		return successStyle.Render("✨ Build complete: ") + line
	}
}

// FormatSize formats a byte count for display
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
