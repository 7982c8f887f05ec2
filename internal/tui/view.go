package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/go-desktop-shell/internal/events"
)

// =============================================================================
// Main View Rendering
// =============================================================================

func (m Model) renderView() string {
	var sections []string

	sections = append(sections, m.renderHeader())

	if m.backendError != "" {
		sections = append(sections, m.renderErrorBanner())
	}

	sections = append(sections, m.renderBackend())

	if len(m.capabilities) > 0 {
		sections = append(sections, m.renderCapabilities())
	}

	if m.showEvents {
		sections = append(sections, m.renderEvents())
	}

	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	title := "desktop-shell"
	if m.version != "" {
		title += " " + m.version
	}

	header := fmt.Sprintf(
		" %s │ %s │ Elapsed: %s ",
		title,
		GetStateLabel(m.status.State),
		formatDuration(m.Elapsed()),
	)

	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Backend Error Banner
// =============================================================================

func (m Model) renderErrorBanner() string {
	text := "⚠ " + m.backendError
	return errorBannerStyle.Width(m.width - 2).Render(text)
}

// =============================================================================
// Backend Panel
// =============================================================================

func (m Model) renderBackend() string {
	s := m.status

	pid := "-"
	if s.PID > 0 {
		pid = fmt.Sprintf("%d", s.PID)
	}
	runID := s.RunID
	if runID == "" {
		runID = "-"
	}

	restarts := valueStyle.Render(fmt.Sprintf("%d", s.Restarts))
	if s.Restarts > 0 {
		restarts = valueBadStyle.Render(fmt.Sprintf("%d", s.Restarts))
	}

	rows := []string{
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("State:"),
			GetStateStyle(s.State).Render(orDash(s.State)),
		),
		RenderKeyValue("PID", pid),
		RenderKeyValue("Uptime", formatDuration(s.Uptime)),
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Restarts:"),
			restarts,
		),
		RenderKeyValue("Run ID", runID),
		RenderKeyValue("Command", truncate(s.Command, m.width-26)),
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Backend")}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Capabilities
// =============================================================================

func (m Model) renderCapabilities() string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		sectionHeaderStyle.Render("Capabilities"),
		mutedStyle.Render(strings.Join(m.capabilities, " · ")),
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Events
// =============================================================================

func (m Model) renderEvents() string {
	rows := []string{sectionHeaderStyle.Render("Events")}

	if len(m.events) == 0 {
		rows = append(rows, dimStyle.Render("(no events)"))
	}

	// Newest last, limited to what fits.
	limit := m.height - 20
	if limit < 3 {
		limit = 3
	}
	evs := m.events
	if len(evs) > limit {
		evs = evs[len(evs)-limit:]
	}
	for _, ev := range evs {
		style := mutedStyle
		if ev.Name == events.BackendError {
			style = statusError
		}
		line := fmt.Sprintf("%s  %-14s %s", ev.Time.Format("15:04:05"), ev.Name, ev.Payload)
		rows = append(rows, style.Render(truncate(line, m.width-6)))
	}

	return boxStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	shortcuts := []string{
		"q: quit",
		"e: toggle events",
		"x: dismiss error",
	}

	left := dimStyle.Render(strings.Join(shortcuts, " │ "))
	right := ""
	if m.listenAddr != "" {
		right = dimStyle.Render("http://" + m.listenAddr)
	}

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}

	return footerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Left,
			left,
			strings.Repeat(" ", padding),
			right,
		),
	)
}

// =============================================================================
// Helpers
// =============================================================================

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncate shortens s to max runes, marking the cut with "...".
func truncate(s string, max int) string {
	r := []rune(s)
	if max < 10 || len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
