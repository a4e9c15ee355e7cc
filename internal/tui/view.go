package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// Main View Rendering
// =============================================================================

// renderDashboard renders the full dashboard.
func (m Model) renderDashboard() string {
	var sections []string

	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderProcessTable())

	if len(m.recentChanges) > 0 {
		sections = append(sections, m.renderRecentChanges())
	}

	sections = append(sections, m.renderPollStats())
	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	pollLabel := GetPollLabel(m.paused, m.EmptyFetches())

	header := fmt.Sprintf(
		" pm2watch │ %s │ Processes: %d (%d online) │ Elapsed: %s ",
		pollLabel,
		m.ProcessCount(),
		m.OnlineCount(),
		formatDuration(m.Elapsed()),
	)

	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Process Table
// =============================================================================

func (m Model) renderProcessTable() string {
	var rows []string
	rows = append(rows, sectionHeaderStyle.Render("Processes"))

	if len(m.procs) == 0 {
		rows = append(rows, mutedStyle.Render("no processes (or PM2 unreachable)"))
	} else {
		rows = append(rows, dimStyle.Render(fmt.Sprintf(
			"%-4s %-20s %-14s %6s %10s %8s",
			"id", "name", "status", "cpu", "mem", "restart")))
		for _, p := range m.procs {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left,
				valueStyle.Render(fmt.Sprintf("%-4d ", p.ID)),
				valueStyle.Render(fmt.Sprintf("%-20s ", truncateName(p.Name, 20))),
				GetStatusStyle(p.Status).Render(fmt.Sprintf("%-14s ", p.Status)),
				valueStyle.Render(fmt.Sprintf("%5.1f%% ", p.CPU)),
				valueStyle.Render(fmt.Sprintf("%10s ", formatBytes(p.Memory))),
				valueStyle.Render(fmt.Sprintf("%8d", p.Restarts)),
			))
		}
	}

	content := lipgloss.JoinVertical(lipgloss.Left, rows...)
	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Recent Changes
// =============================================================================

func (m Model) renderRecentChanges() string {
	var rows []string
	rows = append(rows, sectionHeaderStyle.Render("Recent Changes"))

	// Newest first
	for i := len(m.recentChanges) - 1; i >= 0; i-- {
		rc := m.recentChanges[i]
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left,
			dimStyle.Render(rc.at.Format("15:04:05")+"  "),
			changeStyle(rc.change.Kind.String()).Render(rc.change.String()),
		))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, rows...)
	return boxStyle.Width(m.width - 2).Render(content)
}

func changeStyle(kind string) lipgloss.Style {
	switch kind {
	case "transition":
		return statusWarning
	case "removed":
		return statusError
	case "added":
		return statusOK
	default:
		return mutedStyle
	}
}

// =============================================================================
// Poll Statistics
// =============================================================================

func (m Model) renderPollStats() string {
	snap := m.latency.Snapshot()

	rows := []string{
		sectionHeaderStyle.Render("Poll Latency"),
		RenderKeyValue("Polls", fmt.Sprintf("%d", snap.Count)),
		RenderKeyValue("Last", formatMs(snap.Last)),
		RenderKeyValue("P50 / P95 / P99", fmt.Sprintf("%s / %s / %s",
			formatMs(snap.P50), formatMs(snap.P95), formatMs(snap.P99))),
		RenderKeyValue("Last update", m.lastUpdate.Format(time.TimeOnly)),
	}

	content := lipgloss.JoinVertical(lipgloss.Left, rows...)
	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	parts := []string{
		"q: quit",
		"p: pause",
		"r: refresh",
	}
	if m.metricsAddr != "" {
		parts = append(parts, "metrics: "+m.metricsAddr)
	}
	return footerStyle.Render(" " + strings.Join(parts, " │ "))
}

// truncateName shortens a process name for the fixed-width table.
func truncateName(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
