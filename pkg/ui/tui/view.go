package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const logo = `▀█▀ █▀▄▀█ █▀▀   █ █ ▄▀█ █▀█ █ █ █▀▀ █▀ ▀█▀
▄█▄ █ ▀ █ █▄█   █▀█ █▀█ █▀▄ ▀▄▀ ██▄ ▄█  █ `

// View renders the whole screen
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	width := (m.width - 4) / 2
	left := lipgloss.JoinVertical(lipgloss.Left,
		m.renderHarvestPanel(width),
		m.renderDownloadPanel(width),
	)
	right := m.renderLogsPanel(width)

	sections := []string{
		logoStyle.Width(m.width).Render(logo),
		lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right),
	}
	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func stat(label, value string) string {
	return fmt.Sprintf("%s %s", statsLabelStyle.Render(label), statsValueStyle.Render(value))
}

func (m *Model) renderHarvestPanel(width int) string {
	title := titleStyle.Render(" HARVEST ")

	phase := m.phase.String()
	if m.phase != PhaseDone {
		phase = m.spinner.View() + " " + phase
	}

	state := m.harvestState
	if state == "" {
		state = "RUNNING"
	}

	lines := []string{
		stat("Phase:", phase),
		stat("Elapsed:", formatDuration(m.elapsed())),
		stat("Iteration:", fmt.Sprintf("%d", m.iteration)),
		stat("Unique images:", fmt.Sprintf("%d / %d", m.discovered, m.targetCount)),
		stat("State:", state),
		m.progress.ViewAs(m.harvestRatio()),
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n")),
	)
}

func (m *Model) renderDownloadPanel(width int) string {
	title := titleStyle.Render(" DOWNLOADS ")

	if m.phase == PhaseHarvesting {
		content := lipgloss.NewStyle().Foreground(dimWhite).Render("Waiting for harvest to finish")
		return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	}

	lines := []string{
		fmt.Sprintf("%s  %s  %s",
			successStyle.Render(fmt.Sprintf("✓ %d stored", m.stored)),
			warningStyle.Render(fmt.Sprintf("↷ %d skipped", m.skipped)),
			errorStyle.Render(fmt.Sprintf("✗ %d failed", m.failed)),
		),
		m.progress.ViewAs(m.downloadRatio()),
	}
	for _, item := range m.recent {
		url := item.URL
		if limit := width - 16; limit > 3 && len(url) > limit {
			url = url[:limit-3] + "..."
		}
		lines = append(lines, itemStyle.Render(fmt.Sprintf("%03d %s %s", item.Index, statusStyle(item.Status).Render(item.Status), url)))
	}
	if m.phase == PhaseDone {
		lines = append(lines, "", successStyle.Render(fmt.Sprintf("Saved to %s. Press q to exit.", m.folder)))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n")),
	)
}

func (m *Model) renderLogsPanel(width int) string {
	title := titleStyle.Render(" LOG ")

	start := len(m.logMessages) - 10
	if start < 0 {
		start = 0
	}

	var logs []string
	for _, log := range m.logMessages[start:] {
		timestamp := logTimestampStyle.Render(log.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level))
		message := log.Message
		if limit := width - 25; limit > 3 && len(message) > limit {
			message = message[:limit-3] + "..."
		}
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, logMessageStyle.Render(message)))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = lipgloss.NewStyle().Foreground(dimWhite).Render("No logs yet...")
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

func (m *Model) renderHelp() string {
	help := `
  q/Q      quit (cancels a running harvest)
  ctrl+l   clear the log
  ?        toggle this help

  ` + successStyle.Render("stored") + `   written to disk
  ` + warningStyle.Render("skipped") + `  non-200 response
  ` + errorStyle.Render("failed") + `   network or write error
`
	return panelStyle.Width(m.width).Render(help)
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}
	h := int(d.Hours())
	mins := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, mins, s)
	}
	return fmt.Sprintf("%02d:%02d", mins, s)
}
