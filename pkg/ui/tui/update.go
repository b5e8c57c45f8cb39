package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// HarvestStepMsg reports one scroll iteration
type HarvestStepMsg struct {
	Iteration int
	Found     int
	Total     int
}

// HarvestDoneMsg reports the terminal harvest state
type HarvestDoneMsg struct {
	State      string
	Total      int
	Iterations int
}

// DownloadStartedMsg switches the view to the download phase
type DownloadStartedMsg struct {
	Total int
}

// DownloadOutcomeMsg reports one processed candidate
type DownloadOutcomeMsg struct {
	Item Item
}

// DoneMsg is sent once the run has finished
type DoneMsg struct {
	Stored int
	Folder string
}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case HarvestStepMsg:
		m.applyHarvestStep(msg.Iteration, msg.Total)
		return m, nil

	case HarvestDoneMsg:
		m.applyHarvestDone(msg.State, msg.Total)
		m.AddLogMessage("INFO", "harvest stopped: "+msg.State)
		return m, nil

	case DownloadStartedMsg:
		m.applyDownloadStarted(msg.Total)
		return m, nil

	case DownloadOutcomeMsg:
		m.applyOutcome(msg.Item)
		return m, nil

	case DoneMsg:
		m.applyDone(msg.Stored, msg.Folder)
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Quit
	case "?":
		m.showHelp = !m.showHelp
	case "ctrl+l":
		m.logMessages = nil
	}
	return m, nil
}
