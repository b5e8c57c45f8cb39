// Package tui renders a harvest run as a full-screen terminal interface.
package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// TUI forwards run events to a bubbletea program. It implements ui.Reporter.
type TUI struct {
	program *tea.Program
	model   *Model
}

// New creates a TUI for a run aiming at targetCount images
func New(targetCount int) *TUI {
	model := NewModel(targetCount)
	return &TUI{
		program: tea.NewProgram(model, tea.WithAltScreen()),
		model:   model,
	}
}

// Start runs the program and blocks until the user quits
func (t *TUI) Start() error {
	_, err := t.program.Run()
	return err
}

// Stop quits the program
func (t *TUI) Stop() {
	t.program.Quit()
}

func (t *TUI) send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

func (t *TUI) FolderReady(path string, created bool) {
	verb := "using existing folder"
	if created {
		verb = "created folder"
	}
	t.send(LogMsg{Level: "INFO", Message: fmt.Sprintf("%s %s", verb, path)})
}

func (t *TUI) Warn(msg string, err error) {
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	t.send(LogMsg{Level: "WARN", Message: msg})
}

func (t *TUI) HarvestProgress(iteration, found, total int) {
	t.send(HarvestStepMsg{Iteration: iteration, Found: found, Total: total})
}

func (t *TUI) HarvestDone(state string, total, iterations int) {
	t.send(HarvestDoneMsg{State: state, Total: total, Iterations: iterations})
}

func (t *TUI) DownloadStarted(total int) {
	t.send(DownloadStartedMsg{Total: total})
}

func (t *TUI) DownloadOutcome(index int, url, status string, err error) {
	t.send(DownloadOutcomeMsg{Item: Item{Index: index, URL: url, Status: status, Err: err}})
}

func (t *TUI) DownloadMilestone(stored, total int) {
	t.send(LogMsg{Level: "INFO", Message: fmt.Sprintf("downloaded %d of %d", stored, total)})
}

func (t *TUI) Summary(stored int, folder string) {
	t.send(DoneMsg{Stored: stored, Folder: folder})
}
