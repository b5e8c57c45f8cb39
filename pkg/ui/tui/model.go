package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Phase of the run shown in the header
type Phase int

const (
	PhaseHarvesting Phase = iota
	PhaseDownloading
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseHarvesting:
		return "HARVESTING"
	case PhaseDownloading:
		return "DOWNLOADING"
	default:
		return "DONE"
	}
}

// Item is one finished download
type Item struct {
	Index  int
	URL    string
	Status string
	Err    error
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// Model is the bubbletea model. It is only mutated from Update, which
// bubbletea calls on a single goroutine.
type Model struct {
	spinner  spinner.Model
	progress progress.Model

	phase       Phase
	targetCount int
	folder      string

	iteration    int
	discovered   int
	harvestState string

	batchSize  int
	stored     int
	skipped    int
	failed     int
	recent     []Item
	maxRecent  int
	startTime  time.Time
	finishedAt time.Time

	width          int
	height         int
	showHelp       bool
	logMessages    []LogMessage
	maxLogMessages int
}

// NewModel creates a model for a run aiming at targetCount images
func NewModel(targetCount int) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	p := progress.New(progress.WithDefaultGradient())
	p.Width = 40

	return &Model{
		spinner:        s,
		progress:       p,
		targetCount:    targetCount,
		startTime:      time.Now(),
		maxRecent:      5,
		maxLogMessages: 50,
	}
}

// Init starts the spinner
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *Model) applyHarvestStep(iteration, total int) {
	m.iteration = iteration
	m.discovered = total
}

func (m *Model) applyHarvestDone(state string, total int) {
	m.harvestState = state
	m.discovered = total
}

func (m *Model) applyDownloadStarted(total int) {
	m.phase = PhaseDownloading
	m.batchSize = total
}

func (m *Model) applyOutcome(item Item) {
	switch item.Status {
	case "stored":
		m.stored++
	case "skipped":
		m.skipped++
	default:
		m.failed++
		m.AddLogMessage("ERROR", fmt.Sprintf("image %d: %v", item.Index, item.Err))
	}
	m.recent = append(m.recent, item)
	if len(m.recent) > m.maxRecent {
		m.recent = m.recent[len(m.recent)-m.maxRecent:]
	}
}

func (m *Model) applyDone(stored int, folder string) {
	m.phase = PhaseDone
	m.stored = stored
	m.folder = folder
	m.finishedAt = time.Now()
	m.AddLogMessage("SUCCESS", fmt.Sprintf("downloaded %d images to %s", stored, folder))
}

// AddLogMessage adds a log message, keeping the most recent ones
func (m *Model) AddLogMessage(level, message string) {
	color := dimWhite
	switch level {
	case "ERROR":
		color = lipgloss.Color("#FF0000")
	case "WARN":
		color = neonOrange
	case "SUCCESS":
		color = neonGreen
	case "INFO":
		color = neonCyan
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})
	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// harvestRatio is discovered over target, capped at 1
func (m *Model) harvestRatio() float64 {
	if m.targetCount <= 0 {
		return 1
	}
	r := float64(m.discovered) / float64(m.targetCount)
	if r > 1 {
		r = 1
	}
	return r
}

// downloadRatio is processed items over batch size
func (m *Model) downloadRatio() float64 {
	if m.batchSize == 0 {
		return 0
	}
	return float64(m.stored+m.skipped+m.failed) / float64(m.batchSize)
}

func (m *Model) elapsed() time.Duration {
	if !m.finishedAt.IsZero() {
		return m.finishedAt.Sub(m.startTime)
	}
	return time.Since(m.startTime)
}
