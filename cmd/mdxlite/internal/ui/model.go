package ui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Status is the state of one document in a build
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompiled
	StatusCached
	StatusFailed
)

// FileResult describes a finished document
type FileResult struct {
	Path     string
	Output   string
	Size     int64
	Cached   bool
	Err      error
	Duration time.Duration
}

// Summary counts the outcomes of a build
type Summary struct {
	Compiled int
	Cached   int
	Failed   int
	Bytes    int64
}

// Messages
type FileStartedMsg struct{ Path string }
type FileDoneMsg struct{ Result FileResult }
type BuildDoneMsg struct{ Err error }

type entry struct {
	result FileResult
	status Status
}

// KeyMap defines the keyboard shortcuts of the build view
type KeyMap struct {
	Quit key.Binding
}

var DefaultKeyMap = KeyMap{
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "q"),
		key.WithHelp("q", "cancel"),
	),
}

// Model is the build progress view
type Model struct {
	width int

	entries []entry
	index   map[string]int
	done    int

	spinner  spinner.Model
	progress progress.Model

	started  time.Time
	finished bool
	quitting bool
	err      error

	cancel context.CancelFunc
}

// NewModel creates the view for a build of paths. cancel is called when the
// user quits before the build finishes.
func NewModel(paths []string, cancel context.CancelFunc) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	m := Model{
		entries:  make([]entry, len(paths)),
		index:    make(map[string]int, len(paths)),
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient()),
		started:  time.Now(),
		cancel:   cancel,
	}
	for i, p := range paths {
		m.entries[i] = entry{result: FileResult{Path: p}}
		m.index[p] = i
	}
	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = msg.Width - 20
		if m.progress.Width > 60 {
			m.progress.Width = 60
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, DefaultKeyMap.Quit) {
			m.quitting = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case FileStartedMsg:
		if i, ok := m.index[msg.Path]; ok {
			m.entries[i].status = StatusRunning
		}
		return m, nil

	case FileDoneMsg:
		i, ok := m.index[msg.Result.Path]
		if !ok {
			i = len(m.entries)
			m.entries = append(m.entries, entry{})
			m.index[msg.Result.Path] = i
		}
		if m.entries[i].status < StatusCompiled {
			m.done++
		}
		m.entries[i].result = msg.Result
		switch {
		case msg.Result.Err != nil:
			m.entries[i].status = StatusFailed
		case msg.Result.Cached:
			m.entries[i].status = StatusCached
		default:
			m.entries[i].status = StatusCompiled
		}
		return m, nil

	case BuildDoneMsg:
		m.finished = true
		m.err = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

// Summary counts finished documents
func (m Model) Summary() Summary {
	var s Summary
	for _, e := range m.entries {
		switch e.status {
		case StatusCompiled:
			s.Compiled++
		case StatusCached:
			s.Cached++
		case StatusFailed:
			s.Failed++
		}
		if e.status == StatusCompiled || e.status == StatusCached {
			s.Bytes += e.result.Size
		}
	}
	return s
}

// Canceled reports whether the user quit before the build finished
func (m Model) Canceled() bool {
	return m.quitting && !m.finished
}

// View renders the UI
func (m Model) View() string {
	return m.renderBuild()
}
