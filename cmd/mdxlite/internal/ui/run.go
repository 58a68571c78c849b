package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Reporter receives progress from a running build. Implementations must be
// safe for concurrent use.
type Reporter interface {
	FileStarted(path string)
	FileDone(result FileResult)
}

// BuildFunc builds documents, reporting progress to r
type BuildFunc func(ctx context.Context, r Reporter) error

type programReporter struct {
	p *tea.Program
}

func (r programReporter) FileStarted(path string)    { r.p.Send(FileStartedMsg{Path: path}) }
func (r programReporter) FileDone(result FileResult) { r.p.Send(FileDoneMsg{Result: result}) }

// RunBuild runs build while showing its progress in the terminal. It
// returns the build's error, or context.Canceled if the user quit.
func RunBuild(ctx context.Context, paths []string, build BuildFunc) (Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewModel(paths, cancel))

	errc := make(chan error, 1)
	go func() {
		err := build(ctx, programReporter{p})
		p.Send(BuildDoneMsg{Err: err})
		errc <- err
	}()

	finalModel, runErr := p.Run()
	cancel()
	buildErr := <-errc
	if runErr != nil {
		return Summary{}, fmt.Errorf("TUI error: %w", runErr)
	}

	m := finalModel.(Model)
	if m.Canceled() {
		return m.Summary(), context.Canceled
	}
	return m.Summary(), buildErr
}

// PlainReporter writes one line per finished document, for output that is
// not a terminal.
type PlainReporter struct {
	mu      sync.Mutex
	w       io.Writer
	summary Summary
	started time.Time
}

// NewPlainReporter creates a reporter writing to w
func NewPlainReporter(w io.Writer) *PlainReporter {
	return &PlainReporter{w: w, started: time.Now()}
}

func (r *PlainReporter) FileStarted(string) {}

func (r *PlainReporter) FileDone(result FileResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case result.Err != nil:
		r.summary.Failed++
	case result.Cached:
		r.summary.Cached++
		r.summary.Bytes += result.Size
	default:
		r.summary.Compiled++
		r.summary.Bytes += result.Size
	}
	fmt.Fprintln(r.w, renderResult(result))
}

// Finish writes the summary line and returns the counts
func (r *PlainReporter) Finish(err error) Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.w, renderSummary(r.summary, time.Since(r.started), err))
	return r.summary
}

// IsTerminal reports whether stdout is a terminal
func IsTerminal() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
