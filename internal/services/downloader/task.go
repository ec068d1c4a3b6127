package downloader

import (
	"context"
	"fmt"
	"time"
)

var transitions = map[State][]State{
	StateQueued:     {StateRunning, StateCancelled},
	StateRunning:    {StateCancelling, StateCompleted, StateFailed, StateCancelled},
	StateCancelling: {StateCompleted, StateFailed, StateCancelled},
}

// unit is the handle of a running engine operation.
type unit struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Task is one submitted download. It is only touched from the Service loop.
type Task struct {
	ID           string
	URL          string
	Format       string
	ExtractAudio bool
	OutputDir    string
	FormatLabel  string
	State        State
	Title        string
	Uploader     string
	Duration     time.Duration
	Filepath     string
	Located      bool
	Error        string
	Message      string

	Percent       float64
	Indeterminate bool
	StatusText    string
	SpeedMbps     float64
	QueuePosition int

	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time

	seq            int
	handle         *unit
	resultRecorded bool
}

// Transition moves the task to state to, or fails with ErrIllegalTransition.
// Entering a terminal state releases the engine handle.
func (t *Task) Transition(to State) error {
	for _, next := range transitions[t.State] {
		if next != to {
			continue
		}
		t.State = to
		if to.IsTerminal() {
			t.handle = nil
			t.FinishedAt = time.Now()
		}
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, t.State, to)
}

// mustTransition is used inside the loop where an illegal move is a bug.
func (t *Task) mustTransition(to State) {
	if err := t.Transition(to); err != nil {
		panic(fmt.Sprintf("task %s: %v", t.ID, err))
	}
}

func (t *Task) view() TaskView {
	return TaskView{
		ID:            t.ID,
		URL:           t.URL,
		Format:        t.Format,
		FormatLabel:   t.FormatLabel,
		ExtractAudio:  t.ExtractAudio,
		OutputDir:     t.OutputDir,
		State:         t.State,
		Message:       t.Message,
		Title:         t.Title,
		Uploader:      t.Uploader,
		Duration:      t.Duration,
		Filepath:      t.Filepath,
		Located:       t.Located,
		Error:         t.Error,
		Percent:       t.Percent,
		Indeterminate: t.Indeterminate,
		StatusText:    t.StatusText,
		SpeedMbps:     t.SpeedMbps,
		QueuePosition: t.QueuePosition,
		CreatedAt:     t.CreatedAt,
		StartedAt:     t.StartedAt,
		FinishedAt:    t.FinishedAt,
	}
}
