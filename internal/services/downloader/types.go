package downloader

import (
	"context"
	"errors"
	"time"

	"github.com/gcottom/yt-dl-queue/pkg/youtube"
)

type State string

const (
	StateQueued     State = "queued"
	StateRunning    State = "running"
	StateCancelling State = "cancelling"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

func (s State) String() string {
	return string(s)
}

// IsActive reports whether a task in this state still occupies the
// orchestrator (queued or holding an engine handle).
func (s State) IsActive() bool {
	return s == StateQueued || s == StateRunning || s == StateCancelling
}

func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrTaskBusy          = errors.New("task busy")
	ErrIllegalTransition = errors.New("illegal state transition")
	ErrInvalidParallel   = errors.New("max parallel must be at least 1")
	ErrClosed            = errors.New("downloader is shut down")
)

const (
	MessageQueued       = "Queued"
	MessagePreparing    = "Preparing download..."
	MessageCancelling   = "Cancelling..."
	MessageCancelled    = "Cancelled"
	MessageDownloadDone = "Download complete"
	MessageNotLocated   = "Download finished, file not located"
	MessageDownloading  = "Downloading..."
	MessageProcessing   = "Processing file..."
	DefaultTitle        = "Fetching info..."
	DefaultShutdownWait = 2 * time.Second
)

// Engine is the extraction/download collaborator.
type Engine interface {
	Probe(ctx context.Context, url string) (*youtube.Info, error)
	Fetch(ctx context.Context, req youtube.FetchRequest, onProgress func(youtube.Progress)) (*youtube.Result, error)
	PrepareFilename(res *youtube.Result, outputDir string) string
}

// MetaLookup resolves task metadata in the background.
type MetaLookup interface {
	Lookup(ctx context.Context, url string) (*youtube.Info, error)
}

// Journal persists terminal task results.
type Journal interface {
	Record(ctx context.Context, task TaskView) error
}

type Request struct {
	URL          string `json:"url"`
	Format       string `json:"format"`
	ExtractAudio bool   `json:"extract_audio"`
	OutputDir    string `json:"output_dir"`
	FormatLabel  string `json:"format_label"`
}

// TaskView is an immutable copy of a Task handed outside the loop.
type TaskView struct {
	ID            string        `json:"id"`
	URL           string        `json:"url"`
	Format        string        `json:"format"`
	FormatLabel   string        `json:"format_label"`
	ExtractAudio  bool          `json:"extract_audio"`
	OutputDir     string        `json:"output_dir"`
	State         State         `json:"state"`
	Message       string        `json:"message,omitempty"`
	Title         string        `json:"title"`
	Uploader      string        `json:"uploader,omitempty"`
	Duration      time.Duration `json:"duration,omitempty"`
	Filepath      string        `json:"filepath,omitempty"`
	Located       bool          `json:"located"`
	Error         string        `json:"error,omitempty"`
	Percent       float64       `json:"percent"`
	Indeterminate bool          `json:"indeterminate,omitempty"`
	StatusText    string        `json:"status_text,omitempty"`
	SpeedMbps     float64       `json:"speed_mbps,omitempty"`
	QueuePosition int           `json:"queue_position,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	StartedAt     time.Time     `json:"started_at,omitempty"`
	FinishedAt    time.Time     `json:"finished_at,omitempty"`
}

type Stats struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Running   int `json:"running"`
	Queued    int `json:"queued"`
}

type Snapshot struct {
	Tasks       []TaskView `json:"tasks"`
	Queue       []string   `json:"queue"`
	Running     []string   `json:"running"`
	Stats       Stats      `json:"stats"`
	MaxParallel int        `json:"max_parallel"`
}

// Config is what the orchestrator needs from the application configuration.
type Config struct {
	MaxParallel   int
	ShutdownGrace time.Duration
}
