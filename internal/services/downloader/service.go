package downloader

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gcottom/go-zaplog"
	"github.com/gcottom/yt-dl-queue/pkg/youtube"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const eventBuffer = 256

type Option func(*Service)

func WithListener(l Listener) Option {
	return func(s *Service) {
		if l != nil {
			s.listener = l
		}
	}
}

func WithMeta(m MetaLookup) Option {
	return func(s *Service) { s.meta = m }
}

func WithJournal(j Journal) Option {
	return func(s *Service) { s.journal = j }
}

// Service is the download orchestrator. Registry, admission queue, running
// set and counters are owned by a single loop goroutine; the exported methods
// post closures to it and wait for the result.
type Service struct {
	engine   Engine
	meta     MetaLookup
	journal  Journal
	listener Listener

	ctx           context.Context
	stopCtx       context.CancelFunc
	maxParallel   int
	shutdownGrace time.Duration

	tasks   map[string]*Task
	queue   []string
	running map[string]struct{}
	stats   Stats
	counter int
	advised bool
	closing bool

	events    chan func()
	quit      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewService starts the orchestrator loop. ctx carries the logger and is the
// parent of every engine operation.
func NewService(ctx context.Context, cfg Config, engine Engine, opts ...Option) *Service {
	if cfg.MaxParallel < 1 {
		cfg.MaxParallel = 1
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = DefaultShutdownWait
	}
	base, cancel := context.WithCancel(ctx)
	s := &Service{
		engine:        engine,
		listener:      nopListener{},
		ctx:           base,
		stopCtx:       cancel,
		maxParallel:   cfg.MaxParallel,
		shutdownGrace: cfg.ShutdownGrace,
		tasks:         make(map[string]*Task),
		running:       make(map[string]struct{}),
		events:        make(chan func(), eventBuffer),
		quit:          make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.loop()
	return s
}

func (s *Service) loop() {
	defer close(s.stopped)
	for {
		select {
		case fn := <-s.events:
			fn()
		case <-s.quit:
			for {
				select {
				case fn := <-s.events:
					fn()
				default:
					return
				}
			}
		}
	}
}

// post queues fn on the loop. It reports false once the loop has stopped.
func (s *Service) post(fn func()) bool {
	select {
	case <-s.stopped:
		return false
	default:
	}
	select {
	case s.events <- fn:
		return true
	case <-s.stopped:
		return false
	}
}

// call runs fn on the loop and waits for it.
func (s *Service) call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !s.post(func() { fn(); close(done) }) {
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		select {
		case <-done:
			return nil
		default:
			return ErrClosed
		}
	}
}

// commit runs fn on the loop once ctx allows it to be queued. After that fn
// is waited on to the end so the caller learns what it created.
func (s *Service) commit(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan struct{})
	if !s.post(func() { fn(); close(done) }) {
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-s.stopped:
		select {
		case <-done:
			return nil
		default:
			return ErrClosed
		}
	}
}

// Submit creates a task and returns its id. Once the request reached the
// loop the task exists, so a context cancelled afterwards does not orphan it.
func (s *Service) Submit(ctx context.Context, req Request) (string, error) {
	var id string
	err := s.commit(ctx, func() {
		if s.closing {
			return
		}
		id = s.submit(req)
	})
	if err == nil && id == "" {
		err = ErrClosed
	}
	return id, err
}

func (s *Service) Cancel(ctx context.Context, id string) error {
	var cerr error
	err := s.call(ctx, func() {
		var changed bool
		changed, cerr = s.cancel(id)
		if changed {
			s.pump()
		}
	})
	if err != nil {
		return err
	}
	return cerr
}

// CancelAll cancels every queued and running task and returns how many were
// affected.
func (s *Service) CancelAll(ctx context.Context) (int, error) {
	var n int
	err := s.call(ctx, func() {
		n = s.cancelAll()
		s.pump()
	})
	return n, err
}

func (s *Service) Remove(ctx context.Context, id string) error {
	var rerr error
	err := s.call(ctx, func() {
		rerr = s.remove(id)
	})
	if err != nil {
		return err
	}
	return rerr
}

// ClearFinished removes every task in a terminal state.
func (s *Service) ClearFinished(ctx context.Context) ([]string, error) {
	var removed []string
	err := s.call(ctx, func() {
		for _, t := range s.ordered() {
			if t.State.IsTerminal() {
				delete(s.tasks, t.ID)
				removed = append(removed, t.ID)
			}
		}
		if len(removed) > 0 {
			s.publishStats()
		}
	})
	return removed, err
}

// SetMaxParallel changes the admission limit. Lowering it never preempts
// running tasks.
func (s *Service) SetMaxParallel(ctx context.Context, n int) error {
	if n < 1 {
		return ErrInvalidParallel
	}
	return s.call(ctx, func() {
		zaplog.InfoC(s.ctx, "max parallel changed", zap.Int("from", s.maxParallel), zap.Int("to", n))
		s.maxParallel = n
		s.pump()
	})
}

func (s *Service) Task(ctx context.Context, id string) (TaskView, error) {
	var view TaskView
	var found bool
	err := s.call(ctx, func() {
		if t, ok := s.tasks[id]; ok {
			view, found = t.view(), true
		}
	})
	if err != nil {
		return TaskView{}, err
	}
	if !found {
		return TaskView{}, ErrTaskNotFound
	}
	return view, nil
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.call(ctx, func() { st = s.currentStats() })
	return st, err
}

func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.call(ctx, func() {
		for _, t := range s.ordered() {
			snap.Tasks = append(snap.Tasks, t.view())
			if _, ok := s.running[t.ID]; ok {
				snap.Running = append(snap.Running, t.ID)
			}
		}
		snap.Queue = append([]string(nil), s.queue...)
		snap.Stats = s.currentStats()
		snap.MaxParallel = s.maxParallel
	})
	return snap, err
}

// Shutdown cancels every active task, waits up to the grace period for the
// engine operations to acknowledge, then stops the loop. It does not wait for
// engine operations that ignore cancellation.
func (s *Service) Shutdown(ctx context.Context) error {
	var units []*unit
	err := s.call(ctx, func() {
		s.closing = true
		for _, t := range s.ordered() {
			if t.handle != nil {
				units = append(units, t.handle)
			}
		}
		n := s.cancelAll()
		zaplog.InfoC(s.ctx, "shutting down downloader", zap.Int("cancelled", n), zap.Int("units", len(units)))
	})
	if err != nil {
		return err
	}

	grace := time.NewTimer(s.shutdownGrace)
	defer grace.Stop()
wait:
	for _, u := range units {
		select {
		case <-u.done:
		case <-grace.C:
			zaplog.WarnC(s.ctx, "engine units did not stop within grace period", zap.Duration("grace", s.shutdownGrace))
			break wait
		case <-ctx.Done():
			break wait
		}
	}

	s.closeOnce.Do(func() { close(s.quit) })
	<-s.stopped
	s.stopCtx()
	return nil
}

type outcome struct {
	err     error
	path    string
	located bool
	title   string
}

func (s *Service) submit(req Request) string {
	s.counter++
	now := time.Now()
	t := &Task{
		ID:           newTaskID(s.counter),
		URL:          req.URL,
		Format:       req.Format,
		ExtractAudio: req.ExtractAudio,
		OutputDir:    req.OutputDir,
		FormatLabel:  req.FormatLabel,
		State:        StateQueued,
		Title:        DefaultTitle,
		Message:      MessageQueued,
		CreatedAt:    now,
		seq:          s.counter,
	}
	s.tasks[t.ID] = t
	s.queue = append(s.queue, t.ID)
	s.stats.Total++
	zaplog.InfoC(s.ctx, "task submitted", zap.String("id", t.ID), zap.String("url", t.URL), zap.String("format", t.FormatLabel))
	s.listener.OnTaskCreated(t.view())
	s.startLookup(t)
	s.pump()
	return t.ID
}

// pump admits queued tasks in FIFO order while there is a free slot.
func (s *Service) pump() {
	for !s.closing && len(s.running) < s.maxParallel && len(s.queue) > 0 {
		id := s.queue[0]
		s.queue = s.queue[1:]
		t, ok := s.tasks[id]
		if !ok || t.State != StateQueued {
			continue
		}
		t.mustTransition(StateRunning)
		t.StartedAt = time.Now()
		t.QueuePosition = 0
		t.Message = MessagePreparing
		s.running[id] = struct{}{}
		s.launch(t)
		s.notifyState(t)
	}
	s.publishPositions()
	s.publishStats()
}

// launch starts the engine unit for t in its own goroutine. The unit reports
// back only through posted closures.
func (s *Service) launch(t *Task) {
	ctx, cancel := context.WithCancel(s.ctx)
	u := &unit{cancel: cancel, done: make(chan struct{})}
	t.handle = u

	id := t.ID
	req := youtube.FetchRequest{URL: t.URL, Format: t.Format, OutputDir: t.OutputDir, ExtractAudio: t.ExtractAudio}
	go func() {
		defer close(u.done)
		defer cancel()
		out := s.fetch(ctx, id, req)
		s.post(func() { s.onFinished(id, out) })
	}()
}

func (s *Service) fetch(ctx context.Context, id string, req youtube.FetchRequest) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			zaplog.ErrorC(ctx, "engine panicked", zap.String("id", id), zap.Any("panic", r))
			out = outcome{err: fmt.Errorf("engine panic: %v", r)}
		}
	}()
	res, err := s.engine.Fetch(ctx, req, func(p youtube.Progress) {
		s.post(func() { s.onProgress(id, p) })
	})
	if err != nil {
		return outcome{err: err}
	}
	out.path, out.located = ResolveOutput(res, s.engine.PrepareFilename, req.OutputDir, req.ExtractAudio)
	if r := Normalize(res); r != nil {
		out.title = r.Title
	}
	if !out.located {
		zaplog.WarnC(ctx, "could not locate output file", zap.String("id", id), zap.String("path", out.path))
	}
	return out
}

func (s *Service) onProgress(id string, p youtube.Progress) {
	t, ok := s.tasks[id]
	if !ok || t.State != StateRunning {
		return
	}
	u := Aggregate(p)
	t.Percent = u.Percent
	t.Indeterminate = u.Indeterminate
	t.StatusText = u.Text
	t.SpeedMbps = u.SpeedMbps
	s.listener.OnTaskProgress(id, u)
}

func (s *Service) onFinished(id string, out outcome) {
	delete(s.running, id)
	t, ok := s.tasks[id]
	if !ok || t.State.IsTerminal() {
		s.pump()
		return
	}

	switch {
	case t.State == StateCancelling:
		// cancellation wins over whatever the engine reported
		t.mustTransition(StateCancelled)
		t.Filepath = ""
		t.Message = MessageCancelled
	case out.err == nil:
		t.mustTransition(StateCompleted)
		t.Filepath = out.path
		t.Located = out.located
		t.Percent = 100
		t.Indeterminate = false
		t.SpeedMbps = 0
		if out.title != "" && (t.Title == "" || t.Title == DefaultTitle) {
			t.Title = out.title
		}
		t.Message = MessageDownloadDone
		if !out.located {
			t.Message = MessageNotLocated
		}
	default:
		t.mustTransition(StateFailed)
		t.Error = out.err.Error()
		t.Message = "Download failed: " + t.Error
	}

	s.recordResult(t)
	s.notifyState(t)
	if t.State == StateFailed {
		s.adviseIfNeeded(t)
	}
	s.pump()
}

// cancel reports whether the task changed state.
func (s *Service) cancel(id string) (bool, error) {
	t, ok := s.tasks[id]
	if !ok {
		return false, ErrTaskNotFound
	}
	switch t.State {
	case StateQueued:
		s.dequeue(id)
		t.mustTransition(StateCancelled)
		t.QueuePosition = 0
		t.Message = MessageCancelled
		s.recordResult(t)
		s.notifyState(t)
		return true, nil
	case StateRunning:
		t.mustTransition(StateCancelling)
		t.Message = MessageCancelling
		t.handle.cancel()
		s.notifyState(t)
		return true, nil
	}
	return false, nil
}

func (s *Service) cancelAll() int {
	n := 0
	for _, id := range append([]string(nil), s.queue...) {
		if changed, _ := s.cancel(id); changed {
			n++
		}
	}
	for _, t := range s.ordered() {
		if t.State != StateRunning {
			continue
		}
		if changed, _ := s.cancel(t.ID); changed {
			n++
		}
	}
	return n
}

func (s *Service) remove(id string) error {
	t, ok := s.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	if !t.State.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrTaskBusy, id, t.State)
	}
	delete(s.tasks, id)
	s.publishStats()
	return nil
}

func (s *Service) dequeue(id string) {
	for i, queued := range s.queue {
		if queued == id {
			s.queue = append(s.queue[:i:i], s.queue[i+1:]...)
			return
		}
	}
}

// recordResult is the only place counters move after submission.
func (s *Service) recordResult(t *Task) {
	if t.resultRecorded {
		return
	}
	t.resultRecorded = true
	if t.State == StateCompleted {
		s.stats.Succeeded++
	}
	if s.journal != nil {
		if err := s.journal.Record(s.ctx, t.view()); err != nil {
			zaplog.ErrorC(s.ctx, "failed to record task result", zap.String("id", t.ID), zap.Error(err))
		}
	}
}

func (s *Service) adviseIfNeeded(t *Task) {
	if s.advised || !IsNetworkRestricted(t.Error) {
		return
	}
	s.advised = true
	zaplog.WarnC(s.ctx, "failure looks like a network restriction", zap.String("id", t.ID))
	s.listener.OnNetworkAdvisory(t.ID, AdvisoryMessage)
}

func (s *Service) startLookup(t *Task) {
	if s.meta == nil {
		return
	}
	id, url := t.ID, t.URL
	go func() {
		info, err := s.meta.Lookup(s.ctx, url)
		if err != nil {
			zaplog.WarnC(s.ctx, "failed to look up task info", zap.String("id", id), zap.Error(err))
			return
		}
		s.post(func() { s.onInfo(id, info) })
	}()
}

func (s *Service) onInfo(id string, info *youtube.Info) {
	t, ok := s.tasks[id]
	if !ok || info == nil {
		return
	}
	if info.Title != "" {
		t.Title = info.Title
	}
	t.Uploader = info.Uploader
	t.Duration = info.Duration
	s.listener.OnTaskInfo(id, info)
}

func (s *Service) notifyState(t *Task) {
	zaplog.InfoC(s.ctx, "task state changed", zap.String("id", t.ID), zap.String("state", t.State.String()), zap.String("message", t.Message))
	s.listener.OnTaskStateChanged(t.ID, t.State, t.Message)
}

func (s *Service) publishPositions() {
	for i, id := range s.queue {
		if t, ok := s.tasks[id]; ok {
			t.QueuePosition = i + 1
		}
		s.listener.OnTaskQueuePositionChanged(id, i+1)
	}
}

func (s *Service) publishStats() {
	st := s.currentStats()
	s.listener.OnStatsChanged(st.Total, st.Succeeded, st.Running, st.Queued)
}

func (s *Service) currentStats() Stats {
	return Stats{
		Total:     s.stats.Total,
		Succeeded: s.stats.Succeeded,
		Running:   len(s.running),
		Queued:    len(s.queue),
	}
}

func (s *Service) ordered() []*Task {
	out := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func newTaskID(counter int) string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("task-%d-%d", counter, time.Now().UnixMilli())
	}
	return fmt.Sprintf("task-%d-%s", counter, id.String())
}
