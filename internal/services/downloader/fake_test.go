package downloader

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gcottom/go-zaplog"
	"github.com/gcottom/yt-dl-queue/pkg/youtube"
	"github.com/stretchr/testify/require"
)

// fakeEngine blocks every Fetch until finish is called for its URL.
// URLs marked stubborn ignore cancellation.
type fakeEngine struct {
	mu       sync.Mutex
	active   int
	peak     int
	gates    map[string]chan error
	stubborn map[string]bool
	samples  map[string]youtube.Progress
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		gates:    make(map[string]chan error),
		stubborn: make(map[string]bool),
		samples:  make(map[string]youtube.Progress),
	}
}

func (f *fakeEngine) gate(url string) chan error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.gates[url]
	if !ok {
		g = make(chan error, 1)
		f.gates[url] = g
	}
	return g
}

func (f *fakeEngine) setStubborn(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stubborn[url] = true
}

// setSample replaces the progress sample reported for url.
func (f *fakeEngine) setSample(url string, p youtube.Progress) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples[url] = p
}

func (f *fakeEngine) finish(url string, err error) {
	select {
	case f.gate(url) <- err:
	default:
	}
}

func (f *fakeEngine) Peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

func (f *fakeEngine) Probe(_ context.Context, url string) (*youtube.Info, error) {
	return &youtube.Info{ID: url, Title: url}, nil
}

func (f *fakeEngine) Fetch(ctx context.Context, req youtube.FetchRequest, onProgress func(youtube.Progress)) (*youtube.Result, error) {
	f.mu.Lock()
	f.active++
	if f.active > f.peak {
		f.peak = f.active
	}
	stubborn := f.stubborn[req.URL]
	sample, ok := f.samples[req.URL]
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if !ok {
		sample = youtube.Progress{Status: youtube.StatusDownloading, DownloadedBytes: 50, TotalBytes: 100, Speed: 125_000, ETAText: "00:01"}
	}
	onProgress(sample)

	g := f.gate(req.URL)
	var err error
	if stubborn {
		err = <-g
	} else {
		select {
		case err = <-g:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &youtube.Result{Type: youtube.ResultTypeVideo, ID: req.URL, Title: req.URL, Ext: "mp4"}, nil
}

func (f *fakeEngine) PrepareFilename(res *youtube.Result, outputDir string) string {
	return filepath.Join(outputDir, res.Title+"."+res.Ext)
}

type recorder struct {
	mu         sync.Mutex
	created    []string
	states     map[string][]State
	positions  map[string][]int
	progress   map[string][]float64
	updates    map[string][]Update
	infos      map[string]*youtube.Info
	advisories []string
	maxRunning int
	last       Stats
}

func newRecorder() *recorder {
	return &recorder{
		states:    make(map[string][]State),
		positions: make(map[string][]int),
		progress:  make(map[string][]float64),
		updates:   make(map[string][]Update),
		infos:     make(map[string]*youtube.Info),
	}
}

func (r *recorder) OnTaskCreated(task TaskView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, task.ID)
}

func (r *recorder) OnTaskQueuePositionChanged(id string, position int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positions[id] = append(r.positions[id], position)
}

func (r *recorder) OnTaskStateChanged(id string, state State, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[id] = append(r.states[id], state)
}

func (r *recorder) OnTaskProgress(id string, u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress[id] = append(r.progress[id], u.Percent)
	r.updates[id] = append(r.updates[id], u)
}

func (r *recorder) OnTaskInfo(id string, info *youtube.Info) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos[id] = info
}

func (r *recorder) OnStatsChanged(total, succeeded, running, queued int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = Stats{Total: total, Succeeded: succeeded, Running: running, Queued: queued}
	if running > r.maxRunning {
		r.maxRunning = running
	}
}

func (r *recorder) OnNetworkAdvisory(id string, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advisories = append(r.advisories, id)
}

func (r *recorder) updatesOf(id string) []Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Update(nil), r.updates[id]...)
}

func (r *recorder) statesOf(id string) []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states[id]...)
}

type countingJournal struct {
	mu     sync.Mutex
	counts map[string]int
	last   map[string]TaskView
}

func newCountingJournal() *countingJournal {
	return &countingJournal{counts: make(map[string]int), last: make(map[string]TaskView)}
}

func (j *countingJournal) Record(_ context.Context, task TaskView) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.counts[task.ID]++
	j.last[task.ID] = task
	return nil
}

func (j *countingJournal) count(id string) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.counts[id]
}

type fakeMeta struct {
	title string
	err   error
}

func (m fakeMeta) Lookup(_ context.Context, url string) (*youtube.Info, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &youtube.Info{ID: url, Title: m.title, Uploader: "someone"}, nil
}

var errBoom = errors.New("boom")

func testContext() context.Context {
	return zaplog.CreateAndInject(context.Background())
}

func newTestService(t *testing.T, eng Engine, maxParallel int, opts ...Option) *Service {
	t.Helper()
	svc := NewService(testContext(), Config{MaxParallel: maxParallel, ShutdownGrace: 200 * time.Millisecond}, eng, opts...)
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })
	return svc
}

func submit(t *testing.T, svc *Service, url, dir string) string {
	t.Helper()
	id, err := svc.Submit(context.Background(), Request{URL: url, Format: "best", OutputDir: dir, FormatLabel: "Best"})
	require.NoError(t, err)
	return id
}

func waitState(t *testing.T, svc *Service, id string, want State) TaskView {
	t.Helper()
	var v TaskView
	require.Eventually(t, func() bool {
		var err error
		v, err = svc.Task(context.Background(), id)
		return err == nil && v.State == want
	}, 2*time.Second, 5*time.Millisecond, "task %s never reached %s", id, want)
	return v
}
