package handlers

import (
	"context"
	"sync"

	"github.com/gcottom/go-zaplog"
	"github.com/gcottom/yt-dl-queue/internal/services/downloader"
	"github.com/gcottom/yt-dl-queue/pkg/youtube"
	"go.uber.org/zap"
)

// StatusBoard keeps the latest view of every task for status polling. It is a
// downloader.Listener; writes come from the orchestrator loop only.
type StatusBoard struct {
	ctx      context.Context
	statuses *sync.Map

	mu       sync.RWMutex
	advisory string
}

func NewStatusBoard(ctx context.Context) *StatusBoard {
	return &StatusBoard{ctx: ctx, statuses: new(sync.Map)}
}

func (b *StatusBoard) GetStatus(id string) (downloader.TaskView, bool) {
	data, ok := b.statuses.Load(id)
	if !ok {
		return downloader.TaskView{}, false
	}
	out, ok := data.(downloader.TaskView)
	return out, ok
}

func (b *StatusBoard) Forget(ids ...string) {
	for _, id := range ids {
		b.statuses.Delete(id)
	}
}

func (b *StatusBoard) Advisory() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.advisory
}

func (b *StatusBoard) putStatus(view downloader.TaskView) {
	b.statuses.Store(view.ID, view)
}

func (b *StatusBoard) update(id string, fn func(*downloader.TaskView)) {
	view, ok := b.GetStatus(id)
	if !ok {
		return
	}
	fn(&view)
	b.putStatus(view)
}

func (b *StatusBoard) OnTaskCreated(task downloader.TaskView) {
	b.putStatus(task)
}

func (b *StatusBoard) OnTaskQueuePositionChanged(id string, position int) {
	b.update(id, func(v *downloader.TaskView) { v.QueuePosition = position })
}

func (b *StatusBoard) OnTaskStateChanged(id string, state downloader.State, message string) {
	zaplog.InfoC(b.ctx, "status update", zap.String("id", id), zap.String("status", state.String()))
	b.update(id, func(v *downloader.TaskView) {
		v.State = state
		v.Message = message
		if state != downloader.StateQueued {
			v.QueuePosition = 0
		}
		if state == downloader.StateCompleted {
			v.Percent = 100
			v.Indeterminate = false
			v.SpeedMbps = 0
		}
	})
}

func (b *StatusBoard) OnTaskProgress(id string, u downloader.Update) {
	b.update(id, func(v *downloader.TaskView) {
		v.Percent = u.Percent
		v.Indeterminate = u.Indeterminate
		v.StatusText = u.Text
		v.SpeedMbps = u.SpeedMbps
	})
}

func (b *StatusBoard) OnTaskInfo(id string, info *youtube.Info) {
	b.update(id, func(v *downloader.TaskView) {
		if info.Title != "" {
			v.Title = info.Title
		}
		v.Uploader = info.Uploader
		v.Duration = info.Duration
	})
}

// OnStatsChanged only logs; /stats reads the orchestrator snapshot.
func (b *StatusBoard) OnStatsChanged(total, succeeded, running, queued int) {
	zaplog.InfoC(b.ctx, "stats update", zap.Int("total", total), zap.Int("succeeded", succeeded),
		zap.Int("running", running), zap.Int("queued", queued))
}

func (b *StatusBoard) OnNetworkAdvisory(id string, message string) {
	zaplog.WarnC(b.ctx, "network advisory", zap.String("id", id))
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advisory = message
}
