package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gcottom/go-zaplog"
	"github.com/gcottom/yt-dl-queue/config"
	"github.com/gcottom/yt-dl-queue/internal"
	"github.com/gcottom/yt-dl-queue/internal/history"
	"github.com/gcottom/yt-dl-queue/internal/services/downloader"
	"github.com/gcottom/yt-dl-queue/pkg/youtube"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Orchestrator interface {
	Submit(ctx context.Context, req downloader.Request) (string, error)
	Cancel(ctx context.Context, id string) error
	CancelAll(ctx context.Context) (int, error)
	Remove(ctx context.Context, id string) error
	ClearFinished(ctx context.Context) ([]string, error)
	SetMaxParallel(ctx context.Context, n int) error
	Task(ctx context.Context, id string) (downloader.TaskView, error)
	Snapshot(ctx context.Context) (downloader.Snapshot, error)
}

type InfoLookup interface {
	Lookup(ctx context.Context, url string) (*youtube.Info, error)
}

type HistoryLister interface {
	List(ctx context.Context, limit int) ([]history.Entry, error)
}

type Handlers struct {
	Downloader Orchestrator
	Board      *StatusBoard
	Meta       InfoLookup
	History    HistoryLister
	Config     *config.Config
	FFmpegPath string
}

func SetupRoutes(router *gin.Engine, handler *Handlers) {
	router.GET("/download", handler.StartDownload)
	router.GET("/status", handler.GetStatus)
	router.GET("/tasks", handler.ListTasks)
	router.GET("/cancel", handler.CancelTask)
	router.GET("/cancel-all", handler.CancelAll)
	router.GET("/remove", handler.RemoveTask)
	router.GET("/clear-finished", handler.ClearFinished)
	router.GET("/stats", handler.GetStats)
	router.GET("/parallel", handler.SetParallel)
	router.GET("/info", handler.GetInfo)
	router.GET("/presets", handler.GetPresets)
	router.GET("/history", handler.GetHistory)
}

func (h *Handlers) StartDownload(ctx *gin.Context) {
	rawURL := ctx.Query("url")
	if rawURL == "" {
		zaplog.WarnC(ctx, "start download request without url present: url is required")
		ResponseFailure(ctx, errors.New("start download request without url present: url is required"))
		return
	}
	url, err := internal.ValidateURL(rawURL)
	if err != nil {
		zaplog.WarnC(ctx, "start download request with invalid url", zap.String("url", rawURL))
		ResponseFailure(ctx, err)
		return
	}
	preset, ok := h.Config.Preset(ctx.Query("preset"))
	if !ok {
		zaplog.WarnC(ctx, "start download request with unknown preset", zap.String("preset", ctx.Query("preset")))
		ResponseFailure(ctx, fmt.Errorf("unknown preset %q", ctx.Query("preset")))
		return
	}
	if preset.ExtractAudio && h.FFmpegPath == "" {
		zaplog.WarnC(ctx, "audio preset requested without ffmpeg", zap.String("preset", preset.Label))
		ResponseFailure(ctx, youtube.ErrFFmpegMissing)
		return
	}
	dir := ctx.Query("dir")
	if dir == "" {
		dir = h.Config.SaveDir
	}
	dir, err = internal.EnsureDir(ctx, dir)
	if err != nil {
		ResponseFailure(ctx, err)
		return
	}

	zaplog.InfoC(ctx, "start download request received", zap.String("url", url), zap.String("preset", preset.Label))
	id, err := h.Downloader.Submit(ctx, downloader.Request{
		URL:          url,
		Format:       preset.Format,
		ExtractAudio: preset.ExtractAudio,
		OutputDir:    dir,
		FormatLabel:  preset.Label,
	})
	if err != nil {
		zaplog.ErrorC(ctx, "error starting download", zap.Error(err))
		ResponseServiceError(ctx, err)
		return
	}
	zaplog.InfoC(ctx, "start download request queued successfully", zap.String("id", id))
	ResponseSuccess(ctx, StartDownloadResponse{State: "ACK", ID: id})
}

func (h *Handlers) GetStatus(ctx *gin.Context) {
	id := ctx.Query("id")
	if id == "" {
		zaplog.WarnC(ctx, "get status request without ID present: ID is required")
		ResponseFailure(ctx, errors.New("get status request without ID present: ID is required"))
		return
	}
	status, ok := h.Board.GetStatus(id)
	if !ok || status.State.IsTerminal() {
		// terminal views carry the resolved path and error only in the orchestrator
		view, err := h.Downloader.Task(ctx, id)
		if err != nil {
			ResponseServiceError(ctx, err)
			return
		}
		status = view
	}
	ResponseSuccess(ctx, status)
}

func (h *Handlers) ListTasks(ctx *gin.Context) {
	snap, err := h.Downloader.Snapshot(ctx)
	if err != nil {
		zaplog.ErrorC(ctx, "error listing tasks", zap.Error(err))
		ResponseServiceError(ctx, err)
		return
	}
	if snap.Tasks == nil {
		snap.Tasks = []downloader.TaskView{}
	}
	ResponseSuccess(ctx, snap)
}

func (h *Handlers) CancelTask(ctx *gin.Context) {
	id := ctx.Query("id")
	if id == "" {
		zaplog.WarnC(ctx, "cancel request without ID present: ID is required")
		ResponseFailure(ctx, errors.New("cancel request without ID present: ID is required"))
		return
	}
	zaplog.InfoC(ctx, "cancel request received", zap.String("id", id))
	if err := h.Downloader.Cancel(ctx, id); err != nil {
		zaplog.WarnC(ctx, "error cancelling task", zap.String("id", id), zap.Error(err))
		ResponseServiceError(ctx, err)
		return
	}
	ResponseSuccess(ctx, StartDownloadResponse{State: "ACK", ID: id})
}

func (h *Handlers) CancelAll(ctx *gin.Context) {
	n, err := h.Downloader.CancelAll(ctx)
	if err != nil {
		zaplog.ErrorC(ctx, "error cancelling all tasks", zap.Error(err))
		ResponseServiceError(ctx, err)
		return
	}
	zaplog.InfoC(ctx, "cancelled all tasks", zap.Int("count", n))
	ResponseSuccess(ctx, CancelAllResponse{Cancelled: n})
}

func (h *Handlers) RemoveTask(ctx *gin.Context) {
	id := ctx.Query("id")
	if id == "" {
		zaplog.WarnC(ctx, "remove request without ID present: ID is required")
		ResponseFailure(ctx, errors.New("remove request without ID present: ID is required"))
		return
	}
	if err := h.Downloader.Remove(ctx, id); err != nil {
		zaplog.WarnC(ctx, "error removing task", zap.String("id", id), zap.Error(err))
		ResponseServiceError(ctx, err)
		return
	}
	h.Board.Forget(id)
	ResponseSuccess(ctx, StartDownloadResponse{State: "ACK", ID: id})
}

func (h *Handlers) ClearFinished(ctx *gin.Context) {
	removed, err := h.Downloader.ClearFinished(ctx)
	if err != nil {
		zaplog.ErrorC(ctx, "error clearing finished tasks", zap.Error(err))
		ResponseServiceError(ctx, err)
		return
	}
	h.Board.Forget(removed...)
	if removed == nil {
		removed = []string{}
	}
	ResponseSuccess(ctx, ClearFinishedResponse{Removed: removed})
}

func (h *Handlers) GetStats(ctx *gin.Context) {
	snap, err := h.Downloader.Snapshot(ctx)
	if err != nil {
		ResponseServiceError(ctx, err)
		return
	}
	ResponseSuccess(ctx, StatsResponse{Stats: snap.Stats, MaxParallel: snap.MaxParallel, Advisory: h.Board.Advisory()})
}

func (h *Handlers) SetParallel(ctx *gin.Context) {
	value, err := strconv.Atoi(ctx.Query("value"))
	if err != nil {
		zaplog.WarnC(ctx, "parallel request with invalid value", zap.String("value", ctx.Query("value")))
		ResponseFailure(ctx, fmt.Errorf("value must be an integer: %w", err))
		return
	}
	n := config.ClampParallel(value)
	if err := h.Downloader.SetMaxParallel(ctx, n); err != nil {
		ResponseServiceError(ctx, err)
		return
	}
	ResponseSuccess(ctx, ParallelResponse{MaxParallel: n})
}

func (h *Handlers) GetInfo(ctx *gin.Context) {
	url, err := internal.ValidateURL(ctx.Query("url"))
	if err != nil {
		ResponseFailure(ctx, err)
		return
	}
	info, err := h.Meta.Lookup(ctx, url)
	if err != nil {
		zaplog.ErrorC(ctx, "error probing url", zap.String("url", url), zap.Error(err))
		ResponseFailure(ctx, err)
		return
	}
	ResponseSuccess(ctx, InfoResponse{Info: info, DurationText: internal.FormatDuration(info.Duration)})
}

func (h *Handlers) GetPresets(ctx *gin.Context) {
	ResponseSuccess(ctx, PresetsResponse{Default: h.Config.DefaultPreset, Presets: h.Config.Presets})
}

func (h *Handlers) GetHistory(ctx *gin.Context) {
	if h.History == nil {
		ResponseSuccess(ctx, []history.Entry{})
		return
	}
	limit, _ := strconv.Atoi(ctx.Query("limit"))
	entries, err := h.History.List(ctx, limit)
	if err != nil {
		zaplog.ErrorC(ctx, "error listing history", zap.Error(err))
		ResponseInternalError(ctx, err)
		return
	}
	ResponseSuccess(ctx, entries)
}
