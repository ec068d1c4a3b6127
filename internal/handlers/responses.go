package handlers

import (
	"errors"
	"net/http"

	"github.com/gcottom/yt-dl-queue/config"
	"github.com/gcottom/yt-dl-queue/internal/services/downloader"
	"github.com/gcottom/yt-dl-queue/pkg/youtube"
	"github.com/gin-gonic/gin"
)

type Failure struct {
	Error string `json:"error"`
}

type StartDownloadResponse struct {
	State string `json:"state"`
	ID    string `json:"id,omitempty"`
}

type CancelAllResponse struct {
	Cancelled int `json:"cancelled"`
}

type ClearFinishedResponse struct {
	Removed []string `json:"removed"`
}

type StatsResponse struct {
	downloader.Stats
	MaxParallel int    `json:"max_parallel,omitempty"`
	Advisory    string `json:"advisory,omitempty"`
}

type ParallelResponse struct {
	MaxParallel int `json:"max_parallel"`
}

type InfoResponse struct {
	*youtube.Info
	DurationText string `json:"duration_text,omitempty"`
}

type PresetsResponse struct {
	Default string          `json:"default"`
	Presets []config.Preset `json:"presets"`
}

func ResponseFailure(ctx *gin.Context, err error) {
	respondError(ctx, http.StatusBadRequest, err)
}

func ResponseNotFound(ctx *gin.Context, err error) {
	respondError(ctx, http.StatusNotFound, err)
}

func ResponseInternalError(ctx *gin.Context, err error) {
	respondError(ctx, http.StatusInternalServerError, err)
}

// ResponseServiceError maps orchestrator errors to a status code.
func ResponseServiceError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, downloader.ErrTaskNotFound):
		ResponseNotFound(ctx, err)
	case errors.Is(err, downloader.ErrClosed):
		respondError(ctx, http.StatusServiceUnavailable, err)
	case errors.Is(err, downloader.ErrTaskBusy), errors.Is(err, downloader.ErrInvalidParallel):
		ResponseFailure(ctx, err)
	default:
		ResponseInternalError(ctx, err)
	}
}

func ResponseSuccess(ctx *gin.Context, data any) {
	ctx.JSON(http.StatusOK, data)
}

func respondError(ctx *gin.Context, code int, err error) {
	_ = ctx.Error(err)
	ctx.AbortWithStatusJSON(code, Failure{Error: err.Error()})
}
