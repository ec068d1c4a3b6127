package meta

import (
	"context"
	"net/http"

	"github.com/gcottom/semaphore"
	"github.com/gcottom/yt-dl-queue/pkg/youtube"
)

const DefaultAttempts = 3

// Prober fetches metadata without downloading media.
type Prober interface {
	Probe(ctx context.Context, url string) (*youtube.Info, error)
}

type Service struct {
	Prober     Prober
	Limiter    *semaphore.Semaphore
	Attempts   int
	HTTPClient *http.Client
}

func NewService(prober Prober, limit, attempts int) *Service {
	if limit < 1 {
		limit = 1
	}
	if attempts < 1 {
		attempts = DefaultAttempts
	}
	return &Service{
		Prober:     prober,
		Limiter:    semaphore.NewSemaphore(limit),
		Attempts:   attempts,
		HTTPClient: http.DefaultClient,
	}
}

type TrackMeta struct {
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album,omitempty"`
	CoverArtURL string `json:"cover_art_url,omitempty"`
}
