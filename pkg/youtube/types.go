package youtube

import (
	"context"
	"net/http"
	"time"

	"github.com/kkdai/youtube/v2"
)

const (
	ResultTypeVideo      = "video"
	ResultTypePlaylist   = "playlist"
	ResultTypeMultiVideo = "multi_video"
)

const (
	StatusDownloading = "downloading"
	StatusFinished    = "finished"
)

// UnknownETA is reported in Progress.ETAText when no estimate is possible.
const UnknownETA = "Unknown ETA"

const (
	DefaultOutputTemplate   = "%(title).180B.%(ext)s"
	DefaultProgressInterval = 500 * time.Millisecond
	DefaultAudioCodec       = "mp3"
	DefaultAudioQuality     = "192k"
)

// PostProcessor runs on an extracted audio file after transcoding.
type PostProcessor interface {
	Process(ctx context.Context, path string, info *Info) error
}

type Client struct {
	YTClient         *youtube.Client
	FFmpegPath       string
	OutputTemplate   string
	ProgressInterval time.Duration
	AudioTagger      PostProcessor
}

func NewClient() *Client {
	return &Client{
		YTClient:         &youtube.Client{HTTPClient: http.DefaultClient},
		OutputTemplate:   DefaultOutputTemplate,
		ProgressInterval: DefaultProgressInterval,
	}
}

// Info is the metadata-only view returned by Probe.
type Info struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Uploader     string        `json:"uploader,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
	ThumbnailURL string        `json:"thumbnail_url,omitempty"`
	WebpageURL   string        `json:"webpage_url,omitempty"`
	Raw          *Result       `json:"-"`
}

type RequestedDownload struct {
	Filepath string `json:"filepath"`
	FormatID string `json:"format_id,omitempty"`
}

// Result describes what a Fetch produced. Playlist-like results carry their
// items in Entries; a nil entry stands for an item that was not downloaded.
type Result struct {
	Type               string              `json:"_type"`
	ID                 string              `json:"id"`
	Title              string              `json:"title"`
	Uploader           string              `json:"uploader,omitempty"`
	Duration           time.Duration       `json:"duration,omitempty"`
	Ext                string              `json:"ext,omitempty"`
	WebpageURL         string              `json:"webpage_url,omitempty"`
	ThumbnailURL       string              `json:"thumbnail_url,omitempty"`
	Filename           string              `json:"_filename,omitempty"`
	RequestedDownloads []RequestedDownload `json:"requested_downloads,omitempty"`
	Entries            []*Result           `json:"entries,omitempty"`
}

type FetchRequest struct {
	URL          string
	Format       string
	OutputDir    string
	ExtractAudio bool
}

// Progress is one sample emitted while a Fetch runs. TotalBytes is exact when
// known, TotalBytesEstimate is used otherwise. Speed is in bytes per second.
type Progress struct {
	Status             string  `json:"status"`
	DownloadedBytes    int64   `json:"downloaded_bytes"`
	TotalBytes         int64   `json:"total_bytes,omitempty"`
	TotalBytesEstimate int64   `json:"total_bytes_estimate,omitempty"`
	Speed              float64 `json:"speed,omitempty"`
	PercentText        string  `json:"_percent_str,omitempty"`
	SpeedText          string  `json:"_speed_str,omitempty"`
	ETAText            string  `json:"_eta_str,omitempty"`
}
