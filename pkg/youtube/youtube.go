package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/gcottom/go-zaplog"
	"github.com/kkdai/youtube/v2"
	"go.uber.org/zap"
)

var ErrNoPlayableEntry = errors.New("playlist has no playable entry")

func (c *Client) Probe(ctx context.Context, rawURL string) (*Info, error) {
	zaplog.InfoC(ctx, "probing url", zap.String("url", rawURL))
	video, _, _, err := c.resolve(ctx, rawURL)
	if err != nil {
		zaplog.ErrorC(ctx, "failed to probe url", zap.String("url", rawURL), zap.Error(err))
		return nil, err
	}
	res := resultFromVideo(video, rawURL)
	return &Info{
		ID:           res.ID,
		Title:        res.Title,
		Uploader:     res.Uploader,
		Duration:     res.Duration,
		ThumbnailURL: res.ThumbnailURL,
		WebpageURL:   res.WebpageURL,
		Raw:          res,
	}, nil
}

// Fetch downloads the media behind req.URL into req.OutputDir. ctx is the
// cancel signal: it is checked on every read of the media stream and passed to
// ffmpeg during audio extraction.
func (c *Client) Fetch(ctx context.Context, req FetchRequest, onProgress func(Progress)) (*Result, error) {
	if onProgress == nil {
		onProgress = func(Progress) {}
	}
	zaplog.InfoC(ctx, "fetching video info", zap.String("url", req.URL))
	video, playlist, index, err := c.resolve(ctx, req.URL)
	if err != nil {
		zaplog.ErrorC(ctx, "failed to get video info", zap.String("url", req.URL), zap.Error(err))
		return nil, fmt.Errorf("failed to get video info: %w", err)
	}
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	format, err := SelectFormat(video.Formats, req.Format, req.ExtractAudio)
	if err != nil {
		zaplog.ErrorC(ctx, "failed to select format", zap.String("url", req.URL), zap.String("format", req.Format), zap.Error(err))
		return nil, err
	}
	zaplog.InfoC(ctx, "format selected", zap.String("id", video.ID), zap.Int("itag", format.ItagNo), zap.String("mime", format.MimeType))

	res := resultFromVideo(video, req.URL)
	res.Ext = ExtFromMime(format.MimeType)
	path := c.PrepareFilename(res, req.OutputDir)
	res.Filename = path

	if err = os.MkdirAll(req.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	if err = c.download(ctx, video, format, path, onProgress); err != nil {
		return nil, err
	}
	onProgress(Progress{Status: StatusFinished})

	final := path
	if req.ExtractAudio {
		if final, err = c.extractAudio(ctx, path, res); err != nil {
			return nil, err
		}
	}
	res.RequestedDownloads = []RequestedDownload{{Filepath: final, FormatID: strconv.Itoa(format.ItagNo)}}
	zaplog.InfoC(ctx, "successfully downloaded media", zap.String("id", video.ID), zap.String("path", final))

	if playlist == nil {
		return res, nil
	}
	entries := make([]*Result, index+1)
	entries[index] = res
	return &Result{
		Type:       ResultTypePlaylist,
		ID:         playlist.ID,
		Title:      playlist.Title,
		Uploader:   playlist.Author,
		WebpageURL: req.URL,
		Entries:    entries,
	}, nil
}

func (c *Client) download(ctx context.Context, video *youtube.Video, format *youtube.Format, path string, onProgress func(Progress)) error {
	zaplog.InfoC(ctx, "downloading youtube stream", zap.String("id", video.ID))
	stream, size, err := c.YTClient.GetStreamContext(ctx, video, format)
	if err != nil {
		zaplog.ErrorC(ctx, "failed to get stream", zap.String("id", video.ID), zap.Error(err))
		return fmt.Errorf("failed to get stream: %w", err)
	}
	defer stream.Close()

	if size <= 0 {
		size = format.ContentLength
	}
	estimate := int64(0)
	if size <= 0 && format.Bitrate > 0 {
		estimate = int64(video.Duration.Seconds() * float64(format.Bitrate) / 8)
	}

	part := path + ".part"
	out, err := os.Create(part)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	reader := newProgressReader(ctx, stream, size, estimate, c.ProgressInterval, onProgress)
	_, err = io.Copy(out, reader)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(part)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		zaplog.ErrorC(ctx, "failed to read stream", zap.String("id", video.ID), zap.Error(err))
		return fmt.Errorf("failed to read stream: %w", err)
	}
	if err = os.Rename(part, path); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

// resolve returns the video behind rawURL. For playlist URLs the first entry
// that can be loaded is used, and its index within the playlist is returned.
func (c *Client) resolve(ctx context.Context, rawURL string) (*youtube.Video, *youtube.Playlist, int, error) {
	if !IsPlaylistURL(rawURL) {
		video, err := c.YTClient.GetVideoContext(ctx, rawURL)
		if err != nil {
			return nil, nil, 0, err
		}
		return video, nil, 0, nil
	}

	zaplog.InfoC(ctx, "getting playlist entries", zap.String("url", rawURL))
	playlist, err := c.YTClient.GetPlaylistContext(ctx, rawURL)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to get playlist: %w", err)
	}
	for i, entry := range playlist.Videos {
		if entry == nil {
			continue
		}
		video, err := c.YTClient.VideoFromPlaylistEntryContext(ctx, entry)
		if err != nil {
			zaplog.WarnC(ctx, "skipping playlist entry", zap.String("id", entry.ID), zap.Error(err))
			continue
		}
		return video, playlist, i, nil
	}
	return nil, nil, 0, ErrNoPlayableEntry
}

// IsPlaylistURL reports whether rawURL names a playlist rather than a single
// video inside one.
func IsPlaylistURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if strings.Contains(u.Host, "youtu.be") {
		return false
	}
	q := u.Query()
	return q.Get("list") != "" && q.Get("v") == ""
}

func resultFromVideo(video *youtube.Video, rawURL string) *Result {
	res := &Result{
		Type:       ResultTypeVideo,
		ID:         video.ID,
		Title:      video.Title,
		Uploader:   video.Author,
		Duration:   video.Duration,
		WebpageURL: rawURL,
	}
	if n := len(video.Thumbnails); n > 0 {
		res.ThumbnailURL = video.Thumbnails[n-1].URL
	}
	return res
}
