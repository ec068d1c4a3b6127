package meta

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"regexp"
	"strings"

	"github.com/gcottom/audiometa/v3"
	"github.com/gcottom/go-zaplog"
	"github.com/gcottom/retry"
	"github.com/gcottom/yt-dl-queue/pkg/youtube"
	"go.uber.org/zap"
)

var ErrNoProber = errors.New("meta service has no prober")

var (
	parenthesisRegex = regexp.MustCompile(`\([^\(\)]*\)|\[[^\[\]]*\]`)
	authorRegex      = regexp.MustCompile(`(?i)\s*-\s*topic$|\s*-?\s*vevo$|\s*-?\s*official$|^@`)
	whitespaceRegex  = regexp.MustCompile(`\s+`)
)

// Lookup probes url, retrying transient failures. Concurrent lookups are
// bounded by the Limiter.
func (s *Service) Lookup(ctx context.Context, url string) (*youtube.Info, error) {
	if s.Prober == nil {
		return nil, ErrNoProber
	}
	if s.Limiter != nil {
		s.Limiter.Acquire()
		defer s.Limiter.Release()
	}
	attempts := s.Attempts
	if attempts < 1 {
		attempts = DefaultAttempts
	}
	zaplog.InfoC(ctx, "looking up info", zap.String("url", url))
	res, err := retry.Retry(retry.NewAlgSimpleDefault(), attempts, s.probe, ctx, url)
	if err != nil {
		zaplog.ErrorC(ctx, "failed to look up info", zap.String("url", url), zap.Error(err))
		return nil, err
	}
	info, ok := res[0].(*youtube.Info)
	if !ok || info == nil {
		return nil, fmt.Errorf("failed to look up info: unexpected result for %s", url)
	}
	return info, nil
}

func (s *Service) probe(ctx context.Context, url string) (*youtube.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Prober.Probe(ctx, url)
}

// Process tags an extracted audio file with the video's metadata.
func (s *Service) Process(ctx context.Context, path string, info *youtube.Info) error {
	if info == nil {
		return nil
	}
	if s.Limiter != nil {
		s.Limiter.Acquire()
		defer s.Limiter.Release()
	}
	trackMeta := s.TrackMetaFromInfo(info)
	zaplog.InfoC(ctx, "tagging audio file", zap.String("path", path), zap.String("title", trackMeta.Title), zap.String("artist", trackMeta.Artist))

	b, err := s.AddMeta(ctx, path, trackMeta)
	if err != nil {
		return err
	}
	if err = os.WriteFile(path, b, 0o644); err != nil {
		zaplog.ErrorC(ctx, "failed to write tagged file", zap.Error(err))
		return fmt.Errorf("failed to write tagged file: %w", err)
	}
	return nil
}

// AddMeta returns the contents of path with trackMeta written into its tag.
func (s *Service) AddMeta(ctx context.Context, path string, trackMeta TrackMeta) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		zaplog.ErrorC(ctx, "failed to open file", zap.Error(err))
		return nil, err
	}
	defer f.Close()
	tag, err := audiometa.OpenTag(f)
	if err != nil {
		zaplog.ErrorC(ctx, "failed to open tag", zap.Error(err))
		return nil, fmt.Errorf("failed to open tag: %w", err)
	}
	tag.SetTitle(trackMeta.Title)
	tag.SetArtist(trackMeta.Artist)
	tag.SetAlbum(trackMeta.Album)
	if trackMeta.CoverArtURL != "" {
		if img, err := s.fetchCoverArt(ctx, trackMeta.CoverArtURL); err != nil {
			zaplog.WarnC(ctx, "skipping cover art", zap.String("url", trackMeta.CoverArtURL), zap.Error(err))
		} else {
			tag.SetCoverArt(&img)
		}
	}
	out := new(bytes.Buffer)
	if err = tag.Save(out); err != nil {
		zaplog.ErrorC(ctx, "failed to save tag", zap.Error(err))
		return nil, fmt.Errorf("failed to save tag: %w", err)
	}
	return out.Bytes(), nil
}

func (s *Service) fetchCoverArt(ctx context.Context, url string) (image.Image, error) {
	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cover art request returned %d", resp.StatusCode)
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (s *Service) TrackMetaFromInfo(info *youtube.Info) TrackMeta {
	title := strings.TrimSpace(info.Title)
	artist := s.SanitizeAuthor(info.Uploader)
	// "Artist - Song" titles carry a better artist than the channel name
	if parts := strings.SplitN(title, " - ", 2); len(parts) == 2 && strings.TrimSpace(parts[0]) != "" {
		artist = strings.TrimSpace(parts[0])
		title = strings.TrimSpace(parts[1])
	}
	title = s.SanitizeParenthesis(title)
	return TrackMeta{
		Title:       title,
		Artist:      artist,
		Album:       title,
		CoverArtURL: info.ThumbnailURL,
	}
}

func (s *Service) SanitizeParenthesis(str string) string {
	str = parenthesisRegex.ReplaceAllString(str, "")
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(str, " "))
}

// SanitizeAuthor strips channel decorations such as " - Topic" or "VEVO".
func (s *Service) SanitizeAuthor(author string) string {
	author = strings.TrimSpace(author)
	for {
		next := strings.TrimSpace(authorRegex.ReplaceAllString(author, ""))
		if next == author {
			return author
		}
		author = next
	}
}
