package youtube

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gcottom/go-zaplog"
	"go.uber.org/zap"
)

var ErrFFmpegMissing = errors.New("ffmpeg is required for audio extraction")

// extractAudio transcodes path to mp3 next to it and removes the source. The
// returned path is the post-processed file.
func (c *Client) extractAudio(ctx context.Context, path string, res *Result) (string, error) {
	out := strings.TrimSuffix(path, filepath.Ext(path)) + "." + DefaultAudioCodec
	if out != path {
		if err := ConvertToMP3(ctx, c.FFmpegPath, path, out); err != nil {
			return "", err
		}
		_ = os.Remove(path)
	}
	if c.AudioTagger != nil {
		info := &Info{ID: res.ID, Title: res.Title, Uploader: res.Uploader, Duration: res.Duration, ThumbnailURL: res.ThumbnailURL, WebpageURL: res.WebpageURL, Raw: res}
		if err := c.AudioTagger.Process(ctx, out, info); err != nil {
			zaplog.WarnC(ctx, "failed to tag audio file", zap.String("path", out), zap.Error(err))
		}
	}
	return out, nil
}

func ConvertToMP3(ctx context.Context, ffmpegPath, in, out string) error {
	if ffmpegPath == "" {
		return ErrFFmpegMissing
	}
	args := []string{"-y", "-i", in, "-vn", "-c:a", "libmp3lame", "-b:a", DefaultAudioQuality, out}
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		_ = os.Remove(out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		zaplog.ErrorC(ctx, "conversion error", zap.String("in", in), zap.Error(err))
		return fmt.Errorf("failed to convert file: %w: %s", err, lastLine(stderr.String()))
	}
	return nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "\n"); i >= 0 {
		return s[i+1:]
	}
	return s
}
