package internal

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gcottom/go-zaplog"
	"go.uber.org/zap"
)

var (
	ErrInvalidURL = errors.New("url must start with http:// or https://")
	ErrNotDir     = errors.New("path exists and is not a directory")

	invalidPathChars = regexp.MustCompile(`[<>:"|?*\x00-\x1F]`)
)

// IsHTTPURL reports whether raw is an absolute http(s) URL with a host.
func IsHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func ValidateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !IsHTTPURL(raw) {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return raw, nil
}

// EnsureDir creates dir if needed and verifies it is a writable directory.
func EnsureDir(ctx context.Context, dir string) (string, error) {
	if dir == "" {
		return "", errors.New("output directory is empty")
	}
	dir, err := filepath.Abs(SanitizePath(dir))
	if err != nil {
		return "", fmt.Errorf("failed to resolve output directory: %w", err)
	}
	if fi, err := os.Stat(dir); err == nil && !fi.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotDir, dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		zaplog.ErrorC(ctx, "failed to create output directory", zap.String("dir", dir), zap.Error(err))
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	probe, err := os.CreateTemp(dir, ".write-test-*")
	if err != nil {
		zaplog.ErrorC(ctx, "output directory is not writable", zap.String("dir", dir), zap.Error(err))
		return "", fmt.Errorf("failed to write to output directory: %w", err)
	}
	probe.Close()
	os.Remove(probe.Name())
	return dir, nil
}

// DetectFFmpeg returns the ffmpeg binary to use, or "" when none is found.
func DetectFFmpeg(configured string) string {
	if configured != "" {
		if p, err := exec.LookPath(configured); err == nil {
			return p
		}
		return ""
	}
	if p, err := exec.LookPath("ffmpeg"); err == nil {
		return p
	}
	return ""
}

// SanitizePath replaces characters that are invalid in file names in every
// component of path. Separators and a leading volume or root are kept.
func SanitizePath(path string) string {
	vol := filepath.VolumeName(path)
	rest := filepath.ToSlash(path[len(vol):])
	abs := strings.HasPrefix(rest, "/")
	components := strings.Split(rest, "/")
	for i, component := range components {
		if component == "" || component == "." || component == ".." {
			continue
		}
		safeComponent := invalidPathChars.ReplaceAllString(component, "_")
		safeComponent = strings.Trim(safeComponent, " ")
		const maxLength = 255
		if len(safeComponent) > maxLength {
			safeComponent = safeComponent[:maxLength]
		}
		components[i] = safeComponent
	}
	sanitizedPath := filepath.Join(components...)
	if abs {
		sanitizedPath = string(filepath.Separator) + sanitizedPath
	}
	return vol + sanitizedPath
}

// FormatDuration renders d as m:ss or h:mm:ss.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	s := int(d.Round(time.Second).Seconds())
	h, m, s := s/3600, (s%3600)/60, s%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
