package youtube

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/kkdai/youtube/v2"
)

var ErrFormatUnavailable = errors.New("requested format is not available")

var heightLimitRegex = regexp.MustCompile(`height<=(\d+)`)

// SelectFormat picks a stream for a yt-dlp style selector. Only single-file
// streams are considered: "bestaudio..." (or extractAudio) selects the audio
// stream with the highest bitrate, anything else selects the tallest
// progressive stream that satisfies the first height<=N constraint.
func SelectFormat(formats youtube.FormatList, selector string, extractAudio bool) (*youtube.Format, error) {
	if extractAudio || strings.HasPrefix(strings.TrimSpace(selector), "bestaudio") {
		if f := bestAudio(formats); f != nil {
			return f, nil
		}
		// fall back to a progressive stream, audio gets extracted from it
		if f := bestProgressive(formats, 0); f != nil {
			return f, nil
		}
		return nil, ErrFormatUnavailable
	}

	if f := bestProgressive(formats, HeightLimit(selector)); f != nil {
		return f, nil
	}
	return nil, ErrFormatUnavailable
}

// HeightLimit returns the first height<=N bound in selector, 0 if none.
func HeightLimit(selector string) int {
	m := heightLimitRegex.FindStringSubmatch(selector)
	if len(m) < 2 {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

func bestAudio(formats youtube.FormatList) *youtube.Format {
	var best *youtube.Format
	for i := range formats {
		f := formats[i]
		if f.AudioChannels == 0 || !strings.HasPrefix(f.MimeType, "audio/") {
			continue
		}
		if best == nil || f.Bitrate > best.Bitrate || (f.Bitrate == best.Bitrate && ExtFromMime(f.MimeType) == "m4a") {
			best = &formats[i]
		}
	}
	return best
}

func bestProgressive(formats youtube.FormatList, maxHeight int) *youtube.Format {
	var best *youtube.Format
	for i := range formats {
		f := formats[i]
		if f.AudioChannels == 0 || !strings.HasPrefix(f.MimeType, "video/") {
			continue
		}
		if maxHeight > 0 && f.Height > maxHeight {
			continue
		}
		if best == nil || f.Height > best.Height || (f.Height == best.Height && f.Bitrate > best.Bitrate) {
			best = &formats[i]
		}
	}
	return best
}

// ExtFromMime maps a stream mime type to the extension yt-dlp would use.
func ExtFromMime(mime string) string {
	base := strings.TrimSpace(strings.SplitN(mime, ";", 2)[0])
	switch base {
	case "video/mp4":
		return "mp4"
	case "audio/mp4":
		return "m4a"
	case "video/webm", "audio/webm":
		return "webm"
	case "video/3gpp":
		return "3gp"
	case "audio/mpeg":
		return "mp3"
	}
	if i := strings.Index(base, "/"); i >= 0 && i < len(base)-1 {
		return base[i+1:]
	}
	return "bin"
}
