package downloader

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gcottom/yt-dl-queue/pkg/youtube"
)

const textSeparator = "  •  "

// Update is an engine progress sample reduced to what listeners display.
type Update struct {
	Percent       float64
	Indeterminate bool
	Text          string
	SpeedMbps     float64
}

// Aggregate turns a raw engine sample into percent, status text and speed.
func Aggregate(p youtube.Progress) Update {
	if p.Status == youtube.StatusFinished {
		return Update{Percent: 100, Text: MessageProcessing}
	}

	var u Update
	total := p.TotalBytes
	if total <= 0 {
		total = p.TotalBytesEstimate
	}
	switch {
	case total > 0:
		u.Percent = clampPercent(float64(p.DownloadedBytes) / float64(total) * 100)
	default:
		if v, ok := parsePercent(p.PercentText); ok {
			u.Percent = clampPercent(v)
		} else {
			u.Indeterminate = true
		}
	}

	var parts []string
	if _, ok := parsePercent(p.PercentText); ok {
		parts = append(parts, strings.TrimSpace(p.PercentText))
	} else if !u.Indeterminate {
		parts = append(parts, fmt.Sprintf("%.1f%%", u.Percent))
	}
	if p.Speed > 0 {
		u.SpeedMbps = p.Speed * 8 / 1_000_000
		if speed := strings.TrimSpace(p.SpeedText); speed != "" {
			parts = append(parts, speed)
		} else {
			parts = append(parts, fmt.Sprintf("%.2f Mbit/s", u.SpeedMbps))
		}
	}
	if eta := strings.TrimSpace(p.ETAText); eta != "" && eta != youtube.UnknownETA {
		parts = append(parts, "ETA "+eta)
	}

	u.Text = strings.Join(parts, textSeparator)
	if u.Text == "" {
		u.Text = MessageDownloading
	}
	return u
}

func parsePercent(s string) (float64, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func clampPercent(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
