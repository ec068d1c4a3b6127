package youtube

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"
)

type progressReader struct {
	ctx        context.Context
	r          io.Reader
	total      int64
	estimate   int64
	downloaded int64
	started    time.Time
	limiter    *rate.Limiter
	emit       func(Progress)
}

func newProgressReader(ctx context.Context, r io.Reader, total, estimate int64, interval time.Duration, emit func(Progress)) *progressReader {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	return &progressReader{
		ctx:      ctx,
		r:        r,
		total:    total,
		estimate: estimate,
		started:  time.Now(),
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		emit:     emit,
	}
}

// Read is the cancellation checkpoint of a download.
func (p *progressReader) Read(b []byte) (int, error) {
	if err := p.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := p.r.Read(b)
	p.downloaded += int64(n)
	if p.limiter.Allow() || err == io.EOF {
		p.emit(Sample(p.downloaded, p.total, p.estimate, time.Since(p.started)))
	}
	return n, err
}

// Sample builds a downloading Progress from raw counters.
func Sample(downloaded, total, estimate int64, elapsed time.Duration) Progress {
	p := Progress{
		Status:             StatusDownloading,
		DownloadedBytes:    downloaded,
		TotalBytes:         total,
		TotalBytesEstimate: estimate,
		ETAText:            UnknownETA,
	}
	if elapsed > 0 {
		p.Speed = float64(downloaded) / elapsed.Seconds()
	}

	size := total
	if size <= 0 {
		size = estimate
	}
	if size > 0 {
		p.PercentText = fmt.Sprintf("%.1f%%", float64(downloaded)/float64(size)*100)
	}
	if p.Speed > 0 {
		p.SpeedText = humanize.Bytes(uint64(p.Speed)) + "/s"
		if size > downloaded {
			p.ETAText = FormatETA(time.Duration(float64(size-downloaded) / p.Speed * float64(time.Second)))
		} else if size > 0 {
			p.ETAText = FormatETA(0)
		}
	}
	return p
}

// FormatETA renders d as mm:ss, or hh:mm:ss past an hour.
func FormatETA(d time.Duration) string {
	secs := int(d.Round(time.Second).Seconds())
	hours := secs / 3600
	minutes := (secs % 3600) / 60
	seconds := secs % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
