package meta

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/gcottom/go-zaplog"
	"github.com/gcottom/yt-dl-queue/pkg/youtube"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProber struct {
	calls int
	info  *youtube.Info
	err   error
}

func (p *stubProber) Probe(_ context.Context, url string) (*youtube.Info, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.info, nil
}

func TestLookup(t *testing.T) {
	ctx := zaplog.CreateAndInject(context.Background())
	prober := &stubProber{info: &youtube.Info{ID: "abc", Title: "Song"}}
	s := NewService(prober, 2, 3)

	info, err := s.Lookup(ctx, "https://youtu.be/abc")
	require.NoError(t, err)
	assert.Equal(t, "Song", info.Title)
	assert.Equal(t, 1, prober.calls)
}

func TestLookup_Fails(t *testing.T) {
	ctx := zaplog.CreateAndInject(context.Background())
	prober := &stubProber{err: errors.New("HTTP Error 403")}
	s := NewService(prober, 1, 1)

	_, err := s.Lookup(ctx, "https://youtu.be/abc")
	require.Error(t, err)
	assert.GreaterOrEqual(t, prober.calls, 1)

	_, err = (&Service{}).Lookup(ctx, "x")
	require.ErrorIs(t, err, ErrNoProber)
}

func TestSanitizeAuthor(t *testing.T) {
	s := &Service{}
	tests := map[string]string{
		"Daft Punk - Topic":   "Daft Punk",
		"TaylorSwiftVEVO":     "TaylorSwift",
		"Muse Official":       "Muse",
		"@someone":            "someone",
		"  Plain Channel  ":   "Plain Channel",
		"Artist - Topic VEVO": "Artist",
	}
	for in, want := range tests {
		assert.Equal(t, want, s.SanitizeAuthor(in), in)
	}
}

func TestSanitizeParenthesis(t *testing.T) {
	s := &Service{}
	assert.Equal(t, "Song", s.SanitizeParenthesis("Song (Official Video) [4K]"))
	assert.Equal(t, "A B", s.SanitizeParenthesis("A (x) B"))
}

func TestTrackMetaFromInfo(t *testing.T) {
	s := &Service{}
	got := s.TrackMetaFromInfo(&youtube.Info{Title: "Daft Punk - One More Time (Official Video)", Uploader: "Some Label VEVO", ThumbnailURL: "http://img"})
	assert.Equal(t, TrackMeta{Title: "One More Time", Artist: "Daft Punk", Album: "One More Time", CoverArtURL: "http://img"}, got)

	got = s.TrackMetaFromInfo(&youtube.Info{Title: "Lecture 1", Uploader: "MIT - Topic"})
	assert.Equal(t, "Lecture 1", got.Title)
	assert.Equal(t, "MIT", got.Artist)
}

func TestProcess(t *testing.T) {
	ctx := zaplog.CreateAndInject(context.Background())
	s := NewService(nil, 1, 1)

	require.NoError(t, s.Process(ctx, "whatever.mp3", nil))
	err := s.Process(ctx, filepath.Join(t.TempDir(), "missing.mp3"), &youtube.Info{Title: "x"})
	require.Error(t, err)
}
