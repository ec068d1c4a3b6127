package downloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gcottom/yt-dl-queue/pkg/youtube"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prepareTitle(res *youtube.Result, dir string) string {
	return filepath.Join(dir, res.Title+"."+res.Ext)
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestNormalize(t *testing.T) {
	entry := &youtube.Result{Type: youtube.ResultTypeVideo, Title: "second"}
	pl := &youtube.Result{Type: youtube.ResultTypePlaylist, Entries: []*youtube.Result{nil, entry}}
	assert.Same(t, entry, Normalize(pl))

	empty := &youtube.Result{Type: youtube.ResultTypeMultiVideo}
	assert.Same(t, empty, Normalize(empty))

	video := &youtube.Result{Type: youtube.ResultTypeVideo}
	assert.Same(t, video, Normalize(video))
	assert.Nil(t, Normalize(nil))
}

func TestCandidates(t *testing.T) {
	res := &youtube.Result{
		Filename:           "/d/reported.webm",
		RequestedDownloads: []youtube.RequestedDownload{{Filepath: "/d/final.mp3"}, {Filepath: ""}},
	}
	got := Candidates(res, "/d/song.webm", true)
	assert.Equal(t, []string{
		"/d/song.mp3", "/d/song.m4a", "/d/song.opus", "/d/song.aac", "/d/song.wav",
		"/d/final.mp3", "/d/reported.webm", "/d/song.webm",
	}, got)

	got = Candidates(res, "/d/reported.webm", false)
	assert.Equal(t, []string{"/d/final.mp3", "/d/reported.webm"}, got)
}

func TestResolveOutput_ExtractedAudio(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "title.mp3"))
	res := &youtube.Result{Type: youtube.ResultTypeVideo, Title: "title", Ext: "webm"}

	path, found := ResolveOutput(res, prepareTitle, dir, true)
	assert.True(t, found)
	assert.Equal(t, filepath.Join(dir, "title.mp3"), path)
}

func TestResolveOutput_RequestedDownloadWins(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "merged.mkv")
	touch(t, final)
	touch(t, filepath.Join(dir, "title.mp4"))
	res := &youtube.Result{
		Type:               youtube.ResultTypeVideo,
		Title:              "title",
		Ext:                "mp4",
		RequestedDownloads: []youtube.RequestedDownload{{Filepath: final}},
	}

	path, found := ResolveOutput(res, prepareTitle, dir, false)
	assert.True(t, found)
	assert.Equal(t, final, path)
}

func TestResolveOutput_Playlist(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "entry.mp4"))
	res := &youtube.Result{
		Type:    youtube.ResultTypePlaylist,
		Title:   "playlist",
		Entries: []*youtube.Result{nil, {Type: youtube.ResultTypeVideo, Title: "entry", Ext: "mp4"}},
	}

	path, found := ResolveOutput(res, prepareTitle, dir, false)
	assert.True(t, found)
	assert.Equal(t, filepath.Join(dir, "entry.mp4"), path)
}

func TestResolveOutput_NothingOnDisk(t *testing.T) {
	dir := t.TempDir()
	res := &youtube.Result{Type: youtube.ResultTypeVideo, Title: "gone", Ext: "mp4"}

	path, found := ResolveOutput(res, prepareTitle, dir, true)
	assert.False(t, found)
	assert.Equal(t, filepath.Join(dir, "gone.mp3"), path)

	path, found = ResolveOutput(nil, prepareTitle, dir, false)
	assert.False(t, found)
	assert.Empty(t, path)
}

func TestResolveOutput_IgnoresDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "title.mp4"), 0o755))
	res := &youtube.Result{Type: youtube.ResultTypeVideo, Title: "title", Ext: "mp4"}

	_, found := ResolveOutput(res, prepareTitle, dir, false)
	assert.False(t, found)
}
