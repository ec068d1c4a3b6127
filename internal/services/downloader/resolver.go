package downloader

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gcottom/yt-dl-queue/pkg/youtube"
)

// AudioExtensions are tried, in order, when audio extraction was requested.
var AudioExtensions = []string{"mp3", "m4a", "opus", "aac", "wav"}

// Normalize reduces playlist results to their first real entry.
func Normalize(res *youtube.Result) *youtube.Result {
	if res == nil {
		return nil
	}
	if res.Type == youtube.ResultTypePlaylist || res.Type == youtube.ResultTypeMultiVideo {
		for _, e := range res.Entries {
			if e != nil {
				return e
			}
		}
	}
	return res
}

// Candidates lists possible output paths, most likely first. Duplicates are
// dropped.
func Candidates(res *youtube.Result, prepared string, extractAudio bool) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		out = append(out, p)
	}

	if extractAudio && prepared != "" {
		base := strings.TrimSuffix(prepared, filepath.Ext(prepared))
		for _, ext := range AudioExtensions {
			add(base + "." + ext)
		}
	}
	if res != nil {
		for _, rd := range res.RequestedDownloads {
			add(rd.Filepath)
		}
		add(res.Filename)
	}
	add(prepared)
	return out
}

// ResolveOutput returns the first candidate that exists on disk. When none
// does it returns the first candidate with found set to false.
func ResolveOutput(res *youtube.Result, prepare func(*youtube.Result, string) string, outputDir string, extractAudio bool) (path string, found bool) {
	res = Normalize(res)
	var prepared string
	if res != nil && prepare != nil {
		prepared = prepare(res, outputDir)
	}
	candidates := Candidates(res, prepared, extractAudio)
	for _, c := range candidates {
		if fi, err := os.Stat(c); err == nil && !fi.IsDir() {
			return c, true
		}
	}
	if len(candidates) > 0 {
		return candidates[0], false
	}
	return "", false
}
