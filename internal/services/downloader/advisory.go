package downloader

import "strings"

const AdvisoryMessage = "The download failed in a way that suggests the network is blocking or " +
	"throttling the site. A VPN or a different network may help."

var restrictionKeywords = []string{
	"403",
	"429",
	"forbidden",
	"geo",
	"blocked",
	"restricted",
	"connection",
	"timeout",
	"timed out",
	"unable to download",
	"http error",
}

// IsNetworkRestricted reports whether an error message looks like a
// network-level restriction.
func IsNetworkRestricted(msg string) bool {
	msg = strings.ToLower(msg)
	for _, k := range restrictionKeywords {
		if strings.Contains(msg, k) {
			return true
		}
	}
	return false
}
