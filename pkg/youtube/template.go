package youtube

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	templateFieldRegex = regexp.MustCompile(`%\((\w+)\)(?:\.(\d+)B|s)`)
	invalidNameChars   = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)
)

// PrepareFilename returns the path the output template produces for res.
func (c *Client) PrepareFilename(res *Result, outputDir string) string {
	tmpl := c.OutputTemplate
	if tmpl == "" {
		tmpl = DefaultOutputTemplate
	}
	return filepath.Join(outputDir, ExpandTemplate(tmpl, res))
}

// ExpandTemplate fills %(field)s and %(field).NB (truncate to N bytes)
// placeholders from res. Unknown fields expand to "NA".
func ExpandTemplate(tmpl string, res *Result) string {
	return templateFieldRegex.ReplaceAllStringFunc(tmpl, func(m string) string {
		sub := templateFieldRegex.FindStringSubmatch(m)
		value := sanitizeName(templateField(res, sub[1]))
		if sub[2] != "" {
			if n, err := strconv.Atoi(sub[2]); err == nil {
				value = truncateBytes(value, n)
			}
		}
		return value
	})
}

func templateField(res *Result, name string) string {
	var v string
	switch name {
	case "title":
		v = res.Title
	case "id":
		v = res.ID
	case "ext":
		v = res.Ext
	case "uploader":
		v = res.Uploader
	}
	if v == "" {
		return "NA"
	}
	return v
}

func sanitizeName(name string) string {
	name = invalidNameChars.ReplaceAllString(name, "_")
	return strings.Trim(name, " ")
}

func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
