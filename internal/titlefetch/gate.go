package titlefetch

import (
	"mime"
	"strings"
)

// IsHTML reports whether a content-type header value names an HTML or XHTML document.
// An empty header is not HTML.
func IsHTML(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType == "" {
		mediaType, _, _ = strings.Cut(contentType, ";")
		mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
