package titlefetch

import (
	"net/url"
	"strings"
)

// DomainFallback returns the lower-cased hostname of rawURL, or rawURL itself when it cannot be
// parsed or has no host.
func DomainFallback(rawURL string) (string, Source) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Hostname() == "" {
		return rawURL, SourceRawURL
	}
	return strings.ToLower(u.Hostname()), SourceHostname
}
