// Package feed renders the reading list as an RSS 2.0 document.
package feed

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"readinglist/internal/domain"
	"readinglist/pkg/utils"
)

const (
	channelDescription = "記事フィード"
	channelLanguage    = "ja"
	atomNamespace      = "http://www.w3.org/2005/Atom"
)

// Options describes the channel.
type Options struct {
	Title    string
	Link     string
	Location *time.Location
	// Now stamps lastBuildDate. Defaults to time.Now.
	Now func() time.Time
}

type rssDocument struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	AtomNS  string     `xml:"xmlns:atom,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language"`
	LastBuildDate string    `xml:"lastBuildDate"`
	AtomLink      atomLink  `xml:"atom:link"`
	Items         []rssItem `xml:"item"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssItem struct {
	Title       cdata   `xml:"title"`
	Link        string  `xml:"link"`
	Description cdata   `xml:"description"`
	PubDate     string  `xml:"pubDate"`
	GUID        rssGUID `xml:"guid"`
}

type cdata struct {
	Text string `xml:",cdata"`
}

type rssGUID struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

// LoadLocation resolves the feed time zone by IANA name.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load feed timezone %q: %w", name, err)
	}
	return loc, nil
}

// Render writes the RSS document for articles to w. Articles are emitted in the given order.
func Render(w io.Writer, articles []domain.Article, opts Options) error {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	selfLink, err := selfLink(opts.Link)
	if err != nil {
		return err
	}

	doc := rssDocument{
		Version: "2.0",
		AtomNS:  atomNamespace,
		Channel: rssChannel{
			Title:         opts.Title,
			Link:          opts.Link,
			Description:   channelDescription,
			Language:      channelLanguage,
			LastBuildDate: formatDate(now(), loc),
			AtomLink:      atomLink{Href: selfLink, Rel: "self", Type: "application/rss+xml"},
			Items:         make([]rssItem, 0, len(articles)),
		},
	}
	for _, a := range articles {
		doc.Channel.Items = append(doc.Channel.Items, rssItem{
			Title:       cdata{Text: xmlSafe(a.Title)},
			Link:        a.URL,
			Description: cdata{Text: xmlSafe(a.Description)},
			PubDate:     formatDate(a.ReadAt, loc),
			GUID:        rssGUID{IsPermaLink: "false", Value: strconv.FormatInt(a.ID, 10)},
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode rss: %w", err)
	}
	return enc.Close()
}

// formatDate renders t as RFC 822 with a numeric zone, e.g. "Thu, 02 May 2024 19:00:00 +0900".
func formatDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.RFC1123Z)
}

// selfLink is the feed.xml URL under the channel link.
func selfLink(link string) (string, error) {
	base, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("invalid feed link %q: %w", link, err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	return utils.ToAbsoluteURL(base, "feed.xml")
}

// xmlSafe drops characters outside the XML 1.0 Char production. CDATA sections are
// written verbatim, so a stray control character would make the feed unparseable.
func xmlSafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == 0x09 || r == 0x0A || r == 0x0D:
			return r
		case r >= 0x20 && r <= 0xD7FF:
			return r
		case r >= 0xE000 && r <= 0xFFFD:
			return r
		case r >= 0x10000 && r <= 0x10FFFF:
			return r
		}
		return -1
	}, s)
}
