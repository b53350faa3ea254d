package titlefetch

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Source names the candidate a title was taken from.
type Source string

const (
	SourceTitleElement Source = "title"
	SourceOGTitle      Source = "og:title"
	SourceTwitterTitle Source = "twitter:title"
	SourceHostname     Source = "hostname"
	SourceRawURL       Source = "raw_url"
)

// ExtractTitle parses htmlText and returns the first non-empty candidate in priority order:
// <title>, og:title, twitter:title. ok is false when none is present.
func ExtractTitle(htmlText string) (title string, source Source, ok bool, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return "", "", false, err
	}

	if t := collapseWhitespace(doc.Find("title").First().Text()); t != "" {
		return t, SourceTitleElement, true, nil
	}

	var ogTitle, twitterTitle string
	doc.Find("meta").Each(func(i int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		property, _ := s.Attr("property")
		content, _ := s.Attr("content")
		key := name
		if property != "" {
			key = property
		}
		content = strings.TrimSpace(content)
		if content == "" {
			return
		}
		switch {
		case ogTitle == "" && strings.EqualFold(key, "og:title"):
			ogTitle = content
		case twitterTitle == "" && strings.EqualFold(key, "twitter:title"):
			twitterTitle = content
		}
	})

	switch {
	case ogTitle != "":
		return ogTitle, SourceOGTitle, true, nil
	case twitterTitle != "":
		return twitterTitle, SourceTwitterTitle, true, nil
	}
	return "", "", false, nil
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
