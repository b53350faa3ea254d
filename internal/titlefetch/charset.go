package titlefetch

import (
	"mime"
	"regexp"
	"strings"
)

// CharsetSource identifies where a charset hint came from.
type CharsetSource string

const (
	CharsetFromDefault CharsetSource = "default"
	CharsetFromHeader  CharsetSource = "header"
	CharsetFromMeta    CharsetSource = "meta"
)

const (
	defaultCharset = "utf-8"

	// metaSniffLimit bounds the provisional decode used to look for a meta charset.
	metaSniffLimit = 4096
)

// CharsetHint is a single charset signal.
type CharsetHint struct {
	Source CharsetSource
	Name   string
}

// charsetAliases maps lower-cased spellings seen in the wild to one canonical name.
var charsetAliases = map[string]string{
	"utf8":              "utf-8",
	"utf-8":             "utf-8",
	"unicode-1-1-utf-8": "utf-8",

	"sjis":        "shift_jis",
	"shift-jis":   "shift_jis",
	"shift_jis":   "shift_jis",
	"shiftjis":    "shift_jis",
	"x-sjis":      "shift_jis",
	"ms_kanji":    "shift_jis",
	"csshiftjis":  "shift_jis",
	"windows-31j": "shift_jis",
	"cp932":       "shift_jis",

	"euc-jp":              "euc-jp",
	"eucjp":               "euc-jp",
	"euc_jp":              "euc-jp",
	"x-euc-jp":            "euc-jp",
	"cseucpkdfmtjapanese": "euc-jp",
	"iso-2022-jp":         "iso-2022-jp",
	"iso2022jp":           "iso-2022-jp",
	"iso-2022jp":          "iso-2022-jp",
	"csiso2022jp":         "iso-2022-jp",
	"jis":                 "iso-2022-jp",

	"euc-kr":         "euc-kr",
	"euckr":          "euc-kr",
	"euc_kr":         "euc-kr",
	"ks_c_5601-1987": "euc-kr",
	"cp949":          "euc-kr",
	"windows-949":    "euc-kr",
	"gbk":            "gbk",
	"gb2312":         "gbk",
	"cp936":          "gbk",
	"x-gbk":          "gbk",
	"gb18030":        "gb18030",
	"big5":           "big5",
	"big5-hkscs":     "big5",
	"cn-big5":        "big5",
	"x-x-big5":       "big5",

	"latin1":       "iso-8859-1",
	"latin-1":      "iso-8859-1",
	"iso8859-1":    "iso-8859-1",
	"iso_8859-1":   "iso-8859-1",
	"iso-8859-1":   "iso-8859-1",
	"l1":           "iso-8859-1",
	"cp1252":       "windows-1252",
	"windows-1252": "windows-1252",
	"cp1251":       "windows-1251",
	"win-1251":     "windows-1251",
	"windows-1251": "windows-1251",
	"koi8r":        "koi8-r",
	"koi8-r":       "koi8-r",
}

// NormalizeCharset maps a raw charset spelling to its canonical name. Lookup is
// case-insensitive; unknown names are returned trimmed but otherwise unchanged.
func NormalizeCharset(name string) string {
	trimmed := strings.Trim(strings.TrimSpace(name), `"'`)
	if canonical, ok := charsetAliases[strings.ToLower(trimmed)]; ok {
		return canonical
	}
	return trimmed
}

// headerCharset extracts the charset parameter from a content-type header value.
func headerCharset(contentType string) CharsetHint {
	if contentType == "" {
		return CharsetHint{Source: CharsetFromDefault, Name: defaultCharset}
	}
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		if cs := params["charset"]; cs != "" {
			return CharsetHint{Source: CharsetFromHeader, Name: NormalizeCharset(cs)}
		}
		return CharsetHint{Source: CharsetFromDefault, Name: defaultCharset}
	}

	// ParseMediaType rejects some malformed parameter lists that browsers accept.
	if m := headerCharsetPattern.FindStringSubmatch(contentType); m != nil {
		if cs := NormalizeCharset(m[1]); cs != "" {
			return CharsetHint{Source: CharsetFromHeader, Name: cs}
		}
	}
	return CharsetHint{Source: CharsetFromDefault, Name: defaultCharset}
}

var (
	metaCharsetPattern = regexp.MustCompile(`(?i)<meta\b[^>]*?charset\s*=\s*["']?\s*([a-z0-9_:.\-]+)`)
	headEndPattern     = regexp.MustCompile(`(?i)</head\s*>`)

	headerCharsetPattern = regexp.MustCompile(`(?i)charset\s*=\s*["']?([^;"'\s]+)`)
)

// provisionalDecode is stage one of decoding: a lossy UTF-8 view of the document prefix,
// used only to look for an in-band charset declaration.
func provisionalDecode(body []byte) string {
	if len(body) > metaSniffLimit {
		body = body[:metaSniffLimit]
	}
	text := strings.ToValidUTF8(string(body), "\uFFFD")
	if loc := headEndPattern.FindStringIndex(text); loc != nil {
		text = text[:loc[0]]
	}
	return text
}

// metaCharset finds a <meta charset> or http-equiv content-type declaration.
func metaCharset(body []byte) (CharsetHint, bool) {
	m := metaCharsetPattern.FindStringSubmatch(provisionalDecode(body))
	if m == nil {
		return CharsetHint{}, false
	}
	name := NormalizeCharset(m[1])
	if name == "" {
		return CharsetHint{}, false
	}
	return CharsetHint{Source: CharsetFromMeta, Name: metaOverride(name)}, true
}

// metaOverride applies the HTML prescan substitutions. A UTF-16 declaration is only
// readable in an ASCII-compatible document, so it means UTF-8.
func metaOverride(name string) string {
	switch strings.ToLower(name) {
	case "utf-16", "utf-16le", "utf-16be":
		return "utf-8"
	case "x-user-defined":
		return "windows-1252"
	}
	return name
}

// ResolveCharset reconciles the header and meta-tag signals. A meta declaration that
// differs from the header wins.
func ResolveCharset(contentType string, body []byte) CharsetHint {
	hint := headerCharset(contentType)
	if meta, ok := metaCharset(body); ok && !strings.EqualFold(meta.Name, hint.Name) {
		return meta
	}
	if hint.Name == "" {
		return CharsetHint{Source: CharsetFromDefault, Name: defaultCharset}
	}
	return hint
}
