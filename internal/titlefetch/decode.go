package titlefetch

import (
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// ResolvedDocument is the final decode of a page body.
type ResolvedDocument struct {
	Text        string
	CharsetUsed string
}

// Decode is stage two of decoding: convert body to UTF-8 using the resolved charset.
// Invalid sequences become U+FFFD. An unsupported charset name falls back to UTF-8 and
// reports supported=false so the caller can log it. Labels that map to the WHATWG
// replacement encoding count as unsupported, since that decoder discards the whole body.
func Decode(body []byte, charsetName string) (doc ResolvedDocument, supported bool) {
	supported = true
	enc, _ := charset.Lookup(charsetName)
	used := charsetName
	if enc == nil || enc == encoding.Replacement {
		supported = false
		used = defaultCharset
		enc, _ = charset.Lookup(defaultCharset)
	}

	out, _, err := transform.Bytes(enc.NewDecoder(), body)
	if err != nil {
		out = body
	}

	return ResolvedDocument{
		Text:        strings.ToValidUTF8(string(out), "\uFFFD"),
		CharsetUsed: used,
	}, supported
}
