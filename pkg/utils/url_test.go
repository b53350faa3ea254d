package utils

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashURLIsStable(t *testing.T) {
	a := HashURL("https://example.com/a")
	assert.Len(t, a, 64)
	assert.Equal(t, a, HashURL("https://example.com/a"))
	assert.NotEqual(t, a, HashURL("https://example.com/b"))
}

func TestToAbsoluteURL(t *testing.T) {
	base, err := url.Parse("https://example.com/reading/")
	require.NoError(t, err)

	got, err := ToAbsoluteURL(base, "/feed.xml")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/feed.xml", got)

	got, err = ToAbsoluteURL(base, "feed.xml")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/reading/feed.xml", got)
}

func TestParseArticleURL(t *testing.T) {
	for _, raw := range []string{"https://example.com/post", " http://example.com ", "https://例え.jp/記事"} {
		_, err := ParseArticleURL(raw)
		assert.NoError(t, err, raw)
	}
	for _, raw := range []string{"", "example.com", "ftp://example.com/file", "javascript:alert(1)", "https://"} {
		_, err := ParseArticleURL(raw)
		assert.ErrorIs(t, err, ErrInvalidURL, raw)
	}
}
