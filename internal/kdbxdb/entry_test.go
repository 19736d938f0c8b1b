package kdbxdb

import (
	"testing"

	"github.com/alecthomas/assert"
)

func TestNormalizeHostname(t *testing.T) {
	cases := []struct {
		name string
		url  string
		want string
	}{
		{"empty", "", ""},
		{"plain", "https://example.com/path", "example.com"},
		{"www prefix stripped", "https://www.example.com", "example.com"},
		{"sentinel with no www", "https://invalid.pfp", ""},
		{"sentinel only after stripping www", "https://www.invalid.pfp", "invalid.pfp"},
		{"unparseable", "://", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, normalizeHostname(c.url))
	}
}

func TestEntryHostnameRoundTrip(t *testing.T) {
	pf := protectedFields{}
	e, err := NewEntry("site", "user", "pw", pf)
	assert.NoError(t, err)
	assert.Equal(t, "", e.Hostname())

	e.SetHostname("example.com", pf)
	assert.Equal(t, "example.com", e.Hostname())

	e.SetHostname("", pf)
	assert.Equal(t, "", e.Hostname())
}
