package utils

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashURL_IgnoresFragmentAndSpace(t *testing.T) {
	a := HashURL("https://acme.slack.com/archives/C1/p1")
	assert.Equal(t, a, HashURL("  https://acme.slack.com/archives/C1/p1#thread "))
	assert.NotEqual(t, a, HashURL("https://acme.slack.com/archives/C1/p2"))
	assert.Len(t, a, 64)
}

func TestToAbsoluteURL(t *testing.T) {
	base, err := url.Parse("https://acme.slack.com/")
	require.NoError(t, err)

	abs, err := ToAbsoluteURL(base, "/archives/C1/p100")
	require.NoError(t, err)
	assert.Equal(t, "https://acme.slack.com/archives/C1/p100", abs)

	abs, err = ToAbsoluteURL(base, "https://other.slack.com/x")
	require.NoError(t, err)
	assert.Equal(t, "https://other.slack.com/x", abs)
}

func TestHostname(t *testing.T) {
	assert.Equal(t, "acme.slack.com", Hostname("https://acme.slack.com/client"))
	assert.Equal(t, "unknown", Hostname("not a url"))
}
