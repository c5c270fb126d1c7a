package slackdom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRedirectURL(t *testing.T) {
	assert.True(t, IsRedirectURL("https://acme.slack.com/ssb/redirect?entry_point=workspace_signin"))
	assert.False(t, IsRedirectURL("https://app.slack.com/client/T1/C1"))
	assert.False(t, IsRedirectURL("::bad"))
}

func TestIsClientURL(t *testing.T) {
	assert.True(t, IsClientURL("https://app.slack.com/client/T0123/C456"))
	assert.False(t, IsClientURL("https://acme.slack.com/ssb/redirect"))
}

func TestWorkspaceOrigin(t *testing.T) {
	origin, err := WorkspaceOrigin("https://acme.slack.com/ssb/redirect?x=1")
	require.NoError(t, err)
	assert.Equal(t, "https://acme.slack.com/", origin)

	_, err = WorkspaceOrigin("/relative/only")
	assert.Error(t, err)
}

func TestRedirectPage(t *testing.T) {
	page := string(RedirectPage("https://acme.slack.com/"))
	assert.Contains(t, page, `window.location.replace("https://acme.slack.com/")`)

	hostile := string(RedirectPage(`https://x/</script><script>alert(1)</script>`))
	assert.NotContains(t, hostile, "</script><script>")
}
