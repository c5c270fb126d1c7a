package slackdom

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// RedirectURLPattern matches the native-app redirect requests in the CDP
// Fetch domain's wildcard syntax.
const RedirectURLPattern = "*/ssb/redirect*"

const redirectPath = "/ssb/redirect"

var clientURL = regexp.MustCompile(`^https://app\.slack\.com/client/`)

// IsRedirectURL reports whether raw points at the blocked native-app redirect.
func IsRedirectURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.Contains(u.Path, redirectPath)
}

// IsClientURL reports whether raw is the authenticated web client.
func IsClientURL(raw string) bool {
	return clientURL.MatchString(raw)
}

// WorkspaceOrigin returns the scheme and host of raw as "https://host/".
func WorkspaceOrigin(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse workspace url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("workspace url %q has no host", raw)
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + u.Host + "/", nil
}

// RedirectPage renders the synthetic document served in place of the
// native-app redirect. It sends the browser to target on load.
func RedirectPage(target string) []byte {
	quoted, _ := json.Marshal(target)
	return []byte(fmt.Sprintf(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Redirecting</title></head>
<body><script>window.location.replace(%s);</script></body></html>`, quoted))
}
