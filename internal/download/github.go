package download

import (
	"net/http"
	"strings"
	"time"
)

const (
	hostGitHub             = "github.com"
	hostGitHubAPI          = "api.github.com"
	suffixGitHub           = ".github.com"
	suffixGitHubusercontent = ".githubusercontent.com"
)

// tokenTransport adds a Bearer Authorization header to requests against
// GitHub hosts, leaving requests to any other host (e.g. the jsdelivr CDN
// fallback) untouched.
type tokenTransport struct {
	token string
	base  http.RoundTripper
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.token != "" && isGitHubHost(req.URL.Host) {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
	return t.base.RoundTrip(req)
}

func isGitHubHost(host string) bool {
	host = strings.ToLower(host)
	if host == hostGitHub || host == hostGitHubAPI {
		return true
	}
	return strings.HasSuffix(host, suffixGitHub) || strings.HasSuffix(host, suffixGitHubusercontent)
}

// NewAuthenticatedClient builds an http.Client that attaches token as a
// Bearer credential for GitHub-hosted requests, raising the anonymous rate
// limit self-update downloads would otherwise be subject to.
func NewAuthenticatedClient(token string) *http.Client {
	return &http.Client{
		Timeout:   attemptTimeout,
		Transport: &tokenTransport{token: token, base: http.DefaultTransport},
	}
}
