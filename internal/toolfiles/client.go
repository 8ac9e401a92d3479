// Package toolfiles is the client-side counterpart of the tool-agent file
// service and tool API referenced by C10: fetching an agent binary by id
// (used for both the main agent file and Artifactory-sourced assets) and
// fetching a tool-API-sourced asset by (tool_id, path).
package toolfiles

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Client fetches tool agent binaries and tool-API assets over HTTP,
// authenticated with the persisted access token.
type Client struct {
	baseURL string
	http    *http.Client
	token   func() string
}

// New creates a Client rooted at baseURL. token is called on every request
// to fetch the current bearer credential, so a refreshed access token is
// picked up without reconstructing the client.
func New(baseURL string, httpClient *http.Client, token func() string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, http: httpClient, token: token}
}

// GetAgentFile downloads the binary identified by id — used both for a
// tool's main agent file and for Artifactory-sourced assets, which are
// fetched by the same per-id endpoint.
func (c *Client) GetAgentFile(ctx context.Context, id string) ([]byte, error) {
	return c.get(ctx, fmt.Sprintf("%s/tool-agent-files/%s", c.baseURL, id))
}

// GetToolAsset downloads an asset sourced from the tool API, identified by
// its owning tool id and the asset's path.
func (c *Client) GetToolAsset(ctx context.Context, toolID, path string) ([]byte, error) {
	return c.get(ctx, fmt.Sprintf("%s/tools/%s/assets/%s", c.baseURL, toolID, path))
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned HTTP %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
