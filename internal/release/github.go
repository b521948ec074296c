package release

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	// DefaultAPIBaseURL is the public GitHub REST API.
	DefaultAPIBaseURL = "https://api.github.com"
	// UserAgent identifies the installer to the release API and asset hosts.
	UserAgent = "embytools-installer/1.0.0"

	acceptHeader = "application/vnd.github.v3+json"
	// maxResponseSize limits the metadata body (10MB)
	maxResponseSize = 10 * 1024 * 1024
	// maxErrorBody limits how much of a failed response is kept
	maxErrorBody = 4 * 1024
)

// Client queries the latest release of a repository.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a Client. A nil httpClient uses http.DefaultClient and an
// empty baseURL uses DefaultAPIBaseURL.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// BaseURL returns the API root the client queries.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// LatestReleaseURL returns the endpoint for owner/repo.
func (c *Client) LatestReleaseURL(owner, repo string) string {
	return fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.baseURL, url.PathEscape(owner), url.PathEscape(repo))
}

// LatestRelease performs exactly one GET against the latest-release endpoint.
//
// Errors match ErrNetwork for transport failures and non-404 statuses (as an
// *HTTPError carrying the body), ErrNotFound for 404, and ErrMetadata when the
// body is not a release.
func (c *Client) LatestRelease(ctx context.Context, owner, repo string) (*Metadata, error) {
	endpoint := c.LatestReleaseURL(owner, repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrNetwork, err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", ErrNetwork, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &HTTPError{URL: endpoint, StatusCode: resp.StatusCode, Body: string(body)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrNetwork, endpoint, err)
	}
	if len(body) > maxResponseSize {
		return nil, fmt.Errorf("%w: response from %s exceeds %d bytes", ErrMetadata, endpoint, maxResponseSize)
	}

	var meta Metadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrMetadata, endpoint, err)
	}
	if meta.TagName == "" {
		return nil, fmt.Errorf("%w: %s has no tag_name", ErrMetadata, endpoint)
	}

	return &meta, nil
}
