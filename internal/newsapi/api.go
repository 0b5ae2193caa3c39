package newsapi

import (
	"context"
	"fmt"
	"time"

	"github.com/imroc/req/v3"
	"github.com/opennews/newsbox/internal/version"
)

const (
	routeCheckVersion = "/check_version"
	routeListFiles    = "/list_files"
	routeDownload     = "/download"

	requestTimeout = 30 * time.Second
)

// Client talks to the news server's cache endpoints.
//
// It performs exactly one attempt per call - retry policy, if any, belongs to
// the caller driving the sync pass.
type Client struct {
	http    *req.Client
	baseURL string
}

// New creates a client for the news server at baseURL.
func New(baseURL string) *Client {
	client := req.C().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout).
		SetUserAgent("Newsbox/" + version.Version).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	return &Client{
		http:    client,
		baseURL: baseURL,
	}
}

// SetToken attaches a bearer token to all subsequent requests.
func (c *Client) SetToken(token string) {
	c.http.SetCommonBearerAuthToken(token)
}

// Close releases idle connections held by the underlying transport.
func (c *Client) Close() {
	c.http.GetTransport().CloseIdleConnections()
}

// CheckVersion fetches the server's declared manifest.
func (c *Client) CheckVersion(ctx context.Context) (*ManifestSnapshot, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get(routeCheckVersion)
	if err != nil {
		return nil, newAPIError(CodeNetworkError, "check_version request failed", err)
	}
	if resp.IsErrorState() {
		return nil, newAPIError(CodeNetworkError, fmt.Sprintf("check_version: unexpected status %d", resp.GetStatusCode()), nil)
	}

	var snapshot ManifestSnapshot
	if err := jsonUnmarshal(resp.Bytes(), &snapshot); err != nil {
		return nil, newAPIError(CodeFormatError, "check_version: undecodable manifest", err)
	}

	if err := validateManifest(&snapshot); err != nil {
		return nil, newAPIError(CodeFormatError, err.Error(), nil)
	}

	return &snapshot, nil
}

// ListFiles fetches the full member list of a remote directory.
func (c *Client) ListFiles(ctx context.Context, dirname string) ([]string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("dirname", dirname).
		Get(routeListFiles)
	if err != nil {
		return nil, newAPIError(CodeNetworkError, fmt.Sprintf("list_files %q request failed", dirname), err)
	}
	if resp.IsErrorState() {
		return nil, newAPIError(CodeTransferFailed, fmt.Sprintf("list_files %q: unexpected status %d", dirname, resp.GetStatusCode()), nil)
	}

	var members []string
	if err := jsonUnmarshal(resp.Bytes(), &members); err != nil {
		return nil, newAPIError(CodeFormatError, fmt.Sprintf("list_files %q: undecodable member list", dirname), err)
	}

	return members, nil
}

// validateManifest rejects payloads that decoded but do not satisfy the
// manifest's invariants. Names must be non-empty and unique.
func validateManifest(snapshot *ManifestSnapshot) error {
	seen := make(map[string]struct{}, len(snapshot.Files))
	for _, file := range snapshot.Files {
		if file == nil || file.Name == "" {
			return fmt.Errorf("check_version: manifest entry with empty name")
		}
		if _, dup := seen[file.Name]; dup {
			return fmt.Errorf("check_version: duplicate manifest entry %q", file.Name)
		}
		seen[file.Name] = struct{}{}
	}
	return nil
}
