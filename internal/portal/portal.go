// Package portal reads sensor listings and count exports from a CKAN data portal.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"

	"github.com/verte-zerg/countline/internal/logging"
)

const userAgent = "countline/1 (+https://github.com/verte-zerg/countline)"

// Resource describes one sensor export listed by the portal.
type Resource struct {
	Name              string `json:"name"`
	URL               string `json:"url"`
	Format            string `json:"format"`
	RevisionTimestamp string `json:"revision_timestamp"`
}

type packageResponse struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"__type"`
	} `json:"error"`
}

type packageResult struct {
	Resources []Resource `json:"resources"`
}

// Client fetches metadata and CSV exports. It is not safe for concurrent use.
type Client struct {
	metadataURL string
	http        *http.Client
	logger      *slog.Logger
}

// NewClient creates a portal client for the given package_show URL.
func NewClient(metadataURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		metadataURL: metadataURL,
		http:        &http.Client{Timeout: timeout},
		logger:      logging.Component(logger, "portal"),
	}
}

// Sensors lists the resources of the configured package in publication order.
func (c *Client) Sensors(ctx context.Context) ([]Resource, error) {
	if c.metadataURL == "" {
		return nil, fmt.Errorf("metadata url is required")
	}
	resp, err := c.get(ctx, c.metadataURL)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected metadata status: %s", resp.Status)
	}

	var payload packageResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if !payload.Success {
		if payload.Error != nil && payload.Error.Message != "" {
			return nil, fmt.Errorf("portal error: %s", payload.Error.Message)
		}
		return nil, fmt.Errorf("portal reported failure")
	}
	pkg, err := decodeResult(payload.Result)
	if err != nil {
		return nil, err
	}
	for _, r := range pkg.Resources {
		c.logger.Info("found sensor", "name", r.Name, "revision", r.RevisionTimestamp)
	}
	return pkg.Resources, nil
}

// Some portals wrap the package in a one-element array.
func decodeResult(raw json.RawMessage) (packageResult, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return packageResult{}, fmt.Errorf("metadata has no result")
	}
	if raw[0] == '[' {
		var list []packageResult
		if err := json.Unmarshal(raw, &list); err != nil {
			return packageResult{}, fmt.Errorf("failed to decode metadata result: %w", err)
		}
		if len(list) == 0 {
			return packageResult{}, fmt.Errorf("metadata result is empty")
		}
		return list[0], nil
	}
	var pkg packageResult
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return packageResult{}, fmt.Errorf("failed to decode metadata result: %w", err)
	}
	return pkg, nil
}

// Open downloads a resource and returns its body decoded from ISO-8859-1.
// The caller must close the returned reader.
func (c *Client) Open(ctx context.Context, res Resource) (io.ReadCloser, error) {
	if res.URL == "" {
		return nil, fmt.Errorf("sensor %q has no download url", res.Name)
	}
	c.logger.Info("fetching sensor", "name", res.Name)
	resp, err := c.get(ctx, res.URL)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status for %q: %s", res.Name, resp.Status)
	}
	return &latin1Body{
		Reader: charmap.ISO8859_1.NewDecoder().Reader(resp.Body),
		body:   resp.Body,
	}, nil
}

// Lookup finds a resource by name, falling back to a case-insensitive match.
func Lookup(resources []Resource, name string) (Resource, error) {
	for _, r := range resources {
		if r.Name == name {
			return r, nil
		}
	}
	for _, r := range resources {
		if strings.EqualFold(strings.TrimSpace(r.Name), strings.TrimSpace(name)) {
			return r, nil
		}
	}
	names := make([]string, 0, len(resources))
	for _, r := range resources {
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return Resource{}, fmt.Errorf("unknown sensor %q (available: %s)", name, strings.Join(names, "; "))
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

type latin1Body struct {
	io.Reader
	body io.Closer
}

func (b *latin1Body) Close() error {
	return b.body.Close()
}
