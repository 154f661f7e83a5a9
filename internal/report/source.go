package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/verte-zerg/countline/internal/portal"
)

// PortalSource opens sensors listed by a data portal. The listing is
// fetched once, on first use.
type PortalSource struct {
	client    *portal.Client
	resources []portal.Resource
}

// NewPortalSource wraps a portal client.
func NewPortalSource(client *portal.Client) *PortalSource {
	return &PortalSource{client: client}
}

// Resources returns the portal listing, fetching it if needed.
func (s *PortalSource) Resources(ctx context.Context) ([]portal.Resource, error) {
	if s.resources != nil {
		return s.resources, nil
	}
	resources, err := s.client.Sensors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sensors: %w", err)
	}
	s.resources = resources
	return resources, nil
}

// Open implements Source.
func (s *PortalSource) Open(ctx context.Context, sensor string) (io.ReadCloser, error) {
	resources, err := s.Resources(ctx)
	if err != nil {
		return nil, err
	}
	res, err := portal.Lookup(resources, sensor)
	if err != nil {
		return nil, err
	}
	return s.client.Open(ctx, res)
}

// FileSource opens local CSV exports keyed by sensor name.
type FileSource map[string]string

// ParseFileSource parses "sensor=path" pairs.
func ParseFileSource(pairs []string) (FileSource, error) {
	src := FileSource{}
	for _, pair := range pairs {
		name, path, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		path = strings.TrimSpace(path)
		if !ok || name == "" || path == "" {
			return nil, fmt.Errorf("invalid --file value %q (expected sensor=path)", pair)
		}
		src[name] = path
	}
	return src, nil
}

// Sensors returns the sensor names in sorted order.
func (s FileSource) Sensors() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open implements Source.
func (s FileSource) Open(_ context.Context, sensor string) (io.ReadCloser, error) {
	path, ok := s[sensor]
	if !ok {
		return nil, fmt.Errorf("no file given for sensor %q", sensor)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, nil
}
