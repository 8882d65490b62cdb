package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultServiceURL is the community emote catalog service used when none is configured.
const DefaultServiceURL = "https://gif-emotes.opl.io"

// HTTPSource reads catalogs from the catalog service.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource creates a source for the service at baseURL.
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	if baseURL == "" {
		baseURL = DefaultServiceURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// URL returns the catalog address for channel.
func (s *HTTPSource) URL(channel string) string {
	return fmt.Sprintf("%s/channel/username/%s.js", s.baseURL, url.PathEscape(NormalizeChannel(channel)))
}

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context, channel string) ([]Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL(channel), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return decodeCatalog(body)
}
