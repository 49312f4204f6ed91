package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"ReviewSentinel/internal/config"
)

// ErrNavigation marks hard extraction failures: the target was unreachable,
// blocked, or timed out. Callers distinguish this from a page that loaded
// but yielded no reviews.
var ErrNavigation = errors.New("browser: navigation failed")

const (
	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	maxBodyBytes = 8 << 20
)

// Snapshot is the rendered state of a navigated page. HTML may be non-empty
// even when navigation failed (e.g. a block page), so failures can still be
// inspected offline.
type Snapshot struct {
	URL  string
	HTML string
}

// Navigator abstracts the browser-automation capability: navigate to a URL,
// wait for content, hand back the page. Selector interpretation stays with
// the extraction adapter.
type Navigator interface {
	Fetch(ctx context.Context, pageURL string) (Snapshot, error)
}

// HTTPNavigator fetches pages over plain HTTP, optionally through the
// configured residential proxy.
type HTTPNavigator struct {
	client *http.Client
	logger *slog.Logger
}

var _ Navigator = (*HTTPNavigator)(nil)

// NewHTTPNavigator builds the production navigator. The proxy server string
// may carry credentials or have them supplied separately.
func NewHTTPNavigator(proxy config.ProxyConfig, logger *slog.Logger) (*HTTPNavigator, error) {
	transport := &http.Transport{}

	if proxy.Server != "" {
		proxyURL, err := url.Parse(proxy.Server)
		if err != nil {
			return nil, fmt.Errorf("parse proxy server %q: %w", proxy.Server, err)
		}
		if proxy.Username != "" {
			proxyURL.User = url.UserPassword(proxy.Username, proxy.Password)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &HTTPNavigator{
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		logger: logger,
	}, nil
}

// Fetch navigates to the page and returns its rendered HTML. Any transport
// error or non-200 status is an ErrNavigation; for block pages the body is
// still returned in the snapshot for diagnostics.
func (n *HTTPNavigator) Fetch(ctx context.Context, pageURL string) (Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := n.client.Do(req)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrNavigation, err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	snapshot := Snapshot{URL: resp.Request.URL.String(), HTML: string(body)}

	if resp.StatusCode != http.StatusOK {
		n.debug("navigation rejected", "url", pageURL, "status", resp.Status)
		return snapshot, fmt.Errorf("%w: status %s", ErrNavigation, resp.Status)
	}
	if readErr != nil {
		return Snapshot{}, fmt.Errorf("%w: read body: %v", ErrNavigation, readErr)
	}

	n.debug("page fetched", "url", pageURL, "bytes", len(body))
	return snapshot, nil
}

func (n *HTTPNavigator) debug(msg string, args ...any) {
	if n.logger != nil {
		n.logger.Debug(msg, args...)
	}
}
