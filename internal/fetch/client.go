package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrBadStatus marks a non-2xx response. Callers treat it like any other
// fetch failure: move on to the next strategy or selector.
var ErrBadStatus = errors.New("unexpected http status")

const maxBodyBytes = 5 << 20

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// Client is a rate-limited HTTP fetcher with browser-like headers and
// rotating user agents. All fetch paths in the pipeline go through it.
type Client struct {
	http    *http.Client
	limiter *RateLimiter
	logger  *zap.Logger

	mu     sync.Mutex
	rng    *rand.Rand
	agents []string
}

func NewClient(limiter *RateLimiter, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		limiter: limiter,
		logger:  logger,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		agents:  defaultUserAgents,
	}
}

// Fetch performs a rate-limited GET and returns the response body.
// Non-2xx statuses, timeouts and connection failures all surface as a
// single error; there is no partial-body contract.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: %w: %d", url, ErrBadStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: read body: %w", url, err)
	}
	c.logger.Debug("fetched page", zap.String("url", url), zap.Int("bytes", len(body)))
	return body, nil
}

func (c *Client) userAgent() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agents[c.rng.Intn(len(c.agents))]
}
