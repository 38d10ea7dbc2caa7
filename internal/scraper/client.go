// Package scraper provides the HTTP client shared by the university site
// crawlers: random user agents, polite request pacing, retries with backoff
// and Turkish legacy charset decoding.
package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/corpix/uarand"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"

	"github.com/akdenizcse/akdeniz-chatbot-go/internal/config"
	apperrors "github.com/akdenizcse/akdeniz-chatbot-go/internal/errors"
)

// maxBodyBytes bounds a fetched page.
const maxBodyBytes = 8 << 20

// Recorder receives per-request observations.
type Recorder interface {
	RecordScraperRequest(module, status string, duration float64)
	RecordSingleflightDedup(module string)
}

// Options configures a Client.
type Options struct {
	Timeout      time.Duration
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// RequestsPerSecond paces outbound requests across all crawlers.
	RequestsPerSecond float64
	Burst             int
	Recorder          Recorder
	// UserAgent pins the User-Agent header; a random one is used when empty.
	UserAgent string
}

// Client is safe for concurrent use.
type Client struct {
	httpClient   *http.Client
	limiter      *rate.Limiter
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration
	recorder     Recorder
	userAgent    string
	flight       *Group
}

// NewClient creates a scraper client, filling unset options with defaults.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = config.ScraperRequest
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = config.ScraperRetryInitial
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = config.ScraperRetryMax
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}
	if opts.Burst <= 0 {
		opts.Burst = 2
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter:      rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		maxRetries:   opts.MaxRetries,
		initialDelay: opts.InitialDelay,
		maxDelay:     opts.MaxDelay,
		recorder:     opts.Recorder,
		userAgent:    opts.UserAgent,
	}
	c.flight = NewGroup(opts.Recorder)
	return c
}

// Fetch GETs url and returns the body decoded to UTF-8. Concurrent fetches of
// the same url share one request.
func (c *Client) Fetch(ctx context.Context, module, url string) ([]byte, error) {
	return Do(ctx, c.flight, module, url, func() ([]byte, error) {
		return c.fetch(ctx, module, url)
	})
}

// GetDocument fetches url and parses it as HTML.
func (c *Client) GetDocument(ctx context.Context, module, url string) (*goquery.Document, error) {
	body, err := c.Fetch(ctx, module, url)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse HTML from %s: %w", url, err)
	}
	return doc, nil
}

func (c *Client) fetch(ctx context.Context, module, url string) ([]byte, error) {
	var body []byte
	var status int
	start := time.Now()

	err := RetryWithBackoff(ctx, c.maxRetries, c.initialDelay, c.maxDelay, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("User-Agent", c.randomUserAgent())
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "tr-TR,tr;q=0.9,en-US;q=0.8,en;q=0.7")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return Permanent(ctx.Err())
			}
			return fmt.Errorf("request failed: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()
		status = resp.StatusCode

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			switch resp.StatusCode {
			case http.StatusTooManyRequests:
				return fmt.Errorf("rate limited for %s: status %d", url, resp.StatusCode)
			case http.StatusNotFound, http.StatusForbidden, http.StatusUnauthorized, http.StatusGone:
				return Permanent(fmt.Errorf("client error for %s: status %d (not retrying)", url, resp.StatusCode))
			case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusInternalServerError:
				return fmt.Errorf("server error for %s: status %d", url, resp.StatusCode)
			default:
				return fmt.Errorf("unexpected status for %s: %d", url, resp.StatusCode)
			}
		}

		reader := decodeCharset(io.LimitReader(resp.Body, maxBodyBytes), resp.Header.Get("Content-Type"))
		data, err := io.ReadAll(reader)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		body = data
		return nil
	})

	outcome := "success"
	if err != nil {
		outcome = "error"
		if ctx.Err() != nil {
			outcome = "timeout"
		}
	}
	if c.recorder != nil {
		c.recorder.RecordScraperRequest(module, outcome, time.Since(start).Seconds())
	}
	if err != nil {
		return nil, apperrors.NewScraperError(url, status, err)
	}
	return body, nil
}

// decodeCharset converts legacy Turkish encodings to UTF-8. Anything else is
// assumed to already be UTF-8.
func decodeCharset(r io.Reader, contentType string) io.Reader {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "windows-1254"), strings.Contains(ct, "cp1254"):
		return transform.NewReader(r, charmap.Windows1254.NewDecoder())
	case strings.Contains(ct, "iso-8859-9"), strings.Contains(ct, "latin5"):
		return transform.NewReader(r, charmap.ISO8859_9.NewDecoder())
	default:
		return r
	}
}

func (c *Client) randomUserAgent() string {
	if c.userAgent != "" {
		return c.userAgent
	}
	return uarand.GetRandom()
}
