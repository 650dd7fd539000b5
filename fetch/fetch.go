// Package fetch downloads the company map with a plain HTTP GET
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultUserAgent is a desktop Chrome identity
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126 Safari/537.36"
	DefaultTimeout   = 30 * time.Second

	maxBodyBytes = 16 << 20
)

// Client fetches the page without running any JavaScript
type Client struct {
	HTTPClient *http.Client
	URL        string
	UserAgent  string
	Timeout    time.Duration
}

// New creates a client for url with the default identity and timeout
func New(url string) *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		URL:        url,
		UserAgent:  DefaultUserAgent,
		Timeout:    DefaultTimeout,
	}
}

// Name identifies the source in logs
func (c *Client) Name() string { return "network" }

// Acquire issues a single GET and returns the decoded body
func (c *Client) Acquire(ctx context.Context) (string, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	ua := c.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en-US;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br, zstd")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	log.Info().Str("url", c.URL).Msg("fetching page")
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("received non-2xx status code: %d", resp.StatusCode)
	}

	body, err := decodeBody(resp)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// decodeBody undoes the Content-Encoding of resp. Go's transport only decodes
// gzip transparently when it negotiated the encoding itself, which it does not
// once Accept-Encoding is set explicitly
func decodeBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader
	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch encoding {
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "zstd":
		zr, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer zr.Close()
		reader = zr
	case "", "identity":
		reader = resp.Body
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}

	body, err := io.ReadAll(io.LimitReader(reader, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("response body exceeds %d bytes", maxBodyBytes)
	}
	return body, nil
}
