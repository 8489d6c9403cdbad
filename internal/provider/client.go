package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"infolookup/internal/config"
)

// Client performs single, unretried GET calls against an upstream provider and returns the
// raw envelope. Each call gets its own connection and its own timeout.
type Client struct {
	httpClient *http.Client
	limiter    *RateLimiter
	timeout    time.Duration
	userAgent  string
	maxBody    int64
}

func NewClient(cfg config.Config) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DisableKeepAlives:     true,
		TLSHandshakeTimeout:   cfg.UpstreamTimeout,
		ResponseHeaderTimeout: cfg.UpstreamTimeout,
	}
	maxBody := cfg.UpstreamMaxBodyBytes
	if maxBody <= 0 {
		maxBody = 4 << 20
	}
	return &Client{
		httpClient: &http.Client{Transport: transport, Timeout: cfg.UpstreamTimeout},
		limiter:    NewRateLimiter(cfg.UpstreamRateLimitRPS),
		timeout:    cfg.UpstreamTimeout,
		userAgent:  cfg.UpstreamUserAgent,
		maxBody:    maxBody,
	}
}

// Get issues one request. A returned error is always a *TransportError.
func (c *Client) Get(ctx context.Context, endpoint string, params map[string]string, headers map[string]string) (Envelope, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return Envelope{}, &TransportError{Reason: ReasonRequestFailed, Err: err}
	}
	q := u.Query()
	for k, v := range params {
		if strings.TrimSpace(v) != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()

	if err := c.limiter.WaitTurn(ctx); err != nil {
		return Envelope{URL: u.String()}, classifyTransport(err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Envelope{URL: u.String()}, &TransportError{Reason: ReasonRequestFailed, Err: err}
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Envelope{URL: u.String()}, classifyTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return Envelope{URL: u.String(), StatusCode: resp.StatusCode}, classifyTransport(err)
	}
	if int64(len(body)) > c.maxBody {
		return Envelope{URL: u.String(), StatusCode: resp.StatusCode}, &TransportError{
			Reason:     ReasonBodyTooLarge,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("response body exceeds %d bytes", c.maxBody),
		}
	}

	return Envelope{
		URL:         u.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func classifyTransport(err error) *TransportError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Reason: ReasonTimeout, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &TransportError{Reason: ReasonTimeout, Err: err}
	}
	return &TransportError{Reason: ReasonRequestFailed, Err: err}
}
