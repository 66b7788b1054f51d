package kinopub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"recomarr/internal/metrics"
)

const (
	defaultBaseURL    = "https://api.service-kp.com/v1"
	maxAttempts       = 3
	defaultRetryDelay = 1 * time.Second
)

// Client executes typed requests against the Kinopub API with retry,
// backoff and token-refresh orchestration
type Client struct {
	baseURL    string
	session    *Session
	httpClient *http.Client
	logger     *logrus.Logger
	retryDelay time.Duration
	cache      *gocache.Cache
}

// NewClient creates a new Kinopub API client
func NewClient(session *Session, logger *logrus.Logger) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		session:    session,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		retryDelay: defaultRetryDelay,
		cache:      gocache.New(5*time.Minute, 10*time.Minute),
	}
}

// linearBackOff waits retryDelay*attempt between retries, per the remote
// service's rate-limit guidance
type linearBackOff struct {
	delay   time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return b.delay * time.Duration(b.attempt)
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}

// get performs a GET request with query parameters
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	return c.do(ctx, http.MethodGet, path, params, result)
}

// postForm performs a POST request with form-encoded parameters
func (c *Client) postForm(ctx context.Context, path string, params url.Values, result interface{}) error {
	return c.do(ctx, http.MethodPost, path, params, result)
}

// do executes one logical request. Policy, bounded at 3 attempts total:
// 401 triggers one token refresh then a retry; 429, 5xx and transport
// errors back off linearly; other 4xx and malformed bodies fail
// immediately.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, result interface{}) error {
	refreshed := false

	operation := func() error {
		token, err := c.session.AccessToken(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}

		status, body, err := c.execute(ctx, method, path, params, token)
		if err != nil {
			c.logger.WithError(err).WithField("path", path).Debug("Request transport error")
			metrics.RemoteRequests.WithLabelValues("retried").Inc()
			return &NetworkError{Err: err}
		}

		switch {
		case status == http.StatusUnauthorized:
			if refreshed {
				metrics.RemoteRequests.WithLabelValues("failed").Inc()
				return backoff.Permanent(&AuthError{Reason: "request unauthorized after refresh"})
			}
			refreshed = true
			c.logger.Info("Received 401, refreshing token")
			if !c.session.RefreshSession(ctx) {
				metrics.RemoteRequests.WithLabelValues("failed").Inc()
				return backoff.Permanent(&AuthError{Reason: "token refresh after 401 failed"})
			}
			metrics.RemoteRequests.WithLabelValues("retried").Inc()
			return &AuthError{Reason: "retrying with refreshed token"}
		case status == http.StatusTooManyRequests:
			c.logger.WithField("path", path).Warn("Rate limited by remote service")
			metrics.RemoteRequests.WithLabelValues("retried").Inc()
			return &RateLimitError{Attempts: maxAttempts}
		case status >= 500:
			c.logger.WithFields(logrus.Fields{"path": path, "status": status}).Warn("Server error")
			metrics.RemoteRequests.WithLabelValues("retried").Inc()
			return &ServerError{StatusCode: status}
		case status >= 400:
			metrics.RemoteRequests.WithLabelValues("failed").Inc()
			return backoff.Permanent(&APIError{StatusCode: status, Body: truncate(body, 512)})
		}

		// Responses must be well-formed JSON objects; the envelope layer
		// above this normalizes their inconsistent field layout
		trimmed := bytes.TrimSpace([]byte(body))
		if len(trimmed) == 0 || trimmed[0] != '{' {
			metrics.RemoteRequests.WithLabelValues("failed").Inc()
			return backoff.Permanent(&APIError{Body: truncate(body, 512)})
		}
		if result != nil {
			if err := json.Unmarshal(trimmed, result); err != nil {
				metrics.RemoteRequests.WithLabelValues("failed").Inc()
				return backoff.Permanent(&APIError{Body: fmt.Sprintf("decode failed: %v", err)})
			}
		}

		metrics.RemoteRequests.WithLabelValues("ok").Inc()
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{delay: c.retryDelay}, maxAttempts-1), ctx)
	return backoff.Retry(operation, policy)
}

// execute performs the raw HTTP exchange and returns status and body
func (c *Client) execute(ctx context.Context, method, path string, params url.Values, token string) (int, string, error) {
	query := url.Values{}
	var reqBody io.Reader

	if method == http.MethodGet {
		for k, vs := range params {
			for _, v := range vs {
				query.Add(k, v)
			}
		}
	} else if params != nil {
		reqBody = strings.NewReader(params.Encode())
	}
	query.Set("access_token", token)

	fullURL := c.baseURL + path + "?" + query.Encode()
	c.logger.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
	}).Debug("Making Kinopub API request")

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", err
	}

	return resp.StatusCode, string(body), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
