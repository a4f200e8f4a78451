package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// DefaultTimeout for provider requests
const DefaultTimeout = 25 * time.Second

// Response body limit for provider calls
const maxBodyBytes = 4 << 20

type httpClient struct {
	provider string
	http     *http.Client
	limiter  *rate.Limiter
}

type response struct {
	status int
	header http.Header
	body   []byte
}

// newHTTPClient creates a paced client. perMinute <= 0 disables pacing.
func newHTTPClient(provider string, timeout time.Duration, perMinute int) *httpClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60.0)
	}
	return &httpClient{
		provider: provider,
		http:     &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(limit, 1),
	}
}

func (c *httpClient) get(ctx context.Context, rawURL string, params url.Values, headers map[string]string) (*response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &Error{Provider: c.provider, Kind: KindProviderError, Message: "rate limiter", Err: err}
	}

	if len(params) > 0 {
		rawURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Provider: c.provider, Kind: KindBadRequest, Message: "create request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Provider: c.provider, Kind: KindProviderError, Message: "http request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{Provider: c.provider, Kind: KindProviderError, Message: "read response", Err: err}
	}

	return &response{status: resp.StatusCode, header: resp.Header, body: body}, nil
}

// statusError maps HTTP failure codes onto the error taxonomy
func (c *httpClient) statusError(resp *response) *Error {
	e := &Error{
		Provider:   c.provider,
		Code:       fmt.Sprintf("http_%d", resp.status),
		RetryAfter: parseRetryAfter(resp.header.Get("Retry-After")),
	}
	switch {
	case resp.status == http.StatusTooManyRequests:
		e.Kind = KindRateLimited
	case resp.status == http.StatusPaymentRequired:
		e.Kind = KindQuotaExceeded
	case resp.status == http.StatusUnauthorized || resp.status == http.StatusForbidden:
		e.Kind = KindAuthError
	case resp.status == http.StatusNotFound:
		e.Kind = KindNoMatch
	case resp.status >= 400 && resp.status < 500:
		e.Kind = KindBadRequest
	default:
		e.Kind = KindProviderError
	}

	snippet := resp.body
	if len(snippet) > 300 {
		snippet = snippet[:300]
	}
	e.Message = string(snippet)
	return e
}
