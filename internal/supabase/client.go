package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrConfiguration = errors.New("supabase: url and anon key are required")
	ErrUpstream      = errors.New("supabase: upstream request failed")
)

// APIError is a non-2xx response from the auth or rest API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase: %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return ErrUpstream }

type Config struct {
	URL        string
	AnonKey    string
	HTTPClient *http.Client
}

func (c Config) validate() error {
	if strings.TrimSpace(c.URL) == "" || strings.TrimSpace(c.AnonKey) == "" {
		return ErrConfiguration
	}
	return nil
}

// Client talks to one project with fixed credentials. It never stores or
// refreshes sessions; callers own the session lifecycle.
type Client struct {
	baseURL     *url.URL
	anonKey     string
	accessToken string
	http        *http.Client
}

// NewClient returns an anonymous client, or a bearer client when accessToken
// is set so row-level policies evaluate requests as that user.
func NewClient(cfg Config, accessToken string) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: invalid url %q", ErrConfiguration, cfg.URL)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:     base,
		anonKey:     cfg.AnonKey,
		accessToken: accessToken,
		http:        hc,
	}, nil
}

func (c *Client) Authenticated() bool {
	return c.accessToken != ""
}

type request struct {
	method  string
	path    string
	query   url.Values
	body    any
	headers map[string]string
}

func (c *Client) do(ctx context.Context, req request, out any) error {
	u := *c.baseURL
	u.Path = u.Path + req.path
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		b, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	bearer := c.anonKey
	if c.accessToken != "" {
		bearer = c.accessToken
	}
	httpReq.Header.Set("apikey", c.anonKey)
	httpReq.Header.Set("Authorization", "Bearer "+bearer)
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUpstream, req.method, req.path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}
	return nil
}

func decodeAPIError(status int, raw []byte) error {
	// auth and rest use different error shapes
	var body struct {
		Code             json.RawMessage `json:"code"`
		ErrorCode        string          `json:"error_code"`
		Error            string          `json:"error"`
		ErrorDescription string          `json:"error_description"`
		Msg              string          `json:"msg"`
		Message          string          `json:"message"`
	}
	_ = json.Unmarshal(raw, &body)

	apiErr := &APIError{Status: status}
	switch {
	case body.ErrorCode != "":
		apiErr.Code = body.ErrorCode
	case len(body.Code) > 0 && body.Code[0] == '"':
		_ = json.Unmarshal(body.Code, &apiErr.Code)
	case body.Error != "":
		apiErr.Code = body.Error
	}
	for _, m := range []string{body.Message, body.Msg, body.ErrorDescription, body.Error} {
		if m != "" {
			apiErr.Message = m
			break
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

// UserMessage returns a message that is safe to show to end users: the
// provider's own message for client errors, fallback otherwise.
func UserMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
