package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"queueapp/queue-web/internal/identity"
	"queueapp/queue-web/internal/session"
)

// Session is a token pair issued by the auth API.
type Session struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	TokenType    string           `json:"token_type"`
	ExpiresIn    int64            `json:"expires_in"`
	ExpiresAt    *int64           `json:"expires_at"`
	User         *identity.Record `json:"user"`
}

func (s *Session) Raw() session.Raw {
	if s == nil {
		return session.Raw{}
	}
	return session.Raw{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.ExpiresAt,
		ExpiresIn:    s.ExpiresIn,
	}
}

// AuthResult is the outcome of sign in, sign up or refresh. Session is nil
// when sign up requires email confirmation.
type AuthResult struct {
	Session *Session
	User    *identity.Record
}

// GetUser resolves the client's bearer token to a user record.
func (c *Client) GetUser(ctx context.Context) (*identity.Record, error) {
	if !c.Authenticated() {
		return nil, &APIError{Status: http.StatusUnauthorized, Code: "no_authorization", Message: "access token required"}
	}
	var rec identity.Record
	if err := c.do(ctx, request{method: http.MethodGet, path: "/auth/v1/user"}, &rec); err != nil {
		return nil, err
	}
	if rec.ID == "" {
		return nil, fmt.Errorf("%w: user response without id", ErrUpstream)
	}
	return &rec, nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*AuthResult, error) {
	return c.token(ctx, "password", map[string]string{"email": email, "password": password})
}

func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*AuthResult, error) {
	return c.token(ctx, "refresh_token", map[string]string{"refresh_token": refreshToken})
}

func (c *Client) token(ctx context.Context, grant string, body map[string]string) (*AuthResult, error) {
	var s Session
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {grant}},
		body:   body,
	}, &s)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Session: &s, User: s.User}, nil
}

func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*AuthResult, error) {
	var raw json.RawMessage
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		body: map[string]any{
			"email":    email,
			"password": password,
			"data":     metadata,
		},
	}, &raw)
	if err != nil {
		return nil, err
	}

	// with autoconfirm the response is a session, otherwise the bare user
	var s Session
	if err := json.Unmarshal(raw, &s); err == nil && s.AccessToken != "" {
		return &AuthResult{Session: &s, User: s.User}, nil
	}
	var rec identity.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: decode signup response: %v", ErrUpstream, err)
	}
	if rec.ID == "" {
		return &AuthResult{}, nil
	}
	return &AuthResult{User: &rec}, nil
}

func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	q := url.Values{}
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/recover",
		query:  q,
		body:   map[string]string{"email": email},
	}, nil)
}

// Logout revokes the session of the client's bearer token.
func (c *Client) Logout(ctx context.Context) error {
	if !c.Authenticated() {
		return nil
	}
	return c.do(ctx, request{method: http.MethodPost, path: "/auth/v1/logout"}, nil)
}

func (c *Client) UpdateUser(ctx context.Context, metadata map[string]any) (*identity.Record, error) {
	var rec identity.Record
	err := c.do(ctx, request{
		method: http.MethodPut,
		path:   "/auth/v1/user",
		body:   map[string]any{"data": metadata},
	}, &rec)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Provider is the identity provider as seen by the web tier. Every call uses
// a fresh client so no credentials outlive the call.
type Provider struct {
	cfg Config
}

func NewProvider(cfg Config) (*Provider, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Provider{cfg: cfg}, nil
}

func (p *Provider) Client(accessToken string) (*Client, error) {
	return NewClient(p.cfg, accessToken)
}

func (p *Provider) VerifyAccessToken(ctx context.Context, token string) (*identity.Record, error) {
	c, err := p.Client(token)
	if err != nil {
		return nil, err
	}
	return c.GetUser(ctx)
}

func (p *Provider) RefreshSession(ctx context.Context, refreshToken string) (*AuthResult, error) {
	c, err := p.Client("")
	if err != nil {
		return nil, err
	}
	return c.RefreshSession(ctx, refreshToken)
}

func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*AuthResult, error) {
	c, err := p.Client("")
	if err != nil {
		return nil, err
	}
	return c.SignInWithPassword(ctx, email, password)
}

func (p *Provider) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*AuthResult, error) {
	c, err := p.Client("")
	if err != nil {
		return nil, err
	}
	return c.SignUp(ctx, email, password, metadata)
}

func (p *Provider) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	c, err := p.Client("")
	if err != nil {
		return err
	}
	return c.ResetPasswordForEmail(ctx, email, redirectTo)
}

func (p *Provider) UpdateUserMetadata(ctx context.Context, accessToken string, metadata map[string]any) (*identity.Record, error) {
	c, err := p.Client(accessToken)
	if err != nil {
		return nil, err
	}
	return c.UpdateUser(ctx, metadata)
}

// SignOut revokes the stored session upstream. An access token the API no
// longer accepts is exchanged via the refresh token first.
func (p *Provider) SignOut(ctx context.Context, accessToken, refreshToken string) error {
	c, err := p.Client(accessToken)
	if err != nil {
		return err
	}
	err = c.Logout(ctx)
	var apiErr *APIError
	if err == nil || refreshToken == "" || !errors.As(err, &apiErr) {
		return err
	}
	if apiErr.Status != http.StatusUnauthorized && apiErr.Status != http.StatusForbidden {
		return err
	}

	res, rerr := p.RefreshSession(ctx, refreshToken)
	if rerr != nil {
		return fmt.Errorf("sign out: %w", rerr)
	}
	if res.Session == nil || res.Session.AccessToken == "" {
		return fmt.Errorf("%w: refresh returned no session", ErrUpstream)
	}
	c, err = p.Client(res.Session.AccessToken)
	if err != nil {
		return err
	}
	return c.Logout(ctx)
}
