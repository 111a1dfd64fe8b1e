// Package auth resolves the signed-in user for each request from the session
// cookie and guards actions that need one.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"queueapp/queue-web/internal/identity"
	"queueapp/queue-web/internal/session"
	"queueapp/queue-web/internal/supabase"
)

const DefaultTimeout = 5 * time.Second

// Outcome is how a request's session cookie was resolved.
type Outcome string

const (
	OutcomeNoCookie      Outcome = "no_cookie"
	OutcomeValid         Outcome = "valid"
	OutcomeRefreshed     Outcome = "refreshed"
	OutcomeRefreshFailed Outcome = "refresh_failed"
	OutcomeRejected      Outcome = "rejected"
)

// Verifier is the slice of the identity provider the middleware needs.
type Verifier interface {
	VerifyAccessToken(ctx context.Context, accessToken string) (*identity.Record, error)
	RefreshSession(ctx context.Context, refreshToken string) (*supabase.AuthResult, error)
}

type Options struct {
	// Timeout bounds each provider call. Zero means DefaultTimeout.
	Timeout time.Duration
	Logger  *slog.Logger
	// Observe is called once per resolved request.
	Observe func(Outcome)
}

type Authenticator struct {
	verifier Verifier
	codec    *session.Codec
	timeout  time.Duration
	log      *slog.Logger
	observe  func(Outcome)
}

func NewAuthenticator(v Verifier, codec *session.Codec, opts Options) *Authenticator {
	a := &Authenticator{
		verifier: v,
		codec:    codec,
		timeout:  opts.Timeout,
		log:      opts.Logger,
		observe:  opts.Observe,
	}
	if a.timeout <= 0 {
		a.timeout = DefaultTimeout
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	if a.observe == nil {
		a.observe = func(Outcome) {}
	}
	return a
}

// Resolve turns the session cookie in jar into a State. It makes at most two
// provider calls, verify and then refresh, and never retries. Any failure
// leaves the request anonymous with the cookie cleared.
func (a *Authenticator) Resolve(ctx context.Context, jar session.Jar) (State, Outcome) {
	env := a.codec.Read(jar)
	if env == nil {
		return State{}, OutcomeNoCookie
	}

	rec, err := a.verify(ctx, env.AccessToken)
	if err == nil && rec != nil {
		return State{User: identity.Map(rec), Session: env}, OutcomeValid
	}
	a.log.DebugContext(ctx, "access token rejected", "error", err)

	if env.RefreshToken == "" {
		a.codec.Clear(jar)
		return State{}, OutcomeRejected
	}

	res, err := a.refresh(ctx, env.RefreshToken)
	if err != nil || res == nil || res.Session == nil || res.User == nil {
		if err != nil {
			a.log.InfoContext(ctx, "session refresh failed", "error", err)
		}
		a.codec.Clear(jar)
		return State{}, OutcomeRefreshFailed
	}
	next := a.codec.Write(jar, res.Session.Raw())
	if next == nil {
		a.codec.Clear(jar)
		return State{}, OutcomeRefreshFailed
	}
	return State{User: identity.Map(res.User), Session: next}, OutcomeRefreshed
}

func (a *Authenticator) verify(ctx context.Context, token string) (*identity.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.verifier.VerifyAccessToken(ctx, token)
}

func (a *Authenticator) refresh(ctx context.Context, token string) (*supabase.AuthResult, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.verifier.RefreshSession(ctx, token)
}

// Middleware resolves the session before any route logic and stores the
// State in the request context. A request is only resolved once even when
// the middleware is mounted twice.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if resolved(r.Context()) {
			next.ServeHTTP(w, r)
			return
		}
		st, outcome := a.Resolve(r.Context(), session.NewJar(w, r))
		a.observe(outcome)
		next.ServeHTTP(w, r.WithContext(WithState(r.Context(), st)))
	})
}
