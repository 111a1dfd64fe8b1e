package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queueapp/queue-web/internal/identity"
	"queueapp/queue-web/internal/session"
	"queueapp/queue-web/internal/supabase"
)

type stubVerifier struct {
	mu       sync.Mutex
	users    map[string]*identity.Record
	sessions map[string]*supabase.AuthResult
	verifies int
	refreshs int
	block    bool
}

func newStubVerifier() *stubVerifier {
	return &stubVerifier{
		users:    map[string]*identity.Record{},
		sessions: map[string]*supabase.AuthResult{},
	}
}

func (s *stubVerifier) VerifyAccessToken(ctx context.Context, token string) (*identity.Record, error) {
	s.mu.Lock()
	s.verifies++
	rec, ok := s.users[token]
	block := s.block
	s.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if !ok {
		return nil, &supabase.APIError{Status: http.StatusForbidden, Code: "bad_jwt", Message: "invalid JWT"}
	}
	return rec, nil
}

func (s *stubVerifier) RefreshSession(ctx context.Context, token string) (*supabase.AuthResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshs++
	res, ok := s.sessions[token]
	if !ok {
		return nil, &supabase.APIError{Status: http.StatusBadRequest, Code: "refresh_token_not_found", Message: "Invalid Refresh Token"}
	}
	return res, nil
}

func (s *stubVerifier) calls() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verifies, s.refreshs
}

func cookieFor(t *testing.T, access, refresh string) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	exp := time.Now().Add(time.Hour).Unix()
	env := session.NewCodec(false).Write(session.NewJar(rec, req), session.Raw{AccessToken: access, RefreshToken: refresh, ExpiresAt: &exp})
	require.NotNil(t, env)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

type observed struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (o *observed) record(out Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, out)
}

func serve(t *testing.T, a *Authenticator, cookie *http.Cookie) (*httptest.ResponseRecorder, State) {
	t.Helper()
	var got State
	calls := 0
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		got = FromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, 1, calls)
	return rec, got
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	return nil
}

func TestMiddlewareNoCookie(t *testing.T) {
	v := newStubVerifier()
	var obs observed
	a := NewAuthenticator(v, session.NewCodec(false), Options{Observe: obs.record})

	rec, st := serve(t, a, nil)
	assert.False(t, st.Authenticated())
	assert.Nil(t, sessionCookie(rec))
	verifies, refreshes := v.calls()
	assert.Zero(t, verifies)
	assert.Zero(t, refreshes)
	assert.Equal(t, []Outcome{OutcomeNoCookie}, obs.outcomes)
}

func TestMiddlewareValidSession(t *testing.T) {
	v := newStubVerifier()
	v.users["good"] = &identity.Record{ID: "u1", Email: "ada@example.com", Metadata: map[string]any{"name": "Ada"}}
	var obs observed
	a := NewAuthenticator(v, session.NewCodec(false), Options{Observe: obs.record})

	rec, st := serve(t, a, cookieFor(t, "good", "r1"))
	require.True(t, st.Authenticated())
	assert.Equal(t, "u1", st.User.ID)
	assert.Equal(t, "Ada", st.User.DisplayName)
	assert.Equal(t, "good", st.AccessToken())
	assert.Nil(t, sessionCookie(rec), "a valid session is not rewritten")
	verifies, refreshes := v.calls()
	assert.Equal(t, 1, verifies)
	assert.Zero(t, refreshes)
	assert.Equal(t, []Outcome{OutcomeValid}, obs.outcomes)
}

func TestMiddlewareRefreshesExpiredAccessToken(t *testing.T) {
	v := newStubVerifier()
	exp := time.Now().Add(time.Hour).Unix()
	v.sessions["r1"] = &supabase.AuthResult{
		Session: &supabase.Session{AccessToken: "fresh", RefreshToken: "r2", ExpiresAt: &exp},
		User:    &identity.Record{ID: "u1", Email: "ada@example.com"},
	}
	var obs observed
	a := NewAuthenticator(v, session.NewCodec(false), Options{Observe: obs.record})

	rec, st := serve(t, a, cookieFor(t, "stale", "r1"))
	require.True(t, st.Authenticated())
	assert.Equal(t, "u1", st.User.ID)
	assert.Equal(t, "fresh", st.AccessToken())
	assert.Equal(t, "r2", st.Session.RefreshToken)

	c := sessionCookie(rec)
	require.NotNil(t, c)
	raw, err := url.QueryUnescape(c.Value)
	require.NoError(t, err)
	assert.Contains(t, raw, `"access_token":"fresh"`)
	assert.Contains(t, raw, `"refresh_token":"r2"`)

	verifies, refreshes := v.calls()
	assert.Equal(t, 1, verifies)
	assert.Equal(t, 1, refreshes)
	assert.Equal(t, []Outcome{OutcomeRefreshed}, obs.outcomes)
}

func TestMiddlewareRefreshFailureClearsCookie(t *testing.T) {
	v := newStubVerifier()
	var obs observed
	a := NewAuthenticator(v, session.NewCodec(false), Options{Observe: obs.record})

	rec, st := serve(t, a, cookieFor(t, "stale", "revoked"))
	assert.False(t, st.Authenticated())
	assert.Nil(t, st.Session)
	c := sessionCookie(rec)
	require.NotNil(t, c)
	assert.Less(t, c.MaxAge, 0)
	assert.Equal(t, "/", c.Path)

	verifies, refreshes := v.calls()
	assert.Equal(t, 1, verifies)
	assert.Equal(t, 1, refreshes)
	assert.Equal(t, []Outcome{OutcomeRefreshFailed}, obs.outcomes)
}

func TestMiddlewareIncompleteRefreshIsFailure(t *testing.T) {
	v := newStubVerifier()
	v.sessions["r1"] = &supabase.AuthResult{Session: &supabase.Session{AccessToken: "fresh"}}
	a := NewAuthenticator(v, session.NewCodec(false), Options{})

	rec, st := serve(t, a, cookieFor(t, "stale", "r1"))
	assert.False(t, st.Authenticated())
	c := sessionCookie(rec)
	require.NotNil(t, c)
	assert.Less(t, c.MaxAge, 0)
}

func TestMiddlewareRejectsWithoutRefreshToken(t *testing.T) {
	v := newStubVerifier()
	var obs observed
	a := NewAuthenticator(v, session.NewCodec(false), Options{Observe: obs.record})

	cookie := &http.Cookie{Name: session.CookieName, Value: url.QueryEscape(`{"access_token":"stale"}`)}
	rec, st := serve(t, a, cookie)
	assert.False(t, st.Authenticated())
	c := sessionCookie(rec)
	require.NotNil(t, c)
	assert.Less(t, c.MaxAge, 0)

	_, refreshes := v.calls()
	assert.Zero(t, refreshes)
	assert.Equal(t, []Outcome{OutcomeRejected}, obs.outcomes)
}

func TestMiddlewareMalformedCookieIsAnonymous(t *testing.T) {
	v := newStubVerifier()
	a := NewAuthenticator(v, session.NewCodec(false), Options{})

	_, st := serve(t, a, &http.Cookie{Name: session.CookieName, Value: "not-json"})
	assert.False(t, st.Authenticated())
	verifies, _ := v.calls()
	assert.Zero(t, verifies)
}

func TestMiddlewareBoundsProviderCalls(t *testing.T) {
	v := newStubVerifier()
	v.block = true
	a := NewAuthenticator(v, session.NewCodec(false), Options{Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, st := serve(t, a, cookieFor(t, "slow", "r1"))
	assert.False(t, st.Authenticated())
	assert.Less(t, time.Since(start), 2*time.Second)
	verifies, refreshes := v.calls()
	assert.Equal(t, 1, verifies)
	assert.Equal(t, 1, refreshes)
}

func TestMiddlewareRunsOnce(t *testing.T) {
	v := newStubVerifier()
	v.users["good"] = &identity.Record{ID: "u1"}
	var obs observed
	a := NewAuthenticator(v, session.NewCodec(false), Options{Observe: obs.record})

	var got State
	h := a.Middleware(a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	})))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookieFor(t, "good", "r1"))
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, got.Authenticated())
	verifies, _ := v.calls()
	assert.Equal(t, 1, verifies)
	assert.Len(t, obs.outcomes, 1)
}

func TestRequireIdentity(t *testing.T) {
	_, err := RequireIdentity(context.Background())
	assert.True(t, errors.Is(err, ErrUnauthenticated))

	_, err = RequireIdentity(WithState(context.Background(), State{}))
	assert.ErrorIs(t, err, ErrUnauthenticated)

	ctx := WithState(context.Background(), State{User: &identity.User{ID: "u1", Email: "a@b.co"}})
	u, err := RequireIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
}

func TestStateAccessToken(t *testing.T) {
	assert.Empty(t, State{}.AccessToken())
	assert.Equal(t, "tok", State{Session: &session.Envelope{AccessToken: "tok"}}.AccessToken())
}
