package supabase_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queueapp/queue-web/internal/supabase"
	"queueapp/queue-web/internal/supabase/supabasetest"
)

func TestNewClientRequiresConfiguration(t *testing.T) {
	cases := []supabase.Config{
		{},
		{URL: "https://x.supabase.co"},
		{AnonKey: "anon"},
		{URL: "  ", AnonKey: "anon"},
	}
	for _, cfg := range cases {
		_, err := supabase.NewClient(cfg, "")
		assert.ErrorIs(t, err, supabase.ErrConfiguration)
		_, err = supabase.NewProvider(cfg)
		assert.ErrorIs(t, err, supabase.ErrConfiguration)
	}

	_, err := supabase.NewClient(supabase.Config{URL: "not a url", AnonKey: "anon"}, "")
	assert.ErrorIs(t, err, supabase.ErrConfiguration)
}

func TestClientCredentialHeaders(t *testing.T) {
	var gotAuth, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("apikey")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	cfg := supabase.Config{URL: srv.URL, AnonKey: "anon"}

	anon, err := supabase.NewClient(cfg, "")
	require.NoError(t, err)
	assert.False(t, anon.Authenticated())
	var rows []map[string]any
	require.NoError(t, anon.From("tasks").Select(context.Background(), "*", &rows))
	assert.Equal(t, "Bearer anon", gotAuth)
	assert.Equal(t, "anon", gotKey)

	bearer, err := supabase.NewClient(cfg, "user-token")
	require.NoError(t, err)
	assert.True(t, bearer.Authenticated())
	require.NoError(t, bearer.From("tasks").Select(context.Background(), "*", &rows))
	assert.Equal(t, "Bearer user-token", gotAuth)
	assert.Equal(t, "anon", gotKey)
}

func TestQueryEncoding(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c, err := supabase.NewClient(supabase.Config{URL: srv.URL, AnonKey: "anon"}, "tok")
	require.NoError(t, err)

	var rows []map[string]any
	err = c.From("tasks").
		Eq("user_id", "u1").
		Eq("status", "In Progress").
		ILike("title", "%milk%").
		Order("due_date", true).
		Select(context.Background(), "*", &rows)
	require.NoError(t, err)

	q := got.URL.Query()
	assert.Equal(t, "/rest/v1/tasks", got.URL.Path)
	assert.Equal(t, "eq.u1", q.Get("user_id"))
	assert.Equal(t, "eq.In Progress", q.Get("status"))
	assert.Equal(t, "ilike.%milk%", q.Get("title"))
	assert.Equal(t, "due_date.asc", q.Get("order"))
	assert.Equal(t, "*", q.Get("select"))
}

func TestAPIErrorDecoding(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		body     string
		wantCode string
		wantMsg  string
	}{
		{"auth", 400, `{"code":400,"error_code":"invalid_credentials","msg":"Invalid login credentials"}`, "invalid_credentials", "Invalid login credentials"},
		{"oauth", 400, `{"error":"invalid_grant","error_description":"Invalid Refresh Token"}`, "invalid_grant", "Invalid Refresh Token"},
		{"rest", 400, `{"code":"22P02","message":"invalid input syntax for type uuid"}`, "22P02", "invalid input syntax for type uuid"},
		{"empty", 502, ``, "", "Bad Gateway"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c, err := supabase.NewClient(supabase.Config{URL: srv.URL, AnonKey: "anon"}, "")
			require.NoError(t, err)
			err = c.ResetPasswordForEmail(context.Background(), "a@b.c", "")

			var apiErr *supabase.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.ErrorIs(t, err, supabase.ErrUpstream)
			assert.Equal(t, tc.status, apiErr.Status)
			assert.Equal(t, tc.wantCode, apiErr.Code)
			assert.Equal(t, tc.wantMsg, apiErr.Message)
		})
	}
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Invalid login credentials", supabase.UserMessage(&supabase.APIError{Status: 400, Message: "Invalid login credentials"}, "fallback"))
	assert.Equal(t, "fallback", supabase.UserMessage(&supabase.APIError{Status: 500, Message: "db down"}, "fallback"))
	assert.Equal(t, "fallback", supabase.UserMessage(errors.New("dial tcp"), "fallback"))
}

func TestProviderSignInVerifyRefresh(t *testing.T) {
	fake := supabasetest.NewServer(t)
	rec := fake.CreateUser("ada@example.com", "Secret123!", map[string]any{"name": "Ada"})

	p, err := supabase.NewProvider(fake.Config())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = p.SignInWithPassword(ctx, "ada@example.com", "wrong")
	var apiErr *supabase.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid login credentials", apiErr.Message)

	res, err := p.SignInWithPassword(ctx, "ada@example.com", "Secret123!")
	require.NoError(t, err)
	require.NotNil(t, res.Session)
	require.NotNil(t, res.User)
	assert.Equal(t, rec.ID, res.User.ID)

	user, err := p.VerifyAccessToken(ctx, res.Session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, user.ID)
	assert.Equal(t, "Ada", user.Metadata["name"])

	_, err = p.VerifyAccessToken(ctx, "garbage")
	assert.ErrorIs(t, err, supabase.ErrUpstream)

	refreshed, err := p.RefreshSession(ctx, res.Session.RefreshToken)
	require.NoError(t, err)
	require.NotNil(t, refreshed.Session)
	assert.NotEqual(t, res.Session.RefreshToken, refreshed.Session.RefreshToken)

	_, err = p.RefreshSession(ctx, res.Session.RefreshToken)
	assert.Error(t, err, "refresh tokens are single use")
}

func TestProviderSignUp(t *testing.T) {
	fake := supabasetest.NewServer(t)
	p, err := supabase.NewProvider(fake.Config())
	require.NoError(t, err)
	ctx := context.Background()

	res, err := p.SignUp(ctx, "new@example.com", "Secret123!", map[string]any{"name": "New", "avatarColor": "sky"})
	require.NoError(t, err)
	require.NotNil(t, res.Session)
	require.NotNil(t, res.User)
	assert.Equal(t, "sky", res.User.Metadata["avatarColor"])

	fake.RequireConfirmation = true
	res, err = p.SignUp(ctx, "pending@example.com", "Secret123!", nil)
	require.NoError(t, err)
	assert.Nil(t, res.Session)
	require.NotNil(t, res.User)
	assert.Equal(t, "pending@example.com", res.User.Email)

	_, err = p.SignUp(ctx, "pending@example.com", "Secret123!", nil)
	var apiErr *supabase.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
}

func TestProviderSignOutWithExpiredAccessToken(t *testing.T) {
	fake := supabasetest.NewServer(t)
	rec := fake.CreateUser("ada@example.com", "Secret123!", nil)
	sess := fake.IssueSession(rec.ID, -time.Minute)

	p, err := supabase.NewProvider(fake.Config())
	require.NoError(t, err)

	require.NoError(t, p.SignOut(context.Background(), sess.AccessToken, sess.RefreshToken))
	assert.False(t, fake.SessionActive(sess.AccessToken))
	_, err = p.RefreshSession(context.Background(), sess.RefreshToken)
	assert.Error(t, err)
}

func TestProviderResetPasswordAndUpdateUser(t *testing.T) {
	fake := supabasetest.NewServer(t)
	rec := fake.CreateUser("ada@example.com", "Secret123!", map[string]any{"name": "Ada"})
	sess := fake.IssueSession(rec.ID, time.Hour)

	p, err := supabase.NewProvider(fake.Config())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, p.ResetPasswordForEmail(ctx, "ada@example.com", "http://app.test/login"))
	require.Len(t, fake.Recoveries(), 1)
	assert.Equal(t, "http://app.test/login", fake.Recoveries()[0].RedirectTo)

	updated, err := p.UpdateUserMetadata(ctx, sess.AccessToken, map[string]any{"title": "Engineer"})
	require.NoError(t, err)
	assert.Equal(t, "Engineer", updated.Metadata["title"])
	assert.Equal(t, "Ada", updated.Metadata["name"])
}

func TestSessionRaw(t *testing.T) {
	exp := int64(99)
	s := &supabase.Session{AccessToken: "a", RefreshToken: "r", ExpiresIn: 10, ExpiresAt: &exp}
	raw := s.Raw()
	assert.Equal(t, "a", raw.AccessToken)
	assert.Equal(t, "r", raw.RefreshToken)
	assert.EqualValues(t, 10, raw.ExpiresIn)
	assert.Equal(t, &exp, raw.ExpiresAt)

	var nilSession *supabase.Session
	assert.Empty(t, nilSession.Raw().AccessToken)
}
