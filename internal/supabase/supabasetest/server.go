// Package supabasetest runs an in-process stand-in for the auth and rest APIs
// a Supabase project exposes. Row visibility on the rest side follows the
// owner policy the production tasks table uses: user_id = auth.uid().
package supabasetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"queueapp/queue-web/internal/identity"
	"queueapp/queue-web/internal/supabase"
)

const AnonKey = "test-anon-key"

type claims struct {
	jwt.RegisteredClaims
	Email     string `json:"email"`
	SessionID string `json:"session_id"`
}

type account struct {
	record identity.Record
	hash   []byte
}

type refreshGrant struct {
	userID    string
	sessionID string
}

// Recovery is a recorded password reset request.
type Recovery struct {
	Email      string
	RedirectTo string
}

type Server struct {
	URL string

	// AccessTTL is the lifetime of issued access tokens.
	AccessTTL time.Duration
	// RequireConfirmation makes sign up return a user without a session.
	RequireConfirmation bool

	srv    *httptest.Server
	secret []byte

	mu         sync.Mutex
	accounts   map[string]*account
	byEmail    map[string]string
	refresh    map[string]refreshGrant
	sessions   map[string]bool
	rows       []map[string]any
	recoveries []Recovery
	calls      map[string]int
}

// NewServer starts a server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		AccessTTL: time.Hour,
		secret:    []byte("supabasetest-jwt-secret"),
		accounts:  make(map[string]*account),
		byEmail:   make(map[string]string),
		refresh:   make(map[string]refreshGrant),
		sessions:  make(map[string]bool),
		calls:     make(map[string]int),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/signup", s.handleSignUp)
	mux.HandleFunc("/auth/v1/token", s.handleToken)
	mux.HandleFunc("/auth/v1/user", s.handleUser)
	mux.HandleFunc("/auth/v1/logout", s.handleLogout)
	mux.HandleFunc("/auth/v1/recover", s.handleRecover)
	mux.HandleFunc("/rest/v1/tasks", s.handleTasks)

	s.srv = httptest.NewServer(s.countCalls(s.requireAPIKey(mux)))
	s.URL = s.srv.URL
	t.Cleanup(s.srv.Close)
	return s
}

func (s *Server) Config() supabase.Config {
	return supabase.Config{URL: s.URL, AnonKey: AnonKey, HTTPClient: s.srv.Client()}
}

// CreateUser registers a confirmed account and returns its record.
func (s *Server) CreateUser(email, password string, metadata map[string]any) identity.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createUserLocked(email, password, metadata)
}

// IssueSession mints a session for userID. A negative accessTTL yields an
// already expired access token with a usable refresh token.
func (s *Server) IssueSession(userID string, accessTTL time.Duration) *supabase.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(userID, newSessionID(), accessTTL)
}

// Calls reports how many requests hit path, keyed as "METHOD /path".
func (s *Server) Calls(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key]
}

func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = make(map[string]int)
}

func (s *Server) Recoveries() []Recovery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Recovery(nil), s.recoveries...)
}

// SessionActive reports whether the session behind an access token is still live.
func (s *Server) SessionActive(accessToken string) bool {
	c, err := s.parse(accessToken, false)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[c.SessionID]
}

func newSessionID() string {
	return uuid.NewString()
}

func (s *Server) createUserLocked(email, password string, metadata map[string]any) identity.Record {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if metadata == nil {
		metadata = map[string]any{}
	}
	rec := identity.Record{
		ID:        uuid.NewString(),
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  metadata,
	}
	s.accounts[rec.ID] = &account{record: rec, hash: hash}
	s.byEmail[strings.ToLower(email)] = rec.ID
	return rec
}

func (s *Server) issueLocked(userID, sessionID string, accessTTL time.Duration) *supabase.Session {
	acct := s.accounts[userID]
	if acct == nil {
		return nil
	}
	exp := time.Now().Add(accessTTL)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.NewString(),
		},
		Email:     acct.record.Email,
		SessionID: sessionID,
	})
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		panic(err)
	}
	refresh := strings.ReplaceAll(uuid.NewString(), "-", "")
	s.refresh[refresh] = refreshGrant{userID: userID, sessionID: sessionID}
	s.sessions[sessionID] = true

	rec := acct.record
	expiresAt := exp.Unix()
	return &supabase.Session{
		AccessToken:  signed,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(accessTTL / time.Second),
		ExpiresAt:    &expiresAt,
		User:         &rec,
	}
}

func (s *Server) parse(token string, checkExpiry bool) (*claims, error) {
	c := &claims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if !checkExpiry {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}
	_, err := jwt.ParseWithClaims(token, c, func(*jwt.Token) (any, error) { return s.secret, nil }, opts...)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// authenticate resolves a bearer access token to a live account.
func (s *Server) authenticate(r *http.Request) (*account, *claims, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == AnonKey || token == "" {
		return nil, nil, false
	}
	c, err := s.parse(token, true)
	if err != nil {
		return nil, nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acct := s.accounts[c.Subject]
	if acct == nil || !s.sessions[c.SessionID] {
		return nil, nil, false
	}
	return acct, c, true
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != AnonKey {
			writeAuthError(w, http.StatusUnauthorized, "no_api_key", "No API key found in request")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) countCalls(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.Method+" "+r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAuthError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{"code": status, "error_code": code, "msg": msg})
}

func writeRestError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{"code": code, "message": msg, "details": nil, "hint": nil})
}
