package supabasetest

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeAuthError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req struct {
		Email    string         `json:"email"`
		Password string         `json:"password"`
		Data     map[string]any `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeAuthError(w, http.StatusBadRequest, "validation_failed", "Unable to validate email address")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[strings.ToLower(req.Email)]; exists {
		writeAuthError(w, http.StatusUnprocessableEntity, "user_already_exists", "User already registered")
		return
	}
	rec := s.createUserLocked(req.Email, req.Password, req.Data)
	if s.RequireConfirmation {
		writeJSON(w, http.StatusOK, rec)
		return
	}
	writeJSON(w, http.StatusOK, s.issueLocked(rec.ID, newSessionID(), s.AccessTTL))
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeAuthError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req struct {
		Email        string `json:"email"`
		Password     string `json:"password"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAuthError(w, http.StatusBadRequest, "bad_json", "Could not parse request body as JSON")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch r.URL.Query().Get("grant_type") {
	case "password":
		id, ok := s.byEmail[strings.ToLower(req.Email)]
		if !ok || bcrypt.CompareHashAndPassword(s.accounts[id].hash, []byte(req.Password)) != nil {
			writeAuthError(w, http.StatusBadRequest, "invalid_credentials", "Invalid login credentials")
			return
		}
		writeJSON(w, http.StatusOK, s.issueLocked(id, newSessionID(), s.AccessTTL))
	case "refresh_token":
		grant, ok := s.refresh[req.RefreshToken]
		if !ok || !s.sessions[grant.sessionID] {
			writeAuthError(w, http.StatusBadRequest, "refresh_token_not_found", "Invalid Refresh Token: Refresh Token Not Found")
			return
		}
		delete(s.refresh, req.RefreshToken)
		writeJSON(w, http.StatusOK, s.issueLocked(grant.userID, grant.sessionID, s.AccessTTL))
	default:
		writeAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "unsupported grant type")
	}
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	acct, _, ok := s.authenticate(r)
	if !ok {
		writeAuthError(w, http.StatusForbidden, "bad_jwt", "invalid JWT: unable to parse or verify signature")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		rec := acct.record
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, rec)
	case http.MethodPut:
		var req struct {
			Data map[string]any `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeAuthError(w, http.StatusBadRequest, "bad_json", "Could not parse request body as JSON")
			return
		}
		s.mu.Lock()
		meta := make(map[string]any, len(acct.record.Metadata)+len(req.Data))
		for k, v := range acct.record.Metadata {
			meta[k] = v
		}
		for k, v := range req.Data {
			meta[k] = v
		}
		acct.record.Metadata = meta
		acct.record.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
		rec := acct.record
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, rec)
	default:
		writeAuthError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	_, c, ok := s.authenticate(r)
	if !ok {
		writeAuthError(w, http.StatusForbidden, "bad_jwt", "invalid JWT: unable to parse or verify signature")
		return
	}
	s.mu.Lock()
	delete(s.sessions, c.SessionID)
	for tok, grant := range s.refresh {
		if grant.sessionID == c.SessionID {
			delete(s.refresh, tok)
		}
	}
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecover(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeAuthError(w, http.StatusBadRequest, "validation_failed", "Unable to validate email address")
		return
	}
	s.mu.Lock()
	s.recoveries = append(s.recoveries, Recovery{Email: req.Email, RedirectTo: r.URL.Query().Get("redirect_to")})
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{})
}
