package httpserver

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"queueapp/queue-web/internal/audit"
	"queueapp/queue-web/internal/auth"
	"queueapp/queue-web/internal/identity"
	"queueapp/queue-web/internal/session"
	"queueapp/queue-web/internal/supabase"
	"queueapp/queue-web/internal/validation"
)

const resetPrompt = "Enter the email tied to your workspace"

func (h *handlers) registerAuthRoutes(r chi.Router) {
	r.Get("/login", h.guestPage)
	r.Post("/login", validation.Handle(validation.ParseLogin, h.login))
	r.Get("/signup", h.guestPage)
	r.Post("/signup", validation.Handle(validation.ParseSignUp, h.signUp))
	r.Get("/forgot-password", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": resetPrompt})
	})
	r.Post("/forgot-password", validation.Handle(validation.ParseReset, h.forgotPassword))
	r.Post("/api/auth/signout", h.signOut)
}

// guestPage sends signed-in users on to their dashboard.
func (h *handlers) guestPage(w http.ResponseWriter, r *http.Request) {
	if auth.FromContext(r.Context()).Authenticated() {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request, in validation.Login, _ validation.Values) {
	values := map[string]string{"email": in.Email}

	res, err := h.deps.Identity.SignInWithPassword(r.Context(), in.Email, in.Password)
	if err != nil {
		var apiErr *supabase.APIError
		if !errors.As(err, &apiErr) {
			h.log.ErrorContext(r.Context(), "login failed", "error", err)
			h.audit(r, in.Email, "auth.login", "", audit.OutcomeFailed, err.Error())
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"message": "An error occurred during login. Please try again.",
				"values":  values,
			})
			return
		}
		h.log.InfoContext(r.Context(), "login rejected", "status", apiErr.Status, "code", apiErr.Code)
		h.audit(r, in.Email, "auth.login", "", audit.OutcomeFailed, apiErr.Message)
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"message": supabase.UserMessage(err, "Invalid email or password"),
			"values":  values,
		})
		return
	}

	if res == nil || res.Session == nil || res.User == nil ||
		h.deps.Codec.Write(session.NewJar(w, r), res.Session.Raw()) == nil {
		h.log.ErrorContext(r.Context(), "login returned no session")
		h.audit(r, in.Email, "auth.login", "", audit.OutcomeFailed, "no session")
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"message": "Unable to create session. Please try again.",
			"values":  values,
		})
		return
	}

	h.audit(r, res.User.ID, "auth.login", "", audit.OutcomeSuccess, "")
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (h *handlers) signUp(w http.ResponseWriter, r *http.Request, in validation.SignUp, _ validation.Values) {
	values := map[string]string{"name": in.Name, "email": in.Email}
	color := identity.RandomAvatarColor()

	res, err := h.deps.Identity.SignUp(r.Context(), in.Email, in.Password, map[string]any{
		"name":        in.Name,
		"avatarColor": color,
	})
	if err != nil {
		var apiErr *supabase.APIError
		if !errors.As(err, &apiErr) {
			h.log.ErrorContext(r.Context(), "signup failed", "error", err)
			h.audit(r, in.Email, "auth.signup", "", audit.OutcomeFailed, err.Error())
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"message": "An error occurred during signup. Please try again.",
				"values":  values,
			})
			return
		}
		h.audit(r, in.Email, "auth.signup", "", audit.OutcomeFailed, apiErr.Message)
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"message": supabase.UserMessage(err, "Unable to create account"),
			"values":  values,
		})
		return
	}

	switch {
	case res != nil && res.User != nil && res.Session == nil:
		h.log.InfoContext(r.Context(), "signup awaiting email confirmation", "avatar_color", color)
		h.audit(r, res.User.ID, "auth.signup", "", audit.OutcomeSuccess, "confirmation required")
		writeJSON(w, http.StatusOK, map[string]bool{"success": true, "emailConfirmationRequired": true})
	case res != nil && res.User != nil && h.deps.Codec.Write(session.NewJar(w, r), res.Session.Raw()) != nil:
		h.audit(r, res.User.ID, "auth.signup", "", audit.OutcomeSuccess, "")
		writeJSON(w, http.StatusOK, map[string]bool{"success": true, "emailConfirmationRequired": false})
	default:
		h.log.WarnContext(r.Context(), "unexpected signup result")
		writeMessage(w, http.StatusBadRequest, "Unable to create account")
	}
}

func (h *handlers) forgotPassword(w http.ResponseWriter, r *http.Request, in validation.Reset, _ validation.Values) {
	err := h.deps.Identity.ResetPasswordForEmail(r.Context(), in.Email, requestOrigin(r)+"/login")
	if err != nil {
		h.log.InfoContext(r.Context(), "password reset failed", "error", err)
		h.audit(r, in.Email, "auth.reset", "", audit.OutcomeFailed, err.Error())
		writeMessage(w, http.StatusBadRequest, supabase.UserMessage(err, "Unable to send reset email"))
		return
	}
	h.audit(r, in.Email, "auth.reset", "", audit.OutcomeSuccess, "")
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// signOut revokes the session upstream when it can and always drops the
// local cookie.
func (h *handlers) signOut(w http.ResponseWriter, r *http.Request) {
	jar := session.NewJar(w, r)
	st := auth.FromContext(r.Context())
	env := st.Session
	if env == nil {
		env = h.deps.Codec.Read(jar)
	}

	actor := ""
	if st.User != nil {
		actor = st.User.ID
	}
	if env != nil && env.AccessToken != "" && env.RefreshToken != "" {
		if err := h.deps.Identity.SignOut(r.Context(), env.AccessToken, env.RefreshToken); err != nil {
			h.log.WarnContext(r.Context(), "upstream sign out failed", "error", err)
			h.audit(r, actor, "auth.signout", "", audit.OutcomeFailed, err.Error())
		} else {
			h.audit(r, actor, "auth.signout", "", audit.OutcomeSuccess, "")
		}
	}

	h.deps.Codec.Clear(jar)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
