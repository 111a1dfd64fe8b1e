package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"queueapp/queue-web/internal/audit"
	"queueapp/queue-web/internal/auth"
	"queueapp/queue-web/internal/identity"
	"queueapp/queue-web/internal/supabase"
	"queueapp/queue-web/internal/tasks"
	"queueapp/queue-web/internal/validation"
)

func (h *handlers) registerTaskRoutes(r chi.Router) {
	r.Get("/dashboard", h.dashboard)
	r.Post("/dashboard/create", validation.Handle(tasks.ParseDraft, h.createTask))
	r.Post("/dashboard/update", validation.Handle(tasks.ParseUpdate, h.updateTask))
	r.Post("/dashboard/delete", validation.Handle(tasks.ParseID, h.deleteTask))
	r.Post("/dashboard/toggle", validation.Handle(tasks.ParseToggle, h.toggleTask))
	r.Post("/dashboard/bulk-clear", h.clearCompleted)
}

func (h *handlers) registerProfileRoutes(r chi.Router) {
	r.Get("/profile", h.profile)
	r.Post("/profile", validation.Handle(validation.ParseProfile, h.updateProfile))
}

// requireUser bounces anonymous requests to the login page.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := auth.RequireIdentity(r.Context()); err != nil {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// owner is the per-action guard. Every store call is scoped to its result.
func (h *handlers) owner(w http.ResponseWriter, r *http.Request) (identity.User, tasks.Owner, bool) {
	user, err := auth.RequireIdentity(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return identity.User{}, tasks.Owner{}, false
	}
	return user, tasks.Owner{ID: user.ID, AccessToken: auth.FromContext(r.Context()).AccessToken()}, true
}

func (h *handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	user, owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	view, err := h.deps.Tasks.BuildView(r.Context(), owner, tasks.ParseFilters(r.URL.Query()))
	if err != nil {
		h.log.ErrorContext(r.Context(), "load dashboard", "user_id", owner.ID, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Failed to load tasks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":    user,
		"tasks":   view.Tasks,
		"filters": view.Filters,
		"stats":   view.Stats,
	})
}

func (h *handlers) createTask(w http.ResponseWriter, r *http.Request, d tasks.Draft, _ validation.Values) {
	_, owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	task, err := h.deps.Tasks.Create(r.Context(), owner, d)
	if err != nil {
		h.taskFailure(w, r, owner, "task.create", "", err, "Failed to create task")
		return
	}
	h.audit(r, owner.ID, "task.create", task.ID, audit.OutcomeSuccess, "")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "task": task})
}

func (h *handlers) updateTask(w http.ResponseWriter, r *http.Request, in tasks.Update, _ validation.Values) {
	_, owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	task, err := h.deps.Tasks.Update(r.Context(), owner, in.ID, in.Patch)
	if err != nil {
		h.taskFailure(w, r, owner, "task.update", in.ID, err, "Failed to update task")
		return
	}
	h.audit(r, owner.ID, "task.update", task.ID, audit.OutcomeSuccess, "")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "task": task})
}

func (h *handlers) deleteTask(w http.ResponseWriter, r *http.Request, id string, _ validation.Values) {
	_, owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	if err := h.deps.Tasks.Delete(r.Context(), owner, id); err != nil {
		h.taskFailure(w, r, owner, "task.delete", id, err, "Failed to delete task")
		return
	}
	h.audit(r, owner.ID, "task.delete", id, audit.OutcomeSuccess, "")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *handlers) toggleTask(w http.ResponseWriter, r *http.Request, in tasks.Toggle, _ validation.Values) {
	_, owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	task, err := h.deps.Tasks.Toggle(r.Context(), owner, in.ID, in.Status)
	if err != nil {
		h.taskFailure(w, r, owner, "task.toggle", in.ID, err, "Failed to update task")
		return
	}
	h.audit(r, owner.ID, "task.toggle", task.ID, audit.OutcomeSuccess, string(task.Status))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "task": task})
}

func (h *handlers) clearCompleted(w http.ResponseWriter, r *http.Request) {
	_, owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	n, err := h.deps.Tasks.ClearCompleted(r.Context(), owner)
	if err != nil {
		h.taskFailure(w, r, owner, "task.bulk_clear", "", err, "Failed to clear completed tasks")
		return
	}
	h.audit(r, owner.ID, "task.bulk_clear", "", audit.OutcomeSuccess, "removed="+strconv.Itoa(n))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// taskFailure maps store errors to responses. Upstream detail stays in the log.
func (h *handlers) taskFailure(w http.ResponseWriter, r *http.Request, owner tasks.Owner, action, target string, err error, generic string) {
	switch {
	case errors.Is(err, tasks.ErrNotFound):
		h.audit(r, owner.ID, action, target, audit.OutcomeDenied, "not found")
		writeMessage(w, http.StatusNotFound, "Task not found")
	case errors.Is(err, tasks.ErrInvalidInput):
		h.audit(r, owner.ID, action, target, audit.OutcomeFailed, err.Error())
		writeMessage(w, http.StatusBadRequest, "Invalid task")
	default:
		h.log.ErrorContext(r.Context(), "task action failed", "action", action, "user_id", owner.ID, "task_id", target, "error", err)
		h.audit(r, owner.ID, action, target, audit.OutcomeFailed, err.Error())
		writeMessage(w, http.StatusInternalServerError, generic)
	}
}

func (h *handlers) profile(w http.ResponseWriter, r *http.Request) {
	user, owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	view, err := h.deps.Tasks.Profile(r.Context(), owner)
	if err != nil {
		h.log.ErrorContext(r.Context(), "load profile", "user_id", owner.ID, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":  user,
		"tasks": view.Tasks,
		"stats": view.Stats,
	})
}

func (h *handlers) updateProfile(w http.ResponseWriter, r *http.Request, in validation.Profile, _ validation.Values) {
	_, owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	meta := identity.ProfileMetadata(identity.ProfileInput{
		Name:        in.Name,
		Title:       in.Title,
		Timezone:    in.Timezone,
		Bio:         in.Bio,
		AvatarColor: in.AvatarColor,
		Preferences: map[string]any{
			"weeklySummary":  in.WeeklySummary,
			"productUpdates": in.ProductUpdates,
		},
	})
	rec, err := h.deps.Identity.UpdateUserMetadata(r.Context(), owner.AccessToken, meta)
	if err != nil {
		h.audit(r, owner.ID, "profile.update", owner.ID, audit.OutcomeFailed, err.Error())
		var apiErr *supabase.APIError
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			writeMessage(w, http.StatusBadRequest, supabase.UserMessage(err, "Unable to update profile"))
			return
		}
		h.log.ErrorContext(r.Context(), "update profile", "user_id", owner.ID, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}
	h.audit(r, owner.ID, "profile.update", owner.ID, audit.OutcomeSuccess, "")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": identity.Map(rec)})
}
