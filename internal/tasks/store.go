package tasks

import (
	"context"
	"fmt"
	"strings"
)

// Store persists tasks. Every method is scoped to owner: rows belonging to
// anyone else are invisible, so acting on them reports ErrNotFound.
type Store interface {
	List(ctx context.Context, owner Owner, f Filters) ([]Task, error)
	Create(ctx context.Context, owner Owner, d Draft) (Task, error)
	Update(ctx context.Context, owner Owner, id string, p Patch) (Task, error)
	Delete(ctx context.Context, owner Owner, id string) error
	ClearCompleted(ctx context.Context, owner Owner) (int, error)
}

func checkOwner(owner Owner) error {
	if strings.TrimSpace(owner.ID) == "" {
		return fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	return nil
}

func validateDraft(d Draft) error {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if !d.Priority.Valid() {
		return fmt.Errorf("%w: priority must be Low, Medium, or High", ErrInvalidInput)
	}
	if d.DueDate.IsZero() {
		return fmt.Errorf("%w: due date is required", ErrInvalidInput)
	}
	if d.Status != "" && !d.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, d.Status)
	}
	return nil
}

func validatePatch(p Patch) error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return fmt.Errorf("%w: priority must be Low, Medium, or High", ErrInvalidInput)
	}
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *p.Status)
	}
	return nil
}

func (d Draft) normalized() Draft {
	d.Title = strings.TrimSpace(d.Title)
	d.DueDate = d.DueDate.UTC()
	if d.Status == "" {
		d.Status = StatusPending
	}
	return d
}

func (p Patch) apply(t *Task) {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.DueDate != nil {
		t.DueDate = p.DueDate.UTC()
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
}

func matches(t Task, f Filters) bool {
	if s, ok := f.status(); ok && t.Status != s {
		return false
	}
	if p, ok := f.priority(); ok && t.Priority != p {
		return false
	}
	if q := strings.TrimSpace(f.Query); q != "" && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(q)) {
		return false
	}
	return true
}
