package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"queueapp/queue-web/internal/supabase"
)

const restTable = "tasks"

// ClientFactory builds a gateway client carrying the caller's bearer token.
type ClientFactory interface {
	Client(accessToken string) (*supabase.Client, error)
}

// RESTStore keeps tasks in the hosted tasks table. Requests carry the owner's
// access token so the table's row policies apply on top of the user_id filter.
type RESTStore struct {
	clients ClientFactory
}

func NewRESTStore(clients ClientFactory) *RESTStore {
	return &RESTStore{clients: clients}
}

type restRow struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Priority    string    `json:"priority"`
	DueDate     time.Time `json:"due_date"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (r restRow) task() Task {
	t := Task{
		ID:        r.ID,
		UserID:    r.UserID,
		Title:     r.Title,
		Priority:  Priority(r.Priority),
		DueDate:   r.DueDate.UTC(),
		Status:    Status(r.Status),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.Description != nil {
		t.Description = *r.Description
	}
	return t
}

func (s *RESTStore) client(owner Owner) (*supabase.Client, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	return s.clients.Client(owner.AccessToken)
}

func (s *RESTStore) List(ctx context.Context, owner Owner, f Filters) ([]Task, error) {
	c, err := s.client(owner)
	if err != nil {
		return nil, err
	}
	f = f.Normalize()

	q := c.From(restTable).Eq("user_id", owner.ID)
	if st, ok := f.status(); ok {
		q = q.Eq("status", string(st))
	}
	if p, ok := f.priority(); ok {
		q = q.Eq("priority", string(p))
	}
	if term := strings.TrimSpace(f.Query); term != "" {
		q = q.ILike("title", "%"+term+"%")
	}
	switch f.Sort {
	case SortCreatedAt:
		q = q.Order("created_at", false)
	case SortPriority:
		// text order is not rank order; sorted below
		q = q.Order("created_at", false)
	default:
		q = q.Order("due_date", true)
	}

	var rows []restRow
	if err := q.Select(ctx, "*", &rows); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	out := make([]Task, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.task())
	}
	if f.Sort == SortPriority {
		sortTasks(out, SortPriority)
	}
	return out, nil
}

func (s *RESTStore) Create(ctx context.Context, owner Owner, d Draft) (Task, error) {
	if err := validateDraft(d); err != nil {
		return Task{}, err
	}
	c, err := s.client(owner)
	if err != nil {
		return Task{}, err
	}
	d = d.normalized()

	row := map[string]any{
		"user_id":     owner.ID,
		"title":       d.Title,
		"description": d.Description,
		"priority":    string(d.Priority),
		"due_date":    d.DueDate,
		"status":      string(d.Status),
	}
	var rows []restRow
	if err := c.From(restTable).Insert(ctx, row, &rows); err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	if len(rows) == 0 {
		return Task{}, fmt.Errorf("insert task: %w: no row returned", supabase.ErrUpstream)
	}
	return rows[0].task(), nil
}

func (s *RESTStore) Update(ctx context.Context, owner Owner, id string, p Patch) (Task, error) {
	if err := validatePatch(p); err != nil {
		return Task{}, err
	}
	c, err := s.client(owner)
	if err != nil {
		return Task{}, err
	}

	patch := map[string]any{}
	if p.Title != nil {
		patch["title"] = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		patch["description"] = *p.Description
	}
	if p.Priority != nil {
		patch["priority"] = string(*p.Priority)
	}
	if p.DueDate != nil {
		patch["due_date"] = p.DueDate.UTC()
	}
	if p.Status != nil {
		patch["status"] = string(*p.Status)
	}

	var rows []restRow
	err = c.From(restTable).
		Eq("id", strings.TrimSpace(id)).
		Eq("user_id", owner.ID).
		Update(ctx, patch, &rows)
	if err != nil {
		if invalidID(err) {
			return Task{}, ErrNotFound
		}
		return Task{}, fmt.Errorf("update task: %w", err)
	}
	if len(rows) == 0 {
		return Task{}, ErrNotFound
	}
	return rows[0].task(), nil
}

func (s *RESTStore) Delete(ctx context.Context, owner Owner, id string) error {
	c, err := s.client(owner)
	if err != nil {
		return err
	}
	var rows []restRow
	err = c.From(restTable).
		Eq("id", strings.TrimSpace(id)).
		Eq("user_id", owner.ID).
		Delete(ctx, &rows)
	if err != nil {
		if invalidID(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete task: %w", err)
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RESTStore) ClearCompleted(ctx context.Context, owner Owner) (int, error) {
	c, err := s.client(owner)
	if err != nil {
		return 0, err
	}
	var rows []restRow
	err = c.From(restTable).
		Eq("user_id", owner.ID).
		Eq("status", string(StatusCompleted)).
		Delete(ctx, &rows)
	if err != nil {
		return 0, fmt.Errorf("clear completed tasks: %w", err)
	}
	return len(rows), nil
}

func invalidID(err error) bool {
	var apiErr *supabase.APIError
	return errors.As(err, &apiErr) && apiErr.Code == "22P02"
}
