package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PGStore reads and writes the tasks table directly. The schema is owned by
// internal/migrations.
type PGStore struct {
	db      *sql.DB
	nowFunc func() time.Time
}

func NewPGStore(db *sql.DB) (*PGStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &PGStore{db: db, nowFunc: time.Now}, nil
}

const taskColumns = `id, user_id, title, description, priority, due_date, status, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(sc scanner) (Task, error) {
	var t Task
	var priority, status string
	if err := sc.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &priority, &t.DueDate, &status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return Task{}, err
	}
	t.Priority = Priority(priority)
	t.Status = Status(status)
	t.DueDate = t.DueDate.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}

func (s *PGStore) List(ctx context.Context, owner Owner, f Filters) ([]Task, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	f = f.Normalize()

	where := []string{"user_id = $1"}
	args := []any{owner.ID}
	if st, ok := f.status(); ok {
		args = append(args, string(st))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if p, ok := f.priority(); ok {
		args = append(args, string(p))
		where = append(where, fmt.Sprintf("priority = $%d", len(args)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		where = append(where, fmt.Sprintf("title ILIKE $%d", len(args)))
	}

	q := "SELECT " + taskColumns + "\nFROM tasks\nWHERE " + strings.Join(where, " AND ") + "\nORDER BY " + orderClause(f.Sort)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	out := make([]Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return out, nil
}

func orderClause(by Sort) string {
	switch by {
	case SortPriority:
		return "CASE priority WHEN 'High' THEN 0 WHEN 'Medium' THEN 1 WHEN 'Low' THEN 2 ELSE 3 END ASC, created_at DESC"
	case SortCreatedAt:
		return "created_at DESC"
	default:
		return "due_date ASC, created_at DESC"
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s *PGStore) Create(ctx context.Context, owner Owner, d Draft) (Task, error) {
	if err := checkOwner(owner); err != nil {
		return Task{}, err
	}
	if err := validateDraft(d); err != nil {
		return Task{}, err
	}
	d = d.normalized()

	now := s.nowFunc().UTC()
	t := Task{
		ID:          uuid.NewString(),
		UserID:      owner.ID,
		Title:       d.Title,
		Description: d.Description,
		Priority:    d.Priority,
		DueDate:     d.DueDate,
		Status:      d.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	const q = `
INSERT INTO tasks
  (id, user_id, title, description, priority, due_date, status, created_at, updated_at)
VALUES
  ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := s.db.ExecContext(ctx, q, t.ID, t.UserID, t.Title, t.Description, string(t.Priority), t.DueDate, string(t.Status), t.CreatedAt, t.UpdatedAt); err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

func (s *PGStore) Update(ctx context.Context, owner Owner, id string, p Patch) (Task, error) {
	if err := checkOwner(owner); err != nil {
		return Task{}, err
	}
	if err := validatePatch(p); err != nil {
		return Task{}, err
	}
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		return Task{}, ErrNotFound
	}

	args := []any{strings.TrimSpace(id), owner.ID}
	var set []string
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if p.Title != nil {
		add("title", strings.TrimSpace(*p.Title))
	}
	if p.Description != nil {
		add("description", *p.Description)
	}
	if p.Priority != nil {
		add("priority", string(*p.Priority))
	}
	if p.DueDate != nil {
		add("due_date", p.DueDate.UTC())
	}
	if p.Status != nil {
		add("status", string(*p.Status))
	}
	add("updated_at", s.nowFunc().UTC())

	q := "UPDATE tasks\nSET " + strings.Join(set, ",\n\t") + "\nWHERE id = $1 AND user_id = $2\nRETURNING " + taskColumns
	t, err := scanTask(s.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		if isMissing(err) {
			return Task{}, ErrNotFound
		}
		return Task{}, fmt.Errorf("update task: %w", err)
	}
	return t, nil
}

func (s *PGStore) Delete(ctx context.Context, owner Owner, id string) error {
	if err := checkOwner(owner); err != nil {
		return err
	}
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		return ErrNotFound
	}
	const q = `DELETE FROM tasks WHERE id = $1 AND user_id = $2`
	res, err := s.db.ExecContext(ctx, q, strings.TrimSpace(id), owner.ID)
	if err != nil {
		if isMissing(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read delete affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) ClearCompleted(ctx context.Context, owner Owner) (int, error) {
	if err := checkOwner(owner); err != nil {
		return 0, err
	}
	const q = `DELETE FROM tasks WHERE user_id = $1 AND status = $2`
	res, err := s.db.ExecContext(ctx, q, owner.ID, string(StatusCompleted))
	if err != nil {
		return 0, fmt.Errorf("clear completed tasks: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read clear affected rows: %w", err)
	}
	return int(affected), nil
}

// isMissing reports errors that mean the row cannot exist: no match, or an
// id postgres refuses to parse as a uuid.
func isMissing(err error) bool {
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "22P02"
}
