// Package migrations applies the embedded SQL files that create the tasks
// schema and records what has been applied in Postgres.
package migrations

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

//go:embed sql/*.sql
var embedded embed.FS

type FileInfo struct {
	Name     string `json:"name"`
	Checksum string `json:"checksum"`
}

type Status struct {
	Name      string `json:"name"`
	Checksum  string `json:"checksum"`
	Applied   bool   `json:"applied"`
	AppliedAt string `json:"applied_at,omitempty"`
	// Drifted means the file changed after it was applied.
	Drifted bool `json:"drifted,omitempty"`
}

type Service struct {
	files   fs.FS
	db      *sql.DB
	nowFunc func() time.Time
}

type applied struct {
	checksum string
	at       time.Time
}

// New uses the migrations compiled into the binary.
func New(ctx context.Context, db *sql.DB) (*Service, error) {
	sub, err := fs.Sub(embedded, "sql")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	return NewWithFS(ctx, sub, db)
}

// NewWithFS reads *.sql files from the root of files.
func NewWithFS(ctx context.Context, files fs.FS, db *sql.DB) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	s := &Service{files: files, db: db, nowFunc: time.Now}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) ensureSchema(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS migration_applied (
	name TEXT PRIMARY KEY,
	checksum TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL
)`
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("ensure migration_applied schema: %w", err)
	}
	return nil
}

func (s *Service) List() ([]FileInfo, error) {
	entries, err := fs.ReadDir(s.files, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	out := make([]FileInfo, 0)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		b, err := fs.ReadFile(s.files, e.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		out = append(out, FileInfo{Name: e.Name(), Checksum: checksum(b)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Service) Status(ctx context.Context) ([]Status, error) {
	files, err := s.List()
	if err != nil {
		return nil, err
	}
	done, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Status, 0, len(files))
	for _, f := range files {
		st := Status{Name: f.Name, Checksum: f.Checksum}
		if a, ok := done[f.Name]; ok {
			st.Applied = true
			st.AppliedAt = a.at.UTC().Format(time.RFC3339)
			st.Drifted = a.checksum != f.Checksum
		}
		out = append(out, st)
	}
	return out, nil
}

// Up applies pending migrations in name order, each in its own transaction,
// and returns the names it applied. It refuses to run when an applied file
// has changed since.
func (s *Service) Up(ctx context.Context) ([]string, error) {
	statuses, err := s.Status(ctx)
	if err != nil {
		return nil, err
	}
	for _, st := range statuses {
		if st.Drifted {
			return nil, fmt.Errorf("migration %s changed after it was applied", st.Name)
		}
	}

	var ran []string
	for _, st := range statuses {
		if st.Applied {
			continue
		}
		if err := s.apply(ctx, st); err != nil {
			return ran, err
		}
		ran = append(ran, st.Name)
	}
	return ran, nil
}

func (s *Service) apply(ctx context.Context, st Status) error {
	body, err := fs.ReadFile(s.files, path.Clean(st.Name))
	if err != nil {
		return fmt.Errorf("read migration %s: %w", st.Name, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", st.Name, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, string(body)); err != nil {
		return fmt.Errorf("apply migration %s: %w", st.Name, err)
	}
	const q = `
INSERT INTO migration_applied (name, checksum, applied_at)
VALUES ($1, $2, $3)`
	if _, err := tx.ExecContext(ctx, q, st.Name, st.Checksum, s.nowFunc().UTC()); err != nil {
		return fmt.Errorf("record migration %s: %w", st.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", st.Name, err)
	}
	return nil
}

func (s *Service) load(ctx context.Context) (map[string]applied, error) {
	const q = `SELECT name, checksum, applied_at FROM migration_applied`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query migration state: %w", err)
	}
	defer rows.Close()

	out := make(map[string]applied)
	for rows.Next() {
		var name string
		var a applied
		if err := rows.Scan(&name, &a.checksum, &a.at); err != nil {
			return nil, fmt.Errorf("scan migration state: %w", err)
		}
		out[name] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migration state: %w", err)
	}
	return out, nil
}

func checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
