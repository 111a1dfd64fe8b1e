package main

import (
	"context"
	"errors"
	"testing"
	"time"
)

type flakyDB struct {
	failures int
	calls    int
}

func (f *flakyDB) PingContext(context.Context) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestWaitRetriesUntilReady(t *testing.T) {
	db := &flakyDB{failures: 2}
	if err := wait(context.Background(), db, time.Millisecond); err != nil {
		t.Fatalf("wait() error: %v", err)
	}
	if db.calls != 3 {
		t.Fatalf("expected 3 pings, got %d", db.calls)
	}
}

func TestWaitGivesUpAtDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := wait(ctx, &flakyDB{failures: 1 << 30}, time.Millisecond)
	if err == nil || err.Error() != "connection refused" {
		t.Fatalf("expected last ping error, got %v", err)
	}
}

func TestDSNPrefersTestDatabase(t *testing.T) {
	s := settings{DatabaseURL: "postgres://app", TestDSN: "postgres://test"}
	if s.dsn() != "postgres://test" {
		t.Fatalf("unexpected dsn %q", s.dsn())
	}
	s.TestDSN = ""
	if s.dsn() != "postgres://app" {
		t.Fatalf("unexpected dsn %q", s.dsn())
	}
}
