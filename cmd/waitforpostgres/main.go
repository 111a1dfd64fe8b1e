// Command waitforpostgres blocks until the task database accepts connections.
// CI runs it before the integration tests and `queue migrate up`.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	_ "github.com/lib/pq"
)

type settings struct {
	DatabaseURL string        `env:"DATABASE_URL"`
	TestDSN     string        `env:"TEST_POSTGRES_DSN"`
	Timeout     time.Duration `env:"WAIT_FOR_POSTGRES_TIMEOUT" envDefault:"60s"`
	Interval    time.Duration `env:"WAIT_FOR_POSTGRES_INTERVAL" envDefault:"2s"`
}

func (s settings) dsn() string {
	if s.TestDSN != "" {
		return s.TestDSN
	}
	return s.DatabaseURL
}

func main() {
	s, err := env.ParseAs[settings]()
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse env: %v\n", err)
		os.Exit(2)
	}
	if s.dsn() == "" {
		fmt.Fprintln(os.Stderr, "TEST_POSTGRES_DSN or DATABASE_URL is required")
		os.Exit(2)
	}
	if s.Timeout <= 0 || s.Interval <= 0 {
		fmt.Fprintln(os.Stderr, "WAIT_FOR_POSTGRES_TIMEOUT and WAIT_FOR_POSTGRES_INTERVAL must be > 0")
		os.Exit(2)
	}

	db, err := sql.Open("postgres", s.dsn())
	if err != nil {
		fmt.Fprintf(os.Stderr, "open postgres: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()
	if err := wait(ctx, db, s.Interval); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready within %s: %v\n", s.Timeout, err)
		os.Exit(1)
	}
	fmt.Println("postgres ready")
}

type pinger interface {
	PingContext(ctx context.Context) error
}

func wait(ctx context.Context, db pinger, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		attempt, cancel := context.WithTimeout(ctx, interval)
		err := db.PingContext(attempt)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return err
		case <-ticker.C:
		}
	}
}
