package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "queue",
		Short: "Queue task tracker web server",
		Long: `Queue serves the task tracker: sign in through the identity
provider, then manage your own tasks from the dashboard.

Configuration is read from the environment (HTTP_ADDR, SUPABASE_URL,
SUPABASE_ANON_KEY, DATABASE_URL and friends).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), migrateCmd())
	return root
}
