package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/venikman/sellerpilot/internal/config"
	"github.com/venikman/sellerpilot/internal/db"
	"github.com/venikman/sellerpilot/internal/memory"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show memory and run statistics for the state database",
		RunE: func(cmd *cobra.Command, args []string) error {
			gcfg, err := config.LoadGlobal()
			if err != nil {
				gcfg = config.DefaultGlobal()
			}
			base, err := statePath(gcfg)
			if err != nil {
				return err
			}
			path := base + ".db"

			database, err := db.Open(path)
			if err != nil {
				return fmt.Errorf("open state db: %w", err)
			}
			defer database.Close()

			store := memory.NewStore(database)
			stats, err := store.GetMemoryStats()
			if err != nil {
				return err
			}
			runs, err := store.CountRuns()
			if err != nil {
				return err
			}

			fmt.Printf("state db: %s (%d bytes)\n", path, db.SizeBytes(path))
			fmt.Printf("runs recorded: %d\n\n", runs)

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SCOPE\tKIND\tCOUNT")
			for _, s := range stats {
				fmt.Fprintf(w, "%s\t%s\t%d\n", s.Scope, s.Kind, s.Count)
			}
			return w.Flush()
		},
	}
}
