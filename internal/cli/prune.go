package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/venikman/sellerpilot/internal/config"
	"github.com/venikman/sellerpilot/internal/db"
	"github.com/venikman/sellerpilot/internal/memory"
)

func newPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete expired memory items now",
		RunE: func(cmd *cobra.Command, args []string) error {
			gcfg, err := config.LoadGlobal()
			if err != nil {
				gcfg = config.DefaultGlobal()
			}
			base, err := statePath(gcfg)
			if err != nil {
				return err
			}

			database, err := db.Open(base + ".db")
			if err != nil {
				return fmt.Errorf("open state db: %w", err)
			}
			defer database.Close()

			expired, err := memory.NewStore(database).Maintenance("")
			if err != nil {
				return err
			}
			fmt.Printf("expired items removed: %d\n", expired)
			return nil
		},
	}
}
