package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/venikman/sellerpilot/internal/agent"
	"github.com/venikman/sellerpilot/internal/config"
	"github.com/venikman/sellerpilot/internal/dataset"
	"github.com/venikman/sellerpilot/internal/db"
	"github.com/venikman/sellerpilot/internal/mcp"
	"github.com/venikman/sellerpilot/internal/memory"
	"github.com/venikman/sellerpilot/internal/tools"
)

func newMCPCmd() *cobra.Command {
	var (
		userID string
		seed   int64
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve memory search and analytics queries over MCP stdio",
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

			store := memory.NewStore(database)
			registry := tools.NewRegistry(dataset.NewSeeded(seed, "2025-10-01", 120))
			orch, err := agent.NewOrchestrator(store, registry, buildLLM(gcfg))
			if err != nil {
				return err
			}

			return mcp.NewServer(store, orch, userID).Serve(version)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "demo", "user id owning the per-user memory scope")
	cmd.Flags().Int64Var(&seed, "seed", 42, "dataset seed")
	return cmd
}
