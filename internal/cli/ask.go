package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/venikman/sellerpilot/internal/agent"
	"github.com/venikman/sellerpilot/internal/config"
	"github.com/venikman/sellerpilot/internal/dataset"
	"github.com/venikman/sellerpilot/internal/db"
	"github.com/venikman/sellerpilot/internal/memory"
	"github.com/venikman/sellerpilot/internal/tools"
)

func newAskCmd() *cobra.Command {
	var (
		userID  string
		mode    string
		today   string
		seed    int64
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask one analytics question through the orchestrator",
		Long: `Route a single question through the full pipeline: manager gate,
memory retrieval, planning, execution, rendering, and evaluation.

Examples:
  sellerpilot ask "What were the sales for my top 10 products last month?"
  sellerpilot ask "why did sales drop wow" --mode readwrite --today 2026-02-04`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			memMode := agent.MemoryMode(mode)
			if !agent.ValidMemoryMode(memMode) {
				return fmt.Errorf("invalid --mode %q", mode)
			}

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

			run, _, err := orch.HandleQuery(cmd.Context(), query, userID,
				agent.RunConfig{MemoryMode: memMode, Today: today}, agent.Session{})
			if err != nil {
				return err
			}

			fmt.Fprintln(os.Stdout, run.Response)
			if verbose {
				detail, _ := json.MarshalIndent(map[string]any{
					"route":     run.Route,
					"ood":       run.OOD,
					"plan":      run.Plan,
					"eval":      run.Eval,
					"latencies": run.Latencies,
				}, "", "  ")
				fmt.Fprintln(os.Stderr, string(detail))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "demo", "user id owning the per-user memory scope")
	cmd.Flags().StringVar(&mode, "mode", string(agent.ModeRead), "memory mode: baseline, read, readwrite, readwrite_cache")
	cmd.Flags().StringVar(&today, "today", "", "override today (YYYY-MM-DD)")
	cmd.Flags().Int64Var(&seed, "seed", 42, "dataset seed")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print route, plan, and scores to stderr")
	return cmd
}
