package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/venikman/sellerpilot/internal/config"
	"github.com/venikman/sellerpilot/internal/report"
	"github.com/venikman/sellerpilot/internal/scenario"
)

func newRunCmd() *cobra.Command {
	var (
		userID      string
		configNames []string
		repeat      int
		outJSON     string
		outMarkdown string
	)

	cmd := &cobra.Command{
		Use:   "run <scenario.json>",
		Short: "Run a scripted scenario across memory configurations",
		Long: `Run every step of a scenario once per configuration (--repeat passes),
each config on its own fresh state store, and write a comparison report.

Examples:
  sellerpilot run scenarios/demo.json
  sellerpilot run s.json --config baseline --config readwrite_cache --repeat 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := scenario.Load(args[0])
			if err != nil {
				return err
			}
			configs, err := scenario.ParseConfigs(configNames)
			if err != nil {
				return err
			}
			gcfg, err := config.LoadGlobal()
			if err != nil {
				gcfg = config.DefaultGlobal()
			}
			base, err := statePath(gcfg)
			if err != nil {
				return err
			}

			runner := scenario.NewRunner(userID, base, repeat, buildLLM(gcfg))
			runner.RunLogDir = gcfg.Runs.LogDir

			rep, err := runner.Run(cmd.Context(), sc, configs)
			if err != nil {
				return err
			}

			if outJSON == "" {
				outJSON = "report-" + sc.ID + ".json"
			}
			if err := report.WriteJSON(outJSON, rep); err != nil {
				return err
			}
			if outMarkdown != "" {
				if err := report.WriteMarkdown(outMarkdown, rep); err != nil {
					return err
				}
			}

			fmt.Fprint(os.Stdout, report.Markdown(rep))
			fmt.Fprintf(os.Stdout, "report written to %s\n", outJSON)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "demo", "user id owning the per-user memory scope")
	cmd.Flags().StringSliceVar(&configNames, "config", nil,
		"memory modes to compare (default baseline,readwrite,readwrite_cache); one of "+
			strings.Join([]string{"baseline", "read", "readwrite", "readwrite_cache"}, ","))
	cmd.Flags().IntVar(&repeat, "repeat", 1, "passes over the scenario per config")
	cmd.Flags().StringVar(&outJSON, "out", "", "report JSON path (default report-<scenario>.json)")
	cmd.Flags().StringVar(&outMarkdown, "out-md", "", "also write a markdown report")
	return cmd
}
