package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/venikman/sellerpilot/internal/config"
	"github.com/venikman/sellerpilot/internal/report"
	"github.com/venikman/sellerpilot/internal/scenario"
)

// watchDebounce coalesces editor save bursts into one rerun.
const watchDebounce = 500 * time.Millisecond

func newWatchCmd() *cobra.Command {
	var (
		userID      string
		configNames []string
	)

	cmd := &cobra.Command{
		Use:   "watch <scenario.json>",
		Short: "Re-run a scenario whenever its file changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
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

			rerun := func() {
				sc, err := scenario.Load(path)
				if err != nil {
					fmt.Fprintln(os.Stderr, "watch:", err)
					return
				}
				runner := scenario.NewRunner(userID, base, 1, buildLLM(gcfg))
				rep, err := runner.Run(cmd.Context(), sc, configs)
				if err != nil {
					fmt.Fprintln(os.Stderr, "watch:", err)
					return
				}
				fmt.Fprint(os.Stdout, report.Markdown(rep))
			}
			rerun()

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("watch: %w", err)
			}
			defer watcher.Close()

			// Watch the directory: editors often replace the file on save,
			// which drops a watch on the file itself.
			if err := watcher.Add(filepath.Dir(path)); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
			fmt.Fprintf(os.Stderr, "watching %s (ctrl-c to stop)\n", path)

			var timer *time.Timer
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if event.Name != path {
						continue
					}
					if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
						continue
					}
					if timer != nil {
						timer.Stop()
					}
					timer = time.AfterFunc(watchDebounce, rerun)
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					fmt.Fprintln(os.Stderr, "watch:", err)
				}
			}
		},
	}

	cmd.Flags().StringVar(&userID, "user", "demo", "user id owning the per-user memory scope")
	cmd.Flags().StringSliceVar(&configNames, "config", nil, "memory modes to compare")
	return cmd
}
