package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/venikman/sellerpilot/internal/agent"
)

// AppendRunLog appends one run as a JSONL line to runs-YYYYMMDD.jsonl in dir.
func AppendRunLog(dir string, run agent.Run) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("runlog: mkdir: %w", err)
	}
	path := filepath.Join(dir, "runs-"+time.Now().UTC().Format("20060102")+".jsonl")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("runlog: open %s: %w", path, err)
	}
	defer f.Close()

	line, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("runlog: encode run %s: %w", run.ID, err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("runlog: write: %w", err)
	}
	return nil
}
