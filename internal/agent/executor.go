package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/venikman/sellerpilot/internal/memory"
	"github.com/venikman/sellerpilot/internal/tools"
)

// Executor runs plan steps in order, serving and filling the signature-keyed
// tool cache when caching is enabled.
type Executor struct {
	registry *tools.Registry
	store    *memory.Store
}

// NewExecutor creates an Executor. store may be nil when caching is never used.
func NewExecutor(registry *tools.Registry, store *memory.Store) *Executor {
	return &Executor{registry: registry, store: store}
}

// Execute runs up to the first MaxPlanSteps steps of the plan. The returned
// map collapses results by tool name, last call wins; the record slice keeps
// every call.
func (e *Executor) Execute(ctx context.Context, plan Plan, cacheEnabled bool) ([]ToolCallRecord, map[string]any, error) {
	steps := plan.Steps
	if len(steps) > tools.MaxPlanSteps {
		steps = steps[:tools.MaxPlanSteps]
	}

	records := make([]ToolCallRecord, 0, len(steps))
	byTool := map[string]any{}

	for i, step := range steps {
		def, ok := e.registry.Get(step.Tool)
		if !ok {
			return records, byTool, fmt.Errorf("executor: step %d: unknown tool %q", i, step.Tool)
		}
		args, err := def.Validate(step.Args)
		if err != nil {
			return records, byTool, fmt.Errorf("executor: step %d: %w", i, err)
		}

		sig := tools.Signature(tools.CacheNamespace, step.Tool, args)
		started := time.Now()
		rec := ToolCallRecord{
			Tool:      step.Tool,
			Args:      args,
			Signature: sig,
			StartedAt: started.UTC().Format(time.RFC3339),
		}

		var result any
		if cacheEnabled && e.store != nil {
			if _, cached, hit, err := e.store.GetToolCache(sig); err == nil && hit {
				rec.Cached = true
				result = cached
			}
		}
		if !rec.Cached {
			result, err = def.Execute(ctx, args)
			if err != nil {
				return records, byTool, fmt.Errorf("executor: step %d (%s): %w", i, step.Tool, err)
			}
			if cacheEnabled && e.store != nil {
				// Write-through; a cache failure never fails the step.
				_ = e.store.SetToolCache(step.Tool, sig, args, result, "")
			}
		}

		rec.DurationMs = time.Since(started).Milliseconds()
		rec.Result = result
		records = append(records, rec)
		byTool[step.Tool] = result
	}

	return records, byTool, nil
}
