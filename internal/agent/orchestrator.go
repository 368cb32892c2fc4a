package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/venikman/sellerpilot/internal/adapter"
	"github.com/venikman/sellerpilot/internal/memory"
	"github.com/venikman/sellerpilot/internal/timectx"
	"github.com/venikman/sellerpilot/internal/tools"
)

// weekConventionRule is seeded into the global scope at construction so
// planners in memory-reading modes can retrieve the calendar convention.
const weekConventionRule = "Weeks are Mon–Sun; last week/month refers to the previous calendar week/month."

// Orchestrator routes one query through manager, planner, executor, agent,
// evaluator, and memory writer, recording the run.
type Orchestrator struct {
	store     *memory.Store
	leverager *memory.Leverager
	registry  *tools.Registry
	manager   *Manager
	planner   *Planner
	executor  *Executor
	presenter *Presenter
	insight   *InsightGenerator
	evaluator *Evaluator
	logger    *log.Logger
}

// NewOrchestrator wires the pipeline and seeds the global week-convention
// rule. llm may be nil for fully deterministic operation.
func NewOrchestrator(store *memory.Store, registry *tools.Registry, llm adapter.LLMClient) (*Orchestrator, error) {
	o := &Orchestrator{
		store:     store,
		leverager: memory.NewLeverager(store),
		registry:  registry,
		manager:   NewManager(llm),
		planner:   NewPlanner(registry, llm),
		executor:  NewExecutor(registry, store),
		presenter: NewPresenter(),
		insight:   NewInsightGenerator(llm),
		evaluator: NewEvaluator(registry),
		logger:    log.New(os.Stderr, "[ORCH] ", log.LstdFlags),
	}

	if _, err := store.UpsertMemoryItem(memory.UpsertInput{
		Scope:      memory.GlobalScope,
		Kind:       memory.KindDomainRule,
		Text:       weekConventionRule,
		Importance: 0.6,
		Quality:    1,
	}); err != nil {
		return nil, fmt.Errorf("orchestrator: seed week convention: %w", err)
	}
	return o, nil
}

// Planner exposes the planner for components that plan outside a full run.
func (o *Orchestrator) Planner() *Planner {
	return o.planner
}

// HandleQuery executes the full state machine for one query and returns
// the recorded run plus the post-run session.
func (o *Orchestrator) HandleQuery(ctx context.Context, query, userID string, cfg RunConfig, sess Session) (Run, Session, error) {
	clock := timectx.ForToday(cfg.Today)
	tc := clock.TimeContext()
	nowIso := timectx.NowIso()
	scopes := []string{memory.GlobalScope, memory.UserScope(userID)}

	run := Run{
		ID:        memory.NewID("run"),
		CreatedAt: nowIso,
		UserID:    userID,
		Config:    cfg,
		Query:     query,
		AugmentedQuery: fmt.Sprintf("%s\n[time context: today=%s thisWeek=%s..%s lastWeek=%s..%s thisMonth=%s..%s lastMonth=%s..%s]",
			query, tc.Today,
			tc.ThisWeekStart, tc.ThisWeekEnd,
			tc.LastWeekStart, tc.LastWeekEnd,
			tc.ThisMonthStart, tc.ThisMonthEnd,
			tc.LastMonthStart, tc.LastMonthEnd),
		Session: sess,
	}

	// ManagerRoute
	managerStart := time.Now()
	var managerCards []memory.Card
	if cfg.MemoryMode.RetrievalEnabled() {
		cards, err := o.leverager.Retrieve(memory.StageManagerRoute, query, scopes, nowIso)
		if err != nil {
			o.logger.Printf("manager-stage retrieval failed: %v", err)
		} else {
			managerCards = cards
		}
	}
	decision := o.manager.Decide(ctx, query, managerCards)
	run.Latencies.ManagerRouteMs = time.Since(managerStart).Milliseconds()
	run.MemoryInjected = append(run.MemoryInjected, managerCards...)

	if decision.OOD {
		run.OOD = true
		run.Response = memory.Redact(OutOfScopeResponse)
		if err := o.record(&run); err != nil {
			return run, sess, err
		}
		return run, sess, nil
	}
	run.Route = decision.Route

	// WorkerDispatch
	workerStart := time.Now()
	var planCards []memory.Card
	if cfg.MemoryMode.RetrievalEnabled() {
		cards, err := o.leverager.Retrieve(memory.StageWorkflowPlan, query, scopes, nowIso)
		if err != nil {
			o.logger.Printf("plan-stage retrieval failed: %v", err)
		} else {
			planCards = cards
		}
	}
	run.MemoryInjected = append(run.MemoryInjected, planCards...)

	planned, err := o.planner.BuildPlan(ctx, PlannerInput{
		Route:          decision.Route,
		Query:          query,
		AugmentedQuery: run.AugmentedQuery,
		TimeContext:    tc,
		Session:        sess,
		MemoryCards:    planCards,
	})
	if err != nil {
		return run, sess, err
	}
	run.Plan = &planned.Plan
	run.Planner = PlannerInfo{UsedFallback: planned.UsedFallback, RawText: planned.RawText}

	records, byTool, err := o.executor.Execute(ctx, planned.Plan, cfg.MemoryMode.CacheEnabled())
	run.ToolCalls = records
	if err != nil {
		return run, sess, err
	}

	switch decision.Route {
	case RouteInsightGenerator:
		var insightCards []memory.Card
		if cfg.MemoryMode.RetrievalEnabled() {
			cards, err := o.leverager.Retrieve(memory.StageInsightGenerate, query, scopes, nowIso)
			if err != nil {
				o.logger.Printf("insight-stage retrieval failed: %v", err)
			} else {
				insightCards = cards
			}
		}
		run.MemoryInjected = append(run.MemoryInjected, insightCards...)
		narrative, err := o.insight.Generate(ctx, query, planned.Plan, records, insightCards)
		if err != nil {
			return run, sess, err
		}
		run.Response = memory.Redact(narrative)
	default:
		text, updated := o.presenter.Render(planned.Plan, byTool, sess)
		sess = updated
		run.Response = memory.Redact(text)
	}
	run.Session = sess
	run.Latencies.WorkerTotalMs = time.Since(workerStart).Milliseconds()

	// Evaluate + MaybeWrite
	evalStart := time.Now()
	run.Eval = o.evaluator.Evaluate(ctx, query, tc.Today, run.Plan, run.ToolCalls)
	if cfg.MemoryMode.WritesEnabled() {
		// Writes and the expiry sweep are best-effort; a failed write
		// does not invalidate a successful answer.
		for _, w := range o.evaluator.ProposeWrites(userID, query, run.Eval, run.Plan, run.ToolCalls) {
			if _, err := o.store.UpsertMemoryItem(w); err != nil {
				o.logger.Printf("memory write failed: %v", err)
			}
		}
		if _, err := o.store.Maintenance(""); err != nil {
			o.logger.Printf("maintenance failed: %v", err)
		}
	}
	run.Latencies.EvalMs = time.Since(evalStart).Milliseconds()

	// Record
	if err := o.record(&run); err != nil {
		return run, sess, err
	}
	return run, sess, nil
}

func (o *Orchestrator) record(run *Run) error {
	rec := memory.RunRecord{
		ID:             run.ID,
		CreatedAt:      run.CreatedAt,
		UserID:         run.UserID,
		ConfigJSON:     marshalOr(run.Config, "{}"),
		Query:          run.Query,
		AugmentedQuery: run.AugmentedQuery,
		Route:          run.Route,
		OOD:            run.OOD,
		Response:       run.Response,
		LatenciesJSON:  marshalOr(run.Latencies, "{}"),
	}
	if run.Plan != nil {
		rec.PlanJSON = marshalOr(run.Plan, "null")
	}
	if len(run.ToolCalls) > 0 {
		rec.ToolCallsJSON = marshalOr(run.ToolCalls, "[]")
	}
	if run.Eval != nil {
		rec.EvalJSON = marshalOr(run.Eval, "null")
	}
	if len(run.MemoryInjected) > 0 {
		rec.MemoryInjectedJSON = marshalOr(run.MemoryInjected, "[]")
	}
	if err := o.store.InsertRun(rec); err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	return nil
}

func marshalOr(v any, fallback string) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fallback
	}
	return string(b)
}
