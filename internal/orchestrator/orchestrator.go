// Package orchestrator runs the bounded plan -> dispatch -> analyze ->
// evaluate loop for one generation session.
//
// The loop owns its session memory for the duration of Run. Skill failures
// consume a step and are never returned as errors; only a lost generator or
// a canceled context ends Run with an error, and even then the best-effort
// Result is returned alongside it.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"forge/internal/analysis"
	"forge/internal/config"
	"forge/internal/evaluator"
	"forge/internal/ledger"
	"forge/internal/logging"
	"forge/internal/perception"
	"forge/internal/planner"
	"forge/internal/session"
	"forge/internal/skills"
	"forge/internal/types"
)

// DefaultMaxSteps is the step ceiling when none is configured.
const DefaultMaxSteps = 3

// =============================================================================
// STATES
// =============================================================================

// State is a loop state.
type State string

const (
	StateStart    State = "start"
	StatePlan     State = "plan"
	StateDispatch State = "dispatch"
	StateAnalyze  State = "analyze"
	StateEvaluate State = "evaluate"

	// Terminal states.
	StateSatisfactory State = "satisfactory"
	StateStepLimit    State = "step_limit"
	StateFinished     State = "finished"
	StateCanceled     State = "canceled"
	StateAborted      State = "aborted"
)

// Terminal reports whether the loop stops in s.
func (s State) Terminal() bool {
	switch s {
	case StateSatisfactory, StateStepLimit, StateFinished, StateCanceled, StateAborted:
		return true
	}
	return false
}

// Transition records one state change.
type Transition struct {
	From State       `json:"from"`
	To   State       `json:"to"`
	Step int         `json:"step"`
	Plan *types.Plan `json:"plan,omitempty"`
	At   time.Time   `json:"at"`
}

// Observer receives every transition as it happens.
type Observer func(Transition)

// Recorder receives loop measurements. internal/metrics implements it.
type Recorder interface {
	RecordStep(ctx context.Context, skill string, success bool, d time.Duration)
	RecordConflicts(ctx context.Context, opened, resolved, open int)
	RecordSession(ctx context.Context, outcome string, steps int, d time.Duration)
}

// Archiver persists finished sessions. internal/store implements it.
type Archiver interface {
	Save(ctx context.Context, r Result) error
}

// =============================================================================
// RESULT
// =============================================================================

// StepReport summarizes one loop iteration.
type StepReport struct {
	Step     int           `json:"step"`
	Plan     types.Plan    `json:"plan"`
	Success  bool          `json:"success"`
	Message  string        `json:"message,omitempty"`
	Error    string        `json:"error,omitempty"`
	Changed  []string      `json:"changed,omitempty"`
	Dropped  []string      `json:"dropped,omitempty"`
	Issues   []types.Issue `json:"issues,omitempty"`
	Analyzed bool          `json:"analyzed"`
	Opened   int           `json:"opened"`
	Resolved int           `json:"resolved"`
	Duration time.Duration `json:"duration"`
}

// Result is everything a session produced.
type Result struct {
	SessionID string        `json:"session_id"`
	Title     string        `json:"title"`
	Outcome   State         `json:"outcome"`
	Steps     int           `json:"steps"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	Artifacts map[string]string `json:"artifacts"`
	// Conflicts is the full history, resolved entries included.
	Conflicts []types.Conflict `json:"conflicts"`
	Open      []types.Conflict `json:"open"`
	Issues    []types.Issue    `json:"issues"`
	Ledger    ledger.Snapshot  `json:"ledger"`

	Evaluation  evaluator.Evaluation `json:"evaluation"`
	Reports     []StepReport         `json:"reports"`
	Transitions []Transition         `json:"transitions"`
}

// Satisfactory reports whether the session ended accepted.
func (r Result) Satisfactory() bool { return r.Outcome == StateSatisfactory }

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator drives sessions. It holds no per-session state, so one
// instance may run many sessions one after another.
type Orchestrator struct {
	dispatcher *skills.Dispatcher
	planner    *planner.Planner
	suite      *analysis.Suite
	maxSteps   int

	observer Observer
	recorder Recorder
	archiver Archiver
	now      func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithObserver registers a transition observer.
func WithObserver(fn Observer) Option {
	return func(o *Orchestrator) { o.observer = fn }
}

// WithRecorder registers a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithArchiver persists each finished session.
func WithArchiver(a Archiver) Option {
	return func(o *Orchestrator) { o.archiver = a }
}

// WithMaxSteps sets the step ceiling. Values below one are ignored.
func WithMaxSteps(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxSteps = n
		}
	}
}

// WithSuite replaces the analyzer suite.
func WithSuite(s *analysis.Suite) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.suite = s
		}
	}
}

// WithPlanner replaces the planner.
func WithPlanner(p *planner.Planner) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.planner = p
		}
	}
}

// WithClock injects the time source used for transitions and durations.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New creates an orchestrator around a dispatcher.
func New(d *skills.Dispatcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		dispatcher: d,
		planner:    planner.New(planner.DefaultStallLimit),
		maxSteps:   DefaultMaxSteps,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.dispatcher == nil {
		o.dispatcher = skills.NewDispatcher(nil, nil)
	}
	if o.suite == nil {
		o.suite = analysis.NewSuite()
	}
	return o
}

// SuiteFromConfig builds the four-analyzer suite the analysis section asks for.
func SuiteFromConfig(cfg *config.Config) *analysis.Suite {
	opts := []analysis.SuiteOption{
		analysis.WithAnalyzers(
			analysis.NewStructuralComparer(),
			analysis.NewSchemaAligner(cfg.Analysis.SchemaCacheSize, cfg.Analysis.FieldProps),
			analysis.NewDomainChecker(),
			analysis.NewCompatibilityChecker(),
		),
	}
	if !cfg.Analysis.Parallel {
		opts = append(opts, analysis.Sequential())
	}
	return analysis.NewSuite(opts...)
}

// NewFromConfig wires an orchestrator from configuration and a generator.
// Extra options are applied after the configured ones.
func NewFromConfig(cfg *config.Config, gen perception.Generator, opts ...Option) *Orchestrator {
	env := skills.NewEnv(gen, cfg.Loop.MaxArtifacts)
	base := []Option{
		WithMaxSteps(cfg.Loop.MaxSteps),
		WithPlanner(planner.New(cfg.Loop.StallLimit)),
		WithSuite(SuiteFromConfig(cfg)),
	}
	return New(skills.NewDispatcher(nil, env), append(base, opts...)...)
}

// MaxSteps returns the step ceiling.
func (o *Orchestrator) MaxSteps() int { return o.maxSteps }

type run struct {
	o           *Orchestrator
	state       State
	transitions []Transition
}

func (r *run) enter(to State, step int, plan *types.Plan) {
	t := Transition{From: r.state, To: to, Step: step, At: r.o.now()}
	if plan != nil {
		p := *plan
		t.Plan = &p
	}
	r.transitions = append(r.transitions, t)
	r.state = to
	logging.OrchestratorDebug("step %d: %s -> %s", step, t.From, to)
	if r.o.observer != nil {
		r.o.observer(t)
	}
}

// Run drives mem until the evaluator is satisfied, the planner finishes, or
// the step ceiling is reached. The context is checked between steps only;
// a dispatched skill always runs to completion.
func (o *Orchestrator) Run(ctx context.Context, mem *session.Memory) (Result, error) {
	started := o.now()
	log := logging.Get(logging.CategoryOrchestrator)
	r := &run{o: o}
	r.enter(StateStart, 0, nil)
	log.Info("Session %s: starting (max %d steps)", mem.ID, o.maxSteps)

	var (
		reports []StepReport
		runErr  error
		outcome = StateStepLimit
	)

loop:
	for step := 1; step <= o.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("session canceled before step %d: %w", step, err)
			outcome = StateCanceled
			break
		}
		mem.Counters.Steps = step

		r.enter(StatePlan, step, nil)
		plan := o.planner.Next(mem)
		logging.Orchestrator("step %d: %s (%s)", step, plan.Skill, plan.Reasoning)

		r.enter(StateDispatch, step, &plan)
		dr, err := o.dispatcher.Dispatch(ctx, mem, plan)
		report := stepReport(step, dr)
		if o.recorder != nil {
			o.recorder.RecordStep(ctx, string(plan.Skill), dr.Output.Success, dr.Duration)
		}
		if err != nil {
			reports = append(reports, report)
			runErr = fmt.Errorf("step %d: %w", step, err)
			outcome = StateAborted
			break
		}

		if len(dr.Changed) > 0 {
			mem.Counters.NoChangeStreak = 0
		} else {
			mem.Counters.NoChangeStreak++
		}

		def, _ := o.dispatcher.Registry().Lookup(plan.Skill)
		if dr.TouchedImplementation(def) {
			r.enter(StateAnalyze, step, &plan)
			stats, err := o.analyze(ctx, mem, step)
			if err != nil {
				log.Warn("Session %s: analysis failed at step %d: %v", mem.ID, step, err)
				report.Error = joinErr(report.Error, err.Error())
			} else {
				report.Analyzed = true
				report.Opened = len(stats.Opened)
				report.Resolved = stats.Resolved
				if o.recorder != nil {
					o.recorder.RecordConflicts(ctx, len(stats.Opened), stats.Resolved, len(mem.Conflicts.Open()))
				}
			}
		}
		reports = append(reports, report)

		r.enter(StateEvaluate, step, &plan)
		ev := evaluator.Evaluate(mem)
		switch {
		case ev.Satisfactory:
			outcome = StateSatisfactory
			break loop
		case plan.Skill == types.SkillFinish:
			outcome = StateFinished
			break loop
		}
		log.Debug("Session %s: step %d not satisfactory: %s", mem.ID, step, ev.Reasoning)
	}

	r.enter(outcome, mem.Counters.Steps, nil)
	res := Result{
		SessionID:   mem.ID,
		Outcome:     outcome,
		Steps:       mem.Counters.Steps,
		StartedAt:   started,
		Duration:    o.now().Sub(started),
		Artifacts:   mem.Artifacts.Snapshot(),
		Conflicts:   mem.Conflicts.All(),
		Open:        mem.Conflicts.Open(),
		Issues:      mem.Issues.Outstanding(),
		Ledger:      mem.Ledger.Snapshot(),
		Evaluation:  evaluator.Evaluate(mem),
		Reports:     reports,
		Transitions: r.transitions,
	}
	if mem.Inputs.Spec != nil {
		res.Title = mem.Inputs.Spec.Title
	}

	if o.recorder != nil {
		o.recorder.RecordSession(ctx, string(outcome), res.Steps, res.Duration)
	}
	if o.archiver != nil {
		if err := o.archiver.Save(context.WithoutCancel(ctx), res); err != nil {
			log.Error("Session %s: archive failed: %v", mem.ID, err)
		}
	}
	log.Info("Session %s: %s after %d step(s), %d open conflict(s) (%s)",
		mem.ID, outcome, res.Steps, len(res.Open), res.Duration)
	return res, runErr
}

func (o *Orchestrator) analyze(ctx context.Context, mem *session.Memory, step int) (session.MergeStats, error) {
	conflicts, err := o.suite.Run(ctx, analysis.Input{
		Spec:      mem.Inputs.Spec,
		Artifacts: mem.Artifacts.Snapshot(),
		Schema:    mem.Inputs.Schema,
		Rules:     mem.Inputs.Rules,
	})
	if err != nil {
		return session.MergeStats{}, err
	}
	stats := mem.Conflicts.Merge(step, conflicts)
	mem.Counters.Analyses++
	logging.Orchestrator("step %d: %d conflict(s) found, %d opened, %d resolved",
		step, len(conflicts), len(stats.Opened), stats.Resolved)
	notify(mem, stats.Opened)
	return stats, nil
}

// notify posts one ledger message per newly opened conflict, from the
// analyzer that found it to the agent that owns the fix.
func notify(mem *session.Memory, opened []types.Conflict) {
	for _, c := range opened {
		recipients := []string{types.AgentForTarget(c.Target)}
		if c.Target == types.TargetBoth {
			recipients = []string{types.AgentSpec, types.AgentImplementation}
		}
		from := c.Source
		if from == "" {
			from = types.AgentOrchestrator
		}
		for _, to := range recipients {
			if _, err := mem.Ledger.SendMessage(from, to, c.String(), nil); err != nil {
				logging.Get(logging.CategoryLedger).Warn("notify %s about %s: %v", to, c.Path, err)
			}
		}
	}
}

func stepReport(step int, dr skills.DispatchReport) StepReport {
	rep := StepReport{
		Step:     step,
		Plan:     dr.Plan,
		Success:  dr.Output.Success,
		Message:  dr.Output.Message,
		Changed:  dr.Changed,
		Dropped:  dr.Dropped,
		Issues:   dr.Issues,
		Duration: dr.Duration,
	}
	if dr.Err != nil {
		rep.Error = dr.Err.Error()
	}
	return rep
}

func joinErr(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}

// IsGeneratorLoss reports whether err ended a session because the generator
// became unavailable.
func IsGeneratorLoss(err error) bool {
	return errors.Is(err, perception.ErrGeneratorUnavailable)
}
