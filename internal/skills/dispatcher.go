package skills

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"forge/internal/articulation"
	"forge/internal/logging"
	"forge/internal/perception"
	"forge/internal/session"
	"forge/internal/types"
)

// DispatchReport describes one dispatched plan.
type DispatchReport struct {
	Plan   types.Plan
	Output types.SkillOutput
	// Changed lists artifacts whose content differs after the merge.
	Changed []string
	// Dropped lists artifact names the dispatcher refused to merge.
	Dropped []string
	// Issues are the classified new issues.
	Issues   []types.Issue
	Duration time.Duration
	// Err is the failure cause, if any. It is informational; only
	// catastrophic errors are also returned from Dispatch.
	Err error
}

// TouchedImplementation reports whether the run should trigger re-analysis.
func (r DispatchReport) TouchedImplementation(def *Definition) bool {
	return len(r.Changed) > 0 || (def != nil && def.TouchesImplementation && r.Output.Success)
}

// Dispatcher runs plans against session memory.
type Dispatcher struct {
	registry *Registry
	env      *Env
}

// NewDispatcher creates a dispatcher. A nil registry gets the default one.
func NewDispatcher(r *Registry, env *Env) *Dispatcher {
	if r == nil {
		r = NewDefaultRegistry()
	}
	if env == nil {
		env = NewEnv(nil, 0)
	}
	return &Dispatcher{registry: r, env: env}
}

// Registry returns the dispatcher's registry.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Dispatch runs plan.Skill. Skill failures, including unregistered skills,
// are reported on the returned report and never as an error. The error is
// non-nil only when the generator is gone for good.
//
// Artifact updates are merged by key; artifacts the skill did not return
// are left untouched. When the plan names an artifact, only that artifact
// is merged. Issues the skill resolves are cleared only for merged
// artifacts, which are then re-checked.
func (d *Dispatcher) Dispatch(ctx context.Context, mem *session.Memory, plan types.Plan) (DispatchReport, error) {
	start := time.Now()
	report := DispatchReport{Plan: plan}
	log := logging.Get(logging.CategorySkills)

	def, ok := d.registry.Lookup(plan.Skill)
	if !ok {
		report.Err = fmt.Errorf("%w %q", ErrUnregisteredSkill, plan.Skill)
		report.Output = types.Failed(report.Err.Error())
		report.Duration = time.Since(start)
		mem.Counters.Failures++
		log.Warn("Dispatch: %v", report.Err)
		return report, nil
	}

	args := Args{}
	for k, v := range plan.Arguments {
		args[k] = v
	}

	log.Debug("Dispatch: running %s (args=%v)", plan.Skill, args)
	raw, err := def.Handler(ctx, d.env, mem, args)
	out := Normalize(raw, err)
	report.Output = out
	report.Err = err
	if err == nil && !out.Success {
		report.Err = errors.New(out.Error)
	}

	if err != nil && errors.Is(err, perception.ErrGeneratorUnavailable) {
		report.Duration = time.Since(start)
		mem.Counters.Failures++
		log.Error("Dispatch: %s lost the generator: %v", plan.Skill, err)
		return report, fmt.Errorf("skill %s: %w", plan.Skill, err)
	}

	var accepted map[string]string
	if !out.Success {
		mem.Counters.Failures++
		log.Error("Dispatch: %s failed: %s", plan.Skill, out.Error)
	} else {
		var dropped []string
		accepted, dropped = d.filter(plan, out.UpdatedArtifacts)
		report.Dropped = dropped
		report.Changed = mem.Artifacts.Apply(accepted)
		if cleared := d.clear(mem, def, plan, accepted); cleared > 0 {
			log.Debug("Dispatch: %s cleared %d issues", plan.Skill, cleared)
		}
	}

	if len(out.NewIssues) > 0 {
		known := mem.Artifacts.Names()
		for _, text := range out.NewIssues {
			report.Issues = append(report.Issues, types.ClassifyIssue(text, known))
		}
	}
	if len(accepted) > 0 {
		report.Issues = append(report.Issues, d.check(ctx, mem, accepted)...)
	}
	mem.Issues.Add(report.Issues...)

	report.Duration = time.Since(start)
	log.Info("Dispatch: %s success=%v changed=%v dropped=%v issues=%d (%s)",
		plan.Skill, out.Success, report.Changed, report.Dropped, len(report.Issues), report.Duration)
	return report, nil
}

// clear drops the issue kinds def resolves, but only for artifacts that
// were actually merged. Rechecking skills clear by plan target instead.
func (d *Dispatcher) clear(mem *session.Memory, def *Definition, plan types.Plan, accepted map[string]string) int {
	cleared := 0
	if def.Rechecks && len(accepted) == 0 {
		for _, kind := range def.Resolves {
			cleared += mem.Issues.Clear(kind, plan.Artifact())
		}
		return cleared
	}
	for name := range accepted {
		for _, kind := range def.Resolves {
			cleared += mem.Issues.Clear(kind, name)
		}
	}
	return cleared
}

// check runs the static checks over the merged artifact set and keeps the
// issues that belong to the merged artifacts.
func (d *Dispatcher) check(ctx context.Context, mem *session.Memory, merged map[string]string) []types.Issue {
	issues, err := d.env.checker().Check(ctx, mem.Artifacts.Snapshot())
	if err != nil {
		logging.SkillsWarn("static checks failed: %v", err)
	}
	var kept []types.Issue
	for _, is := range issues {
		if _, ok := merged[is.Artifact]; ok {
			kept = append(kept, is)
		}
	}
	return kept
}

// filter applies name safety, targeting and the per-invocation artifact
// ceiling. Only names this invocation returns count against it.
func (d *Dispatcher) filter(plan types.Plan, updates map[string]string) (map[string]string, []string) {
	names := make([]string, 0, len(updates))
	for name := range updates {
		names = append(names, name)
	}
	sort.Strings(names)

	target := plan.Artifact()
	limit := d.env.limit()
	accepted := make(map[string]string)
	var dropped []string
	log := logging.Get(logging.CategorySkills)

	for _, name := range names {
		if err := articulation.CheckName(name); err != nil {
			log.Warn("Dispatch: dropping %q from %s: %v", name, plan.Skill, err)
			dropped = append(dropped, name)
			continue
		}
		if target != "" && name != target {
			log.Warn("Dispatch: %s targets %s, dropping %s", plan.Skill, target, name)
			dropped = append(dropped, name)
			continue
		}
		if len(accepted) >= limit {
			log.Warn("Dispatch: artifact limit %d reached, dropping %s", limit, name)
			dropped = append(dropped, name)
			continue
		}
		accepted[name] = updates[name]
	}
	return accepted, dropped
}
