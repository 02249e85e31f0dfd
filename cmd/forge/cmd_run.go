package main

import (
	"fmt"

	"forge/internal/knowledge"
	"forge/internal/logging"
	"forge/internal/metrics"
	"forge/internal/orchestrator"
	"forge/internal/perception"
	"forge/internal/session"
	"forge/internal/store"
	"forge/internal/ux"

	"github.com/spf13/cobra"
)

var (
	specPath   string
	schemaPath string
	rulesPath  string
	outDir     string
	maxSteps   int
	plain      bool
	showFiles  bool
)

// runCmd runs one generation session
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a generation session for a specification",
	Long: `Loads the specification (plus optional schema context and domain rules),
runs the bounded orchestration loop and prints the session report.

Generated artifacts are written to --out when set. The session is archived
when archive.enabled is true in the config.

Example:
  forge run --spec dashboard.yaml --schema sales_schema.yaml --out ./ui`,
	RunE: runSession,
}

func init() {
	runCmd.Flags().StringVarP(&specPath, "spec", "s", "", "Specification file (YAML or JSON)")
	runCmd.Flags().StringVar(&schemaPath, "schema", "", "Schema context file")
	runCmd.Flags().StringVar(&rulesPath, "rules", "", "Domain rules file")
	runCmd.Flags().StringVarP(&outDir, "out", "o", "", "Directory to write artifacts to")
	runCmd.Flags().IntVar(&maxSteps, "max-steps", 0, "Override loop.max_steps")
	runCmd.Flags().BoolVar(&plain, "plain", false, "Print the report as raw markdown")
	runCmd.Flags().BoolVar(&showFiles, "show-files", false, "Include artifact sources in the report")
	_ = runCmd.MarkFlagRequired("spec")
}

func runSession(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	in, err := knowledge.Load(knowledge.Paths{Spec: specPath, Schema: schemaPath, Rules: rulesPath})
	if err != nil {
		return err
	}
	if maxSteps > 0 {
		cfg.Loop.MaxSteps = maxSteps
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	gen, err := perception.NewFromConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create generator: %w", err)
	}

	rec, err := metrics.NewSessionMetrics(nil)
	if err != nil {
		return err
	}
	opts := []orchestrator.Option{
		orchestrator.WithRecorder(rec),
		orchestrator.WithObserver(func(t orchestrator.Transition) {
			if t.Plan != nil {
				logging.Orchestrator("step %d: %s (%s)", t.Step, t.Plan.Skill, t.Plan.Reasoning)
			}
		}),
	}
	if cfg.Archive.Enabled {
		archive, err := store.Open(cfg.Archive.Path)
		if err != nil {
			return err
		}
		defer archive.Close()
		opts = append(opts, orchestrator.WithArchiver(archive))
	}

	mem := session.NewMemory(in)
	logging.Get(logging.CategorySession).Info("session %s: %q", mem.ID, in.Spec.Title)

	res, runErr := orchestrator.NewFromConfig(cfg, gen, opts...).Run(ctx, mem)

	if outDir != "" && len(res.Artifacts) > 0 {
		written, err := knowledge.WriteArtifacts(outDir, res.Artifacts)
		if err != nil {
			return err
		}
		logging.Get(logging.CategorySession).Info("wrote %d artifact(s) to %s", len(written), outDir)
	}

	if err := printResult(cmd, res); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if !res.Satisfactory() {
		return fmt.Errorf("session ended %s: %s", res.Outcome, res.Evaluation.Reasoning)
	}
	return nil
}

func printResult(cmd *cobra.Command, res orchestrator.Result) error {
	report, err := ux.Render(res, ux.RenderOptions{Plain: plain, Artifacts: showFiles})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, report)
	fmt.Fprintln(out, ux.Summary(res, ux.DefaultStyles()))
	return nil
}
