package main

import (
	"context"
	"fmt"

	"forge/internal/analysis"
	"forge/internal/knowledge"
	"forge/internal/orchestrator"
	"forge/internal/types"
	"forge/internal/ux"

	"github.com/spf13/cobra"
)

var (
	analyzeDir string
	watch      bool
	minSev     string
)

// analyzeCmd runs the consistency analyzers once (or on every save)
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Check existing artifacts against a specification",
	Long: `Runs the structural, schema, domain and compatibility analyzers over the
artifacts in --dir without calling the generator.

With --watch the analysis reruns whenever a watched file changes.`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&specPath, "spec", "s", "", "Specification file (YAML or JSON)")
	analyzeCmd.Flags().StringVar(&schemaPath, "schema", "", "Schema context file")
	analyzeCmd.Flags().StringVar(&rulesPath, "rules", "", "Domain rules file")
	analyzeCmd.Flags().StringVarP(&analyzeDir, "dir", "d", ".", "Artifact directory")
	analyzeCmd.Flags().BoolVar(&watch, "watch", false, "Rerun on file changes")
	analyzeCmd.Flags().StringVar(&minSev, "min-severity", "low", "Hide conflicts below this severity")
	_ = analyzeCmd.MarkFlagRequired("spec")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	threshold, err := types.ParseSeverity(minSev)
	if err != nil {
		return err
	}
	suite := orchestrator.SuiteFromConfig(cfg)

	once := func(ctx context.Context) error {
		conflicts, err := analyzeOnce(ctx, suite)
		if err != nil {
			return err
		}
		var shown []types.Conflict
		for _, c := range conflicts {
			if c.Severity.AtLeast(threshold) {
				shown = append(shown, c)
			}
		}
		fmt.Fprint(cmd.OutOrStdout(), ux.ConflictTable(shown, ux.DefaultStyles()))
		return nil
	}

	if err := once(ctx); err != nil {
		return err
	}
	if !watch {
		return nil
	}

	paths := []string{analyzeDir, specPath}
	for _, p := range []string{schemaPath, rulesPath} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	w, err := knowledge.NewWatcher(paths, 0, func(ctx context.Context, changed []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d file(s) changed\n", len(changed))
		if err := once(ctx); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
		}
	})
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

func analyzeOnce(ctx context.Context, suite *analysis.Suite) ([]types.Conflict, error) {
	in, err := knowledge.Load(knowledge.Paths{Spec: specPath, Schema: schemaPath, Rules: rulesPath})
	if err != nil {
		return nil, err
	}
	artifacts, err := knowledge.LoadArtifacts(analyzeDir)
	if err != nil {
		return nil, err
	}
	return suite.Run(ctx, analysis.Input{
		Spec:      in.Spec,
		Artifacts: artifacts,
		Schema:    in.Schema,
		Rules:     in.Rules,
	})
}
