package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dettyhq/detty/internal/eval"
	"github.com/dettyhq/detty/internal/session"
)

var (
	evalScenarios string
	evalThreshold float64
	evalNoHistory bool
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Run the golden scenario suite",
	Long: `Replay the golden scenarios through the live advisor and score each
reply with an LLM judge.

Each case runs against a fresh per-case visitor, so runs never touch
real session memory. The suite passes when the aggregate score meets
the threshold; per-case results are printed as they complete and the
run summary is recorded to the eval history database.`,
	RunE: runEval,
}

func init() {
	evalCmd.Flags().StringVar(&evalScenarios, "scenarios", "", "Scenario YAML file (default: built-in golden set)")
	evalCmd.Flags().Float64Var(&evalThreshold, "threshold", 0, "Minimum passing aggregate score (default: from config)")
	evalCmd.Flags().BoolVar(&evalNoHistory, "no-history", false, "Skip recording this run to the history database")
}

func runEval(cmd *cobra.Command, args []string) error {
	a, err := buildEvalApp()
	if err != nil {
		return err
	}
	defer a.Close()

	scenarioPath := evalScenarios
	if scenarioPath == "" {
		scenarioPath = a.cfg.Eval.Scenarios
	}
	cases, err := eval.LoadScenarios(scenarioPath)
	if err != nil {
		return err
	}

	threshold := evalThreshold
	if threshold <= 0 {
		threshold = a.cfg.Eval.Threshold
	}

	judge := eval.TimeoutJudge(eval.NewLLMJudge(a.eng), a.cfg.Timeouts.Judge)
	runner := eval.NewRunner(
		eval.OrchestratorTurns(a.orch),
		judge,
		threshold,
	).WithProgress(eval.PrintProgress(os.Stdout))
	if a.signals != nil {
		runner = runner.WithSignals(a.signals)
	}

	if !evalNoHistory {
		history, err := eval.NewHistoryStore(evalHistoryPath(a))
		if err != nil {
			return fmt.Errorf("open eval history: %w", err)
		}
		defer history.Close()
		runner = runner.WithHistory(history)
	}

	fmt.Printf("Running %d golden scenarios...\n\n", len(cases))
	summary, err := runner.Run(context.Background(), cases)
	if err != nil {
		return err
	}

	eval.PrintSummary(os.Stdout, summary)
	if !summary.Passed {
		return fmt.Errorf("aggregate score %.1f below threshold %.1f", summary.Aggregate, summary.Threshold)
	}
	return nil
}

func evalHistoryPath(a *app) string {
	if a.cfg.Eval.HistoryDB != "" {
		return a.cfg.Eval.HistoryDB
	}
	return filepath.Join(filepath.Dir(session.DefaultDBPath()), "evals.db")
}
