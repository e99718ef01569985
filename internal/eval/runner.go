package eval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dettyhq/detty/internal/orchestrator"
	"github.com/dettyhq/detty/pkg/models"
)

// TurnFunc replays one user message and returns the advisor's reply.
type TurnFunc func(ctx context.Context, userID, message string) (string, error)

// OrchestratorTurns adapts an orchestrator for evaluation runs.
func OrchestratorTurns(o *orchestrator.Orchestrator) TurnFunc {
	return func(ctx context.Context, userID, message string) (string, error) {
		res, err := o.HandleTurn(ctx, userID, message)
		if err != nil {
			return "", err
		}
		return res.Response, nil
	}
}

// CaseResult is the outcome of one golden case.
type CaseResult struct {
	Case     models.ScenarioCase
	Response string
	Score    *Score
	Passed   bool
	Err      string
	Duration time.Duration
}

// Summary is the outcome of one full run.
type Summary struct {
	RanAt     time.Time
	Threshold float64
	Results   []CaseResult
	Aggregate float64
	PassCount int
	FailCount int
	Passed    bool
}

// Signals lets an operator stop or pause a long run out of band.
// *orchestrator.SignalManager satisfies it.
type Signals interface {
	ShouldStop() bool
	ShouldPause() bool
}

// Runner replays the golden cases and gates on the aggregate score.
type Runner struct {
	turns     TurnFunc
	judge     Judge
	threshold float64
	history   *HistoryStore
	progress  func(i, total int, r CaseResult)
	signals   Signals
}

// NewRunner builds a runner. The history store and progress callback
// are optional.
func NewRunner(turns TurnFunc, judge Judge, threshold float64) *Runner {
	if threshold <= 0 {
		threshold = 7.0
	}
	return &Runner{turns: turns, judge: judge, threshold: threshold}
}

// WithHistory records run summaries to the given store.
func (r *Runner) WithHistory(h *HistoryStore) *Runner {
	r.history = h
	return r
}

// WithProgress reports each case result as it completes.
func (r *Runner) WithProgress(fn func(i, total int, res CaseResult)) *Runner {
	r.progress = fn
	return r
}

// WithSignals honors stop and pause signals between cases.
func (r *Runner) WithSignals(s Signals) *Runner {
	r.signals = s
	return r
}

// Run replays every case in order and returns the scored summary.
// Cases run sequentially so each gets the engine to itself; a case
// that errors scores zero and fails rather than aborting the run.
func (r *Runner) Run(ctx context.Context, cases []models.ScenarioCase) (*Summary, error) {
	if len(cases) == 0 {
		return nil, fmt.Errorf("no cases to run")
	}

	summary := &Summary{
		RanAt:     time.Now().UTC(),
		Threshold: r.threshold,
	}

	for i, c := range cases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.signals != nil {
			if r.signals.ShouldStop() {
				return nil, fmt.Errorf("stopped by signal after %d of %d cases", i, len(cases))
			}
			if err := r.waitResume(ctx); err != nil {
				return nil, err
			}
		}
		res := r.runCase(ctx, c)
		summary.Results = append(summary.Results, res)
		if res.Passed {
			summary.PassCount++
		} else {
			summary.FailCount++
		}
		if r.progress != nil {
			r.progress(i+1, len(cases), res)
		}
	}

	var total float64
	for _, res := range summary.Results {
		if res.Score != nil {
			total += res.Score.Overall
		}
	}
	summary.Aggregate = total / float64(len(summary.Results))
	summary.Passed = summary.Aggregate >= r.threshold

	if r.history != nil {
		if err := r.history.RecordRun(summary); err != nil {
			return summary, fmt.Errorf("recording run: %w", err)
		}
	}
	return summary, nil
}

// waitResume blocks while the pause signal is set, so a long run can
// be held between cases and resumed later.
func (r *Runner) waitResume(ctx context.Context) error {
	for r.signals.ShouldPause() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return nil
}

// runCase replays one case's conversation against a fresh per-case
// user so cases never contaminate each other's memory, then judges
// the final reply.
func (r *Runner) runCase(ctx context.Context, c models.ScenarioCase) CaseResult {
	start := time.Now()
	res := CaseResult{Case: c}
	userID := "eval-" + strings.ToLower(c.ID)

	for _, message := range c.Input {
		reply, err := r.turns(ctx, userID, message)
		if err != nil {
			res.Err = err.Error()
			res.Duration = time.Since(start)
			return res
		}
		res.Response = reply
	}

	score, err := r.judge.Evaluate(ctx, c, res.Response)
	if err != nil {
		res.Err = err.Error()
		res.Duration = time.Since(start)
		return res
	}
	res.Score = score
	res.Passed = score.Overall >= c.MinScore
	res.Duration = time.Since(start)
	return res
}
