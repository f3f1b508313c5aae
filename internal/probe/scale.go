package probe

import (
	"context"

	"github.com/hicap-labs/thinkprobe/internal/api"
	"github.com/hicap-labs/thinkprobe/internal/chat"
	"github.com/hicap-labs/thinkprobe/internal/stream"
)

// DefaultScaleBudgets are the budgets swept when the caller names none.
var DefaultScaleBudgets = []int{1024, 2500, 5000}

// ScaleRun is one sweep entry: the budget asked for and what came back.
type ScaleRun struct {
	Budget int
	Result stream.TurnResult
}

// ScaleReport holds a completed budget sweep.
type ScaleReport struct {
	Prompt string
	Runs   []ScaleRun
}

// ScaleView observes a budget sweep run by run. RunStart may return a sink
// for that run's live fragments, or nil for none.
type ScaleView interface {
	RunStart(i, n, budget int) stream.Sink
	RunEnd(i int, res stream.TurnResult)
}

// RunScale reruns the same prompt once per budget, each run on a fresh
// two-message history so budgets are compared like-for-like. view, if
// non-nil, gets progress callbacks and supplies the per-run sink. Failed
// runs stay in the report; the sweep never aborts early.
func RunScale(ctx context.Context, client *api.Client, systemPrompt, prompt string, budgets []int, opts Options, view ScaleView) ScaleReport {
	if len(budgets) == 0 {
		budgets = DefaultScaleBudgets
	}
	rep := ScaleReport{Prompt: prompt}
	for i, b := range budgets {
		runOpts := opts
		runOpts.Budget = b
		if view != nil {
			runOpts.Sink = view.RunStart(i, len(budgets), b)
		}
		msgs := []chat.Message{chat.System(systemPrompt), chat.User(prompt)}
		res := Exchange(ctx, client, msgs, runOpts)
		if view != nil {
			view.RunEnd(i, res)
		}
		rep.Runs = append(rep.Runs, ScaleRun{Budget: b, Result: res})
	}
	return rep
}

// Ratios compares the first and last runs: how much the budget grew and how
// much the reasoning output grew with it. ok is false when either endpoint
// failed, or there are fewer than two runs.
func (r ScaleReport) Ratios() (budgetX, thinkingX float64, ok bool) {
	if len(r.Runs) < 2 {
		return 0, 0, false
	}
	first, last := r.Runs[0], r.Runs[len(r.Runs)-1]
	if first.Budget <= 0 || !first.Result.Passed || !last.Result.Passed {
		return 0, 0, false
	}
	firstLen := len(first.Result.ReasoningText)
	if firstLen == 0 {
		firstLen = 1
	}
	budgetX = float64(last.Budget) / float64(first.Budget)
	thinkingX = float64(len(last.Result.ReasoningText)) / float64(firstLen)
	return budgetX, thinkingX, true
}
