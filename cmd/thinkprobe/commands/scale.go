package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/hicap-labs/thinkprobe/internal/api"
	"github.com/hicap-labs/thinkprobe/internal/config"
	"github.com/hicap-labs/thinkprobe/internal/probe"
	"github.com/hicap-labs/thinkprobe/internal/render"
	"github.com/hicap-labs/thinkprobe/internal/stream"
)

var (
	scaleBudgets      []int
	scalePrompt       string
	scaleTimeout      time.Duration
	scaleShowThinking bool
	scaleNoSave       bool
	scaleResultsDir   string
)

var scaleCmd = &cobra.Command{
	Use:   "scale",
	Short: "Sweep thinking budgets and compare reasoning output",
	Long: `Send the same prompt once per budget, each on a fresh history, and
compare how much reasoning each budget bought. Budgets are treated as
targets by the upstream model, so the relationship is loose; the sweep
reports the observed ratio between the first and last budget.`,
	RunE: runScale,
}

func init() {
	scaleCmd.Flags().IntSliceVarP(&scaleBudgets, "budgets", "B", probe.DefaultScaleBudgets, "Budgets to sweep")
	scaleCmd.Flags().StringVarP(&scalePrompt, "prompt", "p", "", "Prompt to reuse across the sweep (default from settings)")
	scaleCmd.Flags().DurationVar(&scaleTimeout, "timeout", 0, "Per-run timeout (default from settings)")
	scaleCmd.Flags().BoolVar(&scaleShowThinking, "show-thinking", false, "Echo reasoning text during runs")
	scaleCmd.Flags().BoolVar(&scaleNoSave, "no-save", false, "Skip writing the results file")
	scaleCmd.Flags().StringVar(&scaleResultsDir, "results-dir", probe.DefaultResultsDir, "Directory for results files")
}

// scaleLiveView narrates the sweep run by run.
type scaleLiveView struct {
	r    *render.Renderer
	view *render.TurnView
}

func (v *scaleLiveView) RunStart(i, n, budget int) stream.Sink {
	v.r.Info("")
	v.r.Info("Test %d/%d: Budget = %d tokens", i+1, n, budget)
	v.r.Divider(60)
	v.view = v.r.TurnView()
	return v.view
}

func (v *scaleLiveView) RunEnd(i int, res stream.TurnResult) {
	v.view.Finish()
	if res.Err != nil {
		v.r.Error("[ERROR] %v", res.Err)
	}
}

func runScale(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	r := newRenderer(scaleShowThinking)

	prompt := scalePrompt
	if prompt == "" {
		prompt = cfg.UserPrompt
	}
	budgets := make([]int, len(scaleBudgets))
	for i, b := range scaleBudgets {
		if b < config.MinThinkingBudget {
			r.Warn("Budget %d is below the minimum; using %d", b, config.MinThinkingBudget)
			b = config.MinThinkingBudget
		}
		budgets[i] = b
	}
	timeout := scaleTimeout
	if timeout == 0 {
		timeout = time.Duration(cfg.TimeoutSecs) * time.Second
	}
	if !cfg.KeyConfigured() {
		r.Warn("No API key configured; set %s or run 'thinkprobe config set-key'", config.EnvAPIKey)
	}

	r.Rule(60)
	r.Headline("Budget Scaling Test")
	r.Rule(60)
	r.Field("Prompt", "%q", prompt)
	r.Field("Budgets", "%v", budgets)

	client := api.NewClient(cfg.Endpoint, cfg.APIKey)
	rep := probe.RunScale(cmd.Context(), client, cfg.SystemPrompt, prompt, budgets, probe.Options{
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		Timeout:   timeout,
		Indicator: newIndicator(),
	}, &scaleLiveView{r: r})

	r.Info("")
	r.Rule(60)
	r.Headline("BUDGET SCALING TEST RESULTS")
	r.Rule(60)
	r.Info("%-12s %-15s %-15s %s", "Budget", "Thinking Len", "Response Len", "Status")
	r.Divider(60)
	failed := 0
	for _, run := range rep.Runs {
		status := "PASS"
		if run.Result.Err != nil {
			status = "ERROR"
			failed++
		} else if !run.Result.Passed {
			status = "FAIL"
			failed++
		}
		r.Info("%-12d %-15d %-15d %s", run.Budget, len(run.Result.ReasoningText), len(run.Result.AnswerText), status)
	}
	r.Rule(60)

	if budgetX, thinkingX, ok := rep.Ratios(); ok {
		r.Info("Budget increase: %.1fx", budgetX)
		r.Info("Thinking length increase: %.1fx", thinkingX)
	} else {
		r.Note("Scaling ratios unavailable (need at least two passing runs).")
	}

	if !scaleNoSave {
		if path, werr := probe.WriteScaleResult(scaleResultsDir, rep); werr != nil {
			r.Warn("Could not save results: %v", werr)
		} else {
			r.Note("Results saved to: %s", path)
		}
	}

	if len(rep.Runs) > 0 && failed == len(rep.Runs) {
		return ErrFailed
	}
	return nil
}
