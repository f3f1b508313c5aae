package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/hicap-labs/thinkprobe/internal/api"
	"github.com/hicap-labs/thinkprobe/internal/chat"
	"github.com/hicap-labs/thinkprobe/internal/config"
	"github.com/hicap-labs/thinkprobe/internal/probe"
	"github.com/hicap-labs/thinkprobe/internal/render"
	"github.com/hicap-labs/thinkprobe/internal/stream"
)

var (
	runPrompt       string
	runBudget       int
	runMaxTokens    int
	runTimeout      time.Duration
	runHideThinking bool
	runNoSave       bool
	runResultsDir   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Send one probing request and verify the reasoning stream",
	Long: `Send a single request with extended thinking enabled, stream the
response live, and report whether reasoning text actually arrived.

The exit code follows the verdict: 0 when reasoning was produced,
1 otherwise.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runPrompt, "prompt", "p", "", "Prompt to send (default from settings)")
	runCmd.Flags().IntVarP(&runBudget, "budget", "b", 0, "Reasoning token budget (default from settings)")
	runCmd.Flags().IntVar(&runMaxTokens, "max-tokens", 0, "Response token cap (default from settings)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Exchange timeout (default from settings)")
	runCmd.Flags().BoolVar(&runHideThinking, "hide-thinking", false, "Do not echo reasoning text")
	runCmd.Flags().BoolVar(&runNoSave, "no-save", false, "Skip writing the results file")
	runCmd.Flags().StringVar(&runResultsDir, "results-dir", probe.DefaultResultsDir, "Directory for results files")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	r := newRenderer(!runHideThinking)

	prompt := runPrompt
	if prompt == "" {
		prompt = cfg.UserPrompt
	}
	budget := runBudget
	if budget == 0 {
		budget = cfg.ThinkingBudget
	}
	if budget < config.MinThinkingBudget {
		r.Warn("Budget %d is below the minimum; using %d", budget, config.MinThinkingBudget)
		budget = config.MinThinkingBudget
	}
	maxTokens := runMaxTokens
	if maxTokens == 0 {
		maxTokens = cfg.MaxTokens
	}
	timeout := runTimeout
	if timeout == 0 {
		timeout = time.Duration(cfg.TimeoutSecs) * time.Second
	}
	if !cfg.KeyConfigured() {
		r.Warn("No API key configured; set %s or run 'thinkprobe config set-key'", config.EnvAPIKey)
	}

	r.Rule(70)
	r.Headline("Extended Thinking Stream Test")
	r.Rule(70)
	r.Field("Model", "%s", cfg.Model)
	r.Field("Prompt", "%q", prompt)
	r.Field("Thinking Budget", "%d tokens", budget)
	r.Info("")

	client := api.NewClient(cfg.Endpoint, cfg.APIKey)
	view := r.TurnView()
	res := probe.Exchange(cmd.Context(), client, []chat.Message{
		chat.System(cfg.SystemPrompt),
		chat.User(prompt),
	}, probe.Options{
		Model:     cfg.Model,
		Budget:    budget,
		MaxTokens: maxTokens,
		Timeout:   timeout,
		Sink:      view,
		Indicator: newIndicator(),
	})
	view.Finish()

	printRunReport(r, res)

	if !runNoSave {
		if path, werr := probe.WriteRunResult(runResultsDir, res); werr != nil {
			r.Warn("Could not save results: %v", werr)
		} else {
			r.Note("Results saved to: %s", path)
		}
	}

	if res.Err != nil || !res.Passed {
		return ErrFailed
	}
	return nil
}

func printRunReport(r *render.Renderer, res stream.TurnResult) {
	r.Rule(70)
	r.Verdict("TEST RESULT", res.Passed)
	r.Rule(70)
	r.Field("Thinking Budget", "%d tokens", res.RequestedBudget)
	r.Field("Thinking Detected", "%s", yesNo(res.ReasoningObserved))
	r.Field("Thinking Length", "%d characters", len(res.ReasoningText))
	r.Field("Response Length", "%d characters", len(res.AnswerText))
	r.Field("Signature Present", "%s", yesNo(res.SignaturePresent))
	if res.SignaturePresent {
		r.Field("Signature Length", "%d characters", len(res.Signature))
	}
	if n := len(res.Redacted); n > 0 {
		r.Field("Redacted Blocks", "%d", n)
	}
	r.Field("Events Processed", "%d", res.EventCount)
	if res.Err != nil {
		r.Error("  Error: %v", res.Err)
	}
	r.Rule(70)
}
