package commands

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hicap-labs/thinkprobe/internal/api"
	"github.com/hicap-labs/thinkprobe/internal/chat"
	"github.com/hicap-labs/thinkprobe/internal/config"
	"github.com/hicap-labs/thinkprobe/internal/probe"
	"github.com/hicap-labs/thinkprobe/internal/render"
	"github.com/hicap-labs/thinkprobe/internal/stream"
	"github.com/hicap-labs/thinkprobe/internal/transcript"
)

var (
	chatBudget       int
	chatTimeout      time.Duration
	chatHideThinking bool
	chatStoreDir     string
	chatResume       string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive multi-turn chat with per-turn verification",
	Long: `Hold a conversation where every assistant turn keeps its reasoning
blocks and signature in the history, verified turn by turn. Failed
turns are rolled back so the history never carries a broken exchange.

Type / inside the chat for the command list. The session is saved on
exit; resume one with --resume or the /history command.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().IntVarP(&chatBudget, "budget", "b", 0, "Reasoning token budget (default from settings)")
	chatCmd.Flags().DurationVar(&chatTimeout, "timeout", 0, "Per-exchange timeout (default from settings)")
	chatCmd.Flags().BoolVar(&chatHideThinking, "hide-thinking", false, "Do not echo reasoning text")
	chatCmd.Flags().StringVar(&chatStoreDir, "store", transcript.DefaultDir, "Directory for saved sessions")
	chatCmd.Flags().StringVar(&chatResume, "resume", "", "Saved session to resume (name or path)")
}

// chatState is what slash commands may swap out mid-session.
type chatState struct {
	sess   *chat.Session
	budget int
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	r := newRenderer(!chatHideThinking)
	r.AnswerLabel = "Claude:"
	store := transcript.NewStore(chatStoreDir)
	client := api.NewClient(cfg.Endpoint, cfg.APIKey)

	budget := chatBudget
	if budget == 0 {
		budget = cfg.ThinkingBudget
	}
	if budget < config.MinThinkingBudget {
		r.Warn("Budget %d is below the minimum; using %d", budget, config.MinThinkingBudget)
		budget = config.MinThinkingBudget
	}
	timeout := chatTimeout
	if timeout == 0 {
		timeout = time.Duration(cfg.TimeoutSecs) * time.Second
	}

	state := &chatState{sess: chat.NewSession(cfg.SystemPrompt), budget: budget}

	r.Rule(70)
	r.Headline("   Multi-Turn Chat with Extended Thinking & Message Verification")
	r.Rule(70)
	r.Info("Type your message, or / for commands. Ctrl-D or /quit to leave.")
	if !cfg.KeyConfigured() {
		r.Warn("No API key configured; set %s or run 'thinkprobe config set-key'", config.EnvAPIKey)
	}
	if chatResume != "" {
		rec, lerr := store.Load(chatResume)
		if lerr != nil {
			return lerr
		}
		resumeSession(r, state, rec, cfg.SystemPrompt)
	}
	r.Info("")

	interactive := render.IsTerminal(os.Stdin)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		if interactive {
			r.Prompt("You: ")
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := chatCommand(r, store, cfg, state, scanner, interactive, line); quit {
				break
			}
			continue
		}

		view := r.TurnView()
		res, terr := probe.RunTurn(cmd.Context(), client, state.sess, line, probe.Options{
			Model:     cfg.Model,
			Budget:    state.budget,
			MaxTokens: cfg.MaxTokens,
			Timeout:   timeout,
			Sink:      view,
			Indicator: newIndicator(),
		})
		view.Finish()
		if terr != nil {
			r.Error("[ERROR] %v", terr)
			r.Note("The failed turn was rolled back; history is unchanged.")
			continue
		}
		printTurnVerification(r, res, state.sess)
	}
	if serr := scanner.Err(); serr != nil {
		return serr
	}

	if state.sess.TurnCount() == 0 {
		r.Info("Nothing to save. Bye.")
		return nil
	}
	rec := transcript.Snapshot(state.sess)
	path, serr := store.SaveFinal(rec)
	if serr != nil {
		r.Warn("Could not save the session: %v", serr)
		return nil
	}
	r.Info("Session saved to: %s", path)
	if s := rec.Summary; s != nil {
		r.Note("Final verification: %d/%d signatures valid", s.ValidSignatures, s.TotalSignatures)
	}
	return nil
}

// printTurnVerification reports what the turn just linked into history.
func printTurnVerification(r *render.Renderer, res stream.TurnResult, sess *chat.Session) {
	r.Divider(60)
	r.Info("  Message Verification for Turn %d:", sess.TurnCount())

	if len(res.ReasoningText) > 0 {
		r.CheckOK("Thinking block captured (%d chars)", len(res.ReasoningText))
	} else {
		r.CheckFail("No thinking block in this response")
	}

	if res.SignaturePresent {
		r.CheckOK("Signature present (%d chars)", len(res.Signature))
		if probe.VerifySignature(res).ValidFormat {
			r.CheckOK("Signature format valid (base64)")
		} else {
			r.CheckWarn("[??]", "Signature format unrecognized")
		}
	} else {
		r.CheckWarn("[--]", "No signature (may not be required for this model)")
	}

	if n := len(res.Redacted); n > 0 {
		r.CheckWarn("[!!]", "Redacted thinking blocks: %d (preserved for the API)", n)
	}

	linked := 0
	for _, m := range sess.Messages() {
		if m.Role == chat.RoleAssistant && len(m.Blocks) > 0 {
			linked++
		}
	}
	r.CheckOK("Message linked to history (%d assistant msgs with blocks)", linked)

	if sigs := sess.Signatures(); len(sigs) > 1 {
		sum := transcript.Summarize(sigs)
		if sum.ChainIntact {
			r.CheckOK("Signature chain intact (%d turns)", len(sigs))
		} else {
			r.CheckWarn("[!!]", "Signature chain incomplete (%d/%d valid)", sum.ValidSignatures, sum.TotalSignatures)
		}
	}

	r.Divider(60)
	r.Note("  [Turn %d complete | Total messages: %d]", sess.TurnCount(), sess.Len())
	r.Info("")
}

// chatCommand dispatches one slash command. It returns true when the
// session should end.
func chatCommand(r *render.Renderer, store *transcript.Store, cfg *config.Config, state *chatState, scanner *bufio.Scanner, interactive bool, line string) bool {
	cmd, _, _ := strings.Cut(line, " ")
	switch cmd {
	case "/quit", "/exit":
		return true

	case "/", "/help":
		printChatHelp(r)

	case "/clear":
		state.sess.Clear()
		r.Info("Conversation cleared.")

	case "/status":
		r.Field("Turns", "%d", state.sess.TurnCount())
		r.Field("Messages", "%d", state.sess.Len())
		r.Field("Thinking Budget", "%d tokens", state.budget)
		r.Field("Thinking Display", "%s", onOff(r.ShowThinking))
		r.Field("Model", "%s", cfg.Model)
		r.Field("Endpoint", "%s", cfg.Endpoint)
		r.Field("API Key", "%s", maskKey(cfg.APIKey))

	case "/thinking":
		r.ShowThinking = !r.ShowThinking
		r.Info("Thinking display: %s", onOff(r.ShowThinking))

	case "/budget":
		r.Prompt(fmt.Sprintf("New thinking budget [%d]: ", state.budget))
		if !scanner.Scan() {
			return true
		}
		nb, perr := config.ParseBudget(strings.TrimSpace(scanner.Text()), state.budget)
		state.budget = nb
		if perr != nil {
			r.Warn("%v", perr)
		}
		r.Info("Thinking budget: %d tokens", state.budget)

	case "/save":
		path, err := store.Save(transcript.Snapshot(state.sess))
		if err != nil {
			r.Warn("Could not save: %v", err)
			break
		}
		r.Info("Session saved to: %s", path)

	case "/verify":
		verifyHistory(r, state.sess)

	case "/history":
		if quit := chatHistory(r, store, cfg, state, scanner, interactive); quit {
			return true
		}

	default:
		r.Warn("Unknown command %q (type / for the list)", cmd)
	}
	return false
}

func printChatHelp(r *render.Renderer) {
	r.Info("Commands:")
	r.Info("  /quit     - exit (saves the session)")
	r.Info("  /clear    - start a fresh conversation")
	r.Info("  /status   - session details")
	r.Info("  /history  - list saved chats and resume one")
	r.Info("  /verify   - re-check all stored signatures")
	r.Info("  /thinking - toggle live reasoning display")
	r.Info("  /budget   - change the thinking budget")
	r.Info("  /save     - snapshot the session now")
}

// verifyHistory re-walks the signature ledger.
func verifyHistory(r *render.Renderer, sess *chat.Session) {
	sigs := sess.Signatures()
	if len(sigs) == 0 {
		r.Info("No signatures recorded yet.")
		return
	}
	r.Info("Verifying %d stored signature(s):", len(sigs))
	for _, s := range sigs {
		if s.Valid {
			r.CheckOK("Turn %d: valid signature (%d chars) %s...", s.Turn, s.Length, s.Preview)
		} else {
			r.CheckWarn("[!!]", "Turn %d: missing or invalid signature", s.Turn)
		}
	}
	sum := transcript.Summarize(sigs)
	if sum.ChainIntact {
		r.CheckOK("Signature chain intact (%d/%d valid)", sum.ValidSignatures, sum.TotalSignatures)
	} else {
		r.CheckWarn("[!!]", "Signature chain incomplete (%d/%d valid)", sum.ValidSignatures, sum.TotalSignatures)
	}
}

// chatHistory lists saved sessions and offers to resume one.
func chatHistory(r *render.Renderer, store *transcript.Store, cfg *config.Config, state *chatState, scanner *bufio.Scanner, interactive bool) bool {
	entries, err := store.List()
	if err != nil {
		r.Warn("Could not list saved sessions: %v", err)
		return false
	}
	if len(entries) == 0 {
		r.Info("No saved sessions in %s.", store.Dir())
		return false
	}
	if len(entries) > 10 {
		entries = entries[:10]
	}
	r.Info("Saved sessions (newest first):")
	for i, e := range entries {
		marker := ""
		if !e.Resumable {
			marker = "  [thinking stripped on load]"
		}
		r.Info("  %d. %s: %d turns, %d messages%s", i+1, e.Name, e.Turns, e.Messages, marker)
	}
	if !interactive {
		return false
	}
	r.Prompt("Select session number (Enter to cancel): ")
	if !scanner.Scan() {
		return true
	}
	pick := strings.TrimSpace(scanner.Text())
	if pick == "" {
		return false
	}
	idx, perr := strconv.Atoi(pick)
	if perr != nil || idx < 1 || idx > len(entries) {
		r.Warn("Not a listed session: %q", pick)
		return false
	}
	rec, lerr := store.Load(entries[idx-1].Name)
	if lerr != nil {
		r.Warn("Could not load %s: %v", entries[idx-1].Name, lerr)
		return false
	}
	resumeSession(r, state, rec, cfg.SystemPrompt)
	return false
}

func resumeSession(r *render.Renderer, state *chatState, rec *transcript.Record, systemPrompt string) {
	state.sess = transcript.Restore(rec, systemPrompt)
	r.Info("Loaded %d messages (%d turns).", state.sess.Len(), state.sess.TurnCount())
	if !rec.Resumable {
		r.Warn("This session predates reasoning persistence; thinking blocks were stripped and signature continuity starts over.")
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func maskKey(key string) string {
	if key == "" || key == config.PlaceholderAPIKey {
		return "(not set)"
	}
	if len(key) <= 12 {
		return "****"
	}
	return key[:8] + "..." + key[len(key)-4:]
}
