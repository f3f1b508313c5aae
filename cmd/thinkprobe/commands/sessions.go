package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hicap-labs/thinkprobe/internal/chat"
	"github.com/hicap-labs/thinkprobe/internal/transcript"
)

var (
	sessionsDir  string
	sessionsGlob string
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect saved chat sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sessions, newest first",
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one saved session in detail",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

func init() {
	sessionsCmd.PersistentFlags().StringVar(&sessionsDir, "store", transcript.DefaultDir, "Directory of saved sessions")
	sessionsListCmd.Flags().StringVar(&sessionsGlob, "glob", "", "Filter pattern, e.g. 'chat_202608*_final.json'")
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	store := transcript.NewStore(sessionsDir)

	var (
		entries []transcript.Entry
		err     error
	)
	if sessionsGlob != "" {
		entries, err = store.Glob(sessionsGlob)
	} else {
		entries, err = store.List()
	}
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Printf("No saved sessions in %s.\n", store.Dir())
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSAVED\tTURNS\tMSGS\tRESUMABLE\tDIGEST")
	for _, e := range entries {
		digest := e.Digest
		if len(digest) > 12 {
			digest = digest[:12]
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n", e.Name, e.SavedAt, e.Turns, e.Messages, yesNo(e.Resumable), digest)
	}
	return w.Flush()
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	store := transcript.NewStore(sessionsDir)
	rec, err := store.Load(args[0])
	if err != nil {
		return err
	}

	path := args[0]
	if !filepath.IsAbs(path) && filepath.Dir(path) == "." {
		path = filepath.Join(store.Dir(), path)
	}
	digest, err := transcript.FileDigest(path)
	if err != nil {
		return err
	}

	r := newRenderer(false)
	r.Field("File", "%s", path)
	r.Field("Digest", "blake3:%s", digest)
	r.Field("Saved", "%s", rec.Timestamp)
	r.Field("Turns", "%d", rec.Turns)
	r.Field("Messages", "%d", rec.MessageCount)
	r.Field("Resumable", "%s", yesNo(rec.Resumable))

	if len(rec.Signatures) > 0 {
		r.Info("Signature ledger:")
		for _, s := range rec.Signatures {
			if s.Valid {
				r.CheckOK("Turn %d: %d chars  %s...", s.Turn, s.Length, s.Preview)
			} else {
				r.CheckWarn("[!!]", "Turn %d: missing or invalid", s.Turn)
			}
		}
	}
	if s := rec.Summary; s != nil {
		r.Field("Verification", "%d/%d valid, chain intact: %s", s.ValidSignatures, s.TotalSignatures, yesNo(s.ChainIntact))
	}

	if answer := lastAnswer(rec.Messages); answer != "" {
		if len(answer) > 120 {
			answer = answer[:120] + "..."
		}
		r.Field("Last Answer", "%s", answer)
	}
	return nil
}

func lastAnswer(msgs []chat.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Role != chat.RoleAssistant {
			continue
		}
		if m.Text != "" {
			return m.Text
		}
		for _, b := range m.Blocks {
			if b.Kind == chat.BlockAnswer {
				return b.Text
			}
		}
	}
	return ""
}
