package commands

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hicap-labs/thinkprobe/internal/simulator"
	"github.com/hicap-labs/thinkprobe/internal/transcript"
)

var (
	serveAddr     string
	serveAPIKey   string
	serveScript   string
	serveReplay   string
	serveStoreDir string
	serveDelayMS  int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a local SSE endpoint simulator",
	Long: `Serve a stand-in for the inference endpoint, streaming canned events
in the upstream wire format. By default every request gets one passing
turn: a thinking block, a signature, and a short answer.

Use --script to stream a scripted response instead, or --replay to
re-stream the last assistant turn of a saved session. Point the other
commands at it with:

  thinkprobe config set endpoint http://localhost:8091` + simulator.CompletionsPath,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8091", "Listen address")
	serveCmd.Flags().StringVar(&serveAPIKey, "api-key", "", "Require this api-key header (default: accept any)")
	serveCmd.Flags().StringVar(&serveScript, "script", "", "Script file to stream")
	serveCmd.Flags().StringVar(&serveReplay, "replay", "", "Saved session to re-stream (name or path)")
	serveCmd.Flags().StringVar(&serveStoreDir, "store", transcript.DefaultDir, "Directory of saved sessions for --replay")
	serveCmd.Flags().IntVar(&serveDelayMS, "delay-ms", 0, "Per-event delay in milliseconds")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveScript != "" && serveReplay != "" {
		return errors.New("--script and --replay are mutually exclusive")
	}

	var (
		script *simulator.Script
		err    error
	)
	switch {
	case serveScript != "":
		script, err = simulator.LoadScript(serveScript)
	case serveReplay != "":
		var rec *transcript.Record
		if rec, err = transcript.NewStore(serveStoreDir).Load(serveReplay); err == nil {
			script, err = simulator.ScriptFromRecord(rec)
		}
	}
	if err != nil {
		return err
	}
	if serveDelayMS > 0 {
		if script == nil {
			script = simulator.DefaultScript()
		}
		script.DelayMS = serveDelayMS
	}

	srv := simulator.New(simulator.Config{Addr: serveAddr, APIKey: serveAPIKey, Script: script})

	r := newRenderer(false)
	r.Info("Simulator listening on %s", serveAddr)
	r.Note("Completions: POST %s   Health: GET /health", simulator.CompletionsPath)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
		r.Info("Shutting down...")
		srv.Shutdown()
		return <-errCh
	}
}
