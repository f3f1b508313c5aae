// Package commands provides the CLI commands for thinkprobe.
package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hicap-labs/thinkprobe/internal/config"
	"github.com/hicap-labs/thinkprobe/internal/logging"
	"github.com/hicap-labs/thinkprobe/internal/probe"
	"github.com/hicap-labs/thinkprobe/internal/render"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// ErrFailed signals a failed verification verdict. The report is already on
// screen when it is returned; main translates it into exit code 1 without
// printing anything more.
var ErrFailed = errors.New("verification failed")

// Global flags
var (
	flagConfig   string
	flagLogLevel string
	flagNoColor  bool
	flagQuiet    bool
)

var rootCmd = &cobra.Command{
	Use:   "thinkprobe",
	Short: "Probe and verify extended-thinking streams",
	Long: `thinkprobe drives a model-inference endpoint that streams extended
thinking over SSE, and verifies what comes back: that reasoning was
produced, that its signature survived the trip, and that multi-turn
histories preserve reasoning blocks verbatim.

Run 'thinkprobe run' for a single probing request, 'thinkprobe chat'
for an interactive verified conversation, or 'thinkprobe serve' for a
local endpoint simulator to test against.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Best effort; a missing .env is the normal case.
		_ = godotenv.Load()
		logging.Init(logging.Config{
			Level:  logging.ParseLevel(flagLogLevel),
			Pretty: render.IsTerminal(os.Stderr),
		})
		if flagNoColor {
			render.DisableColor()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Settings file (default "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable ANSI colors")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Verdict-only output")

	rootCmd.SetVersionTemplate(fmt.Sprintf("thinkprobe %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(scaleCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadSettings() (*config.Config, error) {
	return config.Load(flagConfig)
}

func newRenderer(showThinking bool) *render.Renderer {
	return render.NewRenderer(os.Stdout, flagQuiet, showThinking)
}

// newIndicator returns the in-flight spinner, or nil when there is no
// terminal to animate on.
func newIndicator() probe.Indicator {
	if flagQuiet || !render.IsTerminal(os.Stdout) {
		return nil
	}
	return render.NewSpinner(os.Stdout)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
