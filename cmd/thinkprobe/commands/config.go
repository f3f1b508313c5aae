package commands

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hicap-labs/thinkprobe/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or edit settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one settings key",
	Long: `Set one key in the settings file. Keys: endpoint, api_key, model,
thinking_budget, max_tokens, system_prompt, user_prompt, timeout_secs.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configSetKeyCmd = &cobra.Command{
	Use:   "set-key",
	Short: "Set the API key without echoing it",
	RunE:  runConfigSetKey,
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Write the default settings file",
	RunE:  runConfigReset,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configSetKeyCmd)
	configCmd.AddCommand(configResetCmd)
}

func settingsPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	return config.DefaultPath()
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	r := newRenderer(false)
	r.Headline("Current Configuration:")
	r.Field("Endpoint", "%s", cfg.Endpoint)
	r.Field("API Key", "%s", maskKey(cfg.APIKey))
	r.Field("Model", "%s", cfg.Model)
	r.Field("Thinking Budget", "%d tokens", cfg.ThinkingBudget)
	r.Field("Max Tokens", "%d", cfg.MaxTokens)
	r.Field("System Prompt", "%s", cfg.SystemPrompt)
	r.Field("User Prompt", "%s", cfg.UserPrompt)
	r.Field("Timeout", "%ds", cfg.TimeoutSecs)
	r.Note("Settings file: %s (%s overrides api_key when set)", settingsPath(), config.EnvAPIKey)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	path := settingsPath()
	// Edit the file layer only, so an env-injected key is never persisted.
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	r := newRenderer(false)

	key, value := strings.ToLower(args[0]), args[1]
	switch key {
	case "endpoint":
		cfg.Endpoint = value
	case "api_key":
		cfg.APIKey = value
	case "model":
		cfg.Model = value
	case "system_prompt":
		cfg.SystemPrompt = value
	case "user_prompt":
		cfg.UserPrompt = value
	case "thinking_budget":
		n, perr := config.ParseBudget(value, cfg.ThinkingBudget)
		if perr != nil {
			if n == cfg.ThinkingBudget {
				return perr
			}
			r.Warn("%v", perr)
		}
		cfg.ThinkingBudget = n
	case "max_tokens":
		n, perr := config.ParseMaxTokens(value, cfg.MaxTokens)
		if perr != nil {
			return perr
		}
		cfg.MaxTokens = n
	case "timeout_secs":
		n, perr := strconv.Atoi(value)
		if perr != nil || n <= 0 {
			return fmt.Errorf("timeout_secs: %q is not a positive number", value)
		}
		cfg.TimeoutSecs = n
	default:
		return fmt.Errorf("unknown key %q (endpoint, api_key, model, thinking_budget, max_tokens, system_prompt, user_prompt, timeout_secs)", args[0])
	}

	if err := config.Save(path, cfg); err != nil {
		return err
	}
	r.Info("Updated %s in %s", key, path)
	return nil
}

func runConfigSetKey(cmd *cobra.Command, args []string) error {
	path := settingsPath()
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}

	fmt.Fprint(os.Stdout, "Enter API key: ")
	var key string
	if term.IsTerminal(int(os.Stdin.Fd())) {
		b, rerr := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if rerr != nil {
			return rerr
		}
		key = string(b)
	} else {
		line, rerr := bufio.NewReader(os.Stdin).ReadString('\n')
		if rerr != nil && line == "" {
			return rerr
		}
		key = line
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("no key entered")
	}

	cfg.APIKey = key
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	newRenderer(false).Info("API key saved (%s)", maskKey(key))
	return nil
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	path := settingsPath()
	if err := config.Save(path, config.Default()); err != nil {
		return err
	}
	newRenderer(false).Info("Wrote default settings to %s", path)
	return nil
}
