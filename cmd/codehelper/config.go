package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jxucoder/codehelper/internal/config"
)

// configKey describes a single configuration value.
type configKey struct {
	Key    string
	Desc   string
	Secret bool
	Prefix string // expected prefix for validation (e.g. "gsk_"), empty = no check
}

// allConfigKeys lists every configurable value in display order.
var allConfigKeys = []configKey{
	{"CODEHELPER_PROVIDER", "LLM provider (auto, gemini, groq, openai, anthropic)", false, ""},
	{"GEMINI_API_KEY", "Google Gemini API key", true, ""},
	{"GROQ_API_KEY", "Groq API key", true, "gsk_"},
	{"OPENAI_API_KEY", "OpenAI API key", true, "sk-"},
	{"ANTHROPIC_API_KEY", "Anthropic API key", true, "sk-ant-"},
	{"CODEHELPER_LLM_MODEL", "Model override (empty = provider default)", false, ""},
	{"CODEHELPER_ADDR", "Listen address (default :5000)", false, ""},
	{"CODEHELPER_DB_DRIVER", "Database driver (sqlite, postgres)", false, ""},
	{"CODEHELPER_DB_DSN", "Database DSN", true, ""},
	{"CODEHELPER_TEMPLATES_FILE", "YAML file overriding prompt templates", false, ""},
	{"CODEHELPER_LOG_LEVEL", "Log level (debug, info, warn, error)", false, ""},
	{"TELEGRAM_BOT_TOKEN", "Telegram bot token (from @BotFather)", true, ""},
	{"SLACK_BOT_TOKEN", "Slack Bot User OAuth Token (xoxb-...)", true, "xoxb-"},
	{"SLACK_APP_TOKEN", "Slack App-Level Token (xapp-...)", true, "xapp-"},
}

var validProviders = map[string]bool{
	config.ProviderAuto:      true,
	config.ProviderGemini:    true,
	config.ProviderGroq:      true,
	config.ProviderOpenAI:    true,
	config.ProviderAnthropic: true,
}

// ---------------------------------------------------------------------------
// Cobra commands
// ---------------------------------------------------------------------------

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CodeHelper configuration",
	Long: `Manage CodeHelper configuration (provider, API keys, bot tokens).

Configuration is stored in ~/.codehelper/config.env (or $CODEHELPER_CONFIG)
and can be overridden by environment variables.

  codehelper config setup              Interactive setup wizard
  codehelper config set KEY VALUE      Set a single config value
  codehelper config show               Show current configuration
  codehelper config path               Print config file path`,
}

var (
	setupNonInteractive bool
	setupProvider       string
	setupAPIKey         string
)

var configSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Long: `Guided setup that walks you through choosing an LLM provider and
optional chat bots.

Non-interactive mode for CI/scripting:
  codehelper config setup --non-interactive --provider=groq --api-key=gsk_xxx`,
	RunE: runConfigSetup,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a config value",
	Long: `Set a single configuration value. Example:
  codehelper config set GROQ_API_KEY gsk_xxxxxxxxxxxx`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display all configured values. Secrets are masked.",
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print config file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), config.FilePath())
		return nil
	},
}

func init() {
	configSetupCmd.Flags().BoolVar(&setupNonInteractive, "non-interactive", false, "Run without prompts (requires --provider and --api-key)")
	configSetupCmd.Flags().StringVar(&setupProvider, "provider", "", "LLM provider: gemini, groq, openai, anthropic")
	configSetupCmd.Flags().StringVar(&setupAPIKey, "api-key", "", "API key for --provider (non-interactive mode)")

	configCmd.AddCommand(configSetupCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// ---------------------------------------------------------------------------
// Config file helpers
// ---------------------------------------------------------------------------

// loadConfigFile reads key=value pairs from the config file.
func loadConfigFile() (map[string]string, error) {
	values := make(map[string]string)

	f, err := os.Open(config.FilePath())
	if err != nil {
		if os.IsNotExist(err) {
			return values, nil
		}
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			values[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return values, scanner.Err()
}

// saveConfigFile writes key=value pairs to the config file.
func saveConfigFile(values map[string]string) error {
	path := config.FilePath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "# CodeHelper configuration")
	fmt.Fprintln(w, "# Managed by: codehelper config")
	fmt.Fprintln(w, "# Environment variables override these values.")
	fmt.Fprintln(w)

	// Known keys first, then extras in sorted order.
	written := make(map[string]bool)
	for _, ck := range allConfigKeys {
		if v, ok := values[ck.Key]; ok && v != "" {
			fmt.Fprintf(w, "%s=%s\n", ck.Key, v)
			written[ck.Key] = true
		}
	}
	var extras []string
	for k := range values {
		if !written[k] && values[k] != "" {
			extras = append(extras, k)
		}
	}
	sort.Strings(extras)
	for _, k := range extras {
		fmt.Fprintf(w, "%s=%s\n", k, values[k])
	}

	return w.Flush()
}

// effectiveValue returns the current value for a key, preferring env vars over config file.
func effectiveValue(key string, fileValues map[string]string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fileValues[key]
}

// maskSecret masks a secret string, showing only the first 4 and last 4 characters.
func maskSecret(s string) string {
	if len(s) <= 12 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}

func findKey(name string) configKey {
	for _, ck := range allConfigKeys {
		if ck.Key == name {
			return ck
		}
	}
	return configKey{Key: name}
}

func isSecretKey(name string) bool {
	return findKey(name).Secret
}

// ---------------------------------------------------------------------------
// Interactive helpers
// ---------------------------------------------------------------------------

// wizard holds shared state for the interactive setup.
type wizard struct {
	reader     *bufio.Reader
	out        io.Writer
	fileValues map[string]string
	changed    int
}

func newWizard(in io.Reader, out io.Writer, fileValues map[string]string) *wizard {
	return &wizard{
		reader:     bufio.NewReader(in),
		out:        out,
		fileValues: fileValues,
	}
}

func (w *wizard) println(a ...any)               { fmt.Fprintln(w.out, a...) }
func (w *wizard) printf(format string, a ...any) { fmt.Fprintf(w.out, format, a...) }

func (w *wizard) readLine() (string, error) {
	input, err := w.reader.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// askYesNo asks a yes/no question and returns true for yes.
func (w *wizard) askYesNo(prompt string, defaultYes bool) (bool, error) {
	hint := "[Y/n]"
	if !defaultYes {
		hint = "[y/N]"
	}
	w.printf("  %s %s ", prompt, hint)
	input, err := w.readLine()
	if err != nil {
		return false, err
	}
	input = strings.ToLower(input)
	if input == "" {
		return defaultYes, nil
	}
	return input == "y" || input == "yes", nil
}

// askValue prompts for a single config value with prefix validation.
// Returns true if a new value was accepted.
func (w *wizard) askValue(ck configKey) (bool, error) {
	current := effectiveValue(ck.Key, w.fileValues)

	status := "\033[31m✗ not set\033[0m"
	if current != "" {
		shown := current
		if ck.Secret {
			shown = maskSecret(current)
		}
		status = fmt.Sprintf("\033[32m✓ set\033[0m (%s)", shown)
	}
	w.printf("  %s  %s\n", ck.Key, status)

	for {
		w.printf("  Paste value (Enter to keep): ")
		input, err := w.readLine()
		if err != nil {
			return false, err
		}
		if input == "" {
			return false, nil
		}
		if ck.Prefix != "" && !strings.HasPrefix(input, ck.Prefix) {
			w.printf("  \033[33m!\033[0m  Expected prefix %q. Try again or press Enter to skip.\n", ck.Prefix)
			continue
		}
		w.fileValues[ck.Key] = input
		w.changed++
		w.println("  \033[32m✓ saved\033[0m")
		return true, nil
	}
}

// askProvider prompts for CODEHELPER_PROVIDER and returns the chosen value.
func (w *wizard) askProvider() (string, error) {
	current := effectiveValue("CODEHELPER_PROVIDER", w.fileValues)
	if current == "" {
		current = config.ProviderAuto
	}
	w.printf("  Current: %s\n", current)
	for {
		w.printf("  Provider (Enter to keep): ")
		input, err := w.readLine()
		if err != nil {
			return "", err
		}
		input = strings.ToLower(input)
		if input == "" {
			return current, nil
		}
		if !validProviders[input] {
			w.printf("  \033[33m!\033[0m  Unknown provider %q. Choose: auto, gemini, groq, openai, anthropic\n", input)
			continue
		}
		w.fileValues["CODEHELPER_PROVIDER"] = input
		w.changed++
		w.println("  \033[32m✓ saved\033[0m")
		return input, nil
	}
}

// ---------------------------------------------------------------------------
// Setup wizard
// ---------------------------------------------------------------------------

func runConfigSetup(cmd *cobra.Command, args []string) error {
	fileValues, err := loadConfigFile()
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	if setupNonInteractive {
		return runNonInteractiveSetup(cmd.OutOrStdout(), fileValues, setupProvider, setupAPIKey)
	}

	w := newWizard(cmd.InOrStdin(), cmd.OutOrStdout(), fileValues)
	if err := w.run(); err != nil {
		return err
	}
	return saveAndSummarize(w)
}

func (w *wizard) run() error {
	w.println()
	w.println("  \033[1mCodeHelper Setup\033[0m")
	w.println("  ────────────────")
	w.println("  Press Enter at any prompt to keep the current value.")
	w.println()

	// Step 1: provider
	w.println("  \033[1mStep 1 of 4: LLM Provider\033[0m")
	w.println("  Options: auto (first provider with a key), gemini, groq, openai, anthropic")
	w.println()
	provider, err := w.askProvider()
	if err != nil {
		return err
	}
	w.println()

	// Step 2: API key(s)
	w.println("  \033[1mStep 2 of 4: API Key\033[0m")
	if provider == config.ProviderAuto {
		w.println("  Set at least one key. Lookup order: gemini, groq, openai, anthropic.")
		w.println()
		for _, p := range config.ProviderOrder {
			if _, err := w.askValue(findKey(config.APIKeyEnv(p))); err != nil {
				return err
			}
		}
	} else if _, err := w.askValue(findKey(config.APIKeyEnv(provider))); err != nil {
		return err
	}
	if !w.hasAnyKey() {
		w.println()
		w.println("  \033[33m!\033[0m  Warning: no LLM key configured. The server will not start without one.")
	}
	w.println()

	// Step 3: Telegram
	w.println("  \033[1mStep 3 of 4: Telegram Bot (optional)\033[0m")
	w.println("  Get a bot token from @BotFather on Telegram.")
	doTelegram, err := w.askYesNo("Set up Telegram?", false)
	if err != nil {
		return err
	}
	if doTelegram {
		if _, err := w.askValue(findKey("TELEGRAM_BOT_TOKEN")); err != nil {
			return err
		}
	}
	w.println()

	// Step 4: Slack
	w.println("  \033[1mStep 4 of 4: Slack Bot (optional)\033[0m")
	w.println("  Requires a Slack app with Socket Mode enabled.")
	doSlack, err := w.askYesNo("Set up Slack?", false)
	if err != nil {
		return err
	}
	if doSlack {
		if _, err := w.askValue(findKey("SLACK_BOT_TOKEN")); err != nil {
			return err
		}
		if _, err := w.askValue(findKey("SLACK_APP_TOKEN")); err != nil {
			return err
		}
	}
	w.println()
	return nil
}

func (w *wizard) hasAnyKey() bool {
	for _, p := range config.ProviderOrder {
		if effectiveValue(config.APIKeyEnv(p), w.fileValues) != "" {
			return true
		}
	}
	return false
}

func saveAndSummarize(w *wizard) error {
	if err := saveConfigFile(w.fileValues); err != nil {
		return err
	}

	provider := effectiveValue("CODEHELPER_PROVIDER", w.fileValues)
	if provider == "" {
		provider = config.ProviderAuto
	}
	w.println("  \033[1mConfiguration Summary\033[0m")
	w.println("  ─────────────────────")
	w.printf("  %-14s %s\n", "Provider", provider)
	for _, p := range config.ProviderOrder {
		w.summaryLine(p, effectiveValue(config.APIKeyEnv(p), w.fileValues) != "")
	}
	w.summaryLine("Telegram", effectiveValue("TELEGRAM_BOT_TOKEN", w.fileValues) != "")
	w.summaryLine("Slack", effectiveValue("SLACK_BOT_TOKEN", w.fileValues) != "" &&
		effectiveValue("SLACK_APP_TOKEN", w.fileValues) != "")
	w.println()
	w.printf("  Saved to %s\n", config.FilePath())
	w.println()
	w.println("  Next: codehelper serve")
	return nil
}

func (w *wizard) summaryLine(label string, ok bool) {
	if ok {
		w.printf("  \033[32m✓\033[0m %-12s configured\n", label)
	} else {
		w.printf("  \033[90m-\033[0m %-12s not configured\n", label)
	}
}

// runNonInteractiveSetup handles --non-interactive mode.
func runNonInteractiveSetup(out io.Writer, fileValues map[string]string, provider, apiKey string) error {
	provider = strings.ToLower(provider)
	if provider == "" || provider == config.ProviderAuto {
		return fmt.Errorf("--provider is required in non-interactive mode (gemini, groq, openai, anthropic)")
	}
	if !validProviders[provider] {
		return fmt.Errorf("unknown provider %q; valid: gemini, groq, openai, anthropic", provider)
	}
	if apiKey == "" {
		return fmt.Errorf("--api-key is required in non-interactive mode")
	}

	fileValues["CODEHELPER_PROVIDER"] = provider
	fileValues[config.APIKeyEnv(provider)] = apiKey

	if err := saveConfigFile(fileValues); err != nil {
		return err
	}
	fmt.Fprintf(out, "Config written to %s\n", config.FilePath())
	return nil
}

// ---------------------------------------------------------------------------
// config set / config show
// ---------------------------------------------------------------------------

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	fileValues, err := loadConfigFile()
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	fileValues[key] = value
	if err := saveConfigFile(fileValues); err != nil {
		return err
	}

	shown := value
	if isSecretKey(key) {
		shown = maskSecret(value)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, shown)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	fileValues, err := loadConfigFile()
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config file: %s\n\n", config.FilePath())

	for _, ck := range allConfigKeys {
		value := effectiveValue(ck.Key, fileValues)
		source := ""
		if os.Getenv(ck.Key) != "" {
			source = " (from env)"
		} else if fileValues[ck.Key] != "" {
			source = " (from config file)"
		}

		display := "(not set)"
		if value != "" {
			display = value
			if ck.Secret {
				display = maskSecret(value)
			}
		}
		fmt.Fprintf(out, "  %-28s %s%s\n", ck.Key, display, source)
	}
	return nil
}
