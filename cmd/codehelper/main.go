// CodeHelper
//
// A small backend that explains, fixes, converts and documents code with
// an LLM, plus a CLI client for it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	serverURL string
)

var rootCmd = &cobra.Command{
	Use:   "codehelper",
	Short: "CodeHelper - AI code assistant backend",
	Long: `CodeHelper explains, fixes, converts and documents code using an LLM.

  codehelper config setup                      Set up API keys (first time)
  codehelper serve                             Start the server
  codehelper ask fix main.py                   Ask the server about a file
  cat main.go | codehelper ask explain         Read code from stdin
  codehelper ask convert app.py --to go        Convert between languages
  codehelper health                            Check a running server`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("CODEHELPER_SERVER", "http://localhost:5000"), "CodeHelper server URL")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
