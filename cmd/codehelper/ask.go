package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/jxucoder/codehelper/pkg/dispatcher"
)

var (
	askLanguage string
	askTarget   string
	askExtra    string
	askRaw      bool
	askTimeout  time.Duration
)

var askCmd = &cobra.Command{
	Use:   "ask TASK [FILE]",
	Short: "Send code to a running server",
	Long: `Send code to a running CodeHelper server and print the answer.

TASK is one of explain, fix, convert or document. The code is read from
FILE, or from stdin when FILE is omitted or "-". The language is guessed
from the file extension unless --lang is given.

  codehelper ask explain main.go --extra "focus on error handling"
  codehelper ask convert script.py --to go
  git diff | codehelper ask document --lang diff --raw`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askLanguage, "lang", "l", "", "Source language (default: from file extension)")
	askCmd.Flags().StringVar(&askTarget, "to", "", "Target language for convert")
	askCmd.Flags().StringVar(&askExtra, "extra", "", "Extra notes for explain")
	askCmd.Flags().BoolVar(&askRaw, "raw", false, "Print the answer without markdown rendering")
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 2*time.Minute, "Request timeout")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	task := dispatcher.TaskType(strings.ToLower(args[0]))
	if !task.Valid() {
		return fmt.Errorf("unknown task %q (want explain, fix, convert or document)", args[0])
	}

	path := "-"
	if len(args) == 2 {
		path = args[1]
	}
	code, err := readCode(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}

	lang := askLanguage
	if lang == "" {
		lang = languageFromPath(path)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), askTimeout)
	defer cancel()

	result, err := askServer(ctx, http.DefaultClient, serverURL, dispatcher.Request{
		TaskType:       task,
		Code:           code,
		Language:       lang,
		TargetLanguage: askTarget,
		Extra:          askExtra,
	})
	if err != nil {
		return err
	}

	out := result
	if !askRaw {
		out = renderMarkdown(result)
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func readCode(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading code: %w", err)
	}
	return string(data), nil
}

// askServer posts req to the code-helper endpoint and returns the result.
func askServer(ctx context.Context, client *http.Client, baseURL string, req dispatcher.Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(baseURL, "/")+"/api/code-helper", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("contacting server: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Success bool   `json:"success"`
		Result  string `json:"result"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("unexpected response (%s): %w", resp.Status, err)
	}
	if !out.Success {
		if out.Error != "" {
			return "", fmt.Errorf("%s: %s", out.Message, out.Error)
		}
		return "", fmt.Errorf("%s", out.Message)
	}
	return out.Result, nil
}

// renderMarkdown formats text for the terminal, falling back to the input.
func renderMarkdown(text string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

var extLanguages = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".kt":    "kotlin",
	".rs":    "rust",
	".rb":    "ruby",
	".php":   "php",
	".c":     "c",
	".h":     "c",
	".cc":    "c++",
	".cpp":   "c++",
	".cs":    "c#",
	".swift": "swift",
	".sh":    "bash",
	".sql":   "sql",
}

func languageFromPath(path string) string {
	return extLanguages[strings.ToLower(filepath.Ext(path))]
}
