// Package channel defines the Channel interface for CodeHelper chat
// front ends and the parsing and reply formatting they share.
package channel

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jxucoder/codehelper/pkg/dispatcher"
	"github.com/jxucoder/codehelper/pkg/llm"
)

// Channel represents an input/output transport (Slack, Telegram, etc.).
type Channel interface {
	Name() string
	Run(ctx context.Context) error
}

// Runner executes a code task and returns the completion text.
type Runner interface {
	Run(ctx context.Context, req dispatcher.Request) (string, error)
}

// ErrEmptyMessage is returned by ParseRequest for blank input.
var ErrEmptyMessage = errors.New("empty message")

// Usage describes the message format accepted by ParseRequest.
const Usage = `Send a task on the first line and your code below it:

explain [language] [-- extra notes]
fix [language]
document [language]
convert <from> <to>

Example:
fix python
print("hello"`

var langHint = regexp.MustCompile(`^[A-Za-z0-9+#._-]{1,20}$`)

// ParseRequest turns a chat message into a dispatcher request. The first
// line holds the task and its arguments, optionally prefixed with "/" and
// suffixed with "@botname"; the remaining lines hold the code, optionally
// wrapped in a ``` fence. Validation of the task and code is left to the
// dispatcher.
func ParseRequest(text string) (dispatcher.Request, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return dispatcher.Request{}, ErrEmptyMessage
	}

	header, code, _ := strings.Cut(text, "\n")
	// A fence opened on the command line belongs to the code.
	if i := strings.Index(header, "```"); i >= 0 {
		code = header[i:] + "\n" + code
		header = header[:i]
	}

	args, extra, _ := strings.Cut(header, "--")
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return dispatcher.Request{}, ErrEmptyMessage
	}

	cmd := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	if at := strings.Index(cmd, "@"); at >= 0 {
		cmd = cmd[:at]
	}
	fields = fields[1:]

	req := dispatcher.Request{TaskType: dispatcher.TaskType(cmd)}
	code, hint := stripFence(code)
	req.Code = code

	switch req.TaskType {
	case dispatcher.TaskConvert:
		// Accept both "convert python go" and "convert python to go".
		if len(fields) == 3 && strings.EqualFold(fields[1], "to") {
			fields = []string{fields[0], fields[2]}
		}
		if len(fields) > 0 {
			req.Language = fields[0]
		}
		if len(fields) > 1 {
			req.TargetLanguage = fields[1]
		}
	default:
		if len(fields) > 0 {
			req.Language = fields[0]
		}
		req.Extra = strings.TrimSpace(extra)
	}
	if req.Language == "" {
		req.Language = hint
	}
	return req, nil
}

// stripFence removes a surrounding ``` fence and returns the code and the
// fence's language hint, if any.
func stripFence(code string) (string, string) {
	code = strings.TrimSpace(code)
	if !strings.HasPrefix(code, "```") {
		return code, ""
	}
	code = strings.TrimSuffix(strings.TrimPrefix(code, "```"), "```")

	var hint string
	if first, rest, ok := strings.Cut(code, "\n"); ok && langHint.MatchString(strings.TrimSpace(first)) {
		hint = strings.TrimSpace(first)
		code = rest
	}
	return strings.Trim(code, "\n"), hint
}

// ReplyText renders the outcome of a code task for a chat reply.
func ReplyText(result string, err error) string {
	if err == nil {
		return result
	}

	var (
		missing     *dispatcher.MissingFieldError
		unsupported *dispatcher.UnsupportedTaskError
		tooLarge    *dispatcher.CodeTooLargeError
		llmErr      *llm.Error
	)
	switch {
	case errors.As(err, &missing), errors.As(err, &unsupported):
		return fmt.Sprintf("%s\n\n%s", err, Usage)
	case errors.As(err, &tooLarge):
		return err.Error()
	case errors.As(err, &llmErr):
		if llmErr.Kind == llm.KindTimeout {
			return "The AI provider took too long to answer. Please try again."
		}
		return "AI provider error: " + string(llmErr.Kind)
	default:
		return "Something went wrong. Please try again."
	}
}

// Chunk splits text into pieces of at most limit runes, preferring to break
// at a newline.
func Chunk(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
