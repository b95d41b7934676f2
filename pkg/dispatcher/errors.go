package dispatcher

import (
	"fmt"
	"strings"
)

// MissingFieldError is returned when required request fields are absent.
type MissingFieldError struct {
	Fields []string
}

func (e *MissingFieldError) Error() string {
	quoted := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		quoted[i] = "'" + f + "'"
	}
	if len(quoted) == 1 {
		return fmt.Sprintf("Field %s is required", quoted[0])
	}
	return fmt.Sprintf("Fields %s are required", strings.Join(quoted, " and "))
}

// UnsupportedTaskError is returned for a task tag with no template.
type UnsupportedTaskError struct {
	Task string
}

func (e *UnsupportedTaskError) Error() string {
	return fmt.Sprintf("Invalid task type: %q", e.Task)
}

// CodeTooLargeError is returned when the code exceeds the configured cap.
type CodeTooLargeError struct {
	Size  int
	Limit int
}

func (e *CodeTooLargeError) Error() string {
	return fmt.Sprintf("Code is too large (%d bytes, limit %d)", e.Size, e.Limit)
}
