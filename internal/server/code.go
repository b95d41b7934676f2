package server

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/jxucoder/codehelper/pkg/dispatcher"
	"github.com/jxucoder/codehelper/pkg/llm"
)

type codeHelperResponse struct {
	Success  bool                `json:"success"`
	TaskType dispatcher.TaskType `json:"taskType"`
	Result   string              `json:"result"`
}

func (s *Server) handleCodeHelper(w http.ResponseWriter, r *http.Request) {
	var req dispatcher.Request
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.runner.Run(r.Context(), req)
	if err != nil {
		s.writeRunError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, codeHelperResponse{
		Success:  true,
		TaskType: req.TaskType,
		Result:   result,
	})
}

func (s *Server) writeRunError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		missing     *dispatcher.MissingFieldError
		unsupported *dispatcher.UnsupportedTaskError
		tooLarge    *dispatcher.CodeTooLargeError
		llmErr      *llm.Error
	)
	switch {
	case errors.As(err, &missing), errors.As(err, &unsupported), errors.As(err, &tooLarge):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &llmErr):
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Success: false,
			Message: "AI provider error",
			Error:   llmErr.Error(),
		})
	default:
		s.logger.Error("code helper failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
