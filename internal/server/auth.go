package server

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/jxucoder/codehelper/internal/auth"
)

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type authResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	User    *userView `json:"user,omitempty"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if _, err := s.auth.Signup(r.Context(), req.Name, req.Email, req.Password); err != nil {
		s.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Success: true, Message: "Account created successfully!"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	u, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{
		Success: true,
		Message: "Login successful!",
		User:    &userView{ID: u.ID, Name: u.Name, Email: u.Email},
	})
}

func (s *Server) writeAuthError(w http.ResponseWriter, err error) {
	var authErr *auth.Error
	if !errors.As(err, &authErr) {
		s.logger.Error("auth failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	status := http.StatusOK
	if s.opts.StrictAuthStatus {
		switch authErr.Reason {
		case auth.ReasonInvalidInput:
			status = http.StatusBadRequest
		case auth.ReasonEmailExists:
			status = http.StatusConflict
		default:
			status = http.StatusUnauthorized
		}
	}
	writeError(w, status, authErr.Message)
}
