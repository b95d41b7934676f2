package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jxucoder/codehelper/pkg/model"
	"github.com/jxucoder/codehelper/pkg/store"
)

type itemResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    *model.Item `json:"data"`
}

type itemListResponse struct {
	Success bool          `json:"success"`
	Count   int           `json:"count"`
	Data    []*model.Item `json:"data"`
}

type createItemRequest struct {
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.items.ListItems(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, itemListResponse{Success: true, Count: len(items), Data: items})
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "Name required")
		return
	}

	item := &model.Item{Name: name, Completed: req.Completed}
	if err := s.items.CreateItem(r.Context(), item); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, itemResponse{Success: true, Data: item})
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Item not found")
		return
	}
	var patch model.ItemPatch
	if !s.decodeBody(w, r, &patch) {
		return
	}

	item, err := s.items.UpdateItem(r.Context(), id, patch)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, itemResponse{Success: true, Data: item})
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Item not found")
		return
	}

	item, err := s.items.DeleteItem(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, itemResponse{Success: true, Message: "Deleted", Data: item})
}

func itemID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Item not found")
		return
	}
	s.logger.Error("item store failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
