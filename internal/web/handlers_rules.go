package web

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/JonMunkholm/dataquality/internal/rules"
	"github.com/JonMunkholm/dataquality/internal/service"
)

// handleListRules lists the rules of the configured source. Listing works
// for every source; the editable flag tells clients whether CRUD is available.
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	list, err := s.service.ListRules(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	render.JSON(w, r, rulesResponse{
		Success:  true,
		Editable: s.service.RulesEditable(),
		Rules:    list,
	})
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	id, err := ruleID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	rule, err := s.service.GetRule(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	render.JSON(w, r, ruleResponse{Success: true, Rule: rule})
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req rules.CreateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.respondError(w, r, badRequest(err))
		return
	}

	rule, err := s.service.CreateRule(r.Context(), req, requestActor(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, ruleResponse{Success: true, Rule: rule})
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id, err := ruleID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var req rules.UpdateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.respondError(w, r, badRequest(err))
		return
	}

	rule, err := s.service.UpdateRule(r.Context(), id, req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	render.JSON(w, r, ruleResponse{Success: true, Rule: rule})
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := ruleID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := s.service.DeleteRule(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func ruleID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: rule id %q", service.ErrInvalidRequest, raw)
	}
	return id, nil
}
