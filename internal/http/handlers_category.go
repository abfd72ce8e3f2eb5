package http

import (
	"net/http"

	"budgetwatch/internal/auth"
	"budgetwatch/internal/core"
)

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}

	category := core.Category{
		UserID:    userID,
		Name:      sanitizeInput(req.Name),
		Icon:      sanitizeInput(req.Icon),
		Color:     sanitizeInput(req.Color),
		IsDefault: req.IsDefault,
	}
	if err := category.Validate(); err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	created, err := s.repo.CreateCategory(r.Context(), category)
	if err != nil {
		respondStorageError(w, r, err, "category")
		return
	}

	NewJSONResponse().Status(http.StatusCreated).Body(toCategoryResponse(created)).Write(w)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	categories, err := s.repo.ListCategories(r.Context(), userID)
	if err != nil {
		respondStorageError(w, r, err, "categories")
		return
	}

	out := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, toCategoryResponse(c))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}

	category := core.Category{
		ID:        id,
		UserID:    userID,
		Name:      sanitizeInput(req.Name),
		Icon:      sanitizeInput(req.Icon),
		Color:     sanitizeInput(req.Color),
		IsDefault: req.IsDefault,
	}
	if err := category.Validate(); err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	if err := s.repo.UpdateCategory(r.Context(), category); err != nil {
		respondStorageError(w, r, err, "category")
		return
	}

	NewJSONResponse().Body(toCategoryResponse(category)).Write(w)
}

// handleDeleteCategory removes a category. Transactions that referenced it
// become uncategorized; budgets that tracked it are deleted with it.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	// Drop cached statuses first: the cascade removes dependent budgets, and
	// their keys would otherwise linger until the TTL expires.
	s.invalidateBudgetStatuses(r, userID)

	if err := s.repo.DeleteCategory(r.Context(), id, userID); err != nil {
		respondStorageError(w, r, err, "category")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
