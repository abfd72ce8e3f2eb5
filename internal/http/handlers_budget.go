package http

import (
	"log/slog"
	"net/http"

	"budgetwatch/internal/auth"
)

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req budgetRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}

	budget, err := req.toBudget(userID)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	if err := budget.Validate(); err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	// The tracked category must exist and belong to the user
	if _, err := s.repo.GetCategory(r.Context(), budget.CategoryID, userID); err != nil {
		respondStorageError(w, r, err, "category")
		return
	}

	created, err := s.repo.CreateBudget(r.Context(), budget)
	if err != nil {
		respondStorageError(w, r, err, "budget")
		return
	}

	NewJSONResponse().Status(http.StatusCreated).Body(toBudgetResponse(created)).Write(w)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	budgets, err := s.repo.ListBudgets(r.Context(), userID)
	if err != nil {
		respondStorageError(w, r, err, "budgets")
		return
	}

	out := make([]budgetResponse, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, toBudgetResponse(b))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	budget, err := s.repo.GetBudget(r.Context(), id, userID)
	if err != nil {
		respondStorageError(w, r, err, "budget")
		return
	}

	NewJSONResponse().Body(toBudgetResponse(budget)).Write(w)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	var req budgetRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}

	budget, err := req.toBudget(userID)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	budget.ID = id
	if err := budget.Validate(); err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	if _, err := s.repo.GetCategory(r.Context(), budget.CategoryID, userID); err != nil {
		respondStorageError(w, r, err, "category")
		return
	}

	if err := s.repo.UpdateBudget(r.Context(), budget); err != nil {
		respondStorageError(w, r, err, "budget")
		return
	}

	s.statusCache.Delete(statusCacheKey(userID, id))
	NewJSONResponse().Body(toBudgetResponse(budget)).Write(w)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	if err := s.repo.DeleteBudget(r.Context(), id, userID); err != nil {
		respondStorageError(w, r, err, "budget")
		return
	}

	s.statusCache.Delete(statusCacheKey(userID, id))
	w.WriteHeader(http.StatusNoContent)
}

// handleBudgetStatus returns the budget with its computed usage. Statuses
// are cached briefly; transaction writes invalidate the cache.
func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	key := statusCacheKey(userID, id)
	if status, found := s.statusCache.Get(key); found {
		slog.DebugContext(r.Context(), "Budget status cache hit",
			"user_id", userID, "budget_id", id)
		NewJSONResponse().Body(toBudgetStatusResponse(status)).Write(w)
		return
	}

	status, err := s.budgetSvc.Status(r.Context(), userID, id)
	if err != nil {
		respondStorageError(w, r, err, "budget")
		return
	}

	s.statusCache.Set(key, status)
	NewJSONResponse().Body(toBudgetStatusResponse(status)).Write(w)
}
