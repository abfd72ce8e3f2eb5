package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"budgetwatch/internal/auth"
	"budgetwatch/internal/core"
)

// respondStorageError maps storage errors to HTTP responses.
func respondStorageError(w http.ResponseWriter, r *http.Request, err error, what string) {
	if errors.Is(err, core.ErrNotFound) {
		NotFoundError(what + " not found").Write(w)
		return
	}
	slog.ErrorContext(r.Context(), "Storage operation failed",
		"component", "http",
		"path", r.URL.Path,
		"error", err)
	InternalServerError("internal error").Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}

	tx, err := req.toTransaction(userID)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	if err := tx.Validate(time.Now()); err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	created, err := s.repo.CreateTransaction(r.Context(), tx)
	if err != nil {
		respondStorageError(w, r, err, "transaction")
		return
	}

	s.invalidateBudgetStatuses(r, userID)
	NewJSONResponse().Status(http.StatusCreated).Body(toTransactionResponse(created)).Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	filter, err := ParseTransactionFilter(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	page, err := s.repo.ListTransactions(r.Context(), userID, filter)
	if err != nil {
		respondStorageError(w, r, err, "transactions")
		return
	}

	NewJSONResponse().Body(toTransactionPageResponse(page)).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	tx, err := s.repo.GetTransaction(r.Context(), id, userID)
	if err != nil {
		respondStorageError(w, r, err, "transaction")
		return
	}

	NewJSONResponse().Body(toTransactionResponse(tx)).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}

	tx, err := req.toTransaction(userID)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	tx.ID = id
	if err := tx.Validate(time.Now()); err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	if err := s.repo.UpdateTransaction(r.Context(), tx); err != nil {
		respondStorageError(w, r, err, "transaction")
		return
	}

	s.invalidateBudgetStatuses(r, userID)
	NewJSONResponse().Body(toTransactionResponse(tx)).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	if err := s.repo.DeleteTransaction(r.Context(), id, userID); err != nil {
		respondStorageError(w, r, err, "transaction")
		return
	}

	s.invalidateBudgetStatuses(r, userID)
	w.WriteHeader(http.StatusNoContent)
}

// invalidateBudgetStatuses drops cached statuses of every budget the user
// owns. Transaction writes shift spent totals, so the statuses are stale.
func (s *Server) invalidateBudgetStatuses(r *http.Request, userID int64) {
	budgets, err := s.repo.ListBudgets(r.Context(), userID)
	if err != nil {
		slog.WarnContext(r.Context(), "Failed to list budgets for cache invalidation",
			"user_id", userID, "error", err)
		return
	}
	for _, b := range budgets {
		s.statusCache.Delete(statusCacheKey(userID, b.ID))
	}
}

func statusCacheKey(userID, budgetID int64) string {
	return strconv.FormatInt(userID, 10) + ":" + strconv.FormatInt(budgetID, 10)
}
