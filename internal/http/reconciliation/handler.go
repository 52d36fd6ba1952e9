package reconciliation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/consignado/internal/reconciliation"
	"github.com/MrJamesThe3rd/consignado/internal/transaction"
)

type Handler struct {
	orchestrator *reconciliation.Orchestrator
}

func NewHandler(orchestrator *reconciliation.Orchestrator) *Handler {
	return &Handler{orchestrator: orchestrator}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/dispatch", h.dispatch)
	r.Get("/transactions", h.list)
	r.Get("/transactions/{id}/divergences", h.divergences)
	r.Post("/transactions/{id}/requeue", h.requeue)
	r.Get("/statistics", h.statistics)
}

type dispatchRequest struct {
	BankID   *string `json:"bank_id,omitempty"`
	DateFrom *string `json:"date_from,omitempty"`
	DateTo   *string `json:"date_to,omitempty"`
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest

	// An empty body dispatches everything pending.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	filter := reconciliation.DispatchFilter{BankID: req.BankID}

	var err error

	if filter.DateFrom, err = parseOptionalDate(req.DateFrom); err != nil {
		http.Error(w, "invalid date_from: "+err.Error(), http.StatusBadRequest)
		return
	}

	if filter.DateTo, err = parseOptionalDate(req.DateTo); err != nil {
		http.Error(w, "invalid date_to: "+err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.orchestrator.DispatchPending(r.Context(), filter)
	if err != nil {
		slog.Error("dispatch failed", "dispatched", res.DispatchedCount, "error", err)
		http.Error(w, fmt.Sprintf("dispatch failed after %d jobs: %v", res.DispatchedCount, err), http.StatusInternalServerError)

		return
	}

	writeJSON(w, http.StatusOK, dispatchResponse{DispatchedCount: res.DispatchedCount})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	page, err := h.orchestrator.QueryStatus(r.Context(), filter)
	if err != nil {
		if errors.Is(err, reconciliation.ErrInvalidStatus) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	writeJSON(w, http.StatusOK, toListResponse(page))
}

func (h *Handler) divergences(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	report, err := h.orchestrator.QueryDivergences(r.Context(), id)
	if err != nil {
		if errors.Is(err, transaction.ErrNotFound) {
			http.Error(w, "transaction not found", http.StatusNotFound)
			return
		}

		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	writeJSON(w, http.StatusOK, divergenceResponse{
		Transaction: toResponse(report.Transaction),
		Divergences: report.Divergences,
	})
}

func (h *Handler) requeue(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if err := h.orchestrator.Requeue(r.Context(), id); err != nil {
		if errors.Is(err, transaction.ErrNotFound) {
			http.Error(w, "transaction not found", http.StatusNotFound)
			return
		}

		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orchestrator.Statistics(r.Context())
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func parseListFilter(q url.Values) (transaction.ListFilter, error) {
	var (
		filter transaction.ListFilter
		err    error
	)

	if s := q.Get("status"); s != "" {
		filter.Status = new(transaction.Status(s))
	}

	if s := q.Get("bank_id"); s != "" {
		filter.BankID = new(s)
	}

	if filter.DateFrom, err = parseOptionalDate(queryValue(q, "date_from")); err != nil {
		return filter, fmt.Errorf("invalid date_from: %w", err)
	}

	if filter.DateTo, err = parseOptionalDate(queryValue(q, "date_to")); err != nil {
		return filter, fmt.Errorf("invalid date_to: %w", err)
	}

	if filter.Limit, err = nonNegative(q, "limit"); err != nil {
		return filter, err
	}

	if filter.Offset, err = nonNegative(q, "offset"); err != nil {
		return filter, err
	}

	return filter, nil
}

func queryValue(q url.Values, key string) *string {
	if s := q.Get(key); s != "" {
		return &s
	}

	return nil
}

func parseOptionalDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}

	t, err := time.Parse(time.DateOnly, *s)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

func nonNegative(q url.Values, key string) (int, error) {
	s := q.Get(key)
	if s == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}

	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
