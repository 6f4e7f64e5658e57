package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Fantasim/nanas/internal/api/httputil"
	"github.com/Fantasim/nanas/internal/config"
	"github.com/Fantasim/nanas/internal/rewards"
)

// AnalyzeHandler returns a handler for POST /api/analyze.
func AnalyzeHandler(svc *rewards.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req rewards.AnalyzeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			httputil.FromError(w, r, err)
			return
		}

		slog.Info("analyze requested",
			"accountID", req.AccountID,
			"url", req.URL,
			"remoteAddr", r.RemoteAddr,
		)

		res, err := svc.Analyze(r.Context(), req)
		if err != nil {
			httputil.FromError(w, r, err)
			return
		}

		httputil.JSON(w, http.StatusCreated, res)
	}
}

// ListLedgerEntriesHandler returns a handler for GET /api/accounts/{account}/ledger.
func ListLedgerEntriesHandler(svc *rewards.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r, "limit", config.DefaultHistoryLimit)
		if err != nil {
			httputil.FromError(w, r, err)
			return
		}

		entries, err := svc.ListLedgerEntries(r.Context(), chi.URLParam(r, "account"), limit)
		if err != nil {
			httputil.FromError(w, r, err)
			return
		}
		httputil.JSON(w, http.StatusOK, entries)
	}
}

// GetLedgerEntryHandler returns a handler for GET /api/accounts/{account}/ledger/{id}.
func GetLedgerEntryHandler(svc *rewards.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := svc.GetLedgerEntry(r.Context(), chi.URLParam(r, "account"), chi.URLParam(r, "id"))
		if err != nil {
			httputil.FromError(w, r, err)
			return
		}
		httputil.JSON(w, http.StatusOK, entry)
	}
}
