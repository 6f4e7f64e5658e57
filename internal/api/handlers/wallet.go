package handlers

import (
	"net/http"

	"github.com/Fantasim/nanas/internal/api/httputil"
	"github.com/Fantasim/nanas/internal/config"
	"github.com/Fantasim/nanas/internal/wallet"
)

// GetBalanceHandler returns a handler for GET /api/accounts/{account}/balance.
func GetBalanceHandler(wallets *wallet.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, ok := accountLedger(w, r, wallets)
		if !ok {
			return
		}
		bal, err := l.GetBalance(r.Context())
		if err != nil {
			httputil.FromError(w, r, err)
			return
		}
		httputil.JSON(w, http.StatusOK, bal)
	}
}

// ListTransactionsHandler returns a handler for GET /api/accounts/{account}/transactions.
func ListTransactionsHandler(wallets *wallet.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, ok := accountLedger(w, r, wallets)
		if !ok {
			return
		}
		limit, err := queryInt(r, "limit", config.DefaultHistoryLimit)
		if err != nil {
			httputil.FromError(w, r, err)
			return
		}
		txns, err := l.GetTransactionHistory(r.Context(), limit)
		if err != nil {
			httputil.FromError(w, r, err)
			return
		}
		httputil.JSON(w, http.StatusOK, txns)
	}
}

// BalanceHistoryHandler returns a handler for GET /api/accounts/{account}/balance-history.
func BalanceHistoryHandler(wallets *wallet.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, ok := accountLedger(w, r, wallets)
		if !ok {
			return
		}
		days, err := queryInt(r, "days", config.DefaultBalanceHistDays)
		if err != nil {
			httputil.FromError(w, r, err)
			return
		}
		points, err := l.GetBalanceHistory(r.Context(), days)
		if err != nil {
			httputil.FromError(w, r, err)
			return
		}
		httputil.JSON(w, http.StatusOK, points)
	}
}

// AnalyticsHandler returns a handler for GET /api/accounts/{account}/analytics.
func AnalyticsHandler(wallets *wallet.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, ok := accountLedger(w, r, wallets)
		if !ok {
			return
		}
		a, err := l.GetEarningsAnalytics(r.Context())
		if err != nil {
			httputil.FromError(w, r, err)
			return
		}
		httputil.JSON(w, http.StatusOK, a)
	}
}
