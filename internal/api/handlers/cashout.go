package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/Fantasim/nanas/internal/api/httputil"
	"github.com/Fantasim/nanas/internal/config"
	"github.com/Fantasim/nanas/internal/metrics"
	"github.com/Fantasim/nanas/internal/models"
	"github.com/Fantasim/nanas/internal/wallet"
)

type cashOutRequest struct {
	Amount         decimal.Decimal       `json:"amount"`
	PaymentMethod  models.PaymentMethod  `json:"payment_method"`
	PaymentDetails models.PaymentDetails `json:"payment_details"`
}

// ListCashOutsHandler returns a handler for GET /api/accounts/{account}/cashouts.
func ListCashOutsHandler(wallets *wallet.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, ok := accountLedger(w, r, wallets)
		if !ok {
			return
		}
		reqs, err := l.GetCashOutRequests(r.Context())
		if err != nil {
			httputil.FromError(w, r, err)
			return
		}
		httputil.JSON(w, http.StatusOK, reqs)
	}
}

// CreateCashOutHandler returns a handler for POST /api/accounts/{account}/cashouts.
func CreateCashOutHandler(wallets *wallet.Manager, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, ok := accountLedger(w, r, wallets)
		if !ok {
			return
		}

		var body cashOutRequest
		if err := decodeJSON(w, r, &body); err != nil {
			httputil.FromError(w, r, err)
			return
		}

		req, err := l.RequestCashOut(r.Context(), body.Amount, body.PaymentMethod, body.PaymentDetails)
		if err != nil {
			m.ObserveCashOut(cashOutResult(err))
			httputil.FromError(w, r, err)
			return
		}
		m.ObserveCashOut(metrics.ResultSuccess)

		slog.Info("cash-out requested via API",
			"accountID", l.AccountID(),
			"requestID", req.ID,
			"amount", req.Amount.String(),
		)
		httputil.JSON(w, http.StatusCreated, req)
	}
}

func cashOutResult(err error) string {
	switch {
	case errors.Is(err, config.ErrInvalidArgument),
		errors.Is(err, config.ErrInsufficientFunds),
		errors.Is(err, config.ErrKYCRequired):
		return metrics.ResultRejected
	default:
		return metrics.ResultFailed
	}
}

// CashOutEligibilityHandler returns a handler for
// GET /api/accounts/{account}/cashouts/eligibility?amount=.
func CashOutEligibilityHandler(wallets *wallet.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, ok := accountLedger(w, r, wallets)
		if !ok {
			return
		}

		raw := r.URL.Query().Get("amount")
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			httputil.FromError(w, r, fmt.Errorf("%w: amount must be a decimal, got %q", config.ErrInvalidArgument, raw))
			return
		}

		e, err := l.GetCashOutEligibility(r.Context(), amount)
		if err != nil {
			httputil.FromError(w, r, err)
			return
		}
		httputil.JSON(w, http.StatusOK, e)
	}
}
