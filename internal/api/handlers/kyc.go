package handlers

import (
	"net/http"

	"github.com/Fantasim/nanas/internal/api/httputil"
	"github.com/Fantasim/nanas/internal/wallet"
)

type kycRequest struct {
	Documents []string `json:"documents"`
}

// GetKYCHandler returns a handler for GET /api/accounts/{account}/kyc.
func GetKYCHandler(wallets *wallet.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, ok := accountLedger(w, r, wallets)
		if !ok {
			return
		}
		kyc, err := l.GetKYCStatus(r.Context())
		if err != nil {
			httputil.FromError(w, r, err)
			return
		}
		httputil.JSON(w, http.StatusOK, kyc)
	}
}

// SubmitKYCHandler returns a handler for POST /api/accounts/{account}/kyc.
// The response carries the basic-level status; full verification arrives
// later from the review scheduler.
func SubmitKYCHandler(wallets *wallet.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, ok := accountLedger(w, r, wallets)
		if !ok {
			return
		}

		var body kycRequest
		if err := decodeJSON(w, r, &body); err != nil {
			httputil.FromError(w, r, err)
			return
		}

		kyc, err := l.SubmitKYCDocuments(r.Context(), body.Documents)
		if err != nil {
			httputil.FromError(w, r, err)
			return
		}
		httputil.JSON(w, http.StatusAccepted, kyc)
	}
}
