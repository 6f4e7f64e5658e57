package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Fantasim/nanas/internal/api/httputil"
	"github.com/Fantasim/nanas/internal/config"
	"github.com/Fantasim/nanas/internal/wallet"
)

const maxBodyBytes = 1 << 20

// queryInt reads an integer query parameter, returning def when absent.
func queryInt(r *http.Request, key string, def int) (int, error) {
	val := r.URL.Query().Get(key)
	if val == "" {
		return def, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", config.ErrInvalidArgument, key, val)
	}
	return n, nil
}

// decodeJSON decodes a bounded request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", config.ErrInvalidArgument, err)
	}
	return nil
}

// accountLedger resolves the {account} path segment. On failure the error
// response is already written.
func accountLedger(w http.ResponseWriter, r *http.Request, wallets *wallet.Manager) (*wallet.Ledger, bool) {
	l, err := wallets.Ledger(chi.URLParam(r, "account"))
	if err != nil {
		httputil.FromError(w, r, err)
		return nil, false
	}
	return l, true
}
