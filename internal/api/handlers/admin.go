package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Fantasim/nanas/internal/api/httputil"
	"github.com/Fantasim/nanas/internal/api/middleware"
	"github.com/Fantasim/nanas/internal/config"
	"github.com/Fantasim/nanas/internal/models"
	"github.com/Fantasim/nanas/internal/rewards"
	"github.com/Fantasim/nanas/internal/scoring"
	"github.com/Fantasim/nanas/internal/wallet"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// LoginHandler returns a handler for POST /api/admin/login.
func LoginHandler(sessions *middleware.SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			httputil.Error(w, http.StatusBadRequest, config.ErrorInvalidRequest, "invalid request body")
			return
		}
		if req.Username == "" || req.Password == "" {
			httputil.Error(w, http.StatusBadRequest, config.ErrorInvalidRequest, "username and password are required")
			return
		}

		token, err := sessions.Login(req.Username, req.Password)
		if err != nil {
			if errors.Is(err, config.ErrInvalidCredentials) {
				httputil.Error(w, http.StatusUnauthorized, config.ErrorInvalidCredentials, "invalid username or password")
				return
			}
			httputil.FromError(w, r, err)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     config.SessionCookieName,
			Value:    token,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
			MaxAge:   int(config.SessionTimeout.Seconds()),
		})

		slog.Info("admin login via API", "remoteAddr", r.RemoteAddr)
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "logged_in"})
	}
}

// LogoutHandler returns a handler for POST /api/admin/logout.
func LogoutHandler(sessions *middleware.SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(config.SessionCookieName); err == nil {
			sessions.Logout(cookie.Value)
		}

		http.SetCookie(w, &http.Cookie{
			Name:     config.SessionCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})

		httputil.JSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
	}
}

// SettleCashOutHandler returns a handler for
// POST /api/admin/cashouts/{account}/{id}/{action}, action being approve,
// reject or complete.
func SettleCashOutHandler(wallets *wallet.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, ok := accountLedger(w, r, wallets)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		action := chi.URLParam(r, "action")

		var (
			req models.CashOutRequest
			err error
		)
		switch action {
		case "approve":
			req, err = l.ApproveCashOutRequest(r.Context(), id)
		case "reject":
			var body rejectRequest
			if r.ContentLength != 0 {
				if err := decodeJSON(w, r, &body); err != nil {
					httputil.FromError(w, r, err)
					return
				}
			}
			req, err = l.RejectCashOutRequest(r.Context(), id, body.Reason)
		case "complete":
			req, err = l.CompleteCashOutRequest(r.Context(), id)
		default:
			httputil.Error(w, http.StatusNotFound, config.ErrorNotFound, "unknown cash-out action "+action)
			return
		}
		if err != nil {
			httputil.FromError(w, r, err)
			return
		}

		slog.Info("cash-out settled by admin",
			"admin", middleware.AdminFromContext(r.Context()),
			"accountID", l.AccountID(),
			"requestID", id,
			"action", action,
			"status", req.Status,
		)
		httputil.JSON(w, http.StatusOK, req)
	}
}

// GetPolicyHandler returns a handler for GET /api/admin/policy.
func GetPolicyHandler(engine *scoring.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, engine.Policy())
	}
}

// UpdatePolicyHandler returns a handler for PUT /api/admin/policy. The new
// policy is validated, applied to the engine, then written to policyFile
// when one is configured.
func UpdatePolicyHandler(engine *scoring.Engine, policyFile string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p scoring.Policy
		if err := decodeJSON(w, r, &p); err != nil {
			httputil.FromError(w, r, err)
			return
		}

		if err := engine.Reload(p); err != nil {
			httputil.FromError(w, r, err)
			return
		}

		if policyFile != "" {
			if err := scoring.SavePolicy(policyFile, p); err != nil {
				slog.Error("policy applied but not persisted", "path", policyFile, "error", err)
				httputil.FromError(w, r, err)
				return
			}
		}

		slog.Info("policy updated via API",
			"admin", middleware.AdminFromContext(r.Context()),
			"remoteAddr", r.RemoteAddr,
		)
		httputil.JSON(w, http.StatusOK, engine.Policy())
	}
}

// DeleteAccountHandler returns a handler for DELETE /api/admin/accounts/{account}.
func DeleteAccountHandler(svc *rewards.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account := chi.URLParam(r, "account")
		if err := svc.DeleteAccount(r.Context(), account); err != nil {
			httputil.FromError(w, r, err)
			return
		}
		slog.Info("account deleted by admin",
			"admin", middleware.AdminFromContext(r.Context()),
			"accountID", account,
		)
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "deleted", "account": account})
	}
}
