package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Fantasim/nanas/internal/config"
)

type envelope struct {
	Data  any        `json:"data,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func write(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "status", status, "error", err)
	}
}

// JSON writes data in the {"data": ...} envelope.
func JSON(w http.ResponseWriter, status int, data any) {
	if data == nil {
		data = struct{}{}
	}
	write(w, status, envelope{Data: data})
}

// Error writes the {"error": {"code", "message"}} envelope.
func Error(w http.ResponseWriter, status int, code, message string) {
	write(w, status, envelope{Error: &errorBody{Code: code, Message: message}})
}

// FromError maps a domain error to its status and ERROR_* code. Errors that
// match no sentinel are logged and reported as a generic internal error
// carrying the request id for correlation with the log.
func FromError(w http.ResponseWriter, r *http.Request, err error) {
	code := config.ErrorCode(err)
	status := config.HTTPStatus(err)
	reqID := chimw.GetReqID(r.Context())

	if code == config.ErrorInternal {
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"requestID", reqID,
			"error", err,
		)
		write(w, status, envelope{Error: &errorBody{Code: code, Message: "internal error", RequestID: reqID}})
		return
	}

	slog.Debug("request rejected",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"error", err,
	)
	Error(w, status, code, err.Error())
}
