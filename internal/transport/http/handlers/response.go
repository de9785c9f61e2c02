package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/vedran77/dmcore/pkg/apperr"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeValidation:
		return http.StatusBadRequest
	case apperr.CodeUnauthorized:
		return http.StatusForbidden
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeOperationFailed:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeAppError renders the caller-safe part of err. Causes only reach the log.
func writeAppError(w http.ResponseWriter, log *zap.Logger, op string, err error) {
	code := apperr.CodeOf(err)
	if code == apperr.CodeInfrastructure {
		log.Error(op, zap.Error(err))
	}
	writeError(w, statusFor(code), string(code), apperr.MessageOf(err))
}

func invalidID(w http.ResponseWriter, what string) {
	writeError(w, http.StatusBadRequest, string(apperr.CodeValidation), "Invalid "+what+" ID")
}

func invalidJSON(w http.ResponseWriter) {
	writeError(w, http.StatusBadRequest, string(apperr.CodeValidation), "Invalid request body")
}

func queryInt(r *http.Request, key string) (int, bool) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

func queryTime(r *http.Request, key string) (*time.Time, bool) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, false
	}
	t = t.UTC()
	return &t, true
}
