// Package httpx holds the JSON response envelope and request decoding helpers
// used by every handler.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/RaviShinde19/StackIt/internal/apperr"
)

// Envelope is the body of every API response.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// JSON writes data inside a success envelope.
func JSON(w http.ResponseWriter, status int, data any, message string) {
	write(w, status, Envelope{StatusCode: status, Data: data, Message: message, Success: status < 400})
}

// Error renders err as an error envelope. Internal errors are logged and
// their cause is not exposed.
func Error(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.Internal(err)
	}
	status := ae.Status()
	if status >= http.StatusInternalServerError && log != nil {
		log.Error("request failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	}
	write(w, status, Envelope{StatusCode: status, Data: nil, Message: ae.Message, Success: false})
}

// MaxBodySize caps JSON request bodies read by Decode.
const MaxBodySize = 1 << 20

// Decode reads a JSON request body of at most MaxBodySize bytes into v.
func Decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Wrap(err, apperr.KindValidation, "request body is too large")
		}
		return apperr.Wrap(err, apperr.KindValidation, "invalid request body")
	}
	return nil
}

// IntQuery parses a positive integer query parameter, falling back to def.
func IntQuery(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
