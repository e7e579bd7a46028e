// Package respond writes the {ok, error} JSON envelope used by every endpoint.
package respond

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"adhoc-admin/backend/internal/platform/apperr"
)

// MaxBodyBytes bounds JSON request bodies.
const MaxBodyBytes = 1 << 20

// Envelope is the failure body. Error is omitted when the message must stay generic.
type Envelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// JSON serializes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes {ok:true} merged with fields.
func OK(w http.ResponseWriter, status int, fields map[string]any) {
	body := map[string]any{"ok": true}
	for k, v := range fields {
		body[k] = v
	}
	JSON(w, status, body)
}

// Fail writes {ok:false, error:msg}.
func Fail(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, Envelope{OK: false, Error: msg})
}

// Error maps err through the apperr taxonomy. Errors outside the taxonomy become a bare 500.
// Causes of 5xx responses are logged through the global zap logger, never written to the client.
func Error(w http.ResponseWriter, err error) {
	e, ok := apperr.As(err)
	if !ok {
		zap.L().Error("unhandled error", zap.Error(err))
		Fail(w, http.StatusInternalServerError, "Server error")
		return
	}
	status := apperr.Status(e.Kind)
	if status >= 500 && e.Err != nil {
		zap.L().Error("request failed", zap.Int("status", status), zap.String("message", e.Message), zap.Error(e.Err))
	}
	Fail(w, status, e.Message)
}

// Decode reads a JSON body into v. An empty or malformed body yields a non-nil error.
func Decode(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return err
	}
	return nil
}
