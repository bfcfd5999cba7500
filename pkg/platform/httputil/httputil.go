// Package httputil holds the JSON envelope helpers shared by every handler.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "renewals/pkg/domain-errors"
)

// maxBodyBytes bounds request bodies. Renewal artifacts are base64 PDFs.
const maxBodyBytes = 16 << 20

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// Validatable is implemented by request DTOs that normalize and validate themselves.
type Validatable interface {
	Validate() error
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates err into the error envelope. Internal errors never
// expose their message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := ErrorResponse{Error: string(code)}
	if code != dErrors.CodeInternal {
		if de, ok := dErrors.As(err); ok {
			resp.Description = de.Message
		}
	}
	WriteJSON(w, dErrors.HTTPStatus(code), resp)
}

// DecodeAndPrepare decodes the JSON body into T, trims string fields and runs
// Validate. On failure it writes the error response and returns false.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body is required"))
			return nil, false
		}
		logger.WarnContext(ctx, "failed to decode request body",
			"error", err,
			"request_id", requestID,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return nil, false
	}

	Sanitize(&req)

	if err := PT(&req).Validate(); err != nil {
		logger.InfoContext(ctx, "request validation failed",
			"error", err,
			"request_id", requestID,
		)
		WriteError(w, err)
		return nil, false
	}
	return &req, true
}
