package proxy

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/raaihank/chatpsy/internal/analysis"
	"github.com/raaihank/chatpsy/internal/ingest"
	"github.com/raaihank/chatpsy/internal/store"
)

var errHistoryDisabled = errors.New("analysis history is disabled")

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// badRequest marks client mistakes that need no further mapping.
type badRequest struct {
	msg string
}

func (e *badRequest) Error() string { return e.msg }

// upstreamError marks a failed call to the analysis service.
type upstreamError struct {
	err error
}

func (e *upstreamError) Error() string { return e.err.Error() }
func (e *upstreamError) Unwrap() error { return e.err }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors onto HTTP responses.
func statusFor(err error) (int, errorResponse) {
	var (
		bad       *badRequest
		rateLimit *analysis.RateLimitError
		upstream  *analysis.StatusError
		tooBig    *http.MaxBytesError
		failed    *upstreamError
	)

	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest, errorResponse{Error: "bad_request", Detail: bad.msg}
	case errors.Is(err, ingest.ErrNoSupportedFiles), errors.Is(err, ingest.ErrInvalidArchive):
		return http.StatusBadRequest, errorResponse{Error: "unsupported_upload", Detail: err.Error()}
	case errors.Is(err, analysis.ErrInvalidRequest):
		return http.StatusBadRequest, errorResponse{Error: "invalid_request", Detail: err.Error()}
	case errors.Is(err, ingest.ErrUploadTooLarge), errors.Is(err, ingest.ErrArchiveTooLarge), errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge, errorResponse{Error: "upload_too_large", Detail: err.Error()}
	case errors.Is(err, analysis.ErrTimeout):
		return http.StatusGatewayTimeout, errorResponse{Error: "analysis_timeout", Detail: err.Error()}
	case errors.As(err, &rateLimit):
		return http.StatusTooManyRequests, errorResponse{Error: "rate_limited", Detail: rateLimit.Detail}
	case errors.As(err, &upstream):
		return http.StatusBadGateway, errorResponse{Error: "analysis_failed", Detail: upstream.Error()}
	case errors.Is(err, store.ErrNotFound), errors.Is(err, errHistoryDisabled):
		return http.StatusNotFound, errorResponse{Error: "not_found", Detail: err.Error()}
	case errors.As(err, &failed):
		return http.StatusBadGateway, errorResponse{Error: "analysis_unavailable", Detail: "analysis service is unreachable"}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal_error", Detail: "internal server error"}
	}
}
