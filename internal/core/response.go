package core

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"vigil/internal/types"
)

// maxBodyBytes caps control API request bodies. The largest body the API
// accepts is a full preferences patch, well under a kilobyte.
const maxBodyBytes = 16 << 10

// APIResponse wraps successful payloads.
type APIResponse struct {
	Data any `json:"data,omitempty"`
}

// APIErrorResponse wraps error payloads.
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the error body returned to clients.
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

// publicError replaces the status and message of engine-side failures whose
// own messages name stores, handles or backends.
type publicError struct {
	status  int
	message string
}

var engineErrors = map[types.ErrorCode]publicError{
	types.ErrCodeConflictEngineStopped: {http.StatusConflict, "the reconciliation engine is stopped"},
	types.ErrCodePersistenceFailure:    {http.StatusServiceUnavailable, "the device store is unavailable; nothing was changed"},
	types.ErrCodeSchedulingRejected:    {http.StatusBadGateway, "the notification backend rejected the request"},
	types.ErrCodeSourceFetchFailure:    {http.StatusBadGateway, "an event source could not be reached"},
	types.ErrCodeInternalUnexpected:    {http.StatusInternalServerError, "an unexpected error occurred"},
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(APIErrorResponse{Error: ErrorDetail{
			Code:      string(types.ErrCodeInternalUnexpected),
			Message:   "response could not be encoded",
			RequestID: types.GetRequestID(r.Context()),
		}})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes err as an APIErrorResponse. Validation and not-found errors
// keep their message and details. Engine-side failures get a fixed public
// message, and errors without a code are reported as internal.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	detail := ErrorDetail{
		Code:      string(types.CodeOf(err)),
		RequestID: types.GetRequestID(r.Context()),
	}
	code := types.ErrorCode(detail.Code)

	status := code.HTTPStatus()
	if pub, ok := engineErrors[code]; ok {
		status, detail.Message = pub.status, pub.message
	} else {
		var appErr *types.AppError
		errors.As(err, &appErr)
		detail.Message = appErr.Message
		detail.Details = appErr.Details
	}
	JSON(w, r, status, APIErrorResponse{Error: detail})
}

// DecodeJSON decodes a single JSON object from the request body into dst.
// Unknown fields, wrong types, empty and oversized bodies are rejected with
// validation_invalid_json.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return invalidBody(err)
	}
	if dec.More() {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "request body must hold one JSON object", nil)
	}
	return nil
}

func invalidBody(err error) error {
	var (
		tooLarge *http.MaxBytesError
		mismatch *json.UnmarshalTypeError
	)
	switch {
	case errors.Is(err, io.EOF):
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "request body is empty", err)
	case errors.As(err, &tooLarge):
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "request body is too large", err)
	case errors.As(err, &mismatch):
		return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidJSON,
			"field "+mismatch.Field+" must be a "+mismatch.Type.String(), err,
			map[string]any{"field": mismatch.Field})
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidJSON,
			"unknown field "+field, err, map[string]any{"field": field})
	default:
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "request body is not valid JSON", err)
	}
}
