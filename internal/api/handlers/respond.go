package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/learnhub/engine/internal/api/middleware"
	"github.com/learnhub/engine/internal/api/types"
	"github.com/learnhub/engine/internal/api/validators"
	appErr "github.com/learnhub/engine/pkg/errors"
	"github.com/learnhub/engine/pkg/logger"
	"go.uber.org/zap"
)

const maxBodyBytes = 8 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, msg string, data any) {
	writeJSON(w, status, types.APIResponse{Success: true, Message: msg, Data: data})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := types.StatusOf(err)
	apiErr := types.FromAppError(err)
	if status >= http.StatusInternalServerError {
		logger.L().Error("request failed",
			zap.String("id", middleware.GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, types.APIResponse{
		Success: false,
		Message: apiErr.Message,
		Error:   apiErr,
		Meta:    &types.Meta{RequestID: middleware.GetRequestID(r.Context())},
	})
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	writeJSON(w, http.StatusBadRequest, types.APIResponse{
		Success: false,
		Message: msg,
		Error:   &types.APIError{Code: "bad_request", Message: msg},
		Meta:    &types.Meta{RequestID: middleware.GetRequestID(r.Context())},
	})
}

// decode reads a JSON body into dst and validates it. It writes the error
// response itself and reports whether the handler should continue.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			writeBadRequest(w, r, "request body is empty")
		case errors.As(err, &maxErr):
			writeBadRequest(w, r, "request body too large")
		default:
			writeBadRequest(w, r, "invalid json")
		}
		return false
	}
	if err := validators.Struct(dst); err != nil {
		writeError(w, r, err)
		return false
	}
	return true
}

// queryBool parses an optional boolean query parameter.
func queryBool(r *http.Request, key string) (*bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, appErr.Newf(appErr.CodeInvalid, "%s must be a boolean", key).WithMeta("field", key)
	}
	return &b, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, appErr.Newf(appErr.CodeInvalid, "%s must be a non-negative integer", key).WithMeta("field", key)
	}
	return n, nil
}
