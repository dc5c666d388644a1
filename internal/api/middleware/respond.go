package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/learnhub/engine/internal/api/types"
)

func deny(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.APIResponse{
		Success: false,
		Message: msg,
		Error:   &types.APIError{Code: code, Message: msg},
	})
}
