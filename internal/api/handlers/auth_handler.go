package handlers

import (
	"net/http"

	"github.com/learnhub/engine/internal/api/types"
	"github.com/learnhub/engine/internal/services"
)

type AuthHandler struct {
	auth services.AuthService
}

func NewAuthHandler(auth services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req types.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.auth.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "registered", map[string]any{
		"id":    u.ID,
		"email": u.Email,
		"name":  u.Name,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	token, u, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   int(services.TokenTTL.Seconds()),
		"user": map[string]any{
			"id":    u.ID,
			"email": u.Email,
			"name":  u.Name,
		},
	})
}
