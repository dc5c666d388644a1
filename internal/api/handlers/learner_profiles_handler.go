package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/learnhub/engine/internal/api/types"
	"github.com/learnhub/engine/internal/services"
)

type LearnerProfilesHandler struct {
	profiles services.LearnerProfileService
}

func NewLearnerProfilesHandler(profiles services.LearnerProfileService) *LearnerProfilesHandler {
	return &LearnerProfilesHandler{profiles: profiles}
}

func (h *LearnerProfilesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req types.LearnerProfileCreateRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.profiles.CreateProfile(r.Context(), &services.LearnerProfileInput{
		LearnerID:    req.LearnerID,
		Achievements: req.Achievements,
		Progress:     req.Progress,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "created", p)
}

func (h *LearnerProfilesHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.GetProfile(r.Context(), chi.URLParam(r, "learner_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", p)
}

func (h *LearnerProfilesHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req types.LearnerProfileUpdateRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.profiles.UpdateProfile(r.Context(), chi.URLParam(r, "learner_id"), &services.LearnerProfileInput{
		Achievements: req.Achievements,
		Progress:     req.Progress,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "updated", p)
}
