package api

import (
	"net/http"

	"skillmap/api/middleware"
	"skillmap/api/services"
	"skillmap/pkg/ontology"
)

// Profile handlers
func (h *Handlers) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var req ontology.CreateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		sendServiceError(w, r, err)
		return
	}
	p, err := h.svc.Profiles.CreateProfile(r.Context(), middleware.ViewerFromContext(r.Context()), &req)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendSuccess(w, http.StatusCreated, p)
}

func (h *Handlers) ListProfiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	profiles, err := h.svc.Profiles.ListProfiles(r.Context(), middleware.ViewerFromContext(r.Context()), services.ProfileListOptions{
		Status:         ontology.ProfileStatus(q.Get("status")),
		OrganizationID: q.Get("organization_id"),
	})
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendSuccess(w, http.StatusOK, profiles)
}

func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Profiles.GetProfile(r.Context(), middleware.ViewerFromContext(r.Context()), r.URL.Query().Get("profile_id"))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendSuccess(w, http.StatusOK, view)
}

func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	profileID, err := requiredParam(r, "profile_id")
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	var req ontology.UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		sendServiceError(w, r, err)
		return
	}
	p, err := h.svc.Profiles.UpdateProfile(r.Context(), middleware.ViewerFromContext(r.Context()), profileID, &req)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendSuccess(w, http.StatusOK, p)
}

func (h *Handlers) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	profileID, err := requiredParam(r, "profile_id")
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	if err := h.svc.Profiles.DeleteProfile(r.Context(), middleware.ViewerFromContext(r.Context()), profileID); err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendSuccess(w, http.StatusOK, map[string]string{"message": "Profile deleted successfully"})
}

func (h *Handlers) SetProfileTags(w http.ResponseWriter, r *http.Request) {
	profileID, err := requiredParam(r, "profile_id")
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	var req ontology.SetProfileTagsRequest
	if err := decodeJSON(r, &req); err != nil {
		sendServiceError(w, r, err)
		return
	}
	p, err := h.svc.Profiles.SetProfileTags(r.Context(), middleware.ViewerFromContext(r.Context()), profileID, req.TagIDs)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendSuccess(w, http.StatusOK, p)
}

// Experience handlers
func (h *Handlers) ListExperiences(w http.ResponseWriter, r *http.Request) {
	profileID, err := requiredParam(r, "profile_id")
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	experiences, err := h.svc.Experiences.ListExperiences(r.Context(), middleware.ViewerFromContext(r.Context()), profileID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendSuccess(w, http.StatusOK, experiences)
}

func (h *Handlers) CreateExperience(w http.ResponseWriter, r *http.Request) {
	var req ontology.CreateExperienceRequest
	if err := decodeJSON(r, &req); err != nil {
		sendServiceError(w, r, err)
		return
	}
	e, err := h.svc.Experiences.CreateExperience(r.Context(), middleware.ViewerFromContext(r.Context()), &req)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendSuccess(w, http.StatusCreated, e)
}

func (h *Handlers) UpdateExperience(w http.ResponseWriter, r *http.Request) {
	experienceID, err := requiredParam(r, "experience_id")
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	var req ontology.UpdateExperienceRequest
	if err := decodeJSON(r, &req); err != nil {
		sendServiceError(w, r, err)
		return
	}
	e, err := h.svc.Experiences.UpdateExperience(r.Context(), middleware.ViewerFromContext(r.Context()), experienceID, &req)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendSuccess(w, http.StatusOK, e)
}

func (h *Handlers) DeleteExperience(w http.ResponseWriter, r *http.Request) {
	experienceID, err := requiredParam(r, "experience_id")
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	if err := h.svc.Experiences.DeleteExperience(r.Context(), middleware.ViewerFromContext(r.Context()), experienceID); err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendSuccess(w, http.StatusOK, map[string]string{"message": "Experience deleted successfully"})
}
