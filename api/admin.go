package api

import (
	"net/http"

	"skillmap/api/middleware"
	"skillmap/api/services"
	"skillmap/pkg/ontology"
)

// Auth handlers
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req ontology.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		sendServiceError(w, r, err)
		return
	}
	res, err := h.svc.Auth.Login(r.Context(), &req)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendSuccess(w, http.StatusOK, res)
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Auth.Me(r.Context(), middleware.ViewerFromContext(r.Context()))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendSuccess(w, http.StatusOK, user)
}

// Organization handlers
func (h *Handlers) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req ontology.CreateOrganizationRequest
	if err := decodeJSON(r, &req); err != nil {
		sendServiceError(w, r, err)
		return
	}

	org, err := h.svc.Organizations.CreateOrganization(r.Context(), middleware.ViewerFromContext(r.Context()), &req)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	sendSuccess(w, http.StatusCreated, org)
}

func (h *Handlers) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.svc.Organizations.ListOrganizations(r.Context(), middleware.ViewerFromContext(r.Context()))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	sendSuccess(w, http.StatusOK, orgs)
}

func (h *Handlers) GetOrganization(w http.ResponseWriter, r *http.Request) {
	org, err := h.svc.Organizations.GetOrganization(r.Context(), middleware.ViewerFromContext(r.Context()), r.URL.Query().Get("org_id"))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	sendSuccess(w, http.StatusOK, org)
}

func (h *Handlers) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	orgID, err := requiredParam(r, "org_id")
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	var req ontology.UpdateOrganizationRequest
	if err := decodeJSON(r, &req); err != nil {
		sendServiceError(w, r, err)
		return
	}

	org, err := h.svc.Organizations.UpdateOrganization(r.Context(), middleware.ViewerFromContext(r.Context()), orgID, &req)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	sendSuccess(w, http.StatusOK, org)
}

func (h *Handlers) DeleteOrganization(w http.ResponseWriter, r *http.Request) {
	orgID, err := requiredParam(r, "org_id")
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	if err := h.svc.Organizations.DeleteOrganization(r.Context(), middleware.ViewerFromContext(r.Context()), orgID); err != nil {
		sendServiceError(w, r, err)
		return
	}

	sendSuccess(w, http.StatusOK, map[string]string{"message": "Organization deleted successfully"})
}

// User handlers
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req ontology.CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		sendServiceError(w, r, err)
		return
	}
	user, err := h.svc.Users.CreateUser(r.Context(), middleware.ViewerFromContext(r.Context()), &req)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendSuccess(w, http.StatusCreated, user)
}

func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.Users.ListUsers(r.Context(), middleware.ViewerFromContext(r.Context()), r.URL.Query().Get("organization_id"))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendSuccess(w, http.StatusOK, users)
}

func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Users.GetUser(r.Context(), middleware.ViewerFromContext(r.Context()), r.URL.Query().Get("user_id"))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendSuccess(w, http.StatusOK, user)
}

func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := requiredParam(r, "user_id")
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	if err := h.svc.Users.DeleteUser(r.Context(), middleware.ViewerFromContext(r.Context()), userID); err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendSuccess(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
}

// Tag handlers. Listing is public so the catalog can offer filter choices.
func (h *Handlers) ListTags(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tags, err := h.svc.Tags.ListTags(r.Context(), services.TagListOptions{
		Category:        ontology.TagCategory(q.Get("category")),
		IncludeInactive: q.Get("include_inactive") == "true",
	})
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendSuccess(w, http.StatusOK, tags)
}

func (h *Handlers) GetTag(w http.ResponseWriter, r *http.Request) {
	tag, err := h.svc.Tags.GetTag(r.Context(), r.URL.Query().Get("tag_id"))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendSuccess(w, http.StatusOK, tag)
}

func (h *Handlers) CreateTag(w http.ResponseWriter, r *http.Request) {
	var req ontology.CreateTagRequest
	if err := decodeJSON(r, &req); err != nil {
		sendServiceError(w, r, err)
		return
	}
	tag, err := h.svc.Tags.CreateTag(r.Context(), middleware.ViewerFromContext(r.Context()), &req)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendSuccess(w, http.StatusCreated, tag)
}

func (h *Handlers) UpdateTag(w http.ResponseWriter, r *http.Request) {
	tagID, err := requiredParam(r, "tag_id")
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	var req ontology.UpdateTagRequest
	if err := decodeJSON(r, &req); err != nil {
		sendServiceError(w, r, err)
		return
	}
	tag, err := h.svc.Tags.UpdateTag(r.Context(), middleware.ViewerFromContext(r.Context()), tagID, &req)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendSuccess(w, http.StatusOK, tag)
}

func (h *Handlers) DeleteTag(w http.ResponseWriter, r *http.Request) {
	tagID, err := requiredParam(r, "tag_id")
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	if err := h.svc.Tags.DeleteTag(r.Context(), middleware.ViewerFromContext(r.Context()), tagID); err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendSuccess(w, http.StatusOK, map[string]string{"message": "Tag deleted successfully"})
}

func (h *Handlers) DashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Dashboard.Stats(r.Context(), middleware.ViewerFromContext(r.Context()))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendSuccess(w, http.StatusOK, stats)
}

func (h *Handlers) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r.URL.Query(), "limit")
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	logs, err := h.svc.Audit.ListAuditLogs(r.Context(), middleware.ViewerFromContext(r.Context()), limit)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendSuccess(w, http.StatusOK, logs)
}
