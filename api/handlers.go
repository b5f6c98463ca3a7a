package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"skillmap/api/middleware"
	"skillmap/api/services"
	"skillmap/pkg/logger"
	"skillmap/pkg/metrics"
	"skillmap/pkg/shared"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

type Handlers struct {
	svc     *services.Services
	auth    *middleware.Auth
	metrics *metrics.Metrics
	checks  map[string]HealthCheck
	version string
	started time.Time
}

func NewHandlers(svc *services.Services, m *metrics.Metrics, version string, checks map[string]HealthCheck) *Handlers {
	if checks == nil {
		checks = map[string]HealthCheck{}
	}
	return &Handlers{
		svc:     svc,
		auth:    middleware.NewAuth(svc.Auth),
		metrics: m,
		checks:  checks,
		version: version,
		started: time.Now(),
	}
}

// Health check
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := shared.HealthStatus{
		Status:    "healthy",
		Service:   shared.ServiceName,
		Version:   h.version,
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Details:   make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			health.Status = "unhealthy"
			health.Details[name] = "unhealthy: " + err.Error()
		} else {
			health.Details[name] = "healthy"
		}
	}

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	sendSuccess(w, statusCode, health)
}

// Helper functions
func sendSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := shared.Response{
		Success: true,
		Data:    data,
	}

	json.NewEncoder(w).Encode(response)
}

func sendError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := shared.Response{
		Success: false,
		Error: &shared.Error{
			Code:    code,
			Message: message,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// sendServiceError maps a service error onto the response envelope. Unexpected errors are
// logged and reported without detail.
func sendServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		sendError(w, http.StatusNotFound, shared.CodeNotFound, err.Error())
	case errors.Is(err, shared.ErrForbidden):
		sendError(w, http.StatusForbidden, shared.CodeForbidden, err.Error())
	case errors.Is(err, shared.ErrUnauthorized):
		sendError(w, http.StatusUnauthorized, shared.CodeUnauthorized, err.Error())
	case errors.Is(err, shared.ErrInvalidArgument):
		sendError(w, http.StatusBadRequest, shared.CodeInvalid, err.Error())
	case errors.Is(err, shared.ErrConflict), errors.Is(err, shared.ErrInvalidTransition):
		sendError(w, http.StatusConflict, shared.CodeConflict, err.Error())
	default:
		logger.FromContext(r.Context()).Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		sendError(w, http.StatusInternalServerError, shared.CodeInternal, "Internal server error")
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	sendError(w, http.StatusMethodNotAllowed, shared.CodeMethod, "Method not allowed")
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", shared.ErrInvalidArgument, err)
	}
	return nil
}

// requiredParam reads a mandatory query parameter.
func requiredParam(r *http.Request, name string) (string, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", shared.ErrInvalidArgument, name)
	}
	return v, nil
}

// RegisterRoutes sets up all API routes
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	// Health check and metrics (no auth required)
	mux.HandleFunc("/health", h.HealthCheck)
	if h.metrics != nil {
		mux.Handle("/metrics", h.metrics.Handler())
	}

	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h.Login(w, r)
	})
	mux.HandleFunc("/api/v1/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.auth.BearerAuth(h.Me)(w, r)
	})

	// Public catalog; a valid token unmasks what the viewer may see
	mux.HandleFunc("/api/v1/catalog", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodPost:
			h.auth.OptionalAuth(h.SearchCatalog)(w, r)
		default:
			methodNotAllowed(w)
		}
	})
	mux.HandleFunc("/api/v1/catalog/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.auth.OptionalAuth(h.GetCatalogProfile)(w, r)
	})

	mux.HandleFunc("/api/v1/organizations", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			h.auth.BearerAuth(h.CreateOrganization)(w, r)
		case http.MethodGet:
			if r.URL.Query().Get("org_id") != "" {
				h.auth.BearerAuth(h.GetOrganization)(w, r)
			} else {
				h.auth.BearerAuth(h.ListOrganizations)(w, r)
			}
		case http.MethodPut:
			h.auth.BearerAuth(h.UpdateOrganization)(w, r)
		case http.MethodDelete:
			h.auth.BearerAuth(h.DeleteOrganization)(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/v1/users", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			h.auth.BearerAuth(h.CreateUser)(w, r)
		case http.MethodGet:
			if r.URL.Query().Get("user_id") != "" {
				h.auth.BearerAuth(h.GetUser)(w, r)
			} else {
				h.auth.BearerAuth(h.ListUsers)(w, r)
			}
		case http.MethodDelete:
			h.auth.BearerAuth(h.DeleteUser)(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/v1/tags", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			if r.URL.Query().Get("tag_id") != "" {
				h.GetTag(w, r)
			} else {
				h.ListTags(w, r)
			}
		case http.MethodPost:
			h.auth.BearerAuth(h.CreateTag)(w, r)
		case http.MethodPut:
			h.auth.BearerAuth(h.UpdateTag)(w, r)
		case http.MethodDelete:
			h.auth.BearerAuth(h.DeleteTag)(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/v1/profiles", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			h.auth.BearerAuth(h.CreateProfile)(w, r)
		case http.MethodGet:
			if r.URL.Query().Get("profile_id") != "" {
				h.auth.OptionalAuth(h.GetProfile)(w, r)
			} else {
				h.auth.BearerAuth(h.ListProfiles)(w, r)
			}
		case http.MethodPut:
			h.auth.BearerAuth(h.UpdateProfile)(w, r)
		case http.MethodDelete:
			h.auth.BearerAuth(h.DeleteProfile)(w, r)
		default:
			methodNotAllowed(w)
		}
	})
	mux.HandleFunc("/api/v1/profiles/tags", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			methodNotAllowed(w)
			return
		}
		h.auth.BearerAuth(h.SetProfileTags)(w, r)
	})

	mux.HandleFunc("/api/v1/experiences", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.auth.OptionalAuth(h.ListExperiences)(w, r)
		case http.MethodPost:
			h.auth.BearerAuth(h.CreateExperience)(w, r)
		case http.MethodPut:
			h.auth.BearerAuth(h.UpdateExperience)(w, r)
		case http.MethodDelete:
			h.auth.BearerAuth(h.DeleteExperience)(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	// Anyone may file a contact request; reading and handling them is owner-only
	mux.HandleFunc("/api/v1/contact-requests", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			h.CreateContactRequest(w, r)
		case http.MethodGet:
			if r.URL.Query().Get("request_id") != "" {
				h.auth.BearerAuth(h.GetContactRequest)(w, r)
			} else {
				h.auth.BearerAuth(h.ListContactRequests)(w, r)
			}
		case http.MethodPut:
			h.auth.BearerAuth(h.UpdateContactRequestStatus)(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/v1/dashboard/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.auth.BearerAuth(h.DashboardStats)(w, r)
	})
	mux.HandleFunc("/api/v1/audit-logs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.auth.BearerAuth(h.ListAuditLogs)(w, r)
	})
}
