package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"skillmap/pkg/ontology"
	"skillmap/pkg/shared"
	"skillmap/pkg/visibility"
)

type viewerKey struct{}

// Authenticator turns a bearer token into the viewer it was issued to.
type Authenticator interface {
	Authenticate(token string) (*visibility.Viewer, error)
}

// WithViewer stores the authenticated viewer in ctx.
func WithViewer(ctx context.Context, v *visibility.Viewer) context.Context {
	return context.WithValue(ctx, viewerKey{}, v)
}

// ViewerFromContext returns the authenticated viewer, or nil for anonymous requests.
func ViewerFromContext(ctx context.Context) *visibility.Viewer {
	v, _ := ctx.Value(viewerKey{}).(*visibility.Viewer)
	return v
}

type Auth struct {
	authn Authenticator
}

func NewAuth(authn Authenticator) *Auth {
	return &Auth{authn: authn}
}

// BearerAuth middleware for API authentication
func (a *Auth) BearerAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			sendUnauthorized(w, "Missing authorization header")
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			sendUnauthorized(w, "Invalid authorization format")
			return
		}

		viewer, err := a.authn.Authenticate(parts[1])
		if err != nil {
			sendUnauthorized(w, "Invalid token")
			return
		}

		next(w, r.WithContext(WithViewer(r.Context(), viewer)))
	}
}

// OptionalAuth middleware - allows both authenticated and unauthenticated requests.
// A present but invalid token is still rejected.
func (a *Auth) OptionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			a.BearerAuth(next)(w, r)
		} else {
			next(w, r)
		}
	}
}

// RequireRole rejects authenticated viewers whose role is not listed. It must run inside
// BearerAuth.
func RequireRole(roles ...ontology.Role) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			viewer := ViewerFromContext(r.Context())
			if viewer == nil {
				sendUnauthorized(w, "Authentication required")
				return
			}
			for _, role := range roles {
				if viewer.Role == role {
					next(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, shared.CodeForbidden, "Insufficient permissions")
		}
	}
}

func sendUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, shared.CodeUnauthorized, message)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := shared.Response{
		Success: false,
		Error: &shared.Error{
			Code:    code,
			Message: message,
		},
	}

	json.NewEncoder(w).Encode(response)
}
