package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"skillmap/api/middleware"
	"skillmap/api/services"
	"skillmap/db"
	"skillmap/pkg/auth"
	"skillmap/pkg/metrics"
	"skillmap/pkg/ontology"
	"skillmap/pkg/shared"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *shared.Error   `json:"error"`
}

type testServer struct {
	*httptest.Server
	svc      *services.Services
	partnerA *ontology.Organization
	partnerB *ontology.Organization
	tags     map[string]*ontology.Tag
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	log := zaptest.NewLogger(t)

	cfg := db.DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "api.db")
	dbService, err := db.New(ctx, cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { dbService.Close() })

	m := metrics.New("test")
	svc := services.New(dbService.GetDB(), auth.NewTokenManager("test-secret", time.Hour, "skillmap"), nil, m, log)

	h := NewHandlers(svc, m, "test", map[string]HealthCheck{"database": dbService.Health})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	handler := middleware.CORS("*")(middleware.RequestLogger(log)(middleware.Metrics(m, mux)(mux)))

	ts := &testServer{Server: httptest.NewServer(handler), svc: svc, tags: map[string]*ontology.Tag{}}
	t.Cleanup(ts.Close)

	owner := ts.org(t, "InoPeak Technologies", ontology.OrgTypeOwner)
	ts.partnerA = ts.org(t, "TechPartner A", ontology.OrgTypePartner)
	ts.partnerB = ts.org(t, "ConsultCorp B", ontology.OrgTypePartner)
	ts.user(t, "admin@inopeak.com", ontology.RoleOwner, owner.ID)
	ts.user(t, "manager@techpartner.com", ontology.RolePartnerAdmin, ts.partnerA.ID)

	for _, key := range []string{"SAP-MM", "SAP-FI"} {
		tag, err := svc.Tags.CreateTag(ctx, services.SystemViewer, &ontology.CreateTagRequest{Category: ontology.TagCategoryModule, Key: key})
		require.NoError(t, err)
		ts.tags[key] = tag
	}
	return ts
}

func (ts *testServer) org(t *testing.T, name string, typ ontology.OrganizationType) *ontology.Organization {
	org, err := ts.svc.Organizations.CreateOrganization(context.Background(), services.SystemViewer, &ontology.CreateOrganizationRequest{Name: name, Type: typ})
	require.NoError(t, err)
	return org
}

func (ts *testServer) user(t *testing.T, email string, role ontology.Role, orgID string) {
	_, err := ts.svc.Users.CreateUser(context.Background(), services.SystemViewer, &ontology.CreateUserRequest{
		Email: email, Name: email, Role: role, OrganizationID: orgID, Password: "password123",
	})
	require.NoError(t, err)
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp.StatusCode, env
}

func (ts *testServer) login(t *testing.T, email string) string {
	t.Helper()
	status, env := ts.do(t, http.MethodPost, "/api/v1/auth/login", "", ontology.LoginRequest{Email: email, Password: "password123"})
	require.Equal(t, http.StatusOK, status)
	var res ontology.LoginResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	require.NotEmpty(t, res.Token)
	return res.Token
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestAuthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	status, env := ts.do(t, http.MethodPost, "/api/v1/auth/login", "", ontology.LoginRequest{Email: "admin@inopeak.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, shared.CodeUnauthorized, env.Error.Code)

	token := ts.login(t, "admin@inopeak.com")
	status, env = ts.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	me := decode[ontology.User](t, env)
	assert.Equal(t, "admin@inopeak.com", me.Email)
	assert.Equal(t, ontology.RoleOwner, me.Role)

	status, _ = ts.do(t, http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = ts.do(t, http.MethodGet, "/api/v1/auth/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, env = ts.do(t, http.MethodGet, "/api/v1/auth/login", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
	assert.Equal(t, shared.CodeMethod, env.Error.Code)
}

func TestCatalogEndpoints(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.login(t, "admin@inopeak.com")
	partner := ts.login(t, "manager@techpartner.com")

	create := func(orgID, first string, years int, keys ...string) string {
		ids := make([]string, 0, len(keys))
		for _, k := range keys {
			ids = append(ids, ts.tags[k].ID)
		}
		status, env := ts.do(t, http.MethodPost, "/api/v1/profiles", owner, ontology.CreateProfileRequest{
			OrganizationID: orgID, FirstName: first, LastName: "Yılmaz", Email: first + "@example.com",
			Title: "Consultant", SeniorityYears: years, WorkScope: ontology.WorkScopeFullCycle,
			Status: ontology.ProfileStatusPublished, TagIDs: ids,
		})
		require.Equal(t, http.StatusCreated, status)
		return decode[ontology.Profile](t, env).ID
	}
	p1 := create(ts.partnerA.ID, "Ahmet", 8, "SAP-MM", "SAP-FI")
	p2 := create(ts.partnerB.ID, "Mehmet", 2, "SAP-MM")

	type item struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
		FirstName   string `json:"first_name"`
		Score       *int   `json:"score"`
	}
	type page struct {
		Items []item `json:"items"`
		Total int    `json:"total"`
	}

	t.Run("anonymous search is masked", func(t *testing.T) {
		status, env := ts.do(t, http.MethodGet, "/api/v1/catalog?modules=SAP-MM&seniority_min=5", "", nil)
		require.Equal(t, http.StatusOK, status)
		res := decode[page](t, env)
		assert.Equal(t, 2, res.Total)
		require.Len(t, res.Items, 2)
		assert.Equal(t, p1, res.Items[0].ID)
		assert.Equal(t, "A* Y*****", res.Items[0].DisplayName)
		assert.Empty(t, res.Items[0].FirstName)
		assert.Equal(t, 5, *res.Items[0].Score)
		assert.Equal(t, p2, res.Items[1].ID)
	})

	t.Run("partner sees own profiles in full", func(t *testing.T) {
		five := 5
		status, env := ts.do(t, http.MethodPost, "/api/v1/catalog", partner, ontology.SearchRequest{
			Filters: &ontology.SearchFilters{Modules: []string{"SAP-MM"}, SeniorityMin: &five},
		})
		require.Equal(t, http.StatusOK, status)
		res := decode[page](t, env)
		require.Len(t, res.Items, 2)
		assert.Equal(t, "Ahmet", res.Items[0].FirstName)
		assert.NotEmpty(t, res.Items[1].DisplayName)
	})

	t.Run("single profile", func(t *testing.T) {
		status, env := ts.do(t, http.MethodGet, "/api/v1/catalog/profile?profile_id="+p2, partner, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "M* Y*****", decode[item](t, env).DisplayName)

		status, _ = ts.do(t, http.MethodGet, "/api/v1/catalog/profile", "", nil)
		assert.Equal(t, http.StatusBadRequest, status)
		status, _ = ts.do(t, http.MethodGet, "/api/v1/catalog/profile?profile_id=missing", "", nil)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("bad query", func(t *testing.T) {
		status, env := ts.do(t, http.MethodGet, "/api/v1/catalog?seniority_min=five", "", nil)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, shared.CodeInvalid, env.Error.Code)
	})

	t.Run("invalid token on public route is rejected", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodGet, "/api/v1/catalog", "expired", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	})
}

func TestContactRequestEndpoints(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.login(t, "admin@inopeak.com")
	partner := ts.login(t, "manager@techpartner.com")

	status, env := ts.do(t, http.MethodPost, "/api/v1/contact-requests", "", ontology.CreateContactRequestRequest{
		RequesterEmail: "buyer@client.com",
		Filters:        &ontology.SearchFilters{Modules: []string{"SAP-MM"}},
	})
	require.Equal(t, http.StatusCreated, status)
	cr := decode[ontology.ContactRequest](t, env)

	status, _ = ts.do(t, http.MethodGet, "/api/v1/contact-requests", partner, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env = ts.do(t, http.MethodGet, "/api/v1/contact-requests?status=open", owner, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]ontology.ContactRequest](t, env), 1)

	status, env = ts.do(t, http.MethodPut, "/api/v1/contact-requests?request_id="+cr.ID, owner,
		ontology.UpdateContactRequestStatusRequest{Status: ontology.ContactStatusClosed})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, shared.CodeConflict, env.Error.Code)

	status, env = ts.do(t, http.MethodPut, "/api/v1/contact-requests?request_id="+cr.ID, owner,
		ontology.UpdateContactRequestStatusRequest{Status: ontology.ContactStatusInProgress})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, ontology.ContactStatusInProgress, decode[ontology.ContactRequest](t, env).Status)
}

func TestAdminEndpoints(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.login(t, "admin@inopeak.com")
	partner := ts.login(t, "manager@techpartner.com")

	status, _ := ts.do(t, http.MethodPost, "/api/v1/tags", partner, ontology.CreateTagRequest{Category: ontology.TagCategoryTech, Key: "RAP"})
	assert.Equal(t, http.StatusForbidden, status)

	status, env := ts.do(t, http.MethodPost, "/api/v1/tags", owner, ontology.CreateTagRequest{Category: ontology.TagCategoryTech, Key: "RAP"})
	require.Equal(t, http.StatusCreated, status)
	tag := decode[ontology.Tag](t, env)

	status, env = ts.do(t, http.MethodGet, "/api/v1/tags?category=tech", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]ontology.Tag](t, env), 1)

	status, _ = ts.do(t, http.MethodDelete, "/api/v1/tags?tag_id="+tag.ID, owner, nil)
	assert.Equal(t, http.StatusOK, status)

	status, env = ts.do(t, http.MethodGet, "/api/v1/organizations", partner, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]ontology.Organization](t, env), 1, "partners only see their own organization")

	status, env = ts.do(t, http.MethodGet, "/api/v1/dashboard/stats", owner, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 3, decode[ontology.DashboardStats](t, env).Organizations)

	status, _ = ts.do(t, http.MethodGet, "/api/v1/audit-logs", partner, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = ts.do(t, http.MethodGet, "/api/v1/audit-logs?limit=abc", owner, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = ts.do(t, http.MethodGet, "/api/v1/audit-logs?limit=10", owner, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	status, env := ts.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, status)
	health := decode[shared.HealthStatus](t, env)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "healthy", health.Details["database"])

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthCheck_Unhealthy(t *testing.T) {
	h := &Handlers{checks: map[string]HealthCheck{
		"nats": func(context.Context) error { return errors.New("not running") },
	}, started: time.Now()}

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unhealthy: not running")
}

func TestSendServiceError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{shared.ErrNotFound, http.StatusNotFound, shared.CodeNotFound},
		{shared.ErrForbidden, http.StatusForbidden, shared.CodeForbidden},
		{shared.ErrUnauthorized, http.StatusUnauthorized, shared.CodeUnauthorized},
		{shared.ErrInvalidArgument, http.StatusBadRequest, shared.CodeInvalid},
		{shared.ErrConflict, http.StatusConflict, shared.CodeConflict},
		{shared.ErrInvalidTransition, http.StatusConflict, shared.CodeConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError, shared.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			sendServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			assert.Equal(t, tt.status, rec.Code)

			var env envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.False(t, env.Success)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}
