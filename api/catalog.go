package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"skillmap/api/middleware"
	"skillmap/pkg/ontology"
	"skillmap/pkg/shared"
)

// SearchCatalog accepts filters either as query parameters (GET) or as a JSON
// SearchRequest body (POST).
func (h *Handlers) SearchCatalog(w http.ResponseWriter, r *http.Request) {
	var req *ontology.SearchRequest
	if r.Method == http.MethodPost {
		req = &ontology.SearchRequest{}
		if err := decodeJSON(r, req); err != nil {
			sendServiceError(w, r, err)
			return
		}
	} else {
		var err error
		if req, err = ParseSearchQuery(r.URL.Query()); err != nil {
			sendServiceError(w, r, err)
			return
		}
	}

	res, err := h.svc.Catalog.Search(r.Context(), req, middleware.ViewerFromContext(r.Context()))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendSuccess(w, http.StatusOK, res)
}

func (h *Handlers) GetCatalogProfile(w http.ResponseWriter, r *http.Request) {
	id, err := requiredParam(r, "profile_id")
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	view, err := h.svc.Catalog.Get(r.Context(), id, middleware.ViewerFromContext(r.Context()))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendSuccess(w, http.StatusOK, view)
}

// ParseSearchQuery reads catalog filters from a query string. List filters are
// comma-separated and may also be repeated, e.g. modules=SAP-MM,SAP-FI&modules=SAP-SD.
// No filter parameters at all means no filters.
func ParseSearchQuery(q url.Values) (*ontology.SearchRequest, error) {
	req := &ontology.SearchRequest{Sort: q.Get("sort")}

	var err error
	if req.Limit, err = queryInt(q, "limit"); err != nil {
		return nil, err
	}
	if req.Offset, err = queryInt(q, "offset"); err != nil {
		return nil, err
	}

	f := &ontology.SearchFilters{
		Modules: queryList(q, "modules"),
		Techs:   queryList(q, "techs"),
		Roles:   queryList(q, "roles"),
		Scopes:  append(queryList(q, "scopes"), queryList(q, "scope")...),
		Sectors: queryList(q, "sectors"),
		Langs:   queryList(q, "langs"),
	}
	if len(f.Scopes) == 0 {
		f.Scopes = nil
	}
	if f.SeniorityMin, err = queryIntPtr(q, "seniority_min"); err != nil {
		return nil, err
	}
	if f.SeniorityMax, err = queryIntPtr(q, "seniority_max"); err != nil {
		return nil, err
	}
	for _, s := range queryList(q, "source") {
		f.Source = append(f.Source, ontology.OrganizationType(s))
	}
	if v := q.Get("availability"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: availability must be true or false", shared.ErrInvalidArgument)
		}
		f.Availability = &b
	}

	if hasFilters(f) {
		req.Filters = f
	}
	return req, nil
}

func hasFilters(f *ontology.SearchFilters) bool {
	return len(f.Modules)+len(f.Techs)+len(f.Roles)+len(f.Scopes)+len(f.Sectors)+len(f.Langs)+len(f.Source) > 0 ||
		f.SeniorityMin != nil || f.SeniorityMax != nil || f.Availability != nil
}

func queryList(q url.Values, name string) []string {
	var out []string
	for _, raw := range q[name] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func queryInt(q url.Values, name string) (int, error) {
	p, err := queryIntPtr(q, name)
	if p == nil || err != nil {
		return 0, err
	}
	return *p, nil
}

func queryIntPtr(q url.Values, name string) (*int, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", shared.ErrInvalidArgument, name)
	}
	return &n, nil
}

// Contact request handlers
func (h *Handlers) CreateContactRequest(w http.ResponseWriter, r *http.Request) {
	var req ontology.CreateContactRequestRequest
	if err := decodeJSON(r, &req); err != nil {
		sendServiceError(w, r, err)
		return
	}
	cr, err := h.svc.ContactRequests.CreateContactRequest(r.Context(), &req)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendSuccess(w, http.StatusCreated, cr)
}

func (h *Handlers) ListContactRequests(w http.ResponseWriter, r *http.Request) {
	status := ontology.ContactRequestStatus(r.URL.Query().Get("status"))
	requests, err := h.svc.ContactRequests.ListContactRequests(r.Context(), middleware.ViewerFromContext(r.Context()), status)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendSuccess(w, http.StatusOK, requests)
}

func (h *Handlers) GetContactRequest(w http.ResponseWriter, r *http.Request) {
	cr, err := h.svc.ContactRequests.GetContactRequest(r.Context(), middleware.ViewerFromContext(r.Context()), r.URL.Query().Get("request_id"))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendSuccess(w, http.StatusOK, cr)
}

func (h *Handlers) UpdateContactRequestStatus(w http.ResponseWriter, r *http.Request) {
	id, err := requiredParam(r, "request_id")
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	var req ontology.UpdateContactRequestStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		sendServiceError(w, r, err)
		return
	}
	cr, err := h.svc.ContactRequests.UpdateStatus(r.Context(), middleware.ViewerFromContext(r.Context()), id, &req)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendSuccess(w, http.StatusOK, cr)
}
