package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"skillmap/pkg/catalog"
	"skillmap/pkg/metrics"
	"skillmap/pkg/ontology"
	"skillmap/pkg/visibility"
)

// CatalogService runs catalog queries: load published profiles, rank, page, then mask
// for the viewer.
type CatalogService struct {
	profiles *ProfileService
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      func() time.Time
}

func NewCatalogService(profiles *ProfileService, m *metrics.Metrics, log *zap.Logger) *CatalogService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogService{profiles: profiles, metrics: m, log: log, now: time.Now}
}

func (s *CatalogService) Search(ctx context.Context, req *ontology.SearchRequest, viewer *visibility.Viewer) (*ontology.SearchResponse, error) {
	if req == nil {
		req = &ontology.SearchRequest{}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var sources []ontology.OrganizationType
	if req.Filters != nil {
		sources = req.Filters.Source
	}
	published, err := s.profiles.ListPublished(ctx, sources)
	if err != nil {
		return nil, err
	}

	ranked := catalog.Rank(published, req.Filters, s.now())
	if req.Sort == ontology.SortUpdatedDesc {
		catalog.SortByRecency(ranked)
	}

	total := len(ranked)
	page := paginate(ranked, req.Limit, req.Offset)
	items := visibility.Apply(page, viewer)

	masked := 0
	for _, item := range items {
		if item.Masked() {
			masked++
		}
	}
	s.metrics.RecordSearch(viewerLabel(viewer), total, masked)
	s.log.Debug("catalog search",
		zap.Int("published", len(published)),
		zap.Int("matched", total),
		zap.Int("returned", len(items)),
		zap.Int("masked", masked),
	)

	return &ontology.SearchResponse{Items: items, Total: total}, nil
}

// Get returns one catalog entry as viewer may see it.
func (s *CatalogService) Get(ctx context.Context, id string, viewer *visibility.Viewer) (ontology.ProfileView, error) {
	return s.profiles.GetProfile(ctx, viewer, id)
}

// paginate slices after ranking; a zero limit means no limit.
func paginate(profiles []*ontology.Profile, limit, offset int) []*ontology.Profile {
	if offset >= len(profiles) {
		return []*ontology.Profile{}
	}
	end := len(profiles)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return profiles[offset:end]
}

func viewerLabel(viewer *visibility.Viewer) string {
	if viewer == nil {
		return "anonymous"
	}
	return string(viewer.Role)
}
