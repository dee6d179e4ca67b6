package search

import (
	"context"

	"github.com/relaycore/relaycore/models"
)

// Driver is the external indexer collaborator the orchestrator dispatches
// to. Implementations live outside this module; the core only depends on
// this shape.
type Driver interface {
	Info() models.IndexerInfo
	Search(ctx context.Context, criteria models.SearchCriteria) ([]models.ReleaseResult, error)
}

// MetadataCollaborator resolves cross-reference IDs for enrichment. Failures
// are expected and handled by logging and proceeding with the original
// criteria.
type MetadataCollaborator interface {
	GetMovieExternalIDs(ctx context.Context, tmdbID string) (imdbID string, err error)
	GetTVExternalIDs(ctx context.Context, tvdbID string) (imdbID string, err error)
}

// EnrichmentCollaborator optionally replaces the ranker's ordering in the
// enhanced search path.
type EnrichmentCollaborator interface {
	Enrich(ctx context.Context, releases []models.EnhancedReleaseResult, criteria models.SearchCriteria) ([]models.EnhancedReleaseResult, error)
}
