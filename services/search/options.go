package search

import "time"

// EnrichmentOpts toggles the enhanced post-processing path, where ordering
// is delegated to an external enrichment collaborator instead of the
// built-in ranker.
type EnrichmentOpts struct {
	Collaborator EnrichmentCollaborator
}

// Options configures one search() or searchEnhanced() call. SearchSource
// lives on the criteria itself (see models.SearchCriteria) since the
// season/episode filter needs it alongside season/episode.
type Options struct {
	RespectEnabled  bool
	RespectBackoff  bool
	UseTieredSearch bool
	Concurrency     int
	Timeout         time.Duration
	UseCache        bool
	Enrichment      *EnrichmentOpts
}

// DefaultOptions mirrors the documented defaults.
func DefaultOptions() Options {
	return Options{
		RespectEnabled:  true,
		RespectBackoff:  true,
		UseTieredSearch: true,
		Concurrency:     5,
		Timeout:         30 * time.Second,
		UseCache:        true,
	}
}
