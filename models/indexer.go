package models

import "time"

// SearchFormat is a text-search enumeration style an indexer advertises
// support for (e.g. "standard", "european", "compact", "noYear").
type SearchFormat string

const (
	FormatStandard SearchFormat = "standard"
	FormatEuropean SearchFormat = "european"
	FormatCompact  SearchFormat = "compact"
	FormatNoYear   SearchFormat = "noYear"
)

// IndexerCapabilities is immutable for the life of a session.
type IndexerCapabilities struct {
	Search      bool
	TVSearch    bool
	MovieSearch bool

	SupportedTVParams    map[string]bool
	SupportedMovieParams map[string]bool

	SupportedCategories []int

	SupportsPagination bool
	SupportsInfoHash   bool

	MaxLimit     int
	DefaultLimit int

	EpisodeSearchFormats []SearchFormat
	MovieSearchFormats   []SearchFormat
}

// SupportsTVParam reports whether the capability set advertises a given
// TV search parameter name (e.g. "imdbId", "tvdbId", "season").
func (c IndexerCapabilities) SupportsTVParam(name string) bool {
	return c.SupportedTVParams[name]
}

// SupportsMovieParam reports whether the capability set advertises a given
// movie search parameter name (e.g. "imdbId", "tmdbId").
func (c IndexerCapabilities) SupportsMovieParam(name string) bool {
	return c.SupportedMovieParams[name]
}

// IndexerInfo is the read-only identity of an indexer driver, consumed by
// the orchestrator and the filter; the driver itself is an out-of-scope
// collaborator that implements Search.
type IndexerInfo struct {
	ID                      string
	Name                    string
	BaseURL                 string
	EnableInteractiveSearch bool
	EnableAutomaticSearch   bool
	Capabilities            IndexerCapabilities
}

// IndexerStatus is mutable per-indexer bookkeeping, owned by the status
// tracker. Lower Priority is preferred.
type IndexerStatus struct {
	IndexerID           string
	IsEnabled           bool
	Priority            int
	ConsecutiveFailures int
	BackoffUntil        time.Time
	LastSuccessAt       time.Time
	LastError           string
}
