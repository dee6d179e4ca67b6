// Package models holds the entity shapes shared across services/* and
// handlers/*, the way the teacher keeps plain structs in its models package.
package models


// SearchType tags the union SearchCriteria is carried as.
type SearchType string

const (
	SearchTypeMovie SearchType = "movie"
	SearchTypeTV    SearchType = "tv"
	SearchTypeMusic SearchType = "music"
	SearchTypeBook  SearchType = "book"
	SearchTypeBasic SearchType = "basic"
)

// SearchSource distinguishes a user-triggered lookup from an automated one;
// several downstream policies (season-pack acceptance, rate limiting) key off
// this instead of off search type.
type SearchSource string

const (
	SearchSourceInteractive SearchSource = "interactive"
	SearchSourceAutomatic   SearchSource = "automatic"
)

// SearchCriteria is a tagged union over {movie, tv, music, book, basic}.
//
// Invariant: for SearchTypeTV, (Season, Episode) is either (s, e), (s, nil)
// or (nil, nil). Callers that set Episode without Season violate the
// invariant and the orchestrator rejects the criteria up front.
type SearchCriteria struct {
	SearchType   SearchType
	SearchSource SearchSource

	Query string
	Limit int

	Categories []int
	IndexerIDs []string // explicit allow-list; empty means "all eligible"

	IMDBID   string
	TMDBID   string
	TVDBID   string
	TVMazeID string

	Season  *int
	Episode *int
	Year    int

	Artist string
	Album  string

	Author string
	Title  string
}

// Validate enforces the season/episode invariant. Called once by the
// orchestrator before any enrichment or fingerprinting happens.
func (c SearchCriteria) Validate() error {
	if c.SearchType == SearchTypeTV && c.Episode != nil && c.Season == nil {
		return errEpisodeWithoutSeason
	}
	return nil
}

// WithIMDBID returns a copy of c with the IMDB ID set, used by ID enrichment
// in the search orchestrator, which must not mutate the caller's original
// criteria.
func (c SearchCriteria) WithIMDBID(imdbID string) SearchCriteria {
	c.IMDBID = imdbID
	return c
}

// WithoutQueryAndYear returns a copy of c with Query and Year cleared, used by
// the movie ID-retry tier that strips query/year before retrying an ID search.
func (c SearchCriteria) WithoutQueryAndYear() SearchCriteria {
	c.Query = ""
	c.Year = 0
	return c
}

// WithoutQuery returns a copy of c with Query cleared, used by the TV
// tier-1 ID-only search.
func (c SearchCriteria) WithoutQuery() SearchCriteria {
	c.Query = ""
	return c
}

// WithoutIDs returns a copy of c with every external ID cleared, used by the
// TV tier-2 text search so the driver doesn't see stale ID fields alongside
// query text.
func (c SearchCriteria) WithoutIDs() SearchCriteria {
	c.IMDBID = ""
	c.TMDBID = ""
	c.TVDBID = ""
	c.TVMazeID = ""
	return c
}

// HasID reports whether the criteria carries any external ID usable for a
// tier-1 ID-only search.
func (c SearchCriteria) HasID() bool {
	return c.IMDBID != "" || c.TMDBID != "" || c.TVDBID != "" || c.TVMazeID != ""
}

type searchValidationError string

func (e searchValidationError) Error() string { return string(e) }

const errEpisodeWithoutSeason = searchValidationError("episode set without season")

// EpisodeInfo is the external title parser's per-release output, consumed by
// the season/episode filter. The parser itself is an out-of-scope
// collaborator; only its output shape is part of this module.
type EpisodeInfo struct {
	Season           int
	Seasons          []int
	Episodes         []int
	IsSeasonPack     bool
	IsCompleteSeries bool
	Parseable        bool
}
