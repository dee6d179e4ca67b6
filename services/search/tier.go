package search

import (
	"context"
	"fmt"

	"github.com/relaycore/relaycore/models"
)

// tierOutcome records which tier produced results, for diagnostics and for
// the orchestrator's call accounting.
type tierOutcome struct {
	Releases []models.ReleaseResult
	Method   string // "id" or "text"
}

// tieredSearch implements the T1/T1'/T2 dispatch policy for one eligible
// indexer. It never returns an error for a capability mismatch; it simply
// issues no calls and reports a zero-result outcome.
func tieredSearch(ctx context.Context, d Driver, info models.IndexerInfo, criteria models.SearchCriteria) (tierOutcome, error) {
	switch criteria.SearchType {
	case models.SearchTypeMovie:
		return tieredSearchMovie(ctx, d, info, criteria)
	case models.SearchTypeTV:
		return tieredSearchTV(ctx, d, info, criteria)
	default:
		if criteria.Query == "" {
			return tierOutcome{Method: "id"}, nil
		}
		releases, err := d.Search(ctx, criteria)
		if err != nil {
			return tierOutcome{}, err
		}
		return tierOutcome{Releases: releases, Method: "text"}, nil
	}
}

func tieredSearchMovie(ctx context.Context, d Driver, info models.IndexerInfo, criteria models.SearchCriteria) (tierOutcome, error) {
	idSupported := criteria.HasID() && supportsMovieID(info, criteria)

	if idSupported {
		releases, err := d.Search(ctx, criteria)
		if err != nil {
			return tierOutcome{}, err
		}
		if len(releases) > 0 {
			return tierOutcome{Releases: releases, Method: "id"}, nil
		}

		if criteria.SearchSource == models.SearchSourceInteractive && criteria.Query != "" {
			stripped := criteria.WithoutQueryAndYear()
			releases, err := d.Search(ctx, stripped)
			if err != nil {
				return tierOutcome{}, err
			}
			if len(releases) > 0 {
				return tierOutcome{Releases: releases, Method: "id"}, nil
			}
		}
	}

	if criteria.Query != "" {
		releases, err := searchMovieFormats(ctx, d, info, criteria)
		if err != nil {
			return tierOutcome{}, err
		}
		return tierOutcome{Releases: releases, Method: "text"}, nil
	}

	return tierOutcome{Method: "id"}, nil
}

// searchMovieFormats issues one Search call per format the indexer declares
// in MovieSearchFormats (e.g. standard, noYear), merging every format's
// releases. An indexer declaring no formats gets a single unformatted call,
// so drivers that never populate MovieSearchFormats keep working exactly as
// before.
func searchMovieFormats(ctx context.Context, d Driver, info models.IndexerInfo, criteria models.SearchCriteria) ([]models.ReleaseResult, error) {
	var merged []models.ReleaseResult
	for _, format := range formatsOrDefault(info.Capabilities.MovieSearchFormats) {
		variant := criteria
		variant.Query, variant.Year = renderMovieQuery(criteria, format)
		releases, err := d.Search(ctx, variant)
		if err != nil {
			return nil, err
		}
		merged = append(merged, releases...)
	}
	return merged, nil
}

func tieredSearchTV(ctx context.Context, d Driver, info models.IndexerInfo, criteria models.SearchCriteria) (tierOutcome, error) {
	idSupported := criteria.HasID() && supportsTVID(info, criteria)

	if idSupported {
		idOnly := criteria.WithoutQuery()
		releases, err := d.Search(ctx, idOnly)
		if err != nil {
			return tierOutcome{}, err
		}
		if len(releases) > 0 {
			return tierOutcome{Releases: releases, Method: "id"}, nil
		}
	}

	if criteria.Query != "" {
		textCriteria := criteria.WithoutIDs()
		releases, err := searchTVFormats(ctx, d, info, textCriteria)
		if err != nil {
			return tierOutcome{}, err
		}
		return tierOutcome{Releases: releases, Method: "text"}, nil
	}

	return tierOutcome{Method: "id"}, nil
}

// searchTVFormats issues one Search call per format the indexer declares in
// EpisodeSearchFormats (e.g. standard S01E02, european 1x02, compact 0102),
// merging every format's releases. An indexer declaring no formats gets a
// single call in the standard format.
func searchTVFormats(ctx context.Context, d Driver, info models.IndexerInfo, criteria models.SearchCriteria) ([]models.ReleaseResult, error) {
	var merged []models.ReleaseResult
	for _, format := range formatsOrDefault(info.Capabilities.EpisodeSearchFormats) {
		variant := criteria
		variant.Query = renderTVQuery(criteria, format)
		releases, err := d.Search(ctx, variant)
		if err != nil {
			return nil, err
		}
		merged = append(merged, releases...)
	}
	return merged, nil
}

func supportsMovieID(info models.IndexerInfo, criteria models.SearchCriteria) bool {
	caps := info.Capabilities
	if criteria.IMDBID != "" && caps.SupportsMovieParam("imdbId") {
		return true
	}
	if criteria.TMDBID != "" && caps.SupportsMovieParam("tmdbId") {
		return true
	}
	return false
}

func supportsTVID(info models.IndexerInfo, criteria models.SearchCriteria) bool {
	caps := info.Capabilities
	if criteria.IMDBID != "" && caps.SupportsTVParam("imdbId") {
		return true
	}
	if criteria.TVDBID != "" && caps.SupportsTVParam("tvdbId") {
		return true
	}
	if criteria.TVMazeID != "" && caps.SupportsTVParam("tvMazeId") {
		return true
	}
	return false
}

// formatsOrDefault returns formats unchanged, or a single-element slice
// carrying FormatStandard when the indexer declares none.
func formatsOrDefault(formats []models.SearchFormat) []models.SearchFormat {
	if len(formats) == 0 {
		return []models.SearchFormat{models.FormatStandard}
	}
	return formats
}

// renderTVQuery appends the season/episode suffix a declared episode search
// format expects. FormatNoYear carries no TV-specific rendering and is
// treated like FormatStandard for season/episode shows.
func renderTVQuery(criteria models.SearchCriteria, format models.SearchFormat) string {
	if criteria.Season == nil {
		return criteria.Query
	}
	season := *criteria.Season
	switch format {
	case models.FormatEuropean:
		if criteria.Episode != nil {
			return fmt.Sprintf("%s %dx%02d", criteria.Query, season, *criteria.Episode)
		}
		return fmt.Sprintf("%s %d", criteria.Query, season)
	case models.FormatCompact:
		if criteria.Episode != nil {
			return fmt.Sprintf("%s %02d%02d", criteria.Query, season, *criteria.Episode)
		}
		return fmt.Sprintf("%s %02d", criteria.Query, season)
	default: // FormatStandard, FormatNoYear
		if criteria.Episode != nil {
			return fmt.Sprintf("%s S%02dE%02d", criteria.Query, season, *criteria.Episode)
		}
		return fmt.Sprintf("%s S%02d", criteria.Query, season)
	}
}

// renderMovieQuery renders the query/year pair a declared movie search
// format expects: FormatNoYear clears the year and leaves the query text as
// it is, every other declared format keeps the year.
func renderMovieQuery(criteria models.SearchCriteria, format models.SearchFormat) (query string, year int) {
	if format == models.FormatNoYear {
		return criteria.Query, 0
	}
	return criteria.Query, criteria.Year
}
