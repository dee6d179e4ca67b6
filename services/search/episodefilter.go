package search

import (
	"github.com/relaycore/relaycore/models"
)

// TitleParser is the external title-parser collaborator. FilterSeasonEpisode
// calls it for releases whose Parsed field is not yet parseable and stores
// the result on the returned release.
type TitleParser interface {
	Parse(title string) models.EpisodeInfo
}

// FilterSeasonEpisode applies the season/episode acceptance policy using
// the original (not ID-enriched) criteria, since the policy depends on user
// intent rather than which external IDs happened to resolve. Only TV
// criteria carrying season or episode are filtered; everything else passes
// through unchanged.
func FilterSeasonEpisode(releases []models.EnhancedReleaseResult, criteria models.SearchCriteria, parser TitleParser) []models.EnhancedReleaseResult {
	if criteria.SearchType != models.SearchTypeTV {
		return releases
	}
	if criteria.Season == nil && criteria.Episode == nil {
		return releases
	}

	out := make([]models.EnhancedReleaseResult, 0, len(releases))
	for _, r := range releases {
		parsed := r.Parsed
		if !parsed.Parseable && parser != nil {
			parsed = parser.Parse(r.Title)
			r.Parsed = parsed
		}
		if !parsed.Parseable {
			continue
		}
		if acceptEpisode(parsed, criteria) {
			out = append(out, r)
		}
	}
	return out
}

func acceptEpisode(parsed models.EpisodeInfo, criteria models.SearchCriteria) bool {
	switch {
	case criteria.Season != nil && criteria.Episode == nil:
		return acceptSeasonOnly(parsed, *criteria.Season)
	case criteria.Season != nil && criteria.Episode != nil:
		if criteria.SearchSource == models.SearchSourceInteractive {
			return acceptSeasonEpisodeInteractive(parsed, *criteria.Season, *criteria.Episode)
		}
		return acceptSeasonEpisodeAutomatic(parsed, *criteria.Season, *criteria.Episode)
	case criteria.Episode != nil:
		return acceptEpisodeOnly(parsed, *criteria.Episode)
	default:
		return true
	}
}

func acceptSeasonOnly(parsed models.EpisodeInfo, season int) bool {
	if !parsed.IsSeasonPack {
		return false
	}
	if parsed.IsCompleteSeries {
		return true
	}
	if len(parsed.Seasons) > 0 {
		return containsInt(parsed.Seasons, season)
	}
	return parsed.Season == season
}

func acceptSeasonEpisodeInteractive(parsed models.EpisodeInfo, season, episode int) bool {
	if parsed.IsSeasonPack {
		return false
	}
	return parsed.Season == season && containsInt(parsed.Episodes, episode)
}

func acceptSeasonEpisodeAutomatic(parsed models.EpisodeInfo, season, episode int) bool {
	if parsed.IsSeasonPack {
		return acceptSeasonOnly(parsed, season)
	}
	return parsed.Season == season && containsInt(parsed.Episodes, episode)
}

func acceptEpisodeOnly(parsed models.EpisodeInfo, episode int) bool {
	if parsed.IsSeasonPack {
		return true
	}
	return containsInt(parsed.Episodes, episode)
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
