package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relaycore/relaycore/models"
)

type staticParser struct {
	byTitle map[string]models.EpisodeInfo
}

func (p staticParser) Parse(title string) models.EpisodeInfo {
	return p.byTitle[title]
}

func intPtr(v int) *int { return &v }

func seasonOnlyCriteria(season int, source models.SearchSource) models.SearchCriteria {
	return models.SearchCriteria{SearchType: models.SearchTypeTV, SearchSource: source, Season: intPtr(season)}
}

func seasonEpisodeCriteria(season, episode int, source models.SearchSource) models.SearchCriteria {
	return models.SearchCriteria{SearchType: models.SearchTypeTV, SearchSource: source, Season: intPtr(season), Episode: intPtr(episode)}
}

func TestFilterSeasonEpisodeNoOpWithoutSeasonOrEpisode(t *testing.T) {
	criteria := models.SearchCriteria{SearchType: models.SearchTypeTV}
	releases := []models.EnhancedReleaseResult{{ReleaseResult: models.ReleaseResult{Title: "Anything"}}}
	out := FilterSeasonEpisode(releases, criteria, nil)
	assert.Equal(t, releases, out)
}

func TestFilterSeasonEpisodeNoOpForNonTV(t *testing.T) {
	criteria := models.SearchCriteria{SearchType: models.SearchTypeMovie, Season: intPtr(1)}
	releases := []models.EnhancedReleaseResult{{ReleaseResult: models.ReleaseResult{Title: "Anything"}}}
	out := FilterSeasonEpisode(releases, criteria, nil)
	assert.Equal(t, releases, out)
}

func TestAcceptSeasonOnlyAcceptsCompleteSeriesOrMatchingSeason(t *testing.T) {
	assert.True(t, acceptSeasonOnly(models.EpisodeInfo{IsSeasonPack: true, IsCompleteSeries: true}, 3))
	assert.True(t, acceptSeasonOnly(models.EpisodeInfo{IsSeasonPack: true, Seasons: []int{2, 3}}, 3))
	assert.False(t, acceptSeasonOnly(models.EpisodeInfo{IsSeasonPack: true, Seasons: []int{2}}, 3))
	assert.False(t, acceptSeasonOnly(models.EpisodeInfo{IsSeasonPack: false}, 3))
}

func TestAcceptSeasonEpisodeInteractiveRejectsPacks(t *testing.T) {
	assert.False(t, acceptSeasonEpisodeInteractive(models.EpisodeInfo{IsSeasonPack: true, Season: 1}, 1, 2))
}

func TestAcceptSeasonEpisodeInteractiveRequiresExactMatch(t *testing.T) {
	assert.True(t, acceptSeasonEpisodeInteractive(models.EpisodeInfo{Season: 1, Episodes: []int{2, 3}}, 1, 2))
	assert.False(t, acceptSeasonEpisodeInteractive(models.EpisodeInfo{Season: 1, Episodes: []int{3}}, 1, 2))
	assert.False(t, acceptSeasonEpisodeInteractive(models.EpisodeInfo{Season: 2, Episodes: []int{2}}, 1, 2))
}

func TestAcceptSeasonEpisodeAutomaticAcceptsQualifyingPackOrExactEpisode(t *testing.T) {
	assert.True(t, acceptSeasonEpisodeAutomatic(models.EpisodeInfo{IsSeasonPack: true, Season: 1}, 1, 2))
	assert.True(t, acceptSeasonEpisodeAutomatic(models.EpisodeInfo{Season: 1, Episodes: []int{2}}, 1, 2))
	assert.False(t, acceptSeasonEpisodeAutomatic(models.EpisodeInfo{Season: 1, Episodes: []int{3}}, 1, 2))
}

func TestAcceptEpisodeOnlyAcceptsAnyPackOrMatchingEpisode(t *testing.T) {
	assert.True(t, acceptEpisodeOnly(models.EpisodeInfo{IsSeasonPack: true}, 5))
	assert.True(t, acceptEpisodeOnly(models.EpisodeInfo{Episodes: []int{5}}, 5))
	assert.False(t, acceptEpisodeOnly(models.EpisodeInfo{Episodes: []int{6}}, 5))
}

func TestFilterSeasonEpisodeDropsUnparseableReleases(t *testing.T) {
	criteria := seasonOnlyCriteria(1, models.SearchSourceAutomatic)
	releases := []models.EnhancedReleaseResult{
		{ReleaseResult: models.ReleaseResult{Title: "Garbage"}},
	}
	parser := staticParser{byTitle: map[string]models.EpisodeInfo{
		"Garbage": {Parseable: false},
	}}
	out := FilterSeasonEpisode(releases, criteria, parser)
	assert.Empty(t, out)
}

func TestFilterSeasonEpisodeParsesLazilyAndKeepsMatches(t *testing.T) {
	criteria := seasonEpisodeCriteria(1, 2, models.SearchSourceInteractive)
	releases := []models.EnhancedReleaseResult{
		{ReleaseResult: models.ReleaseResult{Title: "Show.S01E02"}},
		{ReleaseResult: models.ReleaseResult{Title: "Show.S01.Complete"}},
	}
	parser := staticParser{byTitle: map[string]models.EpisodeInfo{
		"Show.S01E02":     {Parseable: true, Season: 1, Episodes: []int{2}},
		"Show.S01.Complete": {Parseable: true, Season: 1, IsSeasonPack: true},
	}}
	out := FilterSeasonEpisode(releases, criteria, parser)
	assert.Len(t, out, 1)
	assert.Equal(t, "Show.S01E02", out[0].Title)
}
