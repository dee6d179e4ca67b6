package rank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/relaycore/relaycore/models"
)

func TestSizeScoreBoundaries(t *testing.T) {
	assert.Equal(t, 0.5, sizeScore(0))
	assert.Equal(t, 0.5, sizeScore(-1))
	assert.Equal(t, 0.3, sizeScore(512*1024*1024))
	assert.InDelta(t, 0.6, sizeScore(int64(1.5*(1<<30))), 0.001)
	assert.Equal(t, 0.7, sizeScore(40*(1<<30)))
}

func TestSizeScoreMidRangeScalesWithGB(t *testing.T) {
	small := sizeScore(3 * (1 << 30))
	large := sizeScore(12 * (1 << 30))
	assert.Greater(t, large, small)
	assert.LessOrEqual(t, large, 1.0)
}

func TestSeederScoreNonPositiveIsZero(t *testing.T) {
	assert.Equal(t, 0.0, seederScore(0))
	assert.Equal(t, 0.0, seederScore(-5))
}

func TestSeederScoreCapsAtOne(t *testing.T) {
	assert.Equal(t, 1.0, seederScore(100000))
}

func TestQualityScoreBuckets(t *testing.T) {
	assert.Equal(t, 1.0, qualityScore("Movie.2024.2160p.BluRay"))
	assert.Equal(t, 0.8, qualityScore("Movie.2024.1080p.WEB-DL"))
	assert.Equal(t, 0.6, qualityScore("Movie.2024.720p.WEB-DL"))
	assert.Equal(t, 0.3, qualityScore("Movie.2024.CAM"))
	assert.Equal(t, 0.4, qualityScore("Movie.2024"))
}

func TestFreshnessScoreDecaysWithAge(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fresh := freshnessScore(now, now)
	old := freshnessScore(now.AddDate(0, -3, 0), now)
	assert.Equal(t, 1.0, fresh)
	assert.Less(t, old, fresh)
}

func TestFreshnessScoreZeroDateIsZero(t *testing.T) {
	assert.Equal(t, 0.0, freshnessScore(time.Time{}, time.Now()))
}

func TestRankOrdersDescendingByScore(t *testing.T) {
	rk := New(DefaultWeights())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rk.now = func() time.Time { return now }

	releases := []models.EnhancedReleaseResult{
		{ReleaseResult: models.ReleaseResult{Title: "Low.480p", Seeders: 1, Size: 500 * (1 << 20), PublishDate: now}},
		{ReleaseResult: models.ReleaseResult{Title: "High.2160p", Seeders: 500, Size: 8 * (1 << 30), PublishDate: now}},
	}
	ranked := rk.Rank(releases)
	assert.Equal(t, "High.2160p", ranked[0].Title)
	assert.Equal(t, "Low.480p", ranked[1].Title)
	assert.Greater(t, ranked[0].TotalScore, ranked[1].TotalScore)
}

func TestNewFallsBackToDefaultsOnZeroWeights(t *testing.T) {
	rk := New(Weights{})
	assert.Equal(t, DefaultWeights(), rk.weights)
}
