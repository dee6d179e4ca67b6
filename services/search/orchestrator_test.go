package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycore/relaycore/models"
	"github.com/relaycore/relaycore/services/dedup"
	"github.com/relaycore/relaycore/services/rank"
	"github.com/relaycore/relaycore/services/ratelimit"
	"github.com/relaycore/relaycore/services/releasecache"
	"github.com/relaycore/relaycore/services/status"
)

type staticDriver struct {
	info     models.IndexerInfo
	releases []models.ReleaseResult
	err      error
}

func (d staticDriver) Info() models.IndexerInfo { return d.info }

func (d staticDriver) Search(ctx context.Context, criteria models.SearchCriteria) ([]models.ReleaseResult, error) {
	return d.releases, d.err
}

func newTestOrchestrator() *Orchestrator {
	return &Orchestrator{
		Tracker: status.NewTracker(time.Minute, time.Hour),
		Limits:  ratelimit.NewRegistry(600, 600, 50),
		Cache:   releasecache.New(100, time.Minute),
		Dedup:   dedup.New(),
		Ranker:  rank.New(rank.DefaultWeights()),
	}
}

func basicOpts() Options {
	o := DefaultOptions()
	o.UseTieredSearch = false
	return o
}

func TestOrchestratorSearchAggregatesAcrossDrivers(t *testing.T) {
	o := newTestOrchestrator()
	a := staticDriver{
		info:     models.IndexerInfo{ID: "a", EnableAutomaticSearch: true, Capabilities: models.IndexerCapabilities{Search: true}},
		releases: []models.ReleaseResult{{InfoHash: "H1", Title: "Release One", Seeders: 5}},
	}
	b := staticDriver{
		info:     models.IndexerInfo{ID: "b", EnableAutomaticSearch: true, Capabilities: models.IndexerCapabilities{Search: true}},
		releases: []models.ReleaseResult{{InfoHash: "H2", Title: "Release Two", Seeders: 10}},
	}

	result, err := o.Search(context.Background(), []Driver{a, b}, models.SearchCriteria{SearchSource: models.SearchSourceAutomatic, Query: "x"}, basicOpts())
	require.NoError(t, err)
	assert.Len(t, result.Releases, 2)
	assert.False(t, result.FromCache)
}

func TestOrchestratorSearchServesFromCacheOnSecondCall(t *testing.T) {
	o := newTestOrchestrator()
	a := staticDriver{
		info:     models.IndexerInfo{ID: "a", EnableAutomaticSearch: true, Capabilities: models.IndexerCapabilities{Search: true}},
		releases: []models.ReleaseResult{{InfoHash: "H1", Title: "Release One"}},
	}
	criteria := models.SearchCriteria{SearchSource: models.SearchSourceAutomatic, Query: "x"}

	first, err := o.Search(context.Background(), []Driver{a}, criteria, basicOpts())
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := o.Search(context.Background(), []Driver{a}, criteria, basicOpts())
	require.NoError(t, err)
	assert.True(t, second.FromCache)
}

func TestOrchestratorSearchRecordsRejectedIndexers(t *testing.T) {
	o := newTestOrchestrator()
	ineligible := staticDriver{
		info: models.IndexerInfo{ID: "c", EnableAutomaticSearch: false, Capabilities: models.IndexerCapabilities{Search: true}},
	}

	result, err := o.Search(context.Background(), []Driver{ineligible}, models.SearchCriteria{SearchSource: models.SearchSourceAutomatic, Query: "x"}, basicOpts())
	require.NoError(t, err)
	assert.Empty(t, result.Releases)
	require.Len(t, result.RejectedIndexers, 1)
	assert.Equal(t, models.RejectionSearchSource, result.RejectedIndexers[0].Reason)
}

func TestOrchestratorSearchDriverFailureDoesNotAppearAsRejection(t *testing.T) {
	o := newTestOrchestrator()
	failing := staticDriver{
		info: models.IndexerInfo{ID: "d", EnableAutomaticSearch: true, Capabilities: models.IndexerCapabilities{Search: true}},
		err:  errors.New("upstream 500"),
	}

	result, err := o.Search(context.Background(), []Driver{failing}, models.SearchCriteria{SearchSource: models.SearchSourceAutomatic, Query: "x"}, basicOpts())
	require.NoError(t, err)
	assert.Empty(t, result.Releases)
	assert.Empty(t, result.RejectedIndexers)
	assert.Equal(t, 1, o.Tracker.GetStatusSync("d").ConsecutiveFailures)
}

func TestOrchestratorSearchRejectsInvalidCriteria(t *testing.T) {
	o := newTestOrchestrator()
	episode := 2
	criteria := models.SearchCriteria{SearchType: models.SearchTypeTV, Episode: &episode}

	_, err := o.Search(context.Background(), nil, criteria, basicOpts())
	assert.Error(t, err)
}

func TestCallOneSleepsOutTheRateLimitWaitBeforeDispatching(t *testing.T) {
	o := newTestOrchestrator()
	o.Limits = ratelimit.NewRegistry(600, 600, 1) // refills one token every 100ms
	entry := driverEntry{
		Driver: staticDriver{
			info:     models.IndexerInfo{ID: "a", BaseURL: "http://indexer-a.example"},
			releases: []models.ReleaseResult{{InfoHash: "H1", Title: "Release One"}},
		},
		Info: models.IndexerInfo{ID: "a", BaseURL: "http://indexer-a.example"},
	}

	// Exhaust the single-token burst so the next Check reports a wait.
	o.Limits.Indexer.RecordRequest("a")
	o.Limits.Host.RecordRequest(ratelimit.HostKey("http://indexer-a.example"))

	opts := basicOpts()
	opts.Timeout = 2 * time.Second

	start := time.Now()
	result := o.callOne(context.Background(), entry, models.SearchCriteria{}, opts)
	elapsed := time.Since(start)

	assert.Nil(t, result.Rejection)
	require.Len(t, result.Releases, 1)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
}

func TestCallOneSkipsWhenRateLimitWaitExceedsTimeoutBudget(t *testing.T) {
	o := newTestOrchestrator()
	o.Limits = ratelimit.NewRegistry(1, 1, 1) // refills one token every minute
	entry := driverEntry{
		Driver: staticDriver{
			info: models.IndexerInfo{ID: "a", BaseURL: "http://indexer-a.example"},
		},
		Info: models.IndexerInfo{ID: "a", BaseURL: "http://indexer-a.example"},
	}

	o.Limits.Indexer.RecordRequest("a")
	o.Limits.Host.RecordRequest(ratelimit.HostKey("http://indexer-a.example"))

	opts := basicOpts()
	opts.Timeout = 50 * time.Millisecond

	result := o.callOne(context.Background(), entry, models.SearchCriteria{}, opts)
	require.NotNil(t, result.Rejection)
	assert.Equal(t, models.RejectionBackoff, result.Rejection.Reason)
}

func TestOrchestratorSearchEnhancedSkipsCache(t *testing.T) {
	o := newTestOrchestrator()
	a := staticDriver{
		info:     models.IndexerInfo{ID: "a", EnableAutomaticSearch: true, Capabilities: models.IndexerCapabilities{Search: true}},
		releases: []models.ReleaseResult{{InfoHash: "H1", Title: "Release One"}},
	}
	criteria := models.SearchCriteria{SearchSource: models.SearchSourceAutomatic, Query: "x"}

	_, err := o.SearchEnhanced(context.Background(), []Driver{a}, criteria, basicOpts())
	require.NoError(t, err)

	_, ok := o.Cache.Get(criteria)
	assert.False(t, ok)
}
