// Package search implements the indexer-fan-out orchestrator: filtering
// eligible indexers, tiered per-indexer dispatch, rate limiting, and the
// dedup/filter/rank/cache post-processing pipeline.
package search

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/relaycore/relaycore/models"
	"github.com/relaycore/relaycore/services/dedup"
	"github.com/relaycore/relaycore/services/rank"
	"github.com/relaycore/relaycore/services/ratelimit"
	"github.com/relaycore/relaycore/services/releasecache"
	"github.com/relaycore/relaycore/services/status"
)

// Orchestrator wires the filter, rate limiter, status tracker, cache,
// deduplicator, season/episode filter, and ranker into the two public
// search operations.
type Orchestrator struct {
	Tracker  *status.Tracker
	Limits   *ratelimit.Registry
	Cache    *releasecache.Cache
	Dedup    *dedup.Deduplicator
	Ranker   *rank.Ranker
	Parser   TitleParser
	Metadata MetadataCollaborator
}

// indexerCallResult is the per-indexer fan-out outcome before dedup/rank.
type indexerCallResult struct {
	IndexerID   string
	IndexerName string
	Priority    int
	Releases    []models.ReleaseResult
	Rejection   *models.IndexerRejection
}

// Search runs the non-enhanced path: cache lookup, fan-out, dedup, filter,
// rank, truncate, cache store.
func (o *Orchestrator) Search(ctx context.Context, drivers []Driver, criteria models.SearchCriteria, opts Options) (models.SearchResult, error) {
	if err := criteria.Validate(); err != nil {
		return models.SearchResult{}, err
	}

	enriched := o.enrichIDs(ctx, criteria)

	if opts.UseCache {
		if cached, ok := o.Cache.Get(enriched); ok {
			return toSearchResult(cached), nil
		}
	}

	enhanced, err := o.dispatchAndProcess(ctx, drivers, criteria, enriched, opts)
	if err != nil {
		return models.SearchResult{}, err
	}

	if len(enhanced.Releases) > 0 && opts.UseCache {
		o.Cache.Put(enriched, enhanced)
	}

	return toSearchResult(enhanced), nil
}

// SearchEnhanced runs the enhanced path, returning EnhancedReleaseResult
// entries with scores and parsed episode info attached. It does not consult
// or populate the release cache.
func (o *Orchestrator) SearchEnhanced(ctx context.Context, drivers []Driver, criteria models.SearchCriteria, opts Options) (models.EnhancedSearchResult, error) {
	if err := criteria.Validate(); err != nil {
		return models.EnhancedSearchResult{}, err
	}
	enriched := o.enrichIDs(ctx, criteria)
	return o.dispatchAndProcess(ctx, drivers, criteria, enriched, opts)
}

func (o *Orchestrator) enrichIDs(ctx context.Context, criteria models.SearchCriteria) models.SearchCriteria {
	if o.Metadata == nil {
		return criteria
	}
	switch criteria.SearchType {
	case models.SearchTypeMovie:
		if criteria.TMDBID != "" && criteria.IMDBID == "" {
			imdbID, err := o.Metadata.GetMovieExternalIDs(ctx, criteria.TMDBID)
			if err != nil {
				log.Printf("[search] movie ID enrichment failed for tmdb=%s: %v", criteria.TMDBID, err)
				return criteria
			}
			return criteria.WithIMDBID(imdbID)
		}
	case models.SearchTypeTV:
		if criteria.TVDBID != "" && criteria.IMDBID == "" {
			imdbID, err := o.Metadata.GetTVExternalIDs(ctx, criteria.TVDBID)
			if err != nil {
				log.Printf("[search] tv ID enrichment failed for tvdb=%s: %v", criteria.TVDBID, err)
				return criteria
			}
			return criteria.WithIMDBID(imdbID)
		}
	}
	return criteria
}

func (o *Orchestrator) dispatchAndProcess(ctx context.Context, drivers []Driver, originalCriteria, enrichedCriteria models.SearchCriteria, opts Options) (models.EnhancedSearchResult, error) {
	opts = fillDefaults(opts)

	filterResult := Filter(drivers, o.Tracker, enrichedCriteria, opts)

	results := o.fanOut(ctx, filterResult.Eligible, enrichedCriteria, opts)

	var all []models.EnhancedReleaseResult
	rejected := append([]models.IndexerRejection(nil), filterResult.Rejected...)

	limit := enrichedCriteria.Limit
	if limit <= 0 {
		limit = 100
	}

	for _, r := range results {
		if r.Rejection != nil {
			rejected = append(rejected, *r.Rejection)
			continue
		}
		for _, rel := range r.Releases {
			all = append(all, models.EnhancedReleaseResult{
				ReleaseResult:   rel,
				IndexerPriority: r.Priority,
			})
		}
	}

	deduped := o.Dedup.DedupePostEnrichment(all)
	filtered := FilterSeasonEpisode(deduped, originalCriteria, o.Parser)

	var ranked []models.EnhancedReleaseResult
	if opts.Enrichment != nil && opts.Enrichment.Collaborator != nil {
		var err error
		ranked, err = opts.Enrichment.Collaborator.Enrich(ctx, filtered, originalCriteria)
		if err != nil {
			log.Printf("[search] enrichment collaborator failed, falling back to ranker: %v", err)
			ranked = o.Ranker.Rank(filtered)
		}
	} else {
		ranked = o.Ranker.Rank(filtered)
	}

	total := len(ranked)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	return models.EnhancedSearchResult{
		Releases:         ranked,
		RejectedIndexers: rejected,
		TotalResults:     total,
	}, nil
}

func (o *Orchestrator) fanOut(ctx context.Context, entries []driverEntry, criteria models.SearchCriteria, opts Options) []indexerCallResult {
	p := pool.NewWithResults[indexerCallResult]().WithMaxGoroutines(opts.Concurrency)

	for _, e := range entries {
		entry := e
		p.Go(func() indexerCallResult {
			return o.callOne(ctx, entry, criteria, opts)
		})
	}

	return p.Wait()
}

func (o *Orchestrator) callOne(ctx context.Context, entry driverEntry, criteria models.SearchCriteria, opts Options) indexerCallResult {
	base := indexerCallResult{IndexerID: entry.Info.ID, IndexerName: entry.Info.Name, Priority: entry.Status.Priority}

	check := o.Limits.Check(entry.Info.ID, entry.Info.BaseURL)
	if !check.CanProceed {
		wait := time.Duration(check.WaitMs) * time.Millisecond
		if wait > opts.Timeout {
			base.Rejection = &models.IndexerRejection{
				IndexerID: entry.Info.ID,
				Reason:    models.RejectionBackoff,
				Message:   "rate limit wait exceeds search timeout budget: " + check.Reason,
			}
			return base
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			base.Rejection = &models.IndexerRejection{
				IndexerID: entry.Info.ID,
				Reason:    models.RejectionBackoff,
				Message:   "search cancelled while waiting for rate limit: " + check.Reason,
			}
			return base
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var outcome tierOutcome
	var err error
	if opts.UseTieredSearch {
		outcome, err = tieredSearch(callCtx, entry.Driver, entry.Info, criteria)
	} else {
		var releases []models.ReleaseResult
		releases, err = entry.Driver.Search(callCtx, criteria)
		outcome = tierOutcome{Releases: releases, Method: "text"}
	}

	if err != nil {
		tag := classifyFailure(callCtx, err)
		o.Tracker.RecordFailure(entry.Info.ID, err)
		log.Printf("[search] indexer %s failed (%s): %v", entry.Info.ID, tag, err)
		return base
	}

	o.Tracker.RecordSuccess(entry.Info.ID)
	o.Limits.RecordSuccess(entry.Info.ID, entry.Info.BaseURL)
	base.Releases = outcome.Releases
	return base
}

func classifyFailure(ctx context.Context, err error) models.SearchFailureTag {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return models.FailureTimeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "cloudflare") || strings.Contains(msg, "challenge"):
		return models.FailureCloudflare
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
		return models.FailureRateLimit
	case errors.Is(err, context.DeadlineExceeded):
		return models.FailureTimeout
	default:
		return models.FailureError
	}
}

func fillDefaults(opts Options) Options {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return opts
}

func toSearchResult(e models.EnhancedSearchResult) models.SearchResult {
	releases := make([]models.ReleaseResult, len(e.Releases))
	for i, r := range e.Releases {
		releases[i] = r.ReleaseResult
	}
	return models.SearchResult{
		Releases:         releases,
		RejectedIndexers: e.RejectedIndexers,
		FromCache:        e.FromCache,
		TotalResults:     e.TotalResults,
	}
}
