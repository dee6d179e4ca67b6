package search

import (
	"sort"

	"github.com/relaycore/relaycore/models"
	"github.com/relaycore/relaycore/services/status"
)

// FilterResult pairs the eligible, priority-sorted indexer set with a
// parallel rejection list carrying one stable reason per rejected indexer.
type FilterResult struct {
	Eligible []driverEntry
	Rejected []models.IndexerRejection
}

type driverEntry struct {
	Driver   Driver
	Info     models.IndexerInfo
	Status   models.IndexerStatus
}

// Filter reduces a candidate indexer set to those eligible for criteria and
// options, in deterministic check order: search-type capability →
// interactive/automatic capability → enabled flag → backoff status →
// explicit allow-list. Eligible drivers are sorted by priority ascending,
// tie-broken by indexer ID.
func Filter(drivers []Driver, tracker *status.Tracker, criteria models.SearchCriteria, opts Options) FilterResult {
	var result FilterResult

	allowSet := map[string]struct{}{}
	for _, id := range criteria.IndexerIDs {
		allowSet[id] = struct{}{}
	}

	for _, d := range drivers {
		info := d.Info()
		st := tracker.GetStatusSync(info.ID)

		if reason, ok := capabilityRejection(info, criteria); ok {
			result.Rejected = append(result.Rejected, models.IndexerRejection{
				IndexerID: info.ID, Reason: reason, Message: "indexer does not support this search",
			})
			continue
		}

		if reason, ok := sourceRejection(info, criteria.SearchSource); ok {
			result.Rejected = append(result.Rejected, models.IndexerRejection{
				IndexerID: info.ID, Reason: reason, Message: "indexer not enabled for this search source",
			})
			continue
		}

		if opts.RespectEnabled && !st.IsEnabled {
			result.Rejected = append(result.Rejected, models.IndexerRejection{
				IndexerID: info.ID, Reason: models.RejectionDisabled, Message: "indexer disabled",
			})
			continue
		}

		if opts.RespectBackoff && !tracker.CanUse(info.ID) {
			result.Rejected = append(result.Rejected, models.IndexerRejection{
				IndexerID: info.ID, Reason: models.RejectionBackoff, Message: "indexer in backoff",
			})
			continue
		}

		if len(allowSet) > 0 {
			if _, ok := allowSet[info.ID]; !ok {
				result.Rejected = append(result.Rejected, models.IndexerRejection{
					IndexerID: info.ID, Reason: models.RejectionIndexerFilter, Message: "not in explicit indexer allow-list",
				})
				continue
			}
		}

		result.Eligible = append(result.Eligible, driverEntry{Driver: d, Info: info, Status: st})
	}

	sort.SliceStable(result.Eligible, func(i, j int) bool {
		a, b := result.Eligible[i], result.Eligible[j]
		if a.Status.Priority != b.Status.Priority {
			return a.Status.Priority < b.Status.Priority
		}
		return a.Info.ID < b.Info.ID
	})

	return result
}

func capabilityRejection(info models.IndexerInfo, criteria models.SearchCriteria) (models.RejectionReason, bool) {
	switch criteria.SearchType {
	case models.SearchTypeTV:
		if !info.Capabilities.TVSearch {
			return models.RejectionSearchType, true
		}
	case models.SearchTypeMovie:
		if !info.Capabilities.MovieSearch {
			return models.RejectionSearchType, true
		}
	default:
		if !info.Capabilities.Search {
			return models.RejectionSearchType, true
		}
	}
	return "", false
}

func sourceRejection(info models.IndexerInfo, source models.SearchSource) (models.RejectionReason, bool) {
	switch source {
	case models.SearchSourceInteractive:
		if !info.EnableInteractiveSearch {
			return models.RejectionSearchSource, true
		}
	case models.SearchSourceAutomatic:
		if !info.EnableAutomaticSearch {
			return models.RejectionSearchSource, true
		}
	}
	return "", false
}
