package models

import "time"

// Protocol identifies the transport a release is delivered over.
type Protocol string

const (
	ProtocolTorrent   Protocol = "torrent"
	ProtocolUsenet    Protocol = "usenet"
	ProtocolStreaming Protocol = "streaming"
)

// ReleaseResult is produced by an indexer driver.
type ReleaseResult struct {
	GUID        string
	IndexerID   string
	IndexerName string
	Title       string
	Size        int64
	PublishDate time.Time

	Seeders  int
	Leechers int
	Grabs    int

	Categories []int

	DownloadURL string
	DetailsURL  string

	InfoHash  string
	MagnetURL string

	Protocol Protocol
}

// EnhancedReleaseResult extends ReleaseResult with enrichment output.
type EnhancedReleaseResult struct {
	ReleaseResult

	Parsed          EpisodeInfo
	TotalScore       float64
	Rejected         bool
	RejectionCount   int
	IndexerPriority  int
	SourceIndexers   []string
}

// SearchResult is the orchestrator's non-enhanced response shape.
type SearchResult struct {
	Releases          []ReleaseResult
	RejectedIndexers  []IndexerRejection
	FromCache         bool
	TotalResults      int
}

// EnhancedSearchResult is the orchestrator's enriched response shape.
type EnhancedSearchResult struct {
	Releases          []EnhancedReleaseResult
	RejectedIndexers  []IndexerRejection
	FromCache         bool
	TotalResults      int
}

// IndexerRejection pairs a rejected indexer with its single stable reason
// tag. Tests assert against RejectionReason's string value, so it must never
// be reworded once shipped.
type IndexerRejection struct {
	IndexerID string
	Reason    RejectionReason
	Message   string
}

// RejectionReason enumerates the indexer-filter's stable rejection tags.
type RejectionReason string

const (
	RejectionSearchType     RejectionReason = "searchType"
	RejectionSearchSource   RejectionReason = "searchSource"
	RejectionDisabled       RejectionReason = "disabled"
	RejectionBackoff        RejectionReason = "backoff"
	RejectionIndexerFilter  RejectionReason = "indexerFilter"
)

// SearchFailureTag enumerates the per-indexer failure tags recorded by the
// orchestrator; these never propagate as a call-level error.
type SearchFailureTag string

const (
	FailureCloudflare SearchFailureTag = "cloudflare"
	FailureTimeout    SearchFailureTag = "timeout"
	FailureError      SearchFailureTag = "error"
	FailureRateLimit  SearchFailureTag = "rate_limit"
)
