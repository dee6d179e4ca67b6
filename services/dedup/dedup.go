// Package dedup collapses duplicate releases surfaced by multiple indexers
// down to one winner per logical title, tracking which indexers contributed.
package dedup

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/unicode/norm"

	"github.com/relaycore/relaycore/models"
)

var (
	qualityTokens = regexp.MustCompile(`(?i)\b(720p|1080p|2160p|4k|uhd|hdr10\+|hdr10|hdr|dolby|dts(-hd|-x)?|atmos|truehd)\b`)
	codecTokens   = regexp.MustCompile(`(?i)\b(x264|x265|h264|h265|hevc|avc|xvid|divx|av1|vp9)\b`)
	sourceTokens  = regexp.MustCompile(`(?i)\b(bluray|blu-ray|bdrip|brrip|webrip|web-rip|webdl|web-dl|hdtv|dvdrip|hdrip|remux|dvdscr|screener|cam|ts|telesync|hdcam)\b`)
	bracketTags   = regexp.MustCompile(`\[[^\]]*\]`)
	trailingGroup = regexp.MustCompile(`(?i)-[a-z0-9]+$`)
	nonAlnum      = regexp.MustCompile(`[^a-z0-9]+`)
	whitespace    = regexp.MustCompile(`\s+`)
)

// titleCacheSize amortizes regex normalization cost across repeated titles
// within a single process lifetime.
const titleCacheSize = 5000

// Deduplicator collapses a release slice down to one entry per derived key.
type Deduplicator struct {
	mu          sync.Mutex
	titleCache  *lru.Cache[string, string]
}

// New builds a Deduplicator with its title-normalization memoization cache.
func New() *Deduplicator {
	c, err := lru.New[string, string](titleCacheSize)
	if err != nil {
		panic(err)
	}
	return &Deduplicator{titleCache: c}
}

// NormalizeTitle lowercases, transliterates, and strips quality/codec/source
// noise from a release title so two releases of the same underlying content
// collide on the same key. Results are memoized.
func (d *Deduplicator) NormalizeTitle(title string) string {
	d.mu.Lock()
	if v, ok := d.titleCache.Get(title); ok {
		d.mu.Unlock()
		return v
	}
	d.mu.Unlock()

	normalized := normalizeTitle(title)

	d.mu.Lock()
	d.titleCache.Add(title, normalized)
	d.mu.Unlock()

	return normalized
}

func normalizeTitle(title string) string {
	s := norm.NFKD.String(title)
	s = unidecode.Unidecode(s)
	s = strings.ToLower(s)
	s = bracketTags.ReplaceAllString(s, " ")
	s = qualityTokens.ReplaceAllString(s, " ")
	s = codecTokens.ReplaceAllString(s, " ")
	s = sourceTokens.ReplaceAllString(s, " ")
	s = trailingGroup.ReplaceAllString(s, " ")
	s = nonAlnum.ReplaceAllString(s, " ")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Key derives the dedup key for a release: infoHash, then streaming guid,
// then normalized title, in that priority order.
func (d *Deduplicator) Key(r models.ReleaseResult) string {
	if r.InfoHash != "" {
		return "hash:" + strings.ToLower(r.InfoHash)
	}
	if r.Protocol == models.ProtocolStreaming {
		return "streaming:" + r.GUID
	}
	return "title:" + d.NormalizeTitle(r.Title)
}

// DedupePreEnrichment collapses raw indexer results before episode parsing
// or ranking have run. Ties break seeders desc → size desc → publishDate
// desc.
func (d *Deduplicator) DedupePreEnrichment(releases []models.ReleaseResult) []models.ReleaseResult {
	groups := make(map[string][]models.ReleaseResult)
	order := make([]string, 0, len(releases))
	for _, r := range releases {
		k := d.Key(r)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}

	out := make([]models.ReleaseResult, 0, len(order))
	for _, k := range order {
		group := groups[k]
		sort.SliceStable(group, func(i, j int) bool {
			return lessPreEnrichment(group[i], group[j])
		})
		out = append(out, group[0])
	}
	return out
}

func lessPreEnrichment(a, b models.ReleaseResult) bool {
	if a.Seeders != b.Seeders {
		return a.Seeders > b.Seeders
	}
	if a.Size != b.Size {
		return a.Size > b.Size
	}
	return a.PublishDate.After(b.PublishDate)
}

// DedupePostEnrichment collapses enriched releases, Radarr-style: fewer
// rejections wins, then lower indexerPriority (defaulting to 25), then the
// pre-enrichment tiebreak chain. The winner accumulates every contributing
// indexer name into SourceIndexers in stable discovery order.
func (d *Deduplicator) DedupePostEnrichment(releases []models.EnhancedReleaseResult) []models.EnhancedReleaseResult {
	groups := make(map[string][]models.EnhancedReleaseResult)
	order := make([]string, 0, len(releases))
	for _, r := range releases {
		k := d.Key(r.ReleaseResult)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}

	out := make([]models.EnhancedReleaseResult, 0, len(order))
	for _, k := range order {
		group := groups[k]
		ranked := append([]models.EnhancedReleaseResult(nil), group...)
		sort.SliceStable(ranked, func(i, j int) bool {
			return lessPostEnrichment(ranked[i], ranked[j])
		})

		winner := ranked[0]
		seen := make(map[string]struct{})
		sources := make([]string, 0, len(group))
		for _, r := range group {
			name := r.IndexerName
			if name == "" {
				name = r.IndexerID
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			sources = append(sources, name)
		}
		winner.SourceIndexers = sources
		out = append(out, winner)
	}
	return out
}

func priorityOf(r models.EnhancedReleaseResult) int {
	if r.IndexerPriority == 0 {
		return 25
	}
	return r.IndexerPriority
}

func lessPostEnrichment(a, b models.EnhancedReleaseResult) bool {
	if a.RejectionCount != b.RejectionCount {
		return a.RejectionCount < b.RejectionCount
	}
	pa, pb := priorityOf(a), priorityOf(b)
	if pa != pb {
		return pa < pb
	}
	return lessPreEnrichment(a.ReleaseResult, b.ReleaseResult)
}
