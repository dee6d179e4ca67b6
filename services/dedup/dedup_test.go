package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/relaycore/relaycore/models"
)

func TestNormalizeTitleStripsNoiseTokens(t *testing.T) {
	d := New()
	a := d.NormalizeTitle("The.Movie.2024.1080p.BluRay.x264-GROUP")
	b := d.NormalizeTitle("The Movie 2024 720p WEBRip XVID-OTHER")
	assert.Equal(t, a, b)
	assert.NotContains(t, a, "1080p")
	assert.NotContains(t, a, "bluray")
}

func TestNormalizeTitleIsMemoized(t *testing.T) {
	d := New()
	first := d.NormalizeTitle("Repeated Title 1080p")
	second := d.NormalizeTitle("Repeated Title 1080p")
	assert.Equal(t, first, second)
}

func TestKeyPriorityInfoHashOverStreamingOverTitle(t *testing.T) {
	d := New()
	r := models.ReleaseResult{InfoHash: "ABC123", Protocol: models.ProtocolStreaming, GUID: "g1", Title: "Foo"}
	assert.Equal(t, "hash:abc123", d.Key(r))

	r2 := models.ReleaseResult{Protocol: models.ProtocolStreaming, GUID: "g1", Title: "Foo"}
	assert.Equal(t, "streaming:g1", d.Key(r2))

	r3 := models.ReleaseResult{Title: "Foo.2024.1080p"}
	assert.Equal(t, "title:"+d.NormalizeTitle("Foo.2024.1080p"), d.Key(r3))
}

func TestDedupePreEnrichmentPrefersMoreSeedersThenSizeThenNewer(t *testing.T) {
	d := New()
	older := time.Now().Add(-48 * time.Hour)
	newer := time.Now()
	releases := []models.ReleaseResult{
		{InfoHash: "X", Seeders: 1, Size: 100, PublishDate: older},
		{InfoHash: "X", Seeders: 10, Size: 50, PublishDate: older},
		{InfoHash: "X", Seeders: 10, Size: 100, PublishDate: newer},
	}
	out := d.DedupePreEnrichment(releases)
	assert.Len(t, out, 1)
	assert.Equal(t, 10, out[0].Seeders)
	assert.Equal(t, int64(100), out[0].Size)
}

func TestDedupePreservesGroupDiscoveryOrder(t *testing.T) {
	d := New()
	releases := []models.ReleaseResult{
		{InfoHash: "B"},
		{InfoHash: "A"},
		{InfoHash: "B"},
	}
	out := d.DedupePreEnrichment(releases)
	assert.Len(t, out, 2)
	assert.Equal(t, "B", out[0].InfoHash)
	assert.Equal(t, "A", out[1].InfoHash)
}

func TestDedupePostEnrichmentAccumulatesSourceIndexers(t *testing.T) {
	d := New()
	releases := []models.EnhancedReleaseResult{
		{ReleaseResult: models.ReleaseResult{InfoHash: "X", IndexerName: "indexerA"}},
		{ReleaseResult: models.ReleaseResult{InfoHash: "X", IndexerName: "indexerB"}},
		{ReleaseResult: models.ReleaseResult{InfoHash: "X", IndexerName: "indexerA"}},
	}
	out := d.DedupePostEnrichment(releases)
	assert.Len(t, out, 1)
	assert.Equal(t, []string{"indexerA", "indexerB"}, out[0].SourceIndexers)
}

func TestDedupePostEnrichmentPrefersFewerRejectionsThenLowerPriority(t *testing.T) {
	d := New()
	releases := []models.EnhancedReleaseResult{
		{ReleaseResult: models.ReleaseResult{InfoHash: "X"}, RejectionCount: 1, IndexerPriority: 1},
		{ReleaseResult: models.ReleaseResult{InfoHash: "X"}, RejectionCount: 0, IndexerPriority: 50},
	}
	out := d.DedupePostEnrichment(releases)
	assert.Equal(t, 0, out[0].RejectionCount)
}

func TestPriorityOfDefaultsTo25(t *testing.T) {
	r := models.EnhancedReleaseResult{}
	assert.Equal(t, 25, priorityOf(r))
}
