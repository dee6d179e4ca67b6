package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimiterAllowsWithinBurstThenRefuses(t *testing.T) {
	l := NewLimiter(60, 2)
	r1 := l.Check("a")
	assert.True(t, r1.CanProceed)
	l.RecordRequest("a")
	r2 := l.Check("a")
	assert.True(t, r2.CanProceed)
	l.RecordRequest("a")
	r3 := l.Check("a")
	assert.False(t, r3.CanProceed)
	assert.Greater(t, r3.WaitMs, int64(0))
}

func TestLimiterBucketsAreIndependentPerKey(t *testing.T) {
	l := NewLimiter(60, 1)
	l.RecordRequest("a")
	assert.False(t, l.Check("a").CanProceed)
	assert.True(t, l.Check("b").CanProceed)
}

func TestLimiterZeroOrNegativeConfigFallsBackToDefaults(t *testing.T) {
	l := NewLimiter(0, 0)
	assert.Equal(t, 60, l.ratePerMin)
	assert.Equal(t, 1, l.burst)
}

func TestHostKeyNormalizesURL(t *testing.T) {
	assert.Equal(t, "example.com", HostKey("https://Example.com/api/v1"))
	assert.Equal(t, "example.com", HostKey("http://example.com:8080/x"))
}

func TestHostKeyFallsBackToRawStringWhenUnparsable(t *testing.T) {
	assert.Equal(t, "not a url", HostKey("  Not A URL  "))
}

func TestRegistryCheckReturnsLargerWaitAcrossLayers(t *testing.T) {
	r := NewRegistry(60, 60, 1)
	r.Indexer.RecordRequest("idx1")
	result := r.Check("idx1", "https://example.com")
	assert.False(t, result.CanProceed)
}

func TestRegistryCheckProceedsWhenBothLayersHaveCapacity(t *testing.T) {
	r := NewRegistry(60, 60, 3)
	result := r.Check("idx1", "https://example.com")
	assert.True(t, result.CanProceed)
}

func TestRegistryRecordSuccessConsumesBothLayers(t *testing.T) {
	r := NewRegistry(60, 60, 1)
	r.RecordSuccess("idx1", "https://example.com")
	assert.False(t, r.Indexer.Check("idx1").CanProceed)
	assert.False(t, r.Host.Check(HostKey("https://example.com")).CanProceed)
}
