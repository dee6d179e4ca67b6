package livetv

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycore/relaycore/models"
)

func TestURLCachePutAndGetRoundTrips(t *testing.T) {
	c := NewURLCache()
	c.Put("acc1", "chan1", models.ResolvedStreamUrl{URL: "http://example.com/a.m3u8", Kind: models.StreamHLS})

	got, ok := c.Get("acc1", "chan1")
	require.True(t, ok)
	assert.Equal(t, "http://example.com/a.m3u8", got.URL)
}

func TestURLCacheGetMissReturnsFalse(t *testing.T) {
	c := NewURLCache()
	_, ok := c.Get("nope", "nope")
	assert.False(t, ok)
}

func TestURLCacheExpiredEntryIsEvictedOnGet(t *testing.T) {
	c := NewURLCache()
	c.Put("acc1", "chan1", models.ResolvedStreamUrl{URL: "x", Kind: models.StreamDirect, ExpiresAt: time.Now().Add(-time.Second)})

	_, ok := c.Get("acc1", "chan1")
	assert.False(t, ok)
}

func TestURLCacheInvalidateRemovesSingleEntry(t *testing.T) {
	c := NewURLCache()
	c.Put("acc1", "chan1", models.ResolvedStreamUrl{URL: "x", Kind: models.StreamDirect})
	c.Invalidate("acc1", "chan1")

	_, ok := c.Get("acc1", "chan1")
	assert.False(t, ok)
}

func TestURLCacheInvalidateAccountRemovesAllItsEntries(t *testing.T) {
	c := NewURLCache()
	c.Put("acc1", "chan1", models.ResolvedStreamUrl{URL: "x", Kind: models.StreamDirect})
	c.Put("acc1", "chan2", models.ResolvedStreamUrl{URL: "y", Kind: models.StreamDirect})
	c.Put("acc2", "chan1", models.ResolvedStreamUrl{URL: "z", Kind: models.StreamDirect})

	c.InvalidateAccount("acc1")

	_, ok1 := c.Get("acc1", "chan1")
	_, ok2 := c.Get("acc1", "chan2")
	_, ok3 := c.Get("acc2", "chan1")
	assert.False(t, ok1)
	assert.False(t, ok2)
	assert.True(t, ok3)
}

func TestURLCacheSweepRemovesOnlyExpiredEntries(t *testing.T) {
	c := NewURLCache()
	c.Put("acc1", "chan1", models.ResolvedStreamUrl{URL: "x", Kind: models.StreamDirect, ExpiresAt: time.Now().Add(-time.Second)})
	c.Put("acc1", "chan2", models.ResolvedStreamUrl{URL: "y", Kind: models.StreamDirect, ExpiresAt: time.Now().Add(time.Hour)})

	removed := c.Sweep()
	assert.Equal(t, 1, removed)

	_, ok2 := c.Get("acc1", "chan2")
	assert.True(t, ok2)
}

func TestTtlForKindDiffersByStreamKind(t *testing.T) {
	assert.Equal(t, hlsTTL, ttlForKind(models.StreamHLS))
	assert.Equal(t, directTTL, ttlForKind(models.StreamDirect))
}
