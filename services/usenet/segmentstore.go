package usenet

import (
	"sync"
	"time"

	"github.com/relaycore/relaycore/models"
)

const (
	segmentCacheCapacity = 30
	segmentCacheTTL      = 2 * time.Minute
)

// SegmentOffset is the result of resolving a byte offset to a segment.
type SegmentOffset struct {
	SegmentIndex  int
	OffsetInSeg   int64
}

type cachedSegment struct {
	data        []byte
	expiresAt   time.Time
	accessCount int
	lastAccess  time.Time
}

// SegmentStore tracks per-segment decode-size reconciliation and a small
// LRU-ish cache of decoded segment bytes for one streamed file.
type SegmentStore struct {
	mu       sync.Mutex
	segments []models.SegmentDecodeInfo
	cache    map[int]*cachedSegment
}

// NewSegmentStore builds a store for a file's ordered NZB segments, seeding
// estimated offsets from each segment's EstimatedBytes.
func NewSegmentStore(nzbSegments []models.NzbSegment) *SegmentStore {
	infos := make([]models.SegmentDecodeInfo, len(nzbSegments))
	var offset int64
	for i, seg := range nzbSegments {
		infos[i] = models.SegmentDecodeInfo{
			EstimatedSize:   seg.EstimatedBytes,
			EstimatedOffset: offset,
		}
		offset += seg.EstimatedBytes
	}
	return &SegmentStore{segments: infos, cache: make(map[int]*cachedSegment)}
}

// FindSegmentForOffset locates the segment covering byteOffset, preferring
// actual sizes/offsets where known. Returns ok=false if out of range.
func (s *SegmentStore) FindSegmentForOffset(byteOffset int64) (SegmentOffset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cursor int64
	for i, seg := range s.segments {
		size := seg.EstimatedSize
		if seg.ActualSize != nil {
			size = *seg.ActualSize
		}
		segStart := cursor
		if seg.ActualOffset != nil {
			segStart = *seg.ActualOffset
		}
		segEnd := segStart + size
		if byteOffset >= segStart && byteOffset < segEnd {
			return SegmentOffset{SegmentIndex: i, OffsetInSeg: byteOffset - segStart}, true
		}
		cursor = segEnd
	}
	return SegmentOffset{}, false
}

// UpdateDecodedSize idempotently records a segment's actual decoded size.
// Once set, it is authoritative and immutable; subsequent segments' actual
// offsets are recomputed from it. When every segment has an actual size,
// TotalSize becomes exact.
func (s *SegmentStore) UpdateDecodedSize(index int, actualSize int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.segments) {
		return
	}
	if s.segments[index].ActualSize != nil {
		return
	}
	s.segments[index].ActualSize = &actualSize

	var cursor int64
	for i := range s.segments {
		seg := &s.segments[i]
		offset := cursor
		seg.ActualOffset = &offset
		if seg.ActualSize != nil {
			cursor += *seg.ActualSize
		} else {
			cursor += seg.EstimatedSize
		}
	}
}

// TotalSize returns the exact total once every segment has an actual size,
// otherwise the best estimate.
func (s *SegmentStore) TotalSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, seg := range s.segments {
		if seg.ActualSize != nil {
			total += *seg.ActualSize
		} else {
			total += seg.EstimatedSize
		}
	}
	return total
}

// CacheSegment stores decoded bytes for a segment index.
func (s *SegmentStore) CacheSegment(index int, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.cache) >= segmentCacheCapacity {
		s.evictOneLocked()
	}
	s.cache[index] = &cachedSegment{data: data, expiresAt: time.Now().Add(segmentCacheTTL), lastAccess: time.Now()}
}

// GetCachedSegment returns previously cached decoded bytes, if live.
func (s *SegmentStore) GetCachedSegment(index int) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cache[index]
	if !ok {
		return nil, false
	}
	if time.Now().After(c.expiresAt) {
		delete(s.cache, index)
		return nil, false
	}
	c.accessCount++
	c.lastAccess = time.Now()
	return c.data, true
}

// evictOneLocked removes the entry with the lowest access count, breaking
// ties on oldest lastAccess. Caller holds s.mu.
func (s *SegmentStore) evictOneLocked() {
	var victim int
	var found bool
	for idx, c := range s.cache {
		if !found {
			victim, found = idx, true
			continue
		}
		vc := s.cache[victim]
		if c.accessCount < vc.accessCount || (c.accessCount == vc.accessCount && c.lastAccess.Before(vc.lastAccess)) {
			victim = idx
		}
	}
	if found {
		delete(s.cache, victim)
	}
}

// InvalidateOutsideWindow discards cached segments outside
// [center-w, center+w], used when the access-pattern hint switches to
// random and cache retention should narrow.
func (s *SegmentStore) InvalidateOutsideWindow(center, w int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	low, high := center-w, center+w
	for idx := range s.cache {
		if idx < low || idx > high {
			delete(s.cache, idx)
		}
	}
}
