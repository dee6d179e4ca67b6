package usenet

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/relaycore/relaycore/models"
)

// AccessPattern hints how the seek stream should size its prefetch window
// and cache retention.
type AccessPattern int

const (
	AccessSequential AccessPattern = iota
	AccessRandom
	AccessIdle
)

const defaultPrefetchWindow = 4

// SeekStream emits bytes for exactly one requested ByteRange of an NzbFile,
// via a cooperative single-reader schedule over the segment store and NNTP
// manager.
type SeekStream struct {
	file    models.NzbFile
	rng     models.ByteRange
	store   *SegmentStore
	manager *Manager

	mu      sync.Mutex
	pattern AccessPattern
}

// NewSeekStream builds a stream for file's rng.
func NewSeekStream(file models.NzbFile, rng models.ByteRange, store *SegmentStore, manager *Manager) *SeekStream {
	return &SeekStream{file: file, rng: rng, store: store, manager: manager, pattern: AccessSequential}
}

// SetAccessPattern updates the prefetch/retention hint.
func (s *SeekStream) SetAccessPattern(p AccessPattern) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pattern = p
}

func (s *SeekStream) accessPattern() AccessPattern {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pattern
}

// WriteTo streams the requested range to w, emitting exactly
// rng.End-rng.Start+1 bytes absent an error or cancellation.
func (s *SeekStream) WriteTo(ctx context.Context, w io.Writer) (int64, error) {
	pos, ok := s.store.FindSegmentForOffset(s.rng.Start)
	if !ok {
		return 0, io.ErrUnexpectedEOF
	}

	segIdx := pos.SegmentIndex
	inSeg := pos.OffsetInSeg
	remaining := s.rng.End - s.rng.Start + 1
	var written int64

	for remaining > 0 {
		if ctx.Err() != nil {
			return written, ctx.Err()
		}

		data, err := s.ensureCached(ctx, segIdx)
		if err != nil {
			return written, err
		}

		s.prefetch(ctx, segIdx)

		available := int64(len(data)) - inSeg
		if available < 0 {
			available = 0
		}
		take := available
		if take > remaining {
			take = remaining
		}
		if take > 0 {
			n, werr := w.Write(data[inSeg : inSeg+take])
			written += int64(n)
			remaining -= int64(n)
			if werr != nil {
				return written, werr
			}
		}

		segIdx++
		inSeg = 0

		if s.accessPattern() == AccessRandom {
			s.store.InvalidateOutsideWindow(segIdx, 1)
		}
	}

	return written, nil
}

// ensureCached returns a segment's decoded bytes, fetching and decoding via
// the NNTP manager (single-flight'd there per messageId) if not cached, and
// feeding the actual decoded size back to the segment store.
func (s *SeekStream) ensureCached(ctx context.Context, segIdx int) ([]byte, error) {
	if data, ok := s.store.GetCachedSegment(segIdx); ok {
		return data, nil
	}
	if segIdx < 0 || segIdx >= len(s.file.Segments) {
		return nil, io.EOF
	}
	if s.manager == nil {
		return nil, fmt.Errorf("usenet: no nntp provider configured")
	}

	seg := s.file.Segments[segIdx]
	article, err := s.manager.GetDecodedArticle(ctx, seg.MessageID, s.file.Groups)
	if err != nil {
		return nil, err
	}

	s.store.UpdateDecodedSize(segIdx, int64(len(article.Data)))
	s.store.CacheSegment(segIdx, article.Data)

	if segIdx == 0 && !HasRecognizedExtension(s.file.FileName) {
		sample := article.Data
		if len(sample) > 512 {
			sample = sample[:512]
		}
		log.Printf("[usenet] %q has no recognized media extension, content-sniffed as %s", s.file.FileName, SniffMediaType(sample).String())
	}

	return article.Data, nil
}

// prefetch best-effort fetches the next N segments in the background,
// where N depends on the current access-pattern hint. Errors are ignored.
func (s *SeekStream) prefetch(ctx context.Context, fromIdx int) {
	window := defaultPrefetchWindow
	if s.accessPattern() == AccessRandom {
		window = 1
	}

	p := pool.New().WithMaxGoroutines(window)
	for i := 1; i <= window; i++ {
		idx := fromIdx + i
		if idx >= len(s.file.Segments) {
			break
		}
		if _, ok := s.store.GetCachedSegment(idx); ok {
			continue
		}
		p.Go(func() {
			_, _ = s.ensureCached(ctx, idx)
		})
	}
	go p.Wait()
}
