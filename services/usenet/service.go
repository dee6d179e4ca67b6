package usenet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/relaycore/relaycore/models"
)

// MountStatus enumerates the external mount manager's lifecycle states.
type MountStatus string

const (
	MountDownloading        MountStatus = "downloading"
	MountExtracting         MountStatus = "extracting"
	MountReady              MountStatus = "ready"
	MountRequiresExtraction MountStatus = "requires_extraction"
	MountError              MountStatus = "error"
)

// MountInfo is the external mount manager's projection of one mount.
type MountInfo struct {
	ID         string
	NzbHash    string
	Status     MountStatus
	MediaFiles []models.NzbFile
}

// MountManager is the external collaborator that owns mount lifecycle and
// pre-parsed NZB data.
type MountManager interface {
	GetMount(id string) (*MountInfo, bool)
	TouchMount(id string)
}

// MountWriter is the optional write side of MountManager that IngestNzb
// persists a newly built MountInfo through. Most deployments implement it
// on the same concrete type as MountManager; a MountManager that doesn't
// (e.g. one that ingests through its own out-of-band pipeline) simply never
// satisfies this interface and IngestNzb becomes a pure parse-and-classify
// helper for the caller to persist itself.
type MountWriter interface {
	PutMount(info *MountInfo)
}

const (
	nzbCacheTTL       = time.Hour
	streamCleanupWait = 2 * time.Minute
)

type nzbCacheEntry struct {
	parsed    models.ParsedNzb
	expiresAt time.Time
}

type mountStreams struct {
	store        *SegmentStore
	activeCount  int
	cleanupTimer *time.Timer
}

// Service is the facade over the mount manager, NZB cache, segment store,
// and NNTP manager that the HTTP surface drives.
type Service struct {
	Mounts  MountManager
	Manager *Manager

	mu        sync.Mutex
	nzbCache  map[string]*nzbCacheEntry
	streams   map[string]*mountStreams
}

// NewService builds a Service over the given mount manager and NNTP
// manager.
func NewService(mounts MountManager, manager *Manager) *Service {
	return &Service{
		Mounts:   mounts,
		Manager:  manager,
		nzbCache: make(map[string]*nzbCacheEntry),
		streams:  make(map[string]*mountStreams),
	}
}

// ErrRequiresExtraction is returned for RAR-only mounts, which streaming
// refuses to serve directly.
var ErrRequiresExtraction = fmt.Errorf("usenet: mount requires extraction before it can be streamed")

// ErrMountNotFound is returned when the mount manager has no record for the
// requested mount ID.
var ErrMountNotFound = fmt.Errorf("usenet: mount not found")

// OpenStream resolves rangeHeader against fileIndex of mountID's media
// files and returns a stream plus the resolved range and total size, ready
// for the HTTP handler to copy out.
func (s *Service) OpenStream(ctx context.Context, mountID string, fileIndex int, rangeHeader string) (*SeekStream, models.ByteRange, int64, error) {
	mount, ok := s.Mounts.GetMount(mountID)
	if !ok || mount == nil {
		return nil, models.ByteRange{}, 0, ErrMountNotFound
	}
	s.Mounts.TouchMount(mountID)

	if mount.Status == MountRequiresExtraction {
		return nil, models.ByteRange{}, 0, ErrRequiresExtraction
	}

	if fileIndex < 0 || fileIndex >= len(mount.MediaFiles) {
		return nil, models.ByteRange{}, 0, ErrMountNotFound
	}
	file := mount.MediaFiles[fileIndex]

	store := s.storeFor(mountID, fileIndex, file)
	total := store.TotalSize()
	if total == 0 {
		total = file.Size
	}

	var rng models.ByteRange
	var err error
	if rangeHeader == "" {
		rng = models.ByteRange{Start: 0, End: total - 1}
	} else {
		rng, err = ParseRangeHeader(rangeHeader, total)
		if err != nil {
			return nil, models.ByteRange{}, total, err
		}
	}

	stream := NewSeekStream(file, rng, store, s.Manager)
	s.beginStream(mountID, fileIndex)
	return stream, rng, total, nil
}

// CloseStream decrements the active-stream count for a mount/file and, if
// it reaches zero, schedules cleanup after streamCleanupWait.
func (s *Service) CloseStream(mountID string, fileIndex int) {
	key := fmt.Sprintf("%s/%d", mountID, fileIndex)

	s.mu.Lock()
	defer s.mu.Unlock()
	ms, ok := s.streams[key]
	if !ok {
		return
	}
	ms.activeCount--
	if ms.activeCount > 0 {
		return
	}
	if ms.cleanupTimer != nil {
		ms.cleanupTimer.Stop()
	}
	ms.cleanupTimer = time.AfterFunc(streamCleanupWait, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if current, ok := s.streams[key]; ok && current.activeCount == 0 {
			delete(s.streams, key)
		}
	})
}

func (s *Service) beginStream(mountID string, fileIndex int) {
	key := fmt.Sprintf("%s/%d", mountID, fileIndex)

	s.mu.Lock()
	defer s.mu.Unlock()
	ms, ok := s.streams[key]
	if !ok {
		return
	}
	if ms.cleanupTimer != nil {
		ms.cleanupTimer.Stop()
	}
	ms.activeCount++
}

func (s *Service) storeFor(mountID string, fileIndex int, file models.NzbFile) *SegmentStore {
	key := fmt.Sprintf("%s/%d", mountID, fileIndex)

	s.mu.Lock()
	defer s.mu.Unlock()
	ms, ok := s.streams[key]
	if !ok {
		ms = &mountStreams{store: NewSegmentStore(file.Segments)}
		s.streams[key] = ms
	}
	return ms.store
}

// BuildMountInfo parses raw as an NZB document (via ParsedNzbFor, so repeat
// ingestion of the same mount reuses the cached parse) and classifies it,
// returning the MountInfo the caller's mount manager should persist.
// RAR-only NZBs come back with MountRequiresExtraction so OpenStream refuses
// to serve them until an extraction step replaces the mount's status.
func (s *Service) BuildMountInfo(mountID string, raw []byte) (*MountInfo, error) {
	parsed, err := s.ParsedNzbFor(mountID, raw)
	if err != nil {
		return nil, fmt.Errorf("usenet: parsing nzb for mount %s: %w", mountID, err)
	}

	status := MountReady
	if IsRarOnlyNzb(parsed) {
		status = MountRequiresExtraction
	}

	return &MountInfo{
		ID:         mountID,
		NzbHash:    parsed.Hash,
		Status:     status,
		MediaFiles: parsed.MediaFiles,
	}, nil
}

// IngestNzb parses and classifies raw via BuildMountInfo and, when Mounts
// also implements MountWriter, persists the result so a subsequent
// OpenStream sees the real RAR-only classification instead of whatever the
// caller seeded the mount manager with. Callers whose MountManager doesn't
// implement MountWriter still get the parsed MountInfo back to persist
// through their own pipeline.
func (s *Service) IngestNzb(mountID string, raw []byte) (*MountInfo, error) {
	info, err := s.BuildMountInfo(mountID, raw)
	if err != nil {
		return nil, err
	}
	if writer, ok := s.Mounts.(MountWriter); ok {
		writer.PutMount(info)
	}
	return info, nil
}

// ParsedNzbFor returns the cached parse of a mount's NZB document, parsing
// and caching it (TTL 1h) on first use.
func (s *Service) ParsedNzbFor(mountID string, raw []byte) (models.ParsedNzb, error) {
	s.mu.Lock()
	if e, ok := s.nzbCache[mountID]; ok && time.Now().Before(e.expiresAt) {
		s.mu.Unlock()
		return e.parsed, nil
	}
	s.mu.Unlock()

	parsed, err := ParseNzb(raw)
	if err != nil {
		return models.ParsedNzb{}, err
	}

	s.mu.Lock()
	s.nzbCache[mountID] = &nzbCacheEntry{parsed: parsed, expiresAt: time.Now().Add(nzbCacheTTL)}
	s.mu.Unlock()

	return parsed, nil
}
