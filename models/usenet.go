package models

import "time"

// NzbSegment is one article of a multipart Usenet upload. Ordered set per
// file, indexed from 1.
type NzbSegment struct {
	MessageID      string
	Number         int
	EstimatedBytes int64
}

// NzbFile is one <file> entry of a parsed NZB.
type NzbFile struct {
	Poster   string
	PostDate time.Time
	Subject  string
	Groups   []string
	Segments []NzbSegment

	FileName string
	IsRAR    bool
	Size     int64
}

// ParsedNzb is the NZB parser's output.
type ParsedNzb struct {
	Hash       string
	Files      []NzbFile
	MediaFiles []NzbFile
	TotalSize  int64
	Groups     []string
}

// SegmentDecodeInfo transitions monotonically from estimated-only to actual
// once decoded; it never reverts.
type SegmentDecodeInfo struct {
	EstimatedSize   int64
	ActualSize      *int64
	EstimatedOffset int64
	ActualOffset    *int64
}

// ProviderHealth is mutated only via the NNTP pool's recording API.
type ProviderHealth struct {
	ConsecutiveFailures int
	LastSuccess         time.Time
	LastFailure         time.Time
	EMALatencyMs        float64
	BackoffUntil        *time.Time
}

// ByteRange is an inclusive byte range resolved from an HTTP Range header.
type ByteRange struct {
	Start int64
	End   int64
}
