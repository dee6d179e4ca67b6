package usenet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/relaycore/relaycore/models"
)

// ErrInvalidRange is returned for a malformed or unsatisfiable Range header.
type ErrInvalidRange struct {
	Header string
	Reason string
}

func (e *ErrInvalidRange) Error() string {
	return fmt.Sprintf("usenet: invalid range %q: %s", e.Header, e.Reason)
}

// ParseRangeHeader parses a single-range HTTP Range header value (the
// "bytes=" prefix included) against a known total size. Supports
// start-end, suffix -N, and open-ended start- forms. "bytes=-0" is
// rejected; "bytes=0-0" is a single byte.
func ParseRangeHeader(header string, total int64) (models.ByteRange, error) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return models.ByteRange{}, &ErrInvalidRange{Header: header, Reason: "missing bytes= prefix"}
	}
	spec := strings.TrimPrefix(header, prefix)
	if strings.Contains(spec, ",") {
		return models.ByteRange{}, &ErrInvalidRange{Header: header, Reason: "multi-range not supported"}
	}

	dash := strings.IndexByte(spec, '-')
	if dash < 0 {
		return models.ByteRange{}, &ErrInvalidRange{Header: header, Reason: "missing '-'"}
	}

	startStr, endStr := spec[:dash], spec[dash+1:]

	var start, end int64
	switch {
	case startStr == "" && endStr != "":
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return models.ByteRange{}, &ErrInvalidRange{Header: header, Reason: "invalid suffix length"}
		}
		start = total - n
		if start < 0 {
			start = 0
		}
		end = total - 1
	case startStr != "" && endStr == "":
		n, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil || n < 0 {
			return models.ByteRange{}, &ErrInvalidRange{Header: header, Reason: "invalid start"}
		}
		start = n
		end = total - 1
	case startStr != "" && endStr != "":
		s, err1 := strconv.ParseInt(startStr, 10, 64)
		e, err2 := strconv.ParseInt(endStr, 10, 64)
		if err1 != nil || err2 != nil || s < 0 || e < s {
			return models.ByteRange{}, &ErrInvalidRange{Header: header, Reason: "invalid start-end"}
		}
		start, end = s, e
	default:
		return models.ByteRange{}, &ErrInvalidRange{Header: header, Reason: "empty range"}
	}

	if end > total-1 {
		end = total - 1
	}
	if start < 0 || end < start || start > total-1 {
		return models.ByteRange{}, &ErrInvalidRange{Header: header, Reason: "range not satisfiable"}
	}

	return models.ByteRange{Start: start, End: end}, nil
}

// SerializeRange renders r back into a "bytes=start-end" header value, the
// inverse of ParseRangeHeader for round-trip verification.
func SerializeRange(r models.ByteRange) string {
	return fmt.Sprintf("bytes=%d-%d", r.Start, r.End)
}
