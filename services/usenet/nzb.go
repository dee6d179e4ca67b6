// Package usenet implements the NZB/yEnc/NNTP streaming core: parsing,
// multi-provider connection pooling, range-seekable decode, and the stream
// service facade.
package usenet

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/javi11/nzbparser"

	"github.com/relaycore/relaycore/models"
)

// mediaExtensionPriority orders candidate media files for preferential
// streaming; lower sorts first. Extensions absent from this map are still
// treated as media (priority falls back to a high default) as long as they
// aren't RAR.
var mediaExtensionPriority = map[string]int{
	".mp4":  0,
	".m4v":  1,
	".mkv":  2,
	".webm": 3,
	".mov":  4,
	".avi":  5,
	".mpg":  6,
	".mpeg": 6,
	".ts":   7,
	".m2ts": 7,
	".mts":  7,
}

var (
	rarPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\.rar$`),
		regexp.MustCompile(`(?i)\.r\d{2}$`),
		regexp.MustCompile(`(?i)\.part\d+\.rar$`),
		regexp.MustCompile(`(?i)\.\d{3}$`),
	}
	subjectQuoted        = regexp.MustCompile(`"([^"]+)"`)
	subjectYencStyle     = regexp.MustCompile(`(?i)yEnc\s*\(\d+/\d+\)\s*(\S+)`)
	subjectTrailingName  = regexp.MustCompile(`([\w.\-]+\.[A-Za-z0-9]{1,6})\s*$`)
	sampleNamePattern    = regexp.MustCompile(`(?i)sample`)
)

const (
	rarOnlyMinSize = 10 * 1024 * 1024
)

// ParseNzb parses raw NZB document bytes into a ParsedNzb, delegating the XML
// decode itself to nzbparser.Parse (the same library the teacher reaches for
// in services/playback/service.go) and layering this package's own filename
// derivation, RAR classification, and media selection on top — nzbparser
// gives us the wire-format file/segment list, not the streaming-specific
// classification this package needs.
func ParseNzb(raw []byte) (models.ParsedNzb, error) {
	sum := sha256.Sum256(raw)
	hash := hex.EncodeToString(sum[:])

	doc, err := nzbparser.Parse(bytes.NewReader(raw))
	if err != nil {
		return models.ParsedNzb{}, err
	}

	groupSet := make(map[string]struct{})
	files := make([]models.NzbFile, 0, len(doc.Files))

	for _, xf := range doc.Files {
		segments := make([]models.NzbSegment, 0, len(xf.Segments))
		var fileSize int64
		for _, xs := range xf.Segments {
			segments = append(segments, models.NzbSegment{
				MessageID:      strings.Trim(xs.Id, " \t\r\n<>"),
				Number:         xs.Number,
				EstimatedBytes: int64(xs.Bytes),
			})
			fileSize += int64(xs.Bytes)
		}
		sort.Slice(segments, func(i, j int) bool { return segments[i].Number < segments[j].Number })

		name := deriveFileName(xf.Subject)
		isRAR := isRarName(name)

		for _, g := range xf.Groups {
			groupSet[g] = struct{}{}
		}

		files = append(files, models.NzbFile{
			Poster:   xf.Poster,
			PostDate: unixOrZero(xf.Date.Unix()),
			Subject:  xf.Subject,
			Groups:   xf.Groups,
			Segments: segments,
			FileName: name,
			IsRAR:    isRAR,
			Size:     fileSize,
		})
	}

	groups := make([]string, 0, len(groupSet))
	for g := range groupSet {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	var totalSize int64
	for _, f := range files {
		totalSize += f.Size
	}

	mediaFiles := selectMediaFiles(files)

	return models.ParsedNzb{
		Hash:       hash,
		Files:      files,
		MediaFiles: mediaFiles,
		TotalSize:  totalSize,
		Groups:     groups,
	}, nil
}

func deriveFileName(subject string) string {
	if m := subjectQuoted.FindStringSubmatch(subject); m != nil {
		return m[1]
	}
	if m := subjectYencStyle.FindStringSubmatch(subject); m != nil {
		return m[1]
	}
	if m := subjectTrailingName.FindStringSubmatch(subject); m != nil {
		return m[1]
	}
	if len(subject) > 100 {
		return subject[:100]
	}
	return subject
}

func isRarName(name string) bool {
	for _, p := range rarPatterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

// selectMediaFiles returns the non-RAR files, sorted by size descending for
// preferential streaming, then by the extension priority table.
func selectMediaFiles(files []models.NzbFile) []models.NzbFile {
	media := make([]models.NzbFile, 0, len(files))
	for _, f := range files {
		if !f.IsRAR {
			media = append(media, f)
		}
	}
	sort.SliceStable(media, func(i, j int) bool {
		if media[i].Size != media[j].Size {
			return media[i].Size > media[j].Size
		}
		return extensionPriority(media[i].FileName) < extensionPriority(media[j].FileName)
	})
	return media
}

func extensionPriority(name string) int {
	lower := strings.ToLower(name)
	for ext, pri := range mediaExtensionPriority {
		if strings.HasSuffix(lower, ext) {
			return pri
		}
	}
	return len(mediaExtensionPriority)
}

// IsRarOnlyNzb reports whether every file above the sample-size threshold is
// a RAR part, with at least one qualifying file present. Streaming refuses
// such NZBs with a fatal requires_extraction error.
func IsRarOnlyNzb(parsed models.ParsedNzb) bool {
	qualifying := 0
	for _, f := range parsed.Files {
		if f.Size <= rarOnlyMinSize || sampleNamePattern.MatchString(f.FileName) {
			continue
		}
		qualifying++
		if !f.IsRAR {
			return false
		}
	}
	return qualifying > 0
}

// HasRecognizedExtension reports whether name's extension appears in the
// media extension priority table.
func HasRecognizedExtension(name string) bool {
	lower := strings.ToLower(name)
	for ext := range mediaExtensionPriority {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// SniffMediaType returns the content-sniffed MIME type for a sample of
// decoded bytes, the fallback classification path for files whose
// subject-derived name carries no recognizable extension.
func SniffMediaType(sample []byte) *mimetype.MIME {
	return mimetype.Detect(sample)
}

func unixOrZero(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
