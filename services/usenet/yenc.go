package usenet

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"log"
	"regexp"
	"strconv"
	"strings"
)

// DecodedArticle is the output of decoding one yEnc-encoded article body.
type DecodedArticle struct {
	Header  map[string]string
	Trailer map[string]string
	Data    []byte
}

var (
	ybeginPattern = regexp.MustCompile(`=ybegin\s+(.*)`)
	ypartPattern  = regexp.MustCompile(`=ypart\s+(.*)`)
	yendPattern   = regexp.MustCompile(`=yend\s+(.*)`)
	fieldPattern  = regexp.MustCompile(`(\w+)=("[^"]*"|\S+)`)
)

const (
	yencHeaderSearchLines  = 10
	yencTrailerSearchLines = 5
)

// DecodeYenc decodes a single yEnc-encoded article body.
func DecodeYenc(body []byte) (DecodedArticle, error) {
	lines := bytes.Split(body, []byte("\n"))

	headerLineIdx, header := findHeader(lines, ybeginPattern, yencHeaderSearchLines)
	if headerLineIdx < 0 {
		return DecodedArticle{}, fmt.Errorf("usenet: no =ybegin header found")
	}

	partLineIdx := -1
	var part map[string]string
	for i := headerLineIdx + 1; i < len(lines) && i < headerLineIdx+3; i++ {
		if m := ypartPattern.FindSubmatch(lines[i]); m != nil {
			part = parseFields(string(m[1]))
			partLineIdx = i
			break
		}
	}

	for k, v := range header {
		if _, ok := part[k]; !ok && part != nil {
			part[k] = v
		}
	}

	trailerStart := len(lines) - yencTrailerSearchLines
	if trailerStart < 0 {
		trailerStart = 0
	}
	trailerLineIdx, trailer := findHeader(lines[trailerStart:], yendPattern, len(lines)-trailerStart)
	if trailerLineIdx < 0 {
		return DecodedArticle{}, fmt.Errorf("usenet: no =yend trailer found")
	}
	trailerLineIdx += trailerStart

	bodyStart := headerLineIdx + 1
	if partLineIdx >= 0 {
		bodyStart = partLineIdx + 1
	}
	data := decodeBody(lines[bodyStart:trailerLineIdx])

	if expected, ok := trailer["size"]; ok {
		if n, err := strconv.Atoi(expected); err == nil && n != len(data) {
			log.Printf("[usenet] yenc size mismatch: header says %d, decoded %d", n, len(data))
		}
	}
	if expectedCRC, ok := trailer["crc32"]; ok {
		validateCRC(expectedCRC, data)
	} else if expectedCRC, ok := trailer["pcrc32"]; ok {
		validateCRC(expectedCRC, data)
	}

	return DecodedArticle{Header: header, Trailer: trailer, Data: data}, nil
}

func validateCRC(expectedHex string, data []byte) {
	expectedHex = strings.TrimPrefix(strings.ToLower(expectedHex), "0x")
	expected, err := strconv.ParseUint(expectedHex, 16, 32)
	if err != nil {
		return
	}
	actual := crc32.ChecksumIEEE(data)
	if uint32(expected) != actual {
		log.Printf("[usenet] yenc crc32 mismatch: expected %08x, got %08x (tolerated)", expected, actual)
	}
}

func findHeader(lines [][]byte, pattern *regexp.Regexp, limit int) (int, map[string]string) {
	for i := 0; i < len(lines) && i < limit; i++ {
		if m := pattern.FindSubmatch(lines[i]); m != nil {
			return i, parseFields(string(m[1]))
		}
	}
	return -1, nil
}

func parseFields(s string) map[string]string {
	fields := make(map[string]string)
	for _, m := range fieldPattern.FindAllStringSubmatch(s, -1) {
		fields[m[1]] = strings.Trim(m[2], `"`)
	}
	return fields
}

// decodeBody applies the yEnc byte transform to the encoded body lines,
// stripping CR and the line's trailing LF, and resolving `=`-escaped bytes.
func decodeBody(lines [][]byte) []byte {
	var out bytes.Buffer
	out.Grow(len(lines) * 128)

	for _, line := range lines {
		line = bytes.TrimRight(line, "\r")
		escaped := false
		for _, b := range line {
			if escaped {
				out.WriteByte(b - 64 - 42)
				escaped = false
				continue
			}
			if b == '=' {
				escaped = true
				continue
			}
			out.WriteByte(b - 42)
		}
	}
	return out.Bytes()
}
