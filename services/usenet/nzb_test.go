package usenet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycore/relaycore/models"
)

const sampleNzb = `<?xml version="1.0" encoding="UTF-8"?>
<nzb xmlns="http://www.newzbin.com/DTD/2003/nzb">
  <file poster="poster@example.com" date="1700000000" subject="[001/002] &quot;Movie.2024.1080p.mkv&quot; yEnc (1/10)">
    <groups><group>alt.binaries.movies</group></groups>
    <segments>
      <segment bytes="500000" number="2">msg2@example.com</segment>
      <segment bytes="500000" number="1">msg1@example.com</segment>
    </segments>
  </file>
  <file poster="poster@example.com" date="1700000000" subject="[002/002] &quot;Movie.2024.1080p.part1.rar&quot; yEnc (1/5)">
    <groups><group>alt.binaries.movies</group></groups>
    <segments>
      <segment bytes="900000" number="1">msg3@example.com</segment>
    </segments>
  </file>
</nzb>`

func TestParseNzbDerivesFileNamesAndSortsSegments(t *testing.T) {
	parsed, err := ParseNzb([]byte(sampleNzb))
	require.NoError(t, err)
	require.Len(t, parsed.Files, 2)

	mkv := parsed.Files[0]
	assert.Equal(t, "Movie.2024.1080p.mkv", mkv.FileName)
	assert.False(t, mkv.IsRAR)
	require.Len(t, mkv.Segments, 2)
	assert.Equal(t, 1, mkv.Segments[0].Number)
	assert.Equal(t, 2, mkv.Segments[1].Number)

	rar := parsed.Files[1]
	assert.True(t, rar.IsRAR)
}

func TestParseNzbSelectsNonRarMediaFiles(t *testing.T) {
	parsed, err := ParseNzb([]byte(sampleNzb))
	require.NoError(t, err)
	require.Len(t, parsed.MediaFiles, 1)
	assert.Equal(t, "Movie.2024.1080p.mkv", parsed.MediaFiles[0].FileName)
}

func TestParseNzbAggregatesGroupsAndHash(t *testing.T) {
	parsed, err := ParseNzb([]byte(sampleNzb))
	require.NoError(t, err)
	assert.Equal(t, []string{"alt.binaries.movies"}, parsed.Groups)
	assert.Len(t, parsed.Hash, 64)
}

func TestIsRarOnlyNzbDetectsAllRarQualifyingFiles(t *testing.T) {
	parsed := models.ParsedNzb{
		Files: []models.NzbFile{
			{FileName: "movie.part1.rar", IsRAR: true, Size: 20 * 1024 * 1024},
			{FileName: "movie.part2.rar", IsRAR: true, Size: 20 * 1024 * 1024},
		},
	}
	assert.True(t, IsRarOnlyNzb(parsed))
}

func TestIsRarOnlyNzbFalseWhenAnyQualifyingFileIsMedia(t *testing.T) {
	parsed := models.ParsedNzb{
		Files: []models.NzbFile{
			{FileName: "movie.mkv", IsRAR: false, Size: 20 * 1024 * 1024},
			{FileName: "movie.part1.rar", IsRAR: true, Size: 20 * 1024 * 1024},
		},
	}
	assert.False(t, IsRarOnlyNzb(parsed))
}

func TestIsRarOnlyNzbIgnoresSmallAndSampleFiles(t *testing.T) {
	parsed := models.ParsedNzb{
		Files: []models.NzbFile{
			{FileName: "sample.mkv", IsRAR: false, Size: 20 * 1024 * 1024},
			{FileName: "tiny.rar", IsRAR: true, Size: 1024},
		},
	}
	assert.False(t, IsRarOnlyNzb(parsed))
}

func TestHasRecognizedExtension(t *testing.T) {
	assert.True(t, HasRecognizedExtension("Movie.2024.1080p.MKV"))
	assert.False(t, HasRecognizedExtension("Movie.2024.1080p.xyz"))
}
