package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProbeDuration(t *testing.T) {
	d, ok := parseProbeDuration("1500.125\n")
	require.True(t, ok)
	assert.InDelta(t, 1500.125, d, 1e-9)

	_, ok = parseProbeDuration("N/A\n")
	assert.False(t, ok)

	_, ok = parseProbeDuration("")
	assert.False(t, ok)

	_, ok = parseProbeDuration("0.000000\n")
	assert.False(t, ok)
}

func TestParseDecodeDurationTakesLastMarker(t *testing.T) {
	stderr := `size=N/A time=00:05:00.00 bitrate=N/A speed=61.1x
size=N/A time=00:10:00.00 bitrate=N/A speed=60.9x
size=N/A time=00:25:00.50 bitrate=N/A speed=60.2x
video:0kB audio:140625kB subtitle:0kB`
	d, ok := parseDecodeDuration(stderr)
	require.True(t, ok)
	assert.InDelta(t, 1500.5, d, 1e-9)
}

func TestParseDecodeDurationNoMarkers(t *testing.T) {
	_, ok := parseDecodeDuration("file.webm: Invalid data found when processing input")
	assert.False(t, ok)
}

func TestPlanChunksExactAbutment(t *testing.T) {
	// 25 minutes with 10-minute chunks: 10, 10, 5.
	chunks := PlanChunks(1500, 600)
	require.Len(t, chunks, 3)

	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, float64(0), chunks[0].StartSeconds)
	assert.Equal(t, float64(600), chunks[0].LengthSeconds)

	assert.Equal(t, float64(600), chunks[1].StartSeconds)
	assert.Equal(t, float64(600), chunks[1].LengthSeconds)

	assert.Equal(t, float64(1200), chunks[2].StartSeconds)
	assert.Equal(t, float64(300), chunks[2].LengthSeconds)

	// Boundaries abut exactly.
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].StartSeconds+chunks[i-1].LengthSeconds, chunks[i].StartSeconds)
	}
}

func TestPlanChunksShortRecordingSingleChunk(t *testing.T) {
	chunks := PlanChunks(42.5, 600)
	require.Len(t, chunks, 1)
	assert.Equal(t, float64(0), chunks[0].StartSeconds)
	assert.InDelta(t, 42.5, chunks[0].LengthSeconds, 1e-9)
}

func TestPlanChunksExactMultiple(t *testing.T) {
	chunks := PlanChunks(1200, 600)
	require.Len(t, chunks, 2)
	assert.Equal(t, float64(600), chunks[1].LengthSeconds)
}

func TestPlanChunksInvalidInput(t *testing.T) {
	assert.Nil(t, PlanChunks(0, 600))
	assert.Nil(t, PlanChunks(-5, 600))
	assert.Nil(t, PlanChunks(100, 0))
}
