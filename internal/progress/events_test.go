package progress

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPercentForClampsBelowHundred(t *testing.T) {
	assert.Equal(t, 0, PercentFor(0, 3))
	assert.Equal(t, 33, PercentFor(1, 3))
	assert.Equal(t, 66, PercentFor(2, 3))
	// Even the final chunk never reports 100; that is the finalizer's.
	assert.Equal(t, 99, PercentFor(3, 3))
	assert.Equal(t, 99, PercentFor(5, 3))
	assert.Equal(t, 0, PercentFor(1, 0))
}

func TestOnlyCompleteReportsHundred(t *testing.T) {
	id := uuid.New()

	events := []Event{
		Connected(id),
		Start(id, 3),
		ChunkComplete(id, 1, 3, ""),
		ChunkComplete(id, 2, 3, ""),
		ChunkComplete(id, 3, 3, ""),
		Error(id, "transcription_model", "boom", PercentFor(1, 3)),
	}
	for _, e := range events {
		assert.Less(t, e.Percent, 100, "kind %s", e.Kind)
	}

	done := Complete(id, Metrics{SegmentCount: 12, WordCount: 300, DurationSeconds: 1500})
	assert.Equal(t, 100, done.Percent)
	assert.True(t, done.Terminal())
}

func TestTerminalKinds(t *testing.T) {
	id := uuid.New()
	assert.False(t, Connected(id).Terminal())
	assert.False(t, Start(id, 1).Terminal())
	assert.False(t, ChunkComplete(id, 1, 2, "").Terminal())
	assert.True(t, Complete(id, Metrics{}).Terminal())
	assert.True(t, Error(id, "x", "y", 50).Terminal())
}

func TestChunkCompletePercentMonotonic(t *testing.T) {
	id := uuid.New()
	last := -1
	for done := 1; done <= 7; done++ {
		e := ChunkComplete(id, done, 7, "")
		assert.GreaterOrEqual(t, e.Percent, last)
		last = e.Percent
	}
}
