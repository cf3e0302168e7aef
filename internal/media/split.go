package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
)

// Chunk is one fixed-length slice of the recording. Index is retained so
// chunk-local timestamps can be re-offset onto the global timeline.
type Chunk struct {
	Index         int
	StartSeconds  float64
	LengthSeconds float64
}

// PlanChunks partitions totalSeconds into chunks of chunkSeconds. The
// final chunk may be shorter; boundaries abut exactly, so no audio is
// duplicated or dropped.
func PlanChunks(totalSeconds, chunkSeconds float64) []Chunk {
	if totalSeconds <= 0 || chunkSeconds <= 0 {
		return nil
	}
	var chunks []Chunk
	for start := 0.0; start < totalSeconds; start += chunkSeconds {
		length := chunkSeconds
		if start+length > totalSeconds {
			length = totalSeconds - start
		}
		chunks = append(chunks, Chunk{
			Index:         len(chunks),
			StartSeconds:  start,
			LengthSeconds: length,
		})
	}
	return chunks
}

// Extractor cuts chunks out of the source file with ffmpeg, converting to
// 16kHz mono PCM WAV as the inference model expects.
type Extractor struct{}

func NewExtractor() Extractor {
	return Extractor{}
}

// Extract writes the chunk into dir and returns the artifact path. The
// artifact is owned exclusively by the worker processing this chunk and
// must be removed before the worker moves on.
func (e Extractor) Extract(ctx context.Context, src string, c Chunk, dir string) (string, error) {
	out := filepath.Join(dir, fmt.Sprintf("chunk_%04d.wav", c.Index))

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-i", src,
		"-ss", strconv.FormatFloat(c.StartSeconds, 'f', 3, 64),
		"-t", strconv.FormatFloat(c.LengthSeconds, 'f', 3, 64),
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		out,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffmpeg split chunk %d: %w: %s", c.Index, err, tail(stderr.String(), 400))
	}
	return out, nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
