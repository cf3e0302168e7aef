package stt

import (
	"context"
)

// Segment is a chunk-local transcribed span. Timestamps are relative to
// the start of the audio file handed to the engine.
type Segment struct {
	StartSeconds float64
	EndSeconds   float64
	Text         string
	Confidence   float64
	Speaker      string
}

// Result bundles the segments of one inference pass.
type Result struct {
	Segments        []Segment
	Language        string
	DurationSeconds float64
}

// Engine is the pluggable speech-to-text capability. Implementations are
// resource-heavy and must be safe for use by one worker at a time per
// instance; the worker process holds exactly one lazily-loaded instance
// for its lifetime and injects it into pipeline runs.
type Engine interface {
	Transcribe(ctx context.Context, audioPath, language string) (Result, error)
}

// SpeakerTurn is one diarized span of a single speaker.
type SpeakerTurn struct {
	Speaker      string
	StartSeconds float64
	EndSeconds   float64
}

// Diarizer attributes time spans to speaker labels. Unavailability is
// soft: callers continue without labels rather than failing.
type Diarizer interface {
	// Available reports whether the capability is usable at all (model
	// installed, credentials present). Checked once per job.
	Available() bool
	Diarize(ctx context.Context, audioPath string) ([]SpeakerTurn, error)
}

// AssignSpeakers labels each segment with the speaker whose turns overlap
// it the most. Segments with no overlapping turn keep an empty label.
func AssignSpeakers(segments []Segment, turns []SpeakerTurn) []Segment {
	if len(turns) == 0 {
		return segments
	}
	out := make([]Segment, len(segments))
	copy(out, segments)
	for i := range out {
		best := ""
		bestOverlap := 0.0
		overlaps := map[string]float64{}
		for _, t := range turns {
			start := max(out[i].StartSeconds, t.StartSeconds)
			end := min(out[i].EndSeconds, t.EndSeconds)
			if end <= start {
				continue
			}
			overlaps[t.Speaker] += end - start
			if overlaps[t.Speaker] > bestOverlap {
				bestOverlap = overlaps[t.Speaker]
				best = t.Speaker
			}
		}
		out[i].Speaker = best
	}
	return out
}

// NoopDiarizer leaves speaker labels empty.
type NoopDiarizer struct{}

func (NoopDiarizer) Available() bool { return false }

func (NoopDiarizer) Diarize(ctx context.Context, audioPath string) ([]SpeakerTurn, error) {
	return nil, nil
}
