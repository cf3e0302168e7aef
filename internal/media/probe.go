package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	maxmeet_errors "github.com/seanyjeong/max-meeting-sub000/pkg/errors"
)

// Prober determines the true duration of an audio file. Browser-recorded
// containers (notably WebM/Opus from MediaRecorder) often carry a missing
// or zero duration, so a fast metadata read is tried first and a full
// decode pass is the fallback.
type Prober struct{}

func NewProber() Prober {
	return Prober{}
}

// Duration returns the audio length in seconds. When neither the metadata
// nor a full decode yields a usable duration, ErrMediaDecode is returned
// and the recording must fail without ever reaching transcription.
func (p Prober) Duration(ctx context.Context, path string) (float64, error) {
	out, err := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err == nil {
		if d, ok := parseProbeDuration(string(out)); ok {
			return d, nil
		}
	}

	// Metadata missing or wrong: decode the whole stream and measure.
	cmd := exec.CommandContext(ctx, "ffmpeg", "-i", path, "-f", "null", "-")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	_ = cmd.Run() // ffmpeg exits nonzero for some decodable streams; the stderr log decides
	if d, ok := parseDecodeDuration(stderr.String()); ok {
		return d, nil
	}

	return 0, fmt.Errorf("%w: %s", maxmeet_errors.ErrMediaDecode, path)
}

func parseProbeDuration(out string) (float64, bool) {
	s := strings.TrimSpace(out)
	if s == "" || s == "N/A" {
		return 0, false
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

var decodeTimeRe = regexp.MustCompile(`time=(\d+):(\d+):(\d+\.?\d*)`)

// parseDecodeDuration extracts the last time=HH:MM:SS.cc progress marker
// from an ffmpeg decode log, which is the measured stream length.
func parseDecodeDuration(stderr string) (float64, bool) {
	matches := decodeTimeRe.FindAllStringSubmatch(stderr, -1)
	if len(matches) == 0 {
		return 0, false
	}
	last := matches[len(matches)-1]
	hours, _ := strconv.Atoi(last[1])
	minutes, _ := strconv.Atoi(last[2])
	seconds, _ := strconv.ParseFloat(last[3], 64)
	d := float64(hours)*3600 + float64(minutes)*60 + seconds
	if d <= 0 {
		return 0, false
	}
	return d, true
}
