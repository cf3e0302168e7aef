package stt

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	maxmeet_errors "github.com/seanyjeong/max-meeting-sub000/pkg/errors"
)

//go:embed assets/diarize.py
var diarizeScript []byte

// PyannoteDiarizer runs pyannote speaker diarization through an embedded
// python helper. It needs a HuggingFace token; without one it reports
// itself unavailable and the pipeline proceeds unlabeled.
type PyannoteDiarizer struct {
	token  string
	python string

	once       sync.Once
	scriptPath string
	initErr    error
}

func NewPyannoteDiarizer(token string) *PyannoteDiarizer {
	python := os.Getenv("STT_PYTHON")
	if python == "" {
		python = "python3"
	}
	return &PyannoteDiarizer{token: token, python: python}
}

func (d *PyannoteDiarizer) Available() bool {
	return d.token != ""
}

func (d *PyannoteDiarizer) ensureLoaded() error {
	d.once.Do(func() {
		dir, err := os.MkdirTemp("", "maxmeet-diarize-*")
		if err != nil {
			d.initErr = err
			return
		}
		path := filepath.Join(dir, "diarize.py")
		if err := os.WriteFile(path, diarizeScript, 0o755); err != nil {
			d.initErr = err
			return
		}
		d.scriptPath = path
	})
	return d.initErr
}

type diarizeOutput struct {
	Turns []struct {
		Speaker string  `json:"speaker"`
		Start   float64 `json:"start"`
		End     float64 `json:"end"`
	} `json:"turns"`
}

func (d *PyannoteDiarizer) Diarize(ctx context.Context, audioPath string) ([]SpeakerTurn, error) {
	if !d.Available() {
		return nil, maxmeet_errors.ErrDiarizationUnavailable
	}
	if err := d.ensureLoaded(); err != nil {
		return nil, fmt.Errorf("%w: %v", maxmeet_errors.ErrDiarizationUnavailable, err)
	}

	cmd := exec.CommandContext(ctx, d.python, d.scriptPath, "--audio", audioPath)
	cmd.Env = append(os.Environ(), "HUGGINGFACE_TOKEN="+d.token)

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if ee, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("%w: %s", maxmeet_errors.ErrDiarizationUnavailable, strings.TrimSpace(string(ee.Stderr)))
		}
		return nil, fmt.Errorf("%w: %v", maxmeet_errors.ErrDiarizationUnavailable, err)
	}

	var parsed diarizeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("%w: parse helper output: %v", maxmeet_errors.ErrDiarizationUnavailable, err)
	}

	turns := make([]SpeakerTurn, 0, len(parsed.Turns))
	for _, t := range parsed.Turns {
		turns = append(turns, SpeakerTurn{Speaker: t.Speaker, StartSeconds: t.Start, EndSeconds: t.End})
	}
	return turns, nil
}
