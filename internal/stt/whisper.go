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

//go:embed assets/faster_whisper.py
var whisperScript []byte

// WhisperEngine runs faster-whisper through an embedded python helper.
// The helper script (the process-lifetime artifact of the "model") is
// materialized exactly once per engine instance and reused by every job
// the worker picks up.
type WhisperEngine struct {
	model  string
	device string
	python string

	once       sync.Once
	scriptPath string
	initErr    error
}

func NewWhisperEngine(model, device string) *WhisperEngine {
	python := os.Getenv("STT_PYTHON")
	if python == "" {
		python = "python3"
	}
	return &WhisperEngine{model: model, device: device, python: python}
}

func (e *WhisperEngine) ensureLoaded() error {
	e.once.Do(func() {
		dir, err := os.MkdirTemp("", "maxmeet-stt-*")
		if err != nil {
			e.initErr = fmt.Errorf("create helper dir: %w", err)
			return
		}
		path := filepath.Join(dir, "faster_whisper.py")
		if err := os.WriteFile(path, whisperScript, 0o755); err != nil {
			e.initErr = fmt.Errorf("write helper script: %w", err)
			return
		}
		e.scriptPath = path
	})
	return e.initErr
}

type whisperOutput struct {
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start      float64 `json:"start"`
		End        float64 `json:"end"`
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	} `json:"segments"`
}

func (e *WhisperEngine) Transcribe(ctx context.Context, audioPath, language string) (Result, error) {
	if err := e.ensureLoaded(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", maxmeet_errors.ErrTranscriptionModel, err)
	}

	args := []string{e.scriptPath, "--audio", audioPath, "--model", e.model, "--device", e.device}
	if language != "" {
		args = append(args, "--language", language)
	}
	cmd := exec.CommandContext(ctx, e.python, args...)
	cmd.Env = os.Environ()

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		if ee, ok := err.(*exec.ExitError); ok {
			return Result{}, fmt.Errorf("%w: %s", maxmeet_errors.ErrTranscriptionModel, strings.TrimSpace(string(ee.Stderr)))
		}
		return Result{}, fmt.Errorf("%w: %v", maxmeet_errors.ErrTranscriptionModel, err)
	}

	var parsed whisperOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return Result{}, fmt.Errorf("%w: parse helper output: %v", maxmeet_errors.ErrTranscriptionModel, err)
	}

	result := Result{Language: parsed.Language, DurationSeconds: parsed.Duration}
	for _, s := range parsed.Segments {
		result.Segments = append(result.Segments, Segment{
			StartSeconds: s.Start,
			EndSeconds:   s.End,
			Text:         strings.TrimSpace(s.Text),
			Confidence:   s.Confidence,
		})
	}
	return result, nil
}
