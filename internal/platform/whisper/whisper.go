package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/yungbote/clipcut-backend/internal/platform/logger"
)

// Result mirrors the JSON the whisper CLI writes next to the audio
// file: full text, time-aligned segments and the detected language.
type Result struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

type Segment struct {
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Text         string  `json:"text"`
	AvgLogProb   float64 `json:"avg_logprob"`
	NoSpeechProb float64 `json:"no_speech_prob"`
}

type Options struct {
	Binary string
	Model  string // "base", "small", ...
	Device string // "cpu" or "cuda"
}

// Runner execs the local whisper CLI against an audio file.
type Runner interface {
	Transcribe(ctx context.Context, audioPath string, workDir string) (*Result, error)
}

type runner struct {
	log  *logger.Logger
	opts Options
}

func New(log *logger.Logger, opts Options) Runner {
	if opts.Binary == "" {
		opts.Binary = "whisper"
	}
	if opts.Model == "" {
		opts.Model = "small"
	}
	if opts.Device == "" {
		opts.Device = "cpu"
	}
	return &runner{log: log.With("service", "Whisper"), opts: opts}
}

func (r *runner) Transcribe(ctx context.Context, audioPath string, workDir string) (*Result, error) {
	if audioPath == "" {
		return nil, fmt.Errorf("audioPath required")
	}
	if _, err := exec.LookPath(r.opts.Binary); err != nil {
		return nil, fmt.Errorf("whisper binary %q not found in PATH (install openai-whisper, requires ffmpeg): %w", r.opts.Binary, err)
	}
	if workDir == "" {
		workDir = filepath.Dir(audioPath)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir workDir: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Hour)
	defer cancel()

	// fp16 speeds up CUDA inference; CPU runs must disable it.
	fp16 := "False"
	if r.opts.Device == "cuda" {
		fp16 = "True"
	}

	cmd := exec.CommandContext(ctx, r.opts.Binary,
		audioPath,
		"--model", r.opts.Model,
		"--device", r.opts.Device,
		"--fp16", fp16,
		"--output_format", "json",
		"--output_dir", workDir,
		"--verbose", "False",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("whisper failed: %w; out=%s", err, tail(string(out)))
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	jsonPath := filepath.Join(workDir, base+".json")
	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("whisper output missing at %s: %w", jsonPath, err)
	}

	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}
	return &res, nil
}

func tail(s string) string {
	const max = 2000
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}
