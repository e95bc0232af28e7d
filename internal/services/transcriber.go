package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/yungbote/clipcut-backend/internal/config"
	"github.com/yungbote/clipcut-backend/internal/domain"
	"github.com/yungbote/clipcut-backend/internal/platform/logger"
	"github.com/yungbote/clipcut-backend/internal/platform/whisper"
)

// TranscriptResult is what every speech-to-text provider returns.
type TranscriptResult struct {
	Segments []domain.TranscriptSegment
	Language string
}

// Transcriber turns an extracted audio file into time-aligned text.
// The device preference comes from the per-run settings bundle, not
// from process-global state.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, device string) (*TranscriptResult, error)
}

// NewTranscriber selects the configured provider.
func NewTranscriber(cfg *config.Config, log *logger.Logger, bucket GCSUploader) (Transcriber, error) {
	switch strings.ToLower(cfg.Speech.Provider) {
	case "", "whisper":
		return &whisperTranscriber{
			log:     log.With("service", "WhisperTranscriber"),
			binary:  cfg.Speech.WhisperBinary,
			model:   cfg.Speech.WhisperModel,
			workDir: cfg.TranscriptsDir(),
		}, nil
	case "gcp":
		if cfg.Speech.GCSBucket == "" {
			return nil, fmt.Errorf("SPEECH_GCS_BUCKET required for gcp speech provider")
		}
		if bucket == nil {
			return nil, fmt.Errorf("gcs client required for gcp speech provider")
		}
		return newGCPTranscriber(cfg, log, bucket)
	default:
		return nil, fmt.Errorf("unknown speech provider %q", cfg.Speech.Provider)
	}
}

type whisperTranscriber struct {
	log     *logger.Logger
	binary  string
	model   string
	workDir string
}

func (t *whisperTranscriber) Transcribe(ctx context.Context, audioPath string, device string) (*TranscriptResult, error) {
	if device == "" {
		device = "cpu"
	}
	runner := whisper.New(t.log, whisper.Options{
		Binary: t.binary,
		Model:  t.model,
		Device: device,
	})
	res, err := runner.Transcribe(ctx, audioPath, filepath.Join(t.workDir, baseName(audioPath)))
	if err != nil {
		return nil, err
	}

	out := &TranscriptResult{Language: res.Language}
	for _, seg := range res.Segments {
		text := strings.TrimSpace(seg.Text)
		out.Segments = append(out.Segments, domain.TranscriptSegment{
			Start:        seg.Start,
			End:          seg.End,
			Text:         text,
			AvgLogProb:   seg.AvgLogProb,
			NoSpeechProb: seg.NoSpeechProb,
		})
	}
	return out, nil
}

func baseName(path string) string {
	b := filepath.Base(path)
	return strings.TrimSuffix(b, filepath.Ext(b))
}
