package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/yungbote/clipcut-backend/internal/config"
	"github.com/yungbote/clipcut-backend/internal/domain"
	"github.com/yungbote/clipcut-backend/internal/platform/logger"
)

// GCSUploader is the slice of the storage client the providers need.
type GCSUploader interface {
	UploadFile(ctx context.Context, bucket string, key string, localPath string) (string, error)
	DeleteObject(ctx context.Context, bucket string, key string) error
}

// gcpTranscriber stages the audio in a bucket and runs a long-running
// recognize with word time offsets, then folds the results back into
// the transcript segment shape the pipeline stores.
type gcpTranscriber struct {
	log          *logger.Logger
	client       *speech.Client
	bucket       GCSUploader
	bucketName   string
	languageCode string
	maxRetries   int
}

func newGCPTranscriber(cfg *config.Config, log *logger.Logger, bucket GCSUploader) (Transcriber, error) {
	slog := log.With("service", "GCPSpeechTranscriber")

	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	ctx := context.Background()
	var (
		c   *speech.Client
		err error
	)
	if creds != "" {
		if strings.HasPrefix(creds, "{") {
			c, err = speech.NewClient(ctx, option.WithCredentialsJSON([]byte(creds)))
		} else {
			c, err = speech.NewClient(ctx, option.WithCredentialsFile(creds))
		}
	} else {
		c, err = speech.NewClient(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}

	return &gcpTranscriber{
		log:          slog,
		client:       c,
		bucket:       bucket,
		bucketName:   cfg.Speech.GCSBucket,
		languageCode: cfg.Speech.LanguageCode,
		maxRetries:   3,
	}, nil
}

func (t *gcpTranscriber) Transcribe(ctx context.Context, audioPath string, device string) (*TranscriptResult, error) {
	// Long audio requires a GCS source; stage it and clean up after.
	key := fmt.Sprintf("speech-staging/%s", baseName(audioPath)+".wav")
	gcsURI, err := t.bucket.UploadFile(ctx, t.bucketName, key, audioPath)
	if err != nil {
		return nil, fmt.Errorf("stage audio for transcription: %w", err)
	}
	defer func() {
		if derr := t.bucket.DeleteObject(context.Background(), t.bucketName, key); derr != nil {
			t.log.Warn("Failed to delete staged audio", "key", key, "error", derr)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	lang := t.languageCode
	if lang == "" {
		lang = "en-US"
	}
	req := &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            16000,
			AudioChannelCount:          1,
			LanguageCode:               lang,
			EnableAutomaticPunctuation: true,
			EnableWordTimeOffsets:      true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Uri{Uri: gcsURI},
		},
	}

	var resp *speechpb.LongRunningRecognizeResponse
	for attempt := 0; ; attempt++ {
		op, err := t.client.LongRunningRecognize(ctx, req)
		if err == nil {
			resp, err = op.Wait(ctx)
		}
		if err == nil {
			break
		}
		if attempt+1 >= t.maxRetries || !retryableGRPC(err) {
			return nil, fmt.Errorf("speech longrunningrecognize: %w", err)
		}
		t.log.Warn("Speech request retrying", "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 2 * time.Second):
		}
	}

	out := &TranscriptResult{Language: strings.ToLower(strings.SplitN(lang, "-", 2)[0])}
	for _, res := range resp.GetResults() {
		alts := res.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		alt := alts[0]
		text := strings.TrimSpace(alt.GetTranscript())
		if text == "" {
			continue
		}
		seg := domain.TranscriptSegment{Text: text}
		if words := alt.GetWords(); len(words) > 0 {
			seg.Start = words[0].GetStartTime().AsDuration().Seconds()
			seg.End = words[len(words)-1].GetEndTime().AsDuration().Seconds()
		}
		// The API reports confidence, not logprobs; stash it in the
		// confidence-like slot so downstream consumers see something.
		seg.AvgLogProb = float64(alt.GetConfidence())
		out.Segments = append(out.Segments, seg)
	}
	return out, nil
}

func retryableGRPC(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Internal:
		return true
	default:
		return false
	}
}
