package services

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	videointelligence "cloud.google.com/go/videointelligence/apiv1"
	vipb "cloud.google.com/go/videointelligence/apiv1/videointelligencepb"
	"google.golang.org/api/option"

	"github.com/yungbote/clipcut-backend/internal/config"
	"github.com/yungbote/clipcut-backend/internal/platform/localmedia"
	"github.com/yungbote/clipcut-backend/internal/platform/logger"
)

// SceneDetector finds cut timestamps (seconds from start) in a video.
type SceneDetector interface {
	DetectScenes(ctx context.Context, videoPath string) ([]float64, error)
}

// NewSceneDetector selects the configured provider. The ffmpeg detector
// runs locally and is the default; the gcp detector ships the file to
// Video Intelligence for shot change annotation.
func NewSceneDetector(cfg *config.Config, log *logger.Logger, tools localmedia.Tools, bucket GCSUploader) (SceneDetector, error) {
	switch strings.ToLower(cfg.Scenes.Provider) {
	case "", "ffmpeg":
		return &ffmpegSceneDetector{
			log:       log.With("service", "FFmpegSceneDetector"),
			tools:     tools,
			threshold: cfg.Scenes.Threshold,
			hwaccel:   cfg.Scenes.HWAccel,
		}, nil
	case "gcp":
		if cfg.Scenes.GCSBucket == "" {
			return nil, fmt.Errorf("SCENES_GCS_BUCKET required for gcp scene provider")
		}
		if bucket == nil {
			return nil, fmt.Errorf("gcs client required for gcp scene provider")
		}
		return newGCPSceneDetector(cfg, log, bucket)
	default:
		return nil, fmt.Errorf("unknown scene provider %q", cfg.Scenes.Provider)
	}
}

type ffmpegSceneDetector struct {
	log       *logger.Logger
	tools     localmedia.Tools
	threshold float64
	hwaccel   string
}

func (d *ffmpegSceneDetector) DetectScenes(ctx context.Context, videoPath string) ([]float64, error) {
	return d.tools.DetectScenes(ctx, videoPath, localmedia.SceneDetectOptions{
		Threshold: d.threshold,
		HWAccel:   d.hwaccel,
	})
}

type gcpSceneDetector struct {
	log        *logger.Logger
	client     *videointelligence.Client
	bucket     GCSUploader
	bucketName string
}

func newGCPSceneDetector(cfg *config.Config, log *logger.Logger, bucket GCSUploader) (SceneDetector, error) {
	slog := log.With("service", "GCPSceneDetector")

	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	ctx := context.Background()
	opts := []option.ClientOption{}
	if creds != "" {
		if strings.HasPrefix(creds, "{") {
			opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
		} else {
			opts = append(opts, option.WithCredentialsFile(creds))
		}
	}
	c, err := videointelligence.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("videointelligence client: %w", err)
	}

	return &gcpSceneDetector{
		log:        slog,
		client:     c,
		bucket:     bucket,
		bucketName: cfg.Scenes.GCSBucket,
	}, nil
}

func (d *gcpSceneDetector) DetectScenes(ctx context.Context, videoPath string) ([]float64, error) {
	key := fmt.Sprintf("scene-staging/%s", baseName(videoPath)+".mp4")
	gcsURI, err := d.bucket.UploadFile(ctx, d.bucketName, key, videoPath)
	if err != nil {
		return nil, fmt.Errorf("stage video for shot detection: %w", err)
	}
	defer func() {
		if derr := d.bucket.DeleteObject(context.Background(), d.bucketName, key); derr != nil {
			d.log.Warn("Failed to delete staged video", "key", key, "error", derr)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	req := &vipb.AnnotateVideoRequest{
		InputUri: gcsURI,
		Features: []vipb.Feature{vipb.Feature_SHOT_CHANGE_DETECTION},
	}
	op, err := d.client.AnnotateVideo(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("videointelligence AnnotateVideo: %w", err)
	}
	resp, err := op.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("videointelligence wait: %w", err)
	}

	var times []float64
	for _, ar := range resp.GetAnnotationResults() {
		for _, shot := range ar.GetShotAnnotations() {
			// A cut is the start of each shot after the first.
			start := shot.GetStartTimeOffset().AsDuration().Seconds()
			if start > 0 {
				times = append(times, start)
			}
		}
	}
	sort.Float64s(times)
	return times, nil
}
