package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/yungbote/clipcut-backend/internal/config"
	"github.com/yungbote/clipcut-backend/internal/domain"
	"github.com/yungbote/clipcut-backend/internal/platform/logger"
	"github.com/yungbote/clipcut-backend/internal/platform/telegram"
)

// ClipNotifier pushes finished clips to the configured sinks. Delivery
// is best-effort and never fails the render job.
type ClipNotifier interface {
	NotifyClip(ctx context.Context, clip *domain.Clip, videoTitle string, clipPath string)
}

type clipNotifier struct {
	log      *logger.Logger
	telegram telegram.Client
	bucket   GCSUploader
	upload   config.UploadConfig
}

func NewClipNotifier(tg telegram.Client, bucket GCSUploader, upload config.UploadConfig, log *logger.Logger) ClipNotifier {
	return &clipNotifier{
		log:      log.With("service", "ClipNotifier"),
		telegram: tg,
		bucket:   bucket,
		upload:   upload,
	}
}

func (n *clipNotifier) NotifyClip(ctx context.Context, clip *domain.Clip, videoTitle string, clipPath string) {
	caption := n.buildCaption(clip, videoTitle)

	if n.telegram != nil && n.telegram.Configured() {
		sendCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		if err := n.telegram.SendVideo(sendCtx, clipPath, caption); err != nil {
			n.log.Error("Telegram dispatch failed", "clip_id", clip.ID, "error", err)
		} else {
			n.log.Info("Clip sent to Telegram", "clip_id", clip.ID, "rank", clip.Rank)
		}
		cancel()
	}

	if n.bucket != nil && n.upload.GCSBucket != "" {
		key := filepath.Base(clipPath)
		if n.upload.Prefix != "" {
			key = strings.TrimSuffix(n.upload.Prefix, "/") + "/" + key
		}
		uri, err := n.bucket.UploadFile(ctx, n.upload.GCSBucket, key, clipPath)
		if err != nil {
			n.log.Error("Clip upload failed", "clip_id", clip.ID, "error", err)
		} else {
			n.log.Info("Clip uploaded", "clip_id", clip.ID, "uri", uri)
		}
	}
}

func (n *clipNotifier) buildCaption(clip *domain.Clip, videoTitle string) string {
	var b strings.Builder
	title := videoTitle
	if title == "" {
		title = "New clip"
	}
	fmt.Fprintf(&b, "%s #%d", title, clip.Rank)
	fmt.Fprintf(&b, "\nScore: %.1f/10", clip.EngagementScore)
	if clip.Duration != nil {
		fmt.Fprintf(&b, " | %.0fs", *clip.Duration)
	}
	if clip.Hashtags != nil && *clip.Hashtags != "" {
		fmt.Fprintf(&b, "\n%s", *clip.Hashtags)
	}
	return b.String()
}
