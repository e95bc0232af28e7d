package gcs

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/clipcut-backend/internal/platform/logger"
)

// Bucket uploads local media artifacts to Google Cloud Storage. Used
// both to stage long audio for cloud transcription and as an optional
// delivery sink for rendered clips.
type Bucket interface {
	UploadFile(ctx context.Context, bucket string, key string, localPath string) (string, error)
	DeleteObject(ctx context.Context, bucket string, key string) error
	Close() error
}

type bucketClient struct {
	log    *logger.Logger
	client *storage.Client
}

func New(log *logger.Logger) (Bucket, error) {
	slog := log.With("service", "GCSBucket")

	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	ctx := context.Background()
	var (
		c   *storage.Client
		err error
	)
	if creds != "" {
		if strings.HasPrefix(creds, "{") {
			c, err = storage.NewClient(ctx, option.WithCredentialsJSON([]byte(creds)), option.WithScopes(storage.ScopeReadWrite))
		} else {
			c, err = storage.NewClient(ctx, option.WithCredentialsFile(creds), option.WithScopes(storage.ScopeReadWrite))
		}
	} else {
		c, err = storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
	}
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	return &bucketClient{log: slog, client: c}, nil
}

// UploadFile streams a local file into the bucket and returns its
// gs:// URI.
func (b *bucketClient) UploadFile(ctx context.Context, bucket string, key string, localPath string) (string, error) {
	if bucket == "" {
		return "", fmt.Errorf("bucket required")
	}
	if key == "" {
		return "", fmt.Errorf("key required")
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	w := b.client.Bucket(bucket).Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write to gcs: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close gcs writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", bucket, key), nil
}

func (b *bucketClient) DeleteObject(ctx context.Context, bucket string, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := b.client.Bucket(bucket).Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("delete gs://%s/%s: %w", bucket, key, err)
	}
	return nil
}

func (b *bucketClient) Close() error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Close()
}
