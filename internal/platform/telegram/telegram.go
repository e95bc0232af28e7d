package telegram

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yungbote/clipcut-backend/internal/config"
	"github.com/yungbote/clipcut-backend/internal/platform/logger"
)

// Client sends rendered clips to a Telegram chat via the Bot API.
// Delivery is best-effort; callers log and move on when SendVideo fails.
type Client interface {
	Configured() bool
	SendVideo(ctx context.Context, videoPath string, caption string) error
}

type client struct {
	log        *logger.Logger
	token      string
	chatID     string
	httpClient *http.Client
}

func New(cfg config.TelegramConfig, log *logger.Logger) Client {
	return &client{
		log:        log.With("service", "Telegram"),
		token:      strings.TrimSpace(cfg.BotToken),
		chatID:     strings.TrimSpace(cfg.ChatID),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *client) Configured() bool {
	return c.token != "" && c.chatID != ""
}

func (c *client) SendVideo(ctx context.Context, videoPath string, caption string) error {
	if !c.Configured() {
		return fmt.Errorf("telegram token or chat id not configured")
	}

	f, err := os.Open(videoPath)
	if err != nil {
		return fmt.Errorf("open clip: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		var werr error
		defer func() { pw.CloseWithError(werr) }()
		if werr = writer.WriteField("chat_id", c.chatID); werr != nil {
			return
		}
		if caption != "" {
			if werr = writer.WriteField("caption", caption); werr != nil {
				return
			}
		}
		part, err := writer.CreateFormFile("video", filepath.Base(videoPath))
		if err != nil {
			werr = err
			return
		}
		if _, werr = io.Copy(part, f); werr != nil {
			return
		}
		werr = writer.Close()
	}()

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendVideo", c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram sendVideo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("telegram sendVideo: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	c.log.Info("Clip sent to Telegram", "file", filepath.Base(videoPath))
	return nil
}
