package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/clipcut-backend/internal/platform/llm"
	"github.com/yungbote/clipcut-backend/internal/platform/logger"
)

// Captioner produces short social copy for rendered clips. Every
// method is best-effort: when the model is disabled or fails, callers
// get an empty string and the pipeline carries on.
type Captioner interface {
	ShortCaption(ctx context.Context, transcriptText string) string
	VideoTitle(ctx context.Context, transcriptText string) string
	Hashtags(ctx context.Context, transcriptText string) string
}

type captioner struct {
	log *logger.Logger
	llm llm.Client
}

func NewCaptioner(client llm.Client, log *logger.Logger) Captioner {
	return &captioner{
		log: log.With("service", "Captioner"),
		llm: client,
	}
}

func (c *captioner) ShortCaption(ctx context.Context, transcriptText string) string {
	if c.llm == nil || len(transcriptText) < 10 {
		return ""
	}
	prompt := fmt.Sprintf(
		"Read this video transcript excerpt and write a SINGLE, SHORT, VIRAL caption (max 15 words). "+
			"No hashtags, no quotes, just the hook.\n\nTranscript:\n%s",
		truncateText(transcriptText, 1000))
	out, err := c.llm.Chat(ctx, "You are a social media expert who writes viral hooks.", prompt)
	if err != nil {
		c.log.Warn("Caption generation failed", "error", err)
		return ""
	}
	return cleanLine(out)
}

func (c *captioner) VideoTitle(ctx context.Context, transcriptText string) string {
	if c.llm == nil || len(transcriptText) < 50 {
		return ""
	}
	prompt := fmt.Sprintf(
		"Generate a short, descriptive title (max 7 words) for this video based on the transcript. "+
			"Avoid clickbait, just describe the content accurately but engagingly.\n\nTranscript:\n%s",
		truncateText(transcriptText, 1500))
	out, err := c.llm.Chat(ctx, "You are a professional video editor.", prompt)
	if err != nil {
		c.log.Warn("Title generation failed", "error", err)
		return ""
	}
	return cleanLine(out)
}

func (c *captioner) Hashtags(ctx context.Context, transcriptText string) string {
	if c.llm == nil || len(transcriptText) < 10 {
		return ""
	}
	prompt := fmt.Sprintf(
		"Suggest up to 5 relevant hashtags for a short-form video with this transcript. "+
			"Reply with the hashtags only, space separated, each starting with #.\n\nTranscript:\n%s",
		truncateText(transcriptText, 1000))
	out, err := c.llm.Chat(ctx, "You are a social media expert.", prompt)
	if err != nil {
		c.log.Warn("Hashtag generation failed", "error", err)
		return ""
	}
	return normalizeHashtags(out)
}

func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func cleanLine(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// normalizeHashtags keeps only #-prefixed tokens, capped at five.
func normalizeHashtags(s string) string {
	fields := strings.Fields(s)
	var tags []string
	for _, f := range fields {
		f = strings.Trim(f, ",.;")
		if !strings.HasPrefix(f, "#") || len(f) < 2 {
			continue
		}
		tags = append(tags, f)
		if len(tags) == 5 {
			break
		}
	}
	return strings.Join(tags, " ")
}
