package services

import (
	"context"
	"strings"
	"testing"

	"github.com/yungbote/clipcut-backend/internal/config"
	"github.com/yungbote/clipcut-backend/internal/domain"
	"github.com/yungbote/clipcut-backend/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

type fakeLLM struct {
	reply string
	err   error
}

func (f *fakeLLM) Chat(ctx context.Context, system string, user string) (string, error) {
	return f.reply, f.err
}

func TestNormalizeHashtags(t *testing.T) {
	got := normalizeHashtags("Here you go: #viral, #shorts #fyp not-a-tag # #one #two #three")
	want := "#viral #shorts #fyp #one #two"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestNormalizeHashtagsEmpty(t *testing.T) {
	if got := normalizeHashtags("no tags at all"); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}

func TestCleanLine(t *testing.T) {
	if got := cleanLine("  \"My Great Title\"\nsecond line  "); got != "My Great Title" {
		t.Fatalf("got %q", got)
	}
}

func TestTruncateText(t *testing.T) {
	if got := truncateText("abcdef", 4); got != "abcd" {
		t.Fatalf("got %q", got)
	}
	if got := truncateText("ab", 4); got != "ab" {
		t.Fatalf("got %q", got)
	}
}

const sampleTranscript = "Today we are walking through the whole release, from the first demo to the launch party, and none of it went to plan."

func TestCaptionerWithoutClient(t *testing.T) {
	c := NewCaptioner(nil, testLogger(t))
	if got := c.VideoTitle(context.Background(), sampleTranscript); got != "" {
		t.Fatalf("nil client should yield empty title, got %q", got)
	}
	if got := c.Hashtags(context.Background(), sampleTranscript); got != "" {
		t.Fatalf("nil client should yield empty hashtags, got %q", got)
	}
}

func TestCaptionerVideoTitle(t *testing.T) {
	c := NewCaptioner(&fakeLLM{reply: "\"Epic Moments\"\n"}, testLogger(t))
	if got := c.VideoTitle(context.Background(), sampleTranscript); got != "Epic Moments" {
		t.Fatalf("got %q", got)
	}
}

func TestCaptionerVideoTitleSkipsShortTranscripts(t *testing.T) {
	c := NewCaptioner(&fakeLLM{reply: "A Title"}, testLogger(t))
	if got := c.VideoTitle(context.Background(), "too short"); got != "" {
		t.Fatalf("short transcript should be skipped, got %q", got)
	}
}

func TestCaptionerHashtagsNormalized(t *testing.T) {
	c := NewCaptioner(&fakeLLM{reply: "Sure! #go #backend #clips plus commentary"}, testLogger(t))
	got := c.Hashtags(context.Background(), sampleTranscript)
	if got != "#go #backend #clips" {
		t.Fatalf("got %q", got)
	}
}

func TestBuildCaption(t *testing.T) {
	n := NewClipNotifier(nil, nil, config.UploadConfig{}, testLogger(t)).(*clipNotifier)
	dur := 30.0
	tags := "#viral #shorts"
	clip := &domain.Clip{
		Rank:            2,
		EngagementScore: 8.5,
		Duration:        &dur,
		Hashtags:        &tags,
	}
	got := n.buildCaption(clip, "Launch Day")
	want := "Launch Day #2\nScore: 8.5/10 | 30s\n#viral #shorts"
	if got != want {
		t.Fatalf("caption = %q, want %q", got, want)
	}
}

func TestBuildCaptionFallbackTitle(t *testing.T) {
	n := NewClipNotifier(nil, nil, config.UploadConfig{}, testLogger(t)).(*clipNotifier)
	got := n.buildCaption(&domain.Clip{Rank: 1, EngagementScore: 7}, "")
	if !strings.HasPrefix(got, "New clip #1") {
		t.Fatalf("caption = %q", got)
	}
}
