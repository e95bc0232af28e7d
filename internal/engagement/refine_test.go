package engagement

import (
	"context"
	"testing"

	"github.com/yungbote/clipcut-backend/internal/domain"
	"github.com/yungbote/clipcut-backend/internal/platform/logger"
)

type fakeLLM struct {
	reply string
	err   error
	calls int
}

func (f *fakeLLM) Chat(ctx context.Context, system, user string) (string, error) {
	f.calls++
	return f.reply, f.err
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func TestRefine_BlendsMatchingStart(t *testing.T) {
	segments := []ScoredSegment{
		{Start: 0, End: 1, EngagementScore: 6},
		{Start: 1, End: 2, EngagementScore: 4},
	}
	client := &fakeLLM{reply: `[{"start": 0.0, "end": 1.0, "llm_score": 9, "reason": "strong hook"}]`}

	out := Refine(context.Background(), client, testLogger(t), segments, nil)

	if out[0].EngagementScore != 7.8 {
		t.Fatalf("expected blend 6*0.4+9*0.6=7.8, got %v", out[0].EngagementScore)
	}
	if out[0].LLMScore == nil || *out[0].LLMScore != 9 {
		t.Fatalf("expected llm_score recorded, got %v", out[0].LLMScore)
	}
	if out[0].Reason != "strong hook" {
		t.Fatalf("expected reason carried over, got %q", out[0].Reason)
	}
	if out[1].EngagementScore != 4 || out[1].LLMScore != nil {
		t.Fatalf("unmatched segment should be unchanged, got %+v", out[1])
	}
	// Caller's slice must not be mutated.
	if segments[0].EngagementScore != 6 {
		t.Fatalf("input slice mutated: %v", segments[0].EngagementScore)
	}
}

func TestRefine_ToleratesWrappedJSON(t *testing.T) {
	segments := []ScoredSegment{{Start: 2, End: 3, EngagementScore: 5}}
	client := &fakeLLM{reply: "Here are the scores:\n[{\"start\": 2.0, \"end\": 3.0, \"llm_score\": 10, \"reason\": \"peak\"}]\nHope that helps!"}

	out := Refine(context.Background(), client, testLogger(t), segments, nil)
	if out[0].EngagementScore != 8 {
		t.Fatalf("expected blend 5*0.4+10*0.6=8, got %v", out[0].EngagementScore)
	}
}

func TestRefine_FallsBackOnGarbage(t *testing.T) {
	segments := []ScoredSegment{{Start: 0, End: 1, EngagementScore: 6}}
	client := &fakeLLM{reply: "I cannot score these moments."}

	out := Refine(context.Background(), client, testLogger(t), segments, nil)
	if out[0].EngagementScore != 6 || out[0].LLMScore != nil {
		t.Fatalf("garbage reply should leave heuristics untouched, got %+v", out[0])
	}
}

func TestRefine_NilClientIsNoop(t *testing.T) {
	segments := []ScoredSegment{{Start: 0, End: 1, EngagementScore: 6}}
	out := Refine(context.Background(), nil, testLogger(t), segments, nil)
	if len(out) != 1 || out[0].EngagementScore != 6 {
		t.Fatalf("nil client should be a no-op, got %+v", out)
	}
}

func TestRefine_AttachesOverlappingSnippet(t *testing.T) {
	transcript := []domain.TranscriptSegment{
		{Start: 0, End: 5, Text: " the opening line "},
		{Start: 5, End: 10, Text: "the middle part"},
	}
	segments := []ScoredSegment{{Start: 6, End: 7, EngagementScore: 8}}

	top := topByScore(segments, refineTopN)
	attachSnippets(top, transcript)
	if top[0].TranscriptSnippet != "the middle part" {
		t.Fatalf("expected overlapping snippet, got %q", top[0].TranscriptSnippet)
	}
}

func TestTranscriptExcerpt_CapsLength(t *testing.T) {
	long := make([]domain.TranscriptSegment, 0, 100)
	for i := 0; i < 100; i++ {
		long = append(long, domain.TranscriptSegment{Text: "twenty characters xx"})
	}
	got := transcriptExcerpt(long, 100)
	if len(got) > 120 {
		t.Fatalf("excerpt too long: %d chars", len(got))
	}
	if got == "" {
		t.Fatal("expected non-empty excerpt")
	}
}
