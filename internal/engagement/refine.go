package engagement

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/yungbote/clipcut-backend/internal/domain"
	"github.com/yungbote/clipcut-backend/internal/platform/llm"
	"github.com/yungbote/clipcut-backend/internal/platform/logger"
)

const (
	refineTopN           = 8
	excerptMaxChars      = 1200
	refineSystemPrompt   = "You are an editor who scores video moments for replay-worthiness."
	heuristicBlendWeight = 0.4
	llmBlendWeight       = 0.6
)

type llmScoreItem struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	LLMScore float64 `json:"llm_score"`
	Reason   string  `json:"reason"`
}

// Refine asks the model to re-score the highest heuristic windows and
// blends the answers back in. Any failure along the way (no client,
// transport error, unparseable reply) returns the segments unchanged.
func Refine(ctx context.Context, client llm.Client, log *logger.Logger, segments []ScoredSegment, transcript []domain.TranscriptSegment) []ScoredSegment {
	if client == nil || len(segments) == 0 {
		return segments
	}

	top := topByScore(segments, refineTopN)
	attachSnippets(top, transcript)
	prompt := buildRefinePrompt(top, transcriptExcerpt(transcript, excerptMaxChars))

	raw, err := client.Chat(ctx, refineSystemPrompt, prompt)
	if err != nil {
		log.Warn("LLM refinement call failed, keeping heuristic scores", "error", err)
		return segments
	}

	items, err := parseLLMScores(raw)
	if err != nil {
		log.Warn("LLM refinement reply unparseable, keeping heuristic scores", "error", err)
		return segments
	}

	byStart := make(map[float64]llmScoreItem, len(items))
	for _, it := range items {
		byStart[round1(it.Start)] = it
	}

	out := make([]ScoredSegment, len(segments))
	copy(out, segments)
	for i := range out {
		it, ok := byStart[round1(out[i].Start)]
		if !ok {
			continue
		}
		score := it.LLMScore
		out[i].LLMScore = &score
		out[i].Reason = it.Reason
		out[i].EngagementScore = round2(out[i].EngagementScore*heuristicBlendWeight + score*llmBlendWeight)
	}
	return out
}

// topByScore returns copies of the n highest-scoring segments so that
// snippet attachment does not touch the caller's slice.
func topByScore(segments []ScoredSegment, n int) []ScoredSegment {
	sorted := make([]ScoredSegment, len(segments))
	copy(sorted, segments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EngagementScore > sorted[j].EngagementScore
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func attachSnippets(segments []ScoredSegment, transcript []domain.TranscriptSegment) {
	if len(transcript) == 0 {
		return
	}
	for i := range segments {
		for _, t := range transcript {
			if t.Start <= segments[i].Start && segments[i].Start <= t.End {
				segments[i].TranscriptSnippet = strings.TrimSpace(t.Text)
				break
			}
		}
	}
}

func transcriptExcerpt(transcript []domain.TranscriptSegment, maxChars int) string {
	var parts []string
	total := 0
	for _, seg := range transcript {
		t := strings.TrimSpace(seg.Text)
		if t == "" {
			continue
		}
		if total+len(t) > maxChars {
			break
		}
		parts = append(parts, t)
		total += len(t)
	}
	return strings.Join(parts, " ")
}

func buildRefinePrompt(top []ScoredSegment, excerpt string) string {
	var b strings.Builder
	for _, seg := range top {
		fmt.Fprintf(&b, "- t=%.1f-%.1fs, heuristic_score=%v, text='%s'\n",
			seg.Start, seg.End, seg.EngagementScore, seg.TranscriptSnippet)
	}
	return fmt.Sprintf(
		"You are ranking short replay-worthy moments. Given transcript snippets and heuristic scores, "+
			"assign an engagement score 1-10 and a short reason. Respond with JSON array of objects: "+
			"[{\"start\": float, \"end\": float, \"llm_score\": float, \"reason\": str}].\n"+
			"Transcript excerpt:\n%s\nTop heuristic segments:\n%s",
		excerpt, b.String())
}

// parseLLMScores accepts either a bare JSON array or an array buried
// inside surrounding prose, which chat models routinely produce.
func parseLLMScores(raw string) ([]llmScoreItem, error) {
	var items []llmScoreItem
	if err := json.Unmarshal([]byte(raw), &items); err == nil {
		return items, nil
	}
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in reply")
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &items); err != nil {
		return nil, fmt.Errorf("parse LLM scores: %w", err)
	}
	return items, nil
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
