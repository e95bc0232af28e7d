package engagement

import "math"

// EnergyWindow is one fixed 1-second bucket of normalized loudness.
type EnergyWindow struct {
	Start  float64
	End    float64
	Energy float64 // normalized [0,1]
}

// ScoredSegment is the per-window engagement record. EngagementScore
// starts as an integer 1..10 from the heuristic pass and may become a
// two-decimal blend after LLM refinement.
type ScoredSegment struct {
	Start             float64  `json:"start"`
	End               float64  `json:"end"`
	EngagementScore   float64  `json:"engagement_score"`
	AudioScore        float64  `json:"audio_score"`
	SceneScore        float64  `json:"scene_score"`
	PositionScore     float64  `json:"position_score"`
	LLMScore          *float64 `json:"llm_score,omitempty"`
	Reason            string   `json:"reason,omitempty"`
	TranscriptSnippet string   `json:"transcript_snippet,omitempty"`
}

// ScoreSegments combines three signals per window:
//
//	audio_score    = energy * 4            (0..4)
//	scene_score    = 3 when a scene change lands within 2s of the
//	                 window midpoint, else 0
//	position_score = (1 - |mid - dur/2| / (dur/2)) * 3   (0..3)
//
// The position term peaks at the temporal midpoint of the video. The
// total is clamped to [1,10] and rounded to the nearest integer.
func ScoreSegments(windows []EnergyWindow, sceneChanges []float64, duration float64) []ScoredSegment {
	scored := make([]ScoredSegment, 0, len(windows))
	for _, w := range windows {
		mid := (w.Start + w.End) / 2

		audioScore := w.Energy * 4

		sceneScore := 0.0
		for _, t := range sceneChanges {
			if math.Abs(t-mid) < 2.0 {
				sceneScore = 3
				break
			}
		}

		positionScore := 0.0
		if duration > 0 {
			half := duration / 2
			positionScore = (1 - math.Abs(mid-half)/half) * 3
		}

		total := audioScore + sceneScore + positionScore
		score := math.Round(total)
		if score < 1 {
			score = 1
		} else if score > 10 {
			score = 10
		}

		scored = append(scored, ScoredSegment{
			Start:           w.Start,
			End:             w.End,
			EngagementScore: score,
			AudioScore:      round2(audioScore),
			SceneScore:      sceneScore,
			PositionScore:   round2(positionScore),
		})
	}
	return scored
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
