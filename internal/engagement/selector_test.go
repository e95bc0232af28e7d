package engagement

import "testing"

func segmentsWithScores(scores []float64) []ScoredSegment {
	out := make([]ScoredSegment, len(scores))
	for i, s := range scores {
		out[i] = ScoredSegment{Start: float64(i), End: float64(i + 1), EngagementScore: s}
	}
	return out
}

func uniformSegments(n int, score float64) []ScoredSegment {
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = score
	}
	return segmentsWithScores(scores)
}

func TestFindBestClips_NoOverlap(t *testing.T) {
	clips := FindBestClips(uniformSegments(300, 8), 20, 60, 7)
	if len(clips) == 0 {
		t.Fatal("expected clips from uniformly high-scoring segments")
	}
	if len(clips) > 5 {
		t.Fatalf("expected at most 5 clips, got %d", len(clips))
	}
	for i, a := range clips {
		for j, b := range clips {
			if i == j {
				continue
			}
			if a.End > b.Start && a.Start < b.End {
				t.Fatalf("clips %d and %d overlap: [%v,%v] vs [%v,%v]",
					i, j, a.Start, a.End, b.Start, b.End)
			}
		}
	}
}

func TestFindBestClips_DescendingOrder(t *testing.T) {
	scores := make([]float64, 200)
	for i := range scores {
		scores[i] = 3
	}
	for i := 50; i < 80; i++ {
		scores[i] = 9
	}
	for i := 120; i < 150; i++ {
		scores[i] = 8
	}
	clips := FindBestClips(segmentsWithScores(scores), 20, 60, 7)
	if len(clips) < 2 {
		t.Fatalf("expected at least 2 clips, got %d", len(clips))
	}
	for i := 1; i < len(clips); i++ {
		if clips[i].AvgEngagementScore > clips[i-1].AvgEngagementScore {
			t.Fatalf("clips not in descending score order: %v then %v",
				clips[i-1].AvgEngagementScore, clips[i].AvgEngagementScore)
		}
	}
	if clips[0].Start < 45 || clips[0].Start > 60 {
		t.Fatalf("best clip should cover the 9-score run, starts at %v", clips[0].Start)
	}
}

func TestFindBestClips_ThresholdFallback(t *testing.T) {
	// Scores of 3 never clear 7 or 5; the selector drops to 3 and finds
	// a clip rather than returning nothing.
	clips := FindBestClips(uniformSegments(60, 3), 20, 60, 7)
	if len(clips) == 0 {
		t.Fatal("fallback should always yield at least one clip")
	}
	if clips[0].AvgEngagementScore != 3 {
		t.Fatalf("expected avg score 3, got %v", clips[0].AvgEngagementScore)
	}
}

func TestFindBestClips_FallbackFloor(t *testing.T) {
	clips := FindBestClips(uniformSegments(30, 1), 20, 60, 7)
	if len(clips) == 0 {
		t.Fatal("floor threshold 1 should still match score-1 segments")
	}
}

func TestFindBestClips_ShortVideo(t *testing.T) {
	// Fewer segments than min duration: no window fits at any threshold.
	clips := FindBestClips(uniformSegments(10, 9), 20, 60, 7)
	if len(clips) != 0 {
		t.Fatalf("expected no clips when video shorter than min duration, got %d", len(clips))
	}
}

func TestFindBestClips_PrefersLLMScore(t *testing.T) {
	segments := uniformSegments(40, 4)
	high := 9.0
	for i := 0; i < 20; i++ {
		segments[i].LLMScore = &high
	}
	clips := FindBestClips(segments, 20, 20, 7)
	if len(clips) != 1 {
		t.Fatalf("expected exactly one clip, got %d", len(clips))
	}
	if clips[0].Start != 0 {
		t.Fatalf("expected the LLM-boosted run selected, start=%v", clips[0].Start)
	}
	if clips[0].AvgEngagementScore != 9 {
		t.Fatalf("expected avg 9 from llm scores, got %v", clips[0].AvgEngagementScore)
	}
}

func TestFindBestClips_WindowStep(t *testing.T) {
	// min 20 max 31 yields window lengths 20, 25 and 30 only.
	clips := FindBestClips(uniformSegments(100, 8), 20, 31, 7)
	for _, c := range clips {
		switch c.Duration {
		case 20, 25, 30:
		default:
			t.Fatalf("unexpected window length %v", c.Duration)
		}
	}
}
