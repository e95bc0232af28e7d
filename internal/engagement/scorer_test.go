package engagement

import (
	"math"
	"testing"
)

func flatWindows(duration int, energy float64) []EnergyWindow {
	out := make([]EnergyWindow, 0, duration)
	for i := 0; i < duration; i++ {
		out = append(out, EnergyWindow{Start: float64(i), End: float64(i + 1), Energy: energy})
	}
	return out
}

func TestScoreSegments_WindowCountAndRange(t *testing.T) {
	windows := flatWindows(120, 0.5)
	scored := ScoreSegments(windows, []float64{10, 45.5, 90}, 120)

	if len(scored) != 120 {
		t.Fatalf("expected 120 scored windows, got %d", len(scored))
	}
	for _, s := range scored {
		if s.EngagementScore < 1 || s.EngagementScore > 10 {
			t.Fatalf("score out of range at t=%.0f: %v", s.Start, s.EngagementScore)
		}
		if s.EngagementScore != math.Trunc(s.EngagementScore) {
			t.Fatalf("heuristic score not integral at t=%.0f: %v", s.Start, s.EngagementScore)
		}
	}
}

func TestScoreSegments_MidpointPeaks(t *testing.T) {
	// Flat energy, no scene changes: only the position term varies, so
	// the midpoint should score highest and the extremes lowest.
	scored := ScoreSegments(flatWindows(120, 0.5), nil, 120)

	first, mid, last := scored[0], scored[60], scored[119]
	if mid.EngagementScore <= first.EngagementScore || mid.EngagementScore <= last.EngagementScore {
		t.Fatalf("midpoint should outscore extremes: first=%v mid=%v last=%v",
			first.EngagementScore, mid.EngagementScore, last.EngagementScore)
	}
	if first.EngagementScore != 2 {
		t.Fatalf("expected score 2 at start, got %v", first.EngagementScore)
	}
	if mid.EngagementScore != 5 {
		t.Fatalf("expected score 5 at midpoint, got %v", mid.EngagementScore)
	}
	if first.AudioScore != 2.0 {
		t.Fatalf("expected constant audio score 2.0, got %v", first.AudioScore)
	}
}

func TestScoreSegments_SceneBoundary(t *testing.T) {
	// Window 10..11 has midpoint 10.5. A cut 1.999s away counts, a cut
	// exactly 2.0s away does not.
	windows := []EnergyWindow{{Start: 10, End: 11, Energy: 0}}

	near := ScoreSegments(windows, []float64{12.499}, 1000)
	if near[0].SceneScore != 3 {
		t.Fatalf("cut 1.999s from midpoint should score 3, got %v", near[0].SceneScore)
	}

	far := ScoreSegments(windows, []float64{12.5}, 1000)
	if far[0].SceneScore != 0 {
		t.Fatalf("cut exactly 2.0s from midpoint should score 0, got %v", far[0].SceneScore)
	}
}

func TestScoreSegments_ClampFloor(t *testing.T) {
	// Zero energy, no scenes, window far from the midpoint: raw total
	// rounds to 0 but the published score floors at 1.
	scored := ScoreSegments([]EnergyWindow{{Start: 0, End: 1, Energy: 0}}, nil, 10000)
	if scored[0].EngagementScore != 1 {
		t.Fatalf("expected floor score 1, got %v", scored[0].EngagementScore)
	}
}

func TestScoreSegments_ClampCeiling(t *testing.T) {
	// Max energy, scene hit, midpoint position: 4+3+3 caps at 10.
	scored := ScoreSegments([]EnergyWindow{{Start: 4.5, End: 5.5, Energy: 1}}, []float64{5}, 10)
	if scored[0].EngagementScore != 10 {
		t.Fatalf("expected ceiling score 10, got %v", scored[0].EngagementScore)
	}
}
