package engagement

import "sort"

// ClipCandidate is one selected window, ordered by descending score.
// Ranks are assigned by the caller in list order.
type ClipCandidate struct {
	Start              float64 `json:"start"`
	End                float64 `json:"end"`
	Duration           float64 `json:"duration"`
	AvgEngagementScore float64 `json:"avg_engagement_score"`
}

const maxClips = 5

// FindBestClips slides windows of every candidate length from
// minDuration to maxDuration (step 5s) across the per-second segment
// sequence, keeps windows whose average score clears the threshold,
// and greedily picks the top non-overlapping ones. When nothing
// clears the threshold it retries with the threshold lowered by 2
// (floor 1), so any non-empty segment list yields at least one clip.
func FindBestClips(segments []ScoredSegment, minDuration, maxDuration float64, threshold float64) []ClipCandidate {
	var candidates []ClipCandidate

	for size := int(minDuration); size <= int(maxDuration); size += 5 {
		if size <= 0 || size > len(segments) {
			continue
		}
		for i := 0; i+size <= len(segments); i++ {
			window := segments[i : i+size]
			sum := 0.0
			for _, s := range window {
				sum += selectionScore(s)
			}
			avg := sum / float64(len(window))
			if avg >= threshold {
				candidates = append(candidates, ClipCandidate{
					Start:              window[0].Start,
					End:                window[len(window)-1].End,
					Duration:           float64(size),
					AvgEngagementScore: round2(avg),
				})
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].AvgEngagementScore > candidates[j].AvgEngagementScore
	})

	var final []ClipCandidate
	for _, c := range candidates {
		overlaps := false
		for _, kept := range final {
			if c.End > kept.Start && c.Start < kept.End {
				overlaps = true
				break
			}
		}
		if !overlaps {
			final = append(final, c)
		}
		if len(final) >= maxClips {
			break
		}
	}

	if len(final) == 0 && threshold > 1 {
		next := threshold - 2
		if next < 1 {
			next = 1
		}
		return FindBestClips(segments, minDuration, maxDuration, next)
	}
	return final
}

// selectionScore prefers the LLM refinement when one was recorded and
// is non-zero, falling back to the heuristic score.
func selectionScore(s ScoredSegment) float64 {
	if s.LLMScore != nil && *s.LLMScore != 0 {
		return *s.LLMScore
	}
	return s.EngagementScore
}
