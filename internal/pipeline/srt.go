package pipeline

import (
	"fmt"
	"strings"

	"github.com/yungbote/clipcut-backend/internal/domain"
)

// transcriptSlice returns the transcript segments overlapping the clip
// range, re-timed relative to the clip start and clamped to its bounds.
func transcriptSlice(transcript []domain.TranscriptSegment, clipStart, clipEnd float64) []domain.TranscriptSegment {
	var out []domain.TranscriptSegment
	for _, seg := range transcript {
		if seg.End <= clipStart || seg.Start >= clipEnd {
			continue
		}
		start := seg.Start - clipStart
		if start < 0 {
			start = 0
		}
		end := seg.End - clipStart
		if max := clipEnd - clipStart; end > max {
			end = max
		}
		out = append(out, domain.TranscriptSegment{
			Start: start,
			End:   end,
			Text:  strings.TrimSpace(seg.Text),
		})
	}
	return out
}

func transcriptText(segments []domain.TranscriptSegment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		t := strings.TrimSpace(seg.Text)
		if t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// buildSRT renders segments as SubRip text for ffmpeg's subtitles
// filter.
func buildSRT(segments []domain.TranscriptSegment) string {
	var b strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1, srtTimestamp(seg.Start), srtTimestamp(seg.End), seg.Text)
	}
	return b.String()
}

func srtTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int(seconds*1000 + 0.5)
	h := ms / 3600000
	ms -= h * 3600000
	m := ms / 60000
	ms -= m * 60000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
