package pipeline

import (
	"strings"
	"testing"

	"github.com/yungbote/clipcut-backend/internal/domain"
)

func TestTranscriptSlice(t *testing.T) {
	transcript := []domain.TranscriptSegment{
		{Start: 0, End: 5, Text: "before"},
		{Start: 8, End: 12, Text: " straddles start "},
		{Start: 12, End: 18, Text: "inside"},
		{Start: 18, End: 25, Text: "straddles end"},
		{Start: 30, End: 35, Text: "after"},
	}
	got := transcriptSlice(transcript, 10, 20)
	if len(got) != 3 {
		t.Fatalf("got %d segments, want 3", len(got))
	}
	if got[0].Start != 0 || got[0].End != 2 || got[0].Text != "straddles start" {
		t.Fatalf("first segment = %+v", got[0])
	}
	if got[1].Start != 2 || got[1].End != 8 {
		t.Fatalf("second segment = %+v", got[1])
	}
	// Clamped to the clip length.
	if got[2].End != 10 {
		t.Fatalf("third segment end = %v, want 10", got[2].End)
	}
}

func TestTranscriptSliceNoOverlap(t *testing.T) {
	transcript := []domain.TranscriptSegment{{Start: 0, End: 5, Text: "x"}}
	if got := transcriptSlice(transcript, 10, 20); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestTranscriptText(t *testing.T) {
	segs := []domain.TranscriptSegment{
		{Text: " hello "},
		{Text: ""},
		{Text: "world"},
	}
	if got := transcriptText(segs); got != "hello world" {
		t.Fatalf("got %q", got)
	}
}

func TestBuildSRT(t *testing.T) {
	out := buildSRT([]domain.TranscriptSegment{
		{Start: 0, End: 2.5, Text: "first line"},
		{Start: 2.5, End: 65.04, Text: "second line"},
	})
	want := "1\n00:00:00,000 --> 00:00:02,500\nfirst line\n\n" +
		"2\n00:00:02,500 --> 00:01:05,040\nsecond line\n\n"
	if out != want {
		t.Fatalf("srt mismatch:\n%q\nwant\n%q", out, want)
	}
}

func TestSRTTimestamp(t *testing.T) {
	cases := map[float64]string{
		0:        "00:00:00,000",
		-3:       "00:00:00,000",
		3661.007: "01:01:01,007",
	}
	for in, want := range cases {
		if got := srtTimestamp(in); got != want {
			t.Fatalf("srtTimestamp(%v) = %q, want %q", in, got, want)
		}
	}
	if !strings.HasPrefix(srtTimestamp(86400), "24:") {
		t.Fatalf("hours are not wrapped: %q", srtTimestamp(86400))
	}
}
