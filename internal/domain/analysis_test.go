package domain

import (
	"testing"

	"gorm.io/datatypes"
)

func TestMergeAnalysisDataPreservesExistingKeys(t *testing.T) {
	blob, err := MergeAnalysisData(nil, map[string]any{
		AnalysisKeyTranscript: []TranscriptSegment{{Start: 0, End: 2, Text: "hello"}},
	})
	if err != nil {
		t.Fatalf("first merge: %v", err)
	}
	blob, err = MergeAnalysisData(blob, map[string]any{
		AnalysisKeyHeatmap: []float64{0.1, 0.4},
	})
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}

	segs := TranscriptFrom(blob)
	if len(segs) != 1 || segs[0].Text != "hello" {
		t.Fatalf("transcript lost after merge: %+v", segs)
	}
	var heat []float64
	if !AnalysisDataKey(blob, AnalysisKeyHeatmap, &heat) || len(heat) != 2 {
		t.Fatalf("heatmap missing after merge: %v", heat)
	}
}

func TestMergeAnalysisDataOverwritesSameKey(t *testing.T) {
	blob, _ := MergeAnalysisData(nil, map[string]any{AnalysisKeyTranscriptLanguage: "en"})
	blob, _ = MergeAnalysisData(blob, map[string]any{AnalysisKeyTranscriptLanguage: "es"})

	var lang string
	if !AnalysisDataKey(blob, AnalysisKeyTranscriptLanguage, &lang) || lang != "es" {
		t.Fatalf("lang = %q, want es", lang)
	}
}

func TestMergeAnalysisDataRecoversFromCorruptBlob(t *testing.T) {
	blob, err := MergeAnalysisData(datatypes.JSON(`{not json`), map[string]any{AnalysisKeyHeatmap: []float64{1}})
	if err != nil {
		t.Fatalf("merge over corrupt blob: %v", err)
	}
	var heat []float64
	if !AnalysisDataKey(blob, AnalysisKeyHeatmap, &heat) {
		t.Fatal("heatmap not stored")
	}
}

func TestAnalysisDataKeyMisses(t *testing.T) {
	var dst []float64
	if AnalysisDataKey(nil, AnalysisKeyHeatmap, &dst) {
		t.Fatal("empty blob should miss")
	}
	if AnalysisDataKey(datatypes.JSON(`{"heatmap":null}`), AnalysisKeyHeatmap, &dst) {
		t.Fatal("null value should miss")
	}
	if AnalysisDataKey(datatypes.JSON(`{"other":1}`), AnalysisKeyHeatmap, &dst) {
		t.Fatal("absent key should miss")
	}
}

func TestTranscriptFromEmpty(t *testing.T) {
	if segs := TranscriptFrom(nil); segs != nil {
		t.Fatalf("expected nil, got %v", segs)
	}
}
