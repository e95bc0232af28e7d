package domain

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// TranscriptSegment is one time-aligned line of speech.
type TranscriptSegment struct {
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Text         string  `json:"text"`
	AvgLogProb   float64 `json:"avg_logprob"`
	NoSpeechProb float64 `json:"no_speech_prob"`
}

// Keys inside Video.AnalysisData. The bag accumulates keys across
// stages: transcription writes transcript/transcript_language, analysis
// adds segments, scene_changes, best_clips and heatmap. A later write
// must never drop a previously stored key.
const (
	AnalysisKeyTranscript         = "transcript"
	AnalysisKeyTranscriptLanguage = "transcript_language"
	AnalysisKeySegments           = "segments"
	AnalysisKeySceneChanges       = "scene_changes"
	AnalysisKeyBestClips          = "best_clips"
	AnalysisKeyHeatmap            = "heatmap"
)

// MergeAnalysisData folds updates into an existing analysis_data blob,
// preserving keys that updates does not mention.
func MergeAnalysisData(existing datatypes.JSON, updates map[string]any) (datatypes.JSON, error) {
	merged := map[string]any{}
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &merged); err != nil {
			// Corrupt blob: start over rather than fail the stage.
			merged = map[string]any{}
		}
	}
	for k, v := range updates {
		merged[k] = v
	}
	out, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(out), nil
}

// AnalysisDataKey unmarshals one key of analysis_data into dst.
// Returns false when the key is absent or the blob is empty.
func AnalysisDataKey(blob datatypes.JSON, key string, dst any) bool {
	if len(blob) == 0 {
		return false
	}
	var bag map[string]json.RawMessage
	if err := json.Unmarshal(blob, &bag); err != nil {
		return false
	}
	raw, ok := bag[key]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

// TranscriptFrom extracts the stored transcript, if any.
func TranscriptFrom(blob datatypes.JSON) []TranscriptSegment {
	var segs []TranscriptSegment
	if !AnalysisDataKey(blob, AnalysisKeyTranscript, &segs) {
		return nil
	}
	return segs
}
