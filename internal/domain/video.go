package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Video owns its Jobs and Clips. Each pipeline stage mutates the shared
// columns (audio_path, duration, analysis_data) that later stages read.
type Video struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Title           string         `gorm:"column:title" json:"title,omitempty"`
	OriginalPath    string         `gorm:"column:original_path;not null" json:"original_path"`
	AudioPath       *string        `gorm:"column:audio_path" json:"audio_path,omitempty"`
	SourceURL       *string        `gorm:"column:source_url" json:"source_url,omitempty"`
	DurationSeconds *float64       `gorm:"column:duration_seconds" json:"duration_seconds,omitempty"`
	FPS             *float64       `gorm:"column:fps" json:"fps,omitempty"`
	RawMetadata     datatypes.JSON `gorm:"column:raw_metadata" json:"raw_metadata,omitempty"`
	AnalysisData    datatypes.JSON `gorm:"column:analysis_data" json:"analysis_data,omitempty"`
	CreatedAt       time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null" json:"updated_at"`

	Jobs  []Job  `gorm:"foreignKey:VideoID;constraint:OnDelete:CASCADE" json:"jobs,omitempty"`
	Clips []Clip `gorm:"foreignKey:VideoID;constraint:OnDelete:CASCADE" json:"clips,omitempty"`
}

func (Video) TableName() string { return "videos" }
