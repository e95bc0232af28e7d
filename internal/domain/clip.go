package domain

import (
	"time"

	"github.com/google/uuid"
)

// Clip rows are created in bulk by the analysis stage, ranked 1..N by
// descending score, and filled in place by the render stage. Re-ranking
// means deleting and recreating the whole set.
type Clip struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	VideoID         uuid.UUID `gorm:"type:uuid;not null;index" json:"video_id"`
	StartTime       float64   `gorm:"column:start_time;not null" json:"start_time"`
	EndTime         float64   `gorm:"column:end_time;not null" json:"end_time"`
	Duration        *float64  `gorm:"column:duration" json:"duration,omitempty"`
	EngagementScore float64   `gorm:"column:engagement_score;not null" json:"engagement_score"`
	Rank            int       `gorm:"column:rank;not null" json:"rank"`
	OutputPath      *string   `gorm:"column:output_path" json:"output_path,omitempty"`
	Hashtags        *string   `gorm:"column:hashtags" json:"hashtags,omitempty"`
	CreatedAt       time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null" json:"updated_at"`
}

func (Clip) TableName() string { return "clips" }
