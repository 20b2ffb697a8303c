package models

import (
	"time"

	"gorm.io/datatypes"
)

// TimetableRevision is an immutable capture of a variant/stage snapshot.
// Counts are frozen at capture time.
type TimetableRevision struct {
	ID                string         `gorm:"primaryKey;size:64" json:"id"`
	VariantID         string         `gorm:"size:64;not null;index:idx_revisions_scope,priority:1" json:"variantId"`
	StageID           string         `gorm:"size:32;not null;index:idx_revisions_scope,priority:2" json:"stageId"`
	CreatedAt         time.Time      `gorm:"not null;index:idx_revisions_scope,priority:3" json:"createdAt"`
	CreatedBy         *string        `gorm:"size:128" json:"createdBy,omitempty"`
	Message           *string        `gorm:"type:text" json:"message,omitempty"`
	TrainRunCount     int            `gorm:"not null" json:"trainRunCount"`
	TrainSegmentCount int            `gorm:"not null" json:"trainSegmentCount"`
	Payload           datatypes.JSON `json:"-"`
}
