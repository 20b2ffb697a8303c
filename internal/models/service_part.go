package models

import (
	"time"

	"gorm.io/datatypes"
)

// DefaultLinkKind is the only link kind the planner currently records.
const DefaultLinkKind = "circulation"

// TrainServicePart is a contiguous, ordered sub-sequence of one TrainRun's
// segments. From/Start mirror the first member, To/End the last.
type TrainServicePart struct {
	ID                 string         `gorm:"primaryKey;size:255" json:"id"`
	VariantID          string         `gorm:"primaryKey;size:64;index:idx_service_parts_stage,priority:1" json:"variantId"`
	StageID            string         `gorm:"size:32;not null;index:idx_service_parts_stage,priority:2" json:"stageId"`
	TimetableYearLabel *string        `gorm:"size:32" json:"timetableYearLabel,omitempty"`
	TrainRunID         string         `gorm:"size:128;not null;index" json:"trainRunId"`
	FromLocationID     string         `gorm:"size:128;not null" json:"fromLocationId"`
	ToLocationID       string         `gorm:"size:128;not null" json:"toLocationId"`
	StartTime          time.Time      `gorm:"not null" json:"startTime"`
	EndTime            time.Time      `gorm:"not null" json:"endTime"`
	Attributes         datatypes.JSON `json:"attributes,omitempty"`
}

// TrainServicePartSegment records a segment's membership and position in a part.
type TrainServicePartSegment struct {
	VariantID  string `gorm:"primaryKey;size:64" json:"variantId"`
	PartID     string `gorm:"primaryKey;size:255" json:"partId"`
	SegmentID  string `gorm:"primaryKey;size:128" json:"segmentId"`
	OrderIndex int    `gorm:"not null" json:"orderIndex"`
}

// TrainServicePartLink is a directional continuity relation between two
// parts. At most one link per (variant, from, kind). ToPartID is a weak
// reference and may dangle after a merge or rebuild.
type TrainServicePartLink struct {
	VariantID  string    `gorm:"primaryKey;size:64" json:"variantId"`
	FromPartID string    `gorm:"primaryKey;size:255" json:"fromPartId"`
	Kind       string    `gorm:"primaryKey;size:32;default:circulation" json:"kind"`
	ToPartID   string    `gorm:"size:255;not null;index" json:"toPartId"`
	CreatedAt  time.Time `json:"createdAt"`
}
