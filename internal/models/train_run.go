package models

import (
	"time"

	"gorm.io/datatypes"
)

// TrainRun is one scheduled train across its full journey, owned by a variant.
type TrainRun struct {
	ID          string         `gorm:"primaryKey;size:128" json:"id"`
	VariantID   string         `gorm:"primaryKey;size:64;index:idx_train_runs_variant_number,priority:1" json:"-"`
	TrainNumber string         `gorm:"size:64;not null;index:idx_train_runs_variant_number,priority:2" json:"trainNumber"`
	TimetableID *string        `gorm:"size:128" json:"timetableId,omitempty"`
	Attributes  datatypes.JSON `json:"attributes,omitempty"`
}

// TrainSegment is one ordered leg of a TrainRun between two locations.
// SectionIndex is unique per (variant, run) and defines the run's total order.
type TrainSegment struct {
	ID             string         `gorm:"primaryKey;size:128" json:"id"`
	VariantID      string         `gorm:"primaryKey;size:64;uniqueIndex:idx_train_segments_run_section,priority:1" json:"-"`
	TrainRunID     string         `gorm:"size:128;not null;uniqueIndex:idx_train_segments_run_section,priority:2" json:"trainRunId"`
	SectionIndex   int            `gorm:"not null;uniqueIndex:idx_train_segments_run_section,priority:3" json:"sectionIndex"`
	StartTime      time.Time      `gorm:"not null" json:"startTime"`
	EndTime        time.Time      `gorm:"not null" json:"endTime"`
	FromLocationID string         `gorm:"size:128;not null" json:"fromLocationId"`
	ToLocationID   string         `gorm:"size:128;not null" json:"toLocationId"`
	PathID         *string        `gorm:"size:128" json:"pathId,omitempty"`
	DistanceKm     *float64       `json:"distanceKm,omitempty"`
	Attributes     datatypes.JSON `json:"attributes,omitempty"`
}
