package models

import "time"

// Planning stage identifiers.
const (
	StageBase       = "base"
	StageOperations = "operations"
	StageDispatch   = "dispatch"
)

// ValidStages lists the planning horizon layers a variant may carry.
var ValidStages = []string{StageBase, StageOperations, StageDispatch}

// IsValidStage reports whether id names a known planning stage.
func IsValidStage(id string) bool {
	for _, s := range ValidStages {
		if s == id {
			return true
		}
	}
	return false
}

// PlanningStage is the minimal record of a stage within a variant. Snapshot
// replacement creates it on demand with a timeline derived from segment times.
type PlanningStage struct {
	StageID       string    `gorm:"primaryKey;size:32" json:"stageId"`
	VariantID     string    `gorm:"primaryKey;size:64" json:"variantId"`
	TimelineStart time.Time `gorm:"not null" json:"timelineStart"`
	TimelineEnd   time.Time `gorm:"not null" json:"timelineEnd"`
	CreatedAt     time.Time `json:"createdAt"`
}
