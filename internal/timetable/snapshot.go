package timetable

import (
	"context"
	"fmt"
	"time"

	"github.com/kron12345/coreplanx/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Snapshot is the full run/segment graph of a variant. It is also the
// persisted payload of a revision.
type Snapshot struct {
	TrainRuns     []models.TrainRun     `json:"trainRuns"`
	TrainSegments []models.TrainSegment `json:"trainSegments"`
}

// Applied counts the rows written by a snapshot replacement.
type Applied struct {
	TrainRuns     int `json:"trainRuns"`
	TrainSegments int `json:"trainSegments"`
}

// defaultTimelineWindow is used for a planning stage created from a
// snapshot without segments.
const defaultTimelineWindow = 7 * 24 * time.Hour

// LoadSnapshot returns all runs and segments of the variant, runs ordered by
// (train_number, id) and segments by (train_run_id, section_index, id).
// Disabled storage yields an empty snapshot.
func (s *Store) LoadSnapshot(ctx context.Context, variantID, stageID string) (*Snapshot, error) {
	if err := validateStage("load snapshot", stageID); err != nil {
		return nil, err
	}
	if s.db == nil {
		return emptySnapshot(), nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.DefaultTimeout)
	defer cancel()
	return loadSnapshot(s.db.WithContext(ctx), variantID)
}

func emptySnapshot() *Snapshot {
	return &Snapshot{TrainRuns: []models.TrainRun{}, TrainSegments: []models.TrainSegment{}}
}

func loadSnapshot(tx *gorm.DB, variantID string) (*Snapshot, error) {
	snap := emptySnapshot()
	if err := tx.Where("variant_id = ?", variantID).Order("train_number ASC, id ASC").Find(&snap.TrainRuns).Error; err != nil {
		return nil, fmt.Errorf("timetable: load train runs for %s: %w", variantID, err)
	}
	if err := tx.Where("variant_id = ?", variantID).Order("train_run_id ASC, section_index ASC, id ASC").Find(&snap.TrainSegments).Error; err != nil {
		return nil, fmt.Errorf("timetable: load train segments for %s: %w", variantID, err)
	}
	return snap, nil
}

// ReplaceSnapshot atomically replaces the variant's run/segment graph.
// Nil collections are rejected; empty ones clear the variant.
func (s *Store) ReplaceSnapshot(ctx context.Context, variantID, stageID string, runs []models.TrainRun, segments []models.TrainSegment) (Applied, error) {
	const op = "replace snapshot"
	if err := validateSnapshot(op, stageID, runs, segments); err != nil {
		return Applied{}, err
	}
	var applied Applied
	err := s.transaction(ctx, op, s.opts.ReplaceTimeout, func(tx *gorm.DB) error {
		var err error
		applied, err = s.replaceSnapshot(tx, variantID, stageID, runs, segments)
		return err
	})
	return applied, err
}

// validateSnapshot checks the structural rules of a run/segment payload
// before anything is written.
func validateSnapshot(op, stageID string, runs []models.TrainRun, segments []models.TrainSegment) error {
	if err := validateStage(op, stageID); err != nil {
		return err
	}
	if runs == nil {
		return invalidArgument(op, ReasonRunsNotList, "", "trainRuns must be a list")
	}
	if segments == nil {
		return invalidArgument(op, ReasonSegmentsNotList, "", "trainSegments must be a list")
	}
	runIDs := make(map[string]bool, len(runs))
	for _, r := range runs {
		if r.ID == "" {
			return invalidArgument(op, ReasonMissingID, "", "train run without id")
		}
		if runIDs[r.ID] {
			return invalidArgument(op, ReasonDuplicateRun, r.ID, "duplicate train run id")
		}
		runIDs[r.ID] = true
	}
	segIDs := make(map[string]bool, len(segments))
	sections := make(map[string]map[int]bool)
	for _, seg := range segments {
		if seg.ID == "" {
			return invalidArgument(op, ReasonMissingID, "", "train segment without id")
		}
		if segIDs[seg.ID] {
			return invalidArgument(op, ReasonDuplicateSegment, seg.ID, "duplicate train segment id")
		}
		segIDs[seg.ID] = true
		if !runIDs[seg.TrainRunID] {
			return invalidArgument(op, ReasonUnknownRun, seg.ID, "segment references unknown train run %q", seg.TrainRunID)
		}
		if sections[seg.TrainRunID] == nil {
			sections[seg.TrainRunID] = make(map[int]bool)
		}
		if sections[seg.TrainRunID][seg.SectionIndex] {
			return invalidArgument(op, ReasonDuplicateSection, seg.ID, "section index %d repeated in train run %q", seg.SectionIndex, seg.TrainRunID)
		}
		sections[seg.TrainRunID][seg.SectionIndex] = true
	}
	return nil
}

// replaceSnapshot runs the replacement steps inside tx: ensure the planning
// stage, delete segments then runs, upsert runs then segments.
func (s *Store) replaceSnapshot(tx *gorm.DB, variantID, stageID string, runs []models.TrainRun, segments []models.TrainSegment) (Applied, error) {
	if err := s.ensurePlanningStage(tx, variantID, stageID, segments); err != nil {
		return Applied{}, err
	}

	if err := tx.Where("variant_id = ?", variantID).Delete(&models.TrainSegment{}).Error; err != nil {
		return Applied{}, fmt.Errorf("timetable: delete train segments for %s: %w", variantID, err)
	}
	if err := tx.Where("variant_id = ?", variantID).Delete(&models.TrainRun{}).Error; err != nil {
		return Applied{}, fmt.Errorf("timetable: delete train runs for %s: %w", variantID, err)
	}

	scopedRuns := make([]models.TrainRun, len(runs))
	for i, r := range runs {
		r.VariantID = variantID
		scopedRuns[i] = r
	}
	scopedSegments := make([]models.TrainSegment, len(segments))
	for i, seg := range segments {
		seg.VariantID = variantID
		scopedSegments[i] = seg
	}

	if len(scopedRuns) > 0 {
		if err := upsertAll(tx, s.opts.BatchSize, &scopedRuns); err != nil {
			return Applied{}, fmt.Errorf("timetable: upsert train runs for %s: %w", variantID, err)
		}
	}
	if len(scopedSegments) > 0 {
		if err := upsertAll(tx, s.opts.BatchSize, &scopedSegments); err != nil {
			return Applied{}, fmt.Errorf("timetable: upsert train segments for %s: %w", variantID, err)
		}
	}
	return Applied{TrainRuns: len(scopedRuns), TrainSegments: len(scopedSegments)}, nil
}

// upsertAll inserts rows in batches keyed by (id, variant_id), overwriting
// every column on conflict.
func upsertAll(tx *gorm.DB, batchSize int, rows interface{}) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}, {Name: "variant_id"}},
		UpdateAll: true,
	}).CreateInBatches(rows, batchSize).Error
}

// ensurePlanningStage creates the (stage, variant) record if absent, with a
// timeline spanning the segments or now..now+7d.
func (s *Store) ensurePlanningStage(tx *gorm.DB, variantID, stageID string, segments []models.TrainSegment) error {
	start, end := timelineWindow(segments, s.now().UTC())
	stage := models.PlanningStage{
		StageID:       stageID,
		VariantID:     variantID,
		TimelineStart: start,
		TimelineEnd:   end,
		CreatedAt:     s.now().UTC(),
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&stage).Error; err != nil {
		return fmt.Errorf("timetable: ensure planning stage %s/%s: %w", variantID, stageID, err)
	}
	return nil
}

func timelineWindow(segments []models.TrainSegment, now time.Time) (time.Time, time.Time) {
	if len(segments) == 0 {
		return now, now.Add(defaultTimelineWindow)
	}
	start, end := segments[0].StartTime, segments[0].EndTime
	for _, seg := range segments[1:] {
		if seg.StartTime.Before(start) {
			start = seg.StartTime
		}
		if seg.EndTime.After(end) {
			end = seg.EndTime
		}
	}
	return start, end
}
