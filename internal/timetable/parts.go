package timetable

import (
	"context"
	"fmt"
	"log"

	"github.com/kron12345/coreplanx/internal/models"
	"gorm.io/gorm"
)

// PartRecord is a service part with its run's train number and its member
// segment ids in order.
type PartRecord struct {
	models.TrainServicePart
	TrainNumber string   `json:"trainNumber"`
	SegmentIDs  []string `json:"segmentIds"`
}

// RebuildResult reports how many parts a rebuild produced.
type RebuildResult struct {
	Parts int `json:"parts"`
}

// PartID derives the id of a rebuilt part. Runs are variant-wide, so the
// stage is part of the id to keep parts of different stages apart. The index
// span only describes the part as rebuilt: split and merge keep the left
// part's id while changing its members, so read the span from SegmentIDs.
func PartID(stageID, trainRunID string, minIndex, maxIndex int) string {
	return fmt.Sprintf("tsp:%s:%s:%d-%d", stageID, trainRunID, minIndex, maxIndex)
}

// stageParts selects the ids of all parts in (variant, stage), for use as a
// subquery.
func stageParts(tx *gorm.DB, variantID, stageID string) *gorm.DB {
	return tx.Model(&models.TrainServicePart{}).
		Select("id").
		Where("variant_id = ? AND stage_id = ?", variantID, stageID)
}

// RebuildTrainServiceParts discards every part of (variant, stage) and
// derives exactly one part per run that owns segments, spanning its first to
// last segment. Prior splits and merges are lost. Rebuilding an unchanged
// graph yields identical part ids.
func (s *Store) RebuildTrainServiceParts(ctx context.Context, variantID, stageID string, timetableYearLabel *string) (RebuildResult, error) {
	const op = "rebuild service parts"
	if err := validateStage(op, stageID); err != nil {
		return RebuildResult{}, err
	}
	var result RebuildResult
	err := s.transaction(ctx, op, s.opts.DefaultTimeout, func(tx *gorm.DB) error {
		if err := tx.Where("variant_id = ? AND part_id IN (?)", variantID, stageParts(tx, variantID, stageID)).
			Delete(&models.TrainServicePartSegment{}).Error; err != nil {
			return fmt.Errorf("timetable: delete part memberships for %s/%s: %w", variantID, stageID, err)
		}
		if err := tx.Where("variant_id = ? AND stage_id = ?", variantID, stageID).
			Delete(&models.TrainServicePart{}).Error; err != nil {
			return fmt.Errorf("timetable: delete parts for %s/%s: %w", variantID, stageID, err)
		}

		snap, err := loadSnapshot(tx, variantID)
		if err != nil {
			return err
		}
		byRun := groupSegments(snap.TrainSegments)

		var parts []models.TrainServicePart
		var members []models.TrainServicePartSegment
		for _, run := range snap.TrainRuns {
			segs := byRun[run.ID]
			if len(segs) == 0 {
				continue
			}
			first, last := segs[0], segs[len(segs)-1]
			id := PartID(stageID, run.ID, first.SectionIndex, last.SectionIndex)
			parts = append(parts, models.TrainServicePart{
				ID:                 id,
				VariantID:          variantID,
				StageID:            stageID,
				TimetableYearLabel: timetableYearLabel,
				TrainRunID:         run.ID,
				FromLocationID:     first.FromLocationID,
				ToLocationID:       last.ToLocationID,
				StartTime:          first.StartTime,
				EndTime:            last.EndTime,
			})
			for _, seg := range segs {
				members = append(members, models.TrainServicePartSegment{
					VariantID:  variantID,
					PartID:     id,
					SegmentID:  seg.ID,
					OrderIndex: seg.SectionIndex,
				})
			}
		}

		if len(parts) > 0 {
			if err := tx.CreateInBatches(&parts, s.opts.BatchSize).Error; err != nil {
				return fmt.Errorf("timetable: insert parts for %s/%s: %w", variantID, stageID, err)
			}
		}
		if len(members) > 0 {
			if err := tx.CreateInBatches(&members, s.opts.BatchSize).Error; err != nil {
				return fmt.Errorf("timetable: insert part memberships for %s/%s: %w", variantID, stageID, err)
			}
		}
		result.Parts = len(parts)
		return nil
	})
	if err != nil {
		return RebuildResult{}, err
	}
	log.Printf("timetable: rebuilt %d service parts for %s/%s", result.Parts, variantID, stageID)
	return result, nil
}

// groupSegments buckets segments by run, preserving their input order.
// Callers pass segments sorted by (train_run_id, section_index).
func groupSegments(segments []models.TrainSegment) map[string][]models.TrainSegment {
	byRun := make(map[string][]models.TrainSegment)
	for _, seg := range segments {
		byRun[seg.TrainRunID] = append(byRun[seg.TrainRunID], seg)
	}
	return byRun
}

// ListTrainServiceParts returns the parts of (variant, stage) ordered by
// (train_run_id, start_time, id). Disabled storage yields an empty list.
func (s *Store) ListTrainServiceParts(ctx context.Context, variantID, stageID string) ([]PartRecord, error) {
	if err := validateStage("list service parts", stageID); err != nil {
		return nil, err
	}
	records := []PartRecord{}
	if s.db == nil {
		return records, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.DefaultTimeout)
	defer cancel()
	tx := s.db.WithContext(ctx)

	var parts []models.TrainServicePart
	if err := tx.Where("variant_id = ? AND stage_id = ?", variantID, stageID).
		Order("train_run_id ASC, start_time ASC, id ASC").
		Find(&parts).Error; err != nil {
		return nil, fmt.Errorf("timetable: list parts for %s/%s: %w", variantID, stageID, err)
	}
	if len(parts) == 0 {
		return records, nil
	}

	var members []models.TrainServicePartSegment
	if err := tx.Where("variant_id = ? AND part_id IN (?)", variantID, stageParts(tx, variantID, stageID)).
		Order("part_id ASC, order_index ASC, segment_id ASC").
		Find(&members).Error; err != nil {
		return nil, fmt.Errorf("timetable: list part memberships for %s/%s: %w", variantID, stageID, err)
	}
	segmentIDs := make(map[string][]string, len(parts))
	for _, m := range members {
		segmentIDs[m.PartID] = append(segmentIDs[m.PartID], m.SegmentID)
	}

	var runs []models.TrainRun
	if err := tx.Select("id", "train_number").Where("variant_id = ?", variantID).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("timetable: resolve train numbers for %s: %w", variantID, err)
	}
	numbers := make(map[string]string, len(runs))
	for _, r := range runs {
		numbers[r.ID] = r.TrainNumber
	}

	for _, p := range parts {
		ids := segmentIDs[p.ID]
		if ids == nil {
			ids = []string{}
		}
		records = append(records, PartRecord{
			TrainServicePart: p,
			TrainNumber:      numbers[p.TrainRunID],
			SegmentIDs:       ids,
		})
	}
	return records, nil
}

// partMembers returns the membership rows of a part ordered by order_index,
// locking them when lock is set.
func partMembers(tx *gorm.DB, variantID, partID string, lock bool) ([]models.TrainServicePartSegment, error) {
	q := tx.Where("variant_id = ? AND part_id = ?", variantID, partID)
	if lock {
		q = q.Clauses(forUpdate())
	}
	var members []models.TrainServicePartSegment
	if err := q.Order("order_index ASC, segment_id ASC").Find(&members).Error; err != nil {
		return nil, fmt.Errorf("timetable: load members of part %s: %w", partID, err)
	}
	return members, nil
}

// writeMembers replaces a part's membership with segmentIDs, numbered from 0.
func writeMembers(tx *gorm.DB, batchSize int, variantID, partID string, segmentIDs []string) error {
	if err := tx.Where("variant_id = ? AND part_id = ?", variantID, partID).
		Delete(&models.TrainServicePartSegment{}).Error; err != nil {
		return fmt.Errorf("timetable: clear members of part %s: %w", partID, err)
	}
	if len(segmentIDs) == 0 {
		return nil
	}
	rows := make([]models.TrainServicePartSegment, len(segmentIDs))
	for i, id := range segmentIDs {
		rows[i] = models.TrainServicePartSegment{VariantID: variantID, PartID: partID, SegmentID: id, OrderIndex: i}
	}
	if err := tx.CreateInBatches(&rows, batchSize).Error; err != nil {
		return fmt.Errorf("timetable: write members of part %s: %w", partID, err)
	}
	return nil
}
