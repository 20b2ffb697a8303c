package timetable

import (
	"context"
	"fmt"
	"sort"

	"github.com/kron12345/coreplanx/internal/models"
	"gorm.io/gorm"
)

// MergeResult names the surviving part.
type MergeResult struct {
	MergedPartID string `json:"mergedPartId"`
}

// MergeTrainServiceParts folds rightPartID into leftPartID. Both parts must
// belong to the same run, share no segments, and be adjacent in the run's
// segment order with left first. The right part and its membership are
// deleted; links pointing at it are left dangling until pruned.
func (s *Store) MergeTrainServiceParts(ctx context.Context, variantID, stageID, leftPartID, rightPartID string) (*MergeResult, error) {
	const op = "merge service parts"
	if err := validateStage(op, stageID); err != nil {
		return nil, err
	}
	if leftPartID == "" || rightPartID == "" {
		return nil, invalidArgument(op, ReasonMissingID, "", "leftPartId and rightPartId are required")
	}
	if leftPartID == rightPartID {
		return nil, invalidArgument(op, ReasonSelfMerge, leftPartID, "cannot merge a part with itself")
	}

	err := s.transaction(ctx, op, s.opts.DefaultTimeout, func(tx *gorm.DB) error {
		var locked []models.TrainServicePart
		if err := tx.Clauses(forUpdate()).
			Where("variant_id = ? AND stage_id = ? AND id IN ?", variantID, stageID, []string{leftPartID, rightPartID}).
			Find(&locked).Error; err != nil {
			return fmt.Errorf("timetable: lock parts %s, %s: %w", leftPartID, rightPartID, err)
		}
		byID := make(map[string]models.TrainServicePart, len(locked))
		for _, p := range locked {
			byID[p.ID] = p
		}
		left, ok := byID[leftPartID]
		if !ok {
			return notFound(op, ReasonPartNotFound, leftPartID, "service part not found in %s/%s", variantID, stageID)
		}
		right, ok := byID[rightPartID]
		if !ok {
			return notFound(op, ReasonPartNotFound, rightPartID, "service part not found in %s/%s", variantID, stageID)
		}
		if left.TrainRunID != right.TrainRunID {
			return invariantViolation(op, ReasonRunMismatch, rightPartID,
				"parts belong to different train runs (%q, %q)", left.TrainRunID, right.TrainRunID)
		}

		var runSegments []models.TrainSegment
		if err := tx.Clauses(forUpdate()).
			Where("variant_id = ? AND train_run_id = ?", variantID, left.TrainRunID).
			Order("section_index ASC, id ASC").
			Find(&runSegments).Error; err != nil {
			return fmt.Errorf("timetable: lock segments of run %s: %w", left.TrainRunID, err)
		}
		position := make(map[string]int, len(runSegments))
		for i, seg := range runSegments {
			position[seg.ID] = i
		}

		leftPos, err := memberPositions(tx, op, left, position)
		if err != nil {
			return err
		}
		rightPos, err := memberPositions(tx, op, right, position)
		if err != nil {
			return err
		}

		seen := make(map[int]bool, len(leftPos))
		for _, p := range leftPos {
			seen[p] = true
		}
		for _, p := range rightPos {
			if seen[p] {
				return invariantViolation(op, ReasonOverlappingMembers, runSegments[p].ID,
					"segment is a member of both %s and %s", leftPartID, rightPartID)
			}
		}
		if leftPos[len(leftPos)-1]+1 != rightPos[0] {
			return invariantViolation(op, ReasonNotAdjacent, rightPartID,
				"part %s does not immediately follow %s", rightPartID, leftPartID)
		}

		merged := make([]string, 0, len(leftPos)+len(rightPos))
		for _, p := range append(leftPos, rightPos...) {
			merged = append(merged, runSegments[p].ID)
		}

		// Endpoints come from the segments, not the parts' stored columns.
		first, last := runSegments[leftPos[0]], runSegments[rightPos[len(rightPos)-1]]
		if err := tx.Model(&models.TrainServicePart{}).
			Where("id = ? AND variant_id = ?", leftPartID, variantID).
			Updates(map[string]interface{}{
				"from_location_id": first.FromLocationID,
				"start_time":       first.StartTime,
				"to_location_id":   last.ToLocationID,
				"end_time":         last.EndTime,
			}).Error; err != nil {
			return fmt.Errorf("timetable: extend part %s: %w", leftPartID, err)
		}
		if err := tx.Where("variant_id = ? AND part_id = ?", variantID, rightPartID).
			Delete(&models.TrainServicePartSegment{}).Error; err != nil {
			return fmt.Errorf("timetable: delete members of part %s: %w", rightPartID, err)
		}
		if err := tx.Where("id = ? AND variant_id = ?", rightPartID, variantID).
			Delete(&models.TrainServicePart{}).Error; err != nil {
			return fmt.Errorf("timetable: delete part %s: %w", rightPartID, err)
		}
		return writeMembers(tx, s.opts.BatchSize, variantID, leftPartID, merged)
	})
	if err != nil {
		return nil, err
	}
	return &MergeResult{MergedPartID: leftPartID}, nil
}

// memberPositions maps a part's members to their positions in the run's
// global segment order, sorted ascending. Members outside the run violate
// part ownership.
func memberPositions(tx *gorm.DB, op string, part models.TrainServicePart, position map[string]int) ([]int, error) {
	members, err := partMembers(tx, part.VariantID, part.ID, true)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, invariantViolation(op, ReasonEmptyPart, part.ID, "part has no member segments")
	}
	out := make([]int, len(members))
	for i, m := range members {
		p, ok := position[m.SegmentID]
		if !ok {
			return nil, invariantViolation(op, ReasonSegmentRunMismatch, m.SegmentID,
				"member of part %s is not a segment of train run %q", part.ID, part.TrainRunID)
		}
		out[i] = p
	}
	sort.Ints(out)
	return out, nil
}
