package timetable

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kron12345/coreplanx/internal/models"
	"gorm.io/gorm"
)

// SplitRequest selects a part and the member after which it is cut. Exactly
// one of SplitAfterSegmentID and SplitAfterOrderIndex must be set.
type SplitRequest struct {
	VariantID            string
	StageID              string
	PartID               string
	SplitAfterSegmentID  *string
	SplitAfterOrderIndex *int
	// NewPartID names the right-hand part; a fresh id is generated if empty.
	NewPartID *string
}

// SplitResult names the shrunk original and the new right-hand part.
type SplitResult struct {
	LeftPartID  string `json:"leftPartId"`
	RightPartID string `json:"rightPartId"`
}

// NewPartID generates an id for a part created by a split.
func NewPartID() string {
	return "tsp:" + uuid.NewString()
}

// SplitTrainServicePart cuts a part in two after the selected member. The
// original keeps the left members and its id; a new part takes the right
// members, cloning the year label and attributes. Both memberships are
// renumbered from 0. The part and its members are locked for the duration.
func (s *Store) SplitTrainServicePart(ctx context.Context, req SplitRequest) (*SplitResult, error) {
	const op = "split service part"
	if err := validateStage(op, req.StageID); err != nil {
		return nil, err
	}
	if req.PartID == "" {
		return nil, invalidArgument(op, ReasonMissingID, "", "part id is required")
	}
	bySegment := strPtrSet(req.SplitAfterSegmentID)
	byIndex := req.SplitAfterOrderIndex != nil
	switch {
	case !bySegment && !byIndex:
		return nil, invalidArgument(op, ReasonSelectorMissing, req.PartID, "splitAfterSegmentId or splitAfterOrderIndex is required")
	case bySegment && byIndex:
		return nil, invalidArgument(op, ReasonSelectorAmbiguous, req.PartID, "only one of splitAfterSegmentId and splitAfterOrderIndex may be set")
	}

	var result *SplitResult
	err := s.transaction(ctx, op, s.opts.DefaultTimeout, func(tx *gorm.DB) error {
		var part models.TrainServicePart
		err := tx.Clauses(forUpdate()).
			Where("id = ? AND variant_id = ? AND stage_id = ?", req.PartID, req.VariantID, req.StageID).
			Take(&part).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(op, ReasonPartNotFound, req.PartID, "service part not found in %s/%s", req.VariantID, req.StageID)
		}
		if err != nil {
			return fmt.Errorf("timetable: lock part %s: %w", req.PartID, err)
		}

		members, err := partMembers(tx, req.VariantID, part.ID, true)
		if err != nil {
			return err
		}
		if len(members) < 2 {
			return invariantViolation(op, ReasonTooFewSegments, part.ID, "part has %d member segments, need at least 2", len(members))
		}

		pos := -1
		for i, m := range members {
			if (bySegment && m.SegmentID == *req.SplitAfterSegmentID) ||
				(byIndex && m.OrderIndex == *req.SplitAfterOrderIndex) {
				pos = i
				break
			}
		}
		if pos < 0 {
			var sel string
			if bySegment {
				sel = *req.SplitAfterSegmentID
			} else {
				sel = fmt.Sprintf("orderIndex %d", *req.SplitAfterOrderIndex)
			}
			return notFound(op, ReasonSplitMemberMissing, part.ID, "split position %s is not a member of the part", sel)
		}
		if pos == len(members)-1 {
			return invariantViolation(op, ReasonSplitAtLast, part.ID, "split position must be before the last member")
		}

		segs, err := memberSegments(tx, op, part, members)
		if err != nil {
			return err
		}

		var rightID string
		if strPtrSet(req.NewPartID) {
			rightID = *req.NewPartID
			var n int64
			if err := tx.Model(&models.TrainServicePart{}).
				Where("id = ? AND variant_id = ?", rightID, req.VariantID).
				Count(&n).Error; err != nil {
				return fmt.Errorf("timetable: check part %s: %w", rightID, err)
			}
			if n > 0 {
				return alreadyExists(op, ReasonNewPartExists, rightID, "a service part with this id already exists")
			}
		} else {
			rightID = NewPartID()
		}

		left, right := segs[:pos+1], segs[pos+1:]

		if err := tx.Model(&models.TrainServicePart{}).
			Where("id = ? AND variant_id = ?", part.ID, req.VariantID).
			Updates(map[string]interface{}{
				"from_location_id": left[0].FromLocationID,
				"start_time":       left[0].StartTime,
				"to_location_id":   left[len(left)-1].ToLocationID,
				"end_time":         left[len(left)-1].EndTime,
			}).Error; err != nil {
			return fmt.Errorf("timetable: shrink part %s: %w", part.ID, err)
		}

		rightPart := models.TrainServicePart{
			ID:                 rightID,
			VariantID:          req.VariantID,
			StageID:            req.StageID,
			TimetableYearLabel: part.TimetableYearLabel,
			TrainRunID:         part.TrainRunID,
			FromLocationID:     right[0].FromLocationID,
			ToLocationID:       right[len(right)-1].ToLocationID,
			StartTime:          right[0].StartTime,
			EndTime:            right[len(right)-1].EndTime,
			Attributes:         part.Attributes,
		}
		if err := tx.Create(&rightPart).Error; err != nil {
			return fmt.Errorf("timetable: create part %s: %w", rightID, err)
		}

		if err := writeMembers(tx, s.opts.BatchSize, req.VariantID, part.ID, segmentIDs(left)); err != nil {
			return err
		}
		if err := writeMembers(tx, s.opts.BatchSize, req.VariantID, rightID, segmentIDs(right)); err != nil {
			return err
		}
		result = &SplitResult{LeftPartID: part.ID, RightPartID: rightID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// memberSegments locks and returns the segments behind members, in member
// order. Every segment must exist and belong to the part's run.
func memberSegments(tx *gorm.DB, op string, part models.TrainServicePart, members []models.TrainServicePartSegment) ([]models.TrainSegment, error) {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.SegmentID
	}
	var found []models.TrainSegment
	if err := tx.Clauses(forUpdate()).
		Where("variant_id = ? AND id IN ?", part.VariantID, ids).
		Find(&found).Error; err != nil {
		return nil, fmt.Errorf("timetable: lock segments of part %s: %w", part.ID, err)
	}
	byID := make(map[string]models.TrainSegment, len(found))
	for _, seg := range found {
		byID[seg.ID] = seg
	}
	out := make([]models.TrainSegment, len(ids))
	for i, id := range ids {
		seg, ok := byID[id]
		if !ok {
			return nil, notFound(op, ReasonSegmentNotFound, id, "member segment of part %s does not exist", part.ID)
		}
		if seg.TrainRunID != part.TrainRunID {
			return nil, invariantViolation(op, ReasonSegmentRunMismatch, id,
				"segment belongs to train run %q, part %s to %q", seg.TrainRunID, part.ID, part.TrainRunID)
		}
		out[i] = seg
	}
	return out, nil
}

func segmentIDs(segs []models.TrainSegment) []string {
	ids := make([]string, len(segs))
	for i, seg := range segs {
		ids[i] = seg.ID
	}
	return ids
}
