package timetable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/kron12345/coreplanx/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ReplaceRequest is a snapshot replacement with optional revision metadata.
type ReplaceRequest struct {
	VariantID     string
	StageID       string
	TrainRuns     []models.TrainRun
	TrainSegments []models.TrainSegment
	Message       *string
	CreatedBy     *string
}

// ReplaceResult reports the applied counts and the revision captured, if any.
type ReplaceResult struct {
	Revision *models.TimetableRevision `json:"revision,omitempty"`
	Applied  Applied                   `json:"applied"`
}

// shouldCapture reports whether a replacement is revisioned: always for
// productive variants, otherwise only when the caller documents it.
func (s *Store) shouldCapture(variantID string, message, createdBy *string) bool {
	return s.opts.IsProductive(variantID) || strPtrSet(message) || strPtrSet(createdBy)
}

// ReplaceSnapshotWithRevision replaces the snapshot and, when the revision
// policy applies, captures the result in the same transaction.
func (s *Store) ReplaceSnapshotWithRevision(ctx context.Context, req ReplaceRequest) (*ReplaceResult, error) {
	const op = "replace snapshot"
	if err := validateSnapshot(op, req.StageID, req.TrainRuns, req.TrainSegments); err != nil {
		return nil, err
	}
	result := &ReplaceResult{}
	err := s.transaction(ctx, op, s.opts.ReplaceTimeout, func(tx *gorm.DB) error {
		applied, err := s.replaceSnapshot(tx, req.VariantID, req.StageID, req.TrainRuns, req.TrainSegments)
		if err != nil {
			return err
		}
		result.Applied = applied
		if !s.shouldCapture(req.VariantID, req.Message, req.CreatedBy) {
			return nil
		}
		result.Revision, err = s.createRevision(tx, req.VariantID, req.StageID, req.CreatedBy, req.Message)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CreateRevision captures the current snapshot of (variant, stage) as a new
// immutable revision.
func (s *Store) CreateRevision(ctx context.Context, variantID, stageID string, createdBy, message *string) (*models.TimetableRevision, error) {
	const op = "create revision"
	if err := validateStage(op, stageID); err != nil {
		return nil, err
	}
	var rev *models.TimetableRevision
	err := s.transaction(ctx, op, s.opts.DefaultTimeout, func(tx *gorm.DB) error {
		var err error
		rev, err = s.createRevision(tx, variantID, stageID, createdBy, message)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rev, nil
}

func (s *Store) createRevision(tx *gorm.DB, variantID, stageID string, createdBy, message *string) (*models.TimetableRevision, error) {
	snap, err := loadSnapshot(tx, variantID)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("timetable: encode revision payload: %w", err)
	}
	rev := &models.TimetableRevision{
		ID:                uuid.NewString(),
		VariantID:         variantID,
		StageID:           stageID,
		CreatedAt:         s.now().UTC(),
		CreatedBy:         createdBy,
		Message:           message,
		TrainRunCount:     len(snap.TrainRuns),
		TrainSegmentCount: len(snap.TrainSegments),
		Payload:           datatypes.JSON(payload),
	}
	if err := tx.Create(rev).Error; err != nil {
		return nil, fmt.Errorf("timetable: create revision for %s/%s: %w", variantID, stageID, err)
	}
	log.Printf("timetable: revision %s captured for %s/%s (%d runs, %d segments)",
		rev.ID, variantID, stageID, rev.TrainRunCount, rev.TrainSegmentCount)
	return rev, nil
}

// ListRevisions returns revision headers of (variant, stage), newest first.
// Payloads are not loaded.
func (s *Store) ListRevisions(ctx context.Context, variantID, stageID string) ([]models.TimetableRevision, error) {
	if err := validateStage("list revisions", stageID); err != nil {
		return nil, err
	}
	revs := []models.TimetableRevision{}
	if s.db == nil {
		return revs, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.DefaultTimeout)
	defer cancel()
	err := s.db.WithContext(ctx).
		Omit("payload").
		Where("variant_id = ? AND stage_id = ?", variantID, stageID).
		Order("created_at DESC, id DESC").
		Find(&revs).Error
	if err != nil {
		return nil, fmt.Errorf("timetable: list revisions for %s/%s: %w", variantID, stageID, err)
	}
	return revs, nil
}

// GetRevision returns a revision with its decoded snapshot.
func (s *Store) GetRevision(ctx context.Context, revisionID string) (*models.TimetableRevision, *Snapshot, error) {
	const op = "get revision"
	if s.db == nil {
		return nil, nil, unavailable(op)
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.DefaultTimeout)
	defer cancel()
	return getRevision(s.db.WithContext(ctx), op, revisionID)
}

func getRevision(tx *gorm.DB, op, revisionID string) (*models.TimetableRevision, *Snapshot, error) {
	if revisionID == "" {
		return nil, nil, invalidArgument(op, ReasonMissingID, "", "revision id is required")
	}
	var rev models.TimetableRevision
	if err := tx.Where("id = ?", revisionID).Take(&rev).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, notFound(op, ReasonRevisionNotFound, revisionID, "revision not found")
		}
		return nil, nil, fmt.Errorf("timetable: get revision %s: %w", revisionID, err)
	}
	snap := emptySnapshot()
	if len(rev.Payload) > 0 {
		if err := json.Unmarshal(rev.Payload, snap); err != nil {
			return nil, nil, invariantViolation(op, ReasonCorruptPayload, revisionID, "revision payload is not a snapshot: %v", err)
		}
	}
	if snap.TrainRuns == nil {
		snap.TrainRuns = []models.TrainRun{}
	}
	if snap.TrainSegments == nil {
		snap.TrainSegments = []models.TrainSegment{}
	}
	return &rev, snap, nil
}

// RestoreRevision replays a revision's snapshot onto the variant and stage it
// was captured from. A new revision documenting the restore is appended when
// the variant is productive or the caller supplied a message or actor; the
// returned revision is nil otherwise. History is never rewritten.
func (s *Store) RestoreRevision(ctx context.Context, revisionID string, message, createdBy *string) (*models.TimetableRevision, error) {
	const op = "restore revision"
	var restored *models.TimetableRevision
	err := s.transaction(ctx, op, s.opts.ReplaceTimeout, func(tx *gorm.DB) error {
		rev, snap, err := getRevision(tx, op, revisionID)
		if err != nil {
			return err
		}
		if err := validateSnapshot(op, rev.StageID, snap.TrainRuns, snap.TrainSegments); err != nil {
			return err
		}
		if _, err := s.replaceSnapshot(tx, rev.VariantID, rev.StageID, snap.TrainRuns, snap.TrainSegments); err != nil {
			return err
		}
		if !s.shouldCapture(rev.VariantID, message, createdBy) {
			return nil
		}
		if !strPtrSet(message) {
			m := "restore of revision " + rev.ID
			message = &m
		}
		restored, err = s.createRevision(tx, rev.VariantID, rev.StageID, createdBy, message)
		return err
	})
	if err != nil {
		return nil, err
	}
	return restored, nil
}
