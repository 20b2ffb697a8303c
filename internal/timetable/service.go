package timetable

import (
	"context"
	"fmt"
	"time"

	"github.com/kron12345/coreplanx/internal/models"
	"github.com/kron12345/coreplanx/internal/partition"
)

// Service is the entry point for outer layers (HTTP, CLI). It applies the
// default scope and makes sure a variant's partitions exist before any
// variant-scoped write.
type Service struct {
	Store      *Store
	Partitions *partition.Manager
}

// NewService returns a Service over store and partitions.
func NewService(store *Store, partitions *partition.Manager) *Service {
	return &Service{Store: store, Partitions: partitions}
}

// Scope resolves omitted ids to DefaultVariantID and DefaultStageID.
func Scope(variantID, stageID string) (string, string) {
	if variantID == "" {
		variantID = DefaultVariantID
	}
	if stageID == "" {
		stageID = DefaultStageID
	}
	return variantID, stageID
}

// SnapshotView is a snapshot tagged with the scope it was read from.
type SnapshotView struct {
	VariantID string `json:"variantId"`
	StageID   string `json:"stageId"`
	Snapshot
}

func (s *Service) ensure(ctx context.Context, op, variantID string) error {
	if !s.Store.Enabled() {
		return unavailable(op)
	}
	if err := s.Partitions.EnsurePlanningPartitions(ctx, variantID); err != nil {
		return fmt.Errorf("timetable: %s: %w", op, err)
	}
	return nil
}

// GetSnapshot returns the current snapshot of the scope.
func (s *Service) GetSnapshot(ctx context.Context, variantID, stageID string) (*SnapshotView, error) {
	variantID, stageID = Scope(variantID, stageID)
	snap, err := s.Store.LoadSnapshot(ctx, variantID, stageID)
	if err != nil {
		return nil, err
	}
	return &SnapshotView{VariantID: variantID, StageID: stageID, Snapshot: *snap}, nil
}

// ReplaceSnapshot writes a new snapshot and captures a revision when the
// variant is productive or the request carries a message or actor.
func (s *Service) ReplaceSnapshot(ctx context.Context, req ReplaceRequest) (*ReplaceResult, error) {
	req.VariantID, req.StageID = Scope(req.VariantID, req.StageID)
	if err := s.ensure(ctx, "replace snapshot", req.VariantID); err != nil {
		return nil, err
	}
	return s.Store.ReplaceSnapshotWithRevision(ctx, req)
}

// ListRevisions returns the scope's revisions, newest first.
func (s *Service) ListRevisions(ctx context.Context, variantID, stageID string) ([]models.TimetableRevision, error) {
	variantID, stageID = Scope(variantID, stageID)
	return s.Store.ListRevisions(ctx, variantID, stageID)
}

// CreateRevision captures the scope's current snapshot.
func (s *Service) CreateRevision(ctx context.Context, variantID, stageID string, message, createdBy *string) (*models.TimetableRevision, error) {
	variantID, stageID = Scope(variantID, stageID)
	return s.Store.CreateRevision(ctx, variantID, stageID, createdBy, message)
}

// GetRevision returns a revision and its captured snapshot.
func (s *Service) GetRevision(ctx context.Context, revisionID string) (*models.TimetableRevision, *Snapshot, error) {
	return s.Store.GetRevision(ctx, revisionID)
}

// RestoreRevision replays a revision onto the scope it was captured from.
func (s *Service) RestoreRevision(ctx context.Context, revisionID string, message, createdBy *string) (*models.TimetableRevision, error) {
	rev, _, err := s.Store.GetRevision(ctx, revisionID)
	if err != nil {
		return nil, err
	}
	if err := s.ensure(ctx, "restore revision", rev.VariantID); err != nil {
		return nil, err
	}
	return s.Store.RestoreRevision(ctx, revisionID, message, createdBy)
}

// ListTrainServiceParts returns the scope's service parts.
func (s *Service) ListTrainServiceParts(ctx context.Context, variantID, stageID string) ([]PartRecord, error) {
	variantID, stageID = Scope(variantID, stageID)
	return s.Store.ListTrainServiceParts(ctx, variantID, stageID)
}

// RebuildTrainServiceParts re-derives the scope's service parts from scratch.
func (s *Service) RebuildTrainServiceParts(ctx context.Context, variantID, stageID string, timetableYearLabel *string) (RebuildResult, error) {
	variantID, stageID = Scope(variantID, stageID)
	if err := s.ensure(ctx, "rebuild service parts", variantID); err != nil {
		return RebuildResult{}, err
	}
	return s.Store.RebuildTrainServiceParts(ctx, variantID, stageID, timetableYearLabel)
}

// SplitTrainServicePart cuts a part in two.
func (s *Service) SplitTrainServicePart(ctx context.Context, req SplitRequest) (*SplitResult, error) {
	req.VariantID, req.StageID = Scope(req.VariantID, req.StageID)
	if err := s.ensure(ctx, "split service part", req.VariantID); err != nil {
		return nil, err
	}
	return s.Store.SplitTrainServicePart(ctx, req)
}

// MergeTrainServiceParts folds the right part into the left one.
func (s *Service) MergeTrainServiceParts(ctx context.Context, variantID, stageID, leftPartID, rightPartID string) (*MergeResult, error) {
	variantID, stageID = Scope(variantID, stageID)
	if err := s.ensure(ctx, "merge service parts", variantID); err != nil {
		return nil, err
	}
	return s.Store.MergeTrainServiceParts(ctx, variantID, stageID, leftPartID, rightPartID)
}

// UpsertServicePartLink records a continuity link between two parts.
func (s *Service) UpsertServicePartLink(ctx context.Context, variantID, fromPartID, toPartID, kind string) (*models.TrainServicePartLink, error) {
	variantID, _ = Scope(variantID, "")
	if err := s.ensure(ctx, "upsert service part link", variantID); err != nil {
		return nil, err
	}
	return s.Store.UpsertLink(ctx, variantID, fromPartID, toPartID, kind)
}

// ListServicePartLinks returns the variant's links.
func (s *Service) ListServicePartLinks(ctx context.Context, variantID string) ([]models.TrainServicePartLink, error) {
	variantID, _ = Scope(variantID, "")
	return s.Store.ListLinks(ctx, variantID)
}

// PruneServicePartLinks removes dangling links older than grace. An empty
// variantID covers every variant.
func (s *Service) PruneServicePartLinks(ctx context.Context, variantID string, grace time.Duration) (int64, error) {
	return s.Store.PruneDanglingLinks(ctx, variantID, s.Store.now().UTC().Add(-grace))
}

// EnsureVariant creates the variant's partitions.
func (s *Service) EnsureVariant(ctx context.Context, variantID string) error {
	variantID, _ = Scope(variantID, "")
	return s.ensure(ctx, "ensure variant", variantID)
}

// DropVariant removes the variant's partitioned storage.
func (s *Service) DropVariant(ctx context.Context, variantID string) error {
	const op = "drop variant"
	if variantID == "" {
		return invalidArgument(op, ReasonMissingID, "", "variant id is required")
	}
	if !s.Store.Enabled() {
		return unavailable(op)
	}
	if err := s.Partitions.DropPlanningPartitions(ctx, variantID); err != nil {
		return fmt.Errorf("timetable: %s: %w", op, err)
	}
	return nil
}
