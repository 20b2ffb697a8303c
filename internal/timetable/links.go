package timetable

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kron12345/coreplanx/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertLink records that fromPartID continues into toPartID. A second call
// with the same (variant, from, kind) replaces the target. Neither part is
// checked for existence.
func (s *Store) UpsertLink(ctx context.Context, variantID, fromPartID, toPartID, kind string) (*models.TrainServicePartLink, error) {
	const op = "upsert service part link"
	if fromPartID == "" || toPartID == "" {
		return nil, invalidArgument(op, ReasonMissingID, "", "fromPartId and toPartId are required")
	}
	if kind == "" {
		kind = models.DefaultLinkKind
	}
	link := &models.TrainServicePartLink{
		VariantID:  variantID,
		FromPartID: fromPartID,
		Kind:       kind,
		ToPartID:   toPartID,
		CreatedAt:  s.now().UTC(),
	}
	err := s.transaction(ctx, op, s.opts.DefaultTimeout, func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "variant_id"}, {Name: "from_part_id"}, {Name: "kind"}},
			DoUpdates: clause.AssignmentColumns([]string{"to_part_id", "created_at"}),
		}).Create(link).Error; err != nil {
			return fmt.Errorf("timetable: upsert link %s -> %s: %w", fromPartID, toPartID, err)
		}
		return tx.Where("variant_id = ? AND from_part_id = ? AND kind = ?", variantID, fromPartID, kind).Take(link).Error
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

// ListLinks returns the variant's links ordered by (from_part_id, kind).
func (s *Store) ListLinks(ctx context.Context, variantID string) ([]models.TrainServicePartLink, error) {
	links := []models.TrainServicePartLink{}
	if s.db == nil {
		return links, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.DefaultTimeout)
	defer cancel()
	if err := s.db.WithContext(ctx).
		Where("variant_id = ?", variantID).
		Order("from_part_id ASC, kind ASC").
		Find(&links).Error; err != nil {
		return nil, fmt.Errorf("timetable: list links for %s: %w", variantID, err)
	}
	return links, nil
}

// danglingLinkCondition matches links whose source or target part no longer
// exists in the link's variant.
const danglingLinkCondition = `(NOT EXISTS (SELECT 1 FROM train_service_parts p
    WHERE p.variant_id = train_service_part_links.variant_id AND p.id = train_service_part_links.from_part_id)
 OR NOT EXISTS (SELECT 1 FROM train_service_parts p
    WHERE p.variant_id = train_service_part_links.variant_id AND p.id = train_service_part_links.to_part_id))`

// PruneDanglingLinks deletes links created before cutoff whose source or
// target part is gone. Younger links are kept so that a link may be recorded
// before its target part exists. An empty variantID prunes every variant.
func (s *Store) PruneDanglingLinks(ctx context.Context, variantID string, cutoff time.Time) (int64, error) {
	const op = "prune service part links"
	var pruned int64
	err := s.transaction(ctx, op, s.opts.DefaultTimeout, func(tx *gorm.DB) error {
		q := tx.Where("created_at < ?", cutoff).Where(danglingLinkCondition)
		if variantID != "" {
			q = q.Where("variant_id = ?", variantID)
		}
		res := q.Delete(&models.TrainServicePartLink{})
		if res.Error != nil {
			return fmt.Errorf("timetable: prune links: %w", res.Error)
		}
		pruned = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	if pruned > 0 {
		log.Printf("timetable: pruned %d dangling service part links", pruned)
	}
	return pruned, nil
}
