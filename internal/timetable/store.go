// Package timetable maintains variant timetable snapshots, their revision
// history, and the service parts derived from them.
package timetable

import (
	"context"
	"time"

	"github.com/kron12345/coreplanx/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Defaults applied when a caller omits the variant or stage.
const (
	DefaultVariantID = "default"
	DefaultStageID   = models.StageBase
)

// Options tunes a Store.
type Options struct {
	// BatchSize bounds rows per INSERT in bulk upserts.
	BatchSize int
	// DefaultTimeout bounds every transaction except snapshot replacement.
	DefaultTimeout time.Duration
	// ReplaceTimeout bounds snapshot replacement and restore.
	ReplaceTimeout time.Duration
	// IsProductive classifies variants whose replacements are always revisioned.
	IsProductive func(variantID string) bool
}

// Store is the transactional repository over the timetable tables. A Store
// with a nil DB models disabled storage: reads return empty results and
// writes fail with ErrUnavailable.
type Store struct {
	db   *gorm.DB
	opts Options
	now  func() time.Time
}

// NewStore returns a Store over gdb.
func NewStore(gdb *gorm.DB, opts Options) *Store {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 30 * time.Second
	}
	if opts.ReplaceTimeout <= 0 {
		opts.ReplaceTimeout = 5 * time.Minute
	}
	if opts.IsProductive == nil {
		opts.IsProductive = func(id string) bool { return id == DefaultVariantID }
	}
	return &Store{db: gdb, opts: opts, now: time.Now}
}

// Enabled reports whether the store has a database behind it.
func (s *Store) Enabled() bool {
	return s.db != nil
}

// transaction runs fn in one transaction bounded by timeout. The transaction
// commits only if fn returns nil; errors, panics and context expiry roll back.
func (s *Store) transaction(ctx context.Context, op string, timeout time.Duration, fn func(tx *gorm.DB) error) error {
	if s.db == nil {
		return unavailable(op)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.db.WithContext(ctx).Transaction(fn)
}

// forUpdate locks selected rows until the transaction ends. SQLite ignores
// the clause; its single writer serializes transactions instead.
func forUpdate() clause.Locking {
	return clause.Locking{Strength: "UPDATE"}
}

func validateStage(op, stageID string) error {
	if !models.IsValidStage(stageID) {
		return invalidArgument(op, ReasonInvalidStage, stageID, "unknown stage %q", stageID)
	}
	return nil
}

func strPtrSet(p *string) bool {
	return p != nil && *p != ""
}
