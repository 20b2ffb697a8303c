// Package partition manages per-variant physical storage for the
// variant-scoped timetable tables.
package partition

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log"
	"strings"

	"github.com/kron12345/coreplanx/internal/db"
	"gorm.io/gorm"
)

const (
	// MaxIdentifierLength is the PostgreSQL identifier limit (NAMEDATALEN-1).
	MaxIdentifierLength = 63
	hashLength          = 10
)

// Partition pairs a logical parent table with a variant's physical partition.
type Partition struct {
	Parent string
	Name   string
}

// Manager ensures and drops variant partitions. A Manager with a nil DB
// (storage disabled) turns every call into a no-op.
type Manager struct {
	DB *gorm.DB
}

// NewManager returns a Manager bound to gdb.
func NewManager(gdb *gorm.DB) *Manager {
	return &Manager{DB: gdb}
}

// Name derives the partition name for (parent, variantID). A variant id that
// sanitizing alters, or one that would overflow MaxIdentifierLength, gets a
// hash of the raw id appended, so ids that sanitize alike ("Prod-A" and
// "prod_a") still map to distinct tables.
func Name(parent, variantID string) string {
	clean := sanitize(variantID)
	name := parent + "__" + clean
	if clean == variantID && len(name) <= MaxIdentifierLength {
		return name
	}
	sum := sha1.Sum([]byte(variantID))
	suffix := hex.EncodeToString(sum[:])[:hashLength]
	if limit := MaxIdentifierLength - 1 - hashLength; len(name) > limit {
		name = name[:limit]
	}
	return name + "_" + suffix
}

// sanitize lowercases s and replaces every rune outside [a-z0-9_] with '_'.
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Plan lists the partitions a variant needs, one per variant-scoped table.
func Plan(variantID string) []Partition {
	tables := db.VariantTables()
	out := make([]Partition, 0, len(tables))
	for _, parent := range tables {
		out = append(out, Partition{Parent: parent, Name: Name(parent, variantID)})
	}
	return out
}

func (m *Manager) enabled(variantID string) bool {
	return m != nil && m.DB != nil && variantID != ""
}

func (m *Manager) physical() bool {
	return m.DB.Dialector.Name() == "postgres"
}

// EnsurePlanningPartitions creates any missing partition for variantID in a
// single transaction. On engines without native partitioning variant_id is a
// discriminator column and there is nothing to create.
func (m *Manager) EnsurePlanningPartitions(ctx context.Context, variantID string) error {
	if !m.enabled(variantID) || !m.physical() {
		return nil
	}
	err := m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range Plan(variantID) {
			stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s PARTITION OF %s FOR VALUES IN (%s)",
				quoteIdent(p.Name), quoteIdent(p.Parent), quoteLiteral(variantID))
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("create %s: %w", p.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("partition: ensure %s: %w", variantID, err)
	}
	return nil
}

// DropPlanningPartitions removes the variant's storage in a single
// transaction. Missing partitions are not an error. Without native
// partitioning the variant's rows are bulk-deleted instead, children first.
func (m *Manager) DropPlanningPartitions(ctx context.Context, variantID string) error {
	if !m.enabled(variantID) {
		return nil
	}
	plan := Plan(variantID)
	err := m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := len(plan) - 1; i >= 0; i-- {
			p := plan[i]
			if m.physical() {
				if err := tx.Exec("DROP TABLE IF EXISTS " + quoteIdent(p.Name)).Error; err != nil {
					return fmt.Errorf("drop %s: %w", p.Name, err)
				}
				continue
			}
			if err := tx.Exec("DELETE FROM "+p.Parent+" WHERE variant_id = ?", variantID).Error; err != nil {
				return fmt.Errorf("delete %s rows: %w", p.Parent, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("partition: drop %s: %w", variantID, err)
	}
	log.Printf("partition: dropped storage for variant %s (%d tables)", variantID, len(plan))
	return nil
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
