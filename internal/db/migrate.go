package db

import (
	"fmt"

	"github.com/kron12345/coreplanx/internal/models"
	"gorm.io/gorm"
)

// Variant-partitioned tables, in dependency order (owners first).
const (
	TableTrainRuns               = "train_runs"
	TableTrainSegments           = "train_segments"
	TableTrainServiceParts       = "train_service_parts"
	TableTrainServicePartSegment = "train_service_part_segments"
	TableTrainServicePartLinks   = "train_service_part_links"
)

// VariantTables returns the logical tables partitioned by variant_id.
func VariantTables() []string {
	return []string{
		TableTrainRuns,
		TableTrainSegments,
		TableTrainServiceParts,
		TableTrainServicePartSegment,
		TableTrainServicePartLinks,
	}
}

// AllModels returns every GORM model owned by the timetable core.
func AllModels() []interface{} {
	return []interface{}{
		&models.PlanningStage{},
		&models.TrainRun{},
		&models.TrainSegment{},
		&models.TrainServicePart{},
		&models.TrainServicePartSegment{},
		&models.TrainServicePartLink{},
		&models.TimetableRevision{},
	}
}

// sharedModels are never partitioned.
func sharedModels() []interface{} {
	return []interface{}{
		&models.PlanningStage{},
		&models.TimetableRevision{},
	}
}

// postgresPartitionedDDL creates the LIST-partitioned parents. Every primary
// and unique key includes the partition key variant_id.
var postgresPartitionedDDL = []string{
	`CREATE TABLE IF NOT EXISTS train_runs (
    id           varchar(128) NOT NULL,
    variant_id   varchar(64)  NOT NULL,
    train_number varchar(64)  NOT NULL,
    timetable_id varchar(128),
    attributes   jsonb,
    PRIMARY KEY (id, variant_id)
) PARTITION BY LIST (variant_id)`,
	`CREATE INDEX IF NOT EXISTS idx_train_runs_variant_number ON train_runs (variant_id, train_number)`,
	`CREATE TABLE IF NOT EXISTS train_segments (
    id               varchar(128) NOT NULL,
    variant_id       varchar(64)  NOT NULL,
    train_run_id     varchar(128) NOT NULL,
    section_index    bigint       NOT NULL,
    start_time       timestamptz  NOT NULL,
    end_time         timestamptz  NOT NULL,
    from_location_id varchar(128) NOT NULL,
    to_location_id   varchar(128) NOT NULL,
    path_id          varchar(128),
    distance_km      double precision,
    attributes       jsonb,
    PRIMARY KEY (id, variant_id)
) PARTITION BY LIST (variant_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_train_segments_run_section ON train_segments (variant_id, train_run_id, section_index)`,
	`CREATE TABLE IF NOT EXISTS train_service_parts (
    id                   varchar(255) NOT NULL,
    variant_id           varchar(64)  NOT NULL,
    stage_id             varchar(32)  NOT NULL,
    timetable_year_label varchar(32),
    train_run_id         varchar(128) NOT NULL,
    from_location_id     varchar(128) NOT NULL,
    to_location_id       varchar(128) NOT NULL,
    start_time           timestamptz  NOT NULL,
    end_time             timestamptz  NOT NULL,
    attributes           jsonb,
    PRIMARY KEY (id, variant_id)
) PARTITION BY LIST (variant_id)`,
	`CREATE INDEX IF NOT EXISTS idx_service_parts_stage ON train_service_parts (variant_id, stage_id)`,
	`CREATE INDEX IF NOT EXISTS idx_train_service_parts_train_run_id ON train_service_parts (train_run_id)`,
	`CREATE TABLE IF NOT EXISTS train_service_part_segments (
    variant_id  varchar(64)  NOT NULL,
    part_id     varchar(255) NOT NULL,
    segment_id  varchar(128) NOT NULL,
    order_index bigint       NOT NULL,
    PRIMARY KEY (variant_id, part_id, segment_id)
) PARTITION BY LIST (variant_id)`,
	`CREATE TABLE IF NOT EXISTS train_service_part_links (
    variant_id   varchar(64)  NOT NULL,
    from_part_id varchar(255) NOT NULL,
    kind         varchar(32)  NOT NULL DEFAULT 'circulation',
    to_part_id   varchar(255) NOT NULL,
    created_at   timestamptz,
    PRIMARY KEY (variant_id, from_part_id, kind)
) PARTITION BY LIST (variant_id)`,
	`CREATE INDEX IF NOT EXISTS idx_train_service_part_links_to_part_id ON train_service_part_links (to_part_id)`,
}

// AutoMigrate creates or updates all timetable tables. On PostgreSQL the
// variant-scoped tables are created as LIST-partitioned parents; elsewhere
// variant_id is a plain discriminator column leading every index.
func AutoMigrate(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		if err := db.AutoMigrate(AllModels()...); err != nil {
			return fmt.Errorf("db: auto-migrate: %w", err)
		}
		return nil
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		for _, stmt := range postgresPartitionedDDL {
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return tx.AutoMigrate(sharedModels()...)
	})
	if err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
