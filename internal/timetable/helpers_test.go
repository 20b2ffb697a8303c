package timetable

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kron12345/coreplanx/internal/db"
	"github.com/kron12345/coreplanx/internal/models"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var baseTime = time.Date(2027, 1, 4, 8, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return gdb
}

// openTestStore returns a Store whose clock advances one second per call.
func openTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	gdb := openTestDB(t)
	s := NewStore(gdb, Options{BatchSize: 2})
	clock := baseTime
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s, gdb
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func seg(id, run string, idx int, from, to string) models.TrainSegment {
	start := baseTime.Add(time.Duration(idx) * time.Hour)
	return models.TrainSegment{
		ID:             id,
		TrainRunID:     run,
		SectionIndex:   idx,
		StartTime:      start,
		EndTime:        start.Add(50 * time.Minute),
		FromLocationID: from,
		ToLocationID:   to,
	}
}

// sampleGraph is R1: S1 A-B, S2 B-C, S3 C-D; R2: T1 X-Y, T2 Y-Z; R3 has no segments.
func sampleGraph() ([]models.TrainRun, []models.TrainSegment) {
	runs := []models.TrainRun{
		{ID: "R1", TrainNumber: "IC 100", Attributes: datatypes.JSON(`{"operator":"sbb"}`)},
		{ID: "R2", TrainNumber: "IR 200", TimetableID: strPtr("tt-2027")},
		{ID: "R3", TrainNumber: "S 300"},
	}
	dist := 12.5
	s3 := seg("S3", "R1", 2, "C", "D")
	s3.DistanceKm = &dist
	s3.PathID = strPtr("path-7")
	segments := []models.TrainSegment{
		seg("S1", "R1", 0, "A", "B"),
		seg("S2", "R1", 1, "B", "C"),
		s3,
		seg("T1", "R2", 0, "X", "Y"),
		seg("T2", "R2", 1, "Y", "Z"),
	}
	return runs, segments
}

func seedSample(t *testing.T, s *Store, variantID string) {
	t.Helper()
	runs, segments := sampleGraph()
	if _, err := s.ReplaceSnapshot(context.Background(), variantID, "base", runs, segments); err != nil {
		t.Fatalf("ReplaceSnapshot: %v", err)
	}
}

func assertCode(t *testing.T, err error, sentinel error, reason string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", sentinel)
	}
	if !errors.Is(err, sentinel) {
		t.Fatalf("error = %v, want errors.Is %v", err, sentinel)
	}
	var te *Error
	if !errors.As(err, &te) {
		t.Fatalf("error %v is not a *timetable.Error", err)
	}
	if reason != "" && te.Reason != reason {
		t.Errorf("Reason = %q, want %q", te.Reason, reason)
	}
}

func partByRun(t *testing.T, records []PartRecord, runID string) PartRecord {
	t.Helper()
	for _, r := range records {
		if r.TrainRunID == runID {
			return r
		}
	}
	t.Fatalf("no part for run %s", runID)
	return PartRecord{}
}

func partByID(t *testing.T, records []PartRecord, id string) PartRecord {
	t.Helper()
	for _, r := range records {
		if r.ID == id {
			return r
		}
	}
	t.Fatalf("no part %s", id)
	return PartRecord{}
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
