package timetable

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kron12345/coreplanx/internal/models"
)

const r1Part = "tsp:base:R1:0-2"

func seedParts(t *testing.T, s *Store) {
	t.Helper()
	seedSample(t, s, "default")
	rebuild(t, s, "default", "base")
}

func split(t *testing.T, s *Store, partID, afterSegment, newID string) *SplitResult {
	t.Helper()
	req := SplitRequest{VariantID: "default", StageID: "base", PartID: partID, SplitAfterSegmentID: strPtr(afterSegment)}
	if newID != "" {
		req.NewPartID = strPtr(newID)
	}
	res, err := s.SplitTrainServicePart(context.Background(), req)
	if err != nil {
		t.Fatalf("SplitTrainServicePart(%s after %s): %v", partID, afterSegment, err)
	}
	return res
}

func listParts(t *testing.T, s *Store) []PartRecord {
	t.Helper()
	parts, err := s.ListTrainServiceParts(context.Background(), "default", "base")
	if err != nil {
		t.Fatalf("ListTrainServiceParts: %v", err)
	}
	return parts
}

func TestSplit_AfterSegment(t *testing.T) {
	s, _ := openTestStore(t)
	seedParts(t, s)

	res := split(t, s, r1Part, "S1", "tsp:R1-tail")
	if res.LeftPartID != r1Part || res.RightPartID != "tsp:R1-tail" {
		t.Fatalf("SplitResult = %+v", res)
	}

	parts := listParts(t, s)
	if len(parts) != 3 {
		t.Fatalf("parts = %d, want 3", len(parts))
	}
	left := partByID(t, parts, r1Part)
	if left.FromLocationID != "A" || left.ToLocationID != "B" || !equalIDs(left.SegmentIDs, []string{"S1"}) {
		t.Errorf("left = %s -> %s %v, want A -> B [S1]", left.FromLocationID, left.ToLocationID, left.SegmentIDs)
	}
	if want := baseTime.Add(50 * time.Minute); !left.EndTime.Equal(want) {
		t.Errorf("left end = %v, want %v", left.EndTime, want)
	}
	right := partByID(t, parts, "tsp:R1-tail")
	if right.FromLocationID != "B" || right.ToLocationID != "D" || !equalIDs(right.SegmentIDs, []string{"S2", "S3"}) {
		t.Errorf("right = %s -> %s %v, want B -> D [S2 S3]", right.FromLocationID, right.ToLocationID, right.SegmentIDs)
	}
	if !right.StartTime.Equal(baseTime.Add(time.Hour)) {
		t.Errorf("right start = %v", right.StartTime)
	}
	if right.TrainRunID != "R1" || right.StageID != "base" || right.TrainNumber != "IC 100" {
		t.Errorf("right part = %+v", right)
	}
	if parts[0].ID != r1Part || parts[1].ID != "tsp:R1-tail" {
		t.Errorf("order = %s, %s; want left before right", parts[0].ID, parts[1].ID)
	}
}

func TestSplit_ByOrderIndexGeneratesID(t *testing.T) {
	s, gdb := openTestStore(t)
	seedParts(t, s)

	res, err := s.SplitTrainServicePart(context.Background(), SplitRequest{
		VariantID:            "default",
		StageID:              "base",
		PartID:               r1Part,
		SplitAfterOrderIndex: intPtr(1),
	})
	if err != nil {
		t.Fatalf("SplitTrainServicePart: %v", err)
	}
	if !strings.HasPrefix(res.RightPartID, "tsp:") || res.RightPartID == r1Part {
		t.Errorf("generated RightPartID = %q", res.RightPartID)
	}

	parts := listParts(t, s)
	if got := partByID(t, parts, r1Part).SegmentIDs; !equalIDs(got, []string{"S1", "S2"}) {
		t.Errorf("left segments = %v", got)
	}
	if got := partByID(t, parts, res.RightPartID).SegmentIDs; !equalIDs(got, []string{"S3"}) {
		t.Errorf("right segments = %v", got)
	}

	var members []models.TrainServicePartSegment
	gdb.Where("part_id = ?", r1Part).Order("order_index").Find(&members)
	for i, m := range members {
		if m.OrderIndex != i {
			t.Errorf("member %s order index = %d, want %d", m.SegmentID, m.OrderIndex, i)
		}
	}
}

func TestSplit_ClonesLabelAndAttributes(t *testing.T) {
	s, gdb := openTestStore(t)
	ctx := context.Background()
	seedSample(t, s, "default")
	if _, err := s.RebuildTrainServiceParts(ctx, "default", "base", strPtr("2027")); err != nil {
		t.Fatal(err)
	}
	if err := gdb.Model(&models.TrainServicePart{}).Where("id = ?", r1Part).
		Update("attributes", `{"vehicle":"ICE4"}`).Error; err != nil {
		t.Fatal(err)
	}

	res := split(t, s, r1Part, "S2", "")
	right := partByID(t, listParts(t, s), res.RightPartID)
	if right.TimetableYearLabel == nil || *right.TimetableYearLabel != "2027" {
		t.Errorf("right year label = %v", right.TimetableYearLabel)
	}
	if string(right.Attributes) != `{"vehicle":"ICE4"}` {
		t.Errorf("right attributes = %s", right.Attributes)
	}
}

func TestSplit_Errors(t *testing.T) {
	tests := []struct {
		name     string
		req      SplitRequest
		sentinel error
		reason   string
	}{
		{"invalid stage", SplitRequest{StageID: "draft", PartID: r1Part, SplitAfterSegmentID: strPtr("S1")}, ErrInvalidArgument, ReasonInvalidStage},
		{"missing part id", SplitRequest{StageID: "base", SplitAfterSegmentID: strPtr("S1")}, ErrInvalidArgument, ReasonMissingID},
		{"no selector", SplitRequest{StageID: "base", PartID: r1Part}, ErrInvalidArgument, ReasonSelectorMissing},
		{"both selectors", SplitRequest{StageID: "base", PartID: r1Part, SplitAfterSegmentID: strPtr("S1"), SplitAfterOrderIndex: intPtr(0)}, ErrInvalidArgument, ReasonSelectorAmbiguous},
		{"unknown part", SplitRequest{StageID: "base", PartID: "tsp:nope", SplitAfterSegmentID: strPtr("S1")}, ErrNotFound, ReasonPartNotFound},
		{"part of other stage", SplitRequest{StageID: "dispatch", PartID: r1Part, SplitAfterSegmentID: strPtr("S1")}, ErrNotFound, ReasonPartNotFound},
		{"segment not a member", SplitRequest{StageID: "base", PartID: r1Part, SplitAfterSegmentID: strPtr("T1")}, ErrNotFound, ReasonSplitMemberMissing},
		{"order index not a member", SplitRequest{StageID: "base", PartID: r1Part, SplitAfterOrderIndex: intPtr(9)}, ErrNotFound, ReasonSplitMemberMissing},
		{"after last member", SplitRequest{StageID: "base", PartID: r1Part, SplitAfterSegmentID: strPtr("S3")}, ErrInvariantViolation, ReasonSplitAtLast},
		{"new id collides", SplitRequest{StageID: "base", PartID: r1Part, SplitAfterSegmentID: strPtr("S1"), NewPartID: strPtr("tsp:base:R2:0-1")}, ErrAlreadyExists, ReasonNewPartExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := openTestStore(t)
			seedParts(t, s)
			tt.req.VariantID = "default"
			_, err := s.SplitTrainServicePart(context.Background(), tt.req)
			assertCode(t, err, tt.sentinel, tt.reason)

			if got := partByID(t, listParts(t, s), r1Part).SegmentIDs; !equalIDs(got, []string{"S1", "S2", "S3"}) {
				t.Errorf("failed split modified part: %v", got)
			}
		})
	}
}

func TestSplit_SingleMemberPart(t *testing.T) {
	s, _ := openTestStore(t)
	seedParts(t, s)
	res := split(t, s, "tsp:base:R2:0-1", "T1", "tsp:R2-tail")

	_, err := s.SplitTrainServicePart(context.Background(), SplitRequest{
		VariantID: "default", StageID: "base", PartID: res.RightPartID, SplitAfterSegmentID: strPtr("T2"),
	})
	assertCode(t, err, ErrInvariantViolation, ReasonTooFewSegments)
}

func TestSplit_MemberSegmentGone(t *testing.T) {
	s, _ := openTestStore(t)
	seedParts(t, s)
	runs, segments := sampleGraph()
	var kept []models.TrainSegment
	for _, sg := range segments {
		if sg.ID != "S2" {
			kept = append(kept, sg)
		}
	}
	if _, err := s.ReplaceSnapshot(context.Background(), "default", "base", runs, kept); err != nil {
		t.Fatalf("ReplaceSnapshot: %v", err)
	}

	_, err := s.SplitTrainServicePart(context.Background(), SplitRequest{
		VariantID: "default", StageID: "base", PartID: r1Part, SplitAfterSegmentID: strPtr("S1"),
	})
	assertCode(t, err, ErrNotFound, ReasonSegmentNotFound)
}

func TestSplit_MemberOfOtherRun(t *testing.T) {
	s, _ := openTestStore(t)
	seedParts(t, s)
	runs, segments := sampleGraph()
	for i := range segments {
		if segments[i].ID == "S2" {
			segments[i].TrainRunID = "R2"
			segments[i].SectionIndex = 5
		}
	}
	if _, err := s.ReplaceSnapshot(context.Background(), "default", "base", runs, segments); err != nil {
		t.Fatalf("ReplaceSnapshot: %v", err)
	}

	_, err := s.SplitTrainServicePart(context.Background(), SplitRequest{
		VariantID: "default", StageID: "base", PartID: r1Part, SplitAfterSegmentID: strPtr("S1"),
	})
	assertCode(t, err, ErrInvariantViolation, ReasonSegmentRunMismatch)
}

func TestMerge_UndoesSplit(t *testing.T) {
	s, gdb := openTestStore(t)
	seedParts(t, s)
	before := partByID(t, listParts(t, s), r1Part)

	res := split(t, s, r1Part, "S1", "tsp:R1-tail")
	merged, err := s.MergeTrainServiceParts(context.Background(), "default", "base", res.LeftPartID, res.RightPartID)
	if err != nil {
		t.Fatalf("MergeTrainServiceParts: %v", err)
	}
	if merged.MergedPartID != r1Part {
		t.Errorf("MergedPartID = %q, want %q", merged.MergedPartID, r1Part)
	}

	parts := listParts(t, s)
	if len(parts) != 2 {
		t.Fatalf("parts = %d, want 2", len(parts))
	}
	after := partByID(t, parts, r1Part)
	if after.FromLocationID != before.FromLocationID || after.ToLocationID != before.ToLocationID {
		t.Errorf("merged = %s -> %s, want %s -> %s", after.FromLocationID, after.ToLocationID, before.FromLocationID, before.ToLocationID)
	}
	if !after.StartTime.Equal(before.StartTime) || !after.EndTime.Equal(before.EndTime) {
		t.Errorf("merged window = %v..%v, want %v..%v", after.StartTime, after.EndTime, before.StartTime, before.EndTime)
	}
	if !equalIDs(after.SegmentIDs, []string{"S1", "S2", "S3"}) {
		t.Errorf("merged segments = %v", after.SegmentIDs)
	}

	var n int64
	gdb.Model(&models.TrainServicePartSegment{}).Where("part_id = ?", "tsp:R1-tail").Count(&n)
	if n != 0 {
		t.Errorf("right part still has %d memberships", n)
	}
	var members []models.TrainServicePartSegment
	gdb.Where("part_id = ?", r1Part).Order("order_index").Find(&members)
	for i, m := range members {
		if m.OrderIndex != i {
			t.Errorf("member %s order index = %d, want %d", m.SegmentID, m.OrderIndex, i)
		}
	}
}

func TestMerge_EndpointsFollowSegments(t *testing.T) {
	s, gdb := openTestStore(t)
	seedParts(t, s)
	res := split(t, s, r1Part, "S1", "tsp:R1-tail")

	// Stored endpoints that no longer match the members are not trusted.
	if err := gdb.Model(&models.TrainServicePart{}).
		Where("id IN ?", []string{res.LeftPartID, res.RightPartID}).
		Updates(map[string]interface{}{
			"from_location_id": "STALE",
			"to_location_id":   "STALE",
			"start_time":       baseTime.Add(-24 * time.Hour),
			"end_time":         baseTime.Add(24 * time.Hour),
		}).Error; err != nil {
		t.Fatalf("corrupt endpoints: %v", err)
	}

	if _, err := s.MergeTrainServiceParts(context.Background(), "default", "base", res.LeftPartID, res.RightPartID); err != nil {
		t.Fatalf("MergeTrainServiceParts: %v", err)
	}
	merged := partByID(t, listParts(t, s), r1Part)
	if merged.FromLocationID != "A" || merged.ToLocationID != "D" {
		t.Errorf("merged = %s -> %s, want A -> D", merged.FromLocationID, merged.ToLocationID)
	}
	if !merged.StartTime.Equal(baseTime) {
		t.Errorf("merged start = %v, want %v", merged.StartTime, baseTime)
	}
	if want := baseTime.Add(2*time.Hour + 50*time.Minute); !merged.EndTime.Equal(want) {
		t.Errorf("merged end = %v, want %v", merged.EndTime, want)
	}
}

func TestPartID_KeptAcrossSplit(t *testing.T) {
	s, _ := openTestStore(t)
	seedParts(t, s)
	res := split(t, s, r1Part, "S1", "")

	left := partByID(t, listParts(t, s), res.LeftPartID)
	if left.ID != PartID("base", "R1", 0, 2) {
		t.Errorf("left id = %q, want the rebuilt id", left.ID)
	}
	if !equalIDs(left.SegmentIDs, []string{"S1"}) {
		t.Errorf("left segments = %v, want [S1]", left.SegmentIDs)
	}
}

func TestMerge_Errors(t *testing.T) {
	tests := []struct {
		name        string
		left, right string
		sentinel    error
		reason      string
	}{
		{"missing left", "", "tsp:R1-tail", ErrInvalidArgument, ReasonMissingID},
		{"self merge", r1Part, r1Part, ErrInvalidArgument, ReasonSelfMerge},
		{"unknown left", "tsp:nope", "tsp:R1-tail", ErrNotFound, ReasonPartNotFound},
		{"unknown right", r1Part, "tsp:nope", ErrNotFound, ReasonPartNotFound},
		{"different runs", r1Part, "tsp:base:R2:0-1", ErrInvariantViolation, ReasonRunMismatch},
		{"reversed order", "tsp:R1-tail", r1Part, ErrInvariantViolation, ReasonNotAdjacent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := openTestStore(t)
			seedParts(t, s)
			split(t, s, r1Part, "S1", "tsp:R1-tail")

			_, err := s.MergeTrainServiceParts(context.Background(), "default", "base", tt.left, tt.right)
			assertCode(t, err, tt.sentinel, tt.reason)
			if len(listParts(t, s)) != 3 {
				t.Error("failed merge changed the part set")
			}
		})
	}
}

func TestMerge_NotAdjacent(t *testing.T) {
	s, _ := openTestStore(t)
	seedParts(t, s)
	split(t, s, r1Part, "S1", "tsp:mid")
	split(t, s, "tsp:mid", "S2", "tsp:tail")

	_, err := s.MergeTrainServiceParts(context.Background(), "default", "base", r1Part, "tsp:tail")
	assertCode(t, err, ErrInvariantViolation, ReasonNotAdjacent)

	if _, err := s.MergeTrainServiceParts(context.Background(), "default", "base", "tsp:mid", "tsp:tail"); err != nil {
		t.Fatalf("merge adjacent pair: %v", err)
	}
	if _, err := s.MergeTrainServiceParts(context.Background(), "default", "base", r1Part, "tsp:mid"); err != nil {
		t.Fatalf("merge remaining pair: %v", err)
	}
	if got := partByID(t, listParts(t, s), r1Part).SegmentIDs; !equalIDs(got, []string{"S1", "S2", "S3"}) {
		t.Errorf("segments = %v", got)
	}
}

func TestMerge_OverlappingMembers(t *testing.T) {
	s, gdb := openTestStore(t)
	seedParts(t, s)
	split(t, s, r1Part, "S1", "tsp:R1-tail")
	if err := gdb.Create(&models.TrainServicePartSegment{
		VariantID: "default", PartID: "tsp:R1-tail", SegmentID: "S1", OrderIndex: 5,
	}).Error; err != nil {
		t.Fatal(err)
	}

	_, err := s.MergeTrainServiceParts(context.Background(), "default", "base", r1Part, "tsp:R1-tail")
	assertCode(t, err, ErrInvariantViolation, ReasonOverlappingMembers)
}

func TestMerge_EmptyPart(t *testing.T) {
	s, gdb := openTestStore(t)
	seedParts(t, s)
	if err := gdb.Create(&models.TrainServicePart{
		ID: "tsp:empty", VariantID: "default", StageID: "base", TrainRunID: "R1",
		FromLocationID: "D", ToLocationID: "D", StartTime: baseTime, EndTime: baseTime,
	}).Error; err != nil {
		t.Fatal(err)
	}

	_, err := s.MergeTrainServiceParts(context.Background(), "default", "base", r1Part, "tsp:empty")
	assertCode(t, err, ErrInvariantViolation, ReasonEmptyPart)
}
