package timetable

import (
	"context"
	"testing"
	"time"

	"github.com/kron12345/coreplanx/internal/models"
	"github.com/kron12345/coreplanx/internal/partition"
)

func openTestService(t *testing.T) *Service {
	t.Helper()
	s, gdb := openTestStore(t)
	return NewService(s, partition.NewManager(gdb))
}

func TestScope(t *testing.T) {
	tests := []struct {
		variant, stage         string
		wantVariant, wantStage string
	}{
		{"", "", "default", "base"},
		{"sim", "", "sim", "base"},
		{"", "dispatch", "default", "dispatch"},
		{"sim", "operations", "sim", "operations"},
	}
	for _, tt := range tests {
		v, st := Scope(tt.variant, tt.stage)
		if v != tt.wantVariant || st != tt.wantStage {
			t.Errorf("Scope(%q, %q) = %q, %q", tt.variant, tt.stage, v, st)
		}
	}
}

func TestService_DefaultScopeRoundTrip(t *testing.T) {
	svc := openTestService(t)
	ctx := context.Background()
	runs, segments := sampleGraph()

	res, err := svc.ReplaceSnapshot(ctx, ReplaceRequest{TrainRuns: runs, TrainSegments: segments})
	if err != nil {
		t.Fatalf("ReplaceSnapshot: %v", err)
	}
	if res.Revision == nil {
		t.Error("default variant is productive and should capture a revision")
	}

	view, err := svc.GetSnapshot(ctx, "", "")
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if view.VariantID != "default" || view.StageID != "base" {
		t.Errorf("scope = %s/%s", view.VariantID, view.StageID)
	}
	if len(view.TrainRuns) != 3 || len(view.TrainSegments) != 5 {
		t.Errorf("snapshot = %d runs / %d segments", len(view.TrainRuns), len(view.TrainSegments))
	}

	revs, err := svc.ListRevisions(ctx, "", "")
	if err != nil || len(revs) != 1 {
		t.Fatalf("ListRevisions = %d, %v; want 1", len(revs), err)
	}
}

func TestService_PartsWorkflow(t *testing.T) {
	svc := openTestService(t)
	ctx := context.Background()
	runs, segments := sampleGraph()
	if _, err := svc.ReplaceSnapshot(ctx, ReplaceRequest{VariantID: "sim", TrainRuns: runs, TrainSegments: segments}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RebuildTrainServiceParts(ctx, "sim", "", nil); err != nil {
		t.Fatalf("RebuildTrainServiceParts: %v", err)
	}

	res, err := svc.SplitTrainServicePart(ctx, SplitRequest{VariantID: "sim", PartID: r1Part, SplitAfterSegmentID: strPtr("S2")})
	if err != nil {
		t.Fatalf("SplitTrainServicePart: %v", err)
	}
	if _, err := svc.UpsertServicePartLink(ctx, "sim", res.LeftPartID, res.RightPartID, ""); err != nil {
		t.Fatalf("UpsertServicePartLink: %v", err)
	}
	if _, err := svc.MergeTrainServiceParts(ctx, "sim", "", res.LeftPartID, res.RightPartID); err != nil {
		t.Fatalf("MergeTrainServiceParts: %v", err)
	}

	parts, _ := svc.ListTrainServiceParts(ctx, "sim", "")
	if len(parts) != 2 {
		t.Errorf("parts = %d, want 2", len(parts))
	}
	links, _ := svc.ListServicePartLinks(ctx, "sim")
	if len(links) != 1 {
		t.Fatalf("links = %d, want 1 dangling", len(links))
	}
	n, err := svc.PruneServicePartLinks(ctx, "sim", 0)
	if err != nil || n != 1 {
		t.Errorf("PruneServicePartLinks = %d, %v; want 1", n, err)
	}
}

func TestService_RestoreEnsuresRevisionVariant(t *testing.T) {
	svc := openTestService(t)
	ctx := context.Background()
	runs, segments := sampleGraph()
	res, err := svc.ReplaceSnapshot(ctx, ReplaceRequest{VariantID: "sim", TrainRuns: runs, TrainSegments: segments, Message: strPtr("import")})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ReplaceSnapshot(ctx, ReplaceRequest{VariantID: "sim", TrainRuns: []models.TrainRun{}, TrainSegments: []models.TrainSegment{}}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RestoreRevision(ctx, res.Revision.ID, nil, nil); err != nil {
		t.Fatalf("RestoreRevision: %v", err)
	}
	view, _ := svc.GetSnapshot(ctx, "sim", "")
	if len(view.TrainRuns) != 3 {
		t.Errorf("restored runs = %d, want 3", len(view.TrainRuns))
	}

	_, err = svc.RestoreRevision(ctx, "missing", nil, nil)
	assertCode(t, err, ErrNotFound, ReasonRevisionNotFound)
}

func TestService_DropVariant(t *testing.T) {
	svc := openTestService(t)
	ctx := context.Background()
	runs, segments := sampleGraph()
	for _, v := range []string{"default", "sim"} {
		if _, err := svc.ReplaceSnapshot(ctx, ReplaceRequest{VariantID: v, TrainRuns: runs, TrainSegments: segments}); err != nil {
			t.Fatal(err)
		}
		if _, err := svc.RebuildTrainServiceParts(ctx, v, "", nil); err != nil {
			t.Fatal(err)
		}
	}

	if err := svc.DropVariant(ctx, "sim"); err != nil {
		t.Fatalf("DropVariant: %v", err)
	}
	sim, _ := svc.GetSnapshot(ctx, "sim", "")
	if len(sim.TrainRuns) != 0 || len(sim.TrainSegments) != 0 {
		t.Errorf("sim snapshot after drop = %d runs / %d segments", len(sim.TrainRuns), len(sim.TrainSegments))
	}
	if parts, _ := svc.ListTrainServiceParts(ctx, "sim", ""); len(parts) != 0 {
		t.Errorf("sim parts after drop = %d", len(parts))
	}
	def, _ := svc.GetSnapshot(ctx, "default", "")
	if len(def.TrainRuns) != 3 {
		t.Errorf("default runs after dropping sim = %d, want 3", len(def.TrainRuns))
	}

	assertCode(t, svc.DropVariant(ctx, ""), ErrInvalidArgument, ReasonMissingID)
	if err := svc.EnsureVariant(ctx, "sim"); err != nil {
		t.Errorf("EnsureVariant after drop: %v", err)
	}
}

func TestService_DisabledStorage(t *testing.T) {
	svc := NewService(NewStore(nil, Options{}), partition.NewManager(nil))
	ctx := context.Background()

	view, err := svc.GetSnapshot(ctx, "", "")
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if view.TrainRuns == nil || len(view.TrainRuns) != 0 {
		t.Errorf("disabled snapshot runs = %#v, want empty list", view.TrainRuns)
	}
	if parts, err := svc.ListTrainServiceParts(ctx, "", ""); err != nil || len(parts) != 0 {
		t.Errorf("ListTrainServiceParts = %v, %v", parts, err)
	}

	runs, segments := sampleGraph()
	writes := []struct {
		name string
		fn   func() error
	}{
		{"replace", func() error {
			_, err := svc.ReplaceSnapshot(ctx, ReplaceRequest{TrainRuns: runs, TrainSegments: segments})
			return err
		}},
		{"rebuild", func() error {
			_, err := svc.RebuildTrainServiceParts(ctx, "", "", nil)
			return err
		}},
		{"split", func() error {
			_, err := svc.SplitTrainServicePart(ctx, SplitRequest{PartID: r1Part, SplitAfterSegmentID: strPtr("S1")})
			return err
		}},
		{"merge", func() error {
			_, err := svc.MergeTrainServiceParts(ctx, "", "", "a", "b")
			return err
		}},
		{"link", func() error {
			_, err := svc.UpsertServicePartLink(ctx, "", "a", "b", "")
			return err
		}},
		{"revision", func() error {
			_, err := svc.CreateRevision(ctx, "", "", nil, nil)
			return err
		}},
		{"restore", func() error {
			_, err := svc.RestoreRevision(ctx, "r", nil, nil)
			return err
		}},
		{"prune", func() error {
			_, err := svc.PruneServicePartLinks(ctx, "", time.Hour)
			return err
		}},
		{"ensure", func() error { return svc.EnsureVariant(ctx, "sim") }},
		{"drop", func() error { return svc.DropVariant(ctx, "sim") }},
	}
	for _, w := range writes {
		if err := w.fn(); CodeOf(err) != CodeUnavailable {
			t.Errorf("%s on disabled storage: err = %v, want unavailable", w.name, err)
		}
	}
}
