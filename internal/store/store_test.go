package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/caffdose/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "nested", "caffdose.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func sampleRecord(created time.Time) model.PlanRecord {
	return model.PlanRecord{
		CreatedAt: created,
		Config: model.PlanConfig{
			AbsorptionHalfLife:  0.5,
			EliminationHalfLife: 5,
			Max:                 100,
			Min:                 40,
			Start:               8,
			End:                 20,
			Sleep:               23,
		},
		DFirst:             129.15,
		DNext:              88.34,
		FirstDoseTime:      7.726,
		FirstInterval:      9.215,
		SubsequentInterval: 8.941,
		EndLevel:           40,
		Doses: []model.Dose{
			{Time: 7.726, Amount: 129.15},
			{Time: 16.941, Amount: 19.44, Adjusted: true},
		},
	}
}

func TestInsertAndGetPlan(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	rec := sampleRecord(time.Unix(1000, 0).UTC())
	id, err := st.InsertPlan(ctx, rec)
	if err != nil {
		t.Fatalf("insert plan: %v", err)
	}
	got, err := st.GetPlan(ctx, id)
	if err != nil {
		t.Fatalf("get plan: %v", err)
	}
	if got.ID != id || !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Fatalf("unexpected header %+v", got)
	}
	if got.Config != rec.Config {
		t.Fatalf("config mismatch: %+v vs %+v", got.Config, rec.Config)
	}
	if len(got.Doses) != 2 || got.Doses[0].Adjusted || !got.Doses[1].Adjusted {
		t.Fatalf("unexpected doses %+v", got.Doses)
	}
	if got.Doses[1].Amount != 19.44 {
		t.Fatalf("unexpected dose amount %v", got.Doses[1].Amount)
	}
}

func TestGetPlanNotFound(t *testing.T) {
	st := openTestStore(t)
	if _, err := st.GetPlan(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListPlansNewestFirst(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	var ids []int64
	for i := 0; i < 3; i++ {
		rec := sampleRecord(time.Unix(0, 0).Add(time.Duration(i) * time.Hour).UTC())
		if i == 1 {
			rec.Doses = nil
			rec.CorrectionSkipped = true
		}
		id, err := st.InsertPlan(ctx, rec)
		if err != nil {
			t.Fatalf("insert plan: %v", err)
		}
		ids = append(ids, id)
	}
	plans, err := st.ListPlans(ctx, 2)
	if err != nil {
		t.Fatalf("list plans: %v", err)
	}
	if len(plans) != 2 {
		t.Fatalf("expected 2 plans, got %d", len(plans))
	}
	if plans[0].ID != ids[2] || plans[1].ID != ids[1] {
		t.Fatalf("unexpected order: %d, %d", plans[0].ID, plans[1].ID)
	}
	if !plans[1].CorrectionSkipped {
		t.Fatalf("expected skipped flag to round-trip")
	}
	all, err := st.ListPlans(ctx, 0)
	if err != nil {
		t.Fatalf("list plans: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 plans, got %d", len(all))
	}
}
