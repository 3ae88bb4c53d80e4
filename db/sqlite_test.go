package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPredictionHistory(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	records := []PredictionRecord{
		{ID: "a", Mode: "full", Prediction: "Benign", RawPrediction: 1, Confidence: 97.8, Malignant: 2.2, Benign: 97.8, ModelVersion: "v1", CreatedAt: base},
		{ID: "b", Mode: "simple", Prediction: "Malignant", RawPrediction: 0, Confidence: 63.2, Malignant: 63.2, Benign: 36.8, CreatedAt: base.Add(time.Minute)},
		{ID: "c", Mode: "full", Prediction: "Malignant", RawPrediction: 0, Confidence: 95.8, Malignant: 95.8, Benign: 4.2, ModelVersion: "v1", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, r := range records {
		if err := store.SavePrediction(ctx, r); err != nil {
			t.Fatalf("save %s: %v", r.ID, err)
		}
	}

	recent, err := store.RecentPredictions(ctx, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recent))
	}
	if recent[0].ID != "c" || recent[1].ID != "b" {
		t.Fatalf("unexpected order: %s, %s", recent[0].ID, recent[1].ID)
	}
	if recent[1].Mode != "simple" || recent[1].Malignant != 63.2 || recent[1].ModelVersion != "" {
		t.Fatalf("unexpected record: %+v", recent[1])
	}
}

func TestSavePredictionRequiresID(t *testing.T) {
	store := openTestStore(t)
	if err := store.SavePrediction(context.Background(), PredictionRecord{Mode: "full"}); err == nil {
		t.Fatal("expected error for missing id")
	}
}

func TestTrainingLog(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.SaveTrainingLog(ctx, TrainingLog{ModelName: "rf", ModelPath: "models/a.json", Accuracy: 0.95, DataPoints: 455,
		TrainedAt: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.SaveTrainingLog(ctx, TrainingLog{ModelName: "rf", Accuracy: 0.96, DataPoints: 455}); err != nil {
		t.Fatalf("save: %v", err)
	}

	logs, err := store.LoadTrainingLog(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 logs, got %d", len(logs))
	}
	if logs[0].Accuracy != 0.96 || logs[1].ModelPath != "models/a.json" {
		t.Fatalf("unexpected logs: %+v", logs)
	}
}
