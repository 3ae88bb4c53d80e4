package ml

import (
	"path/filepath"
	"testing"
)

func TestDecisionTreeTrainPredict(t *testing.T) {
	features := [][]float64{
		{0.1, 0.2},
		{0.2, 0.1},
		{0.9, 0.8},
		{0.8, 0.9},
	}
	labels := []int{0, 0, 2, 2}

	model := NewDecisionTree(TreeConfig{MaxDepth: 2})
	if err := model.Train(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	label, confidence, err := model.Predict([]float64{0.15, 0.15})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 0 {
		t.Fatalf("expected label 0, got %d", label)
	}
	if confidence != 1 {
		t.Fatalf("expected pure leaf confidence 1, got %f", confidence)
	}

	label, dist, err := model.PredictProba([]float64{0.85, 0.85})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 2 || len(dist) != 3 || dist[2] != 1 {
		t.Fatalf("unexpected prediction %d %v", label, dist)
	}
}

func TestDecisionTreeLeafDistribution(t *testing.T) {
	// identical rows cannot be split, so the leaf keeps the mixed distribution
	features := [][]float64{{1}, {1}, {1}, {1}}
	labels := []int{0, 1, 1, 1}

	model := NewDecisionTree(TreeConfig{MaxDepth: 4})
	if err := model.Train(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	label, dist, err := model.PredictProba([]float64{1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 1 || dist[0] != 0.25 || dist[1] != 0.75 {
		t.Fatalf("unexpected leaf: %d %v", label, dist)
	}
}

func TestDecisionTreeErrors(t *testing.T) {
	model := NewDecisionTree(TreeConfig{})
	if _, _, err := model.Predict([]float64{1}); err == nil {
		t.Fatal("expected error for untrained model")
	}
	if err := model.Train(nil, nil); err == nil {
		t.Fatal("expected error for empty input")
	}
	if err := model.Train([][]float64{{1}}, []int{0, 1}); err == nil {
		t.Fatal("expected error for size mismatch")
	}
}

func TestDecisionTreeSaveLoad(t *testing.T) {
	features := [][]float64{{0}, {1}, {2}, {3}}
	labels := []int{0, 0, 1, 1}
	model := NewDecisionTree(TreeConfig{MaxDepth: 3})
	if err := model.Train(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "tree.json")
	if err := model.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	loaded := &DecisionTree{}
	if err := loaded.Load(path); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	for i, row := range features {
		label, _, err := loaded.Predict(row)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if label != labels[i] {
			t.Fatalf("row %d: expected %d, got %d", i, labels[i], label)
		}
	}
}

func TestDecisionTreeRejectsBrokenNodes(t *testing.T) {
	tree := &DecisionTree{}
	err := tree.UnmarshalJSON([]byte(`{"nodes":[{"feature_idx":0,"threshold":1,"left_child":0,"right_child":5,"is_leaf":false}]}`))
	if err == nil {
		t.Fatal("expected error for invalid child indices")
	}
}
