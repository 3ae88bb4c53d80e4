package ml

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func separableData(n int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	features := make([][]float64, 0, n)
	labels := make([]int, 0, n)
	for i := 0; i < n; i++ {
		label := i % 2
		center := 2.0
		if label == 1 {
			center = -2.0
		}
		features = append(features, []float64{
			center + rng.NormFloat64()*0.3,
			rng.NormFloat64(),
			center/2 + rng.NormFloat64()*0.3,
			rng.NormFloat64(),
		})
		labels = append(labels, label)
	}
	return features, labels
}

func TestRandomForestTrainPredict(t *testing.T) {
	features, labels := separableData(80, 7)

	forest := NewRandomForest(ForestConfig{NumTrees: 15, MaxDepth: 4, Seed: 42})
	require.NoError(t, forest.Train(features, labels))
	require.Len(t, forest.Trees, 15)
	assert.Equal(t, 2, forest.NumClasses)

	label, proba, err := forest.PredictProba([]float64{2, 0, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, 0, label)
	assert.InDelta(t, 1.0, proba[0]+proba[1], 1e-9)

	label, confidence, err := forest.Predict([]float64{-2, 0, -1, 0})
	require.NoError(t, err)
	assert.Equal(t, 1, label)
	assert.Greater(t, confidence, 0.5)
}

func TestRandomForestDeterministic(t *testing.T) {
	features, labels := separableData(60, 3)

	a := NewRandomForest(ForestConfig{NumTrees: 5, MaxDepth: 3, Seed: 1})
	b := NewRandomForest(ForestConfig{NumTrees: 5, MaxDepth: 3, Seed: 1})
	require.NoError(t, a.Train(features, labels))
	require.NoError(t, b.Train(features, labels))

	for _, row := range features {
		_, pa, err := a.PredictProba(row)
		require.NoError(t, err)
		_, pb, err := b.PredictProba(row)
		require.NoError(t, err)
		assert.Equal(t, pa, pb)
	}
}

func TestRandomForestTieGoesToLowerClass(t *testing.T) {
	tree := &DecisionTree{}
	require.NoError(t, tree.UnmarshalJSON([]byte(
		`{"nodes":[{"feature_idx":-1,"left_child":-1,"right_child":-1,"class_label":0,"is_leaf":true,"distribution":[0.5,0.5]}]}`)))

	forest := &RandomForest{NumClasses: 2, Trees: []*DecisionTree{tree}}
	label, proba, err := forest.PredictProba([]float64{0})
	require.NoError(t, err)
	assert.Equal(t, 0, label)
	assert.Equal(t, []float64{0.5, 0.5}, proba)
}

func TestRandomForestUntrained(t *testing.T) {
	_, _, err := NewRandomForest(DefaultForestConfig()).PredictProba([]float64{1})
	assert.Error(t, err)
}
