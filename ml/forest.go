package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

type ForestConfig struct {
	NumTrees        int
	MaxDepth        int
	MinSamplesSplit int
	// MaxFeatures per split; 0 means sqrt of the feature count.
	MaxFeatures int
	Seed        int64
}

func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		NumTrees:        100,
		MaxDepth:        10,
		MinSamplesSplit: 2,
		Seed:            42,
	}
}

// RandomForest averages the leaf class distributions of bootstrapped trees.
type RandomForest struct {
	NumClasses int             `json:"num_classes"`
	Trees      []*DecisionTree `json:"trees"`

	config ForestConfig
}

func NewRandomForest(config ForestConfig) *RandomForest {
	if config.NumTrees <= 0 {
		config.NumTrees = DefaultForestConfig().NumTrees
	}
	return &RandomForest{config: config}
}

func (f *RandomForest) Train(features [][]float64, labels []int) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}

	width := len(features[0])
	maxFeatures := f.config.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Sqrt(float64(width)))
		if maxFeatures < 1 {
			maxFeatures = 1
		}
	}

	numClasses := numClassesOf(labels)
	trees := make([]*DecisionTree, 0, f.config.NumTrees)
	for t := 0; t < f.config.NumTrees; t++ {
		rng := rand.New(rand.NewSource(f.config.Seed + int64(t)))
		sampleX := make([][]float64, len(features))
		sampleY := make([]int, len(labels))
		for i := range sampleX {
			idx := rng.Intn(len(features))
			sampleX[i] = features[idx]
			sampleY[i] = labels[idx]
		}

		tree := NewDecisionTree(TreeConfig{
			MaxDepth:        f.config.MaxDepth,
			MinSamplesSplit: f.config.MinSamplesSplit,
			MaxFeatures:     maxFeatures,
		})
		if err := tree.train(sampleX, sampleY, numClasses, rng); err != nil {
			return fmt.Errorf("tree %d: %w", t, err)
		}
		trees = append(trees, tree)
	}

	f.Trees = trees
	f.NumClasses = numClasses
	return nil
}

// PredictProba returns the class with the highest mean probability (lowest
// index on ties) and the per-class mean probabilities.
func (f *RandomForest) PredictProba(vector []float64) (int, []float64, error) {
	if len(f.Trees) == 0 {
		return 0, nil, errors.New("model not trained")
	}
	numClasses := f.NumClasses
	if numClasses < 2 {
		numClasses = 2
	}
	proba := make([]float64, numClasses)
	for i, tree := range f.Trees {
		_, dist, err := tree.PredictProba(vector)
		if err != nil {
			return 0, nil, fmt.Errorf("tree %d: %w", i, err)
		}
		if len(dist) > numClasses {
			return 0, nil, fmt.Errorf("tree %d: %d classes, forest has %d", i, len(dist), numClasses)
		}
		for class, p := range dist {
			proba[class] += p
		}
	}

	best := 0
	for class := range proba {
		proba[class] /= float64(len(f.Trees))
		if proba[class] > proba[best] {
			best = class
		}
	}
	return best, proba, nil
}

func (f *RandomForest) Predict(vector []float64) (int, float64, error) {
	label, proba, err := f.PredictProba(vector)
	if err != nil {
		return 0, 0, err
	}
	return label, proba[label], nil
}
