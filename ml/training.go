package ml

import (
	"errors"
	"fmt"
	"time"
)

type TrainConfig struct {
	Name      string
	Version   string
	ModelType string
	TestRatio float64
	Forest    ForestConfig
}

func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Name:      "breast-cancer-rf",
		ModelType: ModelTypeRandomForest,
		TestRatio: 0.2,
		Forest:    DefaultForestConfig(),
	}
}

// TrainArtifact splits the dataset, fits the scaler on the training split,
// fits the classifier on the scaled rows and scores it on the held-out rows.
func TrainArtifact(dataset *Dataset, config TrainConfig) (*Artifact, error) {
	if dataset == nil || dataset.Len() == 0 {
		return nil, errors.New("dataset is empty")
	}
	if _, err := NewFeatureSchema(dataset.FeatureNames); err != nil {
		return nil, err
	}

	trainX, trainY, testX, testY := SplitDataset(dataset.Features, dataset.Labels, config.TestRatio, config.Forest.Seed)
	if len(trainX) == 0 {
		return nil, errors.New("training split is empty")
	}

	scaler := &StandardScaler{}
	if err := scaler.Fit(trainX); err != nil {
		return nil, fmt.Errorf("fit scaler: %w", err)
	}
	if scaler.Width() != len(dataset.FeatureNames) {
		return nil, fmt.Errorf("%w: %d columns, %d feature names", ErrShapeMismatch, scaler.Width(), len(dataset.FeatureNames))
	}
	scaledTrain, err := scaler.TransformAll(trainX)
	if err != nil {
		return nil, err
	}

	artifact := &Artifact{
		Name:         config.Name,
		Type:         config.ModelType,
		Version:      config.Version,
		TrainedAt:    time.Now().UTC(),
		FeatureNames: append([]string(nil), dataset.FeatureNames...),
		Scaler:       scaler,
	}
	if artifact.Version == "" {
		artifact.Version = artifact.TrainedAt.Format("2006.01.02")
	}

	var model MLModel
	switch config.ModelType {
	case ModelTypeRandomForest, "":
		forest := NewRandomForest(config.Forest)
		artifact.Type = ModelTypeRandomForest
		artifact.Forest = forest
		model = forest
	case ModelTypeDecisionTree:
		tree := NewDecisionTree(TreeConfig{MaxDepth: config.Forest.MaxDepth, MinSamplesSplit: config.Forest.MinSamplesSplit})
		artifact.Tree = tree
		model = tree
	default:
		return nil, fmt.Errorf("unsupported model type %q", config.ModelType)
	}
	if err := model.Train(scaledTrain, trainY); err != nil {
		return nil, fmt.Errorf("train %s: %w", artifact.Type, err)
	}

	if len(testX) > 0 {
		metrics, err := Evaluate(artifact, testX, testY)
		if err != nil {
			return nil, err
		}
		artifact.Metrics = metrics
	}
	return artifact, nil
}

// Evaluate scores raw (unscaled) rows with the artifact. Malignant is the
// positive class.
func Evaluate(artifact *Artifact, features [][]float64, labels []int) (Metrics, error) {
	if len(features) != len(labels) {
		return Metrics{}, errors.New("features and labels size mismatch")
	}
	if len(features) == 0 {
		return Metrics{}, nil
	}
	classifier, err := artifact.Classifier()
	if err != nil {
		return Metrics{}, err
	}

	var correct, truePositive, predictedPositive, actualPositive int
	for i, row := range features {
		scaled, err := artifact.Scaler.Transform(row)
		if err != nil {
			return Metrics{}, fmt.Errorf("row %d: %w", i, err)
		}
		label, _, err := classifier.PredictProba(scaled)
		if err != nil {
			return Metrics{}, fmt.Errorf("row %d: %w", i, err)
		}
		if label == labels[i] {
			correct++
		}
		if label == ClassMalignant {
			predictedPositive++
		}
		if labels[i] == ClassMalignant {
			actualPositive++
			if label == ClassMalignant {
				truePositive++
			}
		}
	}

	metrics := Metrics{
		Accuracy:    float64(correct) / float64(len(features)),
		TestSamples: len(features),
	}
	if predictedPositive > 0 {
		metrics.Precision = float64(truePositive) / float64(predictedPositive)
	}
	if actualPositive > 0 {
		metrics.Recall = float64(truePositive) / float64(actualPositive)
	}
	return metrics, nil
}
