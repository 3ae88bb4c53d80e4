package ml

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const (
	ModelTypeRandomForest = "random_forest"
	ModelTypeDecisionTree = "decision_tree"
)

//go:embed assets/default_model.json
var defaultModel []byte

// Metrics are the held-out scores recorded when an artifact was trained.
// Malignant is the positive class for precision and recall.
type Metrics struct {
	Accuracy    float64 `json:"accuracy"`
	Precision   float64 `json:"precision"`
	Recall      float64 `json:"recall"`
	TestSamples int     `json:"test_samples"`
}

// Artifact bundles everything needed to score: the feature schema, the
// fitted scaler and the fitted classifier.
type Artifact struct {
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	Version      string          `json:"version"`
	TrainedAt    time.Time       `json:"trained_at"`
	FeatureNames []string        `json:"feature_names"`
	Scaler       *StandardScaler `json:"scaler"`
	Forest       *RandomForest   `json:"forest,omitempty"`
	Tree         *DecisionTree   `json:"tree,omitempty"`
	Metrics      Metrics         `json:"metrics"`
}

func (a *Artifact) Schema() (FeatureSchema, error) {
	return NewFeatureSchema(a.FeatureNames)
}

func (a *Artifact) Classifier() (Classifier, error) {
	switch a.Type {
	case ModelTypeRandomForest:
		if a.Forest == nil {
			return nil, errors.New("random forest artifact has no forest")
		}
		return a.Forest, nil
	case ModelTypeDecisionTree:
		if a.Tree == nil {
			return nil, errors.New("decision tree artifact has no tree")
		}
		return a.Tree, nil
	default:
		return nil, fmt.Errorf("unsupported model type %q", a.Type)
	}
}

// Validate checks that schema, scaler and classifier agree on the vector width.
func (a *Artifact) Validate() error {
	schema, err := a.Schema()
	if err != nil {
		return err
	}
	if a.Scaler == nil {
		return errors.New("artifact has no scaler")
	}
	if a.Scaler.Width() != schema.Len() || len(a.Scaler.Scale) != schema.Len() {
		return fmt.Errorf("%w: scaler fitted on %d features, schema has %d", ErrShapeMismatch, a.Scaler.Width(), schema.Len())
	}
	if _, err := a.Classifier(); err != nil {
		return err
	}
	return nil
}

func (a *Artifact) Save(path string) error {
	if err := a.Validate(); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, payload, 0o600)
}

func ParseModel(payload []byte) (*Artifact, error) {
	var artifact Artifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if artifact.Type == "" {
		artifact.Type = ModelTypeRandomForest
	}
	if err := artifact.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}
	return &artifact, nil
}

func LoadModel(path string) (*Artifact, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseModel(payload)
}

// DefaultModel returns the artifact bundled into the binary.
func DefaultModel() (*Artifact, error) {
	return ParseModel(defaultModel)
}

// LoadModelOrDefault loads the artifact at path, falling back to the bundled
// model when path is empty or the file does not exist.
func LoadModelOrDefault(path string, logger *zap.Logger) (*Artifact, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path != "" {
		artifact, err := LoadModel(path)
		if err == nil {
			logger.Info("model loaded",
				zap.String("path", path),
				zap.String("name", artifact.Name),
				zap.String("version", artifact.Version))
			return artifact, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load model %s: %w", path, err)
		}
		logger.Warn("model file not found, using bundled model", zap.String("path", path))
	}
	artifact, err := DefaultModel()
	if err != nil {
		return nil, fmt.Errorf("load bundled model: %w", err)
	}
	logger.Info("bundled model loaded", zap.String("name", artifact.Name), zap.String("version", artifact.Version))
	return artifact, nil
}
