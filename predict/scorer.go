package predict

import (
	"errors"
	"fmt"
	"math"

	"cancerscope/ml"
)

const probabilityTolerance = 1e-6

// Score is the raw classifier output for one vector.
type Score struct {
	ClassIndex    int
	Probabilities [2]float64
}

// Scorer standardizes a vector with the fitted scaler and classifies it.
type Scorer struct {
	scaler     ml.Scaler
	classifier ml.Classifier
}

func NewScorer(scaler ml.Scaler, classifier ml.Classifier) *Scorer {
	return &Scorer{scaler: scaler, classifier: classifier}
}

// Score rejects non-finite input and scaler output as a ScalerError.
func (s *Scorer) Score(vector []float64) (Score, error) {
	if i, ok := firstNonFinite(vector); ok {
		return Score{}, &ScalerError{Err: fmt.Errorf("%w: position %d is %v", ml.ErrNonFinite, i, vector[i])}
	}
	scaled, err := s.scaler.Transform(vector)
	if err != nil {
		return Score{}, &ScalerError{Err: err}
	}
	if len(scaled) != len(vector) {
		return Score{}, &ScalerError{Err: fmt.Errorf("%w: scaler returned %d values for %d", ml.ErrShapeMismatch, len(scaled), len(vector))}
	}
	if i, ok := firstNonFinite(scaled); ok {
		return Score{}, &ScalerError{Err: fmt.Errorf("%w: scaled position %d is %v", ml.ErrNonFinite, i, scaled[i])}
	}

	index, proba, err := s.classifier.PredictProba(scaled)
	if err != nil {
		return Score{}, &ModelError{Err: err}
	}
	if len(proba) != 2 {
		return Score{}, &ModelError{Err: fmt.Errorf("expected 2 class probabilities, got %d", len(proba))}
	}
	if index != ml.ClassMalignant && index != ml.ClassBenign {
		return Score{}, &ModelError{Err: fmt.Errorf("class index %d out of range", index)}
	}
	for _, p := range proba {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return Score{}, &ModelError{Err: fmt.Errorf("invalid probability %v", p)}
		}
	}
	if math.Abs(proba[0]+proba[1]-1) > probabilityTolerance {
		return Score{}, &ModelError{Err: errors.New("class probabilities do not sum to 1")}
	}
	return Score{ClassIndex: index, Probabilities: [2]float64{proba[0], proba[1]}}, nil
}

func firstNonFinite(values []float64) (int, bool) {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return i, true
		}
	}
	return 0, false
}
