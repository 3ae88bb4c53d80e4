package predict

import (
	"math"

	"cancerscope/ml"
)

const (
	LabelMalignant = "Malignant"
	LabelBenign    = "Benign"
)

type Probability struct {
	Malignant float64 `json:"malignant"`
	Benign    float64 `json:"benign"`
}

// PredictionResult is the public shape of a prediction. Percentages are
// rounded to two decimals.
type PredictionResult struct {
	Prediction    string      `json:"prediction"`
	Confidence    float64     `json:"confidence"`
	Probability   Probability `json:"probability"`
	RawPrediction int         `json:"raw_prediction"`
	InputFeatures SimpleInput `json:"input_features,omitempty"`
}

func FormatResult(score Score) PredictionResult {
	p0, p1 := score.Probabilities[0], score.Probabilities[1]
	label := LabelBenign
	if score.ClassIndex == ml.ClassMalignant {
		label = LabelMalignant
	}
	return PredictionResult{
		Prediction: label,
		Confidence: roundPercent(math.Max(p0, p1)),
		Probability: Probability{
			Malignant: roundPercent(p0),
			Benign:    roundPercent(p1),
		},
		RawPrediction: score.ClassIndex,
	}
}

func roundPercent(p float64) float64 {
	return math.Round(p*100*100) / 100
}
