package ml

// Scaler maps a raw feature vector into the space a classifier was fitted in.
type Scaler interface {
	Transform(vector []float64) ([]float64, error)
}

// Classifier scores a scaled feature vector, returning the predicted class
// index and one probability per class.
type Classifier interface {
	PredictProba(vector []float64) (int, []float64, error)
}

type MLModel interface {
	Classifier
	Train(features [][]float64, labels []int) error
	Predict(features []float64) (int, float64, error)
}

// Class indices follow the dataset label encoding.
const (
	ClassMalignant = 0
	ClassBenign    = 1
)
