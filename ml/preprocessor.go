package ml

import (
	"errors"
	"fmt"
	"math"
)

// ErrShapeMismatch is returned when a vector does not have the width a
// fitted transform expects.
var ErrShapeMismatch = errors.New("shape mismatch")

// ErrNonFinite is returned when a vector holds NaN or an infinity.
var ErrNonFinite = errors.New("input contains NaN or infinity")

// StandardScaler standardizes each feature to zero mean and unit variance
// using statistics computed on the training split.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

func (s *StandardScaler) Fit(features [][]float64) error {
	if len(features) == 0 {
		return errors.New("features is empty")
	}
	width := len(features[0])
	if width == 0 {
		return errors.New("features have no columns")
	}
	mean := make([]float64, width)
	for i, row := range features {
		if len(row) != width {
			return fmt.Errorf("%w: row %d has %d columns, expected %d", ErrShapeMismatch, i, len(row), width)
		}
		for j, v := range row {
			mean[j] += v
		}
	}
	n := float64(len(features))
	for j := range mean {
		mean[j] /= n
	}

	scale := make([]float64, width)
	for _, row := range features {
		for j, v := range row {
			d := v - mean[j]
			scale[j] += d * d
		}
	}
	for j := range scale {
		scale[j] = math.Sqrt(scale[j] / n)
		if scale[j] == 0 {
			scale[j] = 1
		}
	}

	s.Mean = mean
	s.Scale = scale
	return nil
}

func (s *StandardScaler) Width() int {
	return len(s.Mean)
}

// Transform returns a standardized copy of vector.
func (s *StandardScaler) Transform(vector []float64) ([]float64, error) {
	if len(s.Mean) == 0 {
		return nil, errors.New("scaler not fitted")
	}
	if len(s.Scale) != len(s.Mean) {
		return nil, fmt.Errorf("%w: scaler has %d means and %d scales", ErrShapeMismatch, len(s.Mean), len(s.Scale))
	}
	if len(vector) != len(s.Mean) {
		return nil, fmt.Errorf("%w: expected %d values, got %d", ErrShapeMismatch, len(s.Mean), len(vector))
	}
	scaled := make([]float64, len(vector))
	for i, v := range vector {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: position %d is %v", ErrNonFinite, i, v)
		}
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		scaled[i] = (v - s.Mean[i]) / scale
	}
	return scaled, nil
}

// TransformAll standardizes every row of features.
func (s *StandardScaler) TransformAll(features [][]float64) ([][]float64, error) {
	out := make([][]float64, len(features))
	for i, row := range features {
		scaled, err := s.Transform(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = scaled
	}
	return out, nil
}
