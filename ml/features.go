package ml

import (
	"errors"
	"fmt"
	"strings"
)

// FeatureSchema is the ordered list of feature names a model was fitted on.
// Position i of every feature vector holds the value named by Name(i).
type FeatureSchema struct {
	names []string
}

func NewFeatureSchema(names []string) (FeatureSchema, error) {
	if len(names) == 0 {
		return FeatureSchema{}, errors.New("feature schema is empty")
	}
	seen := make(map[string]int, len(names))
	for i, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			return FeatureSchema{}, fmt.Errorf("feature %d has an empty name", i)
		}
		if prev, ok := seen[key]; ok {
			return FeatureSchema{}, fmt.Errorf("duplicate feature name %q at %d and %d", name, prev, i)
		}
		seen[key] = i
	}
	return FeatureSchema{names: append([]string(nil), names...)}, nil
}

func (s FeatureSchema) Len() int {
	return len(s.names)
}

func (s FeatureSchema) Name(i int) string {
	return s.names[i]
}

// Names returns a copy of the ordered feature names.
func (s FeatureSchema) Names() []string {
	return append([]string(nil), s.names...)
}

// Index returns the position of name, matched case-insensitively.
func (s FeatureSchema) Index(name string) (int, bool) {
	for i, n := range s.names {
		if strings.EqualFold(n, name) {
			return i, true
		}
	}
	return -1, false
}

// FeatureNames lists the 30 Wisconsin diagnostic features in dataset order.
func FeatureNames() []string {
	return []string{
		"mean radius",
		"mean texture",
		"mean perimeter",
		"mean area",
		"mean smoothness",
		"mean compactness",
		"mean concavity",
		"mean concave points",
		"mean symmetry",
		"mean fractal dimension",
		"radius error",
		"texture error",
		"perimeter error",
		"area error",
		"smoothness error",
		"compactness error",
		"concavity error",
		"concave points error",
		"symmetry error",
		"fractal dimension error",
		"worst radius",
		"worst texture",
		"worst perimeter",
		"worst area",
		"worst smoothness",
		"worst compactness",
		"worst concavity",
		"worst concave points",
		"worst symmetry",
		"worst fractal dimension",
	}
}
