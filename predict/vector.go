package predict

import (
	"strings"

	"cancerscope/ml"
)

// BuildFullVector checks a caller-ordered vector against the schema width and
// returns a copy of it.
func BuildFullVector(schema ml.FeatureSchema, features []float64) ([]float64, error) {
	if len(features) != schema.Len() {
		return nil, &SchemaMismatchError{Expected: schema.Len(), Actual: len(features)}
	}
	return append([]float64(nil), features...), nil
}

// BuildSimpleVector resolves every schema position from input. It always
// returns a vector of schema.Len() values.
func BuildSimpleVector(schema ml.FeatureSchema, input SimpleInput) []float64 {
	vector := make([]float64, schema.Len())
	for i := range vector {
		vector[i] = Resolve(schema.Name(i), input)
	}
	return vector
}

// Resolve picks the value for one schema feature name:
//
//  1. if no simple key occurs verbatim in the lowercased name, use the mean
//     of all simple values;
//  2. otherwise use the first key, in SimpleKeys order, whose
//     underscore-to-space form occurs in the name;
//  3. if no key passes that test, use the mean.
//
// Several names may bind to the same key (radius appears in the mean, error
// and worst variants).
func Resolve(name string, input SimpleInput) float64 {
	lower := strings.ToLower(name)

	matched := false
	for _, key := range SimpleKeys {
		if strings.Contains(lower, key) {
			matched = true
			break
		}
	}
	if !matched {
		return input.Mean()
	}

	for _, key := range SimpleKeys {
		if strings.Contains(lower, strings.ReplaceAll(key, "_", " ")) {
			return input[key]
		}
	}
	return input.Mean()
}
