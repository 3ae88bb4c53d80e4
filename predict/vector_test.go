package predict

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cancerscope/ml"
)

func canonicalSchema(t *testing.T) ml.FeatureSchema {
	t.Helper()
	schema, err := ml.NewFeatureSchema(ml.FeatureNames())
	require.NoError(t, err)
	return schema
}

func TestBuildFullVectorLengthContract(t *testing.T) {
	schema := canonicalSchema(t)
	n := schema.Len()

	for _, length := range []int{0, n - 1, n + 1} {
		_, err := BuildFullVector(schema, make([]float64, length))
		var mismatch *SchemaMismatchError
		require.ErrorAs(t, err, &mismatch, "length %d", length)
		assert.Equal(t, n, mismatch.Expected)
		assert.Equal(t, length, mismatch.Actual)
		assert.ErrorIs(t, err, ErrSchemaMismatch)
	}

	input := make([]float64, n)
	for i := range input {
		input[i] = float64(i)
	}
	vector, err := BuildFullVector(schema, input)
	require.NoError(t, err)
	assert.Equal(t, input, vector)

	vector[0] = 99
	assert.Equal(t, 0.0, input[0], "returned vector must not alias the input")
}

func TestSchemaMismatchMessage(t *testing.T) {
	err := &SchemaMismatchError{Expected: 30, Actual: 29}
	assert.Equal(t, "Expected 30 features, got 29", err.Error())
}

func TestNewSimpleInputDefaults(t *testing.T) {
	input := NewSimpleInput(map[string]float64{"mean_radius": 20, "unknown": 5})
	require.Len(t, input, len(SimpleKeys))
	assert.Equal(t, 20.0, input["mean_radius"])
	assert.Equal(t, 19.0, input["mean_texture"])
	_, ok := input["unknown"]
	assert.False(t, ok)

	defaults := NewSimpleInput(nil)
	for _, key := range SimpleKeys {
		assert.Equal(t, SimpleDefaults[key], defaults[key], key)
	}
	assert.InDelta(t, 77.857, defaults.Mean(), 1e-9)
}

func TestResolveBranches(t *testing.T) {
	input := NewSimpleInput(map[string]float64{
		"mean_radius":  1,
		"mean_texture": 2,
	})
	mean := input.Mean()

	tests := []struct {
		name string
		want float64
	}{
		// no key occurs verbatim
		{name: "mean radius", want: mean},
		{name: "worst perimeter", want: mean},
		// verbatim key but no spaced form anywhere
		{name: "mean_radius", want: mean},
		// verbatim key, first spaced key in key order wins
		{name: "MEAN_RADIUS vs mean texture", want: 2},
		{name: "mean_texture (mean radius)", want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.name, input))
		})
	}
}

func TestBuildSimpleVectorCanonicalSchemaUsesMean(t *testing.T) {
	schema := canonicalSchema(t)

	for _, partial := range []map[string]float64{
		nil,
		{},
		{"mean_radius": 30, "mean_area": 2000},
	} {
		input := NewSimpleInput(partial)
		vector := BuildSimpleVector(schema, input)
		require.Len(t, vector, schema.Len())
		for i, v := range vector {
			assert.Equal(t, input.Mean(), v, "position %d", i)
		}
	}
}

func TestBuildSimpleVectorCrossBinding(t *testing.T) {
	schema, err := ml.NewFeatureSchema([]string{
		"mean_radius|mean radius",
		"worst_mean_radius|mean radius",
		"area",
	})
	require.NoError(t, err)

	input := NewSimpleInput(map[string]float64{"mean_radius": 12.5})
	vector := BuildSimpleVector(schema, input)
	assert.Equal(t, []float64{12.5, 12.5, input.Mean()}, vector)
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("boom")

	scalerErr := error(&ScalerError{Err: cause})
	assert.ErrorIs(t, scalerErr, ErrScaler)
	assert.ErrorIs(t, scalerErr, cause)
	assert.NotErrorIs(t, scalerErr, ErrModel)

	modelErr := error(&ModelError{Err: cause})
	assert.ErrorIs(t, modelErr, ErrModel)
	assert.ErrorIs(t, modelErr, cause)
	assert.NotErrorIs(t, modelErr, ErrSchemaMismatch)
}
