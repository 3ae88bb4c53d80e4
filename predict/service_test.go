package predict

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cancerscope/ml"
)

var firstBenignRecord = []float64{
	13.54, 14.36, 87.46, 566.3, 0.09779, 0.08129, 0.06664, 0.04781, 0.1885, 0.05766,
	0.2699, 0.7886, 2.058, 23.56, 0.008462, 0.0146, 0.02387, 0.01315, 0.0198, 0.0023,
	15.11, 19.26, 99.7, 711.2, 0.144, 0.1773, 0.239, 0.1288, 0.2977, 0.07259,
}

func defaultService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	artifact, err := ml.DefaultModel()
	require.NoError(t, err)
	model, err := ModelContextFromArtifact(artifact)
	require.NoError(t, err)
	return NewService(model, opts...)
}

type fakeScaler struct {
	err error
}

func (f fakeScaler) Transform(vector []float64) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return vector, nil
}

type fakeClassifier struct {
	index int
	proba []float64
	err   error
	calls int
}

func (f *fakeClassifier) PredictProba(vector []float64) (int, []float64, error) {
	f.calls++
	return f.index, f.proba, f.err
}

func fakeService(t *testing.T, scaler ml.Scaler, classifier ml.Classifier, opts ...Option) *Service {
	t.Helper()
	schema, err := ml.NewFeatureSchema([]string{"a", "b", "c"})
	require.NoError(t, err)
	model, err := NewModelContext(schema, scaler, classifier)
	require.NoError(t, err)
	return NewService(model, opts...)
}

func TestPredictFullBenignRecord(t *testing.T) {
	svc := defaultService(t)

	result, err := svc.PredictFull(firstBenignRecord)
	require.NoError(t, err)
	assert.Equal(t, LabelBenign, result.Prediction)
	assert.Equal(t, 1, result.RawPrediction)
	assert.Nil(t, result.InputFeatures)
	assert.Equal(t, result.Probability.Benign, result.Confidence)
}

func TestPredictFullSchemaMismatch(t *testing.T) {
	svc := defaultService(t)

	_, err := svc.PredictFull(firstBenignRecord[:29])
	require.ErrorIs(t, err, ErrSchemaMismatch)
	assert.EqualError(t, err, "Expected 30 features, got 29")

	_, err = svc.PredictFull(append(append([]float64(nil), firstBenignRecord...), 1))
	var mismatch *SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 30, mismatch.Expected)
	assert.Equal(t, 31, mismatch.Actual)
}

func TestPredictSimpleEmptyUsesDefaults(t *testing.T) {
	svc := defaultService(t)

	result, err := svc.PredictSimple(map[string]float64{})
	require.NoError(t, err)
	require.Len(t, result.InputFeatures, len(SimpleKeys))
	for _, key := range SimpleKeys {
		assert.Equal(t, SimpleDefaults[key], result.InputFeatures[key], key)
	}
	assert.Contains(t, []string{LabelMalignant, LabelBenign}, result.Prediction)
	assert.InDelta(t, 100, result.Probability.Malignant+result.Probability.Benign, 0.011)
}

func TestPredictSimpleDeterministic(t *testing.T) {
	svc := defaultService(t)
	input := map[string]float64{"mean_radius": 11.2, "mean_area": 380, "mean_concavity": 0.02}

	first, err := svc.PredictSimple(input)
	require.NoError(t, err)
	second, err := svc.PredictSimple(input)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPredictSimpleExplicitDefaultMatchesOmitted(t *testing.T) {
	svc := defaultService(t)

	omitted, err := svc.PredictSimple(map[string]float64{"mean_texture": 25})
	require.NoError(t, err)
	explicit, err := svc.PredictSimple(map[string]float64{"mean_texture": 25, "mean_radius": 14.0})
	require.NoError(t, err)
	assert.Equal(t, omitted, explicit)
}

func TestFeatureAccessors(t *testing.T) {
	svc := defaultService(t)
	assert.Equal(t, 30, svc.FeatureCount())

	names := svc.FeatureNames()
	assert.Equal(t, ml.FeatureNames(), names)
	names[0] = "changed"
	assert.Equal(t, "mean radius", svc.FeatureNames()[0])
}

func TestPredictScalerError(t *testing.T) {
	cause := errors.New("bad shape")
	svc := fakeService(t, fakeScaler{err: cause}, &fakeClassifier{proba: []float64{0.5, 0.5}})

	_, err := svc.PredictFull([]float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrScaler)
	assert.ErrorIs(t, err, cause)

	_, err = svc.PredictSimple(nil)
	assert.ErrorIs(t, err, ErrScaler)
}

func TestPredictRejectsNonFiniteInput(t *testing.T) {
	svc := defaultService(t, WithCacheSize(8))

	tests := []struct {
		name    string
		partial map[string]float64
	}{
		{name: "nan", partial: map[string]float64{"mean_radius": math.NaN()}},
		{name: "positive infinity", partial: map[string]float64{"mean_texture": math.Inf(1)}},
		{name: "negative infinity", partial: map[string]float64{"mean_area": math.Inf(-1)}},
		{name: "mean overflows", partial: map[string]float64{"mean_radius": 1.7e308, "mean_area": 1.7e308}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.PredictSimple(tt.partial)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrScaler)
			assert.ErrorIs(t, err, ml.ErrNonFinite)
			assert.Empty(t, result.Prediction)
		})
	}

	vector := append([]float64(nil), firstBenignRecord...)
	vector[3] = math.NaN()
	_, err := svc.PredictFull(vector)
	assert.ErrorIs(t, err, ErrScaler)
	assert.Zero(t, svc.CacheStats().Size)
}

func TestScorerRejectsNonFiniteScalerOutput(t *testing.T) {
	scorer := NewScorer(infScaler{}, &fakeClassifier{proba: []float64{0.5, 0.5}})

	_, err := scorer.Score([]float64{1, 2})
	assert.ErrorIs(t, err, ErrScaler)
	assert.ErrorIs(t, err, ml.ErrNonFinite)
}

type infScaler struct{}

func (infScaler) Transform(vector []float64) ([]float64, error) {
	out := make([]float64, len(vector))
	for i := range out {
		out[i] = math.Inf(1)
	}
	return out, nil
}

func TestPredictModelErrors(t *testing.T) {
	tests := []struct {
		name       string
		classifier *fakeClassifier
	}{
		{name: "classifier failure", classifier: &fakeClassifier{err: errors.New("nan")}},
		{name: "three classes", classifier: &fakeClassifier{proba: []float64{0.2, 0.3, 0.5}}},
		{name: "index out of range", classifier: &fakeClassifier{index: 2, proba: []float64{0.5, 0.5}}},
		{name: "probabilities do not sum", classifier: &fakeClassifier{proba: []float64{0.5, 0.6}}},
		{name: "negative probability", classifier: &fakeClassifier{proba: []float64{-0.5, 1.5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := fakeService(t, fakeScaler{}, tt.classifier)
			_, err := svc.PredictFull([]float64{1, 2, 3})
			assert.ErrorIs(t, err, ErrModel)
		})
	}
}

func TestPredictCache(t *testing.T) {
	classifier := &fakeClassifier{index: 1, proba: []float64{0.25, 0.75}}
	svc := fakeService(t, fakeScaler{}, classifier, WithCacheSize(8))

	first, err := svc.PredictFull([]float64{1, 2, 3})
	require.NoError(t, err)
	second, err := svc.PredictFull([]float64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, classifier.calls)

	_, err = svc.PredictFull([]float64{1, 2, 4})
	require.NoError(t, err)
	assert.Equal(t, 2, classifier.calls)

	stats := svc.CacheStats()
	assert.True(t, stats.Enabled)
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
}

func TestPredictCacheSkipsErrors(t *testing.T) {
	classifier := &fakeClassifier{err: errors.New("boom")}
	svc := fakeService(t, fakeScaler{}, classifier, WithCacheSize(8))

	for i := 0; i < 2; i++ {
		_, err := svc.PredictFull([]float64{1, 2, 3})
		assert.ErrorIs(t, err, ErrModel)
	}
	assert.Equal(t, 2, classifier.calls)
	assert.Equal(t, 0, svc.CacheStats().Size)
}

func TestNewModelContextValidation(t *testing.T) {
	schema, err := ml.NewFeatureSchema([]string{"a"})
	require.NoError(t, err)

	_, err = NewModelContext(ml.FeatureSchema{}, fakeScaler{}, &fakeClassifier{})
	assert.Error(t, err)
	_, err = NewModelContext(schema, nil, &fakeClassifier{})
	assert.Error(t, err)
	_, err = NewModelContext(schema, fakeScaler{}, nil)
	assert.Error(t, err)
	_, err = ModelContextFromArtifact(nil)
	assert.Error(t, err)
}
