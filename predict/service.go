package predict

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"cancerscope/ml"
)

// ModelContext is the read-only model state shared by every request. It is
// built once at startup and never mutated.
type ModelContext struct {
	schema     ml.FeatureSchema
	scaler     ml.Scaler
	classifier ml.Classifier
}

func NewModelContext(schema ml.FeatureSchema, scaler ml.Scaler, classifier ml.Classifier) (ModelContext, error) {
	if schema.Len() == 0 {
		return ModelContext{}, errors.New("feature schema is empty")
	}
	if scaler == nil {
		return ModelContext{}, errors.New("scaler is required")
	}
	if classifier == nil {
		return ModelContext{}, errors.New("classifier is required")
	}
	return ModelContext{schema: schema, scaler: scaler, classifier: classifier}, nil
}

// ModelContextFromArtifact validates artifact and wraps its parts.
func ModelContextFromArtifact(artifact *ml.Artifact) (ModelContext, error) {
	if artifact == nil {
		return ModelContext{}, errors.New("artifact is nil")
	}
	if err := artifact.Validate(); err != nil {
		return ModelContext{}, err
	}
	schema, err := artifact.Schema()
	if err != nil {
		return ModelContext{}, err
	}
	classifier, err := artifact.Classifier()
	if err != nil {
		return ModelContext{}, err
	}
	return NewModelContext(schema, artifact.Scaler, classifier)
}

func (mc ModelContext) Schema() ml.FeatureSchema {
	return mc.schema
}

type Option func(*Service)

// WithCacheSize keeps up to size recent scores keyed by feature vector.
// Scoring is deterministic, so a cached score is identical to a fresh one.
func WithCacheSize(size int) Option {
	return func(s *Service) {
		if size <= 0 {
			return
		}
		cache, err := lru.New[string, Score](size)
		if err != nil {
			s.logger.Warn("score cache disabled", zap.Error(err))
			return
		}
		s.cache = cache
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Service runs the vector builder, scorer and formatter for each request.
// It is safe for concurrent use.
type Service struct {
	model  ModelContext
	scorer *Scorer
	cache  *lru.Cache[string, Score]
	logger *zap.Logger

	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
}

func NewService(model ModelContext, opts ...Option) *Service {
	s := &Service{
		model:  model,
		scorer: NewScorer(model.scaler, model.classifier),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PredictFull scores a caller-ordered vector of FeatureCount() values.
func (s *Service) PredictFull(features []float64) (PredictionResult, error) {
	vector, err := BuildFullVector(s.model.schema, features)
	if err != nil {
		return PredictionResult{}, err
	}
	score, err := s.score(vector)
	if err != nil {
		return PredictionResult{}, err
	}
	return FormatResult(score), nil
}

// PredictSimple fills in defaults for omitted simple keys, synthesizes a full
// vector and scores it. The resolved input is echoed in the result.
func (s *Service) PredictSimple(partial map[string]float64) (PredictionResult, error) {
	input := NewSimpleInput(partial)
	vector := BuildSimpleVector(s.model.schema, input)
	score, err := s.score(vector)
	if err != nil {
		return PredictionResult{}, err
	}
	result := FormatResult(score)
	result.InputFeatures = input
	return result, nil
}

func (s *Service) FeatureCount() int {
	return s.model.schema.Len()
}

func (s *Service) FeatureNames() []string {
	return s.model.schema.Names()
}

type CacheStats struct {
	Enabled bool  `json:"enabled"`
	Size    int   `json:"size"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

func (s *Service) CacheStats() CacheStats {
	stats := CacheStats{
		Enabled: s.cache != nil,
		Hits:    s.cacheHits.Load(),
		Misses:  s.cacheMisses.Load(),
	}
	if s.cache != nil {
		stats.Size = s.cache.Len()
	}
	return stats
}

func (s *Service) score(vector []float64) (Score, error) {
	if s.cache == nil {
		return s.scorer.Score(vector)
	}
	key := vectorKey(vector)
	if score, ok := s.cache.Get(key); ok {
		s.cacheHits.Add(1)
		return score, nil
	}
	s.cacheMisses.Add(1)
	score, err := s.scorer.Score(vector)
	if err != nil {
		s.logger.Debug("scoring failed", zap.Error(err))
		return Score{}, err
	}
	s.cache.Add(key, score)
	return score, nil
}

// vectorKey encodes the exact bit pattern of every value.
func vectorKey(vector []float64) string {
	var b strings.Builder
	b.Grow(len(vector) * 17)
	for _, v := range vector {
		b.WriteString(strconv.FormatUint(math.Float64bits(v), 16))
		b.WriteByte(',')
	}
	return b.String()
}
