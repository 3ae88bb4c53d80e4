package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cancerscope/db"
	"cancerscope/monitoring"
	"cancerscope/predict"
)

const (
	modeFull   = "full"
	modeSimple = "simple"

	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// Predictor is the prediction core as seen by the HTTP layer.
type Predictor interface {
	PredictFull(features []float64) (predict.PredictionResult, error)
	PredictSimple(partial map[string]float64) (predict.PredictionResult, error)
	FeatureCount() int
	FeatureNames() []string
	CacheStats() predict.CacheStats
}

type HistoryStore interface {
	SavePrediction(ctx context.Context, record db.PredictionRecord) error
	RecentPredictions(ctx context.Context, limit int) ([]db.PredictionRecord, error)
}

type EventPublisher interface {
	Publish(event monitoring.PredictionEvent) error
}

// Dependencies bundles what the API needs. Only Service is required.
type Dependencies struct {
	Service      Predictor
	ModelName    string
	ModelVersion string
	History      HistoryStore
	Feed         EventPublisher
	FeedHandler  http.HandlerFunc
	Stats        *monitoring.PredictionStats
	Logger       *zap.Logger
}

type API struct {
	deps Dependencies
	log  *zap.Logger
}

func NewAPI(deps Dependencies) *API {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Stats == nil {
		deps.Stats = monitoring.NewPredictionStats()
	}
	return &API{deps: deps, log: logger}
}

// RegisterHandlers mounts every route under /api and at the root, where the
// original web client expects them.
func (a *API) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", a.handleIndex)
	for _, prefix := range []string{"", "/api"} {
		mux.HandleFunc("GET "+prefix+"/health", a.handleHealth)
		mux.HandleFunc("GET "+prefix+"/features", a.handleFeatures)
		mux.HandleFunc("POST "+prefix+"/predict", a.handlePredict)
		mux.HandleFunc("POST "+prefix+"/predict-simple", a.handlePredictSimple)
	}
	mux.HandleFunc("GET /api/predictions", a.handlePredictions)
	mux.HandleFunc("GET /api/stats", a.handleStats)
	if a.deps.FeedHandler != nil {
		mux.HandleFunc("GET /api/ws/predictions", a.deps.FeedHandler)
	}
}

func (a *API) handleIndex(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Breast Cancer Detection API",
		"status":  "running",
		"model":   a.deps.ModelName,
		"version": a.deps.ModelVersion,
		"endpoints": map[string]string{
			"/api/predict":        "POST - Make prediction",
			"/api/predict-simple": "POST - Make prediction from common measurements",
			"/api/features":       "GET - Get feature names",
			"/api/health":         "GET - Health check",
			"/api/predictions":    "GET - Recent predictions",
			"/api/stats":          "GET - Prediction counters",
			"/api/ws/predictions": "GET - Live prediction feed (websocket)",
		},
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	loaded := a.deps.Service != nil
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "healthy",
		"model_loaded":  loaded,
		"scaler_loaded": loaded,
	})
}

func (a *API) handleFeatures(w http.ResponseWriter, r *http.Request) {
	names := a.deps.Service.FeatureNames()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"features": names,
		"count":    len(names),
	})
}

func (a *API) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var body map[string]json.RawMessage
	if err := decodeBody(r, &body); err != nil {
		a.fail(w, r, modeFull, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(body) == 0 {
		a.fail(w, r, modeFull, http.StatusBadRequest, "invalid_request", "No data provided")
		return
	}
	raw, ok := body["features"]
	if !ok {
		a.fail(w, r, modeFull, http.StatusBadRequest, "invalid_request", "Features not provided")
		return
	}
	var features []float64
	if err := json.Unmarshal(raw, &features); err != nil || features == nil {
		a.fail(w, r, modeFull, http.StatusBadRequest, "invalid_request", "Features must be an array of numbers")
		return
	}

	result, err := a.deps.Service.PredictFull(features)
	if err != nil {
		a.predictionFailed(w, r, modeFull, err)
		return
	}
	a.predictionServed(r, modeFull, result, time.Since(start))
	respondJSON(w, http.StatusOK, result)
}

func (a *API) handlePredictSimple(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var body map[string]json.RawMessage
	if err := decodeBody(r, &body); err != nil {
		a.fail(w, r, modeSimple, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	partial, err := parseSimpleInput(body)
	if err != nil {
		a.fail(w, r, modeSimple, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := a.deps.Service.PredictSimple(partial)
	if err != nil {
		a.predictionFailed(w, r, modeSimple, err)
		return
	}
	a.predictionServed(r, modeSimple, result, time.Since(start))
	respondJSON(w, http.StatusOK, result)
}

func (a *API) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if a.deps.History == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "prediction history is not configured")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := a.deps.History.RecentPredictions(r.Context(), limit)
	if err != nil {
		a.log.Error("load prediction history", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "storage", "failed to load prediction history")
		return
	}
	if records == nil {
		records = []db.PredictionRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"predictions": records,
		"count":       len(records),
	})
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"predictions": a.deps.Stats.Snapshot(),
		"cache":       a.deps.Service.CacheStats(),
		"model": map[string]interface{}{
			"name":          a.deps.ModelName,
			"version":       a.deps.ModelVersion,
			"feature_count": a.deps.Service.FeatureCount(),
		},
	})
}

// predictionServed records a successful prediction. Storage and feed
// failures are logged and never reach the caller.
func (a *API) predictionServed(r *http.Request, mode string, result predict.PredictionResult, latency time.Duration) {
	a.deps.Stats.RecordPrediction(mode, result.Prediction, latency)

	id := uuid.NewString()
	if a.deps.History != nil {
		record := db.PredictionRecord{
			ID:            id,
			Mode:          mode,
			Prediction:    result.Prediction,
			RawPrediction: result.RawPrediction,
			Confidence:    result.Confidence,
			Malignant:     result.Probability.Malignant,
			Benign:        result.Probability.Benign,
			ModelVersion:  a.deps.ModelVersion,
			CreatedAt:     time.Now().UTC(),
		}
		if err := a.deps.History.SavePrediction(r.Context(), record); err != nil {
			a.log.Warn("save prediction", zap.String("id", id), zap.Error(err))
		}
	}
	if a.deps.Feed != nil {
		event := monitoring.PredictionEvent{
			ID:            id,
			Mode:          mode,
			Prediction:    result.Prediction,
			RawPrediction: result.RawPrediction,
			Confidence:    result.Confidence,
			Malignant:     result.Probability.Malignant,
			Benign:        result.Probability.Benign,
		}
		if err := a.deps.Feed.Publish(event); err != nil {
			a.log.Warn("publish prediction", zap.String("id", id), zap.Error(err))
		}
	}
}

func (a *API) predictionFailed(w http.ResponseWriter, r *http.Request, mode string, err error) {
	switch {
	case errors.Is(err, predict.ErrSchemaMismatch):
		a.fail(w, r, mode, http.StatusBadRequest, "schema_mismatch", err.Error())
	case errors.Is(err, predict.ErrScaler):
		a.fail(w, r, mode, http.StatusInternalServerError, "scaler", err.Error())
	case errors.Is(err, predict.ErrModel):
		a.fail(w, r, mode, http.StatusInternalServerError, "model", err.Error())
	default:
		a.fail(w, r, mode, http.StatusInternalServerError, "internal", err.Error())
	}
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, mode string, status int, kind, message string) {
	a.deps.Stats.RecordError(kind)
	if status >= http.StatusInternalServerError {
		a.log.Error("prediction failed",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.String("mode", mode),
			zap.String("kind", kind),
			zap.String("error", message))
	}
	respondError(w, status, kind, message)
}

// parseSimpleInput keeps only the known simple keys. Values may be JSON
// numbers or numeric strings.
func parseSimpleInput(body map[string]json.RawMessage) (map[string]float64, error) {
	partial := make(map[string]float64)
	for _, key := range predict.SimpleKeys {
		raw, ok := body[key]
		if !ok {
			continue
		}
		value, err := parseNumber(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", key, err)
		}
		partial[key] = value
	}
	return partial, nil
}

// parseNumber accepts finite JSON numbers or numeric strings.
func parseNumber(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, errors.New("not a number")
		}
		f, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, errors.New("not a number")
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("not a finite number")
	}
	return f, nil
}

// decodeBody treats an empty body as an empty JSON object.
func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// respondJSON writes nothing until payload has encoded; an encoding failure
// is sent as a 500.
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(map[string]string{"error": "failed to encode response", "kind": "internal"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

func respondError(w http.ResponseWriter, status int, kind, message string) {
	respondJSON(w, status, map[string]string{"error": message, "kind": kind})
}
