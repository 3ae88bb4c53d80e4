// Package pipeline cleans labelled samples before they reach training.
package pipeline

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"cancerscope/ml"
)

// Sample is one labelled row of a dataset. Row is the zero-based position
// in the source file.
type Sample struct {
	Row      int
	Features []float64
	Label    int
}

// CleaningRule validates or corrects a single sample.
type CleaningRule interface {
	Apply(*Sample) (*Sample, error)
	Name() string
}

type QualityIssue struct {
	Type      string    `json:"type"`
	Severity  string    `json:"severity"` // low, medium, high
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Row       int       `json:"row"`
}

// DataCleaner runs every rule over each sample and rejects a sample as soon
// as any rule reports an error.
type DataCleaner struct {
	rules      []CleaningRule
	issues     []QualityIssue
	issuesLock sync.RWMutex

	stats     CleaningStats
	statsLock sync.RWMutex

	logger *zap.Logger
}

type CleaningStats struct {
	TotalProcessed int64            `json:"total_processed"`
	Passed         int64            `json:"passed"`
	Rejected       int64            `json:"rejected"`
	Corrected      int64            `json:"corrected"`
	Issues         map[string]int64 `json:"issues"`
	LastClean      time.Time        `json:"last_clean"`
}

// NewDataCleaner installs the default rules for a dataset of width columns.
func NewDataCleaner(width int, logger *zap.Logger) *DataCleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	cleaner := &DataCleaner{
		rules:  make([]CleaningRule, 0),
		issues: make([]QualityIssue, 0),
		stats: CleaningStats{
			Issues: make(map[string]int64),
		},
		logger: logger,
	}

	cleaner.AddRule(NewWidthValidationRule(width))
	cleaner.AddRule(NewFiniteValueRule())
	cleaner.AddRule(NewRangeValidationRule())
	cleaner.AddRule(NewLabelValidationRule())
	cleaner.AddRule(NewDuplicateDetectionRule())

	return cleaner
}

func (dc *DataCleaner) AddRule(rule CleaningRule) {
	dc.rules = append(dc.rules, rule)
	dc.logger.Debug("added cleaning rule", zap.String("rule", rule.Name()))
}

func (dc *DataCleaner) Clean(samples []*Sample) ([]*Sample, []QualityIssue) {
	var cleaned []*Sample
	var issues []QualityIssue

	dc.statsLock.Lock()
	defer dc.statsLock.Unlock()

	for _, sample := range samples {
		dc.stats.TotalProcessed++

		original := cloneSample(sample)
		var sampleIssues []QualityIssue

		for _, rule := range dc.rules {
			next, err := rule.Apply(sample)
			if err != nil {
				sampleIssues = append(sampleIssues, QualityIssue{
					Type:      rule.Name(),
					Severity:  "high",
					Message:   err.Error(),
					Timestamp: time.Now(),
					Row:       sample.Row,
				})
				dc.stats.Issues[rule.Name()]++
				break
			}
			if next != nil {
				sample = next
			}
		}

		if len(sampleIssues) > 0 {
			dc.stats.Rejected++
			issues = append(issues, sampleIssues...)
			dc.issuesLock.Lock()
			dc.issues = append(dc.issues, sampleIssues...)
			dc.issuesLock.Unlock()
			continue
		}
		if !sameSample(original, sample) {
			dc.stats.Corrected++
		}
		dc.stats.Passed++
		cleaned = append(cleaned, sample)
	}

	dc.stats.LastClean = time.Now()
	dc.logger.Info("cleaned samples",
		zap.Int("input", len(samples)),
		zap.Int("kept", len(cleaned)),
		zap.Int("issues", len(issues)))

	return cleaned, issues
}

func (dc *DataCleaner) GetStats() CleaningStats {
	dc.statsLock.RLock()
	defer dc.statsLock.RUnlock()

	stats := dc.stats
	stats.Issues = make(map[string]int64, len(dc.stats.Issues))
	for k, v := range dc.stats.Issues {
		stats.Issues[k] = v
	}
	return stats
}

// GetIssues returns the most recent limit issues, or all when limit <= 0.
func (dc *DataCleaner) GetIssues(limit int) []QualityIssue {
	dc.issuesLock.RLock()
	defer dc.issuesLock.RUnlock()

	if limit <= 0 || limit > len(dc.issues) {
		limit = len(dc.issues)
	}

	issues := make([]QualityIssue, limit)
	copy(issues, dc.issues[len(dc.issues)-limit:])
	return issues
}

func (dc *DataCleaner) ClearIssues() {
	dc.issuesLock.Lock()
	defer dc.issuesLock.Unlock()

	dc.issues = make([]QualityIssue, 0)
}

// CleanDataset runs the cleaner over a dataset and returns the surviving rows.
func (dc *DataCleaner) CleanDataset(dataset *ml.Dataset) (*ml.Dataset, []QualityIssue) {
	cleaned, issues := dc.Clean(SamplesFromDataset(dataset))
	return DatasetFromSamples(dataset.FeatureNames, cleaned), issues
}

func SamplesFromDataset(dataset *ml.Dataset) []*Sample {
	samples := make([]*Sample, dataset.Len())
	for i := range dataset.Features {
		samples[i] = &Sample{
			Row:      i,
			Features: append([]float64(nil), dataset.Features[i]...),
			Label:    dataset.Labels[i],
		}
	}
	return samples
}

func DatasetFromSamples(names []string, samples []*Sample) *ml.Dataset {
	dataset := &ml.Dataset{
		FeatureNames: append([]string(nil), names...),
		Features:     make([][]float64, len(samples)),
		Labels:       make([]int, len(samples)),
	}
	for i, s := range samples {
		dataset.Features[i] = s.Features
		dataset.Labels[i] = s.Label
	}
	return dataset
}

func cloneSample(s *Sample) *Sample {
	return &Sample{Row: s.Row, Features: append([]float64(nil), s.Features...), Label: s.Label}
}

func sameSample(a, b *Sample) bool {
	if a.Label != b.Label || len(a.Features) != len(b.Features) {
		return false
	}
	for i := range a.Features {
		if a.Features[i] != b.Features[i] {
			return false
		}
	}
	return true
}

// ============ rules ============

type WidthValidationRule struct {
	Width int
}

func NewWidthValidationRule(width int) *WidthValidationRule {
	return &WidthValidationRule{Width: width}
}

func (r *WidthValidationRule) Name() string {
	return "width_validation"
}

func (r *WidthValidationRule) Apply(sample *Sample) (*Sample, error) {
	if r.Width > 0 && len(sample.Features) != r.Width {
		return nil, fmt.Errorf("row %d has %d values, want %d", sample.Row, len(sample.Features), r.Width)
	}
	return sample, nil
}

type FiniteValueRule struct{}

func NewFiniteValueRule() *FiniteValueRule {
	return &FiniteValueRule{}
}

func (r *FiniteValueRule) Name() string {
	return "finite_value"
}

func (r *FiniteValueRule) Apply(sample *Sample) (*Sample, error) {
	for i, v := range sample.Features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("row %d column %d is not finite", sample.Row, i)
		}
	}
	return sample, nil
}

// RangeValidationRule rejects values outside [Min, Max]. Every diagnostic
// measurement is a non-negative size, texture or ratio.
type RangeValidationRule struct {
	Min float64
	Max float64
}

func NewRangeValidationRule() *RangeValidationRule {
	return &RangeValidationRule{
		Min: 0,
		Max: 1e6,
	}
}

func (r *RangeValidationRule) Name() string {
	return "range_validation"
}

func (r *RangeValidationRule) Apply(sample *Sample) (*Sample, error) {
	for i, v := range sample.Features {
		if v < r.Min || v > r.Max {
			return nil, fmt.Errorf("row %d column %d value %g out of range [%g, %g]", sample.Row, i, v, r.Min, r.Max)
		}
	}
	return sample, nil
}

type LabelValidationRule struct{}

func NewLabelValidationRule() *LabelValidationRule {
	return &LabelValidationRule{}
}

func (r *LabelValidationRule) Name() string {
	return "label_validation"
}

func (r *LabelValidationRule) Apply(sample *Sample) (*Sample, error) {
	if sample.Label != ml.ClassMalignant && sample.Label != ml.ClassBenign {
		return nil, fmt.Errorf("row %d has unknown label %d", sample.Row, sample.Label)
	}
	return sample, nil
}

// DuplicateDetectionRule rejects a sample whose label and values were
// already seen.
type DuplicateDetectionRule struct {
	seenMap map[string]int
	mu      sync.Mutex
}

func NewDuplicateDetectionRule() *DuplicateDetectionRule {
	return &DuplicateDetectionRule{
		seenMap: make(map[string]int),
	}
}

func (r *DuplicateDetectionRule) Name() string {
	return "duplicate_detection"
}

func (r *DuplicateDetectionRule) Apply(sample *Sample) (*Sample, error) {
	key := sampleKey(sample)

	r.mu.Lock()
	defer r.mu.Unlock()

	if first, exists := r.seenMap[key]; exists {
		return nil, fmt.Errorf("row %d duplicates row %d", sample.Row, first)
	}

	r.seenMap[key] = sample.Row
	return sample, nil
}

func sampleKey(s *Sample) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(s.Label))
	for _, v := range s.Features {
		b.WriteByte('|')
		b.WriteString(strconv.FormatUint(math.Float64bits(v), 16))
	}
	return b.String()
}

// StatisticalCorrector replaces per-column outliers with the column median.
type StatisticalCorrector struct {
	threshold float64
}

func NewStatisticalCorrector(threshold float64) *StatisticalCorrector {
	if threshold <= 0 {
		threshold = 3.0
	}
	return &StatisticalCorrector{
		threshold: threshold,
	}
}

// CorrectOutliers rewrites, in place, every value more than threshold
// standard deviations from its column mean. It returns how many values
// were replaced.
func (sc *StatisticalCorrector) CorrectOutliers(samples []*Sample) int {
	if len(samples) == 0 {
		return 0
	}

	corrected := 0
	width := len(samples[0].Features)
	column := make([]float64, len(samples))
	for j := 0; j < width; j++ {
		for i, s := range samples {
			column[i] = s.Features[j]
		}

		mean, stdDev := sc.calculateMeanStdDev(column)
		if stdDev == 0 {
			continue
		}
		median := sc.calculateMedian(column)

		for _, s := range samples {
			if math.Abs((s.Features[j]-mean)/stdDev) > sc.threshold {
				s.Features[j] = median
				corrected++
			}
		}
	}
	return corrected
}

func (sc *StatisticalCorrector) calculateMeanStdDev(values []float64) (float64, float64) {
	n := len(values)
	if n == 0 {
		return 0, 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(n)

	return mean, math.Sqrt(variance)
}

func (sc *StatisticalCorrector) calculateMedian(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2.0
	}
	return sorted[n/2]
}
