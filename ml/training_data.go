package ml

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Dataset is a labelled feature matrix. Labels use the class indices
// ClassMalignant and ClassBenign.
type Dataset struct {
	FeatureNames []string
	Features     [][]float64
	Labels       []int
}

func (d *Dataset) Len() int {
	return len(d.Features)
}

func LoadDataset(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadDataset(file)
}

// ReadDataset parses either the raw wdbc.data layout (id, diagnosis, 30
// values, no header) or a headered CSV carrying a "diagnosis" or "target"
// column. UTF-8 and UTF-16 input with a byte order mark are accepted.
func ReadDataset(r io.Reader) (*Dataset, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	reader := csv.NewReader(decoded)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("dataset is empty")
	}

	if isHeader(records[0]) {
		return parseHeadered(records)
	}
	return parseWDBC(records)
}

func isHeader(record []string) bool {
	for _, field := range record {
		if strings.EqualFold(strings.TrimSpace(field), "diagnosis") || strings.EqualFold(strings.TrimSpace(field), "target") {
			return true
		}
	}
	return false
}

func parseWDBC(records [][]string) (*Dataset, error) {
	names := FeatureNames()
	dataset := &Dataset{FeatureNames: names}
	for line, record := range records {
		if len(record) != len(names)+2 {
			return nil, fmt.Errorf("line %d: expected %d fields, got %d", line+1, len(names)+2, len(record))
		}
		label, err := ParseDiagnosis(record[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+1, err)
		}
		row, err := parseFloats(record[2:])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+1, err)
		}
		dataset.Features = append(dataset.Features, row)
		dataset.Labels = append(dataset.Labels, label)
	}
	return dataset, nil
}

func parseHeadered(records [][]string) (*Dataset, error) {
	header := records[0]
	labelCol := -1
	featureCols := make([]int, 0, len(header))
	names := make([]string, 0, len(header))
	for i, field := range header {
		name := strings.TrimSpace(field)
		switch strings.ToLower(name) {
		case "diagnosis", "target":
			labelCol = i
		case "id", "":
		default:
			featureCols = append(featureCols, i)
			names = append(names, name)
		}
	}
	if len(featureCols) == 0 {
		return nil, errors.New("dataset has no feature columns")
	}

	dataset := &Dataset{FeatureNames: names}
	for line, record := range records[1:] {
		if len(record) != len(header) {
			return nil, fmt.Errorf("line %d: expected %d fields, got %d", line+2, len(header), len(record))
		}
		label, err := ParseDiagnosis(record[labelCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+2, err)
		}
		row := make([]float64, len(featureCols))
		for j, col := range featureCols {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %q: %w", line+2, names[j], err)
			}
			row[j] = v
		}
		dataset.Features = append(dataset.Features, row)
		dataset.Labels = append(dataset.Labels, label)
	}
	return dataset, nil
}

// ParseDiagnosis maps "M"/"0" to ClassMalignant and "B"/"1" to ClassBenign.
func ParseDiagnosis(value string) (int, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "M", "0", "MALIGNANT":
		return ClassMalignant, nil
	case "B", "1", "BENIGN":
		return ClassBenign, nil
	default:
		return 0, fmt.Errorf("unknown diagnosis %q", value)
	}
}

func parseFloats(fields []string) ([]float64, error) {
	row := make([]float64, len(fields))
	for i, field := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

// SplitDataset shuffles with a fixed seed and holds out testRatio of the rows.
func SplitDataset(features [][]float64, labels []int, testRatio float64, seed int64) (trainX [][]float64, trainY []int, testX [][]float64, testY []int) {
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = 0.2
	}
	rnd := rand.New(rand.NewSource(seed))
	indices := rnd.Perm(len(features))

	testCount := int(float64(len(features))*testRatio + 0.5)
	split := len(features) - testCount
	for i, idx := range indices {
		if i < split {
			trainX = append(trainX, features[idx])
			trainY = append(trainY, labels[idx])
		} else {
			testX = append(testX, features[idx])
			testY = append(testY, labels[idx])
		}
	}
	return trainX, trainY, testX, testY
}
