package predict

import (
	"errors"
	"fmt"
)

// Error kinds, matched with errors.Is.
var (
	ErrSchemaMismatch = errors.New("schema mismatch")
	ErrScaler         = errors.New("scaler error")
	ErrModel          = errors.New("model error")
)

// SchemaMismatchError reports a full vector whose length differs from the
// feature schema.
type SchemaMismatchError struct {
	Expected int
	Actual   int
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("Expected %d features, got %d", e.Expected, e.Actual)
}

func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

// ScalerError wraps a failure of the fitted scaling transform.
type ScalerError struct {
	Err error
}

func (e *ScalerError) Error() string {
	return fmt.Sprintf("scale features: %v", e.Err)
}

func (e *ScalerError) Unwrap() error {
	return e.Err
}

func (e *ScalerError) Is(target error) bool {
	return target == ErrScaler
}

// ModelError wraps a failure of the classifier or a malformed score.
type ModelError struct {
	Err error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("score features: %v", e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

func (e *ModelError) Is(target error) bool {
	return target == ErrModel
}
