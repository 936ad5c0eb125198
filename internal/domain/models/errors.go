package models

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrTrainingFailed   = errors.New("training failed")
	ErrDataUnavailable  = errors.New("data unavailable")
)

// InsufficientDataError reports a series shorter than an operation needs.
type InsufficientDataError struct {
	Op        string
	Timeframe string
	Have      int
	Need      int
}

func (e *InsufficientDataError) Error() string {
	if e.Timeframe != "" {
		return fmt.Sprintf("%s: insufficient data for %s: have %d candles, need %d", e.Op, e.Timeframe, e.Have, e.Need)
	}
	return fmt.Sprintf("%s: insufficient data: have %d candles, need %d", e.Op, e.Have, e.Need)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// TrainingFailedError reports that regime model training produced unusable parameters.
type TrainingFailedError struct {
	Reason string
	Err    error
}

func (e *TrainingFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("regime training failed: %s: %v", e.Reason, e.Err)
	}
	return "regime training failed: " + e.Reason
}

func (e *TrainingFailedError) Is(target error) bool { return target == ErrTrainingFailed }

func (e *TrainingFailedError) Unwrap() error { return e.Err }

// DataUnavailableError reports an upstream series or snapshot fetch failure.
type DataUnavailableError struct {
	TokenID   string
	Timeframe string
	Err       error
}

func (e *DataUnavailableError) Error() string {
	msg := "data unavailable for " + e.TokenID
	if e.Timeframe != "" {
		msg += " (" + e.Timeframe + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DataUnavailableError) Is(target error) bool { return target == ErrDataUnavailable }

func (e *DataUnavailableError) Unwrap() error { return e.Err }

// WithTimeframe tags an insufficient-data error with the timeframe it came from.
func WithTimeframe(err error, tf string) error {
	var ide *InsufficientDataError
	if errors.As(err, &ide) && ide.Timeframe == "" {
		cp := *ide
		cp.Timeframe = tf
		return &cp
	}
	return err
}
