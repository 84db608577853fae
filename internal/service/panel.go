package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-teacher-panel/internal/repository"
)

var (
	// ErrNotOwned indicates the resource does not exist or belongs to another teacher.
	ErrNotOwned = errors.New("resource not found")
	// ErrFeatureUnavailable indicates the live schema lacks what the operation needs.
	ErrFeatureUnavailable = errors.New("feature not available on this database")
	// ErrInvalidInput wraps user-facing validation failures.
	ErrInvalidInput = errors.New("invalid input")
	// ErrScoreExceedsMax indicates a manual score above the problem or test maximum.
	ErrScoreExceedsMax = errors.New("score exceeds maximum")
)

const (
	maxWindowDays       = 365
	defaultWindowDays   = 30
	recentSubmissionCap = 5
)

// window clamps a days filter into [1, maxWindowDays] and returns the lower bound.
func window(days, fallback int, now time.Time) (int, time.Time) {
	if days <= 0 {
		days = fallback
	}
	if days <= 0 {
		days = defaultWindowDays
	}
	if days > maxWindowDays {
		days = maxWindowDays
	}
	return days, now.UTC().Add(-time.Duration(days) * 24 * time.Hour)
}

func invalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// featureError turns a missing required column into ErrFeatureUnavailable.
func featureError(err error) error {
	if errors.Is(err, repository.ErrCapabilityMissing) {
		return fmt.Errorf("%w: %s", ErrFeatureUnavailable, strings.TrimPrefix(err.Error(), repository.ErrCapabilityMissing.Error()+": "))
	}
	return err
}

func failSpan(span trace.Span, err error, status string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, status)
}

func invalidScore(max float64) error {
	return fmt.Errorf("%w: maximum is %g", ErrScoreExceedsMax, max)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
