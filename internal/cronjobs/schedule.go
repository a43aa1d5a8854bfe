package cronjobs

import (
	"errors"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
)

// ErrInvalidSchedule marks a cron expression or timezone that cannot be used.
var ErrInvalidSchedule = errors.New("cronjobs: invalid schedule")

// Schedule computes occurrences of a cron expression in a timezone. Narrow on
// purpose: any compliant cron evaluator satisfies it.
type Schedule interface {
	// NextAfter returns the next occurrence strictly after the given time.
	NextAfter(expr, tz string, after time.Time) (time.Time, error)
	// Validate reports whether the expression and timezone are usable.
	Validate(expr, tz string) error
}

// GronxSchedule implements Schedule with adhocore/gronx.
type GronxSchedule struct{}

func (GronxSchedule) NextAfter(expr, tz string, after time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timezone %q: %v", ErrInvalidSchedule, tz, err)
	}
	next, err := gronx.NextTickAfter(expr, after.In(loc), false)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, expr, err)
	}
	return next, nil
}

func (GronxSchedule) Validate(expr, tz string) error {
	if !gronx.New().IsValid(expr) {
		return fmt.Errorf("%w: %q", ErrInvalidSchedule, expr)
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("%w: timezone %q: %v", ErrInvalidSchedule, tz, err)
	}
	return nil
}
