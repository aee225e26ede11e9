// Package scheduler fires periodic sync passes so queued operations drain
// even when no connectivity event arrives.
package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule defines when the trigger fires.
type Schedule struct {
	Kind       string `json:"kind"` // "interval" or "cron"
	IntervalMs int64  `json:"intervalMs,omitempty"`
	Expr       string `json:"expr,omitempty"` // standard 5-field cron expression
}

// Validate checks the schedule configuration.
func (s *Schedule) Validate() error {
	switch s.Kind {
	case "interval":
		if s.IntervalMs <= 0 {
			return fmt.Errorf("intervalMs must be positive")
		}
	case "cron":
		if s.Expr == "" {
			return fmt.Errorf("cron expression required")
		}
		if _, err := cron.ParseStandard(s.Expr); err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
	default:
		return fmt.Errorf("unknown schedule kind: %s (use interval or cron)", s.Kind)
	}
	return nil
}

// NextRun calculates the next firing time after from.
func (s *Schedule) NextRun(from time.Time) (time.Time, error) {
	switch s.Kind {
	case "interval":
		return from.Add(time.Duration(s.IntervalMs) * time.Millisecond), nil
	case "cron":
		schedule, err := cron.ParseStandard(s.Expr)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse cron: %w", err)
		}
		return schedule.Next(from), nil
	default:
		return time.Time{}, fmt.Errorf("unknown schedule kind: %s", s.Kind)
	}
}
