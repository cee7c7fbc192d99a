// Package recurrence computes the next run time of an automation from its
// frequency descriptor. Descriptors are translated into cron specs and
// evaluated with robfig/cron in UTC.
package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/robfig/cron/v3"
)

// Supported frequencies.
const (
	Hourly         = "hourly"
	Daily          = "daily"
	Weekly         = "weekly"
	CustomInterval = "custom_interval"
)

// Config holds the sub-fields of a frequency descriptor. Unused fields are
// ignored for a given frequency.
type Config struct {
	Minute       int `mapstructure:"minute"`
	Hour         int `mapstructure:"hour"`
	DayOfWeek    int `mapstructure:"day_of_week"` // 0 = Sunday
	IntervalDays int `mapstructure:"interval_days"`
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Evaluator turns frequency descriptors into next run times.
type Evaluator struct{}

// NewEvaluator returns a ready Evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Next returns the first eligible run time strictly after base.
func (e *Evaluator) Next(frequency string, raw map[string]interface{}, base time.Time) (time.Time, error) {
	sched, err := e.Schedule(frequency, raw)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(base.UTC()), nil
}

// Schedule builds the cron.Schedule for a descriptor.
func (e *Evaluator) Schedule(frequency string, raw map[string]interface{}) (cron.Schedule, error) {
	cfg, err := decodeConfig(raw)
	if err != nil {
		return nil, err
	}
	if err := validate(frequency, cfg); err != nil {
		return nil, err
	}

	if frequency == CustomInterval {
		return &intervalSchedule{days: cfg.IntervalDays, hour: cfg.Hour, minute: cfg.Minute}, nil
	}

	spec, err := cronSpec(frequency, cfg)
	if err != nil {
		return nil, err
	}
	return parser.Parse(spec)
}

// Describe renders a human readable form of the descriptor, used in logs
// and API responses.
func (e *Evaluator) Describe(frequency string, raw map[string]interface{}) (string, error) {
	cfg, err := decodeConfig(raw)
	if err != nil {
		return "", err
	}
	if err := validate(frequency, cfg); err != nil {
		return "", err
	}
	if frequency == CustomInterval {
		return fmt.Sprintf("every %d days at %02d:%02d UTC", cfg.IntervalDays, cfg.Hour, cfg.Minute), nil
	}
	return cronSpec(frequency, cfg)
}

func cronSpec(frequency string, cfg Config) (string, error) {
	switch frequency {
	case Hourly:
		return fmt.Sprintf("%d * * * *", cfg.Minute), nil
	case Daily:
		return fmt.Sprintf("%d %d * * *", cfg.Minute, cfg.Hour), nil
	case Weekly:
		return fmt.Sprintf("%d %d * * %d", cfg.Minute, cfg.Hour, cfg.DayOfWeek), nil
	default:
		return "", fmt.Errorf("unsupported frequency: %s", frequency)
	}
}

func decodeConfig(raw map[string]interface{}) (Config, error) {
	var cfg Config
	if len(raw) == 0 {
		return cfg, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return cfg, err
	}
	if err := dec.Decode(raw); err != nil {
		return cfg, fmt.Errorf("invalid frequency_config: %w", err)
	}
	return cfg, nil
}

func validate(frequency string, cfg Config) error {
	switch strings.TrimSpace(frequency) {
	case Hourly, Daily, Weekly, CustomInterval:
	case "":
		return fmt.Errorf("frequency is required")
	default:
		return fmt.Errorf("unsupported frequency: %s", frequency)
	}
	if cfg.Minute < 0 || cfg.Minute > 59 {
		return fmt.Errorf("minute must be between 0 and 59, got %d", cfg.Minute)
	}
	if cfg.Hour < 0 || cfg.Hour > 23 {
		return fmt.Errorf("hour must be between 0 and 23, got %d", cfg.Hour)
	}
	if cfg.DayOfWeek < 0 || cfg.DayOfWeek > 6 {
		return fmt.Errorf("day_of_week must be between 0 and 6, got %d", cfg.DayOfWeek)
	}
	if frequency == CustomInterval && cfg.IntervalDays < 1 {
		return fmt.Errorf("interval_days must be at least 1 for custom_interval")
	}
	return nil
}

// intervalSchedule fires every N days at a fixed wall-clock time (UTC).
type intervalSchedule struct {
	days   int
	hour   int
	minute int
}

func (s *intervalSchedule) Next(t time.Time) time.Time {
	t = t.UTC()
	next := time.Date(t.Year(), t.Month(), t.Day(), s.hour, s.minute, 0, 0, time.UTC).AddDate(0, 0, s.days)
	// same-day slot still ahead of t does not count; a full interval always elapses
	for !next.After(t) {
		next = next.AddDate(0, 0, s.days)
	}
	return next
}
