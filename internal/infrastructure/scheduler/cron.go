package scheduler

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidConfig wraps every schedule parsing failure
var ErrInvalidConfig = errors.New("invalid overdue sweep schedule")

// Daily schedule used when none is configured
const (
	defaultCronHour   = 2
	defaultCronMinute = 0
)

// ParseCronSchedule parses a daily cron expression "minute hour * * *".
// An empty expression yields the 02:00 default.
func ParseCronSchedule(cronExpr string) (hour, minute int, err error) {
	hour, minute = defaultCronHour, defaultCronMinute

	parts := strings.Fields(cronExpr)
	if len(parts) == 0 {
		return hour, minute, nil
	}
	if len(parts) < 2 {
		return defaultCronHour, defaultCronMinute, fmt.Errorf("%w: expected \"minute hour * * *\", got %q", ErrInvalidConfig, cronExpr)
	}

	if minute, err = parseField(parts[0], defaultCronMinute); err != nil {
		return defaultCronHour, defaultCronMinute, err
	}
	if hour, err = parseField(parts[1], defaultCronHour); err != nil {
		return defaultCronHour, defaultCronMinute, err
	}

	if minute < 0 || minute > 59 {
		return defaultCronHour, defaultCronMinute, fmt.Errorf("%w: minute must be 0-59, got %d", ErrInvalidConfig, minute)
	}
	if hour < 0 || hour > 23 {
		return defaultCronHour, defaultCronMinute, fmt.Errorf("%w: hour must be 0-23, got %d", ErrInvalidConfig, hour)
	}
	return hour, minute, nil
}

// parseField parses a non-negative integer field; "*" keeps the default
func parseField(s string, defaultVal int) (int, error) {
	if s == "*" {
		return defaultVal, nil
	}
	var val int
	for _, c := range s {
		if c < '0' || c > '9' {
			return defaultVal, fmt.Errorf("%w: %q is not a number", ErrInvalidConfig, s)
		}
		val = val*10 + int(c-'0')
		if val > 59 {
			return defaultVal, fmt.Errorf("%w: %q is out of range", ErrInvalidConfig, s)
		}
	}
	return val, nil
}

// nextDailyRun returns the first hour:minute strictly after now
func nextDailyRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
