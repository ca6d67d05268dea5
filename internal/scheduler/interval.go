// Package scheduler owns the lifecycle of recurring obligations.
//
// This file implements the Strategy Pattern for due-date advancement.
// Each interval (daily, weekly, monthly, ...) has its own strategy that
// computes the next due date from the current one.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"fintrack/internal/core"
)

// Advancer is the strategy interface for moving a due date forward by one
// period.
type Advancer interface {
	Next(from core.Date) core.Date
}

// DayStep advances by a fixed number of days.
type DayStep int

// Next returns from plus the configured number of days.
func (s DayStep) Next(from core.Date) core.Date {
	return core.Date{Time: from.AddDate(0, 0, int(s))}
}

// MonthStep advances by whole months, clamping to the last day of the
// target month so Jan 31 becomes Feb 28/29 instead of rolling into March.
type MonthStep int

// Next returns from plus the configured number of months.
func (s MonthStep) Next(from core.Date) core.Date {
	year, month, day := from.Date()
	target := time.Date(year, month+time.Month(s), 1, 0, 0, 0, 0, time.UTC)
	lastDayOfMonth := time.Date(target.Year(), target.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > lastDayOfMonth {
		day = lastDayOfMonth
	}
	return core.NewDate(target.Year(), int(target.Month()), day)
}

var (
	advancersMu sync.RWMutex
	// advancers maps intervals to their strategies.
	advancers = map[core.Interval]Advancer{
		core.Daily:     DayStep(1),
		core.Weekly:    DayStep(7),
		core.Biweekly:  DayStep(14),
		core.Monthly:   MonthStep(1),
		core.Quarterly: MonthStep(3),
		core.Yearly:    MonthStep(12),
	}
)

// GetAdvancer returns the strategy for an interval.
// Returns an error if the interval is not supported.
func GetAdvancer(interval core.Interval) (Advancer, error) {
	advancersMu.RLock()
	defer advancersMu.RUnlock()
	a, ok := advancers[core.ParseInterval(string(interval))]
	if !ok {
		return nil, fmt.Errorf("unknown interval: %q", interval)
	}
	return a, nil
}

// RegisterAdvancer adds or replaces the strategy for an interval, e.g. for
// collaborator-specific free-text values like "every-4-weeks".
func RegisterAdvancer(interval core.Interval, a Advancer) {
	advancersMu.Lock()
	defer advancersMu.Unlock()
	advancers[core.ParseInterval(string(interval))] = a
}

func unregisterAdvancer(interval core.Interval) {
	advancersMu.Lock()
	defer advancersMu.Unlock()
	delete(advancers, core.ParseInterval(string(interval)))
}
