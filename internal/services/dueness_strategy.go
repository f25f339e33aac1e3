// Package services provides business logic and orchestration services.
//
// This file holds the per-frequency rules that decide whether a recurring
// template has an instance in a given reference period.

package services

import (
	"fmt"

	"financas/internal/core"
)

// DuenessChecker decides whether a template is due in a reference period.
// Each implementation covers one repetition type.
type DuenessChecker interface {
	IsDue(t core.RecurringTemplate, period core.Period) bool
}

// MonthlyChecker is due in every period within the template bounds.
type MonthlyChecker struct{}

func (MonthlyChecker) IsDue(t core.RecurringTemplate, period core.Period) bool {
	return withinBounds(t, period)
}

// YearlyChecker is due once a year, in the calendar month of the start period.
type YearlyChecker struct{}

func (YearlyChecker) IsDue(t core.RecurringTemplate, period core.Period) bool {
	return withinBounds(t, period) && period.Month == t.StartPeriod.Month
}

func withinBounds(t core.RecurringTemplate, period core.Period) bool {
	if period.Before(t.StartPeriod) {
		return false
	}
	return t.EndPeriod.IsZero() || !t.EndPeriod.Before(period)
}

var duenessStrategies = map[core.RepetitionTypes]DuenessChecker{
	core.Monthly: MonthlyChecker{},
	core.Yearly:  YearlyChecker{},
}

// GetDuenessChecker returns the checker for a repetition type.
func GetDuenessChecker(frequency core.RepetitionTypes) (DuenessChecker, error) {
	checker, ok := duenessStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown repetition type: %s", frequency)
	}
	return checker, nil
}

// RegisterDuenessChecker adds or replaces the checker for a repetition type.
func RegisterDuenessChecker(frequency core.RepetitionTypes, checker DuenessChecker) {
	duenessStrategies[frequency] = checker
}
