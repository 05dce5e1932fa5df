package timesheet

import (
	"fmt"
	"strings"

	"github.com/christopherklint97/sitehours/internal/timecalc"
)

// Default normal-hour caps in minutes.
const (
	DefaultSiteDayMinutes = 480
	DefaultDayMinutes     = 600
)

type Limits struct {
	SiteDayMinutes int
	DayMinutes     int
}

func DefaultLimits() Limits {
	return Limits{SiteDayMinutes: DefaultSiteDayMinutes, DayMinutes: DefaultDayMinutes}
}

// Reference resolves catalog data the validator depends on.
type Reference interface {
	// Component returns the external component (sub-employment) id for a
	// specialty or equipment code.
	Component(c Category, code string) (int, bool)
	// ClassCompatible reports whether classID may pair with the specialty.
	ClassCompatible(specialtyCode string, classID int) bool
}

// Usage is the normal (non-overtime) minutes already booked for a worker.
type Usage struct {
	SiteDay int
	Day     int
}

type Validator struct {
	limits Limits
	ref    Reference
}

// NewValidator builds a validator. A nil ref skips catalog resolution.
func NewValidator(limits Limits, ref Reference) *Validator {
	if limits.SiteDayMinutes <= 0 {
		limits.SiteDayMinutes = DefaultSiteDayMinutes
	}
	if limits.DayMinutes <= 0 {
		limits.DayMinutes = DefaultDayMinutes
	}
	return &Validator{limits: limits, ref: ref}
}

func (v *Validator) Limits() Limits {
	return v.limits
}

// Check evaluates the rules in order and returns the first violation.
// used must not already include a.
func (v *Validator) Check(hasWorker bool, a Allocation, used Usage) error {
	if a.SiteID <= 0 {
		return requiredField("site")
	}
	if a.Day <= 0 {
		return requiredField("day")
	}
	if !hasWorker {
		return requiredField("worker")
	}
	if a.Minutes <= 0 {
		return requiredField("duration")
	}
	code := a.Code()
	if code == "" || (a.Labor == nil && a.Equipment == nil) {
		return requiredField("specialty")
	}
	if v.ref != nil {
		if _, ok := v.ref.Component(a.Category(), code); !ok {
			return &ValidationError{
				Rule:    RuleRequired,
				Field:   "component",
				Message: fmt.Sprintf("no component found for %s %q", a.Category(), code),
			}
		}
	}

	classID, ok := a.ClassID()
	if !ok {
		return &ValidationError{
			Rule:    RuleClassification,
			Field:   "class",
			Message: "classification is required for labor",
		}
	}
	if classID != Unclassified && v.ref != nil && !v.ref.ClassCompatible(code, classID) {
		return &ValidationError{
			Rule:    RuleCompatibility,
			Field:   "class",
			Message: fmt.Sprintf("classification %d cannot be used with specialty %q", classID, code),
		}
	}
	if classID == Unclassified && strings.TrimSpace(a.Notes) == "" {
		return &ValidationError{
			Rule:    RuleNotes,
			Field:   "notes",
			Message: "notes are required for unclassified hours",
		}
	}

	if a.Overtime {
		return nil
	}
	if used.SiteDay+a.Minutes > v.limits.SiteDayMinutes {
		remaining := max(0, v.limits.SiteDayMinutes-used.SiteDay)
		return &ValidationError{
			Rule:      RuleSiteDayCap,
			Field:     "duration",
			Remaining: remaining,
			Message: fmt.Sprintf("exceeds %s of normal hours on this site for the day, %s remaining",
				timecalc.FormatMinutes(v.limits.SiteDayMinutes), timecalc.FormatMinutes(remaining)),
		}
	}
	if used.Day+a.Minutes > v.limits.DayMinutes {
		remaining := max(0, v.limits.DayMinutes-used.Day)
		return &ValidationError{
			Rule:      RuleDayCap,
			Field:     "duration",
			Remaining: remaining,
			Message: fmt.Sprintf("exceeds %s of normal hours across all sites for the day, %s remaining",
				timecalc.FormatMinutes(v.limits.DayMinutes), timecalc.FormatMinutes(remaining)),
		}
	}
	return nil
}
