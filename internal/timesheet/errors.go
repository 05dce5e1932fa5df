package timesheet

import (
	"errors"
	"fmt"
)

// ErrCellLocked is returned when editing a day that already has submitted hours.
var ErrCellLocked = errors.New("day already submitted")

// ErrDayOutOfRange is returned for a day outside the grid's month.
var ErrDayOutOfRange = errors.New("day outside period")

type Rule string

const (
	RuleRequired       Rule = "required"
	RuleClassification Rule = "classification"
	RuleCompatibility  Rule = "compatibility"
	RuleNotes          Rule = "notes"
	RuleSiteDayCap     Rule = "site_day_cap"
	RuleDayCap         Rule = "day_cap"
)

// ValidationError reports the first rule an allocation broke. Remaining is
// the normal-hour capacity left for cap rules.
type ValidationError struct {
	Rule      Rule
	Field     string
	Message   string
	Remaining int
}

func (e *ValidationError) Error() string {
	return e.Message
}

func requiredField(field string) *ValidationError {
	return &ValidationError{
		Rule:    RuleRequired,
		Field:   field,
		Message: fmt.Sprintf("%s is required", field),
	}
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
