package timesheet

import "strings"

type Category string

const (
	Labor     Category = "MO"
	Equipment Category = "EQ"
)

func (c Category) String() string {
	switch c {
	case Labor:
		return "labor"
	case Equipment:
		return "equipment"
	}
	return string(c)
}

// Unclassified is the fallback classification. It is always allowed and
// requires notes.
const Unclassified = -1

// LaborDetail holds the fields only valid for labor allocations.
type LaborDetail struct {
	SpecialtyCode string `json:"specialty_code"`
	ClassID       *int   `json:"class_id,omitempty"`
}

// EquipmentDetail holds the fields only valid for equipment allocations.
type EquipmentDetail struct {
	EquipmentCode string `json:"equipment_code"`
}

// Allocation is one line of work effort for a worker on a site and day.
// Exactly one of Labor or Equipment is set.
type Allocation struct {
	ID        string           `json:"id"`
	Day       int              `json:"day"`
	SiteID    int              `json:"site_id"`
	Labor     *LaborDetail     `json:"labor,omitempty"`
	Equipment *EquipmentDetail `json:"equipment,omitempty"`
	Overtime  bool             `json:"overtime"`
	Minutes   int              `json:"minutes"`
	Notes     string           `json:"notes,omitempty"`

	// Reference data joined in after load, never persisted.
	SiteName  string `json:"-"`
	ClassName string `json:"-"`
}

// Class returns a pointer to id, for building labor details.
func Class(id int) *int {
	return &id
}

func (a Allocation) Category() Category {
	if a.Equipment != nil {
		return Equipment
	}
	return Labor
}

// Code is the specialty code for labor or the equipment code for equipment.
func (a Allocation) Code() string {
	switch {
	case a.Equipment != nil:
		return strings.TrimSpace(a.Equipment.EquipmentCode)
	case a.Labor != nil:
		return strings.TrimSpace(a.Labor.SpecialtyCode)
	}
	return ""
}

// ClassID returns the resolved classification. Equipment is always
// Unclassified; labor reports false until a class is chosen.
func (a Allocation) ClassID() (int, bool) {
	if a.Equipment != nil {
		return Unclassified, true
	}
	if a.Labor == nil || a.Labor.ClassID == nil {
		return 0, false
	}
	return *a.Labor.ClassID, true
}

// SwitchCategory returns a copy of a moved to category c with every
// category-dependent field reset. Day, site, minutes, overtime and notes
// are kept.
func SwitchCategory(a Allocation, c Category) Allocation {
	if a.Category() == c && (a.Labor != nil || a.Equipment != nil) {
		return a.clone()
	}
	out := a
	out.Labor = nil
	out.Equipment = nil
	out.ClassName = ""
	switch c {
	case Equipment:
		out.Equipment = &EquipmentDetail{}
	default:
		out.Labor = &LaborDetail{}
	}
	return out
}

func (a Allocation) clone() Allocation {
	out := a
	if a.Labor != nil {
		l := *a.Labor
		if a.Labor.ClassID != nil {
			l.ClassID = Class(*a.Labor.ClassID)
		}
		out.Labor = &l
	}
	if a.Equipment != nil {
		e := *a.Equipment
		out.Equipment = &e
	}
	return out
}
