package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/christopherklint97/sitehours/internal/timesheet"
)

// Index is an immutable lookup view over one catalog load.
type Index struct {
	specialties map[string]Specialty
	equipment   map[string]Equipment
	classes     map[int]Class
}

func NewIndex(specialties []Specialty, equipment []Equipment, classes []Class) *Index {
	idx := &Index{
		specialties: make(map[string]Specialty, len(specialties)),
		equipment:   make(map[string]Equipment, len(equipment)),
		classes:     make(map[int]Class, len(classes)+1),
	}
	for _, s := range specialties {
		idx.specialties[normCode(s.Code)] = s
	}
	for _, e := range equipment {
		idx.equipment[normCode(e.Code)] = e
	}
	idx.classes[unclassified.ID] = unclassified
	for _, c := range classes {
		idx.classes[c.ID] = c
	}
	return idx
}

func normCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Lookup resolves the component id for a specialty or equipment code.
func (idx *Index) Lookup(c timesheet.Category, code string) (int, error) {
	switch c {
	case timesheet.Equipment:
		if e, ok := idx.equipment[normCode(code)]; ok {
			return e.ComponentID, nil
		}
	default:
		if s, ok := idx.specialties[normCode(code)]; ok {
			return s.ComponentID, nil
		}
	}
	return 0, fmt.Errorf("%s %q: %w", c, code, ErrNotFound)
}

func (idx *Index) Component(c timesheet.Category, code string) (int, bool) {
	id, err := idx.Lookup(c, code)
	return id, err == nil
}

// ClassCompatible reports whether a classification may pair with a
// specialty. Unclassified always may.
func (idx *Index) ClassCompatible(specialtyCode string, classID int) bool {
	if classID == timesheet.Unclassified {
		return true
	}
	class, ok := idx.classes[classID]
	if !ok {
		return false
	}
	spec, ok := idx.specialties[normCode(specialtyCode)]
	if !ok {
		return false
	}
	return strings.EqualFold(class.Tag, spec.Tag)
}

// ClassesFor lists the classifications offered for a specialty, the
// unclassified fallback first.
func (idx *Index) ClassesFor(specialtyCode string) []Class {
	out := []Class{idx.classes[timesheet.Unclassified]}
	var rest []Class
	for id, c := range idx.classes {
		if id != timesheet.Unclassified && idx.ClassCompatible(specialtyCode, id) {
			rest = append(rest, c)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].ID < rest[j].ID })
	return append(out, rest...)
}

func (idx *Index) Specialty(code string) (Specialty, bool) {
	s, ok := idx.specialties[normCode(code)]
	return s, ok
}

// ClassLabels maps class ids to display names.
func (idx *Index) ClassLabels() map[int]string {
	out := make(map[int]string, len(idx.classes))
	for id, c := range idx.classes {
		out[id] = c.Name
	}
	return out
}
