package identity

import (
	"sort"
	"strings"

	"github.com/christopherklint97/sitehours/internal/timecalc"
)

// ExternalRecord is one line of external worker hours, either already
// submitted or pending locally.
type ExternalRecord struct {
	Name    string
	Company string
	SiteID  int
	Date    timecalc.Date
	Minutes int
}

// ExternalTotal is the consolidated view of one canonical external.
type ExternalTotal struct {
	Key         Key
	DisplayName string
	Company     string
	Submitted   int
	Pending     int
	RosterOnly  bool
}

func (t ExternalTotal) Minutes() int {
	return t.Submitted + t.Pending
}

// Ambiguity flags a canonical key that was reached from differently spelled
// names or from different companies. The hours are still merged.
type Ambiguity struct {
	Key       Key
	Names     []string
	Companies []string
}

type accumulator struct {
	total     ExternalTotal
	names     map[string]bool
	companies map[string]bool
}

// Consolidate joins external hours by normalized name. Submitted records
// are taken first, pending records are summed in, and roster members are
// added only when no record exists for their key.
func Consolidate(submitted, pending []ExternalRecord, roster []Member) ([]ExternalTotal, []Ambiguity) {
	acc := make(map[Key]*accumulator)
	get := func(name, company string) *accumulator {
		k := ExternalKey(name)
		a, ok := acc[k]
		if !ok {
			a = &accumulator{
				total:     ExternalTotal{Key: k, DisplayName: strings.TrimSpace(name), Company: company},
				names:     make(map[string]bool),
				companies: make(map[string]bool),
			}
			acc[k] = a
		}
		a.names[strings.TrimSpace(name)] = true
		if company != "" {
			a.companies[company] = true
			if a.total.Company == "" {
				a.total.Company = company
			}
		}
		return a
	}

	for _, r := range submitted {
		get(r.Name, r.Company).total.Submitted += r.Minutes
	}
	for _, r := range pending {
		get(r.Name, r.Company).total.Pending += r.Minutes
	}
	for _, m := range roster {
		if !m.External && m.WorkerID != nil {
			continue
		}
		if _, ok := acc[ExternalKey(m.Name)]; ok {
			continue
		}
		a := get(m.Name, m.Company)
		a.total.RosterOnly = true
	}

	totals := make([]ExternalTotal, 0, len(acc))
	var ambiguities []Ambiguity
	for _, a := range acc {
		totals = append(totals, a.total)
		if len(a.names) > 1 || len(a.companies) > 1 {
			ambiguities = append(ambiguities, Ambiguity{
				Key:       a.total.Key,
				Names:     sortedKeys(a.names),
				Companies: sortedKeys(a.companies),
			})
		}
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Key < totals[j].Key })
	sort.Slice(ambiguities, func(i, j int) bool { return ambiguities[i].Key < ambiguities[j].Key })
	return totals, ambiguities
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
