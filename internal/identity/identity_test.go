package identity_test

import (
	"testing"

	"github.com/christopherklint97/sitehours/internal/identity"
	"github.com/christopherklint97/sitehours/internal/timecalc"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"joão silva", "joao silva"},
		{"João  Silva", "joao silva"},
		{"  JOÃO SILVA ", "joao silva"},
		{"Conceição Gonçalves", "conceicao goncalves"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := identity.NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestKeys(t *testing.T) {
	a := identity.NewExternal("joão silva", "")
	b := identity.NewExternal("João  Silva", "Acme")
	if a.Key() != b.Key() {
		t.Errorf("expected same key, got %q and %q", a.Key(), b.Key())
	}
	if !a.Key().IsExternal() {
		t.Error("expected external key")
	}

	w := identity.NewInternal(42, "Ana")
	if w.Key() != identity.InternalKey(42) || w.Key().IsExternal() {
		t.Errorf("unexpected internal key %q", w.Key())
	}
}

func TestDirectory(t *testing.T) {
	id := 42
	dir := identity.NewDirectory([]identity.Team{{
		ID:   1,
		Name: "Equipa A",
		Members: []identity.Member{
			{WorkerID: &id, Name: "Ana", Code: " E042 "},
			{Name: "Rui Externo", External: true, Company: "Acme"},
		},
	}})

	code, ok := dir.Code(42)
	if !ok || code != "E042" {
		t.Errorf("Code(42) = %q, %v", code, ok)
	}
	if _, ok := dir.Code(7); ok {
		t.Error("expected no code for unknown worker")
	}
	if len(dir.Externals()) != 1 {
		t.Errorf("Externals = %d, want 1", len(dir.Externals()))
	}
	if len(dir.Members()) != 2 {
		t.Errorf("Members = %d, want 2", len(dir.Members()))
	}
}

func TestConsolidateSumsSameNormalizedName(t *testing.T) {
	d := timecalc.Date{Year: 2025, Month: 3, Day: 5}
	submitted := []identity.ExternalRecord{{Name: "joão silva", SiteID: 1, Date: d, Minutes: 240}}
	pending := []identity.ExternalRecord{{Name: "João  Silva", SiteID: 1, Date: d, Minutes: 120}}

	totals, amb := identity.Consolidate(submitted, pending, nil)
	if len(totals) != 1 {
		t.Fatalf("got %d totals, want 1", len(totals))
	}
	if totals[0].Minutes() != 360 {
		t.Errorf("Minutes = %d, want 360", totals[0].Minutes())
	}
	if totals[0].DisplayName != "joão silva" {
		t.Errorf("DisplayName = %q, submitted spelling should win", totals[0].DisplayName)
	}
	if len(amb) != 1 || len(amb[0].Names) != 2 {
		t.Errorf("expected one ambiguity with two spellings, got %+v", amb)
	}
}

func TestConsolidateRosterOnlyWhenNoRecord(t *testing.T) {
	d := timecalc.Date{Year: 2025, Month: 3, Day: 5}
	submitted := []identity.ExternalRecord{{Name: "Rui", Date: d, Minutes: 0}}
	roster := []identity.Member{
		{Name: "rui", External: true},
		{Name: "Paula", External: true, Company: "Beta"},
	}

	totals, amb := identity.Consolidate(submitted, nil, roster)
	if len(totals) != 2 {
		t.Fatalf("got %d totals, want 2", len(totals))
	}
	for _, tot := range totals {
		switch tot.Key {
		case identity.ExternalKey("Rui"):
			if tot.RosterOnly {
				t.Error("Rui has a record and must not be roster-only")
			}
		case identity.ExternalKey("Paula"):
			if !tot.RosterOnly || tot.Company != "Beta" {
				t.Errorf("Paula = %+v, want roster-only from Beta", tot)
			}
		}
	}
	if len(amb) != 0 {
		t.Errorf("unexpected ambiguities %+v", amb)
	}
}

func TestConsolidateFlagsCompanyCollision(t *testing.T) {
	d := timecalc.Date{Year: 2025, Month: 3, Day: 5}
	pending := []identity.ExternalRecord{
		{Name: "Rui", Company: "Acme", Date: d, Minutes: 60},
		{Name: "Rui", Company: "Beta", Date: d, Minutes: 60},
	}
	_, amb := identity.Consolidate(nil, pending, nil)
	if len(amb) != 1 || len(amb[0].Companies) != 2 {
		t.Errorf("expected company collision, got %+v", amb)
	}
}
