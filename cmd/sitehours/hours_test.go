package main

import (
	"testing"

	"github.com/spf13/cobra"

	"github.com/christopherklint97/sitehours/internal/timesheet"
)

func TestParseHours(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"7h30m", 450, false},
		{"45m", 45, false},
		{"8h", 480, false},
		{"0m", 0, true},
		{"30s", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := parseHours(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseHours(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseHours(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func newAddCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "add"}
	cmd.Flags().Int("day", 0, "")
	cmd.Flags().Int("site", 0, "")
	addAllocationFlags(cmd)
	if err := cmd.Flags().Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return cmd
}

func TestAllocationFromFlags(t *testing.T) {
	a, err := allocationFromFlags(newAddCmd(t, "--day=5", "--site=1", "--hours=4h", "--specialty=PED", "--class=3"))
	if err != nil {
		t.Fatalf("labor: %v", err)
	}
	if a.Category() != timesheet.Labor || a.Minutes != 240 || a.Labor.ClassID == nil || *a.Labor.ClassID != 3 {
		t.Errorf("labor allocation = %+v", a)
	}

	e, err := allocationFromFlags(newAddCmd(t, "--day=5", "--site=1", "--minutes=60", "--equipment=EQ-GRUA", "--overtime"))
	if err != nil {
		t.Fatalf("equipment: %v", err)
	}
	if e.Category() != timesheet.Equipment || !e.Overtime || e.Labor != nil {
		t.Errorf("equipment allocation = %+v", e)
	}

	if _, err := allocationFromFlags(newAddCmd(t, "--specialty=PED", "--equipment=EQ-GRUA")); err == nil {
		t.Error("expected error when both categories are given")
	}
}
