package deps

import "testing"

func TestCheckBinariesReportsMissing(t *testing.T) {
	statuses := CheckBinaries([]Requirement{
		{Name: "Shell", Command: "sh", Description: "present on any test host"},
		{Name: "Ghost", Command: "definitely-not-a-real-binary-xyz"},
		{Name: "Unset", Command: ""},
	})

	if len(statuses) != 3 {
		t.Fatalf("statuses = %d, want 3", len(statuses))
	}
	if !statuses[0].Available {
		t.Errorf("sh should be available: %+v", statuses[0])
	}
	if statuses[1].Available || statuses[1].Detail == "" {
		t.Errorf("missing binary should carry detail: %+v", statuses[1])
	}
	if statuses[2].Available || statuses[2].Detail != "command not configured" {
		t.Errorf("empty command should be reported unconfigured: %+v", statuses[2])
	}
}

func TestMissingRequired(t *testing.T) {
	missing := MissingRequired([]Status{
		{Name: "A", Available: true},
		{Name: "B", Available: false},
		{Name: "C", Available: false, Optional: true},
	})
	if len(missing) != 1 || missing[0] != "B" {
		t.Errorf("missing = %v, want [B]", missing)
	}
}
