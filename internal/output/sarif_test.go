package output

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestSARIFWriter_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := (&SARIFWriter{}).Write(&buf, emptyReport()); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	var sarif sarifLog
	if err := json.Unmarshal(buf.Bytes(), &sarif); err != nil {
		t.Fatalf("Invalid SARIF JSON: %v", err)
	}
	if sarif.Version != "2.1.0" {
		t.Errorf("Version = %q, want %q", sarif.Version, "2.1.0")
	}
	if len(sarif.Runs) != 1 {
		t.Fatalf("Runs count = %d, want 1", len(sarif.Runs))
	}
	if sarif.Runs[0].Results == nil || len(sarif.Runs[0].Results) != 0 {
		t.Errorf("Results = %v, want empty array", sarif.Runs[0].Results)
	}
	if len(sarif.Runs[0].Invocations) != 0 {
		t.Error("no invocations expected without errors")
	}
}

func TestSARIFWriter_WithComments(t *testing.T) {
	report := sampleReport()
	var buf bytes.Buffer
	if err := (&SARIFWriter{}).Write(&buf, report); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	var sarif sarifLog
	if err := json.Unmarshal(buf.Bytes(), &sarif); err != nil {
		t.Fatalf("Invalid SARIF JSON: %v", err)
	}
	run := sarif.Runs[0]
	if run.Tool.Driver.Name != "vibecheck" {
		t.Errorf("Driver name = %q", run.Tool.Driver.Name)
	}
	if len(run.Tool.Driver.Rules) != 1 || run.Tool.Driver.Rules[0].ID != sarifRuleID {
		t.Errorf("Rules = %+v", run.Tool.Driver.Rules)
	}
	if len(run.Results) != 3 {
		t.Fatalf("Results count = %d, want 3", len(run.Results))
	}

	first := run.Results[0]
	loc := first.Locations[0].PhysicalLocation
	if loc.ArtifactLocation.URI != "cmd/app/main.go" || loc.Region.StartLine != 12 {
		t.Errorf("location = %+v", loc)
	}
	if first.Fixes[0].Description.Text != report.Comments[0].SuggestedChange {
		t.Errorf("fix = %q", first.Fixes[0].Description.Text)
	}
	if first.PartialFingerprints["vibecheck/v1"] != report.Comments[0].ID() {
		t.Error("fingerprint should be the comment ID")
	}
	if run.Results[1].Message.Text != "Suggested change" {
		t.Errorf("empty comment message = %q", run.Results[1].Message.Text)
	}

	if len(run.Invocations) != 1 || len(run.Invocations[0].ToolExecutionNotifications) != 1 {
		t.Fatalf("Invocations = %+v", run.Invocations)
	}
}
