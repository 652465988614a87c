package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/dshills/vibecheck/internal/review"
)

func TestJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &JSONWriter{}
	if err := w.Write(&buf, sampleReport()); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	var parsed review.Report
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if parsed.Tool != "vibecheck" {
		t.Errorf("Tool = %q, want %q", parsed.Tool, "vibecheck")
	}
	if len(parsed.Comments) != 3 {
		t.Fatalf("Comments count = %d, want 3", len(parsed.Comments))
	}
	if parsed.Comments[0].Line != 12 || parsed.Comments[0].Path != "cmd/app/main.go" {
		t.Errorf("first comment = %+v", parsed.Comments[0])
	}
	if parsed.Summary.FailedHunks != 1 {
		t.Errorf("FailedHunks = %d, want 1", parsed.Summary.FailedHunks)
	}
}

func TestJSONWriter_CommentsOnly(t *testing.T) {
	var buf bytes.Buffer
	w := &JSONWriter{CommentsOnly: true}
	if err := w.Write(&buf, &review.Report{}); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if got := buf.String(); got != "[]\n" {
		t.Errorf("empty comments = %q, want []", got)
	}

	buf.Reset()
	if err := w.Write(&buf, sampleReport()); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	var comments []review.Comment
	if err := json.Unmarshal(buf.Bytes(), &comments); err != nil {
		t.Fatalf("Output is not a JSON array: %v", err)
	}
	if len(comments) != 3 {
		t.Errorf("Comments count = %d, want 3", len(comments))
	}
}
