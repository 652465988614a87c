package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dshills/vibecheck/internal/review"
)

// JSONWriter outputs the full report as JSON.
type JSONWriter struct {
	// CommentsOnly writes just the comment array.
	CommentsOnly bool
}

func (j *JSONWriter) Write(w io.Writer, report *review.Report) error {
	var v any = report
	if j.CommentsOnly {
		comments := report.Comments
		if comments == nil {
			comments = []review.Comment{}
		}
		v = comments
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}
