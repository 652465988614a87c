package output

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/dshills/vibecheck/internal/review"
)

// Writer writes a report in a specific format.
type Writer interface {
	Write(w io.Writer, report *review.Report) error
}

// GetWriter returns a writer for the specified format.
func GetWriter(format string) (Writer, error) {
	switch format {
	case "text", "":
		return &TextWriter{}, nil
	case "json":
		return &JSONWriter{}, nil
	case "markdown", "md":
		return &MarkdownWriter{}, nil
	case "sarif":
		return &SARIFWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteReport writes the report to the specified output (file path or
// stdout). Text written to a terminal is colored and wrapped to its width
// unless NO_COLOR is set.
func WriteReport(report *review.Report, format, outPath string) error {
	writer, err := GetWriter(format)
	if err != nil {
		return err
	}

	var w io.Writer
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	} else {
		w = os.Stdout
		if tw, ok := writer.(*TextWriter); ok {
			fd := int(os.Stdout.Fd())
			if term.IsTerminal(fd) {
				tw.Color = os.Getenv("NO_COLOR") == ""
				if width, _, err := term.GetSize(fd); err == nil && width > 20 {
					tw.Width = width - 10
				}
			}
		}
	}

	return writer.Write(w, report)
}
