// Package output formats review reports for display or machine consumption.
//
// Four formats are supported:
//   - text: human-readable terminal output, colored on a TTY (default)
//   - json: the full structured report
//   - markdown: PR-comment-friendly, one collapsible section per file
//   - sarif: SARIF v2.1.0 for code scanning uploads
//
// Use [GetWriter] to obtain a [Writer] for a format string, or
// [WriteReport] to write to a file or stdout.
package output
