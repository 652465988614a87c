package redact

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dshills/vibecheck/internal/gitctx"
)

const placeholder = "[REDACTED]"

// secretPatterns are regex heuristics for common secret types.
var secretPatterns = []*regexp.Regexp{
	// Generic API keys (long hex/base64 strings after common key patterns)
	regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["']?([A-Za-z0-9/+=_-]{20,})["']?`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key)\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`),
	// Secrets, tokens and passwords in quoted assignments
	regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)\s*(:=|[:=])\s*["']([^"']{8,})["']`),
	regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{20,}`),
	// JWTs
	regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`),
	regexp.MustCompile(`-----BEGIN\s+(RSA\s+|EC\s+|OPENSSH\s+)?PRIVATE KEY-----`),
	// Credentials embedded in connection strings
	regexp.MustCompile(`(?i)\b(postgres(ql)?|mysql|mongodb(\+srv)?|redis|amqp)://[^:/\s]+:[^@\s]+@`),
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`),
	regexp.MustCompile(`xox[bporas]-[A-Za-z0-9-]{10,}`),
	regexp.MustCompile(`hf_[A-Za-z0-9]{30,}`),
	regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`),
	regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`),
	regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),
	// Long hex strings assigned to key/secret/token names
	regexp.MustCompile(`(?i)(key|secret|token)\s*[:=]\s*["']?[0-9a-f]{32,}["']?`),
}

// Policy decides what is masked before text leaves the process.
type Policy struct {
	// Secrets enables pattern-based masking.
	Secrets bool
	// Paths are glob patterns of files whose content is withheld entirely.
	Paths []string
}

// Enabled reports whether p can change any text.
func (p Policy) Enabled() bool {
	return p.Secrets || len(p.Paths) > 0
}

// Apply masks text taken from the file at path. It returns the masked text
// and the number of replacements made. A withheld file counts as one.
func (p Policy) Apply(path, text string) (string, int) {
	if ShouldRedactPath(path, p.Paths) {
		return placeholder + " (file content redacted by path policy)\n", 1
	}
	if !p.Secrets {
		return text, 0
	}
	return scan(text)
}

// Secrets replaces detected secrets in text with [REDACTED].
func Secrets(text string) string {
	out, _ := scan(text)
	return out
}

func scan(text string) (string, int) {
	n := 0
	for _, pat := range secretPatterns {
		text = pat.ReplaceAllStringFunc(text, func(string) string {
			n++
			return placeholder
		})
	}
	return text, n
}

// ShouldRedactPath reports whether path matches any redaction pattern.
// Patterns without a slash also match the file name alone.
func ShouldRedactPath(path string, patterns []string) bool {
	if path == "" || len(patterns) == 0 {
		return false
	}
	path = filepath.ToSlash(path)
	if gitctx.MatchesAny(path, patterns) {
		return true
	}
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if strings.Contains(pattern, "/") {
			continue
		}
		if matched, err := filepath.Match(pattern, base); err == nil && matched {
			return true
		}
	}
	return false
}
