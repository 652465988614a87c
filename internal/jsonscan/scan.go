package jsonscan

import "strings"

// Candidate is a syntactically balanced JSON array or object found in text.
type Candidate struct {
	// Text is the normalized value. A bare object is wrapped as a
	// one-element array.
	Text string
	// Raw is the span as it appeared in the input.
	Raw string
	// Start and End are byte offsets of Raw in the input; End is exclusive.
	Start int
	End   int
	// Wrapped reports whether Text was produced by wrapping a bare object.
	Wrapped bool
}

// FirstComplete returns the earliest complete top-level value in s.
// ok is false when s does not yet contain one; that is not an error.
func FirstComplete(s string) (c Candidate, ok bool) {
	scan(s, 0, func(found Candidate) bool {
		c, ok = found, true
		return false
	})
	return c, ok
}

// AllComplete returns every sequential complete top-level value in s.
func AllComplete(s string) []Candidate {
	var out []Candidate
	scan(s, 0, func(found Candidate) bool {
		out = append(out, found)
		return true
	})
	return out
}

// LargestComplete returns the longest balanced span starting at any
// opening bracket in s. It is meant for recovery when the sequential scan
// comes up empty, for example when an outer array was cut off but its
// elements are intact.
func LargestComplete(s string) (best Candidate, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] != '[' && s[i] != '{' {
			continue
		}
		scan(s, i, func(found Candidate) bool {
			if !ok || len(found.Raw) > len(best.Raw) {
				best, ok = found, true
			}
			return false
		})
	}
	return best, ok
}

// scan walks s from offset, calling yield for each complete value until
// yield returns false. Square and curly depths are tracked separately and
// never go below zero. Strings are tracked from offset on, so brackets
// quoted in leading prose never start a value.
func scan(s string, offset int, yield func(Candidate) bool) {
	var (
		square, curly int
		inString      bool
		escaped       bool
		start         = -1
		wrap          bool
	)
	for i := offset; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
			continue
		case '[':
			if start < 0 {
				start, wrap = i, false
			}
			square++
			continue
		case '{':
			if start < 0 {
				start, wrap = i, true
			}
			curly++
			continue
		case ']':
			if square == 0 {
				continue
			}
			square--
		case '}':
			if curly == 0 {
				continue
			}
			curly--
		default:
			continue
		}
		if start < 0 || square != 0 || curly != 0 {
			continue
		}
		raw := trimTrailingNoise(s[start : i+1])
		c := Candidate{Raw: raw, Text: raw, Start: start, End: start + len(raw), Wrapped: wrap}
		if wrap {
			c.Text = "[" + raw + "]"
		}
		if !yield(c) {
			return
		}
		start = -1
	}
}

// trimTrailingNoise keeps the longest prefix of s that ends in a closing
// bracket.
func trimTrailingNoise(s string) string {
	if i := strings.LastIndexAny(s, "]}"); i >= 0 {
		return s[:i+1]
	}
	return s
}

// TrimLeading drops the separators models tend to emit between values.
func TrimLeading(s string) string {
	return strings.TrimLeft(s, ",\n\r\t ")
}
