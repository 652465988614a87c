package tools

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"
)

// coerce converts a decoded JSON value to the parameter's declared kind.
func coerce(p Param, v any) (any, error) {
	switch p.Kind {
	case KindString:
		switch v.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return cast.ToStringE(v)
	case KindInt:
		if f, ok := v.(float64); ok {
			if f != math.Trunc(f) {
				return nil, fmt.Errorf("expected integer, got %v", f)
			}
			// float64(math.MaxInt) rounds up to 2^63, itself out of range.
			if f >= math.MaxInt || f < math.MinInt {
				return nil, fmt.Errorf("integer %v out of range", f)
			}
		}
		if s, ok := v.(string); ok {
			v = strings.TrimSpace(s)
		}
		return cast.ToIntE(v)
	case KindFloat:
		if s, ok := v.(string); ok {
			v = strings.TrimSpace(s)
		}
		return cast.ToFloat64E(v)
	case KindBool:
		return cast.ToBoolE(v)
	case KindEnum:
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, err
		}
		for _, name := range p.Values {
			if strings.EqualFold(name, strings.TrimSpace(s)) {
				return name, nil
			}
		}
		return nil, fmt.Errorf("%q is not one of %s", s, strings.Join(p.Values, ", "))
	default:
		return nil, fmt.Errorf("unsupported parameter kind %s", p.Kind)
	}
}
