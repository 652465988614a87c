package tools

import (
	"context"
	"fmt"
)

// Kind is the declared type of an operation parameter.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindEnum
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "integer"
	case KindFloat:
		return "number"
	case KindBool:
		return "boolean"
	case KindEnum:
		return "enum"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Param declares one named parameter of an operation.
type Param struct {
	Name        string
	Description string
	Kind        Kind
	// Values lists the accepted names for KindEnum.
	Values []string
	// Required parameters must be supplied. Optional ones fall back to
	// Default when absent.
	Required bool
	Default  any
}

// Availability reports whether an operation can run against tc.
type Availability func(tc *Context) bool

// Handler is the body of an operation. Args have already been coerced to
// their declared kinds.
type Handler func(ctx context.Context, tc *Context, args Args) (string, error)

// Operation is one host-callable tool.
type Operation struct {
	Name        string
	Description string
	Params      []Param
	// Available may be nil, meaning always available.
	Available Availability
	Invoke    Handler
}

func (op Operation) validate() error {
	if op.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidOperation)
	}
	if op.Invoke == nil {
		return fmt.Errorf("%w: %s has no handler", ErrInvalidOperation, op.Name)
	}
	seen := make(map[string]bool, len(op.Params))
	for _, p := range op.Params {
		if p.Name == "" {
			return fmt.Errorf("%w: %s has an unnamed parameter", ErrInvalidOperation, op.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: %s declares %s twice", ErrInvalidOperation, op.Name, p.Name)
		}
		seen[p.Name] = true
		if p.Kind == KindEnum && len(p.Values) == 0 {
			return fmt.Errorf("%w: %s.%s is an enum without values", ErrInvalidOperation, op.Name, p.Name)
		}
	}
	return nil
}

// Provider groups related operations under a qualifier name. The qualifier
// lets a caller pick between providers that expose the same operation name.
type Provider interface {
	Name() string
	Operations() []Operation
}

// ProviderFunc adapts a static operation list into a Provider.
type ProviderFunc struct {
	Qualifier string
	Ops       func() []Operation
}

func (p ProviderFunc) Name() string            { return p.Qualifier }
func (p ProviderFunc) Operations() []Operation { return p.Ops() }

// VectorSearcher is the semantic search backend exposed to tools.
type VectorSearcher interface {
	IsIndexed() bool
	Search(ctx context.Context, query string, k int) ([]string, error)
}

// Context is the shared state operations run against.
type Context struct {
	RepositoryPath string
	Vector         VectorSearcher
}

// Args holds coerced parameter values keyed by name.
type Args map[string]any

// String returns the named argument or "".
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Int returns the named argument or 0.
func (a Args) Int(name string) int {
	n, _ := a[name].(int)
	return n
}

// Float returns the named argument or 0.
func (a Args) Float(name string) float64 {
	f, _ := a[name].(float64)
	return f
}

// Bool returns the named argument or false.
func (a Args) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}
