package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Descriptor is the model-facing view of an operation.
type Descriptor struct {
	Name        string            `json:"name"`
	Qualifier   string            `json:"class"`
	Description string            `json:"description"`
	Parameters  []ParamDescriptor `json:"parameters"`
}

// ParamDescriptor is the model-facing view of a parameter.
type ParamDescriptor struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Required    bool     `json:"required"`
	Values      []string `json:"values,omitempty"`
}

type entry struct {
	qualifier string
	op        Operation
}

// Registry is the catalog of host operations exposed to the model. It is
// safe for concurrent use; Discover takes the write lock and everything
// else reads.
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
	entries   []entry
	byName    map[string][]entry
	log       *zap.Logger
}

// NewRegistry creates a registry over providers. Call Discover before use.
func NewRegistry(logger *zap.Logger, providers ...Provider) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		providers: providers,
		byName:    make(map[string][]entry),
		log:       logger,
	}
}

// Register adds a provider. It takes effect on the next Discover.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
}

// Discover rebuilds the catalog from the registered providers. Calling it
// again without new providers produces the same catalog.
func (r *Registry) Discover() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var entries []entry
	seen := make(map[string]bool)
	for _, p := range r.providers {
		for _, op := range p.Operations() {
			if err := op.validate(); err != nil {
				return fmt.Errorf("provider %s: %w", p.Name(), err)
			}
			key := p.Name() + "." + op.Name
			if seen[key] {
				return fmt.Errorf("%w: %s", ErrDuplicateOperation, key)
			}
			seen[key] = true
			entries = append(entries, entry{qualifier: p.Name(), op: op})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].op.Name != entries[j].op.Name {
			return entries[i].op.Name < entries[j].op.Name
		}
		return entries[i].qualifier < entries[j].qualifier
	})

	byName := make(map[string][]entry, len(entries))
	for _, e := range entries {
		byName[e.op.Name] = append(byName[e.op.Name], e)
	}
	r.entries = entries
	r.byName = byName
	r.log.Debug("tool catalog built", zap.Int("operations", len(entries)))
	return nil
}

// Available returns descriptors for operations whose availability
// predicate holds for tc, in stable order.
func (r *Registry) Available(tc *Context) []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Descriptor
	for _, e := range r.entries {
		if !isAvailable(e.op, tc) {
			continue
		}
		d := Descriptor{Name: e.op.Name, Qualifier: e.qualifier, Description: e.op.Description}
		for _, p := range e.op.Params {
			d.Parameters = append(d.Parameters, ParamDescriptor{
				Name:        p.Name,
				Type:        p.Kind.String(),
				Description: p.Description,
				Required:    p.Required,
				Values:      p.Values,
			})
		}
		out = append(out, d)
	}
	return out
}

// DescribeAvailable renders the available operations as prompt text.
func (r *Registry) DescribeAvailable(tc *Context) string {
	descs := r.Available(tc)
	if len(descs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Available Tools:\n\n")
	for _, d := range descs {
		fmt.Fprintf(&b, "  Method: %s\n", d.Name)
		if d.Description != "" {
			fmt.Fprintf(&b, "    Description: %s\n", d.Description)
		}
		if len(d.Parameters) > 0 {
			b.WriteString("    Parameters:\n")
			for _, p := range d.Parameters {
				typ := p.Type
				if len(p.Values) > 0 {
					typ += ": " + strings.Join(p.Values, "|")
				}
				if !p.Required {
					typ += ", optional"
				}
				fmt.Fprintf(&b, "      - %s (%s): %s\n", p.Name, typ, p.Description)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// DescribeJSON renders the available operations as indented JSON.
func (r *Registry) DescribeJSON(tc *Context) (string, error) {
	data, err := json.MarshalIndent(r.Available(tc), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling tool catalog: %w", err)
	}
	return string(data), nil
}

// Invoke runs the operation named by call. Failures come back as *Error;
// a panicking body is reported as ErrInvocationFailed.
func (r *Registry) Invoke(ctx context.Context, tc *Context, call Call) (result string, err error) {
	start := time.Now()
	e, err := r.resolve(tc, call)
	if err != nil {
		r.log.Warn("tool resolution failed", zap.String("tool", call.Tool), zap.Error(err))
		return "", err
	}

	args, err := bind(e.op, call.Parameters)
	if err != nil {
		r.log.Warn("tool arguments rejected", zap.String("tool", call.Tool), zap.Error(err))
		return "", err
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = newError(ErrInvocationFailed, e.op.Name, "", fmt.Errorf("panic: %v", rec))
			r.log.Error("tool panicked", zap.String("tool", e.op.Name), zap.Any("panic", rec))
		}
	}()

	result, err = e.op.Invoke(ctx, tc, args)
	if err != nil {
		r.log.Warn("tool failed", zap.String("tool", e.op.Name), zap.Error(err))
		return "", newError(ErrInvocationFailed, e.op.Name, "", err)
	}
	r.log.Info("tool invoked",
		zap.String("tool", e.op.Name),
		zap.String("class", e.qualifier),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("resultBytes", len(result)))
	return result, nil
}

func (r *Registry) resolve(tc *Context, call Call) (entry, error) {
	r.mu.RLock()
	matches := r.byName[call.Tool]
	r.mu.RUnlock()

	if q, ok := call.Parameters[QualifierParam]; ok {
		qualifier := fmt.Sprint(q)
		var narrowed []entry
		for _, e := range matches {
			if e.qualifier == qualifier {
				narrowed = append(narrowed, e)
			}
		}
		matches = narrowed
	}

	var usable []entry
	for _, e := range matches {
		if isAvailable(e.op, tc) {
			usable = append(usable, e)
		}
	}

	switch len(usable) {
	case 0:
		return entry{}, newError(ErrToolNotFound, call.Tool, "", nil)
	case 1:
		return usable[0], nil
	default:
		classes := make([]string, len(usable))
		for i, e := range usable {
			classes[i] = e.qualifier
		}
		return entry{}, newError(ErrToolAmbiguous, call.Tool, "",
			fmt.Errorf("pass %s as one of %s", QualifierParam, strings.Join(classes, ", ")))
	}
}

func bind(op Operation, params map[string]any) (Args, error) {
	args := make(Args, len(op.Params))
	for _, p := range op.Params {
		v, ok := params[p.Name]
		if !ok || v == nil {
			if p.Required {
				return nil, newError(ErrMissingParameter, op.Name, p.Name, nil)
			}
			if p.Default == nil {
				continue
			}
			v = p.Default
		}
		coerced, err := coerce(p, v)
		if err != nil {
			return nil, newError(ErrInvalidParameter, op.Name, p.Name, err)
		}
		args[p.Name] = coerced
	}
	return args, nil
}

func isAvailable(op Operation, tc *Context) bool {
	if op.Available == nil {
		return true
	}
	if tc == nil {
		tc = &Context{}
	}
	return op.Available(tc)
}
