package tools

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSearcher struct{ indexed bool }

func (s stubSearcher) IsIndexed() bool { return s.indexed }
func (s stubSearcher) Search(ctx context.Context, query string, k int) ([]string, error) {
	return []string{query}, nil
}

func searchProvider() Provider {
	return ProviderFunc{Qualifier: "Search", Ops: func() []Operation {
		return []Operation{{
			Name:        "search",
			Description: "Search the repository.",
			Params: []Param{
				{Name: "query", Kind: KindString, Required: true, Description: "What to look for."},
				{Name: "limit", Kind: KindInt, Default: 3},
			},
			Invoke: func(ctx context.Context, tc *Context, args Args) (string, error) {
				return "found " + args.String("query") + " x" + strings.Repeat("!", args.Int("limit")), nil
			},
		}}
	}}
}

func kitchenSinkProvider() Provider {
	return ProviderFunc{Qualifier: "Sink", Ops: func() []Operation {
		return []Operation{
			{
				Name: "configure",
				Params: []Param{
					{Name: "ratio", Kind: KindFloat, Required: true},
					{Name: "verbose", Kind: KindBool, Default: false},
					{Name: "mode", Kind: KindEnum, Values: []string{"Fast", "Thorough"}, Default: "Fast"},
				},
				Invoke: func(ctx context.Context, tc *Context, args Args) (string, error) {
					return strings.Join([]string{
						args.String("mode"),
						strconv.FormatFloat(args.Float("ratio"), 'f', -1, 64),
						boolWord(args.Bool("verbose")),
					}, ","), nil
				},
			},
			{
				Name: "explode",
				Invoke: func(ctx context.Context, tc *Context, args Args) (string, error) {
					panic("kaboom")
				},
			},
			{
				Name: "fail",
				Invoke: func(ctx context.Context, tc *Context, args Args) (string, error) {
					return "", errors.New("disk on fire")
				},
			},
			{
				Name:      "vector",
				Available: func(tc *Context) bool { return tc.Vector != nil && tc.Vector.IsIndexed() },
				Invoke: func(ctx context.Context, tc *Context, args Args) (string, error) {
					return "vector ok", nil
				},
			},
		}
	}}
}

func boolWord(b bool) string {
	if b {
		return "verbose"
	}
	return "quiet"
}

func newTestRegistry(t *testing.T, providers ...Provider) *Registry {
	t.Helper()
	r := NewRegistry(nil, providers...)
	require.NoError(t, r.Discover())
	return r
}

func TestInvoke_ReturnsDeclaredResult(t *testing.T) {
	r := newTestRegistry(t, searchProvider())

	got, err := r.Invoke(context.Background(), &Context{}, Call{
		Tool:       "search",
		Parameters: map[string]any{"query": "main"},
	})
	require.NoError(t, err)
	assert.Equal(t, "found main x!!!", got)
}

func TestInvoke_Errors(t *testing.T) {
	r := newTestRegistry(t, searchProvider(), kitchenSinkProvider())

	tests := []struct {
		name  string
		call  Call
		kind  error
		param string
	}{
		{name: "unknown tool", call: Call{Tool: "doesNotExist"}, kind: ErrToolNotFound},
		{name: "case sensitive name", call: Call{Tool: "Search", Parameters: map[string]any{"query": "x"}}, kind: ErrToolNotFound},
		{name: "missing required", call: Call{Tool: "search", Parameters: map[string]any{}}, kind: ErrMissingParameter, param: "query"},
		{name: "null required", call: Call{Tool: "search", Parameters: map[string]any{"query": nil}}, kind: ErrMissingParameter, param: "query"},
		{name: "object for string", call: Call{Tool: "search", Parameters: map[string]any{"query": map[string]any{"a": 1.0}}}, kind: ErrInvalidParameter, param: "query"},
		{name: "fraction for int", call: Call{Tool: "search", Parameters: map[string]any{"query": "x", "limit": 2.5}}, kind: ErrInvalidParameter, param: "limit"},
		{name: "int too large", call: Call{Tool: "search", Parameters: map[string]any{"query": "x", "limit": 1e20}}, kind: ErrInvalidParameter, param: "limit"},
		{name: "int too small", call: Call{Tool: "search", Parameters: map[string]any{"query": "x", "limit": -1e19}}, kind: ErrInvalidParameter, param: "limit"},
		{name: "word for float", call: Call{Tool: "configure", Parameters: map[string]any{"ratio": "lots"}}, kind: ErrInvalidParameter, param: "ratio"},
		{name: "bad enum", call: Call{Tool: "configure", Parameters: map[string]any{"ratio": 1.0, "mode": "sloppy"}}, kind: ErrInvalidParameter, param: "mode"},
		{name: "bad bool", call: Call{Tool: "configure", Parameters: map[string]any{"ratio": 1.0, "verbose": "maybe"}}, kind: ErrInvalidParameter, param: "verbose"},
		{name: "body error", call: Call{Tool: "fail"}, kind: ErrInvocationFailed},
		{name: "body panic", call: Call{Tool: "explode"}, kind: ErrInvocationFailed},
		{name: "unavailable", call: Call{Tool: "vector"}, kind: ErrToolNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Invoke(context.Background(), &Context{}, tt.call)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)

			var terr *Error
			require.ErrorAs(t, err, &terr)
			assert.Equal(t, tt.param, terr.Param)
			assert.NotEmpty(t, err.Error())
		})
	}
}

func TestInvoke_CoercesKinds(t *testing.T) {
	r := newTestRegistry(t, searchProvider(), kitchenSinkProvider())

	tests := []struct {
		name   string
		params map[string]any
		want   string
	}{
		{name: "defaults", params: map[string]any{"ratio": 0.5}, want: "Fast,0.5,quiet"},
		{name: "string numbers and bools", params: map[string]any{"ratio": " 2.25 ", "verbose": "true"}, want: "Fast,2.25,verbose"},
		{name: "enum ignores case", params: map[string]any{"ratio": 1.0, "mode": "thorough"}, want: "Thorough,1,quiet"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Invoke(context.Background(), nil, Call{Tool: "configure", Parameters: tt.params})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	got, err := r.Invoke(context.Background(), nil, Call{Tool: "search", Parameters: map[string]any{"query": "q", "limit": "1"}})
	require.NoError(t, err)
	assert.Equal(t, "found q x!", got)
}

func TestInvoke_AmbiguousAndQualifier(t *testing.T) {
	other := ProviderFunc{Qualifier: "Other", Ops: func() []Operation {
		return []Operation{{
			Name:   "search",
			Params: []Param{{Name: "query", Kind: KindString, Required: true}},
			Invoke: func(ctx context.Context, tc *Context, args Args) (string, error) {
				return "other " + args.String("query"), nil
			},
		}}
	}}
	r := newTestRegistry(t, searchProvider(), other)

	_, err := r.Invoke(context.Background(), nil, Call{Tool: "search", Parameters: map[string]any{"query": "a"}})
	require.ErrorIs(t, err, ErrToolAmbiguous)

	got, err := r.Invoke(context.Background(), nil, Call{Tool: "search", Parameters: map[string]any{"query": "a", QualifierParam: "Other"}})
	require.NoError(t, err)
	assert.Equal(t, "other a", got)

	_, err = r.Invoke(context.Background(), nil, Call{Tool: "search", Parameters: map[string]any{"query": "a", QualifierParam: "Nope"}})
	require.ErrorIs(t, err, ErrToolNotFound)
}

func TestDiscover_Idempotent(t *testing.T) {
	r := NewRegistry(nil, kitchenSinkProvider(), searchProvider())
	require.NoError(t, r.Discover())
	tc := &Context{Vector: stubSearcher{indexed: true}}
	once := r.Available(tc)
	text := r.DescribeAvailable(tc)

	require.NoError(t, r.Discover())
	if diff := cmp.Diff(once, r.Available(tc)); diff != "" {
		t.Errorf("catalog changed after second Discover (-first +second):\n%s", diff)
	}
	assert.Equal(t, text, r.DescribeAvailable(tc))
}

func TestDiscover_RejectsBadDefinitions(t *testing.T) {
	dup := ProviderFunc{Qualifier: "Dup", Ops: func() []Operation {
		op := Operation{Name: "x", Invoke: func(context.Context, *Context, Args) (string, error) { return "", nil }}
		return []Operation{op, op}
	}}
	assert.ErrorIs(t, NewRegistry(nil, dup).Discover(), ErrDuplicateOperation)

	noHandler := ProviderFunc{Qualifier: "Bad", Ops: func() []Operation { return []Operation{{Name: "x"}} }}
	assert.ErrorIs(t, NewRegistry(nil, noHandler).Discover(), ErrInvalidOperation)

	emptyEnum := ProviderFunc{Qualifier: "Bad", Ops: func() []Operation {
		return []Operation{{
			Name:   "x",
			Params: []Param{{Name: "m", Kind: KindEnum}},
			Invoke: func(context.Context, *Context, Args) (string, error) { return "", nil },
		}}
	}}
	assert.ErrorIs(t, NewRegistry(nil, emptyEnum).Discover(), ErrInvalidOperation)
}

func TestDescribeAvailable_FiltersByAvailability(t *testing.T) {
	r := newTestRegistry(t, kitchenSinkProvider(), searchProvider())

	without := r.DescribeAvailable(&Context{})
	assert.NotContains(t, without, "Method: vector")
	assert.Contains(t, without, "Method: search")
	assert.Contains(t, without, "      - query (string): What to look for.")
	assert.Contains(t, without, "      - mode (enum: Fast|Thorough, optional): ")

	with := r.DescribeAvailable(&Context{Vector: stubSearcher{indexed: true}})
	assert.Contains(t, with, "Method: vector")

	// Stable alphabetical order.
	names := []string{}
	for _, d := range r.Available(&Context{Vector: stubSearcher{indexed: true}}) {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"configure", "explode", "fail", "search", "vector"}, names)

	js, err := r.DescribeJSON(&Context{})
	require.NoError(t, err)
	assert.Contains(t, js, `"name": "search"`)

	assert.Empty(t, NewRegistry(nil).DescribeAvailable(nil))
}

func TestRegistry_ConcurrentInvoke(t *testing.T) {
	r := newTestRegistry(t, searchProvider())
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Invoke(context.Background(), nil, Call{Tool: "search", Parameters: map[string]any{"query": "q"}})
			assert.NoError(t, err)
			_ = r.DescribeAvailable(nil)
		}()
	}
	wg.Wait()
}
