package conversion

import (
	"context"
	"fmt"

	celgo "github.com/google/cel-go/cel"

	"capibridge/pkg/cel"
)

// Filter decides whether an order should be acknowledged without forwarding.
// The zero value and a nil *Filter skip nothing.
type Filter struct {
	expression string
	program    celgo.Program
}

// NewFilter compiles expression. An empty expression yields a filter that never skips.
func NewFilter(expression string) (*Filter, error) {
	if expression == "" {
		return &Filter{}, nil
	}

	eval, err := cel.NewEvaluator()
	if err != nil {
		return nil, err
	}

	program, err := eval.CompileFilter(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid skip expression: %w", err)
	}

	return &Filter{expression: expression, program: program}, nil
}

func (f *Filter) Enabled() bool {
	return f != nil && f.program != nil
}

func (f *Filter) Expression() string {
	if f == nil {
		return ""
	}
	return f.expression
}

// Skip evaluates the expression against the raw order body.
func (f *Filter) Skip(ctx context.Context, order InboundOrder) (bool, error) {
	if !f.Enabled() {
		return false, nil
	}
	return cel.EvaluateFilter(ctx, f.program, order.Raw)
}
