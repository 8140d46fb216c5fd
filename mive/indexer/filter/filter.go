// Package filter provides an optional go-bexpr boolean-expression predicate
// over indexer.Action, for chain sources that want to narrow which actions
// even reach updater/effect dispatch (e.g. "Type == transfer"). The indexer
// core itself never filters; this lives alongside it as a ChainSource-side
// convenience, same spirit as the teacher's own use of go-bexpr for small
// boolean predicates over structs.
package filter

import (
	"fmt"

	"github.com/hashicorp/go-bexpr"

	"github.com/ethereum-mive/mive/mive/indexer"
)

// matchable is the reflection-visible shape go-bexpr evaluates expressions
// against.
type matchable struct {
	Type string `bexpr:"Type"`
}

// ActionFilter selects actions matching a boolean expression over Action
// fields, e.g. `Type == "transfer"` or `Type == "mint" or Type == "burn"`.
type ActionFilter struct {
	expression string
	eval       *bexpr.Evaluator
}

// New compiles expression into an ActionFilter.
func New(expression string) (*ActionFilter, error) {
	eval, err := bexpr.CreateEvaluator(expression)
	if err != nil {
		return nil, fmt.Errorf("indexer/filter: invalid expression %q: %w", expression, err)
	}
	return &ActionFilter{expression: expression, eval: eval}, nil
}

// Match reports whether action satisfies the filter expression.
func (f *ActionFilter) Match(action indexer.Action) (bool, error) {
	ok, err := f.eval.Evaluate(matchable{Type: action.Type})
	if err != nil {
		return false, fmt.Errorf("indexer/filter: evaluating %q against action %q: %w", f.expression, action.Type, err)
	}
	return ok, nil
}

// Apply returns the subset of actions matching the filter, preserving order.
func (f *ActionFilter) Apply(actions []indexer.Action) ([]indexer.Action, error) {
	out := make([]indexer.Action, 0, len(actions))
	for _, a := range actions {
		ok, err := f.Match(a)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, a)
		}
	}
	return out, nil
}
