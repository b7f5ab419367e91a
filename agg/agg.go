// Copyright 2024 The convtools-go Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package agg implements the aggregate/group_by compiler: a fill phase
// that streams the source once, folding every discovered reducer into a
// per-group buffer, and a hot phase that walks the finished groups in
// first-seen order, finalizing each reducer and evaluating the output
// expression against it.
package agg

import (
	"fmt"

	"github.com/convtools-go/convtools/core"
	"github.com/convtools-go/convtools/reduce"
)

// aggExpr is the shared implementation behind both Aggregate (no keys, one
// implicit group) and GroupBy (one or more keys, one group per distinct key
// tuple).
type aggExpr struct {
	deps     core.DepSet
	over     core.Expression
	keys     []core.Expression
	output   core.Expression
	reducers []reduce.Reducer
}

func (e *aggExpr) Deps() core.DepSet { return e.deps }

func (e *aggExpr) Children() []core.Expression {
	return append([]core.Expression{e.over, e.output}, e.keys...)
}

func (e *aggExpr) String() string {
	if len(e.keys) == 0 {
		return "c.aggregate(...)"
	}
	return "c.group_by(...).aggregate(...)"
}

// Aggregate builds `c.aggregate(output)`: runs output's reducers over
// every element of over as a single implicit group, returning output's
// result for that one group directly (not wrapped in a slice).
func Aggregate(over, output core.Expression) (core.Expression, error) {
	return newAgg(over, nil, output)
}

// GroupBy builds `c.group_by(*keys).aggregate(output)`: partitions over's
// elements by the tuple of keys (evaluated per element), and returns one
// output result per distinct key tuple, in first-seen order.
func GroupBy(over core.Expression, keys []core.Expression, output core.Expression) (core.Expression, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("group_by requires at least one key expression")
	}
	return newAgg(over, keys, output)
}

func newAgg(over core.Expression, keys []core.Expression, output core.Expression) (core.Expression, error) {
	reducers := collectReducers(output)
	if err := checkGroupKeys(output, keys); err != nil {
		return nil, err
	}
	children := append([]core.Expression{over, output}, keys...)
	deps := make([]core.DepSet, len(children))
	for i, c := range children {
		deps[i] = c.Deps()
	}
	d := core.Merge(core.Expensive, deps...)
	return &aggExpr{deps: d, over: over, keys: keys, output: output, reducers: reducers}, nil
}

// collectReducers walks e's subtree, collecting every node implementing
// reduce.Reducer. It does not descend into a reducer's own children: a
// reducer's arg/where/default are evaluated directly by its Update/Finalize,
// never by the surrounding output expression's ordinary Eval.
func collectReducers(e core.Expression) []reduce.Reducer {
	var out []reduce.Reducer
	var walk func(core.Expression)
	seen := map[core.Expression]bool{}
	walk = func(n core.Expression) {
		if n == nil || seen[n] {
			return
		}
		seen[n] = true
		if r, ok := n.(reduce.Reducer); ok {
			out = append(out, r)
			return
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(e)
	return out
}

// checkGroupKeys validates the "bare value in an aggregate must be a
// declared group-by key" rule: it walks output's subtree, skipping any
// subtree rooted at a reducer (a reducer's own input is exempt — that is
// the whole point of wrapping it in a reducer), and for every remaining
// node that both depends on the input row and has no child that itself
// depends on the input row (i.e. it is a minimal, "leaf" use of the row)
// requires that node to be reference-identical to one of keys.
func checkGroupKeys(output core.Expression, keys []core.Expression) error {
	keySet := map[core.Expression]bool{}
	for _, k := range keys {
		keySet[k] = true
	}
	var walk func(core.Expression) error
	seen := map[core.Expression]bool{}
	walk = func(n core.Expression) error {
		if n == nil || seen[n] {
			return nil
		}
		seen[n] = true
		if _, ok := n.(reduce.Reducer); ok {
			return nil
		}
		if keySet[n] {
			return nil
		}
		if !n.Deps().Type.Has(core.UsesInput) {
			return nil
		}
		children := n.Children()
		anyChildUsesInput := false
		for _, c := range children {
			if c != nil && c.Deps().Type.Has(core.UsesInput) {
				anyChildUsesInput = true
			}
		}
		if !anyChildUsesInput {
			return core.ErrGroupKeyMismatch.New(n.String())
		}
		for _, c := range children {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(output)
}
