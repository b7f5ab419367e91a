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

// Package join implements the hash-join compiler: it splits a join
// condition into its equality terms (used to build an index over the
// right-hand side, once per evaluation) and a residual predicate (checked per candidate pair),
// then drives inner/left/right/outer/cross execution over the result.
package join

import (
	"fmt"

	"github.com/convtools-go/convtools/core"
	"github.com/convtools-go/convtools/expr"
)

// Strategy selects the join's output shape.
type Strategy int

const (
	Inner Strategy = iota
	Left
	Right
	Outer
	Cross
)

// EqTerm is one equality term of a join condition: a LEFT-referencing key
// expression and a RIGHT-referencing one, each evaluated against a Pair
// that has only its own side populated (see LeftInput/RightInput) — the
// same scope the full condition runs in, just with the other side absent
// while the index is built/probed.
type EqTerm struct {
	Left, Right core.Expression
}

// joinExpr is `c.join(left, right, condition, how=...)`. Join splits the
// condition with SplitPredicate into its equality terms (eqTerms) and any
// remaining residual predicate (evaluated with `this` bound to a
// Pair{Left, Right} — see LeftInput/RightInput).
type joinExpr struct {
	deps     core.DepSet
	left     core.Expression
	right    core.Expression
	eqTerms  []EqTerm
	residual core.Expression // nil means no residual check beyond equality
	strategy Strategy
}

// Pair is the `this` bound to the condition/output expressions of a join:
// the matched (or null, for an outer unmatched side) left and right rows.
type Pair struct {
	Left, Right core.Value
	HasLeft     bool
	HasRight    bool
}

// sideExpr reads Pair.Left or Pair.Right off `this`.
type sideExpr struct{ wantLeft bool }

// LeftInput is `c.LEFT`: reads the left row out of the current join Pair.
func LeftInput() core.Expression { return sideExpr{wantLeft: true} }

// RightInput is `c.RIGHT`: reads the right row out of the current join Pair.
func RightInput() core.Expression { return sideExpr{wantLeft: false} }

func (s sideExpr) Eval(rt *core.Runtime) (core.Value, error) {
	p, ok := rt.This.(Pair)
	if !ok {
		return nil, fmt.Errorf("LEFT/RIGHT referenced outside a join's condition/output scope")
	}
	if s.wantLeft {
		return p.Left, nil
	}
	return p.Right, nil
}

func (s sideExpr) Deps() core.DepSet            { return core.Leaf(core.UsesInput) }
func (s sideExpr) Children() []core.Expression { return nil }
func (s sideExpr) String() string {
	if s.wantLeft {
		return "c.LEFT"
	}
	return "c.RIGHT"
}

// Join builds `c.join(left, right, cond, how=strategy)`: cond is run
// through SplitPredicate to pull out its hash-equality terms and residual
// predicate before the node is built. cond is nil for Cross (no condition
// at all, every left/right combination is produced). A cond yielding no
// equality terms still builds correctly: the index degenerates to one
// bucket holding every right row, which is exactly a nested-loop probe
// re-checking the residual against every candidate pair.
func Join(left, right core.Expression, cond core.Expression, strategy Strategy) core.Expression {
	var eqTerms []EqTerm
	var residual core.Expression
	if cond != nil {
		eqTerms, residual = SplitPredicate(cond)
	}
	return newJoin(left, right, eqTerms, residual, strategy)
}

// SplitPredicate performs the join-condition analysis: flatten cond's
// top-level conjunction into its conjuncts, pull out every conjunct that
// is an equality comparison with one side referencing only LEFT and the
// other referencing only RIGHT (these drive the hash index), and AND the
// rest back together as the residual predicate checked per candidate
// pair. A conjunct is left in the residual whenever it isn't an equality,
// or its sides don't cleanly separate by join side (e.g. it touches both,
// or touches neither). No qualifying equality conjunct at all yields a
// nil eqTerms, which Join still evaluates correctly as a nested loop.
func SplitPredicate(cond core.Expression) (eqTerms []EqTerm, residual core.Expression) {
	if cond == nil {
		return nil, nil
	}
	var conjuncts []core.Expression
	var flatten func(core.Expression)
	flatten = func(e core.Expression) {
		if l, r, ok := expr.IsAnd(e); ok {
			flatten(l)
			flatten(r)
			return
		}
		conjuncts = append(conjuncts, e)
	}
	flatten(cond)

	var residuals []core.Expression
	for _, c := range conjuncts {
		l, r, ok := expr.IsEquality(c)
		if !ok {
			residuals = append(residuals, c)
			continue
		}
		lu, ru := usageOf(l), usageOf(r)
		switch {
		case lu.left && !lu.right && ru.right && !ru.left:
			eqTerms = append(eqTerms, EqTerm{Left: l, Right: r})
		case lu.right && !lu.left && ru.left && !ru.right:
			eqTerms = append(eqTerms, EqTerm{Left: r, Right: l})
		default:
			residuals = append(residuals, c)
		}
	}

	return eqTerms, foldAnd(residuals)
}

// sideUsage reports which of LEFT/RIGHT a predicate subexpression touches,
// walking its children to find every sideExpr leaf.
type sideUsage struct{ left, right bool }

func usageOf(e core.Expression) sideUsage {
	var u sideUsage
	seen := map[core.Expression]bool{}
	var walk func(core.Expression)
	walk = func(n core.Expression) {
		if n == nil || seen[n] {
			return
		}
		seen[n] = true
		if s, ok := n.(sideExpr); ok {
			if s.wantLeft {
				u.left = true
			} else {
				u.right = true
			}
			return
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(e)
	return u
}

func foldAnd(conjuncts []core.Expression) core.Expression {
	if len(conjuncts) == 0 {
		return nil
	}
	out := conjuncts[0]
	for _, c := range conjuncts[1:] {
		out = expr.And(out, c)
	}
	return out
}

func newJoin(left, right core.Expression, eqTerms []EqTerm, residual core.Expression, strategy Strategy) core.Expression {
	children := []core.Expression{left, right}
	for _, t := range eqTerms {
		children = append(children, t.Left, t.Right)
	}
	if residual != nil {
		children = append(children, residual)
	}
	deps := make([]core.DepSet, len(children))
	for i, c := range children {
		deps[i] = c.Deps()
	}
	d := core.Merge(core.Expensive, deps...)
	return &joinExpr{deps: d, left: left, right: right, eqTerms: eqTerms, residual: residual, strategy: strategy}
}

func (e *joinExpr) Deps() core.DepSet { return e.deps }
func (e *joinExpr) Children() []core.Expression {
	out := []core.Expression{e.left, e.right}
	for _, t := range e.eqTerms {
		out = append(out, t.Left, t.Right)
	}
	if e.residual != nil {
		out = append(out, e.residual)
	}
	return out
}
func (e *joinExpr) String() string { return "c.join(...)" }
