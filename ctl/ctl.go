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

// Package ctl implements the control-flow combinators: conditional
// branching (if_/if_multiple), table dispatch, exception handling
// (try_/except_/expect), all built as ordinary core.Expression nodes so
// they compose with the rest of the algebra with no special casing.
package ctl

import (
	"fmt"

	"github.com/convtools-go/convtools/core"
	"github.com/convtools-go/convtools/expr"
)

func truthy(v core.Value) bool { return expr.Truthy(v) }

// ifExpr is `c.if_(cond, if_true, if_false)`: evaluates exactly one branch,
// the way a short-circuiting ternary does.
type ifExpr struct {
	base
	cond, ifTrue, ifFalse core.Expression
}

// If builds the two-armed conditional. ifFalse may be nil, in which case
// the node passes `this` through unchanged when cond is falsy.
func If(cond, ifTrue, ifFalse core.Expression) core.Expression {
	children := []core.Expression{cond, ifTrue}
	if ifFalse != nil {
		children = append(children, ifFalse)
	}
	return &ifExpr{base: newBase(0, children...), cond: cond, ifTrue: ifTrue, ifFalse: ifFalse}
}

func (e *ifExpr) Eval(rt *core.Runtime) (core.Value, error) {
	cv, err := e.cond.Eval(rt)
	if err != nil {
		return nil, err
	}
	if truthy(cv) {
		return e.ifTrue.Eval(rt)
	}
	if e.ifFalse != nil {
		return e.ifFalse.Eval(rt)
	}
	return rt.This, nil
}

func (e *ifExpr) String() string { return "c.if_(...)" }

// Case is one (condition, result) arm of IfMultiple.
type Case struct {
	Cond, Result core.Expression
}

// ifMultipleExpr is `c.if_multiple(*cases, else_=...)`: evaluates each
// case's condition in order, returning the first matching arm's result;
// falls back to elseResult (default `this`) if none match.
type ifMultipleExpr struct {
	base
	cases      []Case
	elseResult core.Expression
}

// IfMultiple builds the ordered multi-armed conditional. elseResult may be
// nil, defaulting to passing `this` through unchanged.
func IfMultiple(cases []Case, elseResult core.Expression) core.Expression {
	children := make([]core.Expression, 0, len(cases)*2+1)
	for _, c := range cases {
		children = append(children, c.Cond, c.Result)
	}
	if elseResult != nil {
		children = append(children, elseResult)
	}
	return &ifMultipleExpr{base: newBase(0, children...), cases: cases, elseResult: elseResult}
}

func (e *ifMultipleExpr) Eval(rt *core.Runtime) (core.Value, error) {
	for _, c := range e.cases {
		cv, err := c.Cond.Eval(rt)
		if err != nil {
			return nil, err
		}
		if truthy(cv) {
			return c.Result.Eval(rt)
		}
	}
	if e.elseResult != nil {
		return e.elseResult.Eval(rt)
	}
	return rt.This, nil
}

func (e *ifMultipleExpr) String() string { return "c.if_multiple(...)" }

// dispatchExpr is `c.dispatch(key, mapping, default_=...)`: evaluates key,
// looks it up in a precompiled map of constant keys to result expressions,
// and falls back to defaultResult (or raises if none given and key misses).
type dispatchExpr struct {
	base
	key           core.Expression
	mapping       map[core.Value]core.Expression
	defaultResult core.Expression
}

// Dispatch builds the table-dispatch combinator.
func Dispatch(key core.Expression, mapping map[core.Value]core.Expression, defaultResult core.Expression) core.Expression {
	children := []core.Expression{key}
	for _, v := range mapping {
		children = append(children, v)
	}
	if defaultResult != nil {
		children = append(children, defaultResult)
	}
	return &dispatchExpr{base: newBase(0, children...), key: key, mapping: mapping, defaultResult: defaultResult}
}

func (e *dispatchExpr) Eval(rt *core.Runtime) (core.Value, error) {
	kv, err := e.key.Eval(rt)
	if err != nil {
		return nil, err
	}
	if result, ok := e.mapping[kv]; ok {
		return result.Eval(rt)
	}
	if e.defaultResult != nil {
		return e.defaultResult.Eval(rt)
	}
	return nil, fmt.Errorf("dispatch: no case for key %v and no default given", kv)
}

func (e *dispatchExpr) String() string { return "c.dispatch(...)" }

// Expect is `c.expect(condition, message)`: raises core.ErrExpectFailed if
// condition is falsy, otherwise passes `this` through unchanged.
func Expect(condition core.Expression, message string) core.Expression {
	return &expectExpr{base: newBase(0, condition), condition: condition, message: message}
}

type expectExpr struct {
	base
	condition core.Expression
	message   string
}

func (e *expectExpr) Eval(rt *core.Runtime) (core.Value, error) {
	cv, err := e.condition.Eval(rt)
	if err != nil {
		return nil, err
	}
	if !truthy(cv) {
		return nil, core.ErrExpectFailed.New(e.message)
	}
	return rt.This, nil
}

func (e *expectExpr) String() string { return fmt.Sprintf("c.expect(%q)", e.message) }
