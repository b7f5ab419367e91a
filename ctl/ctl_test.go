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

package ctl_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/convtools-go/convtools/core"
	"github.com/convtools-go/convtools/ctl"
	"github.com/convtools-go/convtools/expr"
)

func newRT(this core.Value) *core.Runtime {
	return core.NewRuntime(context.Background(), this, nil, nil, nil)
}

func TestIfBranches(t *testing.T) {
	e := ctl.If(expr.Compare(expr.Gt, expr.This(), expr.Naive(0)), expr.Naive("pos"), expr.Naive("nonpos"))
	v, err := e.Eval(newRT(5))
	require.NoError(t, err)
	require.Equal(t, "pos", v)

	v, err = e.Eval(newRT(-5))
	require.NoError(t, err)
	require.Equal(t, "nonpos", v)
}

func TestIfMultipleFallsThroughToElse(t *testing.T) {
	e := ctl.IfMultiple([]ctl.Case{
		{Cond: expr.Compare(expr.Eq, expr.This(), expr.Naive(1)), Result: expr.Naive("one")},
		{Cond: expr.Compare(expr.Eq, expr.This(), expr.Naive(2)), Result: expr.Naive("two")},
	}, expr.Naive("other"))

	v, err := e.Eval(newRT(2))
	require.NoError(t, err)
	require.Equal(t, "two", v)

	v, err = e.Eval(newRT(99))
	require.NoError(t, err)
	require.Equal(t, "other", v)
}

func TestDispatchMissingKeyWithoutDefaultErrors(t *testing.T) {
	e := ctl.Dispatch(expr.This(), map[core.Value]core.Expression{
		"a": expr.Naive(1),
	}, nil)
	_, err := e.Eval(newRT("b"))
	require.Error(t, err)
}

func TestExpectFailure(t *testing.T) {
	e := ctl.Expect(expr.Compare(expr.Gt, expr.This(), expr.Naive(0)), "must be positive")
	_, err := e.Eval(newRT(-1))
	require.Error(t, err)
	require.True(t, core.ErrExpectFailed.Is(err))
}

type boomExpr struct{ err error }

func (b boomExpr) Eval(*core.Runtime) (core.Value, error) { return nil, b.err }
func (b boomExpr) Deps() core.DepSet                       { return core.DepSet{} }
func (b boomExpr) Children() []core.Expression              { return nil }
func (b boomExpr) String() string                           { return "boom" }

func TestTryExceptReRaiseIf(t *testing.T) {
	sentinel := fmt.Errorf("boom")
	body := boomExpr{err: sentinel}
	e := ctl.Try(body, []ctl.ExceptClause{
		{
			Matches:   ctl.AnyMatcher(),
			ReRaiseIf: expr.Compare(expr.Lt, expr.This(), expr.Naive(0)),
			Handler:   expr.Naive("recovered"),
		},
	})

	_, err := e.Eval(newRT(-1))
	require.ErrorIs(t, err, sentinel)

	v, err := e.Eval(newRT(1))
	require.NoError(t, err)
	require.Equal(t, "recovered", v)
}

func TestTryExceptUnmatchedPropagates(t *testing.T) {
	sentinel := fmt.Errorf("boom")
	body := boomExpr{err: sentinel}
	e := ctl.Try(body, []ctl.ExceptClause{
		{Matches: func(error) bool { return false }, Handler: expr.Naive("unused")},
	})
	_, err := e.Eval(newRT(nil))
	require.Error(t, err)
}

// TestTryExceptDispatchesByRuntimeErrorKind mirrors
// try_(item(0)/item(1)).except_(ZeroDivisionError, ...).except_(TypeError, ...):
// the body raises a real runtime error (not a synthetic boomExpr), and the
// first ExceptClause whose Kind matches wins, leaving later clauses unused.
func TestTryExceptDispatchesByRuntimeErrorKind(t *testing.T) {
	body := expr.BinOp(expr.Div, expr.Item(expr.This(), []core.Expression{expr.Naive(0)}, nil),
		expr.Item(expr.This(), []core.Expression{expr.Naive(1)}, nil))
	e := ctl.Try(body, []ctl.ExceptClause{
		{Matches: ctl.KindMatcher(core.ErrZeroDivision), Handler: expr.Naive("div-by-zero")},
		{Matches: ctl.KindMatcher(core.ErrTypeError), Handler: expr.Naive("bad-type")},
	})

	v, err := e.Eval(newRT([]core.Value{10, 0}))
	require.NoError(t, err)
	require.Equal(t, "div-by-zero", v)

	v, err = e.Eval(newRT([]core.Value{10, "x"}))
	require.NoError(t, err)
	require.Equal(t, "bad-type", v)

	v, err = e.Eval(newRT([]core.Value{10, 5}))
	require.NoError(t, err)
	require.Equal(t, 2.0, v)
}
