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

package join_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/convtools-go/convtools/core"
	"github.com/convtools-go/convtools/expr"
	"github.com/convtools-go/convtools/join"
)

type user struct {
	ID   int
	Name string
}

type order struct {
	UserID int
	Item   string
	Qty    int
}

func drainPairs(t *testing.T, v core.Value) []join.Pair {
	t.Helper()
	it, err := core.Iterate(v)
	require.NoError(t, err)
	rows, err := core.Drain(it)
	require.NoError(t, err)
	out := make([]join.Pair, len(rows))
	for i, r := range rows {
		out[i] = r.(join.Pair)
	}
	return out
}

func userOrderCond() core.Expression {
	leftID := expr.Attr(join.LeftInput(), []string{"ID"}, nil)
	rightUserID := expr.Attr(join.RightInput(), []string{"UserID"}, nil)
	return expr.Compare(expr.Eq, leftID, rightUserID)
}

func TestLeftJoinWithUnmatchedLeftRow(t *testing.T) {
	users := []core.Value{user{1, "alice"}, user{2, "bob"}}
	orders := []core.Value{order{UserID: 1, Item: "widget"}}

	left := expr.Naive(users)
	right := expr.Naive(orders)

	j := join.Join(left, right, userOrderCond(), join.Left)

	rt := core.NewRuntime(context.Background(), nil, nil, nil, nil)
	v, err := j.Eval(rt)
	require.NoError(t, err)

	pairs := drainPairs(t, v)
	require.Len(t, pairs, 2)

	var sawBobUnmatched bool
	for _, p := range pairs {
		if p.Left.(user).Name == "bob" {
			require.False(t, p.HasRight)
			sawBobUnmatched = true
		}
		if p.Left.(user).Name == "alice" {
			require.True(t, p.HasRight)
			require.Equal(t, "widget", p.Right.(order).Item)
		}
	}
	require.True(t, sawBobUnmatched)
}

func TestInnerJoinDropsUnmatched(t *testing.T) {
	users := []core.Value{user{1, "alice"}, user{2, "bob"}}
	orders := []core.Value{order{UserID: 1, Item: "widget"}}

	j := join.Join(expr.Naive(users), expr.Naive(orders), userOrderCond(), join.Inner)
	rt := core.NewRuntime(context.Background(), nil, nil, nil, nil)
	v, err := j.Eval(rt)
	require.NoError(t, err)
	pairs := drainPairs(t, v)
	require.Len(t, pairs, 1)
	require.Equal(t, "alice", pairs[0].Left.(user).Name)
}

func TestCrossJoin(t *testing.T) {
	left := []core.Value{1, 2}
	right := []core.Value{"a", "b", "c"}
	j := join.Join(expr.Naive(left), expr.Naive(right), nil, join.Cross)
	rt := core.NewRuntime(context.Background(), nil, nil, nil, nil)
	v, err := j.Eval(rt)
	require.NoError(t, err)
	pairs := drainPairs(t, v)
	require.Len(t, pairs, 6)
}

// TestSplitPredicateExtractsEqTermAndResidual builds a compound AND
// condition (a hash-equality conjunct plus a residual range check) and
// confirms SplitPredicate separates them, and that Join honors both: the
// equality term drives which candidates are even considered, the residual
// then filters among them.
func TestSplitPredicateExtractsEqTermAndResidual(t *testing.T) {
	eqConjunct := userOrderCond()
	qtyFloor := expr.Compare(expr.Ge, expr.Attr(join.RightInput(), []string{"Qty"}, nil), expr.Naive(2))
	cond := expr.And(eqConjunct, qtyFloor)

	eqTerms, residual := join.SplitPredicate(cond)
	require.Len(t, eqTerms, 1)
	require.NotNil(t, residual)

	users := []core.Value{user{1, "alice"}}
	orders := []core.Value{
		order{UserID: 1, Item: "small", Qty: 1},
		order{UserID: 1, Item: "big", Qty: 5},
	}

	j := join.Join(expr.Naive(users), expr.Naive(orders), cond, join.Inner)
	rt := core.NewRuntime(context.Background(), nil, nil, nil, nil)
	v, err := j.Eval(rt)
	require.NoError(t, err)
	pairs := drainPairs(t, v)
	require.Len(t, pairs, 1)
	require.Equal(t, "big", pairs[0].Right.(order).Item)
}

// TestJoinFallsBackToNestedLoopWithoutEqualityTerm exercises a condition
// with no usable equality conjunct (a pure inequality): SplitPredicate
// reports zero eqTerms, and Join must still produce the correct result by
// degrading to a full nested-loop scan.
func TestJoinFallsBackToNestedLoopWithoutEqualityTerm(t *testing.T) {
	cond := expr.Compare(expr.Lt, join.LeftInput(), join.RightInput())

	eqTerms, residual := join.SplitPredicate(cond)
	require.Empty(t, eqTerms)
	require.NotNil(t, residual)

	left := []core.Value{1, 5}
	right := []core.Value{2, 3}
	j := join.Join(expr.Naive(left), expr.Naive(right), cond, join.Inner)
	rt := core.NewRuntime(context.Background(), nil, nil, nil, nil)
	v, err := j.Eval(rt)
	require.NoError(t, err)
	pairs := drainPairs(t, v)
	require.Len(t, pairs, 2)
	for _, p := range pairs {
		require.Equal(t, 1, p.Left)
	}
}
