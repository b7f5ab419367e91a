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

package agg_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/convtools-go/convtools/agg"
	"github.com/convtools-go/convtools/core"
	"github.com/convtools-go/convtools/expr"
	"github.com/convtools-go/convtools/reduce"
)

type order struct {
	Customer string
	Amount   int
}

func runAgg(t *testing.T, e core.Expression, rows []core.Value) core.Value {
	t.Helper()
	rt := core.NewRuntime(context.Background(), rows, nil, nil, nil)
	v, err := e.Eval(rt)
	require.NoError(t, err)
	return v
}

func TestGroupByFirstAndMax(t *testing.T) {
	rows := []core.Value{
		order{"alice", 10},
		order{"bob", 5},
		order{"alice", 40},
		order{"bob", 20},
		order{"alice", 15},
	}

	customer := expr.Attr(expr.This(), []string{"Customer"}, nil)
	amount := expr.Attr(expr.This(), []string{"Amount"}, nil)

	firstAmount := reduce.First(amount, nil, nil)
	maxAmount := reduce.Max(amount, nil, nil, reduce.DefaultCompare)

	output := expr.Dict(
		expr.DictPair{Key: expr.Naive("customer"), Val: expr.Optional(customer)},
		expr.DictPair{Key: expr.Naive("first_amount"), Val: expr.Optional(firstAmount)},
		expr.DictPair{Key: expr.Naive("max_amount"), Val: expr.Optional(maxAmount)},
	)

	groupBy, err := agg.GroupBy(expr.This(), []core.Expression{customer}, output)
	require.NoError(t, err)

	result := runAgg(t, groupBy, rows)
	groups := result.([]core.Value)
	require.Len(t, groups, 2)

	alice := groups[0].(map[core.Value]core.Value)
	require.Equal(t, "alice", alice["customer"])
	require.Equal(t, 10, alice["first_amount"])
	require.Equal(t, 40, alice["max_amount"])

	bob := groups[1].(map[core.Value]core.Value)
	require.Equal(t, "bob", bob["customer"])
	require.Equal(t, 5, bob["first_amount"])
	require.Equal(t, 20, bob["max_amount"])
}

func TestAggregateSingleGroup(t *testing.T) {
	rows := []core.Value{1, 2, 3, 4, 5}
	sum := reduce.Sum(expr.This(), nil, nil)
	out, err := agg.Aggregate(expr.This(), sum)
	require.NoError(t, err)
	require.Equal(t, float64(15), runAgg(t, out, rows))
}

func TestGroupByRejectsBareNonKeyValue(t *testing.T) {
	customer := expr.Attr(expr.This(), []string{"Customer"}, nil)
	amount := expr.Attr(expr.This(), []string{"Amount"}, nil)
	// amount is referenced bare (not wrapped in a reducer, not a group key).
	_, err := agg.GroupBy(expr.This(), []core.Expression{customer}, amount)
	require.Error(t, err)
	require.True(t, core.ErrGroupKeyMismatch.Is(err))
}

func TestAggregateEmptySourceUsesReducerDefault(t *testing.T) {
	sum := reduce.Sum(expr.This(), nil, expr.Naive(float64(-1)))
	out, err := agg.Aggregate(expr.This(), sum)
	require.NoError(t, err)
	require.Equal(t, float64(-1), runAgg(t, out, nil))
}
