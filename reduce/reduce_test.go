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

package reduce_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/convtools-go/convtools/core"
	"github.com/convtools-go/convtools/expr"
	"github.com/convtools-go/convtools/reduce"
)

func foldOver(t *testing.T, r reduce.Reducer, rows []core.Value) core.Value {
	t.Helper()
	buf := r.NewBuffer()
	var rt *core.Runtime
	for _, row := range rows {
		rt = core.NewRuntime(context.Background(), row, nil, nil, nil)
		var err error
		buf, err = r.Update(buf, rt)
		require.NoError(t, err)
	}
	if rt == nil {
		rt = core.NewRuntime(context.Background(), nil, nil, nil, nil)
	}
	v, err := r.Finalize(buf, rt)
	require.NoError(t, err)
	return v
}

func TestSumAndAverage(t *testing.T) {
	rows := []core.Value{1, 2, 3, 4}
	sum := reduce.Sum(expr.This(), nil, nil)
	require.Equal(t, float64(10), foldOver(t, sum, rows))

	avg := reduce.Average(expr.This(), nil, nil)
	require.Equal(t, float64(2.5), foldOver(t, avg, rows))
}

func TestSumEmptyGroupDefault(t *testing.T) {
	sum := reduce.Sum(expr.This(), nil, expr.Naive(float64(-1)))
	require.Equal(t, float64(-1), foldOver(t, sum, nil))

	sumOrNone := reduce.SumOrNone(expr.This(), nil, nil)
	require.Nil(t, foldOver(t, sumOrNone, nil))
}

func TestMaxMinRow(t *testing.T) {
	rows := []core.Value{3, 1, 4, 1, 5}
	mx := reduce.Max(expr.This(), nil, nil, reduce.DefaultCompare)
	require.Equal(t, 5, foldOver(t, mx, rows))

	mxRow := reduce.MaxRow(expr.This(), nil, nil, reduce.DefaultCompare)
	require.Equal(t, 5, foldOver(t, mxRow, rows))

	mn := reduce.Min(expr.This(), nil, nil, reduce.DefaultCompare)
	require.Equal(t, 1, foldOver(t, mn, rows))
}

func TestCountDistinct(t *testing.T) {
	rows := []core.Value{1, 2, 2, 3, 3, 3}
	require.Equal(t, 6, foldOver(t, reduce.Count(nil, nil), rows))
	require.Equal(t, 3, foldOver(t, reduce.CountDistinct(expr.This(), nil), rows))
}

func TestFirstLast(t *testing.T) {
	rows := []core.Value{10, 20, 30}
	require.Equal(t, 10, foldOver(t, reduce.First(expr.This(), nil, nil), rows))
	require.Equal(t, 30, foldOver(t, reduce.Last(expr.This(), nil, nil), rows))
}

func TestArrayDistinctAndSorted(t *testing.T) {
	rows := []core.Value{3, 1, 2, 1}
	require.Equal(t, []core.Value{3, 1, 2, 1}, foldOver(t, reduce.Array(expr.This(), nil), rows))
	require.Equal(t, []core.Value{3, 1, 2}, foldOver(t, reduce.ArrayDistinct(expr.This(), nil), rows))
	require.Equal(t, []core.Value{1, 1, 2, 3}, foldOver(t, reduce.ArraySorted(expr.This(), nil, false, reduce.DefaultCompare), rows))
}

func TestMedianAndMode(t *testing.T) {
	rows := []core.Value{1, 2, 3, 4}
	require.Equal(t, 2.5, foldOver(t, reduce.Median(expr.This(), nil), rows))

	modeRows := []core.Value{1, 2, 2, 3}
	require.Equal(t, 2, foldOver(t, reduce.Mode(expr.This(), nil), modeRows))
}

func TestModeBreaksTiesByLastHighestFrequencyValue(t *testing.T) {
	rows := []core.Value{1, 2, 2, 3, 3}
	require.Equal(t, 3, foldOver(t, reduce.Mode(expr.This(), nil), rows))
}

func TestWhereGuardSkipsRows(t *testing.T) {
	rows := []core.Value{1, 2, 3, 4, 5}
	guard := expr.Compare(expr.Gt, expr.This(), expr.Naive(2))
	sum := reduce.Sum(expr.This(), guard, nil)
	require.Equal(t, float64(12), foldOver(t, sum, rows))
}

func TestNestedReducerPanics(t *testing.T) {
	inner := reduce.Sum(expr.This(), nil, nil)
	require.Panics(t, func() {
		reduce.Sum(inner, nil, nil)
	})
}

func TestDictSum(t *testing.T) {
	type kv struct {
		K string
		V int
	}
	rows := []core.Value{kv{"a", 1}, kv{"b", 2}, kv{"a", 3}}
	key := expr.Attr(expr.This(), []string{"K"}, nil)
	val := expr.Attr(expr.This(), []string{"V"}, nil)
	d := reduce.DictReduce(key, val, nil, reduce.DictSum)

	buf := d.NewBuffer()
	var rt *core.Runtime
	for _, row := range rows {
		rt = core.NewRuntime(context.Background(), row, nil, nil, nil)
		var err error
		buf, err = d.Update(buf, rt)
		require.NoError(t, err)
	}
	out, err := d.Finalize(buf, rt)
	require.NoError(t, err)
	m := out.(map[core.Value]core.Value)
	require.Equal(t, float64(4), m["a"])
	require.Equal(t, float64(2), m["b"])
}
