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

package expr_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/convtools-go/convtools/core"
	"github.com/convtools-go/convtools/expr"
)

// TestCumulativeRunningSum drives a prefix-sum cumulative over [0,1,2,3,4]
// one element at a time, sharing a single Runtime's label table across the
// calls the way a stream operator would: the running total after each
// element is [0,1,3,6,10].
func TestCumulativeRunningSum(t *testing.T) {
	xs := []core.Value{int64(0), int64(1), int64(2), int64(3), int64(4)}
	sum := expr.Cumulative(expr.Naive(int64(0)), expr.BinOp(expr.Add, expr.Prev("acc"), expr.This()), "acc")

	rt := core.NewRuntime(context.Background(), nil, nil, nil, nil)
	var got []core.Value
	for _, x := range xs {
		v, err := sum.Eval(rt.Child(x))
		require.NoError(t, err)
		got = append(got, v)
	}
	require.Equal(t, []core.Value{int64(0), int64(1), int64(3), int64(6), int64(10)}, got)
}

func TestCumulativeResetRestartsFromInitial(t *testing.T) {
	sum := expr.Cumulative(expr.Naive(int64(0)), expr.BinOp(expr.Add, expr.Prev("acc"), expr.This()), "acc")
	rt := core.NewRuntime(context.Background(), nil, nil, nil, nil)

	v, err := sum.Eval(rt.Child(int64(5)))
	require.NoError(t, err)
	require.Equal(t, int64(0), v)
	v, err = sum.Eval(rt.Child(int64(5)))
	require.NoError(t, err)
	require.Equal(t, int64(5), v)

	reset := expr.CumulativeReset("acc", expr.Naive(nil))
	_, err = reset.Eval(rt.Child(nil))
	require.NoError(t, err)

	v, err = sum.Eval(rt.Child(int64(5)))
	require.NoError(t, err)
	require.Equal(t, int64(0), v)
}
