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

func drainRows(t *testing.T, v core.Value) []core.Value {
	t.Helper()
	it, err := core.Iterate(v)
	require.NoError(t, err)
	rows, err := core.Drain(it)
	require.NoError(t, err)
	return rows
}

func TestZipStopsAtShortestSource(t *testing.T) {
	a := []core.Value{1, 2, 3}
	b := []core.Value{"a", "b"}
	e := expr.Zip(expr.Naive(a), expr.Naive(b))

	v, err := e.Eval(core.NewRuntime(context.Background(), nil, nil, nil, nil))
	require.NoError(t, err)
	rows := drainRows(t, v)
	require.Equal(t, []core.Value{
		[]core.Value{1, "a"},
		[]core.Value{2, "b"},
	}, rows)
}

func TestZipLongestFillsExhaustedSources(t *testing.T) {
	a := []core.Value{1, 2, 3}
	b := []core.Value{"a", "b"}
	e := expr.ZipLongest(nil, expr.Naive(a), expr.Naive(b))

	v, err := e.Eval(core.NewRuntime(context.Background(), nil, nil, nil, nil))
	require.NoError(t, err)
	rows := drainRows(t, v)
	require.Equal(t, []core.Value{
		[]core.Value{1, "a"},
		[]core.Value{2, "b"},
		[]core.Value{3, nil},
	}, rows)
}

func TestRepeatBoundedByTimes(t *testing.T) {
	e := expr.Repeat(expr.Naive("x"), expr.Naive(3))
	v, err := e.Eval(core.NewRuntime(context.Background(), nil, nil, nil, nil))
	require.NoError(t, err)
	rows := drainRows(t, v)
	require.Equal(t, []core.Value{"x", "x", "x"}, rows)
}

func TestFlattenOneLevel(t *testing.T) {
	nested := []core.Value{
		[]core.Value{1, 2},
		[]core.Value{3},
		[]core.Value{},
		[]core.Value{4, 5},
	}
	e := expr.Flatten(expr.Naive(nested))
	v, err := e.Eval(core.NewRuntime(context.Background(), nil, nil, nil, nil))
	require.NoError(t, err)
	rows := drainRows(t, v)
	require.Equal(t, []core.Value{1, 2, 3, 4, 5}, rows)
}
