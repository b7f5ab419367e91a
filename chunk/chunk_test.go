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

package chunk_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/convtools-go/convtools/chunk"
	"github.com/convtools-go/convtools/core"
	"github.com/convtools-go/convtools/expr"
)

func drain(t *testing.T, v core.Value) []core.Value {
	t.Helper()
	it, err := core.Iterate(v)
	require.NoError(t, err)
	rows, err := core.Drain(it)
	require.NoError(t, err)
	return rows
}

func TestChunkByKeySplitsOnKeyChange(t *testing.T) {
	rows := []core.Value{
		[2]int{0, 0}, [2]int{0, 0}, [2]int{0, 1}, [2]int{1, 1}, [2]int{1, 1},
	}
	// The key is the whole pair, so (0,0) -> (0,1) is a key change.
	key := expr.This()
	e := chunk.ChunkByKey(expr.Naive(rows), key, 0)

	rt := core.NewRuntime(context.Background(), nil, nil, nil, nil)
	v, err := e.Eval(rt)
	require.NoError(t, err)
	chunks := drain(t, v)
	require.Len(t, chunks, 3)
	require.Equal(t, []core.Value{[2]int{0, 0}, [2]int{0, 0}}, chunks[0])
	require.Equal(t, []core.Value{[2]int{0, 1}}, chunks[1])
	require.Equal(t, []core.Value{[2]int{1, 1}, [2]int{1, 1}}, chunks[2])
}

func TestChunkByKeyRespectsMaxSize(t *testing.T) {
	rows := []core.Value{1, 1, 1, 1, 1}
	e := chunk.ChunkByKey(expr.Naive(rows), expr.This(), 2)
	rt := core.NewRuntime(context.Background(), nil, nil, nil, nil)
	v, err := e.Eval(rt)
	require.NoError(t, err)
	chunks := drain(t, v)
	require.Len(t, chunks, 3)
	require.Len(t, chunks[0], 2)
	require.Len(t, chunks[1], 2)
	require.Len(t, chunks[2], 1)
}

func TestChunkByConditionUsesPrevCur(t *testing.T) {
	rows := []core.Value{1, 2, 3, 10, 11, 20}
	diff := expr.BinOp(expr.Sub, chunk.CurOf(), chunk.PrevOf())
	cond := expr.Compare(expr.Le, diff, expr.Naive(2))
	e := chunk.ChunkByCondition(expr.Naive(rows), cond)

	rt := core.NewRuntime(context.Background(), nil, nil, nil, nil)
	v, err := e.Eval(rt)
	require.NoError(t, err)
	chunks := drain(t, v)
	require.Equal(t, [][]core.Value{
		{1, 2, 3}, {10, 11}, {20},
	}, toSlices(chunks))
}

func TestIterWindowsSlidesByStep(t *testing.T) {
	rows := []core.Value{1, 2, 3, 4, 5}
	e := chunk.IterWindows(expr.Naive(rows), 3, 1, false)
	rt := core.NewRuntime(context.Background(), nil, nil, nil, nil)
	v, err := e.Eval(rt)
	require.NoError(t, err)
	windows := drain(t, v)
	require.Equal(t, [][]core.Value{
		{1}, {1, 2}, {1, 2, 3}, {2, 3, 4}, {3, 4, 5}, {4, 5}, {5},
	}, toSlices(windows))
}

func TestIterWindowsExactDropsPartialWindows(t *testing.T) {
	rows := []core.Value{1, 2, 3, 4, 5}
	e := chunk.IterWindows(expr.Naive(rows), 3, 1, true)
	rt := core.NewRuntime(context.Background(), nil, nil, nil, nil)
	v, err := e.Eval(rt)
	require.NoError(t, err)
	windows := drain(t, v)
	require.Equal(t, [][]core.Value{
		{1, 2, 3}, {2, 3, 4}, {3, 4, 5},
	}, toSlices(windows))
}

func toSlices(rows []core.Value) [][]core.Value {
	out := make([][]core.Value, len(rows))
	for i, r := range rows {
		out[i] = r.([]core.Value)
	}
	return out
}

func firstLetterKey() core.Expression {
	firstLetter := expr.Func(func(args []core.Value, kwargs map[string]core.Value) (core.Value, error) {
		s := args[0].(string)
		return s[:1], nil
	})
	return expr.Call(firstLetter, []core.Expression{expr.This()}, nil)
}

// TestUnorderedChunkByEvictsLRUDownToTargetPortion traces the exact eviction
// schedule: pushing a2 (a's second item) tips total buffered items to 3 against
// a cap of 2, so the memory hit evicts LRU groups (b, then a) down to the
// 50%-of-cap target of 1 item, flushing both in one hit; the same happens
// again once d1 tips the second cycle.
func TestUnorderedChunkByEvictsLRUDownToTargetPortion(t *testing.T) {
	rows := []core.Value{"a1", "b1", "a2", "c1", "b2", "d1"}
	e := chunk.UnorderedChunkBy(expr.Naive(rows), firstLetterKey(), 0, 2, 0.5)
	rt := core.NewRuntime(context.Background(), nil, nil, nil, nil)
	v, err := e.Eval(rt)
	require.NoError(t, err)
	chunks := drain(t, v)
	require.Equal(t, [][]core.Value{
		{"b1"},
		{"a1", "a2"},
		{"c1"},
		{"b2"},
		{"d1"},
	}, toSlices(chunks))
}

// TestUnorderedChunkByRespectsSize confirms a group is flushed as soon as it
// reaches size items, independent of any memory cap.
func TestUnorderedChunkByRespectsSize(t *testing.T) {
	rows := []core.Value{"x1", "x2", "x3", "x4"}
	e := chunk.UnorderedChunkBy(expr.Naive(rows), firstLetterKey(), 2, 0, 0)
	rt := core.NewRuntime(context.Background(), nil, nil, nil, nil)
	v, err := e.Eval(rt)
	require.NoError(t, err)
	chunks := drain(t, v)
	require.Equal(t, [][]core.Value{
		{"x1", "x2"},
		{"x3", "x4"},
	}, toSlices(chunks))
}
