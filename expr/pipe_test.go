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

func TestPipeRebindsThisAndLabelOutputIsVisibleOutside(t *testing.T) {
	doubled := expr.BinOp(expr.Mul, expr.This(), expr.Naive(int64(2)))
	e := expr.Pipe(doubled, expr.This(),
		map[string]core.Expression{"inner": expr.This()},
		map[string]core.Expression{"inner": expr.Label("inner")},
	)

	rt := core.NewRuntime(context.Background(), int64(21), nil, nil, nil)
	v, err := e.Eval(rt)
	require.NoError(t, err)
	require.Equal(t, int64(42), v)

	outerRead, ok := rt.GetLabel("inner")
	require.True(t, ok)
	require.Equal(t, int64(42), outerRead)
}

// TestPipePrivateLabelDoesNotLeakIntoDeps confirms a label written inside a
// pipe's labelInput but never promoted via labelOutput is absent from the
// outer node's Deps().Labels/LabelWrites — the static signal GenConverter's
// dependency analyzer relies on to keep an inner scope's labels invisible
// outside it.
func TestPipePrivateLabelDoesNotLeakIntoDeps(t *testing.T) {
	e := expr.Pipe(expr.This(), expr.BinOp(expr.Add, expr.Label("private"), expr.Naive(int64(1))),
		map[string]core.Expression{"private": expr.This()},
		nil,
	)

	deps := e.Deps()
	_, readLeaked := deps.Labels["private"]
	_, writeLeaked := deps.LabelWrites["private"]
	require.False(t, readLeaked)
	require.False(t, writeLeaked)
}

func TestAddLabelPassesThisThroughUnchanged(t *testing.T) {
	e := expr.AddLabel("x", expr.BinOp(expr.Mul, expr.This(), expr.Naive(int64(10))))
	rt := core.NewRuntime(context.Background(), int64(3), nil, nil, nil)
	v, err := e.Eval(rt)
	require.NoError(t, err)
	require.Equal(t, int64(3), v)
}
