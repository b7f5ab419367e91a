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

func TestListHonorsSkipIfAndKeepIf(t *testing.T) {
	e := expr.List(
		expr.Optional(expr.Naive(1)),
		expr.Optional(expr.Naive(2)).WithSkipIf(expr.Naive(true)),
		expr.Optional(expr.Naive(3)).WithKeepIf(expr.Naive(false)),
		expr.Optional(expr.Naive(4)),
	)
	v, err := e.Eval(core.NewRuntime(context.Background(), nil, nil, nil, nil))
	require.NoError(t, err)
	require.Equal(t, []core.Value{1, 4}, v)
}

func TestListSkipValueDropsMatchingElement(t *testing.T) {
	e := expr.List(
		expr.Optional(expr.Naive(1)),
		expr.Optional(expr.Naive(-1)).WithSkipValue(expr.Naive(-1)),
		expr.Optional(expr.Naive(2)),
	)
	v, err := e.Eval(core.NewRuntime(context.Background(), nil, nil, nil, nil))
	require.NoError(t, err)
	require.Equal(t, []core.Value{1, 2}, v)
}

func TestSetDeduplicatesAndHonorsSkipIf(t *testing.T) {
	e := expr.Set(
		expr.Optional(expr.Naive(1)),
		expr.Optional(expr.Naive(1)),
		expr.Optional(expr.Naive(2)).WithSkipIf(expr.Naive(true)),
	)
	v, err := e.Eval(core.NewRuntime(context.Background(), nil, nil, nil, nil))
	require.NoError(t, err)
	set := v.(map[core.Value]struct{})
	require.Len(t, set, 1)
	_, ok := set[1]
	require.True(t, ok)
}

func TestDictSpreadMergesAnotherMapping(t *testing.T) {
	base := map[core.Value]core.Value{"a": 1, "b": 2}
	e := expr.Dict(
		expr.DictPair{Spread: expr.Naive(base)},
		expr.DictPair{Key: expr.Naive("c"), Val: expr.Optional(expr.Naive(3))},
	)
	v, err := e.Eval(core.NewRuntime(context.Background(), nil, nil, nil, nil))
	require.NoError(t, err)
	out := v.(map[core.Value]core.Value)
	require.Equal(t, map[core.Value]core.Value{"a": 1, "b": 2, "c": 3}, out)
}
