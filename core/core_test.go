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

package core

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type constExpr struct {
	v     Value
	calls *int
}

func (c constExpr) Eval(rt *Runtime) (Value, error) {
	if c.calls != nil {
		*c.calls++
	}
	return c.v, nil
}
func (c constExpr) Deps() DepSet          { return Leaf(Const) }
func (c constExpr) Children() []Expression { return nil }
func (c constExpr) String() string         { return "const" }

func TestRuntimeMemoEvaluatesOnce(t *testing.T) {
	require := require.New(t)
	calls := 0
	e := constExpr{v: 42, calls: &calls}
	rt := NewRuntime(context.Background(), nil, nil, nil, nil)

	v1, err := rt.Memo(e)
	require.NoError(err)
	v2, err := rt.Memo(e)
	require.NoError(err)

	require.Equal(42, v1)
	require.Equal(42, v2)
	require.Equal(1, calls)
}

func TestMintIsWordUnique(t *testing.T) {
	c := NewContext(nil)
	a := c.Mint("tmp")
	b := c.Mint("tmp")
	require.NotEqual(t, a, b)
	// b must never be formed by merging into a as a pure substring
	// continuation (e.g. "tmp_x_1" + "0" == "tmp_x_10" colliding with
	// "tmp_x_1"); our separator guarantees whole-token uniqueness.
	require.False(t, strings.HasPrefix(b, a))
}

func TestCaptureDedupesComparableValues(t *testing.T) {
	c := NewContext(nil)
	i1 := c.Capture(7)
	i2 := c.Capture(7)
	i3 := c.Capture(8)
	require.Equal(t, i1, i2)
	require.NotEqual(t, i1, i3)
	require.Equal(t, []Value{7, 8}, c.Naive())
}

func TestCaptureNeverDedupesUncomparableValues(t *testing.T) {
	c := NewContext(nil)
	s := []int{1, 2, 3}
	i1 := c.Capture(s)
	i2 := c.Capture(s)
	require.NotEqual(t, i1, i2)
}

func TestLabelWriteBeforeRead(t *testing.T) {
	c := NewContext(nil)
	c.RegisterLabelRead("x")
	_, err := c.CheckLabels()
	require.True(t, ErrLabelNotWritten.Is(err))

	c2 := NewContext(nil)
	c2.RegisterLabelWrite("x")
	c2.RegisterLabelRead("x")
	unused, err := c2.CheckLabels()
	require.NoError(t, err)
	require.Empty(t, unused)
}

func TestUnusedLabelIsNotFatal(t *testing.T) {
	c := NewContext(nil)
	c.RegisterLabelWrite("y")
	unused, err := c.CheckLabels()
	require.NoError(t, err)
	require.Equal(t, []string{"y"}, unused)
}

func TestOptionsMergeOverridesOnlyNonZero(t *testing.T) {
	base := DefaultOptions()
	merged := base.Merge(&Options{Debug: true})
	require.True(t, merged.Debug)
	require.Equal(t, base.Signature, merged.Signature)
}

func TestOptionsCtxRestoresOnPanic(t *testing.T) {
	c := NewContext(nil)
	before := c.CurrentOptions()

	func() {
		defer func() { _ = recover() }()
		_ = OptionsCtxWith(c, &Options{Debug: true}, func(o *Options) error {
			require.True(t, o.Debug)
			panic("boom")
		})
	}()

	require.Equal(t, before, c.CurrentOptions())
}

func TestCanInline(t *testing.T) {
	pure := Leaf(Const)
	require.True(t, CanInline(pure, 5))

	sideEffect := Leaf(SideEffect)
	require.False(t, CanInline(sideEffect, 1))

	plain := Leaf(UsesInput)
	require.True(t, CanInline(plain, 1))
	require.False(t, CanInline(plain, 2))
}
