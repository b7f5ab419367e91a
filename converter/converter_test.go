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

package converter_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/convtools-go/convtools/converter"
	"github.com/convtools-go/convtools/core"
	"github.com/convtools-go/convtools/expr"
)

func TestExecuteRunsRootAgainstInput(t *testing.T) {
	root := expr.Attr(expr.This(), []string{"Name"}, nil)
	type person struct{ Name string }

	v, err := converter.Execute(context.Background(), root, person{Name: "ada"}, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "ada", v)
}

func TestGenConverterRejectsLabelReadBeforeWrite(t *testing.T) {
	root := expr.Label("missing")
	_, _, err := converter.GenConverter(root, nil)
	require.Error(t, err)
	require.True(t, core.ErrLabelNotWritten.Is(err))
}

func TestGenConverterReportsUnusedLabel(t *testing.T) {
	root := expr.Pipe(
		expr.This(), expr.This(),
		map[string]core.Expression{"x": expr.Naive(1)},
		map[string]core.Expression{"x": expr.Naive(99)},
	)
	_, unused, err := converter.GenConverter(root, nil)
	require.NoError(t, err)
	require.Contains(t, unused, "x")
}

func TestConverterCallReusesCompiledTree(t *testing.T) {
	root := expr.Attr(expr.This(), []string{"Name"}, nil)
	type person struct{ Name string }

	conv, _, err := converter.GenConverter(root, nil)
	require.NoError(t, err)

	v1, err := conv.Call(context.Background(), person{Name: "ada"}, nil)
	require.NoError(t, err)
	require.Equal(t, "ada", v1)

	v2, err := conv.Call(context.Background(), person{Name: "grace"}, nil)
	require.NoError(t, err)
	require.Equal(t, "grace", v2)
}

func TestDebugSidecarWritesDumpFile(t *testing.T) {
	dir := t.TempDir()
	opts := core.DefaultOptions()
	opts.Debug = true
	opts.DebugDir = dir

	root := expr.Naive(42)
	_, _, err := converter.GenConverter(root, opts)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	require.True(t, filepath.Ext(entries[0].Name()) == ".debug")
}
