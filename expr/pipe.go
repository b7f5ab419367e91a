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

package expr

import (
	"fmt"

	"github.com/convtools-go/convtools/core"
)

// pipeExpr is `A.pipe(B, label_input?, label_output?)`: B's
// `this` is bound to A's result; labelInput cells are written just before B
// is entered, labelOutput cells are written (against B's result) just
// after B returns.
type pipeExpr struct {
	base
	a, b        core.Expression
	labelInput  map[string]core.Expression
	labelOutput map[string]core.Expression
}

// Pipe builds the pipe/label combinator described above.
func Pipe(a, b core.Expression, labelInput, labelOutput map[string]core.Expression) core.Expression {
	privateNames := map[string]struct{}{}
	for name := range labelInput {
		if _, public := labelOutput[name]; !public {
			privateNames[name] = struct{}{}
		}
	}

	aDeps := a.Deps()
	bDeps := b.Deps()

	reads := core.DepSet{Type: aDeps.Type | bDeps.Type}
	for n := range aDeps.Labels {
		reads = core.WithLabel(reads, n)
	}
	for n := range bDeps.Labels {
		if _, private := privateNames[n]; private {
			continue // resolved by this pipe's own label_input, invisible outside
		}
		reads = core.WithLabel(reads, n)
	}
	for n := range aDeps.LabelWrites {
		reads = core.WithLabelWrite(reads, n)
	}
	for n := range bDeps.LabelWrites {
		if _, private := privateNames[n]; private {
			continue
		}
		reads = core.WithLabelWrite(reads, n)
	}
	for name, e := range labelInput {
		d := e.Deps()
		for n := range d.Labels {
			reads = core.WithLabel(reads, n)
		}
		if _, public := labelOutput[name]; public {
			reads = core.WithLabelWrite(reads, name)
		}
	}
	for name, e := range labelOutput {
		d := e.Deps()
		for n := range d.Labels {
			reads = core.WithLabel(reads, n)
		}
		reads = core.WithLabelWrite(reads, name)
	}

	children := []core.Expression{a, b}
	for _, e := range labelInput {
		children = append(children, e)
	}
	for _, e := range labelOutput {
		children = append(children, e)
	}
	bNode := newBase(0, children...)
	bNode.deps = reads

	return &pipeExpr{base: bNode, a: a, b: b, labelInput: labelInput, labelOutput: labelOutput}
}

func (e *pipeExpr) Eval(rt *core.Runtime) (core.Value, error) {
	av, err := e.a.Eval(rt)
	if err != nil {
		return nil, err
	}
	inner := rt.Child(av)
	for name, le := range e.labelInput {
		v, err := le.Eval(inner)
		if err != nil {
			return nil, err
		}
		inner.SetLabel(name, v)
	}
	bv, err := e.b.Eval(inner)
	if err != nil {
		return nil, err
	}
	if len(e.labelOutput) > 0 {
		outRT := inner.Child(bv)
		for name, le := range e.labelOutput {
			v, err := le.Eval(outRT)
			if err != nil {
				return nil, err
			}
			rt.SetLabel(name, v)
		}
	}
	return bv, nil
}

func (e *pipeExpr) String() string { return fmt.Sprintf("%s.pipe(%s)", e.a.String(), e.b.String()) }

// AddLabel is sugar for `Pipe(this, this, {name: e}, {name: Label(name)})`:
// evaluate e and write it under name, passing `this` through unchanged.
// Because the label is re-written through label_output, it is not private:
// the node reports it as a label write, so later stages in the same outer
// scope can read it.
func AddLabel(name string, e core.Expression) core.Expression {
	return Pipe(This(), This(), map[string]core.Expression{name: e}, map[string]core.Expression{name: Label(name)})
}
