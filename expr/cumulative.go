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

// cumulativeExpr is `c.cumulative(initial, fold, label_name?)`: on the
// first element observed under label_name in this invocation, it is
// set to initial; on every later element, it is set to fold(label, this).
// Because labels are a flat, process-local cell table (see expr.Pipe), this
// falls out of ordinary label read/write semantics with no extra state: a
// stream operator repeatedly Eval-ing this node over successive elements of
// the SAME invocation naturally accumulates across calls.
type cumulativeExpr struct {
	base
	initial core.Expression
	fold    core.Expression // evaluated with `this` bound to the new element; PREV() reads the running value
	label   string
}

// prevLabelPrefix starts the label name Cumulative mints for its running
// value when the caller did not supply an explicit label_name;
// Prev(label) reads that label.
const prevLabelPrefix = "__cumulative_prev__"

// Cumulative builds the cumulative-fold combinator. If label is "", a
// per-node private label name is minted so independent cumulative nodes
// never collide.
func Cumulative(initial, fold core.Expression, label string) core.Expression {
	if label == "" {
		label = fmt.Sprintf("%s%p", prevLabelPrefix, fold)
	}
	d := core.WithLabelWrite(core.Merge(0, initial.Deps(), fold.Deps()), label)
	d = core.WithLabel(d, label)
	return &cumulativeExpr{base: base{deps: d, children: []core.Expression{initial, fold}}, initial: initial, fold: fold, label: label}
}

func (e *cumulativeExpr) Eval(rt *core.Runtime) (core.Value, error) {
	_, ok := rt.GetLabel(e.label)
	var next core.Value
	var err error
	if !ok {
		next, err = e.initial.Eval(rt)
	} else {
		// e.label still holds the previous value; c.PREV (Prev(e.label))
		// reads it before we overwrite it below.
		next, err = e.fold.Eval(rt)
	}
	if err != nil {
		return nil, err
	}
	rt.SetLabel(e.label, next)
	return next, nil
}

func (e *cumulativeExpr) String() string { return fmt.Sprintf("c.cumulative(%q)", e.label) }

// Prev reads the running value of the cumulative identified by label,
// exposed to `fold`'s expression as `c.PREV`.
func Prev(label string) core.Expression {
	return Label(label)
}

// cumulativeResetExpr is `c.cumulative_reset(label_name)`: unsets the label
// before evaluating inner, so a subsequent cumulative() under the same name
// restarts from its initial value.
type cumulativeResetExpr struct {
	base
	label string
	inner core.Expression
}

// CumulativeReset builds the reset combinator.
func CumulativeReset(label string, inner core.Expression) core.Expression {
	return &cumulativeResetExpr{base: newBase(core.SideEffect, inner), label: label, inner: inner}
}

func (e *cumulativeResetExpr) Eval(rt *core.Runtime) (core.Value, error) {
	rt.DeleteLabel(e.label)
	return e.inner.Eval(rt)
}

func (e *cumulativeResetExpr) String() string {
	return fmt.Sprintf("c.cumulative_reset(%q)", e.label)
}
