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

// Package reduce implements the built-in reducers consumed by package agg's
// group-by compiler: each reducer describes a per-group aggregation as a
// State/Fold/Finalize/Default contract, mirroring the column shape of a SQL
// aggregate function and grounded directly on the sql.Aggregation
// NewBuffer/Update/Merge/Eval lifecycle.
package reduce

import (
	"fmt"

	"github.com/spf13/cast"

	"github.com/convtools-go/convtools/core"
)

// Buffer is the opaque per-group accumulator a Reducer carries between rows.
type Buffer = interface{}

// Reducer is both a core.Expression (so it can sit anywhere an ordinary
// expression can, including nested inside a larger output expression) and
// the aggregation contract package agg drives directly: NewBuffer seeds a
// fresh per-group state, Update folds one row's input into it, Merge
// combines two partial buffers (needed for any future parallel/merge
// execution strategy), and Finalize converts the finished buffer to the
// reducer's output value.
type Reducer interface {
	core.Expression

	NewBuffer() Buffer
	Update(buf Buffer, rt *core.Runtime) (Buffer, error)
	Merge(a, b Buffer) (Buffer, error)
	// Finalize converts buf to the reducer's output value. rt is the
	// group's representative Runtime (This bound to a row of the group, or
	// nil for the implicit group of an aggregate over an empty source),
	// used only to evaluate
	// DefaultExpr when the group contributed no rows.
	Finalize(buf Buffer, rt *core.Runtime) (core.Value, error)

	// Where is the reducer's own pre-guard (c.ReduceFuncs.Sum(x, where=...)):
	// rows failing it never reach Update. Nil means no guard.
	Where() core.Expression
	// DefaultExpr is evaluated, against the group's representative row, if
	// the group contributed zero rows to this reducer (distinct from a
	// finalize of an empty-but-initialized buffer). Nil means "use the
	// reducer kind's own zero value".
	DefaultExpr() core.Expression
}

// base is embedded by every concrete reducer: it supplies Deps/Children (marking ContainsReducer so callers can detect illegal
// nesting), Where/DefaultExpr, and a debug String. Each reducer's own Eval
// calls evalLookup (a lookup into the Runtime's reducer-value table
// populated by package agg).
type base struct {
	deps    core.DepSet
	arg     core.Expression
	where   core.Expression
	def     core.Expression
	name    string
}

func newBase(name string, arg, where, def core.Expression) base {
	children := []core.Expression{arg}
	if where != nil {
		children = append(children, where)
	}
	if def != nil {
		children = append(children, def)
	}
	for _, c := range children {
		if c.Deps().Type.Has(core.ContainsReducer) {
			panic(core.ErrNestedReducer.New(name))
		}
	}
	deps := make([]core.DepSet, len(children))
	for i, c := range children {
		deps[i] = c.Deps()
	}
	d := core.Merge(core.ContainsReducer, deps...)
	return base{deps: d, arg: arg, where: where, def: def, name: name}
}

func (b base) Deps() core.DepSet            { return b.deps }
func (b base) Children() []core.Expression { return []core.Expression{b.arg} }
func (b base) Where() core.Expression       { return b.where }
func (b base) DefaultExpr() core.Expression { return b.def }
func (b base) String() string               { return fmt.Sprintf("c.ReduceFuncs.%s(...)", b.name) }

// passesWhere reports whether the reducer's optional guard lets the current
// row contribute, evaluated against rt as-is (rt.This is the input row
// during the agg fill phase).
func (b base) passesWhere(rt *core.Runtime) (bool, error) {
	if b.where == nil {
		return true, nil
	}
	v, err := b.where.Eval(rt)
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

func truthy(v core.Value) bool {
	if v == nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	default:
		return true
	}
}

// defaultOr evaluates the reducer's default expression against rt (the
// representative row agg passes for empty groups), falling back to zero if
// none was given.
func (b base) defaultOr(rt *core.Runtime, zero core.Value) (core.Value, error) {
	if b.def == nil {
		return zero, nil
	}
	return b.def.Eval(rt)
}

// evalLookup looks up the finalized value package agg recorded for this exact
// reducer node. A reducer evaluated outside of an aggregate/group_by
// pipeline (no value ever recorded) is a programmer error.
func evalLookup(r core.Expression, rt *core.Runtime) (core.Value, error) {
	v, ok := rt.ReducerValue(r)
	if !ok {
		return nil, fmt.Errorf("reducer %s evaluated outside an aggregate/group_by pipeline", r.String())
	}
	return v, nil
}

func toFloat(v core.Value) (float64, error) { return cast.ToFloat64E(v) }

// DefaultCompare orders two values the way Max/Min/ArraySorted compare by
// default when the caller supplies no explicit comparator: numeric values
// compare numerically (coerced through spf13/cast), strings lexically;
// anything else is rejected as incomparable.
func DefaultCompare(a, b core.Value) (int, error) {
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr && bIsStr {
		switch {
		case as < bs:
			return -1, nil
		case as > bs:
			return 1, nil
		default:
			return 0, nil
		}
	}
	af, err := cast.ToFloat64E(a)
	if err != nil {
		return 0, fmt.Errorf("cannot compare value of type %T: %w", a, err)
	}
	bf, err := cast.ToFloat64E(b)
	if err != nil {
		return 0, fmt.Errorf("cannot compare value of type %T: %w", b, err)
	}
	switch {
	case af < bf:
		return -1, nil
	case af > bf:
		return 1, nil
	default:
		return 0, nil
	}
}
