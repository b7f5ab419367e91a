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
	"github.com/convtools-go/convtools/core"
)

// genExpr is the shared machinery behind every comprehension kind. `where`,
// when present, filters the *elements entering the comprehension*,
// evaluated with `this` bound to the raw source element — never the built
// result, which is what distinguishes it from `.filter`.
type genExpr struct {
	base
	over  core.Expression
	where core.Expression
}

func newGen(own core.ContentType, over, where core.Expression, extra ...core.Expression) genExpr {
	children := append([]core.Expression{over}, extra...)
	if where != nil {
		children = append(children, where)
	}
	return genExpr{base: newBase(own, children...), over: over, where: where}
}

func (g genExpr) rowIter(rt *core.Runtime) (core.RowIter, error) {
	ov, err := g.over.Eval(rt)
	if err != nil {
		return nil, err
	}
	srcIt, err := core.Iterate(ov)
	if err != nil {
		return nil, err
	}
	return core.FuncIter(func() (core.Value, bool, error) {
		for {
			v, ok, err := srcIt.Next()
			if err != nil || !ok {
				return nil, ok, err
			}
			childRT := rt.Child(v)
			if g.where != nil {
				wv, err := g.where.Eval(childRT)
				if err != nil {
					return nil, false, err
				}
				if !Truthy(wv) {
					continue
				}
			}
			return v, true, nil
		}
	}), nil
}

// generatorCompExpr is `c.generator_comp(elt, where=...)`: a lazy
// sequence.
type generatorCompExpr struct {
	genExpr
	elt core.Expression
}

// GeneratorComp builds a lazy comprehension over `over`, yielding elt
// evaluated with `this` bound to each filtered source element.
func GeneratorComp(over, elt, where core.Expression) core.Expression {
	return &generatorCompExpr{newGen(0, over, where, elt), elt}
}

func (e *generatorCompExpr) Eval(rt *core.Runtime) (core.Value, error) {
	srcIt, err := e.rowIter(rt)
	if err != nil {
		return nil, err
	}
	return core.FuncIter(func() (core.Value, bool, error) {
		v, ok, err := srcIt.Next()
		if err != nil || !ok {
			return nil, ok, err
		}
		return e.elt.Eval(rt.Child(v))
	}), nil
}

func (e *generatorCompExpr) String() string { return "c.generator_comp(...)" }

// Iter is `c.iter(elt, where?)`: shorthand for a generator comprehension
// over the current input, kept chainable with the stream operators below.
func Iter(elt, where core.Expression) core.Expression {
	return GeneratorComp(This(), elt, where)
}

type eagerCompExpr struct {
	genExpr
	elt  core.Expression
	kind evalKind
}

type evalKind int

const (
	kindList evalKind = iota
	kindTuple
	kindSet
)

// ListComp builds `c.list_comp(elt, where=...)` over `over`.
func ListComp(over, elt, where core.Expression) core.Expression {
	return &eagerCompExpr{newGen(0, over, where, elt), elt, kindList}
}

// TupleComp builds `c.tuple_comp(elt, where=...)` over `over`.
func TupleComp(over, elt, where core.Expression) core.Expression {
	return &eagerCompExpr{newGen(0, over, where, elt), elt, kindTuple}
}

// SetComp builds `c.set_comp(elt, where=...)` over `over`.
func SetComp(over, elt, where core.Expression) core.Expression {
	return &eagerCompExpr{newGen(0, over, where, elt), elt, kindSet}
}

func (e *eagerCompExpr) Eval(rt *core.Runtime) (core.Value, error) {
	it, err := e.rowIter(rt)
	if err != nil {
		return nil, err
	}
	if e.kind == kindSet {
		out := map[core.Value]struct{}{}
		for {
			v, ok, err := it.Next()
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			ev, err := e.elt.Eval(rt.Child(v))
			if err != nil {
				return nil, err
			}
			out[ev] = struct{}{}
		}
		return out, nil
	}
	var out []core.Value
	for {
		v, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		ev, err := e.elt.Eval(rt.Child(v))
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if out == nil {
		out = []core.Value{}
	}
	return out, nil
}

func (e *eagerCompExpr) String() string { return "c.*_comp(...)" }

// dictCompExpr is `c.dict_comp(key, val, where=...)`.
type dictCompExpr struct {
	genExpr
	key, val core.Expression
}

// DictComp builds `c.dict_comp(key, val, where=...)` over `over`.
func DictComp(over, key, val, where core.Expression) core.Expression {
	return &dictCompExpr{newGen(0, over, where, key, val), key, val}
}

func (e *dictCompExpr) Eval(rt *core.Runtime) (core.Value, error) {
	it, err := e.rowIter(rt)
	if err != nil {
		return nil, err
	}
	out := map[core.Value]core.Value{}
	for {
		v, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		childRT := rt.Child(v)
		kv, err := e.key.Eval(childRT)
		if err != nil {
			return nil, err
		}
		vv, err := e.val.Eval(childRT)
		if err != nil {
			return nil, err
		}
		out[kv] = vv
	}
	return out, nil
}

func (e *dictCompExpr) String() string { return "c.dict_comp(...)" }

// IterMut is `c.iter_mut(mut...)`: apply each mutation expression to every
// element of the current input (evaluated with `this` bound to the element,
// for side effect only) and yield the element itself afterwards.
type iterMutExpr struct {
	base
	muts []core.Expression
}

// IterMut builds an iter_mut node over the current input.
func IterMut(muts ...core.Expression) core.Expression {
	return &iterMutExpr{base: newBase(core.SideEffect, muts...), muts: muts}
}

func (e *iterMutExpr) Eval(rt *core.Runtime) (core.Value, error) {
	it, err := core.Iterate(rt.This)
	if err != nil {
		return nil, err
	}
	return core.FuncIter(func() (core.Value, bool, error) {
		v, ok, err := it.Next()
		if err != nil || !ok {
			return nil, ok, err
		}
		childRT := rt.Child(v)
		for _, m := range e.muts {
			if _, err := m.Eval(childRT); err != nil {
				return nil, false, err
			}
		}
		return v, true, nil
	}), nil
}

func (e *iterMutExpr) String() string { return "c.iter_mut(...)" }
