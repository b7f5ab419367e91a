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

// OptItem is either a plain element or an Optional-wrapped one (skip_if /
// skip_value / keep_if), held alongside the collection-builder node so each
// element's skip decision is evaluated in declaration order.
type OptItem struct {
	Value    core.Expression
	SkipIf   core.Expression // element is dropped if this evaluates truthy
	KeepIf   core.Expression // element is kept only if this evaluates truthy
	HasValue bool            // SkipValue form: drop if Value == SkipValue
	Skip     core.Expression // SkipValue expression
}

// Optional wraps value with an unconditional inclusion (no skip rule). Use
// the With* helpers below to add a skip condition.
func Optional(value core.Expression) OptItem { return OptItem{Value: value} }

// WithSkipIf returns a copy of it that drops its element when cond is
// truthy.
func (it OptItem) WithSkipIf(cond core.Expression) OptItem { it.SkipIf = cond; return it }

// WithKeepIf returns a copy of it that keeps its element only when cond is
// truthy.
func (it OptItem) WithKeepIf(cond core.Expression) OptItem { it.KeepIf = cond; return it }

// WithSkipValue returns a copy of it that drops its element when the
// evaluated value equals skipValue's evaluated value.
func (it OptItem) WithSkipValue(skipValue core.Expression) OptItem {
	it.HasValue = true
	it.Skip = skipValue
	return it
}

func (it OptItem) included(rt *core.Runtime) (core.Value, bool, error) {
	v, err := it.Value.Eval(rt)
	if err != nil {
		return nil, false, err
	}
	if it.SkipIf != nil {
		sv, err := it.SkipIf.Eval(rt)
		if err != nil {
			return nil, false, err
		}
		if Truthy(sv) {
			return nil, false, nil
		}
	}
	if it.KeepIf != nil {
		kv, err := it.KeepIf.Eval(rt)
		if err != nil {
			return nil, false, err
		}
		if !Truthy(kv) {
			return nil, false, nil
		}
	}
	if it.HasValue {
		sv, err := it.Skip.Eval(rt)
		if err != nil {
			return nil, false, err
		}
		if deepEqual(v, sv) {
			return nil, false, nil
		}
	}
	return v, true, nil
}

func optChildren(items []OptItem) []core.Expression {
	var out []core.Expression
	for _, it := range items {
		out = append(out, it.Value)
		if it.SkipIf != nil {
			out = append(out, it.SkipIf)
		}
		if it.KeepIf != nil {
			out = append(out, it.KeepIf)
		}
		if it.HasValue {
			out = append(out, it.Skip)
		}
	}
	return out
}

type listExpr struct {
	base
	items []OptItem
}

// List builds `c.list(...)`: an ordered sequence literal, evaluated
// eagerly, honoring each item's Optional skip rule.
func List(items ...OptItem) core.Expression {
	return &listExpr{base: newBase(0, optChildren(items)...), items: items}
}

func (e *listExpr) Eval(rt *core.Runtime) (core.Value, error) {
	out := make([]core.Value, 0, len(e.items))
	for _, it := range e.items {
		v, keep, err := it.included(rt)
		if err != nil {
			return nil, err
		}
		if keep {
			out = append(out, v)
		}
	}
	return out, nil
}
func (e *listExpr) String() string { return "c.list(...)" }

// Tuple builds `c.tuple(...)`. convtools-go represents a tuple as a plain
// []core.Value, the same as a list: Go has no native fixed-arity
// heterogeneous tuple type, and the spec's own LEFT/RIGHT and group-by key
// usages treat tuples positionally.
func Tuple(items ...OptItem) core.Expression {
	e := List(items...)
	return &tupleExpr{e}
}

type tupleExpr struct{ core.Expression }

func (e *tupleExpr) String() string { return "c.tuple(...)" }

type setExpr struct {
	base
	items []OptItem
}

// Set builds `c.set(...)`, returned as a map[interface{}]struct{}.
func Set(items ...OptItem) core.Expression {
	return &setExpr{base: newBase(0, optChildren(items)...), items: items}
}

func (e *setExpr) Eval(rt *core.Runtime) (core.Value, error) {
	out := map[core.Value]struct{}{}
	for _, it := range e.items {
		v, keep, err := it.included(rt)
		if err != nil {
			return nil, err
		}
		if keep {
			out[v] = struct{}{}
		}
	}
	return out, nil
}
func (e *setExpr) String() string { return "c.set(...)" }

// DictPair is one key/value entry of a dict literal, or a spread of an
// existing mapping expression (`c.spread(mapping)`).
type DictPair struct {
	Key    core.Expression
	Val    OptItem
	Spread core.Expression // when set, Key/Val are ignored
}

type dictExpr struct {
	base
	pairs []DictPair
}

// Dict builds `c.dict(...)`, accepting `c.spread(mapping)` entries that
// merge another mapping's keys in at that declaration position.
func Dict(pairs ...DictPair) core.Expression {
	var children []core.Expression
	for _, p := range pairs {
		if p.Spread != nil {
			children = append(children, p.Spread)
			continue
		}
		children = append(children, p.Key)
		children = append(children, optChildren([]OptItem{p.Val})...)
	}
	return &dictExpr{base: newBase(0, children...), pairs: pairs}
}

func (e *dictExpr) Eval(rt *core.Runtime) (core.Value, error) {
	out := map[core.Value]core.Value{}
	for _, p := range e.pairs {
		if p.Spread != nil {
			sv, err := p.Spread.Eval(rt)
			if err != nil {
				return nil, err
			}
			it, err := core.Iterate(spreadableKeys(sv))
			if err != nil {
				return nil, err
			}
			for {
				k, ok, err := it.Next()
				if err != nil {
					return nil, err
				}
				if !ok {
					break
				}
				v, _ := indexValue(sv, k)
				out[k] = v
			}
			continue
		}
		k, err := p.Key.Eval(rt)
		if err != nil {
			return nil, err
		}
		v, keep, err := p.Val.included(rt)
		if err != nil {
			return nil, err
		}
		if keep {
			out[k] = v
		}
	}
	return out, nil
}
func (e *dictExpr) String() string { return "c.dict(...)" }

func spreadableKeys(v core.Value) core.Value {
	if m, ok := v.(map[core.Value]core.Value); ok {
		keys := make([]core.Value, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		return keys
	}
	return v
}
