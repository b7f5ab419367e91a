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
	"reflect"

	"github.com/pkg/errors"

	"github.com/convtools-go/convtools/core"
)

// thisExpr is `c.this`: the current input.
type thisExpr struct{ base }

// This returns the current input unchanged.
func This() core.Expression {
	return &thisExpr{newBase(core.UsesInput)}
}

func (e *thisExpr) Eval(rt *core.Runtime) (core.Value, error) { return rt.This, nil }
func (e *thisExpr) String() string                            { return "this" }

// naiveExpr is `c.naive(value)`: a runtime constant captured at tree
// construction time. The value is closed over directly in the node struct,
// which is the zero-overhead realization of a compile-time capture registry
// for a direct-interpretation engine: no table lookup stands between the
// node and its constant.
type naiveExpr struct {
	base
	v core.Value
}

// Naive wraps an arbitrary runtime value as a constant expression.
func Naive(v core.Value) core.Expression {
	return &naiveExpr{base: newBase(core.Const), v: v}
}

func (e *naiveExpr) Eval(rt *core.Runtime) (core.Value, error) { return e.v, nil }
func (e *naiveExpr) String() string                            { return fmt.Sprintf("naive(%v)", e.v) }

// inputArgExpr is `c.input_arg(name)`: a reference to an extra keyword
// argument the compiled converter accepts alongside its positional input.
type inputArgExpr struct {
	base
	name string
}

// InputArg references an extra parameter the converter's signature exposes.
func InputArg(name string) core.Expression {
	d := core.WithInputArg(core.Leaf(0), name)
	return &inputArgExpr{base: base{deps: d}, name: name}
}

func (e *inputArgExpr) Eval(rt *core.Runtime) (core.Value, error) {
	v, ok := rt.Args[e.name]
	if !ok {
		return nil, errors.Errorf("input arg %q was not supplied", e.name)
	}
	return v, nil
}
func (e *inputArgExpr) String() string { return fmt.Sprintf("c.input_arg(%q)", e.name) }

// itemExpr is `c.item(key..., default?)`: deep indexing into maps/slices
// with an optional fallback when a key is missing.
type itemExpr struct {
	base
	of      core.Expression
	keys    []core.Expression
	hasDef  bool
	def     core.Expression
}

// Item builds deep item (map/slice) access off of. keys are evaluated and
// applied in order; if def is non-nil, a missing key at any level yields
// def instead of an error.
func Item(of core.Expression, keys []core.Expression, def core.Expression) core.Expression {
	children := append([]core.Expression{of}, keys...)
	hasDef := def != nil
	if hasDef {
		children = append(children, def)
	}
	return &itemExpr{base: newBase(0, children...), of: of, keys: keys, hasDef: hasDef, def: def}
}

func (e *itemExpr) Eval(rt *core.Runtime) (core.Value, error) {
	cur, err := e.of.Eval(rt)
	if err != nil {
		return nil, err
	}
	for _, k := range e.keys {
		kv, err := k.Eval(rt)
		if err != nil {
			return nil, err
		}
		next, ok := indexValue(cur, kv)
		if !ok {
			if e.hasDef {
				return e.def.Eval(rt)
			}
			if isSequenceLike(cur) {
				return nil, core.ErrIndexError.New(kv, cur)
			}
			return nil, core.ErrKeyError.New(kv, cur)
		}
		cur = next
	}
	return cur, nil
}

func (e *itemExpr) String() string { return fmt.Sprintf("%s.item(...)", e.of.String()) }

func indexValue(v core.Value, key core.Value) (core.Value, bool) {
	if v == nil {
		return nil, false
	}
	switch m := v.(type) {
	case map[string]core.Value:
		if ks, ok := key.(string); ok {
			val, ok := m[ks]
			return val, ok
		}
	case map[core.Value]core.Value:
		val, ok := m[key]
		return val, ok
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		kv := reflect.ValueOf(key)
		if !kv.IsValid() || !kv.Type().AssignableTo(rv.Type().Key()) {
			return nil, false
		}
		val := rv.MapIndex(kv)
		if !val.IsValid() {
			return nil, false
		}
		return val.Interface(), true
	case reflect.Slice, reflect.Array:
		idx, ok := asInt(key)
		if !ok {
			return nil, false
		}
		if idx < 0 {
			idx += rv.Len()
		}
		if idx < 0 || idx >= rv.Len() {
			return nil, false
		}
		return rv.Index(idx).Interface(), true
	}
	return nil, false
}

// isSequenceLike reports whether v is indexed positionally (slice/array)
// rather than by key (map), so a failed Item lookup can be classified as an
// IndexError instead of a KeyError.
func isSequenceLike(v core.Value) bool {
	if v == nil {
		return false
	}
	switch v.(type) {
	case map[string]core.Value, map[core.Value]core.Value:
		return false
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return true
	}
	return false
}

func asInt(v core.Value) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	}
	return 0, false
}

// attrExpr is `c.attr(name..., default?)`: deep struct-field/getter access.
type attrExpr struct {
	base
	of     core.Expression
	names  []string
	hasDef bool
	def    core.Expression
}

// Attr builds deep attribute access off of, walking names in order.
func Attr(of core.Expression, names []string, def core.Expression) core.Expression {
	children := []core.Expression{of}
	if def != nil {
		children = append(children, def)
	}
	return &attrExpr{base: newBase(0, children...), of: of, names: names, hasDef: def != nil, def: def}
}

func (e *attrExpr) Eval(rt *core.Runtime) (core.Value, error) {
	cur, err := e.of.Eval(rt)
	if err != nil {
		return nil, err
	}
	for _, name := range e.names {
		next, ok := attrValue(cur, name)
		if !ok {
			if e.hasDef {
				return e.def.Eval(rt)
			}
			return nil, core.ErrAttributeError.New(name, cur)
		}
		cur = next
	}
	return cur, nil
}

func (e *attrExpr) String() string { return fmt.Sprintf("%s.attr(...)", e.of.String()) }

func attrValue(v core.Value, name string) (core.Value, bool) {
	if v == nil {
		return nil, false
	}
	if m, ok := v.(map[string]core.Value); ok {
		val, ok := m[name]
		return val, ok
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, false
	}
	fv := rv.FieldByName(name)
	if !fv.IsValid() {
		return nil, false
	}
	return fv.Interface(), true
}
