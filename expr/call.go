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
	"github.com/spf13/cast"

	"github.com/convtools-go/convtools/core"
)

// Func is the calling convention convtools-go uses for `c.call_func` /
// `c.apply_func` targets: Go has no native **kwargs, so a callable plugged
// into the expression graph takes resolved positional args plus a resolved
// keyword map, mirroring Python's calling convention explicitly instead of
// collapsing it to a fixed-arity Go func signature.
type Func func(args []core.Value, kwargs map[string]core.Value) (core.Value, error)

type callExpr struct {
	base
	fn     core.Value // a Func, or a plain Go func of another shape
	args   []core.Expression
	kwargs map[string]core.Expression
}

// Call builds `c.call(fn, *args, **kwargs)` against a Func value, or any
// other Go func value, passed in directly (not wrapped in an expression).
func Call(fn core.Value, args []core.Expression, kwargs map[string]core.Expression) core.Expression {
	children := append([]core.Expression{}, args...)
	for _, v := range kwargs {
		children = append(children, v)
	}
	return &callExpr{base: newBase(core.Expensive, children...), fn: fn, args: args, kwargs: kwargs}
}

func (e *callExpr) Eval(rt *core.Runtime) (core.Value, error) {
	argv := make([]core.Value, len(e.args))
	for i, a := range e.args {
		v, err := a.Eval(rt)
		if err != nil {
			return nil, err
		}
		argv[i] = v
	}
	kwv := make(map[string]core.Value, len(e.kwargs))
	for k, a := range e.kwargs {
		v, err := a.Eval(rt)
		if err != nil {
			return nil, err
		}
		kwv[k] = v
	}
	return invoke(e.fn, argv, kwv)
}

func (e *callExpr) String() string { return "c.call(...)" }

func invoke(fn core.Value, args []core.Value, kwargs map[string]core.Value) (core.Value, error) {
	if f, ok := fn.(Func); ok {
		return f(args, kwargs)
	}
	if f, ok := fn.(func([]core.Value, map[string]core.Value) (core.Value, error)); ok {
		return f(args, kwargs)
	}
	// Fall back to reflection for a plain positional Go func, ignoring
	// kwargs (a narrower but still useful escape hatch for wrapping
	// existing Go helpers without adapting them to Func).
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func {
		return nil, errors.Errorf("value of type %T is not callable", fn)
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		in[i] = reflect.ValueOf(a)
	}
	out := rv.Call(in)
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	default:
		last := out[len(out)-1].Interface()
		if err, ok := last.(error); ok {
			return out[0].Interface(), err
		}
		return out[0].Interface(), nil
	}
}

type callMethodExpr struct {
	base
	of     core.Expression
	name   string
	args   []core.Expression
	kwargs map[string]core.Expression
}

// CallMethod builds `of.call_method(name, *args, **kwargs)`, invoking a Go
// method named name on of's evaluated value via reflection.
func CallMethod(of core.Expression, name string, args []core.Expression, kwargs map[string]core.Expression) core.Expression {
	children := append([]core.Expression{of}, args...)
	for _, v := range kwargs {
		children = append(children, v)
	}
	return &callMethodExpr{base: newBase(core.Expensive, children...), of: of, name: name, args: args, kwargs: kwargs}
}

func (e *callMethodExpr) Eval(rt *core.Runtime) (core.Value, error) {
	ov, err := e.of.Eval(rt)
	if err != nil {
		return nil, err
	}
	argv := make([]core.Value, len(e.args))
	for i, a := range e.args {
		v, err := a.Eval(rt)
		if err != nil {
			return nil, err
		}
		argv[i] = v
	}
	rv := reflect.ValueOf(ov)
	m := rv.MethodByName(e.name)
	if !m.IsValid() {
		return nil, errors.Errorf("value of type %T has no method %q", ov, e.name)
	}
	in := make([]reflect.Value, len(argv))
	for i, a := range argv {
		in[i] = reflect.ValueOf(a)
	}
	out := m.Call(in)
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	default:
		last := out[len(out)-1].Interface()
		if err, ok := last.(error); ok {
			return out[0].Interface(), err
		}
		return out[0].Interface(), nil
	}
}

func (e *callMethodExpr) String() string { return fmt.Sprintf("%s.call_method(%q)", e.of.String(), e.name) }

// TypeTag enumerates the built-in scalar conversions `c.as_type` supports
// without the caller writing a custom Func; anything else is passed a
// custom converter.
type TypeTag int

const (
	IntType TypeTag = iota
	Int64Type
	Float64Type
	StringType
	BoolType
)

type asTypeExpr struct {
	base
	inner core.Expression
	tag   TypeTag
	conv  func(core.Value) (core.Value, error)
}

// AsType converts inner's value to one of the built-in scalar types.
func AsType(inner core.Expression, tag TypeTag) core.Expression {
	return &asTypeExpr{base: newBase(0, inner), inner: inner, tag: tag}
}

// AsTypeFunc converts inner's value with a caller-supplied converter.
func AsTypeFunc(inner core.Expression, conv func(core.Value) (core.Value, error)) core.Expression {
	return &asTypeExpr{base: newBase(core.Expensive, inner), inner: inner, conv: conv}
}

func (e *asTypeExpr) Eval(rt *core.Runtime) (core.Value, error) {
	v, err := e.inner.Eval(rt)
	if err != nil {
		return nil, err
	}
	if e.conv != nil {
		return e.conv(v)
	}
	switch e.tag {
	case IntType:
		return cast.ToIntE(v)
	case Int64Type:
		return cast.ToInt64E(v)
	case Float64Type:
		return cast.ToFloat64E(v)
	case StringType:
		return cast.ToStringE(v)
	case BoolType:
		return cast.ToBoolE(v)
	}
	return nil, errors.Errorf("unsupported type tag %d", e.tag)
}

func (e *asTypeExpr) String() string { return fmt.Sprintf("%s.as_type(...)", e.inner.String()) }
