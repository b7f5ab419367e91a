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

// breakpointExpr is `c.breakpoint(inner)`: evaluates inner and logs its
// input/output pair at debug level before returning it unchanged, giving a
// caller a place to attach a debugger or inspect a single node's behavior
// without editing the surrounding tree.
type breakpointExpr struct {
	base
	inner core.Expression
}

// Breakpoint wraps inner with a debug-log tap; the returned value is
// identical to inner's.
func Breakpoint(inner core.Expression) core.Expression {
	return &breakpointExpr{base: newBase(0, inner), inner: inner}
}

func (e *breakpointExpr) Eval(rt *core.Runtime) (core.Value, error) {
	v, err := e.inner.Eval(rt)
	if rt.Log != nil {
		rt.Log.WithField("this", rt.This).WithField("result", v).WithError(err).Debug("breakpoint")
	}
	return v, err
}

func (e *breakpointExpr) String() string { return "c.breakpoint(...)" }

// inlineExpr is `c.inline_expr(raw).pass_args(...)`. The original library
// splices a literal source snippet into the generated function body; Go has
// no equivalent at runtime, so this is implemented as an escape hatch
// wrapping a caller-supplied Func over the (already evaluated) positional
// and keyword arguments bound by PassArgs.
type inlineExpr struct {
	base
	fn       Func
	posArgs  []core.Expression
	kwArgs   map[string]core.Expression
}

// InlineExpr wraps fn as a raw escape hatch, matching the original
// library's `c.inline_expr` entrypoint in spirit: an expression whose body
// is supplied directly by the caller rather than built from the algebra.
func InlineExpr(fn Func) *inlineExpr {
	return &inlineExpr{fn: fn}
}

// PassArgs binds positional and keyword argument expressions, evaluated
// against the current Runtime each time the inline expression runs.
func (e *inlineExpr) PassArgs(posArgs []core.Expression, kwArgs map[string]core.Expression) core.Expression {
	children := append([]core.Expression{}, posArgs...)
	for _, v := range kwArgs {
		children = append(children, v)
	}
	return &inlineExpr{base: newBase(core.SideEffect, children...), fn: e.fn, posArgs: posArgs, kwArgs: kwArgs}
}

func (e *inlineExpr) Eval(rt *core.Runtime) (core.Value, error) {
	pos := make([]core.Value, len(e.posArgs))
	for i, a := range e.posArgs {
		v, err := a.Eval(rt)
		if err != nil {
			return nil, err
		}
		pos[i] = v
	}
	kw := make(map[string]core.Value, len(e.kwArgs))
	for name, a := range e.kwArgs {
		v, err := a.Eval(rt)
		if err != nil {
			return nil, err
		}
		kw[name] = v
	}
	return e.fn(pos, kw)
}

func (e *inlineExpr) String() string { return "c.inline_expr(...)" }

// EscapedString is `c.escaped_string(s)`: a constant string that is
// never interpreted as an expression source fragment. Since this
// implementation never splices source text, it behaves exactly like
// Naive(s); it exists so callers porting code that distinguishes the two
// keep a meaningful call to make.
func EscapedString(s string) core.Expression {
	return Naive(s)
}
