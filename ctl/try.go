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

package ctl

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/convtools-go/convtools/core"
)

// ExceptionMatcher reports whether err is the kind of error a given
// except_ clause wants to handle. Matchers are checked in declaration
// order; the first match wins.
type ExceptionMatcher func(err error) bool

// KindMatcher adapts a go-errors.v1 Kind (or anything exposing an
// Is(error) bool method) into an ExceptionMatcher.
func KindMatcher(kind interface{ Is(error) bool }) ExceptionMatcher {
	return func(err error) bool { return kind.Is(err) }
}

// AnyMatcher matches every error, the equivalent of a bare `except:`.
func AnyMatcher() ExceptionMatcher { return func(error) bool { return true } }

// ExceptClause is one handler of a try_ expression.
type ExceptClause struct {
	Matches   ExceptionMatcher
	// Handler is evaluated with `this` still bound to the ORIGINAL input
	// (the value try_ was evaluated against), not to the error, mirroring
	// a handler block that re-reads the function's original arguments.
	Handler core.Expression
	// ReRaiseIf, when non-nil, is evaluated (with `this` bound to the
	// original input) before Handler; if truthy, the original error is
	// re-raised instead of running Handler.
	ReRaiseIf core.Expression
}

// tryExpr is `c.try_(body).except_(matcher, handler, re_raise_if=...)...`:
// runs body; on error, walks clauses in declaration order and runs the
// first one whose Matches accepts the error (after checking ReRaiseIf).
// An unmatched error is wrapped and propagated; callers matching on Kind
// still see it via Kind.Is, which follows the wrap chain.
type tryExpr struct {
	base
	body    core.Expression
	clauses []ExceptClause
}

// Try builds the try/except combinator.
func Try(body core.Expression, clauses []ExceptClause) core.Expression {
	children := []core.Expression{body}
	for _, c := range clauses {
		children = append(children, c.Handler)
		if c.ReRaiseIf != nil {
			children = append(children, c.ReRaiseIf)
		}
	}
	return &tryExpr{base: newBase(core.SideEffect, children...), body: body, clauses: clauses}
}

func (e *tryExpr) Eval(rt *core.Runtime) (core.Value, error) {
	v, err := e.body.Eval(rt)
	if err == nil {
		return v, nil
	}
	for _, c := range e.clauses {
		if !c.Matches(err) {
			continue
		}
		if c.ReRaiseIf != nil {
			rv, rerr := c.ReRaiseIf.Eval(rt)
			if rerr != nil {
				return nil, rerr
			}
			if truthy(rv) {
				return nil, err
			}
		}
		return c.Handler.Eval(rt)
	}
	return nil, errors.Wrap(err, "try_: unhandled exception")
}

func (e *tryExpr) String() string { return fmt.Sprintf("c.try_(%s)", e.body.String()) }
