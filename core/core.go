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

// Package core defines the conversion-expression contract shared by every
// operator package: the Expression interface, the per-invocation Runtime,
// the compile-time Context, and the dependency analyzer that drives
// materialization decisions.
package core

import (
	"context"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
)

// Value is the dynamic runtime value flowing through a conversion. convtools
// never forces a fixed-width row shape; `this` can be any Go value a caller
// passes in.
type Value = interface{}

// unsetT is the type of the sentinel (UnsetVal) held by a reducer's state slot until its first row
// is observed. It is distinct from any valid Value, including nil.
type unsetT struct{}

// UnsetVal is the unique sentinel instance for "no row has contributed yet".
var UnsetVal = unsetT{}

// IsUnset reports whether v is the Unset sentinel.
func IsUnset(v Value) bool {
	_, ok := v.(unsetT)
	return ok
}

// Expression is a node in the conversion DAG. Nodes are immutable and freely
// shared; every "mutating" combinator in package expr returns a new node.
// Eval is the fused interpreter step: no parsing or reflection dispatch
// table sits between construction and evaluation, only direct Go calls.
type Expression interface {
	// Eval evaluates the node against rt, returning the produced value.
	Eval(rt *Runtime) (Value, error)
	// Deps returns the node's cached dependency set and content-type
	// bitmask, computed once at construction time.
	Deps() DepSet
	// Children returns this node's direct child expressions, in the order
	// the spec's data model requires. Leaves return nil.
	Children() []Expression
	// String renders a debug form of the node, used by the debug sidecar
	// and by test failure messages.
	String() string
}

// Runtime is the per-invocation state threaded through every Eval call. It
// is created once per Converter.Execute / gen_converter-produced call and
// discarded afterwards; nothing on it is shared across invocations.
type Runtime struct {
	Ctx    context.Context
	This   Value
	Args   map[string]Value
	Labels map[string]Value
	Naive  []Value
	Log    logrus.FieldLogger
	Span   opentracing.Span

	memo map[Expression]memoEntry

	// reducerValues holds the finalized value of every reducer node reachable
	// from the expression currently being evaluated, keyed by node identity.
	// The agg package populates this once per group before evaluating the
	// aggregate's output expression; a reducer node's Eval is just a lookup
	// here (see reduce.Reducer), so the same output-expression tree used
	// inside an aggregate evaluates identically outside one, provided the
	// caller has filled this map.
	reducerValues map[Expression]Value
}

// SetReducerValue records the finalized value of a reducer node, keyed by
// its identity, for later lookup by ReducerValue.
func (rt *Runtime) SetReducerValue(e Expression, v Value) {
	if rt.reducerValues == nil {
		rt.reducerValues = map[Expression]Value{}
	}
	rt.reducerValues[e] = v
}

// ReducerValue looks up a reducer node's finalized value. ok is false if no
// value was ever recorded for e (the reducer was evaluated outside of an
// aggregate/group_by pipeline, which is a programmer error).
func (rt *Runtime) ReducerValue(e Expression) (Value, bool) {
	v, ok := rt.reducerValues[e]
	return v, ok
}

// GetLabel reads a label cell, reporting whether it has ever been written.
func (rt *Runtime) GetLabel(name string) (Value, bool) {
	v, ok := rt.Labels[name]
	return v, ok
}

// SetLabel writes a label cell, visible to every subsequent read across the
// whole invocation (labels are process-local to one converter call — a
// single flat cell table, not scoped per pipe nesting; the "must not leak
// outside an inner pipe" invariant is enforced statically by the dependency
// analyzer instead, see expr.Pipe).
func (rt *Runtime) SetLabel(name string, v Value) {
	rt.Labels[name] = v
}

// DeleteLabel unsets a label cell (used by cumulative_reset).
func (rt *Runtime) DeleteLabel(name string) {
	delete(rt.Labels, name)
}

type memoEntry struct {
	val Value
	err error
	set bool
}

// NewRuntime builds a fresh per-invocation Runtime over the given input.
func NewRuntime(ctx context.Context, this Value, args map[string]Value, naive []Value, log logrus.FieldLogger) *Runtime {
	if args == nil {
		args = map[string]Value{}
	}
	return &Runtime{
		Ctx:    ctx,
		This:   this,
		Args:   args,
		Labels: map[string]Value{},
		Naive:  naive,
		Log:    log,
	}
}

// Child returns a derived Runtime for a pipe/comprehension scope with a new
// `this`, sharing the same label map (labels are visible across pipe
// boundaries within one invocation, per the label engine's contract) but an
// independent memoization cache (a nested scope must not reuse a parent
// scope's materialized values, since `this` differs).
func (rt *Runtime) Child(this Value) *Runtime {
	return &Runtime{
		Ctx:           rt.Ctx,
		This:          this,
		Args:          rt.Args,
		Labels:        rt.Labels,
		Naive:         rt.Naive,
		Log:           rt.Log,
		Span:          rt.Span,
		reducerValues: rt.reducerValues,
	}
}

// Memo evaluates e exactly once per Runtime, caching the result by node
// identity. Compound nodes call this for any child expression they reference
// from more than one place in the DAG (structural sharing), which is the
// concrete, direct-interpretation realization of the "materialize" half of
// the inlining decision in the analyzer (ambiguous/expensive/side-effecting
// shared subexpressions must not be recomputed or re-run).
func (rt *Runtime) Memo(e Expression) (Value, error) {
	if rt.memo == nil {
		rt.memo = map[Expression]memoEntry{}
	}
	if ent, ok := rt.memo[e]; ok {
		return ent.val, ent.err
	}
	v, err := e.Eval(rt)
	rt.memo[e] = memoEntry{val: v, err: err, set: true}
	return v, err
}
