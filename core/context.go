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

package core

import (
	"fmt"

	"github.com/google/uuid"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
)

// Context is the per-compilation mutable state: a name minter, the
// table of captured naive values, the registry of emitted helpers, the
// option stack, and the set of extra input parameters the root will expose.
// A Context is created once per GenConverter call and dropped once the
// Converter is assembled.
type Context struct {
	counter int
	salt    string

	capturedOrder []Value
	capturedIdx   map[interface{}]int // best-effort dedup; skipped for uncomparable values

	helperNames map[Expression]string

	optStack []*Options

	inputArgs map[string]struct{}
	labels    map[string]labelInfo

	Log    logrus.FieldLogger
	Parent *Context // set when compiling a nested pipe scope

	// Tracer, if set, is used in place of opentracing's global tracer when
	// Converter.Call starts its execute span. Nil means "use whatever
	// opentracing.StartSpanFromContext resolves by default".
	Tracer opentracing.Tracer
}

type labelInfo struct {
	written bool
	read    bool
}

// NewContext creates a fresh compilation context seeded with opts as the
// bottom of its option stack.
func NewContext(opts *Options) *Context {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Context{
		salt:        uuid.NewString(),
		capturedIdx: map[interface{}]int{},
		helperNames: map[Expression]string{},
		optStack:    []*Options{opts},
		inputArgs:   map[string]struct{}{},
		labels:      map[string]labelInfo{},
		Log:         logrus.StandardLogger(),
	}
}

// Mint returns a short, word-unique identifier with the given prefix. Two
// mints never produce a name that is a substring-merge of another: the
// counter is rendered after an underscore, so "tmp_1" and "tmp_10" are
// always distinguishable as whole tokens.
func (c *Context) Mint(prefix string) string {
	c.counter++
	return fmt.Sprintf("%s_%s_%d", prefix, c.salt[:8], c.counter)
}

// Capture records a runtime constant captured by the expression graph and
// returns its stable slot index into Runtime.Naive. Equal, comparable
// values captured twice share a slot; uncomparable values (slices, maps,
// funcs) always get a fresh slot.
func (c *Context) Capture(v Value) int {
	if isComparable(v) {
		if idx, ok := c.capturedIdx[v]; ok {
			return idx
		}
		idx := len(c.capturedOrder)
		c.capturedOrder = append(c.capturedOrder, v)
		c.capturedIdx[v] = idx
		return idx
	}
	idx := len(c.capturedOrder)
	c.capturedOrder = append(c.capturedOrder, v)
	return idx
}

// Naive returns the frozen table of captured values, in slot order, to be
// closed over by the emitted Converter.
func (c *Context) Naive() []Value {
	out := make([]Value, len(c.capturedOrder))
	copy(out, c.capturedOrder)
	return out
}

func isComparable(v Value) bool { return IsComparable(v) }

// IsComparable reports whether v can safely be used as a Go map key (a
// group_by key, a dict key, a set/distinct element). Slices, maps, and
// funcs are not; structs and arrays containing any of those aren't either.
func IsComparable(v Value) (ok bool) {
	if v == nil {
		return true
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	m := map[interface{}]struct{}{v: {}}
	_ = m
	return true
}

// EmitHelper registers e under a minted name purely for debug-dump
// purposes (the debug sidecar lists materialized helper names alongside the
// emitted source) and marks it as a materialization point: the analyzer's
// "materialize" decision for this node has been made by the caller, and
// Runtime.Memo is expected to be used at Eval sites that reference e more
// than once.
func (c *Context) EmitHelper(e Expression) string {
	if name, ok := c.helperNames[e]; ok {
		return name
	}
	name := c.Mint("helper")
	c.helperNames[e] = name
	return name
}

// Helpers returns the node -> minted-name mapping, in a best-effort
// debug form (used by the sidecar dump).
func (c *Context) Helpers() map[Expression]string {
	return c.helperNames
}

// RegisterInputArg declares that the root expression requires an extra
// input-arg parameter with this name.
func (c *Context) RegisterInputArg(name string) {
	c.inputArgs[name] = struct{}{}
}

// InputArgs returns the set of declared input-arg names.
func (c *Context) InputArgs() map[string]struct{} {
	return c.inputArgs
}

// RegisterLabelWrite records that name is written somewhere in the emitted
// order (label_input/label_output/add_label/cumulative).
func (c *Context) RegisterLabelWrite(name string) {
	li := c.labels[name]
	li.written = true
	c.labels[name] = li
}

// RegisterLabelRead records a label(name) read. It does not validate
// anything itself; whether some write exists for the label is checked once
// all reads and writes are registered, by CheckLabels at GenConverter time.
func (c *Context) RegisterLabelRead(name string) {
	li := c.labels[name]
	li.read = true
	c.labels[name] = li
}

// CheckLabels validates every registered label was written before it is
// read, and returns the names of write-only labels (non-fatal, not an
// error). Called once, from GenConverter.
func (c *Context) CheckLabels() (unused []string, err error) {
	for name, info := range c.labels {
		if info.read && !info.written {
			return nil, ErrLabelNotWritten.New(name)
		}
		if info.written && !info.read {
			unused = append(unused, name)
		}
	}
	return unused, nil
}

// PushOptions pushes a partial option override onto the stack; the new top
// is opts merged over the previous top. OptionsCtxWith uses this to
// implement c.OptionsCtx()'s scoped acquisition.
func (c *Context) PushOptions(partial *Options) *Options {
	top := c.CurrentOptions().Merge(partial)
	c.optStack = append(c.optStack, top)
	return top
}

// PopOptions restores the previous entry on the option stack.
func (c *Context) PopOptions() {
	if len(c.optStack) > 1 {
		c.optStack = c.optStack[:len(c.optStack)-1]
	}
}

// CurrentOptions returns the option set currently in effect.
func (c *Context) CurrentOptions() *Options {
	return c.optStack[len(c.optStack)-1]
}
