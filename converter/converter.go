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

// Package converter assembles a validated, executable Converter out of a
// built expression DAG: it runs the label-dominance and unused-label
// checks, wires a compile-time Context (minted names, captured naive
// values, declared input args), optionally writes a debug sidecar
// describing the compiled tree, and hands back a value that can be
// called repeatedly against different inputs without repeating any of
// that validation work.
package converter

import (
	"context"
	"fmt"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"

	"github.com/convtools-go/convtools/core"
)

// Converter is the product of GenConverter: a validated expression tree
// plus the compile-time context it closes over. Safe for concurrent use
// by multiple goroutines — Call builds a fresh Runtime per invocation and
// never mutates the Converter itself.
type Converter struct {
	root  core.Expression
	ctx   *core.Context
	opts  *core.Options
	debug *sidecar
}

// GenConverter validates root (label dominance, reducer/join scope misuse
// surfaces as ordinary construction-time errors from the smart
// constructors already) and assembles a Converter ready to Call. unused
// carries any labels written but never read — a non-fatal diagnostic the
// caller may log.
func GenConverter(root core.Expression, opts *core.Options) (conv *Converter, unused []string, err error) {
	ctx := core.NewContext(opts)
	deps := root.Deps()

	for name := range deps.InputArgs {
		ctx.RegisterInputArg(name)
	}
	for name := range deps.LabelWrites {
		ctx.RegisterLabelWrite(name)
	}
	for name := range deps.Labels {
		ctx.RegisterLabelRead(name)
	}

	unused, err = ctx.CheckLabels()
	if err != nil {
		return nil, nil, err
	}
	for _, name := range unused {
		ctx.Log.Warnf("convtools: label %q is written but never read", name)
	}

	conv = &Converter{root: root, ctx: ctx, opts: ctx.CurrentOptions()}
	if conv.opts.Debug {
		sc, err := newSidecar(conv.opts)
		if err != nil {
			return nil, unused, err
		}
		conv.debug = sc
		conv.debug.dump(ctx, root)
	}
	return conv, unused, nil
}

// Call executes the compiled converter against this, with args bound as
// the converter's extra input-arg parameters.
func (c *Converter) Call(ctx context.Context, this core.Value, args map[string]core.Value) (result core.Value, err error) {
	var span opentracing.Span
	if c.ctx.Tracer != nil {
		span, ctx = opentracing.StartSpanFromContextWithTracer(ctx, c.ctx.Tracer, "convtools.execute")
	} else {
		span, ctx = opentracing.StartSpanFromContext(ctx, "convtools.execute")
	}
	defer span.Finish()

	rt := core.NewRuntime(ctx, this, args, c.ctx.Naive(), c.ctx.Log)
	rt.Span = span

	defer func() {
		if r := recover(); r != nil {
			if c.debug != nil {
				c.debug.reportPanic(c.root, r)
			}
			err = fmt.Errorf("convtools: panic evaluating converter: %v", r)
		}
	}()

	return c.root.Eval(rt)
}

// Execute is the one-shot convenience path: compile root and call it once.
// Prefer GenConverter+Call when the same tree is evaluated repeatedly, since
// GenConverter's validation and Context setup would otherwise be repeated on
// every call.
func Execute(ctx context.Context, root core.Expression, this core.Value, args map[string]core.Value, opts *core.Options) (core.Value, error) {
	conv, unused, err := GenConverter(root, opts)
	if err != nil {
		return nil, err
	}
	for _, name := range unused {
		logrus.StandardLogger().Warnf("convtools: label %q is written but never read", name)
	}
	return conv.Call(ctx, this, args)
}
