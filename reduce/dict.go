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

package reduce

import (
	"fmt"

	"github.com/convtools-go/convtools/core"
)

// DictKind selects the per-key accumulation a dictReduceExpr performs.
type DictKind int

const (
	DictFirst DictKind = iota
	DictLast
	DictSum
	DictCount
	DictArray
)

// dictBuf is a defaultdict-then-freeze accumulator: during the fill phase
// every key gets its own sub-buffer created on first sight, exactly
// mirroring a Python defaultdict; Finalize freezes it into a plain map, so
// no caller ever observes a live defaultdict growing key slots on read.
type dictBuf struct {
	order  []core.Value
	byKey  map[core.Value]Buffer
}

type dictReduceExpr struct {
	base
	key  core.Expression
	kind DictKind
}

// DictReduce builds `c.ReduceFuncs.DictXxx(key, arg, where=?)`: groups arg
// values by key within the reducer's own scope (independent of any
// enclosing group_by keys) and applies kind's accumulation per key.
func DictReduce(key, arg, where core.Expression, kind DictKind) Reducer {
	d := newBase(dictKindName(kind), arg, where, nil)
	d.deps = core.Merge(core.ContainsReducer, key.Deps(), d.deps)
	return &dictReduceExpr{base: d, key: key, kind: kind}
}

func dictKindName(k DictKind) string {
	switch k {
	case DictFirst:
		return "DictFirst"
	case DictLast:
		return "DictLast"
	case DictSum:
		return "DictSum"
	case DictCount:
		return "DictCount"
	case DictArray:
		return "DictArray"
	}
	return "DictReduce"
}

func (e *dictReduceExpr) NewBuffer() Buffer {
	return &dictBuf{byKey: map[core.Value]Buffer{}}
}

func (e *dictReduceExpr) Update(buf Buffer, rt *core.Runtime) (Buffer, error) {
	ok, err := e.passesWhere(rt)
	if err != nil || !ok {
		return buf, err
	}
	kv, err := e.key.Eval(rt)
	if err != nil {
		return buf, err
	}
	v, err := e.arg.Eval(rt)
	if err != nil {
		return buf, err
	}
	b := buf.(*dictBuf)
	sub, ok := b.byKey[kv]
	if !ok {
		sub = e.newSubBuffer()
		b.order = append(b.order, kv)
	}
	b.byKey[kv] = e.foldInto(sub, v)
	return b, nil
}

func (e *dictReduceExpr) newSubBuffer() Buffer {
	switch e.kind {
	case DictSum:
		return float64(0)
	case DictCount:
		return 0
	case DictArray:
		return []core.Value{}
	default:
		return nil // DictFirst/DictLast: nil sentinel means "unset"
	}
}

func (e *dictReduceExpr) foldInto(sub Buffer, v core.Value) Buffer {
	switch e.kind {
	case DictFirst:
		if sub == nil {
			return v
		}
		return sub
	case DictLast:
		return v
	case DictSum:
		f, err := toFloat(v)
		if err != nil {
			return sub
		}
		return sub.(float64) + f
	case DictCount:
		return sub.(int) + 1
	case DictArray:
		return append(sub.([]core.Value), v)
	}
	return sub
}

func (e *dictReduceExpr) Merge(a, b Buffer) (Buffer, error) {
	ab, bb := a.(*dictBuf), b.(*dictBuf)
	out := &dictBuf{byKey: map[core.Value]Buffer{}}
	for _, k := range ab.order {
		out.order = append(out.order, k)
		out.byKey[k] = ab.byKey[k]
	}
	for _, k := range bb.order {
		if _, ok := out.byKey[k]; !ok {
			out.order = append(out.order, k)
			out.byKey[k] = bb.byKey[k]
			continue
		}
		switch e.kind {
		case DictSum:
			out.byKey[k] = out.byKey[k].(float64) + bb.byKey[k].(float64)
		case DictCount:
			out.byKey[k] = out.byKey[k].(int) + bb.byKey[k].(int)
		case DictArray:
			out.byKey[k] = append(out.byKey[k].([]core.Value), bb.byKey[k].([]core.Value)...)
		case DictLast:
			out.byKey[k] = bb.byKey[k]
		case DictFirst:
			// keep ab's value, already first by order
		}
	}
	return out, nil
}

// Finalize freezes the defaultdict into a plain map[core.Value]core.Value;
// like any Go map, the result carries no key order.
func (e *dictReduceExpr) Finalize(buf Buffer, rt *core.Runtime) (core.Value, error) {
	b := buf.(*dictBuf)
	out := make(map[core.Value]core.Value, len(b.byKey))
	for k, v := range b.byKey {
		out[k] = v
	}
	return out, nil
}

func (e *dictReduceExpr) Eval(rt *core.Runtime) (core.Value, error) { return evalLookup(e, rt) }

func (e *dictReduceExpr) Children() []core.Expression { return []core.Expression{e.key, e.arg} }

func (e *dictReduceExpr) String() string { return fmt.Sprintf("c.ReduceFuncs.%s(...)", dictKindName(e.kind)) }
