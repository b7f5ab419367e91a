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
	"sort"

	"github.com/convtools-go/convtools/core"
)

// --- Sum / SumOrNone ---------------------------------------------------

type numBuf struct {
	sum  float64
	n    int
}

type sumExpr struct {
	base
	orNone bool
}

// Sum builds `c.ReduceFuncs.Sum(arg, where=?, default=?)`: the arithmetic
// sum of arg over the group, 0 for an empty group (or default if given).
func Sum(arg, where, def core.Expression) Reducer {
	return &sumExpr{base: newBase("Sum", arg, where, def)}
}

// SumOrNone is Sum, but an empty group finalizes to nil instead of 0
// (unless a default is given).
func SumOrNone(arg, where, def core.Expression) Reducer {
	return &sumExpr{base: newBase("SumOrNone", arg, where, def), orNone: true}
}

func (e *sumExpr) NewBuffer() Buffer { return &numBuf{} }

func (e *sumExpr) Update(buf Buffer, rt *core.Runtime) (Buffer, error) {
	ok, err := e.passesWhere(rt)
	if err != nil || !ok {
		return buf, err
	}
	v, err := e.arg.Eval(rt)
	if err != nil {
		return buf, err
	}
	f, err := toFloat(v)
	if err != nil {
		return buf, err
	}
	b := buf.(*numBuf)
	b.sum += f
	b.n++
	return b, nil
}

func (e *sumExpr) Merge(a, b Buffer) (Buffer, error) {
	ab, bb := a.(*numBuf), b.(*numBuf)
	return &numBuf{sum: ab.sum + bb.sum, n: ab.n + bb.n}, nil
}

func (e *sumExpr) Finalize(buf Buffer, rt *core.Runtime) (core.Value, error) {
	b := buf.(*numBuf)
	if b.n == 0 {
		if e.orNone {
			return e.defaultOr(rt, nil)
		}
		return e.defaultOr(rt, float64(0))
	}
	return b.sum, nil
}

func (e *sumExpr) Eval(rt *core.Runtime) (core.Value, error) { return evalLookup(e, rt) }

// --- Average -------------------------------------------------------------

type avgExpr struct{ base }

// Average builds `c.ReduceFuncs.Average(arg, where=?, default=?)`.
func Average(arg, where, def core.Expression) Reducer {
	return &avgExpr{base: newBase("Average", arg, where, def)}
}

func (e *avgExpr) NewBuffer() Buffer { return &numBuf{} }

func (e *avgExpr) Update(buf Buffer, rt *core.Runtime) (Buffer, error) {
	ok, err := e.passesWhere(rt)
	if err != nil || !ok {
		return buf, err
	}
	v, err := e.arg.Eval(rt)
	if err != nil {
		return buf, err
	}
	f, err := toFloat(v)
	if err != nil {
		return buf, err
	}
	b := buf.(*numBuf)
	b.sum += f
	b.n++
	return b, nil
}

func (e *avgExpr) Merge(a, b Buffer) (Buffer, error) {
	ab, bb := a.(*numBuf), b.(*numBuf)
	return &numBuf{sum: ab.sum + bb.sum, n: ab.n + bb.n}, nil
}

func (e *avgExpr) Finalize(buf Buffer, rt *core.Runtime) (core.Value, error) {
	b := buf.(*numBuf)
	if b.n == 0 {
		return e.defaultOr(rt, nil)
	}
	return b.sum / float64(b.n), nil
}

func (e *avgExpr) Eval(rt *core.Runtime) (core.Value, error) { return evalLookup(e, rt) }

// --- Count / CountDistinct ------------------------------------------------

type countBuf struct {
	n    int
	seen map[core.Value]struct{}
}

type countExpr struct {
	base
	distinct bool
}

// Count builds `c.ReduceFuncs.Count(arg?, where=?)`: the number of rows
// that pass where. arg is not evaluated: every row that passes where is
// counted, whatever arg would yield.
func Count(arg, where core.Expression) Reducer {
	if arg == nil {
		arg = constTrue{}
	}
	return &countExpr{base: newBase("Count", arg, where, nil)}
}

// CountDistinct builds `c.ReduceFuncs.CountDistinct(arg, where=?)`: the
// number of distinct values of arg among rows that pass where.
func CountDistinct(arg, where core.Expression) Reducer {
	return &countExpr{base: newBase("CountDistinct", arg, where, nil), distinct: true}
}

func (e *countExpr) NewBuffer() Buffer {
	if e.distinct {
		return &countBuf{seen: map[core.Value]struct{}{}}
	}
	return &countBuf{}
}

func (e *countExpr) Update(buf Buffer, rt *core.Runtime) (Buffer, error) {
	ok, err := e.passesWhere(rt)
	if err != nil || !ok {
		return buf, err
	}
	b := buf.(*countBuf)
	if !e.distinct {
		b.n++
		return b, nil
	}
	v, err := e.arg.Eval(rt)
	if err != nil {
		return buf, err
	}
	if _, dup := b.seen[v]; !dup {
		b.seen[v] = struct{}{}
		b.n++
	}
	return b, nil
}

func (e *countExpr) Merge(a, b Buffer) (Buffer, error) {
	ab, bb := a.(*countBuf), b.(*countBuf)
	if !e.distinct {
		return &countBuf{n: ab.n + bb.n}, nil
	}
	merged := map[core.Value]struct{}{}
	for k := range ab.seen {
		merged[k] = struct{}{}
	}
	for k := range bb.seen {
		merged[k] = struct{}{}
	}
	return &countBuf{n: len(merged), seen: merged}, nil
}

func (e *countExpr) Finalize(buf Buffer, rt *core.Runtime) (core.Value, error) {
	return buf.(*countBuf).n, nil
}

func (e *countExpr) Eval(rt *core.Runtime) (core.Value, error) { return evalLookup(e, rt) }

type constTrue struct{}

func (constTrue) Eval(*core.Runtime) (core.Value, error) { return true, nil }
func (constTrue) Deps() core.DepSet                       { return core.Leaf(core.Const) }
func (constTrue) Children() []core.Expression              { return nil }
func (constTrue) String() string                           { return "true" }

// --- Max / Min / MaxRow / MinRow ------------------------------------------

type extremeBuf struct {
	val  core.Value
	row  core.Value
	seen bool
}

type extremeExpr struct {
	base
	wantMax  bool
	byRow    bool
	compare  func(a, b core.Value) (int, error)
}

// Max builds `c.ReduceFuncs.Max(arg, where=?, default=?)`.
func Max(arg, where, def core.Expression, compare func(a, b core.Value) (int, error)) Reducer {
	return &extremeExpr{base: newBase("Max", arg, where, def), wantMax: true, compare: compare}
}

// Min builds `c.ReduceFuncs.Min(arg, where=?, default=?)`.
func Min(arg, where, def core.Expression, compare func(a, b core.Value) (int, error)) Reducer {
	return &extremeExpr{base: newBase("Min", arg, where, def), compare: compare}
}

// MaxRow builds `c.ReduceFuncs.MaxRow(arg, where=?, default=?)`: like Max,
// but finalizes to the whole row (rt.This) that produced the extreme arg,
// not to the arg value itself.
func MaxRow(arg, where, def core.Expression, compare func(a, b core.Value) (int, error)) Reducer {
	return &extremeExpr{base: newBase("MaxRow", arg, where, def), wantMax: true, byRow: true, compare: compare}
}

// MinRow builds `c.ReduceFuncs.MinRow(arg, where=?, default=?)`.
func MinRow(arg, where, def core.Expression, compare func(a, b core.Value) (int, error)) Reducer {
	return &extremeExpr{base: newBase("MinRow", arg, where, def), byRow: true, compare: compare}
}

func (e *extremeExpr) NewBuffer() Buffer { return &extremeBuf{} }

func (e *extremeExpr) Update(buf Buffer, rt *core.Runtime) (Buffer, error) {
	ok, err := e.passesWhere(rt)
	if err != nil || !ok {
		return buf, err
	}
	v, err := e.arg.Eval(rt)
	if err != nil {
		return buf, err
	}
	b := buf.(*extremeBuf)
	if !b.seen {
		b.val, b.row, b.seen = v, rt.This, true
		return b, nil
	}
	c, err := e.compare(v, b.val)
	if err != nil {
		return buf, err
	}
	if (e.wantMax && c > 0) || (!e.wantMax && c < 0) {
		b.val, b.row = v, rt.This
	}
	return b, nil
}

func (e *extremeExpr) Merge(a, b Buffer) (Buffer, error) {
	ab, bb := a.(*extremeBuf), b.(*extremeBuf)
	if !ab.seen {
		return bb, nil
	}
	if !bb.seen {
		return ab, nil
	}
	c, err := e.compare(ab.val, bb.val)
	if err != nil {
		return nil, err
	}
	if (e.wantMax && c >= 0) || (!e.wantMax && c <= 0) {
		return ab, nil
	}
	return bb, nil
}

func (e *extremeExpr) Finalize(buf Buffer, rt *core.Runtime) (core.Value, error) {
	b := buf.(*extremeBuf)
	if !b.seen {
		return e.defaultOr(rt, nil)
	}
	if e.byRow {
		return b.row, nil
	}
	return b.val, nil
}

func (e *extremeExpr) Eval(rt *core.Runtime) (core.Value, error) { return evalLookup(e, rt) }

// --- First / Last ----------------------------------------------------------

type edgeBuf struct {
	val  core.Value
	seen bool
}

type edgeExpr struct {
	base
	last bool
}

// First builds `c.ReduceFuncs.First(arg, where=?, default=?)`: the first
// row's arg value to pass where.
func First(arg, where, def core.Expression) Reducer {
	return &edgeExpr{base: newBase("First", arg, where, def)}
}

// Last builds `c.ReduceFuncs.Last(arg, where=?, default=?)`: the last row's
// arg value to pass where.
func Last(arg, where, def core.Expression) Reducer {
	return &edgeExpr{base: newBase("Last", arg, where, def), last: true}
}

func (e *edgeExpr) NewBuffer() Buffer { return &edgeBuf{} }

func (e *edgeExpr) Update(buf Buffer, rt *core.Runtime) (Buffer, error) {
	ok, err := e.passesWhere(rt)
	if err != nil || !ok {
		return buf, err
	}
	b := buf.(*edgeBuf)
	if b.seen && !e.last {
		return b, nil
	}
	v, err := e.arg.Eval(rt)
	if err != nil {
		return buf, err
	}
	b.val, b.seen = v, true
	return b, nil
}

func (e *edgeExpr) Merge(a, b Buffer) (Buffer, error) {
	ab, bb := a.(*edgeBuf), b.(*edgeBuf)
	if !e.last {
		if ab.seen {
			return ab, nil
		}
		return bb, nil
	}
	if bb.seen {
		return bb, nil
	}
	return ab, nil
}

func (e *edgeExpr) Finalize(buf Buffer, rt *core.Runtime) (core.Value, error) {
	b := buf.(*edgeBuf)
	if !b.seen {
		return e.defaultOr(rt, nil)
	}
	return b.val, nil
}

func (e *edgeExpr) Eval(rt *core.Runtime) (core.Value, error) { return evalLookup(e, rt) }

// --- Array / ArrayDistinct / ArraySorted ------------------------------------

type sliceBuf struct {
	items []core.Value
	seen  map[core.Value]struct{}
}

type arrayExpr struct {
	base
	distinct bool
	sorted   bool
	reverse  bool
	compare  func(a, b core.Value) (int, error)
}

// Array builds `c.ReduceFuncs.Array(arg, where=?)`: every passing row's arg
// value, in encounter order.
func Array(arg, where core.Expression) Reducer {
	return &arrayExpr{base: newBase("Array", arg, where, nil)}
}

// ArrayDistinct builds `c.ReduceFuncs.ArrayDistinct(arg, where=?)`: the
// distinct values of arg, in first-seen order.
func ArrayDistinct(arg, where core.Expression) Reducer {
	return &arrayExpr{base: newBase("ArrayDistinct", arg, where, nil), distinct: true}
}

// ArraySorted builds `c.ReduceFuncs.ArraySorted(arg, where=?, reverse=?)`.
func ArraySorted(arg, where core.Expression, reverse bool, compare func(a, b core.Value) (int, error)) Reducer {
	return &arrayExpr{base: newBase("ArraySorted", arg, where, nil), sorted: true, reverse: reverse, compare: compare}
}

func (e *arrayExpr) NewBuffer() Buffer {
	b := &sliceBuf{}
	if e.distinct {
		b.seen = map[core.Value]struct{}{}
	}
	return b
}

func (e *arrayExpr) Update(buf Buffer, rt *core.Runtime) (Buffer, error) {
	ok, err := e.passesWhere(rt)
	if err != nil || !ok {
		return buf, err
	}
	v, err := e.arg.Eval(rt)
	if err != nil {
		return buf, err
	}
	b := buf.(*sliceBuf)
	if e.distinct {
		if _, dup := b.seen[v]; dup {
			return b, nil
		}
		b.seen[v] = struct{}{}
	}
	b.items = append(b.items, v)
	return b, nil
}

func (e *arrayExpr) Merge(a, b Buffer) (Buffer, error) {
	ab, bb := a.(*sliceBuf), b.(*sliceBuf)
	out := &sliceBuf{items: append(append([]core.Value{}, ab.items...), bb.items...)}
	if e.distinct {
		out.seen = map[core.Value]struct{}{}
		deduped := out.items[:0]
		for _, v := range out.items {
			if _, dup := out.seen[v]; dup {
				continue
			}
			out.seen[v] = struct{}{}
			deduped = append(deduped, v)
		}
		out.items = deduped
	}
	return out, nil
}

func (e *arrayExpr) Finalize(buf Buffer, rt *core.Runtime) (core.Value, error) {
	b := buf.(*sliceBuf)
	items := append([]core.Value{}, b.items...)
	if e.sorted {
		var sortErr error
		sort.SliceStable(items, func(i, j int) bool {
			c, err := e.compare(items[i], items[j])
			if err != nil {
				sortErr = err
				return false
			}
			if e.reverse {
				return c > 0
			}
			return c < 0
		})
		if sortErr != nil {
			return nil, sortErr
		}
	}
	return items, nil
}

func (e *arrayExpr) Eval(rt *core.Runtime) (core.Value, error) { return evalLookup(e, rt) }

// --- Median / Percentile / Mode / TopK ---------------------------------

type statsExpr struct {
	base
	kind       string // "median", "percentile", "mode", "topk"
	percentile float64
	k          int
}

// Median builds `c.ReduceFuncs.Median(arg, where=?)`.
func Median(arg, where core.Expression) Reducer {
	return &statsExpr{base: newBase("Median", arg, where, nil), kind: "median"}
}

// Percentile builds `c.ReduceFuncs.Percentile(p, arg, where=?)`, p in [0,100].
func Percentile(p float64, arg, where core.Expression) Reducer {
	return &statsExpr{base: newBase("Percentile", arg, where, nil), kind: "percentile", percentile: p}
}

// Mode builds `c.ReduceFuncs.Mode(arg, where=?)`: the most frequent value;
// among tied values, the one first seen last wins.
func Mode(arg, where core.Expression) Reducer {
	return &statsExpr{base: newBase("Mode", arg, where, nil), kind: "mode"}
}

// TopK builds `c.ReduceFuncs.TopK(k, arg, where=?)`: the k most frequent
// values, most frequent first, ties broken by first encounter.
func TopK(k int, arg, where core.Expression) Reducer {
	return &statsExpr{base: newBase("TopK", arg, where, nil), kind: "topk", k: k}
}

func (e *statsExpr) NewBuffer() Buffer { return &sliceBuf{} }

func (e *statsExpr) Update(buf Buffer, rt *core.Runtime) (Buffer, error) {
	ok, err := e.passesWhere(rt)
	if err != nil || !ok {
		return buf, err
	}
	v, err := e.arg.Eval(rt)
	if err != nil {
		return buf, err
	}
	b := buf.(*sliceBuf)
	b.items = append(b.items, v)
	return b, nil
}

func (e *statsExpr) Merge(a, b Buffer) (Buffer, error) {
	ab, bb := a.(*sliceBuf), b.(*sliceBuf)
	return &sliceBuf{items: append(append([]core.Value{}, ab.items...), bb.items...)}, nil
}

func (e *statsExpr) Finalize(buf Buffer, rt *core.Runtime) (core.Value, error) {
	b := buf.(*sliceBuf)
	switch e.kind {
	case "median":
		return percentileOf(b.items, 50)
	case "percentile":
		return percentileOf(b.items, e.percentile)
	case "mode":
		return modeOf(b.items), nil
	case "topk":
		return topKOf(b.items, e.k), nil
	}
	return nil, nil
}

func (e *statsExpr) Eval(rt *core.Runtime) (core.Value, error) { return evalLookup(e, rt) }

func percentileOf(items []core.Value, p float64) (core.Value, error) {
	if len(items) == 0 {
		return nil, nil
	}
	floats := make([]float64, len(items))
	for i, v := range items {
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		floats[i] = f
	}
	sort.Float64s(floats)
	if len(floats) == 1 {
		return floats[0], nil
	}
	rank := (p / 100) * float64(len(floats)-1)
	lo := int(rank)
	hi := lo + 1
	if hi >= len(floats) {
		return floats[len(floats)-1], nil
	}
	frac := rank - float64(lo)
	return floats[lo]*(1-frac) + floats[hi]*frac, nil
}

func modeOf(items []core.Value) core.Value {
	counts := map[core.Value]int{}
	order := []core.Value{}
	for _, v := range items {
		if _, ok := counts[v]; !ok {
			order = append(order, v)
		}
		counts[v]++
	}
	var best core.Value
	bestN := -1
	for _, v := range order {
		if counts[v] >= bestN {
			best, bestN = v, counts[v]
		}
	}
	return best
}

func topKOf(items []core.Value, k int) []core.Value {
	counts := map[core.Value]int{}
	order := []core.Value{}
	for _, v := range items {
		if _, ok := counts[v]; !ok {
			order = append(order, v)
		}
		counts[v]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if k < len(order) {
		order = order[:k]
	}
	return order
}
