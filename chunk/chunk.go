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

// Package chunk implements the streaming chunk/window operators:
// chunk_by (split on a changing key), chunk_by_condition (split on an
// arbitrary boundary predicate), iter_windows (fixed-size sliding
// windows), and unordered_chunk_by (group-without-sorting, bounded by an
// LRU eviction cap).
package chunk

import (
	"container/list"
	"fmt"

	"github.com/convtools-go/convtools/core"
)

// chunkByKeyExpr is `over.chunk_by(key, size=...)`: emits a new chunk
// ([]Value) each time key's value differs from the previous element's, or
// (independently) once the open chunk reaches maxSize elements — a
// memory-bounding cap, not a semantic split point; a run sharing one key
// value but longer than maxSize is still reported as consecutive chunks.
type chunkByKeyExpr struct {
	over    core.Expression
	key     core.Expression
	maxSize int
}

// ChunkByKey builds the key-change chunker. maxSize <= 0 means unbounded.
func ChunkByKey(over, key core.Expression, maxSize int) core.Expression {
	return &chunkByKeyExpr{over: over, key: key, maxSize: maxSize}
}

func (e *chunkByKeyExpr) Eval(rt *core.Runtime) (core.Value, error) {
	ov, err := e.over.Eval(rt)
	if err != nil {
		return nil, err
	}
	it, err := core.Iterate(ov)
	if err != nil {
		return nil, err
	}
	var cur []core.Value
	var curKey core.Value
	haveKey := false
	done := false
	return core.FuncIter(func() (core.Value, bool, error) {
		if done {
			return nil, false, nil
		}
		for {
			v, ok, err := it.Next()
			if err != nil {
				return nil, false, err
			}
			if !ok {
				done = true
				if len(cur) > 0 {
					out := cur
					cur = nil
					return out, true, nil
				}
				return nil, false, nil
			}
			kv, err := e.key.Eval(rt.Child(v))
			if err != nil {
				return nil, false, err
			}
			if !haveKey {
				haveKey = true
				curKey = kv
				cur = append(cur, v)
				continue
			}
			if kv == curKey && (e.maxSize <= 0 || len(cur) < e.maxSize) {
				cur = append(cur, v)
				continue
			}
			out := cur
			cur = []core.Value{v}
			curKey = kv
			return out, true, nil
		}
	}), nil
}

func (e *chunkByKeyExpr) Deps() core.DepSet { return core.Merge(0, e.over.Deps(), e.key.Deps()) }
func (e *chunkByKeyExpr) Children() []core.Expression {
	return []core.Expression{e.over, e.key}
}
func (e *chunkByKeyExpr) String() string { return fmt.Sprintf("%s.chunk_by(...)", e.over.String()) }

// chunkByCondExpr is `over.chunk_by_condition(cond)`: cond is evaluated
// with `this` bound to Boundary{Prev, Cur} (see PrevOf/CurOf below); a falsy result
// starts a new chunk at Cur.
type chunkByCondExpr struct {
	over core.Expression
	cond core.Expression
}

// Boundary is the `this` bound to chunk_by_condition's cond: the previous
// and current elements under consideration for the same chunk.
type Boundary struct {
	Prev, Cur core.Value
}

type boundarySideExpr struct{ wantPrev bool }

// PrevOf is `c.CHUNK.prev`: reads Boundary.Prev off `this`.
func PrevOf() core.Expression { return boundarySideExpr{wantPrev: true} }

// CurOf is `c.CHUNK.cur`: reads Boundary.Cur off `this`.
func CurOf() core.Expression { return boundarySideExpr{} }

func (s boundarySideExpr) Eval(rt *core.Runtime) (core.Value, error) {
	b, ok := rt.This.(Boundary)
	if !ok {
		return nil, fmt.Errorf("CHUNK.prev/CHUNK.cur referenced outside chunk_by_condition's condition")
	}
	if s.wantPrev {
		return b.Prev, nil
	}
	return b.Cur, nil
}
func (s boundarySideExpr) Deps() core.DepSet            { return core.Leaf(core.UsesInput) }
func (s boundarySideExpr) Children() []core.Expression { return nil }
func (s boundarySideExpr) String() string {
	if s.wantPrev {
		return "c.CHUNK.prev"
	}
	return "c.CHUNK.cur"
}

// ChunkByCondition builds the arbitrary-boundary chunker.
func ChunkByCondition(over, cond core.Expression) core.Expression {
	return &chunkByCondExpr{over: over, cond: cond}
}

func (e *chunkByCondExpr) Eval(rt *core.Runtime) (core.Value, error) {
	ov, err := e.over.Eval(rt)
	if err != nil {
		return nil, err
	}
	it, err := core.Iterate(ov)
	if err != nil {
		return nil, err
	}
	var cur []core.Value
	var prev core.Value
	havePrev := false
	done := false
	return core.FuncIter(func() (core.Value, bool, error) {
		if done {
			return nil, false, nil
		}
		for {
			v, ok, err := it.Next()
			if err != nil {
				return nil, false, err
			}
			if !ok {
				done = true
				if len(cur) > 0 {
					out := cur
					cur = nil
					return out, true, nil
				}
				return nil, false, nil
			}
			if !havePrev {
				havePrev = true
				prev = v
				cur = append(cur, v)
				continue
			}
			cv, err := e.cond.Eval(rt.Child(Boundary{Prev: prev, Cur: v}))
			if err != nil {
				return nil, false, err
			}
			prev = v
			if truthy(cv) {
				cur = append(cur, v)
				continue
			}
			out := cur
			cur = []core.Value{v}
			return out, true, nil
		}
	}), nil
}

func (e *chunkByCondExpr) Deps() core.DepSet {
	return core.Merge(0, e.over.Deps(), e.cond.Deps())
}
func (e *chunkByCondExpr) Children() []core.Expression {
	return []core.Expression{e.over, e.cond}
}
func (e *chunkByCondExpr) String() string {
	return fmt.Sprintf("%s.chunk_by_condition(...)", e.over.String())
}

func truthy(v core.Value) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

// iterWindowsExpr is `over.iter_windows(size, step)`: emits every window
// that overlaps the source at all, sliding by step each time — growing
// leading windows (the first window is a single element, growing up to
// size), full-size windows in the middle, and shrinking trailing windows
// (the last window is a single element again). Over n source elements with
// step=1 this yields n+size-1 windows total. Partial windows (shorter than
// size, at either end) are dropped instead when exact is true.
type iterWindowsExpr struct {
	over  core.Expression
	size  int
	step  int
	exact bool
}

// IterWindows builds the sliding-window operator.
func IterWindows(over core.Expression, size, step int, exact bool) core.Expression {
	if size <= 0 {
		size = 1
	}
	if step <= 0 {
		step = 1
	}
	return &iterWindowsExpr{over: over, size: size, step: step, exact: exact}
}

func (e *iterWindowsExpr) Eval(rt *core.Runtime) (core.Value, error) {
	ov, err := e.over.Eval(rt)
	if err != nil {
		return nil, err
	}
	it, err := core.Iterate(ov)
	if err != nil {
		return nil, err
	}
	items, err := core.Drain(it)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return core.FuncIter(func() (core.Value, bool, error) { return nil, false, nil }), nil
	}
	start := -(e.size - 1)
	return core.FuncIter(func() (core.Value, bool, error) {
		for {
			if start >= len(items) {
				return nil, false, nil
			}
			lo, hi := start, start+e.size
			if lo < 0 {
				lo = 0
			}
			if hi > len(items) {
				hi = len(items)
			}
			full := hi-lo == e.size
			if e.exact && !full {
				start += e.step
				continue
			}
			window := append([]core.Value{}, items[lo:hi]...)
			start += e.step
			return window, true, nil
		}
	}), nil
}

func (e *iterWindowsExpr) Deps() core.DepSet            { return core.Merge(core.Expensive, e.over.Deps()) }
func (e *iterWindowsExpr) Children() []core.Expression { return []core.Expression{e.over} }
func (e *iterWindowsExpr) String() string {
	return fmt.Sprintf("%s.iter_windows(%d, %d)", e.over.String(), e.size, e.step)
}

// unorderedChunkByExpr is
// `over.unordered_chunk_by(key, size, max_items_in_memory, portion_to_pop_on_max_memory_hit)`:
// groups consecutive-or-not elements sharing a key without requiring the
// source to be pre-sorted by it. A group is flushed as a completed chunk as
// soon as it reaches size items (size <= 0 means no per-chunk cap, a group
// only ends when evicted or the source is drained). Independently, once the
// total number of buffered items across every open group would exceed
// maxItemsInMemory, the least-recently-touched (LRU) groups are evicted and
// flushed, oldest first, until the total drops to
// portionToPopOnMaxMemoryHit * maxItemsInMemory — a single memory-cap hit
// can therefore flush more than one group.
type unorderedChunkByExpr struct {
	over                       core.Expression
	key                        core.Expression
	size                       int
	maxItemsInMemory           int
	portionToPopOnMaxMemoryHit float64
}

// UnorderedChunkBy builds the bounded-memory unordered chunker. size <= 0
// means no per-chunk cap. maxItemsInMemory <= 0 means no memory cap
// (equivalent to buffering every group until the source is exhausted).
// portionToPopOnMaxMemoryHit outside (0, 1] falls back to 0.9, evicting
// groups until 90% of maxItemsInMemory remains buffered.
func UnorderedChunkBy(over, key core.Expression, size, maxItemsInMemory int, portionToPopOnMaxMemoryHit float64) core.Expression {
	if portionToPopOnMaxMemoryHit <= 0 || portionToPopOnMaxMemoryHit > 1 {
		portionToPopOnMaxMemoryHit = 0.9
	}
	return &unorderedChunkByExpr{
		over: over, key: key,
		size: size, maxItemsInMemory: maxItemsInMemory,
		portionToPopOnMaxMemoryHit: portionToPopOnMaxMemoryHit,
	}
}

func (e *unorderedChunkByExpr) Deps() core.DepSet {
	return core.Merge(core.Expensive, e.over.Deps(), e.key.Deps())
}
func (e *unorderedChunkByExpr) Children() []core.Expression {
	return []core.Expression{e.over, e.key}
}
func (e *unorderedChunkByExpr) String() string {
	return fmt.Sprintf("%s.unordered_chunk_by(...)", e.over.String())
}

type lruEntry struct {
	key   core.Value
	items []core.Value
}

func (e *unorderedChunkByExpr) Eval(rt *core.Runtime) (core.Value, error) {
	ov, err := e.over.Eval(rt)
	if err != nil {
		return nil, err
	}
	it, err := core.Iterate(ov)
	if err != nil {
		return nil, err
	}

	order := list.New()
	byKey := map[core.Value]*list.Element{}
	var flushed []core.Value
	sourceDone := false
	totalItems := 0

	evict := func(el *list.Element) {
		ent := el.Value.(*lruEntry)
		order.Remove(el)
		delete(byKey, ent.key)
		totalItems -= len(ent.items)
		flushed = append(flushed, ent.items)
	}

	touch := func(key core.Value, v core.Value) {
		var ent *lruEntry
		if el, ok := byKey[key]; ok {
			ent = el.Value.(*lruEntry)
			ent.items = append(ent.items, v)
			order.MoveToFront(el)
		} else {
			ent = &lruEntry{key: key, items: []core.Value{v}}
			el := order.PushFront(ent)
			byKey[key] = el
		}
		totalItems++

		if e.size > 0 && len(ent.items) >= e.size {
			evict(byKey[key])
		}
		if e.maxItemsInMemory > 0 && totalItems > e.maxItemsInMemory {
			target := int(float64(e.maxItemsInMemory) * e.portionToPopOnMaxMemoryHit)
			for totalItems > target {
				oldest := order.Back()
				if oldest == nil {
					break
				}
				evict(oldest)
			}
		}
	}

	pump := func() error {
		for len(flushed) == 0 && !sourceDone {
			v, ok, err := it.Next()
			if err != nil {
				return err
			}
			if !ok {
				sourceDone = true
				break
			}
			kv, err := e.key.Eval(rt.Child(v))
			if err != nil {
				return err
			}
			touch(kv, v)
		}
		return nil
	}

	return core.FuncIter(func() (core.Value, bool, error) {
		for {
			if len(flushed) > 0 {
				out := flushed[0]
				flushed = flushed[1:]
				return out, true, nil
			}
			if sourceDone {
				if el := order.Back(); el != nil {
					ent := el.Value.(*lruEntry)
					order.Remove(el)
					delete(byKey, ent.key)
					return ent.items, true, nil
				}
				return nil, false, nil
			}
			if err := pump(); err != nil {
				return nil, false, err
			}
		}
	}), nil
}
