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
	"sort"

	"github.com/convtools-go/convtools/core"
)

// filterExpr is `X.filter(cond)`: filters the RESULT of X, evaluating cond
// with `this` bound to each element of that result. This is distinct from a
// comprehension's `where` clause, which filters before projection; filter
// runs after, against whatever X already produced.
type filterExpr struct {
	base
	over core.Expression
	cond core.Expression
}

// Filter builds `over.filter(cond)`.
func Filter(over, cond core.Expression) core.Expression {
	return &filterExpr{base: newBase(0, over, cond), over: over, cond: cond}
}

func (e *filterExpr) Eval(rt *core.Runtime) (core.Value, error) {
	ov, err := e.over.Eval(rt)
	if err != nil {
		return nil, err
	}
	it, err := core.Iterate(ov)
	if err != nil {
		return nil, err
	}
	return core.FuncIter(func() (core.Value, bool, error) {
		for {
			v, ok, err := it.Next()
			if err != nil || !ok {
				return nil, ok, err
			}
			cv, err := e.cond.Eval(rt.Child(v))
			if err != nil {
				return nil, false, err
			}
			if Truthy(cv) {
				return v, true, nil
			}
		}
	}), nil
}

func (e *filterExpr) String() string { return fmt.Sprintf("%s.filter(...)", e.over.String()) }

// sortExpr is `over.sort(key=..., reverse=...)`; key, when set, is
// evaluated with `this` bound to each element.
type sortExpr struct {
	base
	over    core.Expression
	key     core.Expression // nil sorts elements directly
	reverse bool
}

// Sort builds `over.sort(key=key, reverse=reverse)`. A nil key compares
// elements directly.
func Sort(over, key core.Expression, reverse bool) core.Expression {
	var children []core.Expression
	if key != nil {
		children = []core.Expression{over, key}
	} else {
		children = []core.Expression{over}
	}
	return &sortExpr{base: newBase(core.Expensive, children...), over: over, key: key, reverse: reverse}
}

func (e *sortExpr) Eval(rt *core.Runtime) (core.Value, error) {
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
	keys := make([]core.Value, len(items))
	if e.key != nil {
		for i, v := range items {
			kv, err := e.key.Eval(rt.Child(v))
			if err != nil {
				return nil, err
			}
			keys[i] = kv
		}
	} else {
		copy(keys, items)
	}
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	var sortErr error
	sort.SliceStable(idx, func(i, j int) bool {
		c, err := compareValues(keys[idx[i]], keys[idx[j]])
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
	out := make([]core.Value, len(items))
	for i, id := range idx {
		out[i] = items[id]
	}
	return out, nil
}

func (e *sortExpr) String() string { return fmt.Sprintf("%s.sort(...)", e.over.String()) }

type takeWhileExpr struct {
	base
	over core.Expression
	cond core.Expression
	drop bool
}

// TakeWhile builds `over.take_while(cond)`: yields elements until cond is
// first falsy, then stops pulling from the source entirely (no draining).
func TakeWhile(over, cond core.Expression) core.Expression {
	return &takeWhileExpr{base: newBase(0, over, cond), over: over, cond: cond}
}

// DropWhile builds `over.drop_while(cond)`: skips elements while cond holds,
// then yields every element from the first falsy one onward.
func DropWhile(over, cond core.Expression) core.Expression {
	return &takeWhileExpr{base: newBase(0, over, cond), over: over, cond: cond, drop: true}
}

func (e *takeWhileExpr) Eval(rt *core.Runtime) (core.Value, error) {
	ov, err := e.over.Eval(rt)
	if err != nil {
		return nil, err
	}
	it, err := core.Iterate(ov)
	if err != nil {
		return nil, err
	}
	if !e.drop {
		done := false
		return core.FuncIter(func() (core.Value, bool, error) {
			if done {
				return nil, false, nil
			}
			v, ok, err := it.Next()
			if err != nil || !ok {
				done = true
				return nil, false, err
			}
			cv, err := e.cond.Eval(rt.Child(v))
			if err != nil {
				return nil, false, err
			}
			if !Truthy(cv) {
				done = true
				return nil, false, nil
			}
			return v, true, nil
		}), nil
	}

	dropping := true
	return core.FuncIter(func() (core.Value, bool, error) {
		for dropping {
			v, ok, err := it.Next()
			if err != nil || !ok {
				return nil, ok, err
			}
			cv, err := e.cond.Eval(rt.Child(v))
			if err != nil {
				return nil, false, err
			}
			if Truthy(cv) {
				continue
			}
			dropping = false
			return v, true, nil
		}
		return it.Next()
	}), nil
}

func (e *takeWhileExpr) String() string {
	if e.drop {
		return fmt.Sprintf("%s.drop_while(...)", e.over.String())
	}
	return fmt.Sprintf("%s.take_while(...)", e.over.String())
}

// iterUniqueExpr is `over.iter_unique(out?, by?)`: yields the first element
// seen for each distinct `by` key (defaulting to the element itself),
// optionally projected through `out`.
type iterUniqueExpr struct {
	base
	over   core.Expression
	by     core.Expression
	out    core.Expression
}

// IterUnique builds the dedup-by-key stream operator. by/out may be nil
// (defaulting to the element itself).
func IterUnique(over, by, out core.Expression) core.Expression {
	children := []core.Expression{over}
	if by != nil {
		children = append(children, by)
	}
	if out != nil {
		children = append(children, out)
	}
	return &iterUniqueExpr{base: newBase(0, children...), over: over, by: by, out: out}
}

func (e *iterUniqueExpr) Eval(rt *core.Runtime) (core.Value, error) {
	ov, err := e.over.Eval(rt)
	if err != nil {
		return nil, err
	}
	it, err := core.Iterate(ov)
	if err != nil {
		return nil, err
	}
	seen := map[core.Value]struct{}{}
	return core.FuncIter(func() (core.Value, bool, error) {
		for {
			v, ok, err := it.Next()
			if err != nil || !ok {
				return nil, ok, err
			}
			childRT := rt.Child(v)
			key := v
			if e.by != nil {
				key, err = e.by.Eval(childRT)
				if err != nil {
					return nil, false, err
				}
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out := v
			if e.out != nil {
				out, err = e.out.Eval(childRT)
				if err != nil {
					return nil, false, err
				}
			}
			return out, true, nil
		}
	}), nil
}

func (e *iterUniqueExpr) String() string { return fmt.Sprintf("%s.iter_unique(...)", e.over.String()) }
