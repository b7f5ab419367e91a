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

package join

import (
	"fmt"

	"github.com/convtools-go/convtools/core"
)

// rightIndex is the hash index over the right-hand side, built once up
// front from the fully drained right-hand input before any left row is
// probed. Buckets are keyed by the right-hand equality-term tuple,
// rendered the same way package agg renders group-by key tuples.
type rightIndex struct {
	buckets map[string][]core.Value
}

func buildRightIndex(rt *core.Runtime, rightRows []core.Value, eqTerms []EqTerm) (*rightIndex, error) {
	idx := &rightIndex{buckets: map[string][]core.Value{}}
	for _, row := range rightRows {
		rowRT := rt.Child(Pair{Right: row, HasRight: true})
		key, err := eqKey(rowRT, eqTerms, false)
		if err != nil {
			return nil, err
		}
		idx.buckets[key] = append(idx.buckets[key], row)
	}
	return idx, nil
}

func eqKey(rt *core.Runtime, eqTerms []EqTerm, left bool) (string, error) {
	s := ""
	for _, t := range eqTerms {
		e := t.Right
		if left {
			e = t.Left
		}
		v, err := e.Eval(rt)
		if err != nil {
			return "", err
		}
		s += fmt.Sprintf("%T:%v|", v, v)
	}
	return s, nil
}

// Eval streams Pair values: for Inner/Left/Right/Outer, one Pair per
// matched (left, right) candidate passing the residual predicate; Left and
// Outer additionally emit a Pair{Left: row, HasRight: false} for every left
// row with no match; Right and Outer do the symmetric thing for
// unmatched right rows; Cross emits every (left, right) combination with
// no index at all.
func (e *joinExpr) Eval(rt *core.Runtime) (core.Value, error) {
	lv, err := e.left.Eval(rt)
	if err != nil {
		return nil, err
	}
	rv, err := e.right.Eval(rt)
	if err != nil {
		return nil, err
	}
	lit, err := core.Iterate(lv)
	if err != nil {
		return nil, err
	}
	leftRows, err := core.Drain(lit)
	if err != nil {
		return nil, err
	}
	rit, err := core.Iterate(rv)
	if err != nil {
		return nil, err
	}
	rightRows, err := core.Drain(rit)
	if err != nil {
		return nil, err
	}

	if e.strategy == Cross {
		return e.crossIter(rt, leftRows, rightRows), nil
	}

	idx, err := buildRightIndex(rt, rightRows, e.eqTerms)
	if err != nil {
		return nil, err
	}
	var pairs []core.Value
	rightMatched := map[string]map[int]bool{}

	for _, lrow := range leftRows {
		lrowRT := rt.Child(Pair{Left: lrow, HasLeft: true})
		key, err := eqKey(lrowRT, e.eqTerms, true)
		if err != nil {
			return nil, err
		}
		candidates := idx.buckets[key]
		matchedAny := false
		for i, rrow := range candidates {
			pair := Pair{Left: lrow, Right: rrow, HasLeft: true, HasRight: true}
			ok := true
			if e.residual != nil {
				pairRT := rt.Child(pair)
				rv, err := e.residual.Eval(pairRT)
				if err != nil {
					return nil, err
				}
				ok = truthy(rv)
			}
			if !ok {
				continue
			}
			matchedAny = true
			pairs = append(pairs, pair)
			if e.strategy == Right || e.strategy == Outer {
				if rightMatched[key] == nil {
					rightMatched[key] = map[int]bool{}
				}
				rightMatched[key][i] = true
			}
		}
		if !matchedAny && (e.strategy == Left || e.strategy == Outer) {
			pairs = append(pairs, Pair{Left: lrow, HasLeft: true, HasRight: false})
		}
	}

	if e.strategy == Right || e.strategy == Outer {
		for key, rows := range idx.buckets {
			seen := rightMatched[key]
			for i, rrow := range rows {
				if seen != nil && seen[i] {
					continue
				}
				pairs = append(pairs, Pair{Right: rrow, HasLeft: false, HasRight: true})
			}
		}
	}

	return core.SliceIter(pairs), nil
}

func (e *joinExpr) crossIter(rt *core.Runtime, leftRows, rightRows []core.Value) core.RowIter {
	li, ri := 0, 0
	return core.FuncIter(func() (core.Value, bool, error) {
		for {
			if li >= len(leftRows) {
				return nil, false, nil
			}
			if ri >= len(rightRows) {
				li++
				ri = 0
				continue
			}
			pair := Pair{Left: leftRows[li], Right: rightRows[ri], HasLeft: true, HasRight: true}
			ri++
			if e.residual == nil {
				return pair, true, nil
			}
			pairRT := rt.Child(pair)
			rv, err := e.residual.Eval(pairRT)
			if err != nil {
				return nil, false, err
			}
			if truthy(rv) {
				return pair, true, nil
			}
		}
	})
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
