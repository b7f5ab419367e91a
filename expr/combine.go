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

	"github.com/convtools-go/convtools/core"
)

// zipExpr is `c.zip(over...)`: pulls one element from each source per step,
// yielding a []Value tuple, and stops at the shortest source. zipLongest
// keeps going to the longest source, filling exhausted ones with fill.
type zipExpr struct {
	base
	sources  []core.Expression
	longest  bool
	fill     core.Value
}

// Zip builds the shortest-source zip combinator.
func Zip(sources ...core.Expression) core.Expression {
	return &zipExpr{base: newBase(0, sources...), sources: sources}
}

// ZipLongest builds the longest-source zip combinator, filling exhausted
// sources with fill.
func ZipLongest(fill core.Value, sources ...core.Expression) core.Expression {
	return &zipExpr{base: newBase(0, sources...), sources: sources, longest: true, fill: fill}
}

func (e *zipExpr) Eval(rt *core.Runtime) (core.Value, error) {
	iters := make([]core.RowIter, len(e.sources))
	for i, s := range e.sources {
		v, err := s.Eval(rt)
		if err != nil {
			return nil, err
		}
		it, err := core.Iterate(v)
		if err != nil {
			return nil, err
		}
		iters[i] = it
	}
	return core.FuncIter(func() (core.Value, bool, error) {
		row := make([]core.Value, len(iters))
		anyOK := false
		for i, it := range iters {
			if it == nil {
				row[i] = e.fill
				continue
			}
			v, ok, err := it.Next()
			if err != nil {
				return nil, false, err
			}
			if !ok {
				if !e.longest {
					return nil, false, nil
				}
				iters[i] = nil
				row[i] = e.fill
				continue
			}
			anyOK = true
			row[i] = v
		}
		if !anyOK {
			return nil, false, nil
		}
		return row, true, nil
	}), nil
}

func (e *zipExpr) String() string {
	if e.longest {
		return "c.zip_longest(...)"
	}
	return "c.zip(...)"
}

// repeatExpr is `c.repeat(value, times)`: yields value exactly times times
// (times < 0 means unbounded — the caller is expected to bound it with
// take_while or a downstream consumer that stops pulling).
type repeatExpr struct {
	base
	value core.Expression
	times core.Expression // nil means unbounded
}

// Repeat builds the repeat-stream combinator. A nil times yields forever.
func Repeat(value, times core.Expression) core.Expression {
	if times != nil {
		return &repeatExpr{base: newBase(0, value, times), value: value, times: times}
	}
	return &repeatExpr{base: newBase(0, value), value: value}
}

func (e *repeatExpr) Eval(rt *core.Runtime) (core.Value, error) {
	v, err := e.value.Eval(rt)
	if err != nil {
		return nil, err
	}
	n := -1
	if e.times != nil {
		tv, err := e.times.Eval(rt)
		if err != nil {
			return nil, err
		}
		iv, ok := asInt(tv)
		if !ok {
			return nil, fmt.Errorf("c.repeat: times %v is not an integer", tv)
		}
		n = iv
	}
	i := 0
	return core.FuncIter(func() (core.Value, bool, error) {
		if n >= 0 && i >= n {
			return nil, false, nil
		}
		i++
		return v, true, nil
	}), nil
}

func (e *repeatExpr) String() string { return "c.repeat(...)" }

// flattenExpr is `over.flatten()`: flattens one level of nested iterables.
type flattenExpr struct {
	base
	over core.Expression
}

// Flatten builds the one-level flatten combinator.
func Flatten(over core.Expression) core.Expression {
	return &flattenExpr{base: newBase(0, over), over: over}
}

func (e *flattenExpr) Eval(rt *core.Runtime) (core.Value, error) {
	ov, err := e.over.Eval(rt)
	if err != nil {
		return nil, err
	}
	outer, err := core.Iterate(ov)
	if err != nil {
		return nil, err
	}
	var inner core.RowIter
	return core.FuncIter(func() (core.Value, bool, error) {
		for {
			if inner != nil {
				v, ok, err := inner.Next()
				if err != nil {
					return nil, false, err
				}
				if ok {
					return v, true, nil
				}
				inner = nil
			}
			ov, ok, err := outer.Next()
			if err != nil || !ok {
				return nil, ok, err
			}
			inner, err = core.Iterate(ov)
			if err != nil {
				return nil, false, err
			}
		}
	}), nil
}

func (e *flattenExpr) String() string { return fmt.Sprintf("%s.flatten()", e.over.String()) }
