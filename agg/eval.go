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

package agg

import (
	"fmt"

	"github.com/convtools-go/convtools/core"
)

// groupState is one group's running state: the representative row used to
// evaluate the output expression's key/default references, and one buffer
// per discovered reducer, in e.reducers order.
type groupState struct {
	row     core.Value
	buffers []interface{}
}

// Eval runs the fill phase (stream over once, fold every row into its
// group's reducer buffers) followed by the hot phase (finalize each group
// in first-seen order and evaluate output against it).
func (e *aggExpr) Eval(rt *core.Runtime) (core.Value, error) {
	ov, err := e.over.Eval(rt)
	if err != nil {
		return nil, err
	}
	it, err := core.Iterate(ov)
	if err != nil {
		return nil, err
	}

	order := []string{}
	groups := map[string]*groupState{}

	for {
		row, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		rowRT := rt.Child(row)

		groupKey := ""
		if len(e.keys) > 0 {
			parts := make([]core.Value, len(e.keys))
			for i, k := range e.keys {
				kv, err := k.Eval(rowRT)
				if err != nil {
					return nil, err
				}
				parts[i] = kv
			}
			groupKey = hashKeyTuple(parts)
		}

		g, ok := groups[groupKey]
		if !ok {
			g = &groupState{row: row, buffers: make([]interface{}, len(e.reducers))}
			for i, r := range e.reducers {
				g.buffers[i] = r.NewBuffer()
			}
			groups[groupKey] = g
			order = append(order, groupKey)
		}
		for i, r := range e.reducers {
			buf, err := r.Update(g.buffers[i], rowRT)
			if err != nil {
				return nil, err
			}
			g.buffers[i] = buf
		}
	}

	if len(e.keys) == 0 && len(order) == 0 {
		// An empty source still produces one implicit group for a plain
		// aggregate (every reducer finalizes from its own empty state).
		g := &groupState{buffers: make([]interface{}, len(e.reducers))}
		for i, r := range e.reducers {
			g.buffers[i] = r.NewBuffer()
		}
		groups[""] = g
		order = append(order, "")
	}

	results := make([]core.Value, 0, len(order))
	for _, key := range order {
		g := groups[key]
		groupRT := rt.Child(g.row)
		for i, r := range e.reducers {
			v, err := r.Finalize(g.buffers[i], groupRT)
			if err != nil {
				return nil, err
			}
			groupRT.SetReducerValue(r, v)
		}
		v, err := e.output.Eval(groupRT)
		if err != nil {
			return nil, err
		}
		results = append(results, v)
	}

	if len(e.keys) == 0 {
		return results[0], nil
	}
	return results, nil
}

// hashKeyTuple builds a comparable Go map key from an arbitrary tuple of
// group-by key values. Values are rendered through their Go type and %v
// form rather than compared structurally; this is a deliberate, documented
// simplification (see DESIGN.md) rather than a generic structural-equality
// implementation.
func hashKeyTuple(parts []core.Value) string {
	s := ""
	for _, p := range parts {
		s += fmt.Sprintf("%T:%v|", p, p)
	}
	return s
}
