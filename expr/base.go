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

// Package expr implements the conversion-expression algebra: the closed set
// of smart constructors building core.Expression nodes, from
// `this`/`item`/`attr` through comprehensions, pipes, labels, and control
// flow. Every combinator returns a new node; none mutates its receiver.
package expr

import "github.com/convtools-go/convtools/core"

// base is embedded by every node to hold the dependency set cached at
// construction time and the node's children, satisfying Deps()/Children()
// without repeating the boilerplate in each node type.
type base struct {
	deps     core.DepSet
	children []core.Expression
}

func (b base) Deps() core.DepSet            { return b.deps }
func (b base) Children() []core.Expression { return b.children }

func newBase(own core.ContentType, children ...core.Expression) base {
	deps := make([]core.DepSet, len(children))
	for i, c := range children {
		deps[i] = c.Deps()
	}
	return base{deps: core.Merge(own, deps...), children: children}
}
