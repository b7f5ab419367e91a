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

package ctl

import "github.com/convtools-go/convtools/core"

// base mirrors package expr's node-construction helper: every ctl node
// embeds it to get Deps()/Children() for free.
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
