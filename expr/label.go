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

// labelExpr is `c.label(name)`: reads a label cell written earlier in the
// same converter invocation.
type labelExpr struct {
	base
	name string
}

// Label reads the named label cell.
func Label(name string) core.Expression {
	d := core.WithLabel(core.Leaf(core.UsesLabel), name)
	return &labelExpr{base: base{deps: d}, name: name}
}

func (e *labelExpr) Eval(rt *core.Runtime) (core.Value, error) {
	v, ok := rt.GetLabel(e.name)
	if !ok {
		return nil, core.ErrUnknownLabel.New(e.name)
	}
	return v, nil
}

func (e *labelExpr) String() string { return fmt.Sprintf("c.label(%q)", e.name) }
