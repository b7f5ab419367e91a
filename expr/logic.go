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
	"reflect"

	"github.com/convtools-go/convtools/core"
)

// Truthy is package expr's definition of truthiness: nil, false, zero
// numbers, empty strings/slices/maps are falsy; everything else is truthy.
// Used by And/Or/Not/If/TakeWhile/DropWhile/comprehension `where`. Packages
// chunk, join and reduce use their own narrower test, under which only nil
// and false are falsy.
func Truthy(v core.Value) bool {
	if v == nil {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return rv.Len() != 0
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

type andExpr struct {
	base
	l, r core.Expression
}

// And short-circuits: if l is falsy, its value is returned; otherwise r's
// value is returned (Python-style `and`, not a boolean-only `&&`).
func And(l, r core.Expression) core.Expression { return &andExpr{newBase(0, l, r), l, r} }

// IsAnd reports whether e is a top-level And(l, r) node, exposing l and r
// so a caller can flatten a conjunction without re-implementing short-
// circuit evaluation itself (join's predicate-splitting analysis uses
// this to pull a compound join condition apart into its conjuncts).
func IsAnd(e core.Expression) (l, r core.Expression, ok bool) {
	a, ok := e.(*andExpr)
	if !ok {
		return nil, nil, false
	}
	return a.l, a.r, true
}

func (e *andExpr) Eval(rt *core.Runtime) (core.Value, error) {
	lv, err := e.l.Eval(rt)
	if err != nil {
		return nil, err
	}
	if !Truthy(lv) {
		return lv, nil
	}
	return e.r.Eval(rt)
}
func (e *andExpr) String() string { return fmt.Sprintf("(%s and %s)", e.l.String(), e.r.String()) }

type orExpr struct {
	base
	l, r core.Expression
}

// Or short-circuits: if l is truthy, its value is returned; otherwise r's.
func Or(l, r core.Expression) core.Expression { return &orExpr{newBase(0, l, r), l, r} }

func (e *orExpr) Eval(rt *core.Runtime) (core.Value, error) {
	lv, err := e.l.Eval(rt)
	if err != nil {
		return nil, err
	}
	if Truthy(lv) {
		return lv, nil
	}
	return e.r.Eval(rt)
}
func (e *orExpr) String() string { return fmt.Sprintf("(%s or %s)", e.l.String(), e.r.String()) }

type notExpr struct {
	base
	inner core.Expression
}

// Not negates inner's truthiness.
func Not(inner core.Expression) core.Expression { return &notExpr{newBase(0, inner), inner} }

func (e *notExpr) Eval(rt *core.Runtime) (core.Value, error) {
	v, err := e.inner.Eval(rt)
	if err != nil {
		return nil, err
	}
	return !Truthy(v), nil
}
func (e *notExpr) String() string { return fmt.Sprintf("(not %s)", e.inner.String()) }

type membershipExpr struct {
	base
	needle, haystack core.Expression
	negate           bool
}

// In builds `needle in haystack`; negate=true builds `not in`.
func In(needle, haystack core.Expression, negate bool) core.Expression {
	return &membershipExpr{newBase(0, needle, haystack), needle, haystack, negate}
}

func (e *membershipExpr) Eval(rt *core.Runtime) (core.Value, error) {
	n, err := e.needle.Eval(rt)
	if err != nil {
		return nil, err
	}
	h, err := e.haystack.Eval(rt)
	if err != nil {
		return nil, err
	}
	found, err := contains(h, n)
	if err != nil {
		return nil, err
	}
	if e.negate {
		return !found, nil
	}
	return found, nil
}

func (e *membershipExpr) String() string {
	op := "in"
	if e.negate {
		op = "not in"
	}
	return fmt.Sprintf("(%s %s %s)", e.needle.String(), op, e.haystack.String())
}

func contains(haystack, needle core.Value) (bool, error) {
	rv := reflect.ValueOf(haystack)
	switch rv.Kind() {
	case reflect.Map:
		for _, k := range rv.MapKeys() {
			if deepEqual(k.Interface(), needle) {
				return true, nil
			}
		}
		return false, nil
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if deepEqual(rv.Index(i).Interface(), needle) {
				return true, nil
			}
		}
		return false, nil
	case reflect.String:
		ns, ok := needle.(string)
		if !ok {
			return false, nil
		}
		return stringsContains(rv.String(), ns), nil
	}
	return false, nil
}

func stringsContains(haystack, needle string) bool {
	return len(needle) == 0 || indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	n := len(needle)
	for i := 0; i+n <= len(haystack); i++ {
		if haystack[i:i+n] == needle {
			return i
		}
	}
	return -1
}

type isExpr struct {
	base
	l, r   core.Expression
	negate bool
}

// Is builds identity comparison (primarily nil checks, since convtools
// values are not boxed with a stable identity beyond Go's own pointer
// identity rules). IsNot negates.
func Is(l, r core.Expression, negate bool) core.Expression {
	return &isExpr{newBase(0, l, r), l, r, negate}
}

func (e *isExpr) Eval(rt *core.Runtime) (core.Value, error) {
	lv, err := e.l.Eval(rt)
	if err != nil {
		return nil, err
	}
	rv, err := e.r.Eval(rt)
	if err != nil {
		return nil, err
	}
	same := lv == nil && rv == nil
	if !same {
		same = reflect.ValueOf(lv).Kind() == reflect.Ptr && lv == rv
	}
	if e.negate {
		return !same, nil
	}
	return same, nil
}

func (e *isExpr) String() string {
	op := "is"
	if e.negate {
		op = "is not"
	}
	return fmt.Sprintf("(%s %s %s)", e.l.String(), op, e.r.String())
}
