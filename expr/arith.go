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

	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"github.com/convtools-go/convtools/core"
)

// ArithOp enumerates the arithmetic operators `c.call`-free sugar exposes
// directly on expressions (+, -, *, /, //, %).
type ArithOp int

const (
	Add ArithOp = iota
	Sub
	Mul
	Div
	FloorDiv
	Mod
)

var arithSymbols = map[ArithOp]string{Add: "+", Sub: "-", Mul: "*", Div: "/", FloorDiv: "//", Mod: "%"}

type arithExpr struct {
	base
	op   ArithOp
	l, r core.Expression
}

// BinOp builds an arithmetic expression, coercing both operands through
// github.com/spf13/cast before combining them.
func BinOp(op ArithOp, l, r core.Expression) core.Expression {
	return &arithExpr{base: newBase(0, l, r), op: op, l: l, r: r}
}

func (e *arithExpr) Eval(rt *core.Runtime) (core.Value, error) {
	lv, err := e.l.Eval(rt)
	if err != nil {
		return nil, err
	}
	rv, err := e.r.Eval(rt)
	if err != nil {
		return nil, err
	}
	if e.op == Add {
		if ls, ok := lv.(string); ok {
			if rs, ok := rv.(string); ok {
				return ls + rs, nil
			}
		}
	}
	return arithmetic(e.op, lv, rv)
}

func (e *arithExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.l.String(), arithSymbols[e.op], e.r.String())
}

func arithmetic(op ArithOp, lv, rv core.Value) (core.Value, error) {
	if isIntLike(lv) && isIntLike(rv) {
		li, _ := cast.ToInt64E(lv)
		ri, _ := cast.ToInt64E(rv)
		switch op {
		case Add:
			return li + ri, nil
		case Sub:
			return li - ri, nil
		case Mul:
			return li * ri, nil
		case Div:
			if ri == 0 {
				return nil, core.ErrZeroDivision.New()
			}
			return float64(li) / float64(ri), nil
		case FloorDiv:
			if ri == 0 {
				return nil, core.ErrZeroDivision.New()
			}
			q := li / ri
			if (li%ri != 0) && ((li < 0) != (ri < 0)) {
				q--
			}
			return q, nil
		case Mod:
			if ri == 0 {
				return nil, core.ErrZeroDivision.New()
			}
			m := li % ri
			if m != 0 && (m < 0) != (ri < 0) {
				m += ri
			}
			return m, nil
		}
	}

	lf, err := cast.ToFloat64E(lv)
	if err != nil {
		return nil, core.ErrTypeError.New(fmt.Sprintf("left operand %v is not numeric", lv))
	}
	rf, err := cast.ToFloat64E(rv)
	if err != nil {
		return nil, core.ErrTypeError.New(fmt.Sprintf("right operand %v is not numeric", rv))
	}
	switch op {
	case Add:
		return lf + rf, nil
	case Sub:
		return lf - rf, nil
	case Mul:
		return lf * rf, nil
	case Div:
		if rf == 0 {
			return nil, core.ErrZeroDivision.New()
		}
		return lf / rf, nil
	case FloorDiv:
		if rf == 0 {
			return nil, core.ErrZeroDivision.New()
		}
		q := lf / rf
		return float64(int64(q)), nil
	case Mod:
		if rf == 0 {
			return nil, core.ErrZeroDivision.New()
		}
		m := lf - rf*float64(int64(lf/rf))
		return m, nil
	}
	return nil, errors.Errorf("unsupported arithmetic op %d", op)
}

func isIntLike(v core.Value) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

// CompareOp enumerates the comparison operators.
type CompareOp int

const (
	Eq CompareOp = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

var compareSymbols = map[CompareOp]string{Eq: "==", Ne: "!=", Lt: "<", Le: "<=", Gt: ">", Ge: ">="}

type compareExpr struct {
	base
	op   CompareOp
	l, r core.Expression
}

// Compare builds a comparison expression.
func Compare(op CompareOp, l, r core.Expression) core.Expression {
	return &compareExpr{base: newBase(0, l, r), op: op, l: l, r: r}
}

func (e *compareExpr) Eval(rt *core.Runtime) (core.Value, error) {
	lv, err := e.l.Eval(rt)
	if err != nil {
		return nil, err
	}
	rv, err := e.r.Eval(rt)
	if err != nil {
		return nil, err
	}
	if e.op == Eq {
		return deepEqual(lv, rv), nil
	}
	if e.op == Ne {
		return !deepEqual(lv, rv), nil
	}
	c, err := compareValues(lv, rv)
	if err != nil {
		return nil, err
	}
	switch e.op {
	case Lt:
		return c < 0, nil
	case Le:
		return c <= 0, nil
	case Gt:
		return c > 0, nil
	case Ge:
		return c >= 0, nil
	}
	return nil, errors.Errorf("unsupported comparison op %d", e.op)
}

func (e *compareExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.l.String(), compareSymbols[e.op], e.r.String())
}

// IsEquality reports whether e is a top-level Eq comparison, exposing l
// and r (join's predicate-splitting analysis uses this to find the
// conjuncts it can turn into hash-equality terms).
func IsEquality(e core.Expression) (l, r core.Expression, ok bool) {
	c, ok := e.(*compareExpr)
	if !ok || c.op != Eq {
		return nil, nil, false
	}
	return c.l, c.r, true
}

func deepEqual(a, b core.Value) bool {
	if isNumeric(a) && isNumeric(b) {
		af, _ := cast.ToFloat64E(a)
		bf, _ := cast.ToFloat64E(b)
		return af == bf
	}
	return reflect.DeepEqual(a, b)
}

func isNumeric(v core.Value) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

func compareValues(a, b core.Value) (int, error) {
	if isNumeric(a) && isNumeric(b) {
		af, _ := cast.ToFloat64E(a)
		bf, _ := cast.ToFloat64E(b)
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		default:
			return 0, nil
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		switch {
		case as < bs:
			return -1, nil
		case as > bs:
			return 1, nil
		default:
			return 0, nil
		}
	}
	return 0, errors.Errorf("cannot compare %T and %T", a, b)
}
