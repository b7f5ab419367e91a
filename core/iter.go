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

package core

import (
	"reflect"

	"github.com/pkg/errors"
)

// RowIter is the lazy-sequence boundary of the execution model:
// consumers pull one element at a time. Every operator whose elements
// should not all be materialized at once (generator comprehensions, iter,
// join output, chunking, windowing, take_while/drop_while) returns one.
type RowIter interface {
	// Next returns the next element. ok is false once the sequence is
	// exhausted; err signals a failure encountered while producing the
	// next element.
	Next() (Value, bool, error)
}

// FuncIter adapts a pull function to RowIter.
type FuncIter func() (Value, bool, error)

// Next implements RowIter.
func (f FuncIter) Next() (Value, bool, error) { return f() }

// SliceIter returns a RowIter walking a pre-built slice of values.
func SliceIter(items []Value) RowIter {
	i := 0
	return FuncIter(func() (Value, bool, error) {
		if i >= len(items) {
			return nil, false, nil
		}
		v := items[i]
		i++
		return v, true, nil
	})
}

// Iterate adapts an arbitrary Go value to a RowIter: a RowIter is returned
// unchanged; a slice or array is walked in order; a map is walked over its
// keys (matching the source language's "iterating a mapping yields its
// keys" convention); anything else is an error, since it is not iterable.
func Iterate(v Value) (RowIter, error) {
	switch it := v.(type) {
	case RowIter:
		return it, nil
	case []Value:
		return SliceIter(it), nil
	case nil:
		return nil, errors.New("cannot iterate over nil")
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		n := rv.Len()
		i := 0
		return FuncIter(func() (Value, bool, error) {
			if i >= n {
				return nil, false, nil
			}
			el := rv.Index(i).Interface()
			i++
			return el, true, nil
		}), nil
	case reflect.Map:
		keys := rv.MapKeys()
		i := 0
		return FuncIter(func() (Value, bool, error) {
			if i >= len(keys) {
				return nil, false, nil
			}
			k := keys[i]
			i++
			return k.Interface(), true, nil
		}), nil
	default:
		return nil, errors.Errorf("value of type %T is not iterable", v)
	}
}

// Drain pulls every remaining element of it into a slice. Used by eager
// collection builders (list/tuple/set/dict comprehensions) and tests; never
// used by the lazy operators themselves.
func Drain(it RowIter) ([]Value, error) {
	var out []Value
	for {
		v, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, v)
	}
}
