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
	errkind "gopkg.in/src-d/go-errors.v1"
)

// Compile-time error kinds. Callers distinguish them with `ErrXxx.Is(err)`,
// the standard src-d/go-errors.v1 sentinel-kind pattern.
var (
	// ErrUnknownLabel is raised when label(name) has no write-dominator in
	// the emitted order.
	ErrUnknownLabel = errkind.NewKind("unknown label reference: %s")
	// ErrLabelNotWritten is raised when a label is read before any write in
	// every reachable execution path.
	ErrLabelNotWritten = errkind.NewKind("label %q is read before it is ever written")
	// ErrLabelLeak is raised when a label declared inside a pipe's inner
	// scope is referenced from the outer scope.
	ErrLabelLeak = errkind.NewKind("label %q declared inside a pipe is not observable outside it")
	// ErrGroupKeyMismatch is raised when a group_by key is referenced in the
	// aggregate expression outside of a reducer, but does not match a
	// declared group-by key expression exactly.
	ErrGroupKeyMismatch = errkind.NewKind("expression %q is used as a bare (non-reducer) value in an aggregate but is not one of the declared group-by keys")
	// ErrNestedReducer is raised when a reducer's input expression itself
	// contains another reducer.
	ErrNestedReducer = errkind.NewKind("a reducer cannot be nested inside another reducer's input: %s")
	// ErrConflictingReducerKinds is raised when two reducers sharing a dict
	// key disagree on aggregation kind.
	ErrConflictingReducerKinds = errkind.NewKind("conflicting reducer kinds on %s")
	// ErrJoinSideLeak is raised when LEFT/RIGHT pseudo-inputs are referenced
	// outside a join predicate/post-join expression.
	ErrJoinSideLeak = errkind.NewKind("LEFT/RIGHT may only be referenced inside a join predicate or its post-join projection")
	// ErrUnusedLabel is a warning-only kind: a label was written but never
	// read. Compilation does not fail; GenConverter logs it.
	ErrUnusedLabel = errkind.NewKind("label %q is written but never read")
)

// Runtime error kinds.
var (
	// ErrExpectFailed is raised by expect(condition, msg) when condition is
	// falsy.
	ErrExpectFailed = errkind.NewKind("expectation failed: %s")
	// ErrNoFormatMatched is raised by date/time parse helpers (out of core
	// scope, kept here since the kind belongs to the shared error surface
	// collaborators are expected to reuse).
	ErrNoFormatMatched = errkind.NewKind("no format matched input %q and no default was given")

	// ErrZeroDivision is raised by /, //, and % when the right-hand operand
	// is zero, the Go analogue of Python's ZeroDivisionError — named so a
	// try_/except_ clause can match it with ctl.KindMatcher.
	ErrZeroDivision = errkind.NewKind("division by zero")
	// ErrTypeError is raised when an operation receives a value it cannot
	// coerce to the type it needs (e.g. a non-numeric arithmetic operand),
	// the analogue of Python's TypeError.
	ErrTypeError = errkind.NewKind("%s")
	// ErrKeyError is raised by item(...) when a key is missing from a
	// mapping and no default was given, the analogue of Python's KeyError.
	ErrKeyError = errkind.NewKind("key %v not found in %v")
	// ErrIndexError is raised by item(...) when an index is out of range
	// on a sequence and no default was given, the analogue of Python's
	// IndexError.
	ErrIndexError = errkind.NewKind("index %v out of range for %v")
	// ErrAttributeError is raised by attr(...) when a named field/getter is
	// missing and no default was given, the analogue of Python's
	// AttributeError.
	ErrAttributeError = errkind.NewKind("no attribute %q on %v")
)
