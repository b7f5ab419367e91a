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
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// DebugDirEnvVar overrides the directory the debug sidecar writes emitted
// sources to.
const DebugDirEnvVar = "CONVTOOLS_DEBUG_DIR"

// Options is the per-compilation scoped configuration: whether to write a
// debug sidecar, the converter's signature/method shape, and an ambient
// knob (debug cache size) a deployed service would want to tune without
// recompiling.
type Options struct {
	Debug                bool   `yaml:"debug"`
	DebugDir             string `yaml:"debug_dir"`
	Signature            string `yaml:"signature"`
	Method               bool   `yaml:"method"`
	ClassMethod          bool   `yaml:"class_method"`
	MaxDebugCacheEntries int    `yaml:"max_debug_cache_entries"`
}

// DefaultOptions returns the library defaults, consulting CONVTOOLS_DEBUG_DIR
// for the debug directory and defaulting the debug cache cap to 100 entries.
func DefaultOptions() *Options {
	return &Options{
		Debug:                false,
		DebugDir:             os.Getenv(DebugDirEnvVar),
		Signature:            "data_",
		Method:               false,
		ClassMethod:          false,
		MaxDebugCacheEntries: 100,
	}
}

// Merge returns a copy of o with every non-zero field of partial applied on
// top. A nil partial returns o unchanged (copied).
func (o *Options) Merge(partial *Options) *Options {
	out := *o
	if partial == nil {
		return &out
	}
	if partial.Debug {
		out.Debug = true
	}
	if partial.DebugDir != "" {
		out.DebugDir = partial.DebugDir
	}
	if partial.Signature != "" {
		out.Signature = partial.Signature
	}
	if partial.Method {
		out.Method = true
	}
	if partial.ClassMethod {
		out.ClassMethod = true
	}
	if partial.MaxDebugCacheEntries != 0 {
		out.MaxDebugCacheEntries = partial.MaxDebugCacheEntries
	}
	return &out
}

// LoadOptions reads a base Options document from a YAML file, the way a
// deployed service would load defaults for every converter it compiles at
// startup. Per-call options passed to GenConverter still override whatever
// this loads.
func LoadOptions(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading options file %s", path)
	}
	out := DefaultOptions()
	if err := yaml.Unmarshal(data, out); err != nil {
		return nil, errors.Wrapf(err, "parsing options file %s", path)
	}
	return out, nil
}

// OptionsCtxWith is a scoped acquisition of options: it pushes partial onto
// ctx's option stack and guarantees the stack is restored on every exit
// path, including a panic unwinding through fn.
func OptionsCtxWith(ctx *Context, partial *Options, fn func(*Options) error) (err error) {
	opts := ctx.PushOptions(partial)
	defer ctx.PopOptions()
	return fn(opts)
}
