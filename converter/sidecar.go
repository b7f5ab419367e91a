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

package converter

import (
	"container/list"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/convtools-go/convtools/core"
)

// sidecar writes a debug dump of a compiled tree to opts.DebugDir, one file
// per Converter, and keeps track of which files it has written in an LRU
// list capped at opts.MaxDebugCacheEntries: once the cap is exceeded the
// least-recently-touched dump file is removed from disk, so a long-lived
// process compiling many converters under Debug:true does not grow its
// debug directory without bound.
type sidecar struct {
	mu       sync.Mutex
	dir      string
	cap      int
	order    *list.List
	byName   map[string]*list.Element
	filePath map[string]string
}

func newSidecar(opts *core.Options) (*sidecar, error) {
	dir := opts.DebugDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating debug dir %s", dir)
	}
	cap := opts.MaxDebugCacheEntries
	if cap <= 0 {
		cap = 100
	}
	return &sidecar{
		dir:      dir,
		cap:      cap,
		order:    list.New(),
		byName:   map[string]*list.Element{},
		filePath: map[string]string{},
	}, nil
}

// dump renders root's debug form (every node's String(), plus any helper
// names the Context minted for materialized subexpressions) and writes it
// under a minted filename, evicting the oldest entry if the cache is full.
func (s *sidecar) dump(ctx *core.Context, root core.Expression) {
	name := ctx.Mint("converter")
	body := fmt.Sprintf("root: %s\n", root.String())
	for e, helperName := range ctx.Helpers() {
		body += fmt.Sprintf("helper %s: %s\n", helperName, e.String())
	}
	path := filepath.Join(s.dir, name+".debug")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		ctx.Log.Warnf("convtools: writing debug sidecar %s: %v", path, err)
		return
	}
	s.touch(name, path)
}

func (s *sidecar) touch(name, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.byName[name]; ok {
		s.order.MoveToFront(el)
		return
	}
	el := s.order.PushFront(name)
	s.byName[name] = el
	s.filePath[name] = path
	if s.order.Len() > s.cap {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		oldName := oldest.Value.(string)
		delete(s.byName, oldName)
		if p, ok := s.filePath[oldName]; ok {
			_ = os.Remove(p)
			delete(s.filePath, oldName)
		}
	}
}

// reportPanic reopens the sidecar (best-effort) to append the panic value
// next to the tree it was evaluating, so a post-mortem read of the debug
// directory shows both the compiled shape and what it died on.
func (s *sidecar) reportPanic(root core.Expression, recovered interface{}) {
	path := filepath.Join(s.dir, "panic.debug")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "panic evaluating %s: %v\n", root.String(), recovered)
}
