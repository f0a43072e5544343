/*
NaiveSystems Analyze - A tool for static code analysis
Copyright (C) 2023  Naive Systems Ltd.

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package implicitflags

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/golang/glog"
	"golang.org/x/exp/maps"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v2"
	"naive.systems/logparser/atomic"
)

// Runner returns the raw default flags of a compiler for a target. The
// result is filtered by the Cache, so a Runner may return everything it sees.
type Runner interface {
	DefaultFlags(ctx context.Context, compiler, target string) ([]string, error)
}

type Key struct {
	Compiler string
	Target   string
}

// Layout of one entry in the side file.
type cacheEntry struct {
	Compiler string   `yaml:"compiler"`
	Target   string   `yaml:"target"`
	Flags    []string `yaml:"flags"`
}

// Cache maps (compiler, target) pairs to their filtered implicit flags. It
// is loaded from a side file at the start of a parse pass and flushed back at
// its end. A Cache is safe for concurrent use; the compiler is queried at
// most once per pair for the lifetime of the Cache.
type Cache struct {
	path   string
	runner Runner

	mu      sync.Mutex
	entries map[Key][]string
	// Pairs whose query failed. They resolve to no flags and are not persisted.
	failed map[Key]bool
	dirty  bool

	queries singleflight.Group
}

// NewCache returns an empty cache persisted at path. An empty path keeps the
// cache in memory only; a nil runner never queries a compiler.
func NewCache(path string, runner Runner) *Cache {
	return &Cache{
		path:    path,
		runner:  runner,
		entries: map[Key][]string{},
		failed:  map[Key]bool{},
	}
}

func readSideFile(path string) ([]cacheEntry, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []cacheEntry
	if err := yaml.Unmarshal(contents, &entries); err != nil {
		return nil, fmt.Errorf("yaml.Unmarshal: %v", err)
	}
	return entries, nil
}

// Load reads the side file into memory. A missing side file is not an error.
// Entries already in memory win over the ones read.
func (c *Cache) Load() error {
	if c.path == "" {
		return nil
	}
	entries, err := readSideFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range entries {
		key := Key{entry.Compiler, entry.Target}
		if _, exist := c.entries[key]; !exist {
			c.entries[key] = entry.Flags
		}
	}
	return nil
}

// Lookup returns a copy of the cached flags of a pair without querying.
func (c *Cache) Lookup(compiler, target string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	flags, exist := c.entries[Key{compiler, target}]
	if !exist {
		return nil, false
	}
	return append([]string(nil), flags...), true
}

// Store records the flags of a pair. They are written to the side file by the next Flush.
func (c *Cache) Store(compiler, target string, flags []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := Key{compiler, target}
	c.entries[key] = append([]string{}, flags...)
	delete(c.failed, key)
	c.dirty = true
}

// Resolve returns the implicit flags of a pair, querying the compiler if the
// pair is not cached yet. A failed query resolves to no flags.
func (c *Cache) Resolve(ctx context.Context, compiler, target string) []string {
	if flags, exist := c.Lookup(compiler, target); exist {
		return flags
	}
	key := Key{compiler, target}
	c.mu.Lock()
	failed := c.failed[key]
	c.mu.Unlock()
	if failed || c.runner == nil {
		return nil
	}
	result, _, _ := c.queries.Do(compiler+"\x00"+target, func() (interface{}, error) {
		if flags, exist := c.Lookup(compiler, target); exist {
			return flags, nil
		}
		glog.V(1).Infof("querying implicit flags of %s (target %q)", compiler, target)
		rawFlags, err := c.runner.DefaultFlags(ctx, compiler, target)
		if err != nil {
			glog.Errorf("implicit flags of %s (target %q) are unavailable: %v", compiler, target, err)
			c.mu.Lock()
			c.failed[key] = true
			c.mu.Unlock()
			return []string(nil), nil
		}
		flags := Filter(rawFlags)
		c.Store(compiler, target, flags)
		return flags, nil
	})
	return append([]string(nil), result.([]string)...)
}

// Flush writes the cache to its side file if anything was stored since the
// last flush. Entries another pass wrote to the side file in the meantime are
// kept. Passes flushing at the same time are serialized by a lock file next to
// the side file, and the side file is replaced atomically, so readers never
// observe a partial file.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.path == "" || !c.dirty {
		return nil
	}
	lock := flock.New(c.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("flock.Lock: %v", err)
	}
	defer lock.Unlock()
	merged := map[Key][]string{}
	onDisk, err := readSideFile(c.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		glog.Warningf("ignoring unreadable compiler info file %s: %v", c.path, err)
	}
	for _, entry := range onDisk {
		merged[Key{entry.Compiler, entry.Target}] = entry.Flags
	}
	for key, flags := range c.entries {
		merged[key] = flags
	}
	entries := make([]cacheEntry, 0, len(merged))
	for key, flags := range merged {
		entries = append(entries, cacheEntry{Compiler: key.Compiler, Target: key.Target, Flags: flags})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Compiler != entries[j].Compiler {
			return entries[i].Compiler < entries[j].Compiler
		}
		return entries[i].Target < entries[j].Target
	})
	contents, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("yaml.Marshal: %v", err)
	}
	if err := atomic.WriteFile(c.path, contents, 0644); err != nil {
		return fmt.Errorf("atomic.WriteFile: %v", err)
	}
	c.dirty = false
	return nil
}

// Keys returns the cached pairs, sorted by compiler then target. Pairs whose
// query failed are not included.
func (c *Cache) Keys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := maps.Keys(c.entries)
	sort.Slice(keys, func(i, j int) bool {
		return strings.Compare(keys[i].Compiler+"\x00"+keys[i].Target, keys[j].Compiler+"\x00"+keys[j].Target) < 0
	})
	return keys
}
