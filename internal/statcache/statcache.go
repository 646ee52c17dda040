// Package statcache memoizes disk.Interface.Stat results, keyed by
// canonicalized path, fronting C1 the way the teacher fronts its content
// store with an in-process cache before falling back to disk.
package statcache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"forge/internal/disk"
	"forge/internal/graph"
)

// DefaultSize bounds the number of distinct paths memoized at once; large
// enough for real build graphs without unbounded growth on pathological
// ones.
const DefaultSize = 8192

// Cache wraps a disk.Interface, memoizing Stat and invalidating an entry
// whenever Invalidate is told a write happened.
type Cache struct {
	inner disk.Interface
	stats *lru.Cache[string, graph.TimeStamp]
}

// New wraps inner with an LRU stat cache of size entries (DefaultSize if
// size <= 0).
func New(inner disk.Interface, size int) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[string, graph.TimeStamp](size)
	if err != nil {
		// Only returns an error for a non-positive size, which is
		// excluded above.
		panic(err)
	}
	return &Cache{inner: inner, stats: c}
}

// Stat returns the memoized mtime for path, consulting the wrapped
// disk.Interface on a cache miss.
func (c *Cache) Stat(path string) (graph.TimeStamp, error) {
	path = graph.CanonicalizePath(path)
	if ts, ok := c.stats.Get(path); ok {
		return ts, nil
	}
	ts, err := c.inner.Stat(path)
	if err != nil {
		return ts, err
	}
	c.stats.Add(path, ts)
	return ts, nil
}

// Invalidate drops any memoized mtime for path, called by the builder
// after a command writes to it.
func (c *Cache) Invalidate(path string) {
	c.stats.Remove(graph.CanonicalizePath(path))
}

func (c *Cache) ReadFile(path string) ([]byte, error) { return c.inner.ReadFile(path) }

func (c *Cache) WriteFile(path string, data []byte) error {
	if err := c.inner.WriteFile(path, data); err != nil {
		return err
	}
	c.Invalidate(path)
	return nil
}

func (c *Cache) MakeDir(path string) error  { return c.inner.MakeDir(path) }
func (c *Cache) MakeDirs(path string) error { return c.inner.MakeDirs(path) }

func (c *Cache) RemoveFile(path string) disk.RemoveResult {
	r := c.inner.RemoveFile(path)
	c.Invalidate(path)
	return r
}
