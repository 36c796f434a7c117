// Package cache memoizes selection results keyed by a normalized context
// fingerprint. Entries are pinned to the registry version they were computed
// against and drop out en masse when the registry reloads.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/opus67/skillctx/pkg/types/selection"
)

// DefaultCapacity is the entry limit when none is configured.
const DefaultCapacity = 128

// Fingerprint derives the normalized cache key for a context: sorted unique
// lowercase query tokens, sorted open-file suffixes, sorted directory
// prefixes, and the effective budget. Ordering differences between
// equivalent contexts never cause a miss.
func Fingerprint(reqCtx selection.Context) string {
	var b strings.Builder
	b.WriteString(strings.Join(queryTokens(reqCtx.QueryText), "|"))
	b.WriteByte('\n')
	b.WriteString(strings.Join(fileSuffixes(reqCtx.OpenFiles), "|"))
	b.WriteByte('\n')
	b.WriteString(strings.Join(dirPrefixes(reqCtx.ActiveDirectories), "|"))
	b.WriteByte('\n')
	b.WriteString(strconv.Itoa(reqCtx.EffectiveBudget()))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func queryTokens(query string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	return sortedUnique(tokens)
}

func fileSuffixes(paths []string) []string {
	var suffixes []string
	for _, path := range paths {
		suffix := strings.ToLower(filepath.Ext(path))
		if suffix == "" {
			suffix = strings.ToLower(filepath.Base(path))
		}
		suffixes = append(suffixes, suffix)
	}
	return sortedUnique(suffixes)
}

func dirPrefixes(paths []string) []string {
	var prefixes []string
	for _, path := range paths {
		path = strings.ToLower(strings.TrimRight(strings.ReplaceAll(path, "\\", "/"), "/"))
		if path != "" {
			prefixes = append(prefixes, path)
		}
	}
	return sortedUnique(prefixes)
}

func sortedUnique(items []string) []string {
	sort.Strings(items)
	out := items[:0]
	for i, item := range items {
		if i == 0 || item != items[i-1] {
			out = append(out, item)
		}
	}
	return out
}

type entry struct {
	fingerprint string
	version     uint64
	selection   *selection.Selection
}

// LRU is a fixed-capacity, mutex-guarded least-recently-used cache of
// selections. Selections are immutable, so returning the stored pointer is
// safe. Racing inserts for one fingerprint simply overwrite.
type LRU struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	entries  map[string]*list.Element
	hits     uint64
	misses   uint64
}

// NewLRU creates a cache holding at most capacity entries.
func NewLRU(capacity int) *LRU {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &LRU{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

// Get returns the cached selection for the fingerprint if it was computed
// against the given registry version. Stale entries are evicted on sight.
func (c *LRU) Get(fingerprint string, version uint64) (*selection.Selection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[fingerprint]
	if !ok {
		c.misses++
		return nil, false
	}
	ent := elem.Value.(*entry)
	if ent.version != version {
		c.order.Remove(elem)
		delete(c.entries, fingerprint)
		c.misses++
		return nil, false
	}

	c.order.MoveToFront(elem)
	c.hits++
	return ent.selection, true
}

// Put stores a selection computed against the given registry version.
func (c *LRU) Put(fingerprint string, version uint64, sel *selection.Selection) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[fingerprint]; ok {
		ent := elem.Value.(*entry)
		ent.version = version
		ent.selection = sel
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(&entry{fingerprint: fingerprint, version: version, selection: sel})
	c.entries[fingerprint] = elem

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).fingerprint)
	}
}

// Invalidate drops every entry, regardless of version.
func (c *LRU) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.entries = make(map[string]*list.Element)
}

// Len reports the number of live entries.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// HitRate reports the fraction of lookups served from cache since startup.
func (c *LRU) HitRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}
