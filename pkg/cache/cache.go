// Package cache provides an LRU cache of reconstructed graphs with disk
// persistence, keyed by bytecode content.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/l3aro/llvm2graph/pkg/cfg"
)

// ErrKeyNotFound is returned by GetControlFlowGraphs when the key is not in
// the cache. Callers distinguish it from a decode failure with errors.Is.
var ErrKeyNotFound = errors.New("key not found")

// Key derives the cache key for a bytecode unit from its content, so that
// recompiling identical bytecode hits the cache regardless of file paths.
func Key(bytecode string) string {
	sum := sha256.Sum256([]byte(bytecode))
	return hex.EncodeToString(sum[:])
}

// Entry is one cached bytecode unit: the encoded control-flow graphs
// reconstructed from it, plus access metadata for eviction.
type Entry struct {
	Key        string    `msgpack:"key"`
	Graphs     [][]byte  `msgpack:"graphs"`
	AccessedAt time.Time `msgpack:"accessed_at"`
	CreatedAt  time.Time `msgpack:"created_at"`
	Size       int       `msgpack:"size"` // sum of encoded graph bytes
}

// listItem is an item in the doubly-linked LRU list.
type listItem struct {
	Entry
	prev *listItem
	next *listItem
}

// list is a doubly-linked list with the most recently used item at the front.
type list struct {
	head *listItem
	tail *listItem
	len  int
}

func newList() *list {
	return &list{}
}

func (l *list) moveToFront(item *listItem) {
	if item == l.head {
		return
	}

	if item.prev != nil {
		item.prev.next = item.next
	}
	if item.next != nil {
		item.next.prev = item.prev
	}
	if item == l.tail {
		l.tail = item.prev
	}

	item.prev = nil
	item.next = l.head
	if l.head != nil {
		l.head.prev = item
	}
	l.head = item

	if l.tail == nil {
		l.tail = item
	}
}

func (l *list) removeBack() *listItem {
	if l.tail == nil {
		return nil
	}

	item := l.tail
	l.tail = item.prev
	if l.tail != nil {
		l.tail.next = nil
	} else {
		l.head = nil
	}
	l.len--
	return item
}

func (l *list) pushFront(item *listItem) {
	item.next = l.head
	item.prev = nil
	if l.head != nil {
		l.head.prev = item
	}
	l.head = item
	if l.tail == nil {
		l.tail = item
	}
	l.len++
}

// Options configures the graph cache.
type Options struct {
	// MaxEntries is the maximum number of bytecode units to keep.
	// 0 means unlimited.
	MaxEntries int

	// MaxBytes is the approximate maximum size of encoded graphs in bytes.
	// 0 means unlimited.
	MaxBytes int64

	// OnEvict is called when a unit is evicted.
	OnEvict func(key string)
}

// GraphCache is an in-memory LRU cache of encoded graph bundles with
// optional disk persistence. It is safe for concurrent use.
type GraphCache struct {
	mu           sync.RWMutex
	items        map[string]*listItem
	lru          *list
	maxEntries   int
	maxBytes     int64
	currentBytes int64
	onEvict      func(key string)
	hits         int64
	misses       int64
}

// New creates a graph cache with the given options.
func New(opts Options) *GraphCache {
	return &GraphCache{
		items:      make(map[string]*listItem),
		lru:        newList(),
		maxEntries: opts.MaxEntries,
		maxBytes:   opts.MaxBytes,
		onEvict:    opts.OnEvict,
	}
}

// Get retrieves the encoded graph bundle for a key.
func (c *GraphCache) Get(key string) ([][]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		c.misses++
		return nil, false
	}

	c.hits++
	item.AccessedAt = time.Now()
	c.lru.moveToFront(item)
	return item.Graphs, true
}

// Put stores an encoded graph bundle under a key, evicting least recently
// used units if the cache exceeds its limits.
func (c *GraphCache) Put(key string, graphs [][]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := 0
	for _, g := range graphs {
		size += len(g)
	}

	if item, exists := c.items[key]; exists {
		c.currentBytes -= int64(item.Size)
		item.Graphs = graphs
		item.Size = size
		item.AccessedAt = time.Now()
		c.currentBytes += int64(size)
		c.lru.moveToFront(item)
		c.evictIfNeeded()
		return
	}

	item := &listItem{
		Entry: Entry{
			Key:        key,
			Graphs:     graphs,
			AccessedAt: time.Now(),
			CreatedAt:  time.Now(),
			Size:       size,
		},
	}

	c.items[key] = item
	c.lru.pushFront(item)
	c.currentBytes += int64(size)

	c.evictIfNeeded()
}

// PutControlFlowGraphs encodes and stores the graphs of one bytecode unit.
func (c *GraphCache) PutControlFlowGraphs(key string, graphs []*cfg.ControlFlowGraph) error {
	encoded := make([][]byte, len(graphs))
	for i, graph := range graphs {
		data, err := graph.Encode()
		if err != nil {
			return fmt.Errorf("encoding graph %q: %w", graph.Name, err)
		}
		encoded[i] = data
	}
	c.Put(key, encoded)
	return nil
}

// GetControlFlowGraphs retrieves and decodes the graphs of one bytecode unit.
// A miss reports ErrKeyNotFound; any other error means the cached bytes did
// not decode and the entry should be dropped.
func (c *GraphCache) GetControlFlowGraphs(key string) ([]*cfg.ControlFlowGraph, error) {
	encoded, found := c.Get(key)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}

	graphs := make([]*cfg.ControlFlowGraph, len(encoded))
	for i, data := range encoded {
		graph, err := cfg.DecodeControlFlowGraph(data)
		if err != nil {
			return nil, fmt.Errorf("decoding cached graph: %w", err)
		}
		graphs[i] = graph
	}
	return graphs, nil
}

// Delete removes a key from the cache.
func (c *GraphCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		return
	}

	if item.prev != nil {
		item.prev.next = item.next
	} else {
		c.lru.head = item.next
	}
	if item.next != nil {
		item.next.prev = item.prev
	} else {
		c.lru.tail = item.prev
	}
	c.lru.len--

	delete(c.items, key)
	c.currentBytes -= int64(item.Size)

	if c.onEvict != nil {
		c.onEvict(key)
	}
}

// Clear removes all entries from the cache.
func (c *GraphCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*listItem)
	c.lru = newList()
	c.currentBytes = 0
}

// Len returns the number of cached bytecode units.
func (c *GraphCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// CurrentBytes returns the approximate size of all cached graphs in bytes.
func (c *GraphCache) CurrentBytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentBytes
}

func (c *GraphCache) evictIfNeeded() {
	for c.shouldEvict() {
		item := c.lru.removeBack()
		if item == nil {
			break
		}
		delete(c.items, item.Key)
		c.currentBytes -= int64(item.Size)

		if c.onEvict != nil {
			c.onEvict(item.Key)
		}
	}
}

func (c *GraphCache) shouldEvict() bool {
	if c.maxEntries > 0 && c.lru.len > c.maxEntries {
		return true
	}
	if c.maxBytes > 0 && c.currentBytes >= c.maxBytes {
		return true
	}
	return false
}

// Save persists the cache to a writer using msgpack. Entries are written in
// LRU order so Load can rebuild the eviction order.
func (c *GraphCache) Save(w io.Writer) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]Entry, 0, len(c.items))
	for item := c.lru.head; item != nil; item = item.next {
		entries = append(entries, item.Entry)
	}

	enc := msgpack.NewEncoder(w)
	return enc.Encode(entries)
}

// Load restores the cache from a reader, replacing its current contents.
func (c *GraphCache) Load(r io.Reader) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var entries []Entry
	dec := msgpack.NewDecoder(r)
	if err := dec.Decode(&entries); err != nil {
		return fmt.Errorf("failed to decode cache: %w", err)
	}

	c.items = make(map[string]*listItem)
	c.lru = newList()
	c.currentBytes = 0

	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		item := &listItem{Entry: entry}
		c.items[entry.Key] = item
		c.lru.pushFront(item)
		c.currentBytes += int64(entry.Size)
	}

	return nil
}

// PersistToFile saves the cache to a file.
func PersistToFile(c *GraphCache, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer f.Close()

	return c.Save(f)
}

// LoadFromFile loads the cache from a file. A missing file is not an error.
func LoadFromFile(c *GraphCache, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer f.Close()

	return c.Load(f)
}

// Stats describes the state of the cache.
type Stats struct {
	Entries      int   `json:"entries"`
	CurrentBytes int64 `json:"current_bytes"`
	HitCount     int64 `json:"hit_count"`
	MissCount    int64 `json:"miss_count"`
}

// Stats returns a snapshot of the cache statistics.
func (c *GraphCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Entries:      len(c.items),
		CurrentBytes: c.currentBytes,
		HitCount:     c.hits,
		MissCount:    c.misses,
	}
}

// HitRate returns the fraction of Get calls that hit the cache.
func (c *GraphCache) HitRate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}
