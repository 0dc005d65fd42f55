// Package cache memoizes pipeline stages by fingerprint for the lifetime of a Table.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Fingerprint identifies a pipeline invocation by every input that affects its output.
type Fingerprint string

// NewFingerprint hashes the parts with length prefixes so ("ab","c") and ("a","bc") differ.
func NewFingerprint(parts ...string) Fingerprint {
	h := sha256.New()
	var n [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(n[:], uint64(len(p)))
		h.Write(n[:])
		h.Write([]byte(p))
	}
	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}

// ContentHash is the hex SHA-256 of raw bytes.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Table runs a computation at most once per fingerprint. Concurrent callers
// for the same fingerprint share a single execution. Failed computations are
// not stored, so the next call retries.
type Table[V any] struct {
	name    string
	mu      sync.RWMutex
	entries map[Fingerprint]V
	group   singleflight.Group
}

func NewTable[V any](name string) *Table[V] {
	return &Table[V]{
		name:    name,
		entries: make(map[Fingerprint]V),
	}
}

func (t *Table[V]) Get(key Fingerprint) (V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.entries[key]
	return v, ok
}

// Do returns the stored value for key, computing it with fn on a miss.
// Concurrent callers share one fn run and its error, so fn must not depend on
// any single caller's cancellation.
func (t *Table[V]) Do(key Fingerprint, fn func() (V, error)) (V, error) {
	if v, ok := t.Get(key); ok {
		return v, nil
	}

	res, err, _ := t.group.Do(string(key), func() (any, error) {
		// a concurrent caller may have finished between Get and Do
		if v, ok := t.Get(key); ok {
			return v, nil
		}
		v, err := fn()
		if err != nil {
			return nil, err
		}
		t.mu.Lock()
		t.entries[key] = v
		t.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}

	if res == nil {
		var zero V
		return zero, nil
	}
	v, ok := res.(V)
	if !ok {
		var zero V
		return zero, fmt.Errorf("cache %s: unexpected value type %T", t.name, res)
	}
	return v, nil
}

// Invalidate drops the entry so the next Do recomputes it.
func (t *Table[V]) Invalidate(key Fingerprint) {
	t.mu.Lock()
	delete(t.entries, key)
	t.mu.Unlock()
	t.group.Forget(string(key))
}

func (t *Table[V]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

func (t *Table[V]) Name() string {
	return t.name
}
