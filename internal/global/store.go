// Package global implements the in-memory, namespaced key/value global
// store and the admin operations the CLI and interpreter share:
// state.read, state.write, state.snapshot, state.reset.
package global

import (
	"sort"
	"sync"

	"github.com/marchdb/march/internal/marcherr"
	"github.com/marchdb/march/internal/types"
)

// Store is a two-level namespace -> key -> Value mapping. Values are
// deep-copied on write so later mutation of a caller's Value cannot
// alias stored state.
type Store struct {
	mu   sync.RWMutex
	data map[string]map[string]types.Value
}

// New returns an empty global store.
func New() *Store {
	return &Store{data: make(map[string]map[string]types.Value)}
}

// Read fetches a value by namespace and key. Callers are expected to
// hold a read token of the state domain before calling; the store
// itself does not check tokens (that is the builder/interpreter's job).
func (s *Store) Read(ns, key string) (types.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bucket, ok := s.data[ns]
	if !ok {
		return types.Value{}, marcherr.ErrGlobalNotFound
	}
	v, ok := bucket[key]
	if !ok {
		return types.Value{}, marcherr.ErrGlobalNotFound
	}
	return deepCopy(v), nil
}

// Write replaces any prior value at (ns, key). Callers are expected to
// hold a write token of the state domain before calling.
func (s *Store) Write(ns, key string, v types.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.data[ns]
	if !ok {
		bucket = make(map[string]types.Value)
		s.data[ns] = bucket
	}
	bucket[key] = deepCopy(v)
}

// Reset clears all keys in all namespaces.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]map[string]types.Value)
}

// Snapshot is a stable ordering of the store's contents: namespaces
// sorted lexicographically, keys within each sorted lexicographically.
// Equal snapshots imply equal state.
type Snapshot struct {
	Namespaces []NamespaceSnapshot
}

// NamespaceSnapshot is one namespace's sorted key/value entries.
type NamespaceSnapshot struct {
	Namespace string
	Entries   []Entry
}

// Entry is one key/value pair within a namespace snapshot.
type Entry struct {
	Key   string
	Value types.Value
}

// Snapshot captures the entire store in canonical sorted order.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nsNames := make([]string, 0, len(s.data))
	for ns := range s.data {
		nsNames = append(nsNames, ns)
	}
	sort.Strings(nsNames)

	out := Snapshot{Namespaces: make([]NamespaceSnapshot, 0, len(nsNames))}
	for _, ns := range nsNames {
		bucket := s.data[ns]
		keys := make([]string, 0, len(bucket))
		for k := range bucket {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entries := make([]Entry, 0, len(keys))
		for _, k := range keys {
			entries = append(entries, Entry{Key: k, Value: deepCopy(bucket[k])})
		}
		out.Namespaces = append(out.Namespaces, NamespaceSnapshot{Namespace: ns, Entries: entries})
	}
	return out
}

// Restore replaces the store's contents with a previously captured
// snapshot, used by the CLI session to reload the state persisted by a
// previous invocation.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]map[string]types.Value)
	for _, ns := range snap.Namespaces {
		bucket := make(map[string]types.Value, len(ns.Entries))
		for _, e := range ns.Entries {
			bucket[e.Key] = deepCopy(e.Value)
		}
		s.data[ns.Namespace] = bucket
	}
}

func deepCopy(v types.Value) types.Value {
	out := v
	if v.Kind == types.Tuple {
		out.Tuple = make([]types.Value, len(v.Tuple))
		for i, e := range v.Tuple {
			out.Tuple[i] = deepCopy(e)
		}
	}
	return out
}
