// Package ordered provides insertion-ordered string-keyed maps and
// read-only views over them.
//
// Store namespaces (dimensions, attributes, variables) must preserve the
// order in which entries were created, and the read accessors exposed by
// stores must not allow callers to mutate backend state. Map is the
// mutable ordered container; Frozen is the immutable view handed out to
// callers.
package ordered

// Map is a string-keyed map that remembers insertion order.
// Setting an existing key updates the value in place without moving it.
type Map[V any] struct {
	keys  []string
	items map[string]V
}

// NewMap creates an empty ordered map.
func NewMap[V any]() *Map[V] {
	return &Map[V]{items: make(map[string]V)}
}

// Pair is a single key/value entry, used for literal construction.
type Pair[V any] struct {
	Key   string
	Value V
}

// MapOf creates an ordered map from the given pairs, in order.
func MapOf[V any](pairs ...Pair[V]) *Map[V] {
	m := NewMap[V]()
	for _, p := range pairs {
		m.Set(p.Key, p.Value)
	}
	return m
}

// Set inserts or updates a key. New keys are appended to the order.
func (m *Map[V]) Set(key string, value V) {
	if _, ok := m.items[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.items[key] = value
}

// Get returns the value for key and whether it was present.
func (m *Map[V]) Get(key string) (V, bool) {
	v, ok := m.items[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Map[V]) Has(key string) bool {
	_, ok := m.items[key]
	return ok
}

// Del removes a key. It reports whether the key was present.
func (m *Map[V]) Del(key string) bool {
	if _, ok := m.items[key]; !ok {
		return false
	}
	delete(m.items, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns the keys in insertion order. The slice is a copy.
func (m *Map[V]) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of entries.
func (m *Map[V]) Len() int {
	return len(m.keys)
}

// Range calls fn for each entry in insertion order until fn returns false.
func (m *Map[V]) Range(fn func(key string, value V) bool) {
	for _, k := range m.keys {
		if !fn(k, m.items[k]) {
			return
		}
	}
}

// Clone returns a shallow copy of the map.
func (m *Map[V]) Clone() *Map[V] {
	out := NewMap[V]()
	for _, k := range m.keys {
		out.Set(k, m.items[k])
	}
	return out
}

// Freeze returns a read-only view of the map's current contents.
// The view owns a copy of the entries; later mutation of m is not visible.
func (m *Map[V]) Freeze() *Frozen[V] {
	return &Frozen[V]{m: m.Clone()}
}

// Frozen is an immutable, insertion-ordered view of a Map snapshot.
type Frozen[V any] struct {
	m *Map[V]
}

// FrozenOf creates a frozen view directly from pairs, in order.
func FrozenOf[V any](pairs ...Pair[V]) *Frozen[V] {
	return MapOf(pairs...).Freeze()
}

// Get returns the value for key and whether it was present.
func (f *Frozen[V]) Get(key string) (V, bool) {
	return f.m.Get(key)
}

// Has reports whether key is present.
func (f *Frozen[V]) Has(key string) bool {
	return f.m.Has(key)
}

// Keys returns the keys in insertion order.
func (f *Frozen[V]) Keys() []string {
	return f.m.Keys()
}

// Len returns the number of entries.
func (f *Frozen[V]) Len() int {
	return f.m.Len()
}

// Range calls fn for each entry in insertion order until fn returns false.
func (f *Frozen[V]) Range(fn func(key string, value V) bool) {
	f.m.Range(fn)
}

// Thaw returns a mutable copy of the view's contents. The view itself is
// unaffected.
func (f *Frozen[V]) Thaw() *Map[V] {
	return f.m.Clone()
}
