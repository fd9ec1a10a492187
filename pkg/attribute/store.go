package attribute

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// ErrEmptyPath is returned when a scalar value is assigned without a path.
var ErrEmptyPath = errors.New("attribute path is empty")

// Path is an ordered sequence of normalized key segments.
type Path []string

// P builds a Path from string-like segments. Strings, named string types
// and fmt.Stringer values that render the same text address the same key.
func P(segments ...any) Path {
	p := make(Path, 0, len(segments))
	for _, s := range segments {
		p = append(p, Key(s))
	}
	return p
}

// String renders the path in dotted form.
func (p Path) String() string {
	return strings.Join(p, ".")
}

// Child returns a new path with segments appended.
func (p Path) Child(segments ...any) Path {
	out := make(Path, 0, len(p)+len(segments))
	out = append(out, p...)
	return append(out, P(segments...)...)
}

// Key normalizes a single key. Case is preserved; the text is NFC-normalized
// so that canonically equivalent spellings collapse to one key.
func Key(k any) string {
	var s string
	switch v := k.(type) {
	case string:
		s = v
	case fmt.Stringer:
		s = v.String()
	default:
		rv := reflect.ValueOf(k)
		if rv.Kind() == reflect.String {
			s = rv.String()
		} else {
			s = fmt.Sprint(k)
		}
	}
	return norm.NFC.String(s)
}

// MetadataKey normalizes a key ingested from external metadata, where
// hyphenated and underscored spellings name the same fact.
func MetadataKey(name string) string {
	return Key(strings.ReplaceAll(name, "-", "_"))
}

// Store is the hierarchical fact container shared by the plugins of one
// collection run. Nodes are scalars, ordered sequences, or mappings.
//
// Assigning a mapping onto an existing mapping deep-merges; any other
// assignment overwrites. There is no deletion.
type Store struct {
	mu   sync.RWMutex
	root map[string]any
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{root: make(map[string]any)}
}

// Get returns a copy of the node at path.
func (s *Store) Get(path Path) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.lookup(path)
	if !ok {
		return nil, false
	}
	return clone(node), true
}

// GetString returns the scalar at path rendered as a string.
func (s *Store) GetString(path Path) (string, bool) {
	v, ok := s.Get(path)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case map[string]any, []any:
		return "", false
	default:
		return fmt.Sprint(t), true
	}
}

// GetMap returns a copy of the mapping at path.
func (s *Store) GetMap(path Path) (map[string]any, bool) {
	v, ok := s.Get(path)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

// Has reports whether a node exists at path.
func (s *Store) Has(path Path) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.lookup(path)
	return ok
}

// Keys returns the sorted child keys of the mapping at path.
func (s *Store) Keys(path Path) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.lookup(path)
	if !ok {
		return nil
	}
	m, ok := node.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of top-level keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.root)
}

// Set assigns value at path, creating intermediate mappings. Scalar
// intermediates are replaced. A mapping assigned onto a mapping is merged.
func (s *Store) Set(path Path, value any) error {
	v := normalize(value)
	if len(path) == 0 {
		m, ok := v.(map[string]any)
		if !ok {
			return ErrEmptyPath
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		deepMerge(s.root, m)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	parent := s.root
	for _, seg := range path[:len(path)-1] {
		k := Key(seg)
		child, ok := parent[k].(map[string]any)
		if !ok {
			child = make(map[string]any)
			parent[k] = child
		}
		parent = child
	}

	leaf := Key(path[len(path)-1])
	if src, ok := v.(map[string]any); ok {
		if dst, ok := parent[leaf].(map[string]any); ok {
			deepMerge(dst, src)
			return nil
		}
	}
	parent[leaf] = v
	return nil
}

// Merge deep-merges mapping into the node at path. Merging an identical
// mapping twice leaves the store unchanged.
func (s *Store) Merge(path Path, mapping map[string]any) error {
	if mapping == nil {
		mapping = map[string]any{}
	}
	return s.Set(path, mapping)
}

// Map returns a deep copy of the whole tree for export.
func (s *Store) Map() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.root).(map[string]any)
}

func (s *Store) lookup(path Path) (any, bool) {
	var node any = s.root
	for _, seg := range path {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		node, ok = m[Key(seg)]
		if !ok {
			return nil, false
		}
	}
	return node, true
}

func deepMerge(dst, src map[string]any) {
	for k, sv := range src {
		if sm, ok := sv.(map[string]any); ok {
			if dm, ok := dst[k].(map[string]any); ok {
				deepMerge(dm, sm)
				continue
			}
		}
		dst[k] = clone(sv)
	}
}

// normalize converts arbitrary maps and slices into map[string]any and
// []any trees with normalized keys.
func normalize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[Key(k)] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[Key(iter.Key().Interface())] = normalize(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return string(rv.Bytes())
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.String:
		return rv.String()
	}
	return v
}

func clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = clone(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = clone(e)
		}
		return out
	}
	return v
}
