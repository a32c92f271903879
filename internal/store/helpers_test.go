package store

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Test domain types live in the engine's trusted namespace so the
// registry accepts them without extra prefixes.
const (
	tagItem  = "strata/test/item/v1"
	tagBox   = "strata/test/box/v1"
	tagNode  = "strata/test/node/v1"
	tagLabel = "strata/test/label/v1"
)

// item is a leaf record with deterministic identity.
type item struct {
	Entity
	name  string
	count int64
}

func (i *item) TypeTag() string  { return tagItem }
func (i *item) DomainID() string { return "/items/" + i.name }

func (i *item) State() (map[string]any, error) {
	return map[string]any{"name": i.name, "count": i.count}, nil
}

func (i *item) SetState(state map[string]any) error {
	i.name, _ = state["name"].(string)
	i.count, _ = state["count"].(int64)
	return nil
}

// box references items and carries an immutable label value.
type box struct {
	Entity
	name      string
	createdAt time.Time
	items     []*item
	tag       *label
}

func (b *box) TypeTag() string  { return tagBox }
func (b *box) DomainID() string { return "/boxes/" + b.name }

func (b *box) State() (map[string]any, error) {
	items := make([]any, len(b.items))
	for idx, it := range b.items {
		items[idx] = it
	}
	state := map[string]any{
		"name":       b.name,
		"created_at": b.createdAt,
		"items":      items,
	}
	if b.tag != nil {
		state["label"] = b.tag
	}
	return state, nil
}

func (b *box) SetState(state map[string]any) error {
	b.name, _ = state["name"].(string)
	b.createdAt, _ = state["created_at"].(time.Time)
	raw, _ := state["items"].([]any)
	b.items = b.items[:0]
	for _, elem := range raw {
		if it, ok := elem.(*item); ok {
			b.items = append(b.items, it)
		}
	}
	if l, ok := state["label"].(*label); ok {
		b.tag = l
	} else {
		b.tag = nil
	}
	return nil
}

// node links to another node, allowing reference cycles.
type node struct {
	Entity
	name string
	next *node
}

func (n *node) TypeTag() string  { return tagNode }
func (n *node) DomainID() string { return "/nodes/" + n.name }

func (n *node) State() (map[string]any, error) {
	state := map[string]any{"name": n.name}
	if n.next != nil {
		state["next"] = n.next
	}
	return state, nil
}

func (n *node) SetState(state map[string]any) error {
	n.name, _ = state["name"].(string)
	n.next, _ = state["next"].(*node)
	return nil
}

// label is an immutable value deduplicated by id.
type label struct {
	id   string
	text string
}

func (l *label) TypeTag() string     { return tagLabel }
func (l *label) ImmutableID() string { return l.id }

func (l *label) State() (map[string]any, error) {
	return map[string]any{"id": l.id, "text": l.text}, nil
}

func labelFromState(fields map[string]any) (Immutable, error) {
	l := &label{}
	l.id, _ = fields["id"].(string)
	l.text, _ = fields["text"].(string)
	return l, nil
}

// newTestTypes builds a registry covering the test domain types.
func newTestTypes(t *testing.T) *TypeRegistry {
	t.Helper()
	r := NewTypeRegistry()
	require.NoError(t, r.RegisterObject(tagItem, func() Object { return &item{} }))
	require.NoError(t, r.RegisterObject(tagBox, func() Object { return &box{} }))
	require.NoError(t, r.RegisterObject(tagNode, func() Object { return &node{} }))
	require.NoError(t, r.RegisterValue(tagLabel, labelFromState))
	return r
}

// memStorage is an in-memory Storage double. Records round-trip through
// the JSON codec so loads see exactly what a real backend would return.
type memStorage struct {
	blobs map[OID][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{blobs: make(map[OID][]byte)}
}

func (s *memStorage) Store(key OID, rec Record) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	s.blobs[key] = data
	return nil
}

func (s *memStorage) Load(key OID) (Record, error) {
	data, ok := s.blobs[key]
	if !ok {
		return nil, &NotFoundError{OID: key}
	}
	return decodeRecord(data)
}

func (s *memStorage) Keys() ([]OID, error) {
	keys := make([]OID, 0, len(s.blobs))
	for key := range s.blobs {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

// countingStorage wraps a Storage and counts backend calls.
type countingStorage struct {
	inner  Storage
	stores int
	loads  int
}

func (s *countingStorage) Store(key OID, rec Record) error {
	s.stores++
	return s.inner.Store(key, rec)
}

func (s *countingStorage) Load(key OID) (Record, error) {
	s.loads++
	return s.inner.Load(key)
}

// openTestDB opens a Database over storage with the test registry.
func openTestDB(t *testing.T, storage Storage) *Database {
	t.Helper()
	db, err := Open(storage, newTestTypes(t))
	require.NoError(t, err)
	return db
}
