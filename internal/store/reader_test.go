package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tagBag = "strata/test/bag/v1"

// bag exercises every value shape the serializer pair supports.
type bag struct {
	Entity
	title string
	flag  bool
	ratio float64
	count int64
	pair  Tuple
	tags  []string
	attrs map[string]any
	when  time.Time
}

func (b *bag) TypeTag() string  { return tagBag }
func (b *bag) DomainID() string { return "/bags/" + b.title }

func (b *bag) State() (map[string]any, error) {
	return map[string]any{
		"title": b.title,
		"flag":  b.flag,
		"ratio": b.ratio,
		"count": b.count,
		"pair":  b.pair,
		"tags":  b.tags,
		"attrs": b.attrs,
		"when":  b.when,
	}, nil
}

func (b *bag) SetState(state map[string]any) error {
	b.title, _ = state["title"].(string)
	b.flag, _ = state["flag"].(bool)
	b.ratio, _ = state["ratio"].(float64)
	b.count, _ = state["count"].(int64)
	b.pair, _ = state["pair"].(Tuple)
	rawTags, _ := state["tags"].([]any)
	b.tags = b.tags[:0]
	for _, elem := range rawTags {
		if s, ok := elem.(string); ok {
			b.tags = append(b.tags, s)
		}
	}
	b.attrs, _ = state["attrs"].(map[string]any)
	b.when, _ = state["when"].(time.Time)
	return nil
}

func openBagDB(t *testing.T, storage Storage) *Database {
	t.Helper()
	types := newTestTypes(t)
	require.NoError(t, types.RegisterObject(tagBag, func() Object { return &bag{} }))
	db, err := Open(storage, types)
	require.NoError(t, err)
	return db
}

func TestReader_RoundTripAllShapes(t *testing.T) {
	storage := newMemStorage()

	db1 := openBagDB(t, storage)
	orig := &bag{
		title: "everything",
		flag:  true,
		ratio: 2.5,
		count: 9007199254740993,
		pair:  Tuple{"x", int64(1)},
		tags:  []string{"red", "blue"},
		attrs: map[string]any{"nested": map[string]any{"k": "v"}, "n": int64(3)},
		when:  time.Date(2024, 3, 1, 12, 0, 0, 5, time.UTC),
	}
	require.NoError(t, db1.Register(orig))
	require.NoError(t, db1.Commit())

	db2 := openBagDB(t, storage)
	loaded, err := db2.GetByID("/bags/everything")
	require.NoError(t, err)
	got, ok := loaded.(*bag)
	require.True(t, ok)

	assert.Equal(t, "everything", got.title)
	assert.True(t, got.flag)
	assert.Equal(t, 2.5, got.ratio)
	assert.Equal(t, int64(9007199254740993), got.count, "large integers must not round-trip through float64")
	assert.Equal(t, Tuple{"x", int64(1)}, got.pair, "tuples keep their tagged identity")
	assert.Equal(t, []string{"red", "blue"}, got.tags)
	assert.Equal(t, map[string]any{"nested": map[string]any{"k": "v"}, "n": int64(3)}, got.attrs)
	assert.True(t, got.when.Equal(orig.when), "timestamp drifted: %v vs %v", got.when, orig.when)
}

func TestReader_MalformedEnvelope(t *testing.T) {
	storage := newMemStorage()
	db := openTestDB(t, storage)

	key := OID("broken")
	require.NoError(t, storage.Store(key, Record{"name": "no envelope"}))

	_, err := db.Get(key)
	require.Error(t, err)
	var ie *InvariantError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, ErrCodeMalformedRecord, ie.Code)
}

func TestReader_DisallowedTypeTag(t *testing.T) {
	storage := newMemStorage()
	db := openTestDB(t, storage)

	key := OID("hostile")
	require.NoError(t, storage.Store(key, Record{
		"@type": "strata/unregistered/v1",
		"@oid":  string(key),
	}))

	_, err := db.Get(key)
	require.Error(t, err)
	assert.True(t, IsDisallowedType(err))
}

func TestReader_DisallowedNestedValueTag(t *testing.T) {
	storage := newMemStorage()
	db := openTestDB(t, storage)

	key := OIDFromDomainID("/items/a")
	require.NoError(t, storage.Store(key, Record{
		"@type": tagItem,
		"@oid":  string(key),
		"name":  "a",
		"extra": map[string]any{"@type": "evil/payload/v1", "@value": map[string]any{"id": "x"}},
	}))

	_, err := db.Get(key)
	require.Error(t, err)
	assert.True(t, IsDisallowedType(err))
}

func TestReader_BadDatetime(t *testing.T) {
	storage := newMemStorage()
	db := openTestDB(t, storage)

	key := OIDFromDomainID("/boxes/bad")
	require.NoError(t, storage.Store(key, Record{
		"@type":      tagBox,
		"@oid":       string(key),
		"name":       "bad",
		"created_at": map[string]any{"@type": tagDatetime, "@value": "not-a-time"},
		"items":      []any{},
	}))

	_, err := db.Get(key)
	require.Error(t, err)
	var ie *InvariantError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, ErrCodeMalformedRecord, ie.Code)
}

func TestReader_GhostTypeMismatch(t *testing.T) {
	storage := newMemStorage()

	boxOID := OIDFromDomainID("/boxes/crate")
	itemOID := OIDFromDomainID("/items/a")
	require.NoError(t, storage.Store(boxOID, Record{
		"@type": tagBox,
		"@oid":  string(boxOID),
		"name":  "crate",
		"items": []any{map[string]any{
			"@type":      tagItem,
			"@oid":       string(itemOID),
			"@reference": true,
		}},
	}))
	// The blob behind the reference claims a different type.
	require.NoError(t, storage.Store(itemOID, Record{
		"@type": tagNode,
		"@oid":  string(itemOID),
		"name":  "a",
	}))

	db := openTestDB(t, storage)
	loaded, err := db.Get(boxOID)
	require.NoError(t, err)
	b, ok := loaded.(*box)
	require.True(t, ok)
	require.Len(t, b.items, 1)

	err = Ensure(b.items[0])
	require.Error(t, err)
	var ie *InvariantError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, ErrCodeMalformedRecord, ie.Code)
}

func TestReader_ReferenceMarkerMissingOID(t *testing.T) {
	storage := newMemStorage()
	db := openTestDB(t, storage)

	key := OIDFromDomainID("/boxes/crate")
	require.NoError(t, storage.Store(key, Record{
		"@type": tagBox,
		"@oid":  string(key),
		"name":  "crate",
		"items": []any{map[string]any{"@type": tagItem, "@reference": true}},
	}))

	_, err := db.Get(key)
	require.Error(t, err)
	var ie *InvariantError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, ErrCodeMalformedRecord, ie.Code)
}

func TestReader_ValueMissingID(t *testing.T) {
	storage := newMemStorage()
	db := openTestDB(t, storage)

	key := OIDFromDomainID("/boxes/crate")
	require.NoError(t, storage.Store(key, Record{
		"@type": tagBox,
		"@oid":  string(key),
		"name":  "crate",
		"items": []any{},
		"label": map[string]any{"@type": tagLabel, "@value": map[string]any{"text": "anonymous"}},
	}))

	_, err := db.Get(key)
	require.Error(t, err)
	var ie *InvariantError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, ErrCodeBadValue, ie.Code)
}
