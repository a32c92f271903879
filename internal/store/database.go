package store

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Database orchestrates the persistence engine: it owns one Storage, one
// Cache, a pre-cache for in-flight loads, the pending-write set and the
// persisted root mapping of named indexes and singletons.
//
// Not safe for concurrent use. Callers hold exclusive access for the
// duration of a logical read/modify/commit sequence; the surrounding
// application is expected to hold an external advisory lock.
type Database struct {
	storage Storage
	cache   *Cache
	values  *ValueRegistry
	types   *TypeRegistry

	// pending holds registered objects awaiting the next commit.
	pending map[OID]Object

	// precache holds objects whose state is being consumed by an in-flight
	// load. Scoped to the outermost load operation, it is what lets cyclic
	// graphs resolve without infinite recursion.
	precache  map[OID]Object
	loadDepth int

	root *rootMap

	writer writer
	reader reader
}

// Open opens a Database over storage.
//
// The type registry gains the engine's built-in record types. If the
// storage already holds a root mapping it is loaded; otherwise a fresh,
// empty root is queued for the first commit.
func Open(storage Storage, types *TypeRegistry) (*Database, error) {
	registerBuiltins(types)
	db := &Database{
		storage:  storage,
		cache:    NewCache(),
		values:   NewValueRegistry(),
		types:    types,
		pending:  make(map[OID]Object),
		precache: make(map[OID]Object),
	}
	db.writer = writer{db: db}
	db.reader = reader{db: db}

	rec, err := storage.Load(RootOID)
	switch {
	case IsNotFound(err):
		root := newRootMap()
		root.meta.oid = RootOID
		root.meta.db = db
		root.meta.state = StatePending
		db.root = root
		db.pending[RootOID] = root
	case err != nil:
		return nil, fmt.Errorf("open database: %w", err)
	default:
		obj, err := db.load(rec)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		root, ok := obj.(*rootMap)
		if !ok {
			return nil, invariantf(ErrCodeMalformedRecord, RootOID, "root record has type %q", obj.TypeTag())
		}
		db.root = root
	}
	return db, nil
}

// Close sweeps the value registry and closes the storage backend when it
// owns closable resources. Pending objects are NOT flushed: an explicit
// Commit is the only write path.
func (db *Database) Close() error {
	db.values.Sweep(1)
	if closer, ok := db.storage.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Storage returns the backend this database reads and writes.
func (db *Database) Storage() Storage { return db.storage }

// AddIndex creates a new named index over elemTag and registers it under
// the root mapping. Fails if the case-normalized name is already taken.
func (db *Database) AddIndex(name, elemTag, attribute, keyTag string) (*Index, error) {
	normalized := strings.ToLower(name)
	if _, taken := db.root.entries[normalized]; taken {
		return nil, invariantf(ErrCodeDuplicateIdentity, "", "index name %q is already taken", normalized)
	}
	idx, err := NewIndex(name, elemTag, attribute, keyTag)
	if err != nil {
		return nil, err
	}
	if err := db.Register(idx); err != nil {
		return nil, err
	}
	db.root.entries[normalized] = idx
	if err := db.Register(db.root); err != nil {
		return nil, err
	}
	return idx, nil
}

// Index returns the named index from the root mapping.
func (db *Database) Index(name string) (*Index, error) {
	entry, ok := db.root.entries[strings.ToLower(name)]
	if !ok {
		return nil, &NotFoundError{DomainID: name, OID: RootOID}
	}
	idx, ok := entry.(*Index)
	if !ok {
		return nil, invariantf(ErrCodeMalformedRecord, RootOID, "root entry %q is not an index", name)
	}
	return idx, nil
}

// IndexNames returns the names of all registered indexes, sorted.
func (db *Database) IndexNames() []string {
	var names []string
	for name, entry := range db.root.entries {
		if _, ok := entry.(*Index); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Add attaches a singleton object directly under the root mapping at an
// explicit OID, for records with no natural index. The slot shares one
// case-normalized namespace with index names; fails if it is taken.
func (db *Database) Add(obj Object, oid OID) error {
	m := obj.Meta()
	if m.oid != "" && m.oid != oid {
		return invariantf(ErrCodeDuplicateIdentity, m.oid, "object already has an identity, cannot attach at %q", oid)
	}
	if m.db != nil && m.db != db {
		return invariantf(ErrCodeForeignObject, oid, "object is owned by a different database")
	}
	// Singletons and index names share the root mapping, so the slot key is
	// case-normalized the same way index names are.
	slot := strings.ToLower(string(oid))
	if slot == string(RootOID) {
		return invariantf(ErrCodeDuplicateIdentity, oid, "%q is reserved for the root mapping", RootOID)
	}
	if existing, taken := db.root.entries[slot]; taken && existing != obj {
		return invariantf(ErrCodeDuplicateIdentity, oid, "root slot %q is already taken", slot)
	}
	m.db = db
	m.oid = oid
	if m.state == StateUnsaved {
		m.state = StatePending
	}
	db.pending[oid] = obj
	db.root.entries[slot] = obj
	return db.Register(db.root)
}

// Register assigns an identity to obj if it has none (hash of the domain
// id when present, random otherwise) and adds it to the pending-write
// set. This is the sole "I have changed" signal domain objects invoke:
// calling it on an already-stored object flags the object dirty so the
// next commit rewrites it.
func (db *Database) Register(obj Object) error {
	m := obj.Meta()
	if m.db == nil {
		m.db = db
	} else if m.db != db {
		return invariantf(ErrCodeForeignObject, m.oid, "object is owned by a different database")
	}

	if m.oid == "" {
		if domainID := obj.DomainID(); domainID != "" {
			m.oid = OIDFromDomainID(domainID)
		} else {
			m.oid = NewOID()
		}
		m.state = StatePending
	} else {
		switch m.state {
		case StateGhost:
			return invariantf(ErrCodeDuplicateIdentity, m.oid, "cannot register a ghost; materialize it first")
		case StateClean:
			m.state = StateDirty
			// Pending and cache are mutually exclusive views.
			db.cache.Pop(m.oid)
		}
	}
	db.pending[m.oid] = obj
	return nil
}

// Get resolves an object by OID: root-mapping shortcut for the reserved
// key, then Cache, pre-cache and pending set, then Storage.
func (db *Database) Get(oid OID) (Object, error) {
	if oid == RootOID {
		return db.root, nil
	}
	if obj, ok := db.lookup(oid); ok {
		return obj, nil
	}
	rec, err := db.storage.Load(oid)
	if err != nil {
		return nil, err
	}
	obj, err := db.load(rec)
	if err != nil {
		return nil, err
	}
	if err := db.cache.Set(oid, obj, db); err != nil {
		return nil, err
	}
	return obj, nil
}

// GetByID hashes the domain id to an OID and delegates to Get.
func (db *Database) GetByID(domainID string) (Object, error) {
	obj, err := db.Get(OIDFromDomainID(domainID))
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return nil, &NotFoundError{OID: nf.OID, DomainID: domainID}
		}
		return nil, err
	}
	return obj, nil
}

// Materialize promotes a ghost by loading its record from storage.
// A no-op for objects that are already loaded.
func (db *Database) Materialize(obj Object) error {
	m := obj.Meta()
	if !m.IsGhost() {
		return nil
	}
	if m.db != db {
		return invariantf(ErrCodeForeignObject, m.oid, "ghost is owned by a different database")
	}
	rec, err := db.storage.Load(m.oid)
	if err != nil {
		return err
	}
	db.loadDepth++
	err = db.reader.setGhostState(obj, rec)
	db.loadDepth--
	if db.loadDepth == 0 {
		clear(db.precache)
	}
	return err
}

// Commit drains the pending-write set: each pending or dirty object is
// serialized, stored and moved into the cache as clean. Serialization can
// discover and enqueue further unregistered nested objects, so the loop
// runs to a fixed point rather than a single pass.
//
// There is no transaction log. If Commit is interrupted partway, some
// objects are durably stored and others remain pending, with no automatic
// retry or rollback; batch atomicity belongs to the surrounding versioned
// repository.
func (db *Database) Commit() error {
	for len(db.pending) > 0 {
		var oid OID
		var obj Object
		for oid, obj = range db.pending {
			break
		}
		delete(db.pending, oid)

		m := obj.Meta()
		if m.state == StatePending || m.state == StateDirty {
			rec, err := db.writer.serialize(obj)
			if err != nil {
				return err
			}
			if err := db.storage.Store(oid, rec); err != nil {
				return err
			}
			m.state = StateClean
		}
		if oid == RootOID {
			// The root lives in its own slot, not the cache.
			continue
		}
		if err := db.cache.Set(oid, obj, db); err != nil {
			return err
		}
	}
	db.values.NextEpoch()
	return nil
}

// Pending returns the number of objects awaiting commit.
func (db *Database) Pending() int { return len(db.pending) }

// lookup checks the mutually exclusive identity views in order:
// cache, pre-cache, pending set.
func (db *Database) lookup(oid OID) (Object, bool) {
	if obj, ok := db.cache.Get(oid); ok {
		return obj, true
	}
	if obj, ok := db.precache[oid]; ok {
		return obj, true
	}
	if obj, ok := db.pending[oid]; ok {
		return obj, true
	}
	return nil, false
}

// load deserializes a record inside a load scope: the pre-cache survives
// across nested loads of one logical operation and is discarded when the
// outermost load returns.
func (db *Database) load(rec Record) (Object, error) {
	db.loadDepth++
	obj, err := db.reader.deserialize(rec)
	db.loadDepth--
	if db.loadDepth == 0 {
		clear(db.precache)
	}
	return obj, err
}

// rootMap is the reserved persisted entry point holding references to all
// indexes and singletons by name.
type rootMap struct {
	Entity
	entries map[string]Object
}

func newRootMap() *rootMap {
	return &rootMap{entries: make(map[string]Object)}
}

// TypeTag implements [Object].
func (r *rootMap) TypeTag() string { return tagRoot }

// DomainID implements [Object]. The root's OID is the reserved,
// non-hashed [RootOID].
func (r *rootMap) DomainID() string { return "" }

// State implements [Object].
func (r *rootMap) State() (map[string]any, error) {
	entries := make(map[string]any, len(r.entries))
	for name, obj := range r.entries {
		entries[name] = obj
	}
	return map[string]any{"entries": entries}, nil
}

// SetState implements [Object].
func (r *rootMap) SetState(state map[string]any) error {
	raw, _ := state["entries"].(map[string]any)
	r.entries = make(map[string]Object, len(raw))
	for name, value := range raw {
		obj, ok := value.(Object)
		if !ok {
			return invariantf(ErrCodeMalformedRecord, RootOID, "root entry %q is not an object reference", name)
		}
		r.entries[name] = obj
	}
	return nil
}
