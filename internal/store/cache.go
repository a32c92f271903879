package store

// Cache is the in-process identity map from OID to live object instance.
//
// It enforces the single-instance invariant defensively: Set validates
// that the object already carries the given key and is owned by the
// expected Database, and NewGhost refuses objects that already have an
// identity. Violations are programmer errors and fail fast.
type Cache struct {
	entries map[OID]Object
}

// NewCache creates an empty identity map.
func NewCache() *Cache {
	return &Cache{entries: make(map[OID]Object)}
}

// Get returns the live instance for key, if any.
func (c *Cache) Get(key OID) (Object, bool) {
	obj, ok := c.entries[key]
	return obj, ok
}

// Pop removes and returns the live instance for key, if any.
func (c *Cache) Pop(key OID) (Object, bool) {
	obj, ok := c.entries[key]
	if ok {
		delete(c.entries, key)
	}
	return obj, ok
}

// Len returns the number of cached instances.
func (c *Cache) Len() int { return len(c.entries) }

// Set inserts obj under key after validating the identity it carries.
//
// The object must already hold key as its OID and be owned by owner: Set
// is an invariant check, not a convenience overwrite. Inserting a second,
// different instance under an occupied key fails.
func (c *Cache) Set(key OID, obj Object, owner *Database) error {
	m := obj.Meta()
	if m.oid != key {
		return invariantf(ErrCodeDuplicateIdentity, key,
			"object carries oid %q, cannot cache under %q", m.oid, key)
	}
	if m.db != owner {
		return invariantf(ErrCodeForeignObject, key, "object is not owned by this database")
	}
	if existing, ok := c.entries[key]; ok && existing != obj {
		return invariantf(ErrCodeDuplicateIdentity, key, "a different instance is already cached")
	}
	c.entries[key] = obj
	return nil
}

// NewGhost registers obj as a not-yet-loaded placeholder for key.
//
// The object must not carry an identity yet; assigning one here is what
// makes the ghost a valid, comparable identity before its fields exist.
// Fails if the object was already registered (prevents double
// registration) or if key is occupied.
func (c *Cache) NewGhost(key OID, obj Object, owner *Database) error {
	m := obj.Meta()
	if m.oid != "" || m.db != nil {
		return invariantf(ErrCodeDuplicateIdentity, key, "object already has an identity (oid=%s)", m.oid)
	}
	if _, ok := c.entries[key]; ok {
		return invariantf(ErrCodeDuplicateIdentity, key, "an instance is already cached for this key")
	}
	m.oid = key
	m.db = owner
	m.state = StateGhost
	c.entries[key] = obj
	return nil
}
