package store

// Lifecycle is the persistence state of an object.
//
// Transitions:
//
//	Unsaved --register--> Pending --commit--> Clean --mutation--> Dirty --commit--> Clean
//
// Ghost is a parallel entry state: the Reader allocates a ghost when it
// first encounters a reference, and the ghost is promoted straight to
// Clean when its fields are loaded. A ghost that is never touched costs
// nothing.
type Lifecycle int

const (
	// StateUnsaved is an in-memory object with no identity yet.
	StateUnsaved Lifecycle = iota

	// StatePending has an OID assigned and is queued for the next commit.
	StatePending

	// StateClean is stored and cached, with no unsaved changes.
	StateClean

	// StateDirty has been mutated since it was last stored.
	StateDirty

	// StateGhost has a known identity but unloaded fields.
	StateGhost
)

// String returns the lifecycle state name.
func (l Lifecycle) String() string {
	switch l {
	case StateUnsaved:
		return "unsaved"
	case StatePending:
		return "pending"
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	case StateGhost:
		return "ghost"
	default:
		return "unknown"
	}
}

// Meta holds the engine-side bookkeeping for one persistent object:
// its OID, lifecycle state and a back-reference to the owning Database.
// The Database owns the object; the back-reference is non-owning.
//
// Domain types obtain a Meta by embedding [Entity].
type Meta struct {
	oid   OID
	db    *Database
	state Lifecycle
}

// OID returns the object's storage key, or "" before registration.
func (m *Meta) OID() OID { return m.oid }

// Database returns the owning Database, or nil before registration.
func (m *Meta) Database() *Database { return m.db }

// Lifecycle returns the current persistence state.
func (m *Meta) Lifecycle() Lifecycle { return m.state }

// IsGhost reports whether the object's fields have not been loaded yet.
func (m *Meta) IsGhost() bool { return m.state == StateGhost }

// Entity is the embeddable base for storable types. It carries the
// object's [Meta] and satisfies the Meta accessor of [Object].
type Entity struct {
	meta Meta
}

// Meta returns the engine bookkeeping for this object.
func (e *Entity) Meta() *Meta { return &e.meta }

// Object is the capability every storable domain type implements.
//
// State produces the flat field map the Writer serializes; SetState is its
// inverse, consumed by the Reader. Field names must not start with "@"
// (reserved for the record envelope). Values inside the map may be scalars,
// []any, []string, map[string]any, time.Time, [Tuple], nested [Object]s
// (stored as references) and [Immutable] values.
//
// Domain types signal every mutation after initial creation by calling
// [Database.Register]; the engine performs no change detection of its own.
type Object interface {
	// Meta returns the engine bookkeeping. Implemented by embedding [Entity].
	Meta() *Meta

	// TypeTag returns the stable, registered type tag of this type.
	TypeTag() string

	// DomainID returns the application-level identifier used to derive the
	// OID deterministically, or "" for objects with random identity.
	DomainID() string

	// State produces the object's flat field map.
	State() (map[string]any, error)

	// SetState populates the object from a flat field map.
	SetState(state map[string]any) error
}

// Immutable is a value type fully defined by its fields and never mutated
// after construction. Instances are deduplicated by declared id in the
// Database's [ValueRegistry], so one logical value loaded from different
// places yields a single shared instance.
type Immutable interface {
	// TypeTag returns the stable, registered type tag of this value type.
	TypeTag() string

	// ImmutableID returns the declared id the value is deduplicated by.
	// Must be non-empty.
	ImmutableID() string

	// State produces the value's field map, including its id-bearing field.
	State() (map[string]any, error)
}

// Tuple is a fixed-size ordered sequence, serialized with a type tag so it
// round-trips distinctly from plain lists.
type Tuple []any

// Record is a storable, JSON-shaped representation of one object.
// Reserved envelope fields: "@type", "@oid", "@reference", "@value".
type Record map[string]any

// Ensure promotes a ghost to its loaded state. A no-op for objects that
// are already loaded. This is the accessor domain code routes first field
// access through.
func Ensure(obj Object) error {
	m := obj.Meta()
	if !m.IsGhost() {
		return nil
	}
	if m.db == nil {
		return invariantf(ErrCodeForeignObject, m.oid, "ghost has no owning database")
	}
	return m.db.Materialize(obj)
}
