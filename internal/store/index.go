package store

import (
	"strings"

	"github.com/tidwall/btree"
)

// Entry is one key/object pair of an Index.
type Entry struct {
	Key    string
	Object Object
}

// Index is a named, ordered secondary mapping from a derived or explicit
// key to objects of a declared type.
//
// Keys are either derived automatically from a dotted attribute path on
// the stored object (or a supplied key object), or provided explicitly by
// the caller when the index has no attribute. Re-adding an existing key
// overwrites the entry: last write wins, no implicit versioning.
//
// An Index is itself a persistent object with its own OID, but its entries
// are serialized inline with it rather than as separately addressable
// blobs, because entries have no identity outside their owning Index. The
// objects an entry points at are still stored as references.
//
// Mutating methods re-register the index with its owning Database, so a
// later commit rewrites it.
type Index struct {
	Entity

	name      string
	elemTag   string
	attribute string
	keyTag    string
	tree      *btree.BTreeG[Entry]
}

// NewIndex creates an index.
//
//   - name: unique within a Database, case-normalized to lowercase.
//   - elemTag: type tag the index accepts.
//   - attribute: optional dotted path for automatic key derivation.
//   - keyTag: optional type tag for callers that key by an attribute of
//     some other object than the stored one.
//
// An index without an attribute requires explicit keys on every Add.
func NewIndex(name, elemTag, attribute, keyTag string) (*Index, error) {
	if name == "" {
		return nil, invariantf(ErrCodeBadValue, "", "index name must not be empty")
	}
	if elemTag == "" {
		return nil, invariantf(ErrCodeBadValue, "", "index %q: element type must not be empty", name)
	}
	return &Index{
		name:      strings.ToLower(name),
		elemTag:   elemTag,
		attribute: attribute,
		keyTag:    keyTag,
		tree:      newEntryTree(),
	}, nil
}

func newEntryTree() *btree.BTreeG[Entry] {
	return btree.NewBTreeG(func(a, b Entry) bool { return a.Key < b.Key })
}

// Name returns the case-normalized index name.
func (i *Index) Name() string { return i.name }

// ElementType returns the type tag this index accepts.
func (i *Index) ElementType() string { return i.elemTag }

// Attribute returns the dotted derivation path, or "".
func (i *Index) Attribute() string { return i.attribute }

// TypeTag implements [Object].
func (i *Index) TypeTag() string { return tagIndex }

// DomainID implements [Object]. Indexes have random identity; they are
// reached through the root mapping by name, never by domain id.
func (i *Index) DomainID() string { return "" }

// Add inserts object under a key derived from the index's attribute path.
func (i *Index) Add(object Object) error {
	return i.add(object, "", nil)
}

// AddKey inserts object under an explicit key. On an auto-keyed index the
// key must match the derived one; a mismatch is an invariant violation.
func (i *Index) AddKey(object Object, key string) error {
	return i.add(object, key, nil)
}

// AddKeyObject inserts object under a key derived from the attribute path
// on keyObject, which must match the index's declared key type.
func (i *Index) AddKeyObject(object Object, keyObject Object) error {
	return i.add(object, "", keyObject)
}

func (i *Index) add(object Object, key string, keyObject Object) error {
	if err := i.ensure(); err != nil {
		return err
	}
	if object.TypeTag() != i.elemTag {
		return invariantf(ErrCodeIndexTypeMismatch, i.meta.oid,
			"index %q accepts %q, got %q", i.name, i.elemTag, object.TypeTag())
	}
	if keyObject != nil {
		if i.keyTag == "" {
			return invariantf(ErrCodeIndexKeyMismatch, i.meta.oid,
				"index %q declares no key type, cannot key by object", i.name)
		}
		if keyObject.TypeTag() != i.keyTag {
			return invariantf(ErrCodeIndexTypeMismatch, i.meta.oid,
				"index %q keys by %q, got %q", i.name, i.keyTag, keyObject.TypeTag())
		}
	}

	effective := key
	if i.attribute != "" {
		source := object
		if keyObject != nil {
			source = keyObject
		}
		derived, err := deriveKey(source, i.attribute)
		if err != nil {
			return err
		}
		if key != "" && key != derived {
			return invariantf(ErrCodeIndexKeyMismatch, i.meta.oid,
				"index %q derives key %q from %q, caller supplied %q", i.name, derived, i.attribute, key)
		}
		effective = derived
	}
	if effective == "" {
		return invariantf(ErrCodeIndexKeyMismatch, i.meta.oid,
			"index %q has no attribute path, an explicit key is required", i.name)
	}

	i.tree.Set(Entry{Key: effective, Object: object})
	i.markChanged()
	return nil
}

// Get returns the object stored under key.
func (i *Index) Get(key string) (Object, error) {
	if err := i.ensure(); err != nil {
		return nil, err
	}
	entry, ok := i.tree.Get(Entry{Key: key})
	if !ok {
		return nil, &NotFoundError{DomainID: key, OID: i.meta.oid}
	}
	return entry.Object, nil
}

// Pop removes and returns the object stored under key.
//
// The removed object's blob is NOT reclaimed from storage: after a commit
// it remains on disk, unreachable from any index. The engine performs no
// garbage collection or compaction.
func (i *Index) Pop(key string) (Object, error) {
	if err := i.ensure(); err != nil {
		return nil, err
	}
	entry, ok := i.tree.Delete(Entry{Key: key})
	if !ok {
		return nil, &NotFoundError{DomainID: key, OID: i.meta.oid}
	}
	i.markChanged()
	return entry.Object, nil
}

// Keys returns all keys in ascending order.
func (i *Index) Keys() ([]string, error) {
	if err := i.ensure(); err != nil {
		return nil, err
	}
	keys := make([]string, 0, i.tree.Len())
	i.tree.Scan(func(e Entry) bool {
		keys = append(keys, e.Key)
		return true
	})
	return keys, nil
}

// KeysRange returns keys in [min, max] in ascending order; max == ""
// means unbounded. Starts-with search over names is KeysRange(p, p+"\xff").
func (i *Index) KeysRange(min, max string) ([]string, error) {
	if err := i.ensure(); err != nil {
		return nil, err
	}
	var keys []string
	i.tree.Ascend(Entry{Key: min}, func(e Entry) bool {
		if max != "" && e.Key > max {
			return false
		}
		keys = append(keys, e.Key)
		return true
	})
	return keys, nil
}

// Values returns all objects in key order.
func (i *Index) Values() ([]Object, error) {
	if err := i.ensure(); err != nil {
		return nil, err
	}
	values := make([]Object, 0, i.tree.Len())
	i.tree.Scan(func(e Entry) bool {
		values = append(values, e.Object)
		return true
	})
	return values, nil
}

// Items returns all entries in key order.
func (i *Index) Items() ([]Entry, error) {
	if err := i.ensure(); err != nil {
		return nil, err
	}
	items := make([]Entry, 0, i.tree.Len())
	i.tree.Scan(func(e Entry) bool {
		items = append(items, e)
		return true
	})
	return items, nil
}

// Len returns the number of entries.
func (i *Index) Len() (int, error) {
	if err := i.ensure(); err != nil {
		return 0, err
	}
	return i.tree.Len(), nil
}

// State implements [Object]. Entries serialize inline; their objects
// become references through the Writer's normal recursion.
func (i *Index) State() (map[string]any, error) {
	entries := make(map[string]any, i.tree.Len())
	i.tree.Scan(func(e Entry) bool {
		entries[e.Key] = e.Object
		return true
	})
	return map[string]any{
		"name":      i.name,
		"type":      i.elemTag,
		"attribute": i.attribute,
		"key_type":  i.keyTag,
		"entries":   entries,
	}, nil
}

// SetState implements [Object].
func (i *Index) SetState(state map[string]any) error {
	name, _ := state["name"].(string)
	elemTag, _ := state["type"].(string)
	if name == "" || elemTag == "" {
		return invariantf(ErrCodeMalformedRecord, i.meta.oid, "index record missing name or type")
	}
	i.name = name
	i.elemTag = elemTag
	i.attribute, _ = state["attribute"].(string)
	i.keyTag, _ = state["key_type"].(string)
	i.tree = newEntryTree()

	raw, _ := state["entries"].(map[string]any)
	for key, value := range raw {
		obj, ok := value.(Object)
		if !ok {
			return invariantf(ErrCodeMalformedRecord, i.meta.oid,
				"index %q entry %q is not an object reference", i.name, key)
		}
		i.tree.Set(Entry{Key: key, Object: obj})
	}
	return nil
}

// ensure promotes a ghost index before any entry access.
func (i *Index) ensure() error {
	return Ensure(i)
}

// markChanged queues the index for the next commit once it is attached to
// a Database. Detached indexes (pre-registration) stay unsaved.
func (i *Index) markChanged() {
	if i.meta.db != nil {
		// Registration of an already-identified object is the mutation
		// signal; it cannot fail here.
		_ = i.meta.db.Register(i)
	}
}

// deriveKey walks a dotted attribute path through an object's field map
// and returns the string value at the end of the path.
func deriveKey(source Object, path string) (string, error) {
	if err := Ensure(source); err != nil {
		return "", err
	}
	state, err := source.State()
	if err != nil {
		return "", err
	}
	var current any = state
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			current = node[segment]
		case Object:
			if err := Ensure(node); err != nil {
				return "", err
			}
			nested, err := node.State()
			if err != nil {
				return "", err
			}
			current = nested[segment]
		default:
			return "", invariantf(ErrCodeIndexKeyMismatch, "",
				"attribute path %q: segment %q is not reachable", path, segment)
		}
	}
	key, ok := current.(string)
	if !ok || key == "" {
		return "", invariantf(ErrCodeIndexKeyMismatch, "",
			"attribute path %q did not resolve to a non-empty string", path)
	}
	return key, nil
}
