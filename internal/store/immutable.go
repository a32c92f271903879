package store

// ValueRegistry deduplicates immutable value instances by their declared
// id, so one logical value loaded from different records yields a single
// shared instance across the whole graph.
//
// Eviction is by explicit epoch sweep rather than weak references: the
// Database bumps the epoch on each commit, interning touches an entry's
// epoch, and [ValueRegistry.Sweep] drops entries that have not been
// touched for a number of epochs. No ambient global or thread-local state.
type ValueRegistry struct {
	epoch   uint64
	entries map[valueKey]*valueEntry
}

type valueKey struct {
	tag string
	id  string
}

type valueEntry struct {
	value Immutable
	epoch uint64
}

// NewValueRegistry creates an empty interning registry at epoch zero.
func NewValueRegistry() *ValueRegistry {
	return &ValueRegistry{entries: make(map[valueKey]*valueEntry)}
}

// Intern returns the canonical instance for v's (type tag, id) pair,
// inserting v if the pair is new. The returned instance's entry is marked
// as touched in the current epoch.
func (r *ValueRegistry) Intern(v Immutable) Immutable {
	key := valueKey{tag: v.TypeTag(), id: v.ImmutableID()}
	if e, ok := r.entries[key]; ok {
		e.epoch = r.epoch
		return e.value
	}
	r.entries[key] = &valueEntry{value: v, epoch: r.epoch}
	return v
}

// Lookup returns the canonical instance for (tag, id) without inserting.
func (r *ValueRegistry) Lookup(tag, id string) (Immutable, bool) {
	e, ok := r.entries[valueKey{tag: tag, id: id}]
	if !ok {
		return nil, false
	}
	e.epoch = r.epoch
	return e.value, true
}

// Len returns the number of interned values.
func (r *ValueRegistry) Len() int { return len(r.entries) }

// NextEpoch advances the registry's generation counter.
func (r *ValueRegistry) NextEpoch() { r.epoch++ }

// Sweep evicts entries not touched within the last retain epochs.
// Sweep(0) drops everything not touched in the current epoch.
func (r *ValueRegistry) Sweep(retain uint64) {
	var floor uint64
	if r.epoch > retain {
		floor = r.epoch - retain
	}
	for key, e := range r.entries {
		if e.epoch < floor {
			delete(r.entries, key)
		}
	}
}
