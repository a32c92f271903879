package store

import (
	"encoding/json"
	"time"
)

// reader reconstructs objects from stored records. References resolve to
// the already-tracked instance when one exists (single-instance invariant)
// or to a freshly allocated ghost otherwise; immutable values are interned
// through the Database's [ValueRegistry].
type reader struct {
	db *Database
}

// deserialize fully reconstructs an object from a stored record, used
// when loading directly from Storage. The new instance enters the
// pre-cache before its state is consumed so that cyclic references back
// to it resolve instead of recursing forever.
func (r *reader) deserialize(rec Record) (Object, error) {
	tag, oid, err := envelope(rec)
	if err != nil {
		return nil, err
	}
	obj, err := r.db.types.newObject(tag)
	if err != nil {
		return nil, err
	}
	m := obj.Meta()
	m.oid = oid
	m.db = r.db
	r.db.precache[oid] = obj

	if err := r.consumeState(obj, rec); err != nil {
		return nil, err
	}
	m.state = StateClean
	return obj, nil
}

// setGhostState populates an already-identity-assigned placeholder without
// re-creating its identity, promoting it to Clean.
func (r *reader) setGhostState(obj Object, rec Record) error {
	tag, oid, err := envelope(rec)
	if err != nil {
		return err
	}
	m := obj.Meta()
	if oid != m.oid {
		return invariantf(ErrCodeDuplicateIdentity, m.oid, "record carries oid %q", oid)
	}
	if tag != obj.TypeTag() {
		return invariantf(ErrCodeMalformedRecord, m.oid,
			"record type %q does not match instance type %q", tag, obj.TypeTag())
	}
	if err := r.consumeState(obj, rec); err != nil {
		return err
	}
	m.state = StateClean
	return nil
}

// consumeState strips the envelope, converts stored values back to their
// in-memory shapes and hands the result to the object.
func (r *reader) consumeState(obj Object, rec Record) error {
	state := make(map[string]any, len(rec))
	for name, value := range rec {
		if name == "@type" || name == "@oid" {
			continue
		}
		conv, err := r.convert(value)
		if err != nil {
			return err
		}
		state[name] = conv
	}
	return obj.SetState(state)
}

// envelope extracts and validates the reserved record fields.
func envelope(rec Record) (tag string, oid OID, err error) {
	tag, _ = rec["@type"].(string)
	rawOID, _ := rec["@oid"].(string)
	if tag == "" || rawOID == "" {
		return "", "", invariantf(ErrCodeMalformedRecord, OID(rawOID), "record missing @type or @oid")
	}
	return tag, OID(rawOID), nil
}

// convert maps one stored value back to its in-memory shape.
func (r *reader) convert(value any) (any, error) {
	switch v := value.(type) {
	case nil, string, bool:
		return v, nil
	case json.Number:
		// int64 first so large integers keep full precision.
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, invariantf(ErrCodeMalformedRecord, "", "unparseable number %q", v.String())
		}
		return f, nil
	case float64:
		return v, nil
	case int64:
		return v, nil
	case []any:
		out := make([]any, len(v))
		for idx, elem := range v {
			conv, err := r.convert(elem)
			if err != nil {
				return nil, err
			}
			out[idx] = conv
		}
		return out, nil
	case map[string]any:
		return r.convertMap(v)
	default:
		return nil, invariantf(ErrCodeMalformedRecord, "", "unsupported stored value type %T", value)
	}
}

// convertMap dispatches a stored mapping on its type tag: reference
// markers, primitive wrappers, registered value types, or a plain map.
// Unrecognized tags fail closed.
func (r *reader) convertMap(m map[string]any) (any, error) {
	tag, tagged := m["@type"].(string)
	if !tagged {
		out := make(map[string]any, len(m))
		for key, elem := range m {
			conv, err := r.convert(elem)
			if err != nil {
				return nil, err
			}
			out[key] = conv
		}
		return out, nil
	}

	if isRef, _ := m["@reference"].(bool); isRef {
		rawOID, _ := m["@oid"].(string)
		if rawOID == "" {
			return nil, invariantf(ErrCodeMalformedRecord, "", "reference marker missing @oid")
		}
		return r.resolveReference(tag, OID(rawOID))
	}

	switch tag {
	case tagDatetime:
		raw, _ := m["@value"].(string)
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, invariantf(ErrCodeMalformedRecord, "", "bad datetime %q", raw)
		}
		return t, nil
	case tagTuple:
		raw, _ := m["@value"].([]any)
		items, err := r.convert(raw)
		if err != nil {
			return nil, err
		}
		return Tuple(items.([]any)), nil
	}

	if r.db.types.isValue(tag) {
		return r.internValue(tag, m)
	}
	return nil, &DisallowedTypeError{Tag: tag}
}

// internValue reconstructs an immutable value, consulting the registry by
// declared id first so logically identical values across the loaded graph
// share one instance.
func (r *reader) internValue(tag string, m map[string]any) (Immutable, error) {
	raw, _ := m["@value"].(map[string]any)
	if raw == nil {
		return nil, invariantf(ErrCodeMalformedRecord, "", "value record %q missing @value", tag)
	}
	fields := make(map[string]any, len(raw))
	for key, elem := range raw {
		conv, err := r.convert(elem)
		if err != nil {
			return nil, err
		}
		fields[key] = conv
	}

	// Cheap id probe before construction.
	if id, ok := fields["id"].(string); ok && id != "" {
		if existing, found := r.db.values.Lookup(tag, id); found {
			return existing, nil
		}
	}

	v, err := r.db.types.newValue(tag, fields)
	if err != nil {
		return nil, err
	}
	if v.ImmutableID() == "" {
		return nil, invariantf(ErrCodeBadValue, "", "value record %q has no id", tag)
	}
	return r.db.values.Intern(v), nil
}

// resolveReference returns the tracked instance for oid when one exists;
// otherwise it allocates an uninitialized placeholder of the declared
// type and registers it as a ghost. Returning immediately without loading
// is what breaks reference cycles and defers the cost of unused branches.
func (r *reader) resolveReference(tag string, oid OID) (Object, error) {
	if existing, ok := r.db.lookup(oid); ok {
		return existing, nil
	}
	obj, err := r.db.types.newObject(tag)
	if err != nil {
		return nil, err
	}
	if err := r.db.cache.NewGhost(oid, obj, r.db); err != nil {
		return nil, err
	}
	return obj, nil
}
