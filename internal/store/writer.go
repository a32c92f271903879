package store

import (
	"strings"
	"time"
)

// writer converts an in-memory object graph into storable, type-tagged
// records. Nested persistent objects are never inlined: they are replaced
// with reference markers, and serializing a referrer registers any
// still-unregistered referenced objects as a side effect (cascading save).
type writer struct {
	db *Database
}

// serialize produces the storable record for obj. The object must carry,
// or be assigned here, an OID and a Database owner.
func (w *writer) serialize(obj Object) (Record, error) {
	m := obj.Meta()
	if m.db == nil || m.oid == "" {
		if err := w.db.Register(obj); err != nil {
			return nil, err
		}
	}
	if m.db != w.db {
		return nil, invariantf(ErrCodeForeignObject, m.oid, "object is owned by a different database")
	}

	state, err := obj.State()
	if err != nil {
		return nil, err
	}
	rec := Record{
		"@type": obj.TypeTag(),
		"@oid":  string(m.oid),
	}
	for name, value := range state {
		if strings.HasPrefix(name, "@") {
			return nil, invariantf(ErrCodeBadValue, m.oid, "state field %q collides with the record envelope", name)
		}
		out, err := w.convert(value)
		if err != nil {
			return nil, err
		}
		rec[name] = out
	}
	return rec, nil
}

// convert recursively maps one state value to its stored shape.
func (w *writer) convert(value any) (any, error) {
	switch v := value.(type) {
	case nil, string, bool, int64, float64:
		return v, nil
	case int:
		return int64(v), nil
	case time.Time:
		return map[string]any{
			"@type":  tagDatetime,
			"@value": v.UTC().Format(time.RFC3339Nano),
		}, nil
	case Tuple:
		items, err := w.convertList([]any(v))
		if err != nil {
			return nil, err
		}
		return map[string]any{"@type": tagTuple, "@value": items}, nil
	case []any:
		return w.convertList(v)
	case []string:
		items := make([]any, len(v))
		for idx, s := range v {
			items[idx] = s
		}
		return items, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, elem := range v {
			// An unscreened "@" key would be re-read as a tagged value.
			if strings.HasPrefix(key, "@") {
				return nil, invariantf(ErrCodeBadValue, "", "map key %q collides with the record envelope", key)
			}
			conv, err := w.convert(elem)
			if err != nil {
				return nil, err
			}
			out[key] = conv
		}
		return out, nil
	case Object:
		return w.reference(v)
	case Immutable:
		return w.wrapValue(v)
	default:
		return nil, invariantf(ErrCodeBadValue, "", "unsupported value type %T", value)
	}
}

func (w *writer) convertList(list []any) ([]any, error) {
	out := make([]any, len(list))
	for idx, elem := range list {
		conv, err := w.convert(elem)
		if err != nil {
			return nil, err
		}
		out[idx] = conv
	}
	return out, nil
}

// reference replaces a nested persistent object with a reference marker,
// registering the object first if it has no identity yet. This is the
// cascade: referencing an unregistered object from a registered one
// schedules it for the same commit.
func (w *writer) reference(obj Object) (any, error) {
	m := obj.Meta()
	if m.db == nil || m.oid == "" {
		if err := w.db.Register(obj); err != nil {
			return nil, err
		}
	}
	if m.db != w.db {
		return nil, invariantf(ErrCodeForeignObject, m.oid, "referenced object is owned by a different database")
	}
	return map[string]any{
		"@type":      obj.TypeTag(),
		"@oid":       string(m.oid),
		"@reference": true,
	}, nil
}

// wrapValue serializes an immutable value as a type-tagged field map.
// Structured values must carry their id-bearing field; without one the
// reader could not deduplicate them.
func (w *writer) wrapValue(v Immutable) (any, error) {
	if v.ImmutableID() == "" {
		return nil, invariantf(ErrCodeBadValue, "", "immutable value %q has no id", v.TypeTag())
	}
	fields, err := v.State()
	if err != nil {
		return nil, err
	}
	conv := make(map[string]any, len(fields))
	for name, elem := range fields {
		if strings.HasPrefix(name, "@") {
			return nil, invariantf(ErrCodeBadValue, "", "value field %q collides with the record envelope", name)
		}
		out, err := w.convert(elem)
		if err != nil {
			return nil, err
		}
		conv[name] = out
	}
	return map[string]any{"@type": v.TypeTag(), "@value": conv}, nil
}
