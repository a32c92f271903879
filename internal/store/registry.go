package store

import (
	"fmt"
	"strings"
)

// Built-in type tags. The envelope wrappers ("datetime", "tuple") are
// recognized primitive representations handled before registry dispatch;
// they are not registered types.
const (
	tagIndex = "strata/index/v1"
	tagRoot  = "strata/root/v1"

	tagDatetime = "datetime"
	tagTuple    = "tuple"
)

// trustedPrefix is always trusted: the engine's own record types live here.
const trustedPrefix = "strata/"

// ObjectFactory allocates an empty instance of a registered object type.
type ObjectFactory func() Object

// ValueFactory constructs an immutable value from its stored field map.
type ValueFactory func(fields map[string]any) (Immutable, error)

// TypeRegistry is the closed mapping from stable type tags to factories.
//
// Type reconstruction during deserialization is restricted to tags present
// in this registry whose namespace matches a trusted prefix; anything else
// fails closed with [DisallowedTypeError]. The registry is the allow-list,
// not an afterthought: there is no dynamic type resolution anywhere in the
// engine.
//
// A TypeRegistry is populated once at startup and read-only afterwards.
type TypeRegistry struct {
	trusted []string
	objects map[string]ObjectFactory
	values  map[string]ValueFactory
}

// NewTypeRegistry creates a registry trusting the engine's own namespace
// plus any additional tag prefixes.
func NewTypeRegistry(extraPrefixes ...string) *TypeRegistry {
	return &TypeRegistry{
		trusted: append([]string{trustedPrefix}, extraPrefixes...),
		objects: make(map[string]ObjectFactory),
		values:  make(map[string]ValueFactory),
	}
}

// RegisterObject binds a persistent object type tag to its factory.
// The tag must be inside a trusted namespace and not already taken.
func (r *TypeRegistry) RegisterObject(tag string, factory ObjectFactory) error {
	if err := r.checkTag(tag); err != nil {
		return err
	}
	r.objects[tag] = factory
	return nil
}

// RegisterValue binds an immutable value type tag to its factory.
func (r *TypeRegistry) RegisterValue(tag string, factory ValueFactory) error {
	if err := r.checkTag(tag); err != nil {
		return err
	}
	r.values[tag] = factory
	return nil
}

func (r *TypeRegistry) checkTag(tag string) error {
	if !r.isTrusted(tag) {
		return &DisallowedTypeError{Tag: tag}
	}
	if _, dup := r.objects[tag]; dup {
		return fmt.Errorf("type tag %q already registered", tag)
	}
	if _, dup := r.values[tag]; dup {
		return fmt.Errorf("type tag %q already registered", tag)
	}
	return nil
}

func (r *TypeRegistry) isTrusted(tag string) bool {
	for _, p := range r.trusted {
		if strings.HasPrefix(tag, p) {
			return true
		}
	}
	return false
}

// newObject allocates an empty instance for tag, failing closed for tags
// outside the registry.
func (r *TypeRegistry) newObject(tag string) (Object, error) {
	factory, ok := r.objects[tag]
	if !ok || !r.isTrusted(tag) {
		return nil, &DisallowedTypeError{Tag: tag}
	}
	return factory(), nil
}

// isValue reports whether tag names a registered immutable value type.
func (r *TypeRegistry) isValue(tag string) bool {
	_, ok := r.values[tag]
	return ok && r.isTrusted(tag)
}

// newValue constructs an immutable value for tag from its stored fields.
func (r *TypeRegistry) newValue(tag string, fields map[string]any) (Immutable, error) {
	factory, ok := r.values[tag]
	if !ok || !r.isTrusted(tag) {
		return nil, &DisallowedTypeError{Tag: tag}
	}
	return factory(fields)
}

// registerBuiltins installs the engine's own record types (index, root
// mapping). Called by [Open]; idempotent registration is not needed since
// a registry feeds exactly one Database in practice, but double
// registration of builtins is tolerated for registries shared across
// sequential opens.
func registerBuiltins(r *TypeRegistry) {
	if _, ok := r.objects[tagIndex]; !ok {
		r.objects[tagIndex] = func() Object { return &Index{} }
	}
	if _, ok := r.objects[tagRoot]; !ok {
		r.objects[tagRoot] = func() Object { return &rootMap{} }
	}
}
