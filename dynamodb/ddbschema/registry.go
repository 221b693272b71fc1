package ddbschema

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"
)

// Registry resolves converters for field types. Default converters are looked up
// by exact type; named converters are referenced from struct tags with converter=<name>.
//
// Schemas resolve their converters once, when they are derived. Registering a
// converter does not affect schemas that were already derived.
type Registry struct {
	mu       sync.RWMutex
	defaults map[reflect.Type]converter
	named    map[string]namedConverter
}

type namedConverter struct {
	typ     reflect.Type
	factory func() (converter, error)
}

// NewRegistry returns a registry with the built-in converters registered.
func NewRegistry() *Registry {
	r := &Registry{
		defaults: make(map[reflect.Type]converter),
		named:    make(map[string]namedConverter),
	}
	Register[time.Time](r, RFC3339Converter{})
	RegisterNamed(r, ConverterRFC3339, func() AttributeConverter[time.Time] { return RFC3339Converter{} })
	RegisterNamed(r, ConverterUnixTime, func() AttributeConverter[time.Time] { return UnixTimeConverter{} })
	RegisterNamed(r, ConverterDuration, func() AttributeConverter[time.Duration] { return DurationConverter{} })
	return r
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the registry used by DefaultCache.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register makes conv the default converter for fields of type T.
func Register[T any](r *Registry, conv AttributeConverter[T]) {
	if conv == nil {
		panic("ddbschema: Register with nil converter")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults[reflect.TypeFor[T]()] = adapt(conv)
}

// RegisterNamed registers a converter factory under name. The factory runs once
// per field referencing the name, when the field's schema is derived.
// A nil factory is recorded as is and fails at instantiation.
func RegisterNamed[T any](r *Registry, name string, factory func() AttributeConverter[T]) {
	nc := namedConverter{typ: reflect.TypeFor[T]()}
	if factory != nil {
		nc.factory = func() (c converter, err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("factory panicked: %v", p)
				}
			}()
			conv := factory()
			if isNilConverter(conv) {
				return nil, errors.New("factory returned nil")
			}
			return adapt(conv), nil
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.named[name] = nc
}

func isNilConverter(conv any) bool {
	if conv == nil {
		return true
	}
	v := reflect.ValueOf(conv)
	return nillable(v.Type()) && v.IsNil()
}

func (r *Registry) lookup(t reflect.Type) (converter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.defaults[t]
	return c, ok
}

// instantiate creates the named converter for a field of type t. A converter
// for T also serves fields of type *T.
func (r *Registry) instantiate(name, field string, t reflect.Type) (converter, error) {
	r.mu.RLock()
	nc, ok := r.named[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &ConverterInstantiationError{Name: name, Field: field, Err: errors.New("no converter registered under this name")}
	}
	if nc.factory == nil {
		return nil, &ConverterInstantiationError{Name: name, Field: field, Err: errors.New("nil factory")}
	}
	var wrap bool
	switch {
	case t == nc.typ:
	case t.Kind() == reflect.Pointer && t.Elem() == nc.typ:
		wrap = true
	default:
		return nil, &ConverterInstantiationError{Name: name, Field: field, Err: fmt.Errorf("converter handles %s, field is %s", nc.typ, t)}
	}
	c, err := nc.factory()
	if err != nil {
		return nil, &ConverterInstantiationError{Name: name, Field: field, Err: err}
	}
	if wrap {
		return pointerConverter{typ: t, elem: c}, nil
	}
	return c, nil
}
