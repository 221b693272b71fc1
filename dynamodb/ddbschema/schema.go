package ddbschema

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Schema converts records of type T to and from DynamoDB attribute maps.
// A Schema is immutable and safe for concurrent use.
type Schema[T any] struct {
	rs *recordSchema
}

type Option func(*options)

type options struct {
	cache *Cache
}

// WithCache derives and caches the schema in c instead of DefaultCache.
func WithCache(c *Cache) Option {
	return func(o *options) {
		o.cache = c
	}
}

// New returns the schema for T, deriving it on first use.
// Errors are one of *InvalidRecordTypeError, *UnsupportedTypeError,
// *ConverterInstantiationError or *IndexConfigError.
func New[T any](opts ...Option) (*Schema[T], error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cache == nil {
		o.cache = DefaultCache()
	}
	rs, err := o.cache.schemaFor(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	return &Schema[T]{rs: rs}, nil
}

// MustNew is like New but panics on error. It is meant for package-level schemas.
func MustNew[T any](opts ...Option) *Schema[T] {
	s, err := New[T](opts...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema[T]) Type() reflect.Type {
	return s.rs.typ
}

// ToAttributeMap encodes item. Nil values are encoded as NULL; with
// includeNulls false those attributes are left out instead.
func (s *Schema[T]) ToAttributeMap(item T, includeNulls bool) (map[string]types.AttributeValue, error) {
	return s.rs.encode(reflect.ValueOf(&item).Elem(), includeNulls)
}

// ToAttributeMapOnly encodes the named attributes of item, keeping NULLs.
// Names that are not attributes of T are ignored.
func (s *Schema[T]) ToAttributeMapOnly(item T, names ...string) (map[string]types.AttributeValue, error) {
	return s.rs.encodeOnly(reflect.ValueOf(&item).Elem(), names)
}

// AttributeValue encodes a single attribute of item. ok is false when name is
// not an attribute of T.
func (s *Schema[T]) AttributeValue(item T, name string) (av types.AttributeValue, ok bool, err error) {
	f, ok := s.rs.byName[name]
	if !ok {
		return nil, false, nil
	}
	av, err = f.encode(reflect.ValueOf(&item).Elem())
	if err != nil {
		return nil, false, fmt.Errorf("encode %s attribute %q: %w", s.rs.typ, name, err)
	}
	return av, true, nil
}

// FromAttributeMap decodes m into a new record. Failures are reported as *RecordMappingError.
func (s *Schema[T]) FromAttributeMap(m map[string]types.AttributeValue) (T, error) {
	var zero T
	v, err := s.rs.decode(m)
	if err != nil {
		return zero, err
	}
	return v.Interface().(T), nil
}

// KeyOf returns the primary key attributes of item.
func (s *Schema[T]) KeyOf(item T) (map[string]types.AttributeValue, error) {
	return s.IndexKeyOf(item, PrimaryIndexName)
}

// IndexKeyOf returns the key attributes of item for the named index.
func (s *Schema[T]) IndexKeyOf(item T, index string) (map[string]types.AttributeValue, error) {
	idx, err := s.rs.index.Index(index)
	if err != nil {
		return nil, err
	}
	key, err := s.ToAttributeMapOnly(item, idx.Keys()...)
	if err != nil {
		return nil, err
	}
	for name, av := range key {
		if IsNull(av) {
			return nil, fmt.Errorf("%s key attribute %q is null", s.rs.typ, name)
		}
	}
	return key, nil
}

func (s *Schema[T]) IndexMetadata() *IndexMetadata {
	return s.rs.index
}

// StorageNames returns the attribute names of T in field order,
// including attributes of flattened structs.
func (s *Schema[T]) StorageNames() []string {
	return slices.Clone(s.rs.names)
}

func (s *Schema[T]) Fields() []Field {
	out := make([]Field, len(s.rs.fields))
	for i, f := range s.rs.fields {
		out[i] = f.Field
		out[i].KeyRoles = slices.Clone(f.KeyRoles)
	}
	return out
}

// IsAbstract is always false; schemas are only derived for concrete structs.
func (s *Schema[T]) IsAbstract() bool {
	return false
}
