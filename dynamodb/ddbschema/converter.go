package ddbschema

import (
	"fmt"
	"reflect"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// AttributeConverter maps values of T to and from a single attribute value.
// Implementations must be stateless and safe for concurrent use.
// Nil values never reach a converter; they are encoded as NULL by the schema.
type AttributeConverter[T any] interface {
	AttributeKind() AttributeKind
	ToAttributeValue(v T) (types.AttributeValue, error)
	FromAttributeValue(av types.AttributeValue) (T, error)
}

// converter is the untyped form every field converter is compiled to.
type converter interface {
	kind() AttributeKind
	encode(v reflect.Value) (types.AttributeValue, error)
	// decode returns present=false when the value decodes to absence,
	// as empty documents do unless their type preserves them.
	decode(av types.AttributeValue) (v reflect.Value, present bool, err error)
}

type typedConverter[T any] struct {
	conv AttributeConverter[T]
	typ  reflect.Type
}

func adapt[T any](conv AttributeConverter[T]) converter {
	return typedConverter[T]{conv: conv, typ: reflect.TypeFor[T]()}
}

func (c typedConverter[T]) kind() AttributeKind { return c.conv.AttributeKind() }

func (c typedConverter[T]) encode(v reflect.Value) (types.AttributeValue, error) {
	t, ok := v.Interface().(T)
	if !ok {
		return nil, fmt.Errorf("converter for %s got %s", c.typ, v.Type())
	}
	return c.conv.ToAttributeValue(t)
}

func (c typedConverter[T]) decode(av types.AttributeValue) (reflect.Value, bool, error) {
	t, err := c.conv.FromAttributeValue(av)
	if err != nil {
		return reflect.Value{}, false, err
	}
	return reflect.ValueOf(&t).Elem(), true, nil
}

func nillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return true
	}
	return false
}

func encodeValue(c converter, v reflect.Value) (types.AttributeValue, error) {
	if !v.IsValid() || nillable(v.Type()) && v.IsNil() {
		return nullValue(), nil
	}
	return c.encode(v)
}

// decodeValue resolves the null marker before handing av to c.
// The returned value always has type t when present.
func decodeValue(c converter, t reflect.Type, av types.AttributeValue) (reflect.Value, bool, error) {
	if av == nil {
		return reflect.Value{}, false, nil
	}
	if IsNull(av) {
		if nillable(t) {
			return reflect.Zero(t), true, nil
		}
		return reflect.Value{}, false, fmt.Errorf("null value for non-nullable %s", t)
	}
	v, present, err := c.decode(av)
	if err != nil || !present {
		return reflect.Value{}, present, err
	}
	if v.Type() != t {
		if !v.Type().ConvertibleTo(t) {
			return reflect.Value{}, false, fmt.Errorf("converter produced %s, want %s", v.Type(), t)
		}
		v = v.Convert(t)
	}
	return v, true, nil
}

func mismatch(want AttributeKind, av types.AttributeValue) error {
	return fmt.Errorf("expected %s attribute, got %s", want, KindOf(av))
}
