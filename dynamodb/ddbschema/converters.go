package ddbschema

import (
	"bytes"
	"fmt"
	"reflect"
	"slices"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var (
	marshalerType   = reflect.TypeFor[attributevalue.Marshaler]()
	unmarshalerType = reflect.TypeFor[attributevalue.Unmarshaler]()
	emptyStructType = reflect.TypeFor[struct{}]()
)

type stringConverter struct{ typ reflect.Type }

func (stringConverter) kind() AttributeKind { return KindS }

func (c stringConverter) encode(v reflect.Value) (types.AttributeValue, error) {
	return &types.AttributeValueMemberS{Value: v.String()}, nil
}

func (c stringConverter) decode(av types.AttributeValue) (reflect.Value, bool, error) {
	s, ok := av.(*types.AttributeValueMemberS)
	if !ok {
		return reflect.Value{}, false, mismatch(KindS, av)
	}
	return reflect.ValueOf(s.Value).Convert(c.typ), true, nil
}

type boolConverter struct{ typ reflect.Type }

func (boolConverter) kind() AttributeKind { return KindBOOL }

func (c boolConverter) encode(v reflect.Value) (types.AttributeValue, error) {
	return &types.AttributeValueMemberBOOL{Value: v.Bool()}, nil
}

func (c boolConverter) decode(av types.AttributeValue) (reflect.Value, bool, error) {
	b, ok := av.(*types.AttributeValueMemberBOOL)
	if !ok {
		return reflect.Value{}, false, mismatch(KindBOOL, av)
	}
	return reflect.ValueOf(b.Value).Convert(c.typ), true, nil
}

type numberConverter struct{ typ reflect.Type }

func (numberConverter) kind() AttributeKind { return KindN }

func (c numberConverter) encode(v reflect.Value) (types.AttributeValue, error) {
	s, err := formatNumber(v)
	if err != nil {
		return nil, err
	}
	return &types.AttributeValueMemberN{Value: s}, nil
}

func (c numberConverter) decode(av types.AttributeValue) (reflect.Value, bool, error) {
	v, err := parseNumber(av, c.typ)
	return v, err == nil, err
}

type bytesConverter struct{ typ reflect.Type }

func (bytesConverter) kind() AttributeKind { return KindB }

func (c bytesConverter) encode(v reflect.Value) (types.AttributeValue, error) {
	return &types.AttributeValueMemberB{Value: bytes.Clone(v.Bytes())}, nil
}

func (c bytesConverter) decode(av types.AttributeValue) (reflect.Value, bool, error) {
	b, ok := av.(*types.AttributeValueMemberB)
	if !ok {
		return reflect.Value{}, false, mismatch(KindB, av)
	}
	return reflect.ValueOf(bytes.Clone(b.Value)).Convert(c.typ), true, nil
}

type pointerConverter struct {
	typ  reflect.Type
	elem converter
}

func (c pointerConverter) kind() AttributeKind { return c.elem.kind() }

func (c pointerConverter) encode(v reflect.Value) (types.AttributeValue, error) {
	return encodeValue(c.elem, v.Elem())
}

func (c pointerConverter) decode(av types.AttributeValue) (reflect.Value, bool, error) {
	ev, present, err := decodeValue(c.elem, c.typ.Elem(), av)
	if err != nil || !present {
		return reflect.Value{}, present, err
	}
	p := reflect.New(c.typ.Elem())
	p.Elem().Set(ev)
	return p, true, nil
}

// listConverter handles slices and arrays as L attributes.
type listConverter struct {
	typ  reflect.Type
	elem converter
}

func (listConverter) kind() AttributeKind { return KindL }

func (c listConverter) encode(v reflect.Value) (types.AttributeValue, error) {
	out := make([]types.AttributeValue, v.Len())
	for i := range out {
		av, err := encodeValue(c.elem, v.Index(i))
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = av
	}
	return &types.AttributeValueMemberL{Value: out}, nil
}

func (c listConverter) decode(av types.AttributeValue) (reflect.Value, bool, error) {
	l, ok := av.(*types.AttributeValueMemberL)
	if !ok {
		return reflect.Value{}, false, mismatch(KindL, av)
	}
	var out reflect.Value
	if c.typ.Kind() == reflect.Array {
		if len(l.Value) > c.typ.Len() {
			return reflect.Value{}, false, fmt.Errorf("list of %d elements does not fit %s", len(l.Value), c.typ)
		}
		out = reflect.New(c.typ).Elem()
	} else {
		out = reflect.MakeSlice(c.typ, len(l.Value), len(l.Value))
	}
	for i, item := range l.Value {
		ev, present, err := decodeValue(c.elem, c.typ.Elem(), item)
		if err != nil {
			return reflect.Value{}, false, fmt.Errorf("index %d: %w", i, err)
		}
		if present {
			out.Index(i).Set(ev)
		}
	}
	return out, true, nil
}

// mapConverter handles maps with string-kinded keys as M attributes.
type mapConverter struct {
	typ  reflect.Type
	elem converter
}

func (mapConverter) kind() AttributeKind { return KindM }

func (c mapConverter) encode(v reflect.Value) (types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		k := iter.Key().String()
		av, err := encodeValue(c.elem, iter.Value())
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = av
	}
	return &types.AttributeValueMemberM{Value: out}, nil
}

func (c mapConverter) decode(av types.AttributeValue) (reflect.Value, bool, error) {
	m, ok := av.(*types.AttributeValueMemberM)
	if !ok {
		return reflect.Value{}, false, mismatch(KindM, av)
	}
	out := reflect.MakeMapWithSize(c.typ, len(m.Value))
	for k, item := range m.Value {
		ev, present, err := decodeValue(c.elem, c.typ.Elem(), item)
		if err != nil {
			return reflect.Value{}, false, fmt.Errorf("key %q: %w", k, err)
		}
		if !present {
			ev = reflect.Zero(c.typ.Elem())
		}
		out.SetMapIndex(reflect.ValueOf(k).Convert(c.typ.Key()), ev)
	}
	return out, true, nil
}

// setConverter handles slices tagged as sets and map[K]struct{} as native sets.
// Elements are de-duplicated and sorted so output is deterministic.
// Empty sets are stored as NULL since DynamoDB rejects them.
type setConverter struct {
	typ     reflect.Type
	elem    reflect.Type
	setKind AttributeKind
}

func newSetConverter(t reflect.Type, field string) (converter, error) {
	var elem reflect.Type
	switch {
	case t.Kind() == reflect.Slice:
		elem = t.Elem()
	case t.Kind() == reflect.Map && t.Elem() == emptyStructType:
		elem = t.Key()
	default:
		return nil, &UnsupportedTypeError{Type: t, Field: field, Reason: "sets must be slices or map[K]struct{}"}
	}
	c := setConverter{typ: t, elem: elem}
	switch {
	case elem.Kind() == reflect.String:
		c.setKind = KindSS
	case isNumberKind(elem.Kind()):
		c.setKind = KindNS
	case elem.Kind() == reflect.Slice && elem.Elem().Kind() == reflect.Uint8:
		c.setKind = KindBS
	default:
		return nil, &UnsupportedTypeError{Type: t, Field: field, Reason: fmt.Sprintf("sets of %s are not supported", elem)}
	}
	return c, nil
}

func (c setConverter) kind() AttributeKind { return c.setKind }

func (c setConverter) elements(v reflect.Value) []reflect.Value {
	if v.Kind() == reflect.Map {
		return v.MapKeys()
	}
	out := make([]reflect.Value, v.Len())
	for i := range out {
		out[i] = v.Index(i)
	}
	return out
}

func (c setConverter) encode(v reflect.Value) (types.AttributeValue, error) {
	elems := c.elements(v)
	if len(elems) == 0 {
		return nullValue(), nil
	}
	switch c.setKind {
	case KindBS:
		out := make([][]byte, 0, len(elems))
		for _, e := range elems {
			out = append(out, bytes.Clone(e.Bytes()))
		}
		slices.SortFunc(out, bytes.Compare)
		out = slices.CompactFunc(out, bytes.Equal)
		return &types.AttributeValueMemberBS{Value: out}, nil
	case KindNS:
		out := make([]string, 0, len(elems))
		for _, e := range elems {
			s, err := formatNumber(e)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return &types.AttributeValueMemberNS{Value: compactStrings(out)}, nil
	default:
		out := make([]string, 0, len(elems))
		for _, e := range elems {
			out = append(out, e.String())
		}
		return &types.AttributeValueMemberSS{Value: compactStrings(out)}, nil
	}
}

func (c setConverter) decode(av types.AttributeValue) (reflect.Value, bool, error) {
	var elems []reflect.Value
	switch v := av.(type) {
	case *types.AttributeValueMemberSS:
		if c.setKind != KindSS {
			return reflect.Value{}, false, mismatch(c.setKind, av)
		}
		for _, s := range v.Value {
			elems = append(elems, reflect.ValueOf(s).Convert(c.elem))
		}
	case *types.AttributeValueMemberNS:
		if c.setKind != KindNS {
			return reflect.Value{}, false, mismatch(c.setKind, av)
		}
		for _, s := range v.Value {
			e, err := parseNumber(&types.AttributeValueMemberN{Value: s}, c.elem)
			if err != nil {
				return reflect.Value{}, false, err
			}
			elems = append(elems, e)
		}
	case *types.AttributeValueMemberBS:
		if c.setKind != KindBS {
			return reflect.Value{}, false, mismatch(c.setKind, av)
		}
		for _, b := range v.Value {
			elems = append(elems, reflect.ValueOf(bytes.Clone(b)).Convert(c.elem))
		}
	default:
		return reflect.Value{}, false, mismatch(c.setKind, av)
	}
	if c.typ.Kind() == reflect.Map {
		out := reflect.MakeMapWithSize(c.typ, len(elems))
		for _, e := range elems {
			out.SetMapIndex(e, reflect.Zero(emptyStructType))
		}
		return out, true, nil
	}
	out := reflect.MakeSlice(c.typ, 0, len(elems))
	return reflect.Append(out, elems...), true, nil
}

func compactStrings(s []string) []string {
	slices.Sort(s)
	return slices.Compact(s)
}

// marshalerConverter delegates to types implementing the attributevalue
// Marshaler and Unmarshaler interfaces.
type marshalerConverter struct{ typ reflect.Type }

func isMarshaler(t reflect.Type) bool {
	pt := reflect.PointerTo(t)
	return (t.Implements(marshalerType) || pt.Implements(marshalerType)) && pt.Implements(unmarshalerType)
}

func (marshalerConverter) kind() AttributeKind { return KindUnknown }

func (c marshalerConverter) encode(v reflect.Value) (types.AttributeValue, error) {
	if c.typ.Implements(marshalerType) {
		return attributevalue.Marshal(v.Interface())
	}
	p := reflect.New(c.typ)
	p.Elem().Set(v)
	return attributevalue.Marshal(p.Interface())
}

func (c marshalerConverter) decode(av types.AttributeValue) (reflect.Value, bool, error) {
	p := reflect.New(c.typ)
	if err := attributevalue.Unmarshal(av, p.Interface()); err != nil {
		return reflect.Value{}, false, err
	}
	return p.Elem(), true, nil
}

// documentConverter stores a nested record as an M attribute using the nested
// type's own schema. The schema is reached through a reference that may still be
// a placeholder while the enclosing type is being derived.
type documentConverter struct {
	ref *schemaRef
}

func (documentConverter) kind() AttributeKind { return KindM }

func (c documentConverter) encode(v reflect.Value) (types.AttributeValue, error) {
	m, err := c.ref.get().encode(v, true)
	if err != nil {
		return nil, err
	}
	return &types.AttributeValueMemberM{Value: m}, nil
}

func (c documentConverter) decode(av types.AttributeValue) (reflect.Value, bool, error) {
	m, ok := av.(*types.AttributeValueMemberM)
	if !ok {
		return reflect.Value{}, false, mismatch(KindM, av)
	}
	rs := c.ref.get()
	if len(m.Value) == 0 && !rs.preserveEmpty {
		return reflect.Value{}, false, nil
	}
	v, err := rs.decode(m.Value)
	if err != nil {
		return reflect.Value{}, false, err
	}
	return v, true, nil
}

func isNumberKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
