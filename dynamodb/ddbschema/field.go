package ddbschema

import (
	"reflect"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type KeyRoleKind int

const (
	PrimaryPartition KeyRoleKind = iota + 1
	PrimarySort
	SecondaryPartition
	SecondarySort
)

func (k KeyRoleKind) String() string {
	switch k {
	case PrimaryPartition:
		return "primary-partition"
	case PrimarySort:
		return "primary-sort"
	case SecondaryPartition:
		return "secondary-partition"
	case SecondarySort:
		return "secondary-sort"
	}
	return "unknown"
}

// KeyRole marks a field as part of the primary key or of a named secondary index.
// Index is empty for primary roles.
type KeyRole struct {
	Kind  KeyRoleKind
	Index string
}

func (r KeyRole) indexName() string {
	if r.Kind == PrimaryPartition || r.Kind == PrimarySort {
		return PrimaryIndexName
	}
	return r.Index
}

func (r KeyRole) partition() bool {
	return r.Kind == PrimaryPartition || r.Kind == SecondaryPartition
}

// Field describes one stored attribute of a record type.
type Field struct {
	// StorageName is the attribute name in the item.
	StorageName string
	// NativeName is the Go field name.
	NativeName string
	// Path is the dotted Go field path, which differs from NativeName for
	// fields spliced in from flattened structs.
	Path      string
	Type      reflect.Type
	Kind      AttributeKind
	Required  bool
	KeyRoles  []KeyRole
	Flattened bool
}

type fieldDescriptor struct {
	Field
	conv converter
	// get reads the field from a record value. It reports false when a
	// flattened pointer on the way to the field is nil.
	get func(record reflect.Value) (reflect.Value, bool)
}

func (f *fieldDescriptor) encode(record reflect.Value) (types.AttributeValue, error) {
	v, ok := f.get(record)
	if !ok {
		return nullValue(), nil
	}
	return encodeValue(f.conv, v)
}

func fieldGetter(index int) func(reflect.Value) (reflect.Value, bool) {
	return func(record reflect.Value) (reflect.Value, bool) {
		return record.Field(index), true
	}
}

// flattenedGetter reads a spliced field through the struct field at index.
func flattenedGetter(index int, inner func(reflect.Value) (reflect.Value, bool)) func(reflect.Value) (reflect.Value, bool) {
	return func(record reflect.Value) (reflect.Value, bool) {
		v := record.Field(index)
		if v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		return inner(v)
	}
}

func keyRoles(tag fieldTag) []KeyRole {
	var roles []KeyRole
	if tag.pk {
		roles = append(roles, KeyRole{Kind: PrimaryPartition})
	}
	if tag.sk {
		roles = append(roles, KeyRole{Kind: PrimarySort})
	}
	for _, name := range tag.indexPK {
		roles = append(roles, KeyRole{Kind: SecondaryPartition, Index: name})
	}
	for _, name := range tag.indexSK {
		roles = append(roles, KeyRole{Kind: SecondarySort, Index: name})
	}
	return roles
}
