package ddbschema

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	ErrInvalidRecordType      = errors.New("ddbschema: invalid record type")
	ErrUnsupportedType        = errors.New("ddbschema: unsupported type")
	ErrConverterInstantiation = errors.New("ddbschema: converter instantiation failed")
	ErrIndexConfig            = errors.New("ddbschema: invalid index configuration")
	ErrRecordMapping          = errors.New("ddbschema: record mapping failed")
	ErrIndexNotFound          = errors.New("ddbschema: index not found")
	ErrAttributeNotFound      = errors.New("ddbschema: attribute not found")
)

// InvalidRecordTypeError reports a type that cannot be built field by field,
// such as a non-struct or a struct with unexported state.
type InvalidRecordTypeError struct {
	Type   reflect.Type
	Reason string
}

func (e *InvalidRecordTypeError) Error() string {
	return fmt.Sprintf("invalid record type %s: %s", e.Type, e.Reason)
}

func (e *InvalidRecordTypeError) Unwrap() error { return ErrInvalidRecordType }

// UnsupportedTypeError reports a field type no converter can be resolved for.
type UnsupportedTypeError struct {
	Type   reflect.Type
	Field  string
	Reason string
}

func (e *UnsupportedTypeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("unsupported type %s: %s", e.Type, e.Reason)
	}
	return fmt.Sprintf("field %s: unsupported type %s: %s", e.Field, e.Type, e.Reason)
}

func (e *UnsupportedTypeError) Unwrap() error { return ErrUnsupportedType }

// ConverterInstantiationError reports a named converter that could not be created
// or does not fit the field it is configured on.
type ConverterInstantiationError struct {
	Name  string
	Field string
	Err   error
}

func (e *ConverterInstantiationError) Error() string {
	return fmt.Sprintf("field %s: instantiate converter %q: %v", e.Field, e.Name, e.Err)
}

func (e *ConverterInstantiationError) Unwrap() []error {
	return []error{ErrConverterInstantiation, e.Err}
}

// IndexConfigError reports an invalid combination of key tags.
type IndexConfigError struct {
	Type   reflect.Type
	Index  string
	Reason string
}

func (e *IndexConfigError) Error() string {
	return fmt.Sprintf("record type %s: index %s: %s", e.Type, e.Index, e.Reason)
}

func (e *IndexConfigError) Unwrap() error { return ErrIndexConfig }

// RecordMappingError is returned when an attribute map cannot be turned into a record.
// Attribute is empty when the failure is not tied to a single attribute.
type RecordMappingError struct {
	Type      reflect.Type
	Attribute string
	Err       error
}

func (e *RecordMappingError) Error() string {
	if e.Attribute == "" {
		return fmt.Sprintf("could not map item to %s: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("could not map item to %s: attribute %q: %v", e.Type, e.Attribute, e.Err)
}

func (e *RecordMappingError) Unwrap() []error {
	return []error{ErrRecordMapping, e.Err}
}
