package ddbschema

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// structPlan is the compiled layout of one struct type, either a record or a
// struct flattened into one.
type structPlan struct {
	typ      reflect.Type
	members  []member
	leaves   []*fieldDescriptor
	defaults func() reflect.Value
}

// member is one Go field of a struct plan. Exactly one of leaf and flat is set.
type member struct {
	name     string
	index    int
	typ      reflect.Type
	optional bool
	leaf     *fieldDescriptor
	flat     *structPlan
}

// recordBuilder collects decoded field values for a single record and builds it
// once every attribute has been read.
type recordBuilder struct {
	plan   *structPlan
	staged map[string]reflect.Value
}

func newRecordBuilder(plan *structPlan) *recordBuilder {
	return &recordBuilder{plan: plan, staged: make(map[string]reflect.Value, len(plan.members))}
}

func (b *recordBuilder) stage(name string, v reflect.Value) {
	b.staged[name] = v
}

// build starts from the type's defaults, or the zero value, and assigns every
// staged field. Unstaged optional fields keep their default, unstaged nillable
// fields are nil and any other unstaged field is an error.
func (b *recordBuilder) build() (out reflect.Value, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("build %s: %v", b.plan.typ, p)
		}
	}()
	out = reflect.New(b.plan.typ).Elem()
	if b.plan.defaults != nil {
		out.Set(b.plan.defaults())
	}
	var missing []string
	for _, m := range b.plan.members {
		f := out.Field(m.index)
		v, ok := b.staged[m.name]
		switch {
		case ok:
			f.Set(v)
		case m.optional:
		case nillable(m.typ):
			f.SetZero()
		default:
			missing = append(missing, m.leaf.StorageName)
		}
	}
	if len(missing) > 0 {
		return reflect.Value{}, &missingAttributesError{names: missing}
	}
	return out, nil
}

type missingAttributesError struct {
	names []string
}

func (e *missingAttributesError) Error() string {
	if len(e.names) == 1 {
		return "required attribute is missing"
	}
	return "required attributes are missing: " + strings.Join(e.names, ", ")
}

// decodePlan builds a value of plan.typ from m. present reports whether any
// attribute of the plan was found, which decides whether a flattened pointer is set.
func decodePlan(root reflect.Type, plan *structPlan, m map[string]types.AttributeValue) (v reflect.Value, present bool, err error) {
	b := newRecordBuilder(plan)
	for _, mem := range plan.members {
		if mem.flat != nil {
			isPtr := mem.typ.Kind() == reflect.Pointer
			if isPtr && !anyAttribute(mem.flat, m) {
				continue
			}
			fv, found, err := decodePlan(root, mem.flat, m)
			if err != nil {
				return reflect.Value{}, false, err
			}
			present = present || found
			if isPtr {
				p := reflect.New(mem.typ.Elem())
				p.Elem().Set(fv)
				fv = p
			}
			b.stage(mem.name, fv)
			continue
		}
		av, ok := m[mem.leaf.StorageName]
		if !ok {
			continue
		}
		present = true
		fv, found, err := decodeValue(mem.leaf.conv, mem.typ, av)
		if err != nil {
			return reflect.Value{}, false, &RecordMappingError{Type: root, Attribute: mem.leaf.StorageName, Err: err}
		}
		if found {
			b.stage(mem.name, fv)
		}
	}
	v, err = b.build()
	if err != nil {
		mapErr := &RecordMappingError{Type: root, Err: err}
		if missing, ok := err.(*missingAttributesError); ok && len(missing.names) == 1 {
			mapErr.Attribute = missing.names[0]
		}
		return reflect.Value{}, false, mapErr
	}
	return v, present, nil
}

// anyAttribute reports whether m holds a non-null attribute of plan. A nil
// flattened pointer written with nulls included is all NULL markers.
func anyAttribute(plan *structPlan, m map[string]types.AttributeValue) bool {
	for _, f := range plan.leaves {
		if av, ok := m[f.StorageName]; ok && !IsNull(av) {
			return true
		}
	}
	return false
}
