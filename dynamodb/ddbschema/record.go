package ddbschema

import (
	"fmt"
	"reflect"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// recordSchema is the untyped, immutable schema of one record type.
// It is what the cache stores and what document converters point at.
type recordSchema struct {
	typ           reflect.Type
	plan          *structPlan
	fields        []*fieldDescriptor
	byName        map[string]*fieldDescriptor
	names         []string
	preserveEmpty bool
	index         *IndexMetadata
}

func (rs *recordSchema) encode(v reflect.Value, includeNulls bool) (map[string]types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue, len(rs.fields))
	for _, f := range rs.fields {
		av, err := f.encode(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s attribute %q: %w", rs.typ, f.StorageName, err)
		}
		out[f.StorageName] = av
	}
	if !includeNulls {
		for name, av := range out {
			if IsNull(av) {
				delete(out, name)
			}
		}
	}
	return out, nil
}

func (rs *recordSchema) encodeOnly(v reflect.Value, names []string) (map[string]types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue, len(names))
	for _, name := range names {
		f, ok := rs.byName[name]
		if !ok {
			continue
		}
		av, err := f.encode(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s attribute %q: %w", rs.typ, name, err)
		}
		out[name] = av
	}
	return out, nil
}

func (rs *recordSchema) decode(m map[string]types.AttributeValue) (reflect.Value, error) {
	v, _, err := decodePlan(rs.typ, rs.plan, m)
	return v, err
}
