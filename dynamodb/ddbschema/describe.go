package ddbschema

import (
	"github.com/acksell/recordschema/dynamodb/schema"
)

// Describe renders the table layout of T and its fields for a table called tableName.
// Records without a partition key describe an empty key.
func (s *Schema[T]) Describe(tableName string) schema.Table {
	md := s.rs.index
	t := schema.Table{Name: tableName}
	if primary, ok := md.PrimaryIndex(); ok {
		t.PartitionKey, t.SortKey = describeKeys(primary)
	}
	for _, idx := range md.GlobalIndices() {
		t.GSIs = append(t.GSIs, describeIndex(idx))
	}
	for _, idx := range md.LocalIndices() {
		t.LSIs = append(t.LSIs, describeIndex(idx))
	}

	rec := schema.Record{Type: s.rs.typ.String()}
	for _, f := range s.rs.fields {
		sf := schema.Field{
			Name:      f.Path,
			Attribute: f.StorageName,
			Type:      f.Type.String(),
			Kind:      string(f.Kind),
			Required:  f.Required,
		}
		for _, role := range f.KeyRoles {
			key := role.Kind.String()
			if role.Index != "" {
				key += ":" + role.Index
			}
			sf.Keys = append(sf.Keys, key)
		}
		rec.Fields = append(rec.Fields, sf)
	}
	t.Records = []schema.Record{rec}
	return t
}

func describeKeys(idx Index) (schema.KeyDef, *schema.KeyDef) {
	pk := schema.KeyDef{Name: idx.PartitionKey.Name, Kind: string(idx.PartitionKey.Kind)}
	if idx.SortKey == nil {
		return pk, nil
	}
	return pk, &schema.KeyDef{Name: idx.SortKey.Name, Kind: string(idx.SortKey.Kind)}
}

func describeIndex(idx Index) schema.Index {
	pk, sk := describeKeys(idx)
	return schema.Index{Name: idx.Name, PartitionKey: pk, SortKey: sk}
}
