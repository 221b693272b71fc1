package table

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type TableDefinition struct {
	Name           string
	KeyDefinitions PrimaryKeyDefinition
	GSIs           []IndexDefinition
	LSIs           []IndexDefinition
}

// Index looks up a secondary index by name, global indexes first.
func (t TableDefinition) Index(name string) (IndexDefinition, bool) {
	for _, idx := range t.GSIs {
		if idx.Name == name {
			return idx, true
		}
	}
	for _, idx := range t.LSIs {
		if idx.Name == name {
			return idx, true
		}
	}
	return IndexDefinition{}, false
}

// Indexes returns all secondary indexes of the table.
func (t TableDefinition) Indexes() []IndexDefinition {
	out := make([]IndexDefinition, 0, len(t.GSIs)+len(t.LSIs))
	out = append(out, t.GSIs...)
	return append(out, t.LSIs...)
}

// AttributeKinds collects the kind of every key attribute of the table and its indexes.
// Conflicting kinds for the same attribute name are an error.
func (t TableDefinition) AttributeKinds() (map[string]KeyKind, error) {
	kinds := make(map[string]KeyKind)
	add := func(def KeyDef) error {
		if def.Name == "" {
			return nil
		}
		if !def.Kind.Valid() {
			return fmt.Errorf("key %q has invalid kind %q", def.Name, def.Kind)
		}
		if prev, ok := kinds[def.Name]; ok && prev != def.Kind {
			return fmt.Errorf("key %q declared as both %s and %s", def.Name, prev, def.Kind)
		}
		kinds[def.Name] = def.Kind
		return nil
	}
	defs := []PrimaryKeyDefinition{t.KeyDefinitions}
	for _, idx := range t.Indexes() {
		defs = append(defs, idx.KeyDefinitions)
	}
	for _, d := range defs {
		if err := add(d.PartitionKey); err != nil {
			return nil, err
		}
		if err := add(d.SortKey); err != nil {
			return nil, err
		}
	}
	return kinds, nil
}

// Validate checks the structural rules DynamoDB enforces on table definitions.
func (t TableDefinition) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("table name is required")
	}
	if t.KeyDefinitions.PartitionKey.Name == "" {
		return fmt.Errorf("table %s: partition key is required", t.Name)
	}
	seen := make(map[string]bool)
	for _, idx := range t.Indexes() {
		if idx.Name == "" {
			return fmt.Errorf("table %s: index name is required", t.Name)
		}
		if seen[idx.Name] {
			return fmt.Errorf("table %s: duplicate index %q", t.Name, idx.Name)
		}
		seen[idx.Name] = true
		if idx.KeyDefinitions.PartitionKey.Name == "" {
			return fmt.Errorf("table %s: index %q has no partition key", t.Name, idx.Name)
		}
	}
	for _, lsi := range t.LSIs {
		if lsi.KeyDefinitions.PartitionKey != t.KeyDefinitions.PartitionKey {
			return fmt.Errorf("table %s: local index %q must share the table partition key", t.Name, lsi.Name)
		}
		if !lsi.KeyDefinitions.HasSortKey() {
			return fmt.Errorf("table %s: local index %q requires a sort key", t.Name, lsi.Name)
		}
	}
	_, err := t.AttributeKinds()
	if err != nil {
		return fmt.Errorf("table %s: %w", t.Name, err)
	}
	return nil
}

func (t TableDefinition) ExtractPrimaryKey(doc map[string]types.AttributeValue) (PrimaryKey, error) {
	return t.KeyDefinitions.ExtractPrimaryKey(doc)
}

func (k PrimaryKeyDefinition) ExtractPrimaryKey(doc map[string]types.AttributeValue) (PrimaryKey, error) {
	part, ok := doc[k.PartitionKey.Name]
	if !ok {
		return PrimaryKey{}, fmt.Errorf("partition key %q not found", k.PartitionKey.Name)
	}
	if err := attributeMatchesDefinition(k.PartitionKey.Kind, part); err != nil {
		return PrimaryKey{}, fmt.Errorf("document key %q kind does not match definition: %w", k.PartitionKey.Name, err)
	}
	pk := PrimaryKey{
		Definition:   k,
		PartitionKey: part,
	}
	if !k.HasSortKey() {
		return pk, nil
	}
	sort, ok := doc[k.SortKey.Name]
	if !ok {
		return PrimaryKey{}, fmt.Errorf("sort key %q not found on document", k.SortKey.Name)
	}
	if err := attributeMatchesDefinition(k.SortKey.Kind, sort); err != nil {
		return PrimaryKey{}, fmt.Errorf("sort key %q kind does not match definition: %w", k.SortKey.Name, err)
	}
	pk.SortKey = sort
	return pk, nil
}
