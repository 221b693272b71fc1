package table

import (
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// CreateTableInput builds the request creating the table with all its indexes.
// Tables are created with on-demand billing.
func (t TableDefinition) CreateTableInput() (*dynamodb.CreateTableInput, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	kinds, err := t.AttributeKinds()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(kinds))
	for name := range kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	attrs := make([]types.AttributeDefinition, 0, len(names))
	for _, name := range names {
		attrs = append(attrs, types.AttributeDefinition{
			AttributeName: aws.String(name),
			AttributeType: kinds[name].ScalarAttributeType(),
		})
	}

	in := &dynamodb.CreateTableInput{
		TableName:            aws.String(t.Name),
		AttributeDefinitions: attrs,
		KeySchema:            keySchema(t.KeyDefinitions),
		BillingMode:          types.BillingModePayPerRequest,
	}
	for _, gsi := range t.GSIs {
		in.GlobalSecondaryIndexes = append(in.GlobalSecondaryIndexes, types.GlobalSecondaryIndex{
			IndexName:  aws.String(gsi.Name),
			KeySchema:  keySchema(gsi.KeyDefinitions),
			Projection: gsi.projection(),
		})
	}
	for _, lsi := range t.LSIs {
		in.LocalSecondaryIndexes = append(in.LocalSecondaryIndexes, types.LocalSecondaryIndex{
			IndexName:  aws.String(lsi.Name),
			KeySchema:  keySchema(lsi.KeyDefinitions),
			Projection: lsi.projection(),
		})
	}
	return in, nil
}

func keySchema(k PrimaryKeyDefinition) []types.KeySchemaElement {
	out := []types.KeySchemaElement{{
		AttributeName: aws.String(k.PartitionKey.Name),
		KeyType:       types.KeyTypeHash,
	}}
	if k.HasSortKey() {
		out = append(out, types.KeySchemaElement{
			AttributeName: aws.String(k.SortKey.Name),
			KeyType:       types.KeyTypeRange,
		})
	}
	return out
}

// FromCreateTableInput is the inverse of CreateTableInput.
func FromCreateTableInput(in *dynamodb.CreateTableInput) (TableDefinition, error) {
	if in == nil {
		return TableDefinition{}, fmt.Errorf("input is required")
	}
	kinds := make(map[string]KeyKind, len(in.AttributeDefinitions))
	for _, a := range in.AttributeDefinitions {
		kinds[aws.ToString(a.AttributeName)] = KeyKind(a.AttributeType)
	}
	def := TableDefinition{Name: aws.ToString(in.TableName)}
	var err error
	def.KeyDefinitions, err = fromKeySchema(in.KeySchema, kinds)
	if err != nil {
		return TableDefinition{}, fmt.Errorf("table %s: %w", def.Name, err)
	}
	for _, gsi := range in.GlobalSecondaryIndexes {
		keys, err := fromKeySchema(gsi.KeySchema, kinds)
		if err != nil {
			return TableDefinition{}, fmt.Errorf("index %s: %w", aws.ToString(gsi.IndexName), err)
		}
		def.GSIs = append(def.GSIs, IndexDefinition{Name: aws.ToString(gsi.IndexName), KeyDefinitions: keys, Projection: gsi.Projection})
	}
	for _, lsi := range in.LocalSecondaryIndexes {
		keys, err := fromKeySchema(lsi.KeySchema, kinds)
		if err != nil {
			return TableDefinition{}, fmt.Errorf("index %s: %w", aws.ToString(lsi.IndexName), err)
		}
		def.LSIs = append(def.LSIs, IndexDefinition{Name: aws.ToString(lsi.IndexName), KeyDefinitions: keys, Projection: lsi.Projection})
	}
	return def, def.Validate()
}

func fromKeySchema(elems []types.KeySchemaElement, kinds map[string]KeyKind) (PrimaryKeyDefinition, error) {
	var k PrimaryKeyDefinition
	for _, e := range elems {
		name := aws.ToString(e.AttributeName)
		kind, ok := kinds[name]
		if !ok {
			return k, fmt.Errorf("key %q has no attribute definition", name)
		}
		switch e.KeyType {
		case types.KeyTypeHash:
			k.PartitionKey = KeyDef{Name: name, Kind: kind}
		case types.KeyTypeRange:
			k.SortKey = KeyDef{Name: name, Kind: kind}
		default:
			return k, fmt.Errorf("key %q has unknown key type %q", name, e.KeyType)
		}
	}
	if k.PartitionKey.Name == "" {
		return k, fmt.Errorf("key schema has no HASH key")
	}
	return k, nil
}

// Describe renders the definition in the shape returned by DescribeTable.
func (t TableDefinition) Describe() *types.TableDescription {
	in, err := t.CreateTableInput()
	if err != nil {
		return &types.TableDescription{TableName: aws.String(t.Name)}
	}
	desc := &types.TableDescription{
		TableName:            in.TableName,
		AttributeDefinitions: in.AttributeDefinitions,
		KeySchema:            in.KeySchema,
		TableStatus:          types.TableStatusActive,
		BillingModeSummary:   &types.BillingModeSummary{BillingMode: in.BillingMode},
	}
	for _, gsi := range in.GlobalSecondaryIndexes {
		desc.GlobalSecondaryIndexes = append(desc.GlobalSecondaryIndexes, types.GlobalSecondaryIndexDescription{
			IndexName:   gsi.IndexName,
			KeySchema:   gsi.KeySchema,
			Projection:  gsi.Projection,
			IndexStatus: types.IndexStatusActive,
		})
	}
	for _, lsi := range in.LocalSecondaryIndexes {
		desc.LocalSecondaryIndexes = append(desc.LocalSecondaryIndexes, types.LocalSecondaryIndexDescription{
			IndexName:  lsi.IndexName,
			KeySchema:  lsi.KeySchema,
			Projection: lsi.Projection,
		})
	}
	return desc
}
