package table

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// IndexDefinition represents a global or local secondary index.
type IndexDefinition struct {
	Name           string
	KeyDefinitions PrimaryKeyDefinition
	// Projection defaults to ALL when nil.
	Projection *types.Projection
}

// ExtractPrimaryKey extracts the index key values from a document.
// Documents without the index keys are not part of the index.
func (i IndexDefinition) ExtractPrimaryKey(doc map[string]types.AttributeValue) (PrimaryKey, error) {
	return i.KeyDefinitions.ExtractPrimaryKey(doc)
}

func (i IndexDefinition) projection() *types.Projection {
	if i.Projection != nil {
		return i.Projection
	}
	return &types.Projection{ProjectionType: types.ProjectionTypeAll}
}
