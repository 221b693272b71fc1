package table

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// PrimaryKeyDefinition describes the key schema of a table or index.
// An empty SortKey.Name means the key has no sort component.
type PrimaryKeyDefinition struct {
	PartitionKey KeyDef
	SortKey      KeyDef
}

func (k PrimaryKeyDefinition) HasSortKey() bool {
	return k.SortKey.Name != ""
}

// Names returns the key attribute names, partition key first.
func (k PrimaryKeyDefinition) Names() []string {
	if k.HasSortKey() {
		return []string{k.PartitionKey.Name, k.SortKey.Name}
	}
	return []string{k.PartitionKey.Name}
}

type KeyDef struct {
	Name string
	Kind KeyKind
}

type KeyKind string

const (
	KeyKindS KeyKind = "S"
	KeyKindN KeyKind = "N"
	KeyKindB KeyKind = "B"
)

func (k KeyKind) Valid() bool {
	switch k {
	case KeyKindS, KeyKindN, KeyKindB:
		return true
	}
	return false
}

// ScalarAttributeType converts the kind to the SDK's attribute type.
func (k KeyKind) ScalarAttributeType() types.ScalarAttributeType {
	return types.ScalarAttributeType(k)
}

// PrimaryKey holds the key attribute values of a single item,
// checked against the definition they were extracted with.
type PrimaryKey struct {
	Definition   PrimaryKeyDefinition
	PartitionKey types.AttributeValue
	SortKey      types.AttributeValue
}

// Item returns the key as an attribute map, as used for GetItem and DeleteItem.
func (k PrimaryKey) Item() map[string]types.AttributeValue {
	out := map[string]types.AttributeValue{
		k.Definition.PartitionKey.Name: k.PartitionKey,
	}
	if k.Definition.HasSortKey() {
		out[k.Definition.SortKey.Name] = k.SortKey
	}
	return out
}

// KindOf reports the key kind of a scalar attribute value.
func KindOf(v types.AttributeValue) (KeyKind, error) {
	switch v.(type) {
	case *types.AttributeValueMemberS:
		return KeyKindS, nil
	case *types.AttributeValueMemberN:
		return KeyKindN, nil
	case *types.AttributeValueMemberB:
		return KeyKindB, nil
	default:
		return "", fmt.Errorf("unexpected key attribute type %T", v)
	}
}

func attributeMatchesDefinition(want KeyKind, v types.AttributeValue) error {
	got, err := KindOf(v)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("got KeyKind %q want %q", got, want)
	}
	return nil
}
