package ddbschema

import (
	"github.com/acksell/recordschema/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// AttributeKind names the attribute value variant a converter produces.
type AttributeKind string

const (
	KindUnknown AttributeKind = ""
	KindS       AttributeKind = "S"
	KindN       AttributeKind = "N"
	KindB       AttributeKind = "B"
	KindBOOL    AttributeKind = "BOOL"
	KindNULL    AttributeKind = "NULL"
	KindSS      AttributeKind = "SS"
	KindNS      AttributeKind = "NS"
	KindBS      AttributeKind = "BS"
	KindL       AttributeKind = "L"
	KindM       AttributeKind = "M"
)

// KeyKind returns the table key kind for scalar kinds.
// Only S, N and B can be used as key attributes.
func (k AttributeKind) KeyKind() (table.KeyKind, bool) {
	switch k {
	case KindS:
		return table.KeyKindS, true
	case KindN:
		return table.KeyKindN, true
	case KindB:
		return table.KeyKindB, true
	}
	return "", false
}

// KindOf reports the kind of an attribute value.
func KindOf(av types.AttributeValue) AttributeKind {
	switch av.(type) {
	case *types.AttributeValueMemberS:
		return KindS
	case *types.AttributeValueMemberN:
		return KindN
	case *types.AttributeValueMemberB:
		return KindB
	case *types.AttributeValueMemberBOOL:
		return KindBOOL
	case *types.AttributeValueMemberNULL:
		return KindNULL
	case *types.AttributeValueMemberSS:
		return KindSS
	case *types.AttributeValueMemberNS:
		return KindNS
	case *types.AttributeValueMemberBS:
		return KindBS
	case *types.AttributeValueMemberL:
		return KindL
	case *types.AttributeValueMemberM:
		return KindM
	}
	return KindUnknown
}

// IsNull reports whether av is the null marker.
func IsNull(av types.AttributeValue) bool {
	n, ok := av.(*types.AttributeValueMemberNULL)
	return ok && n.Value
}

func nullValue() types.AttributeValue {
	return &types.AttributeValueMemberNULL{Value: true}
}
