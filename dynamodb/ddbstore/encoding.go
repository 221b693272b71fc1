package ddbstore

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"math"
	"strconv"

	"github.com/acksell/recordschema/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Badger keys preserve DynamoDB ordering when compared as bytes.
//
//	table item:   t 0x00 [table] 0x00 [pk] 0x00 [sk]
//	index entry:  i 0x00 [table] 0x00 [index] 0x00 [index pk] 0x00 [index sk] 0x00 [pk] 0x00 [sk]
//	catalog:      c 0x00 [table]
//
// Index entries carry the table key so that items sharing index key values
// get distinct entries.

const keySeparator byte = 0x00

const (
	keyTypeString byte = 'S'
	keyTypeNumber byte = 'N'
	keyTypeBinary byte = 'B'
)

func tablePrefix(tableName string) []byte {
	return joinKey([]byte("t"), escapeBytes([]byte(tableName)))
}

func indexPrefix(tableName, indexName string) []byte {
	return joinKey([]byte("i"), escapeBytes([]byte(tableName)), escapeBytes([]byte(indexName)))
}

func catalogPrefix() []byte {
	return []byte{'c', keySeparator}
}

func catalogKey(tableName string) []byte {
	return append(catalogPrefix(), escapeBytes([]byte(tableName))...)
}

// joinKey writes each part followed by the separator.
func joinKey(parts ...[]byte) []byte {
	var buf bytes.Buffer
	for _, p := range parts {
		buf.Write(p)
		buf.WriteByte(keySeparator)
	}
	return buf.Bytes()
}

// keyEncoder encodes the keys of a table, or of an index when tableKeys is set.
type keyEncoder struct {
	prefix    []byte
	keys      table.PrimaryKeyDefinition
	tableKeys *table.PrimaryKeyDefinition
}

func (e *keyEncoder) isIndex() bool {
	return e.tableKeys != nil
}

// encodeKey encodes the badger key of item. ok is false when item lacks an
// index key attribute and so has no entry in the index.
func (e *keyEncoder) encodeKey(item map[string]types.AttributeValue) (key []byte, ok bool, err error) {
	if e.isIndex() && !hasAttributes(item, e.keys.Names()) {
		return nil, false, nil
	}
	pk, err := e.keys.ExtractPrimaryKey(item)
	if err != nil {
		return nil, false, validationError("%v", err)
	}
	parts := [][]byte{e.prefix}
	parts, err = appendKeyParts(parts, pk)
	if err != nil {
		return nil, false, err
	}
	if e.isIndex() {
		tpk, err := e.tableKeys.ExtractPrimaryKey(item)
		if err != nil {
			return nil, false, validationError("%v", err)
		}
		parts, err = appendKeyParts(parts, tpk)
		if err != nil {
			return nil, false, err
		}
	}
	var buf bytes.Buffer
	buf.Write(parts[0])
	for _, p := range parts[1:] {
		buf.Write(p)
		buf.WriteByte(keySeparator)
	}
	return buf.Bytes(), true, nil
}

func appendKeyParts(parts [][]byte, pk table.PrimaryKey) ([][]byte, error) {
	b, err := encodeKeyValue(pk.PartitionKey, pk.Definition.PartitionKey.Kind)
	if err != nil {
		return nil, fmt.Errorf("encode partition key: %w", err)
	}
	parts = append(parts, b)
	if pk.Definition.HasSortKey() {
		b, err := encodeKeyValue(pk.SortKey, pk.Definition.SortKey.Kind)
		if err != nil {
			return nil, fmt.Errorf("encode sort key: %w", err)
		}
		parts = append(parts, b)
	}
	return parts, nil
}

// partitionPrefix returns the prefix shared by every key in one partition.
func (e *keyEncoder) partitionPrefix(partitionKey types.AttributeValue) ([]byte, error) {
	b, err := encodeKeyValue(partitionKey, e.keys.PartitionKey.Kind)
	if err != nil {
		return nil, fmt.Errorf("encode partition key: %w", err)
	}
	out := bytes.Clone(e.prefix)
	out = append(out, b...)
	return append(out, keySeparator), nil
}

// lastEvaluatedKey returns the attributes needed to resume after item.
func (e *keyEncoder) lastEvaluatedKey(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	names := e.keys.Names()
	if e.isIndex() {
		names = append(names, e.tableKeys.Names()...)
	}
	out := make(map[string]types.AttributeValue, len(names))
	for _, name := range names {
		if av, ok := item[name]; ok {
			out[name] = av
		}
	}
	return out
}

func hasAttributes(item map[string]types.AttributeValue, names []string) bool {
	for _, name := range names {
		if _, ok := item[name]; !ok {
			return false
		}
	}
	return true
}

// encodeKeyValue encodes a key value with proper ordering based on key kind.
func encodeKeyValue(av types.AttributeValue, kind table.KeyKind) ([]byte, error) {
	var buf bytes.Buffer
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		if kind != table.KeyKindS {
			return nil, validationError("expected %s key, got S", kind)
		}
		buf.WriteByte(keyTypeString)
		buf.Write(escapeBytes([]byte(v.Value)))
	case *types.AttributeValueMemberN:
		if kind != table.KeyKindN {
			return nil, validationError("expected %s key, got N", kind)
		}
		encoded, err := encodeNumber(v.Value)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(keyTypeNumber)
		buf.Write(encoded)
	case *types.AttributeValueMemberB:
		if kind != table.KeyKindB {
			return nil, validationError("expected %s key, got B", kind)
		}
		buf.WriteByte(keyTypeBinary)
		buf.Write(escapeBytes(v.Value))
	default:
		return nil, validationError("unsupported key attribute type %T", av)
	}
	return buf.Bytes(), nil
}

// encodeNumber encodes a number string for lexicographic ordering.
// Positive numbers: 0x80 + big-endian float64 bits with the sign bit flipped.
// Negative numbers: 0x7F + big-endian float64 bits inverted.
func encodeNumber(numStr string) ([]byte, error) {
	f, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return nil, validationError("parse number %q: %v", numStr, err)
	}
	bits := math.Float64bits(f)
	buf := make([]byte, 9)
	if f >= 0 {
		buf[0] = 0x80
		bits ^= 1 << 63
	} else {
		buf[0] = 0x7F
		bits = ^bits
	}
	binary.BigEndian.PutUint64(buf[1:], bits)
	return buf, nil
}

// escapeBytes escapes 0x00 and 0x01 so encoded values never contain the
// separator. 0x00 becomes 0x01 0x01 and 0x01 becomes 0x01 0x02, which keeps
// the byte order of the input.
func escapeBytes(b []byte) []byte {
	var buf bytes.Buffer
	for _, c := range b {
		switch c {
		case 0x00:
			buf.Write([]byte{0x01, 0x01})
		case 0x01:
			buf.Write([]byte{0x01, 0x02})
		default:
			buf.WriteByte(c)
		}
	}
	return buf.Bytes()
}

// Items are stored gob-encoded in a tagged form of the AttributeValue union.

func serializeItem(item map[string]types.AttributeValue) ([]byte, error) {
	serializable := make(map[string]serializableAV, len(item))
	for k, v := range item {
		sav, err := toSerializable(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		serializable[k] = sav
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(serializable); err != nil {
		return nil, fmt.Errorf("encode item: %w", err)
	}
	return buf.Bytes(), nil
}

func deserializeItem(data []byte) (map[string]types.AttributeValue, error) {
	var serializable map[string]serializableAV
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&serializable); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	out := make(map[string]types.AttributeValue, len(serializable))
	for k, v := range serializable {
		av, err := fromSerializable(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		out[k] = av
	}
	return out, nil
}

type serializableAV struct {
	Type  string
	Value any
}

func init() {
	gob.Register(map[string]serializableAV{})
	gob.Register([]serializableAV{})
	gob.Register([][]byte{})
}

func toSerializable(av types.AttributeValue) (serializableAV, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return serializableAV{Type: "S", Value: v.Value}, nil
	case *types.AttributeValueMemberN:
		return serializableAV{Type: "N", Value: v.Value}, nil
	case *types.AttributeValueMemberB:
		return serializableAV{Type: "B", Value: v.Value}, nil
	case *types.AttributeValueMemberBOOL:
		return serializableAV{Type: "BOOL", Value: v.Value}, nil
	case *types.AttributeValueMemberNULL:
		return serializableAV{Type: "NULL", Value: v.Value}, nil
	case *types.AttributeValueMemberSS:
		return serializableAV{Type: "SS", Value: v.Value}, nil
	case *types.AttributeValueMemberNS:
		return serializableAV{Type: "NS", Value: v.Value}, nil
	case *types.AttributeValueMemberBS:
		return serializableAV{Type: "BS", Value: v.Value}, nil
	case *types.AttributeValueMemberM:
		m := make(map[string]serializableAV, len(v.Value))
		for k, val := range v.Value {
			sav, err := toSerializable(val)
			if err != nil {
				return serializableAV{}, err
			}
			m[k] = sav
		}
		return serializableAV{Type: "M", Value: m}, nil
	case *types.AttributeValueMemberL:
		l := make([]serializableAV, len(v.Value))
		for i, val := range v.Value {
			sav, err := toSerializable(val)
			if err != nil {
				return serializableAV{}, err
			}
			l[i] = sav
		}
		return serializableAV{Type: "L", Value: l}, nil
	}
	return serializableAV{}, validationError("unsupported attribute value type %T", av)
}

func fromSerializable(sav serializableAV) (types.AttributeValue, error) {
	switch sav.Type {
	case "S":
		return &types.AttributeValueMemberS{Value: sav.Value.(string)}, nil
	case "N":
		return &types.AttributeValueMemberN{Value: sav.Value.(string)}, nil
	case "B":
		return &types.AttributeValueMemberB{Value: sav.Value.([]byte)}, nil
	case "BOOL":
		return &types.AttributeValueMemberBOOL{Value: sav.Value.(bool)}, nil
	case "NULL":
		return &types.AttributeValueMemberNULL{Value: sav.Value.(bool)}, nil
	case "SS":
		return &types.AttributeValueMemberSS{Value: sav.Value.([]string)}, nil
	case "NS":
		return &types.AttributeValueMemberNS{Value: sav.Value.([]string)}, nil
	case "BS":
		return &types.AttributeValueMemberBS{Value: sav.Value.([][]byte)}, nil
	case "M":
		src := sav.Value.(map[string]serializableAV)
		m := make(map[string]types.AttributeValue, len(src))
		for k, v := range src {
			av, err := fromSerializable(v)
			if err != nil {
				return nil, err
			}
			m[k] = av
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	case "L":
		src := sav.Value.([]serializableAV)
		l := make([]types.AttributeValue, len(src))
		for i, v := range src {
			av, err := fromSerializable(v)
			if err != nil {
				return nil, err
			}
			l[i] = av
		}
		return &types.AttributeValueMemberL{Value: l}, nil
	}
	return nil, fmt.Errorf("unsupported serialized type %q", sav.Type)
}
