package ddbschema

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/acksell/recordschema/dynamodb/table"
)

// PrimaryIndexName names the table's own key in IndexMetadata.
const PrimaryIndexName = "$PRIMARY_INDEX"

type KeyAttribute struct {
	Name string
	Kind table.KeyKind
}

// Index is the key layout of the primary index or of one secondary index.
type Index struct {
	Name         string
	PartitionKey KeyAttribute
	SortKey      *KeyAttribute
}

func (i Index) IsPrimary() bool {
	return i.Name == PrimaryIndexName
}

// Keys returns the key attribute names, partition key first.
func (i Index) Keys() []string {
	if i.SortKey == nil {
		return []string{i.PartitionKey.Name}
	}
	return []string{i.PartitionKey.Name, i.SortKey.Name}
}

func (i Index) KeyDefinitions() table.PrimaryKeyDefinition {
	k := table.PrimaryKeyDefinition{
		PartitionKey: table.KeyDef{Name: i.PartitionKey.Name, Kind: i.PartitionKey.Kind},
	}
	if i.SortKey != nil {
		k.SortKey = table.KeyDef{Name: i.SortKey.Name, Kind: i.SortKey.Kind}
	}
	return k
}

// IndexMetadata is the key layout derived from a record type's key tags.
type IndexMetadata struct {
	typ       reflect.Type
	primary   *Index
	secondary []Index
	byName    map[string]Index
	kinds     map[string]table.KeyKind
}

type indexSlot struct {
	partition []*fieldDescriptor
	sort      []*fieldDescriptor
}

func buildIndexMetadata(t reflect.Type, fields []*fieldDescriptor) (*IndexMetadata, error) {
	slots := make(map[string]*indexSlot)
	for _, f := range fields {
		for _, role := range f.KeyRoles {
			name := role.indexName()
			if name == PrimaryIndexName && (role.Kind == SecondaryPartition || role.Kind == SecondarySort) {
				return nil, &IndexConfigError{Type: t, Index: name, Reason: "index name is reserved"}
			}
			slot, ok := slots[name]
			if !ok {
				slot = &indexSlot{}
				slots[name] = slot
			}
			if role.partition() {
				slot.partition = append(slot.partition, f)
			} else {
				slot.sort = append(slot.sort, f)
			}
		}
	}

	md := &IndexMetadata{
		typ:    t,
		byName: make(map[string]Index, len(slots)),
		kinds:  make(map[string]table.KeyKind),
	}
	names := make([]string, 0, len(slots))
	for name := range slots {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		idx, err := md.compileIndex(name, slots[name])
		if err != nil {
			return nil, err
		}
		md.byName[name] = idx
		if idx.IsPrimary() {
			md.primary = &idx
		} else {
			md.secondary = append(md.secondary, idx)
		}
	}
	return md, nil
}

func (md *IndexMetadata) compileIndex(name string, slot *indexSlot) (Index, error) {
	switch {
	case len(slot.partition) == 0:
		return Index{}, &IndexConfigError{Type: md.typ, Index: name, Reason: fmt.Sprintf("sort key %s has no partition key", slot.sort[0].Path)}
	case len(slot.partition) > 1:
		return Index{}, &IndexConfigError{Type: md.typ, Index: name, Reason: fmt.Sprintf("partition key declared on both %s and %s", slot.partition[0].Path, slot.partition[1].Path)}
	case len(slot.sort) > 1:
		return Index{}, &IndexConfigError{Type: md.typ, Index: name, Reason: fmt.Sprintf("sort key declared on both %s and %s", slot.sort[0].Path, slot.sort[1].Path)}
	}
	idx := Index{Name: name}
	pk, err := md.keyAttribute(name, slot.partition[0])
	if err != nil {
		return Index{}, err
	}
	idx.PartitionKey = pk
	if len(slot.sort) == 1 {
		sk, err := md.keyAttribute(name, slot.sort[0])
		if err != nil {
			return Index{}, err
		}
		if sk.Name == pk.Name {
			return Index{}, &IndexConfigError{Type: md.typ, Index: name, Reason: fmt.Sprintf("attribute %q is both partition and sort key", sk.Name)}
		}
		idx.SortKey = &sk
	}
	return idx, nil
}

func (md *IndexMetadata) keyAttribute(index string, f *fieldDescriptor) (KeyAttribute, error) {
	kind, ok := f.Kind.KeyKind()
	if !ok {
		return KeyAttribute{}, &IndexConfigError{Type: md.typ, Index: index, Reason: fmt.Sprintf("key field %s has attribute kind %q, keys must be S, N or B", f.Path, f.Kind)}
	}
	md.kinds[f.StorageName] = kind
	return KeyAttribute{Name: f.StorageName, Kind: kind}, nil
}

// Indices returns the primary index, when declared, followed by the secondary
// indexes ordered by name.
func (md *IndexMetadata) Indices() []Index {
	out := make([]Index, 0, len(md.secondary)+1)
	if md.primary != nil {
		out = append(out, *md.primary)
	}
	return append(out, md.secondary...)
}

func (md *IndexMetadata) Index(name string) (Index, error) {
	idx, ok := md.byName[name]
	if !ok {
		return Index{}, fmt.Errorf("%w: %q on %s", ErrIndexNotFound, name, md.typ)
	}
	return idx, nil
}

// PrimaryIndex returns the table key, if the record declares one.
func (md *IndexMetadata) PrimaryIndex() (Index, bool) {
	if md.primary == nil {
		return Index{}, false
	}
	return *md.primary, true
}

func (md *IndexMetadata) IndexPartitionKey(name string) (string, error) {
	idx, err := md.Index(name)
	if err != nil {
		return "", err
	}
	return idx.PartitionKey.Name, nil
}

// IndexSortKey returns the sort key of the index; ok is false when the index
// has none.
func (md *IndexMetadata) IndexSortKey(name string) (key string, ok bool, err error) {
	idx, err := md.Index(name)
	if err != nil {
		return "", false, err
	}
	if idx.SortKey == nil {
		return "", false, nil
	}
	return idx.SortKey.Name, true, nil
}

func (md *IndexMetadata) IndexKeys(name string) ([]string, error) {
	idx, err := md.Index(name)
	if err != nil {
		return nil, err
	}
	return idx.Keys(), nil
}

// AllKeys returns every attribute that is a key of some index, in index order
// without duplicates.
func (md *IndexMetadata) AllKeys() []string {
	attrs := md.KeyAttributes()
	out := make([]string, len(attrs))
	for i, a := range attrs {
		out[i] = a.Name
	}
	return out
}

func (md *IndexMetadata) KeyAttributes() []KeyAttribute {
	var out []KeyAttribute
	seen := make(map[string]bool)
	for _, idx := range md.Indices() {
		for _, name := range idx.Keys() {
			if seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, KeyAttribute{Name: name, Kind: md.kinds[name]})
		}
	}
	return out
}

func (md *IndexMetadata) ScalarAttributeType(attribute string) (table.KeyKind, error) {
	kind, ok := md.kinds[attribute]
	if !ok {
		return "", fmt.Errorf("%w: %q is not a key attribute of %s", ErrAttributeNotFound, attribute, md.typ)
	}
	return kind, nil
}

// LocalIndices returns the secondary indexes sharing the table's partition key
// and carrying a sort key. GlobalIndices returns the others.
func (md *IndexMetadata) GlobalIndices() []Index {
	return md.secondaries(false)
}

func (md *IndexMetadata) LocalIndices() []Index {
	return md.secondaries(true)
}

func (md *IndexMetadata) secondaries(local bool) []Index {
	var out []Index
	for _, idx := range md.secondary {
		isLocal := md.primary != nil && idx.PartitionKey.Name == md.primary.PartitionKey.Name && idx.SortKey != nil
		if isLocal == local {
			out = append(out, idx)
		}
	}
	return out
}

// TableDefinition lays out a table named name for the record type.
func (md *IndexMetadata) TableDefinition(name string) (table.TableDefinition, error) {
	if md.primary == nil {
		return table.TableDefinition{}, &IndexConfigError{Type: md.typ, Index: PrimaryIndexName, Reason: "record declares no partition key"}
	}
	def := table.TableDefinition{
		Name:           name,
		KeyDefinitions: md.primary.KeyDefinitions(),
	}
	for _, idx := range md.GlobalIndices() {
		def.GSIs = append(def.GSIs, table.IndexDefinition{Name: idx.Name, KeyDefinitions: idx.KeyDefinitions()})
	}
	for _, idx := range md.LocalIndices() {
		def.LSIs = append(def.LSIs, table.IndexDefinition{Name: idx.Name, KeyDefinitions: idx.KeyDefinitions()})
	}
	return def, nil
}
