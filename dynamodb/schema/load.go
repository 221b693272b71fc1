package schema

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/acksell/recordschema/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"gopkg.in/yaml.v3"
)

// Load parses a schema document.
func Load(r io.Reader) (*Schema, error) {
	var s Schema
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return &s, nil
}

// LoadGlob loads and merges all schema files matching pattern. Records of tables
// declared in several files are merged; the key layout must agree.
func LoadGlob(pattern string) (*Schema, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob pattern error: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no schema files found matching: %s", pattern)
	}
	return LoadFiles(matches...)
}

// LoadFiles loads and merges the given schema files like LoadGlob.
func LoadFiles(paths ...string) (*Schema, error) {
	merged := &Schema{}
	byName := make(map[string]int)
	for _, path := range paths {
		s, err := loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
		for _, t := range s.Tables {
			i, ok := byName[t.Name]
			if !ok {
				byName[t.Name] = len(merged.Tables)
				merged.Tables = append(merged.Tables, t)
				continue
			}
			existing := &merged.Tables[i]
			if existing.PartitionKey != t.PartitionKey || !sameKey(existing.SortKey, t.SortKey) {
				return nil, fmt.Errorf("%s: table %s redeclared with a different key", path, t.Name)
			}
			existing.Records = append(existing.Records, t.Records...)
		}
	}
	return merged, nil
}

func loadFile(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

func sameKey(a, b *KeyDef) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Marshal renders s as YAML with two-space indentation.
func Marshal(s *Schema) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Definition converts the description to the runtime table definition.
func (t Table) Definition() (table.TableDefinition, error) {
	def := table.TableDefinition{
		Name: t.Name,
		KeyDefinitions: table.PrimaryKeyDefinition{
			PartitionKey: t.PartitionKey.def(),
		},
	}
	if t.SortKey != nil {
		def.KeyDefinitions.SortKey = t.SortKey.def()
	}
	for _, idx := range t.GSIs {
		def.GSIs = append(def.GSIs, idx.definition())
	}
	for _, idx := range t.LSIs {
		def.LSIs = append(def.LSIs, idx.definition())
	}
	if err := def.Validate(); err != nil {
		return table.TableDefinition{}, err
	}
	return def, nil
}

func (k KeyDef) def() table.KeyDef {
	return table.KeyDef{Name: k.Name, Kind: table.KeyKind(k.Kind)}
}

func (i Index) definition() table.IndexDefinition {
	def := table.IndexDefinition{
		Name: i.Name,
		KeyDefinitions: table.PrimaryKeyDefinition{
			PartitionKey: i.PartitionKey.def(),
		},
	}
	if i.SortKey != nil {
		def.KeyDefinitions.SortKey = i.SortKey.def()
	}
	if i.Projection != "" {
		def.Projection = &types.Projection{
			ProjectionType:   types.ProjectionType(i.Projection),
			NonKeyAttributes: i.NonKeyAttributes,
		}
	}
	return def
}

// FromDefinition describes def. The result has no records.
func FromDefinition(def table.TableDefinition) Table {
	t := Table{
		Name:         def.Name,
		PartitionKey: fromKeyDef(def.KeyDefinitions.PartitionKey),
	}
	if def.KeyDefinitions.HasSortKey() {
		sk := fromKeyDef(def.KeyDefinitions.SortKey)
		t.SortKey = &sk
	}
	for _, idx := range def.GSIs {
		t.GSIs = append(t.GSIs, fromIndexDefinition(idx))
	}
	for _, idx := range def.LSIs {
		t.LSIs = append(t.LSIs, fromIndexDefinition(idx))
	}
	return t
}

func fromKeyDef(k table.KeyDef) KeyDef {
	return KeyDef{Name: k.Name, Kind: string(k.Kind)}
}

func fromIndexDefinition(def table.IndexDefinition) Index {
	idx := Index{
		Name:         def.Name,
		PartitionKey: fromKeyDef(def.KeyDefinitions.PartitionKey),
	}
	if def.KeyDefinitions.HasSortKey() {
		sk := fromKeyDef(def.KeyDefinitions.SortKey)
		idx.SortKey = &sk
	}
	if p := def.Projection; p != nil && p.ProjectionType != types.ProjectionTypeAll {
		idx.Projection = string(p.ProjectionType)
		idx.NonKeyAttributes = p.NonKeyAttributes
	}
	return idx
}
