// Package schema defines the YAML/JSON description of tables and the records stored
// in them. Descriptions are produced from derived record schemas and read back by
// the ddb CLI to create tables.
package schema

// Schema is the root type containing all table definitions.
type Schema struct {
	Tables []Table `yaml:"tables" json:"tables"`
}

// Table describes a DynamoDB table structure with the records stored in it.
type Table struct {
	Name         string   `yaml:"name" json:"name"`
	PartitionKey KeyDef   `yaml:"partitionKey" json:"partitionKey"`
	SortKey      *KeyDef  `yaml:"sortKey,omitempty" json:"sortKey,omitempty"`
	GSIs         []Index  `yaml:"gsis,omitempty" json:"gsis,omitempty"`
	LSIs         []Index  `yaml:"lsis,omitempty" json:"lsis,omitempty"`
	Records      []Record `yaml:"records,omitempty" json:"records,omitempty"`
}

// KeyDef describes a key attribute definition.
type KeyDef struct {
	Name string `yaml:"name" json:"name"`
	Kind string `yaml:"kind" json:"kind"` // "S", "N", or "B"
}

// Index describes a global or local secondary index.
type Index struct {
	Name         string  `yaml:"name" json:"name"`
	PartitionKey KeyDef  `yaml:"partitionKey" json:"partitionKey"`
	SortKey      *KeyDef `yaml:"sortKey,omitempty" json:"sortKey,omitempty"`
	// Projection is ALL, KEYS_ONLY or INCLUDE. Empty means ALL.
	Projection       string   `yaml:"projection,omitempty" json:"projection,omitempty"`
	NonKeyAttributes []string `yaml:"nonKeyAttributes,omitempty" json:"nonKeyAttributes,omitempty"`
}

// Record describes a record type stored in a table.
type Record struct {
	Type   string  `yaml:"type" json:"type"`
	Fields []Field `yaml:"fields" json:"fields"`
}

// Field describes one attribute of a record.
type Field struct {
	Name      string   `yaml:"name" json:"name"`
	Attribute string   `yaml:"attribute" json:"attribute"`
	Type      string   `yaml:"type" json:"type"`
	Kind      string   `yaml:"kind,omitempty" json:"kind,omitempty"`
	Required  bool     `yaml:"required,omitempty" json:"required,omitempty"`
	Keys      []string `yaml:"keys,omitempty" json:"keys,omitempty"`
}
