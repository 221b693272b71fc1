// Package ddbstore is a DynamoDB-compatible item store backed by BadgerDB.
// It implements the subset of the DynamoDB API declared by ddbiface.Client,
// which is enough to develop and test against tables without AWS.
package ddbstore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/acksell/recordschema/dynamodb/ddbiface"
	"github.com/acksell/recordschema/dynamodb/schema"
	"github.com/acksell/recordschema/dynamodb/table"
	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var _ ddbiface.Client = (*Store)(nil)

// Store is a DynamoDB-compatible store backed by BadgerDB.
// Every write runs in one badger transaction, so an item and its index
// entries change together.
type Store struct {
	db  *badger.DB
	log zerolog.Logger

	mu     sync.RWMutex
	tables map[string]*tableSchema
}

// StoreOptions configures the BadgerDB store.
type StoreOptions struct {
	// Path to the database directory. If empty, uses in-memory mode.
	Path string
	// InMemory forces in-memory mode even if Path is set.
	InMemory bool
	// Logger receives store and badger log output. The zero value discards it.
	Logger zerolog.Logger
}

// New opens the store and creates the given tables unless they already exist.
// Tables created earlier in a persistent store are loaded from its catalog.
func New(opts StoreOptions, defs ...table.TableDefinition) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.Path)
	if opts.Path == "" || opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	badgerOpts = badgerOpts.WithLogger(badgerLogger{opts.Logger.With().Str("component", "badger").Logger()})

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	s := &Store{
		db:     db,
		log:    opts.Logger,
		tables: make(map[string]*tableSchema),
	}
	if err := s.loadCatalog(); err != nil {
		db.Close()
		return nil, err
	}
	for _, def := range defs {
		if _, ok := s.tables[def.Name]; ok {
			continue
		}
		if err := s.createTable(def); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close closes the BadgerDB database.
func (s *Store) Close() error {
	return s.db.Close()
}

type tableSchema struct {
	definition table.TableDefinition
	indexes    map[string]*indexSchema
}

func newTableSchema(def table.TableDefinition) *tableSchema {
	ts := &tableSchema{definition: def, indexes: make(map[string]*indexSchema)}
	for _, idx := range def.Indexes() {
		ts.indexes[idx.Name] = &indexSchema{table: def, definition: idx}
	}
	return ts
}

func (t *tableSchema) keyEncoder() *keyEncoder {
	return &keyEncoder{prefix: tablePrefix(t.definition.Name), keys: t.definition.KeyDefinitions}
}

type indexSchema struct {
	table      table.TableDefinition
	definition table.IndexDefinition
}

func (i *indexSchema) keyEncoder() *keyEncoder {
	return &keyEncoder{
		prefix:    indexPrefix(i.table.Name, i.definition.Name),
		keys:      i.definition.KeyDefinitions,
		tableKeys: &i.table.KeyDefinitions,
	}
}

func (s *Store) getTable(tableName *string) (*tableSchema, error) {
	if tableName == nil || *tableName == "" {
		return nil, validationError("table name is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.tables[*tableName]
	if !ok {
		return nil, resourceNotFound("table not found: %s", *tableName)
	}
	return ts, nil
}

// getKeyEncoder picks the encoder of the table, or of one of its indexes when
// indexName is set.
func (s *Store) getKeyEncoder(tableName, indexName *string) (*keyEncoder, error) {
	ts, err := s.getTable(tableName)
	if err != nil {
		return nil, err
	}
	if indexName == nil || *indexName == "" {
		return ts.keyEncoder(), nil
	}
	idx, ok := ts.indexes[*indexName]
	if !ok {
		return nil, validationError("table %s has no index %s", *tableName, *indexName)
	}
	return idx.keyEncoder(), nil
}

func (s *Store) tableNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// createTable validates def, records it in the catalog and registers it.
func (s *Store) createTable(def table.TableDefinition) error {
	if err := def.Validate(); err != nil {
		return validationError("%v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[def.Name]; ok {
		return resourceInUse("table already exists: %s", def.Name)
	}
	doc, err := yaml.Marshal(schema.FromDefinition(def))
	if err != nil {
		return fmt.Errorf("encode catalog entry: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(catalogKey(def.Name), doc)
	})
	if err != nil {
		return fmt.Errorf("write catalog entry: %w", err)
	}
	s.tables[def.Name] = newTableSchema(def)
	s.log.Info().Str("table", def.Name).Int("indexes", len(def.Indexes())).Msg("created table")
	return nil
}

func (s *Store) loadCatalog() error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = catalogPrefix()
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var desc schema.Table
			err := it.Item().Value(func(val []byte) error {
				return yaml.Unmarshal(val, &desc)
			})
			if err != nil {
				return fmt.Errorf("read catalog entry %q: %w", it.Item().Key(), err)
			}
			def, err := desc.Definition()
			if err != nil {
				return fmt.Errorf("catalog entry %s: %w", desc.Name, err)
			}
			s.tables[def.Name] = newTableSchema(def)
			s.log.Debug().Str("table", def.Name).Msg("loaded table from catalog")
		}
		return nil
	})
}

// badgerLogger forwards badger's log output to zerolog. Badger's info output
// is mostly compaction chatter and is logged at debug level.
type badgerLogger struct {
	log zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.log.Trace().Msgf(format, args...)
}
