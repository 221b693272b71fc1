package ddbstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// PutItem creates or replaces an item. ConditionExpression is evaluated
// against the item currently stored under the key, if any.
func (s *Store) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if params == nil {
		return nil, validationError("params is required")
	}
	if params.Item == nil {
		return nil, validationError("item is required")
	}
	ts, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	cond, err := parseOptionalCondition(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	key, _, err := ts.keyEncoder().encodeKey(params.Item)
	if err != nil {
		return nil, err
	}
	itemBytes, err := serializeItem(params.Item)
	if err != nil {
		return nil, err
	}

	var oldItem map[string]types.AttributeValue
	err = s.db.Update(func(txn *badger.Txn) error {
		oldItem, err = getItem(txn, key)
		if err != nil {
			return err
		}
		if err := checkCondition(cond, oldItem); err != nil {
			return err
		}
		if err := s.removeIndexEntries(txn, ts, oldItem); err != nil {
			return err
		}
		if err := txn.Set(key, itemBytes); err != nil {
			return err
		}
		return s.writeIndexEntries(txn, ts, params.Item)
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug().Str("table", ts.definition.Name).Bool("replaced", oldItem != nil).Msg("put item")

	out := &dynamodb.PutItemOutput{}
	if params.ReturnValues == types.ReturnValueAllOld {
		out.Attributes = oldItem
	}
	return out, nil
}

// GetItem retrieves a single item by its primary key. A missing item is not
// an error; the output has no Item.
func (s *Store) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if params == nil {
		return nil, validationError("params is required")
	}
	if params.Key == nil {
		return nil, validationError("key is required")
	}
	ts, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	key, err := ts.encodeKeyOnly(params.Key)
	if err != nil {
		return nil, err
	}
	var item map[string]types.AttributeValue
	err = s.db.View(func(txn *badger.Txn) error {
		item, err = getItem(txn, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

// DeleteItem deletes an item and its index entries. Deleting a missing item
// succeeds unless a condition says otherwise.
func (s *Store) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if params == nil {
		return nil, validationError("params is required")
	}
	if params.Key == nil {
		return nil, validationError("key is required")
	}
	ts, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	cond, err := parseOptionalCondition(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	key, err := ts.encodeKeyOnly(params.Key)
	if err != nil {
		return nil, err
	}

	var oldItem map[string]types.AttributeValue
	err = s.db.Update(func(txn *badger.Txn) error {
		oldItem, err = getItem(txn, key)
		if err != nil {
			return err
		}
		if err := checkCondition(cond, oldItem); err != nil {
			return err
		}
		if oldItem == nil {
			return nil
		}
		if err := s.removeIndexEntries(txn, ts, oldItem); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug().Str("table", ts.definition.Name).Bool("found", oldItem != nil).Msg("delete item")

	out := &dynamodb.DeleteItemOutput{}
	if params.ReturnValues == types.ReturnValueAllOld {
		out.Attributes = oldItem
	}
	return out, nil
}

// encodeKeyOnly encodes a key map, which must hold exactly the key attributes.
func (t *tableSchema) encodeKeyOnly(keyAttrs map[string]types.AttributeValue) ([]byte, error) {
	if len(keyAttrs) != len(t.definition.KeyDefinitions.Names()) {
		return nil, validationError("the provided key does not match the key schema of table %s", t.definition.Name)
	}
	key, _, err := t.keyEncoder().encodeKey(keyAttrs)
	return key, err
}

// getItem returns nil when key does not exist.
func getItem(txn *badger.Txn, key []byte) (map[string]types.AttributeValue, error) {
	it, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var item map[string]types.AttributeValue
	err = it.Value(func(val []byte) error {
		item, err = deserializeItem(val)
		return err
	})
	return item, err
}

func parseOptionalCondition(expr *string, names map[string]string, values map[string]types.AttributeValue) (condition, error) {
	if expr == nil || *expr == "" {
		return nil, nil
	}
	return parseCondition(*expr, exprParams{names: names, values: values})
}

// checkCondition evaluates cond against the stored item. A missing item is
// evaluated as an empty one.
func checkCondition(cond condition, item map[string]types.AttributeValue) error {
	if cond == nil {
		return nil
	}
	ok, err := cond.eval(item)
	if err != nil {
		return err
	}
	if !ok {
		return conditionFailed()
	}
	return nil
}

// writeIndexEntries adds item to every index it has the key attributes for.
func (s *Store) writeIndexEntries(txn *badger.Txn, ts *tableSchema, item map[string]types.AttributeValue) error {
	for _, idx := range ts.indexes {
		key, ok, err := idx.keyEncoder().encodeKey(item)
		if err != nil {
			return fmt.Errorf("index %s: %w", idx.definition.Name, err)
		}
		if !ok {
			continue
		}
		val, err := serializeItem(idx.project(item))
		if err != nil {
			return err
		}
		if err := txn.Set(key, val); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) removeIndexEntries(txn *badger.Txn, ts *tableSchema, item map[string]types.AttributeValue) error {
	if item == nil {
		return nil
	}
	for _, idx := range ts.indexes {
		key, ok, err := idx.keyEncoder().encodeKey(item)
		if err != nil || !ok {
			continue
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// project applies the index projection to item.
func (i *indexSchema) project(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	p := i.definition.Projection
	if p == nil || p.ProjectionType == types.ProjectionTypeAll || p.ProjectionType == "" {
		return item
	}
	names := append(i.table.KeyDefinitions.Names(), i.definition.KeyDefinitions.Names()...)
	if p.ProjectionType == types.ProjectionTypeInclude {
		names = append(names, p.NonKeyAttributes...)
	}
	out := make(map[string]types.AttributeValue, len(names))
	for _, name := range names {
		if av, ok := item[name]; ok {
			out[name] = av
		}
	}
	return out
}
