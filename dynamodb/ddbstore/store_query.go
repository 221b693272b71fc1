package ddbstore

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// Query reads one partition of a table or index in sort key order.
func (s *Store) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if params == nil {
		return nil, validationError("params is required")
	}
	if params.KeyConditionExpression == nil {
		return nil, validationError("key condition expression is required")
	}
	enc, err := s.getKeyEncoder(params.TableName, params.IndexName)
	if err != nil {
		return nil, err
	}
	exprs := exprParams{names: params.ExpressionAttributeNames, values: params.ExpressionAttributeValues}
	kc, err := parseKeyCondition(*params.KeyConditionExpression, exprs, enc)
	if err != nil {
		return nil, err
	}
	filter, err := parseOptionalCondition(params.FilterExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	prefix, err := enc.partitionPrefix(kc.partition)
	if err != nil {
		return nil, err
	}

	var keyCond condition
	if kc.sort != nil {
		keyCond = condition{*kc.sort}
	}
	res, err := s.iterate(iteration{
		enc:      enc,
		prefix:   prefix,
		reverse:  params.ScanIndexForward != nil && !*params.ScanIndexForward,
		startKey: params.ExclusiveStartKey,
		limit:    int(aws.ToInt32(params.Limit)),
		keyCond:  keyCond,
		filter:   filter,
	})
	if err != nil {
		return nil, err
	}
	return &dynamodb.QueryOutput{
		Items:            res.items,
		Count:            int32(len(res.items)),
		ScannedCount:     int32(res.scanned),
		LastEvaluatedKey: res.lastKey,
	}, nil
}

// Scan reads every item of a table or index in key order.
func (s *Store) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if params == nil {
		return nil, validationError("params is required")
	}
	enc, err := s.getKeyEncoder(params.TableName, params.IndexName)
	if err != nil {
		return nil, err
	}
	filter, err := parseOptionalCondition(params.FilterExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	res, err := s.iterate(iteration{
		enc:      enc,
		prefix:   enc.prefix,
		startKey: params.ExclusiveStartKey,
		limit:    int(aws.ToInt32(params.Limit)),
		filter:   filter,
	})
	if err != nil {
		return nil, err
	}
	return &dynamodb.ScanOutput{
		Items:            res.items,
		Count:            int32(len(res.items)),
		ScannedCount:     int32(res.scanned),
		LastEvaluatedKey: res.lastKey,
	}, nil
}

type iteration struct {
	enc      *keyEncoder
	prefix   []byte
	reverse  bool
	startKey map[string]types.AttributeValue
	// limit caps the number of items read, before filtering.
	limit   int
	keyCond condition
	filter  condition
}

type page struct {
	items   []map[string]types.AttributeValue
	scanned int
	lastKey map[string]types.AttributeValue
}

func (s *Store) iterate(in iteration) (*page, error) {
	var start []byte
	if in.startKey != nil {
		key, ok, err := in.enc.encodeKey(in.startKey)
		if err != nil {
			return nil, err
		}
		if !ok || !bytes.HasPrefix(key, in.prefix) {
			return nil, validationError("exclusive start key is outside the requested range")
		}
		start = key
	}

	out := &page{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = in.prefix
		opts.Reverse = in.reverse
		it := txn.NewIterator(opts)
		defer it.Close()

		switch {
		case start != nil:
			it.Seek(start)
			if it.Valid() && bytes.Equal(it.Item().Key(), start) {
				it.Next()
			}
		case in.reverse:
			it.Seek(append(bytes.Clone(in.prefix), 0xFF))
		default:
			it.Seek(in.prefix)
		}

		for ; it.Valid(); it.Next() {
			var item map[string]types.AttributeValue
			err := it.Item().Value(func(val []byte) error {
				var err error
				item, err = deserializeItem(val)
				return err
			})
			if err != nil {
				return err
			}
			if ok, err := in.keyCond.eval(item); err != nil || !ok {
				if err != nil {
					return err
				}
				continue
			}
			out.scanned++
			ok, err := in.filter.eval(item)
			if err != nil {
				return err
			}
			if ok {
				out.items = append(out.items, item)
			}
			if in.limit > 0 && out.scanned >= in.limit {
				out.lastKey = in.enc.lastEvaluatedKey(item)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
