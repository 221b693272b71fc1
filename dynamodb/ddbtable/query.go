package ddbtable

import (
	"context"
	"fmt"

	"github.com/acksell/recordschema/dynamodb/ddbschema"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// SortKeyCondition narrows a query on the sort key of the queried index.
type SortKeyCondition func(skName string) expression.KeyConditionBuilder

// Equals returns items where the sort key equals v.
func Equals[V any](v V) SortKeyCondition {
	return func(skName string) expression.KeyConditionBuilder {
		return expression.KeyEqual(expression.Key(skName), expression.Value(v))
	}
}

// BeginsWith returns items where the sort key starts with prefix.
func BeginsWith(prefix string) SortKeyCondition {
	return func(skName string) expression.KeyConditionBuilder {
		return expression.KeyBeginsWith(expression.Key(skName), prefix)
	}
}

// Between returns items where the sort key is between start and end, inclusive.
func Between[V any](start, end V) SortKeyCondition {
	return func(skName string) expression.KeyConditionBuilder {
		return expression.KeyBetween(expression.Key(skName), expression.Value(start), expression.Value(end))
	}
}

func GreaterThan[V any](v V) SortKeyCondition {
	return func(skName string) expression.KeyConditionBuilder {
		return expression.KeyGreaterThan(expression.Key(skName), expression.Value(v))
	}
}

func GreaterThanOrEqual[V any](v V) SortKeyCondition {
	return func(skName string) expression.KeyConditionBuilder {
		return expression.KeyGreaterThanEqual(expression.Key(skName), expression.Value(v))
	}
}

func LessThan[V any](v V) SortKeyCondition {
	return func(skName string) expression.KeyConditionBuilder {
		return expression.KeyLessThan(expression.Key(skName), expression.Value(v))
	}
}

func LessThanOrEqual[V any](v V) SortKeyCondition {
	return func(skName string) expression.KeyConditionBuilder {
		return expression.KeyLessThanEqual(expression.Key(skName), expression.Value(v))
	}
}

// Query selects one partition of the table or of a secondary index.
type Query[T any] struct {
	// Index is the secondary index to query. Empty queries the table.
	Index string
	// Key supplies the partition key value of the queried index.
	Key T
	// Sort optionally restricts the sort key.
	Sort SortKeyCondition
	// Limit caps the number of items read per page. Zero means no cap.
	Limit      int32
	Descending bool
	// Cursor resumes after a previous page.
	Cursor map[string]types.AttributeValue
}

// Query reads one page of q.
func (t *Table[T]) Query(ctx context.Context, q Query[T]) (*Page[T], error) {
	indexName := q.Index
	if indexName == "" {
		indexName = ddbschema.PrimaryIndexName
	}
	idx, err := t.schema.IndexMetadata().Index(indexName)
	if err != nil {
		return nil, err
	}
	pk, ok, err := t.schema.AttributeValue(q.Key, idx.PartitionKey.Name)
	if err != nil {
		return nil, err
	}
	if !ok || ddbschema.IsNull(pk) {
		return nil, fmt.Errorf("query %s: partition key %q is not set", indexName, idx.PartitionKey.Name)
	}

	key := expression.KeyEqual(expression.Key(idx.PartitionKey.Name), expression.Value(rawValue{pk}))
	if q.Sort != nil {
		if idx.SortKey == nil {
			return nil, fmt.Errorf("query %s: index has no sort key", indexName)
		}
		key = key.And(q.Sort(idx.SortKey.Name))
	}
	expr, err := expression.NewBuilder().WithKeyCondition(key).Build()
	if err != nil {
		return nil, fmt.Errorf("build key condition: %w", err)
	}

	in := &dynamodb.QueryInput{
		TableName:                 aws.String(t.name),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(!q.Descending),
		ExclusiveStartKey:         q.Cursor,
	}
	if !idx.IsPrimary() {
		in.IndexName = aws.String(idx.Name)
	}
	// Global indexes do not support consistent reads.
	if isLocal(t.schema.IndexMetadata(), idx) {
		in.ConsistentRead = aws.Bool(!t.opts.eventuallyConsistent)
	}
	if q.Limit > 0 {
		in.Limit = aws.Int32(q.Limit)
	}

	res, err := t.client.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", indexName, err)
	}
	items, err := t.decodeAll(res.Items)
	if err != nil {
		return nil, err
	}
	return &Page[T]{Items: items, Cursor: res.LastEvaluatedKey}, nil
}

// QueryAll reads every page of q.
func (t *Table[T]) QueryAll(ctx context.Context, q Query[T]) ([]T, error) {
	var all []T
	for {
		page, err := t.Query(ctx, q)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		if page.Done() {
			return all, nil
		}
		q.Cursor = page.Cursor
	}
}

// Scan reads a whole table or secondary index.
type Scan struct {
	Index  string
	Limit  int32
	Cursor map[string]types.AttributeValue
}

// Scan reads one page of s.
func (t *Table[T]) Scan(ctx context.Context, s Scan) (*Page[T], error) {
	in := &dynamodb.ScanInput{
		TableName:         aws.String(t.name),
		ExclusiveStartKey: s.Cursor,
	}
	if s.Index != "" {
		in.IndexName = aws.String(s.Index)
	}
	if s.Limit > 0 {
		in.Limit = aws.Int32(s.Limit)
	}
	res, err := t.client.Scan(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	items, err := t.decodeAll(res.Items)
	if err != nil {
		return nil, err
	}
	return &Page[T]{Items: items, Cursor: res.LastEvaluatedKey}, nil
}

// ScanAll reads every page of s.
func (t *Table[T]) ScanAll(ctx context.Context, s Scan) ([]T, error) {
	var all []T
	for {
		page, err := t.Scan(ctx, s)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		if page.Done() {
			return all, nil
		}
		s.Cursor = page.Cursor
	}
}

func isLocal(md *ddbschema.IndexMetadata, idx ddbschema.Index) bool {
	if idx.IsPrimary() {
		return true
	}
	for _, lsi := range md.LocalIndices() {
		if lsi.Name == idx.Name {
			return true
		}
	}
	return false
}

// rawValue passes an already encoded attribute value through the expression
// builder's marshaler unchanged.
type rawValue struct {
	av types.AttributeValue
}

func (r rawValue) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return r.av, nil
}
