// Package ddbtable is a typed table client for records with a derived schema.
// It works against any ddbiface.Client, so the same code runs against AWS and
// against the local store.
package ddbtable

import (
	"context"
	"errors"
	"fmt"

	"github.com/acksell/recordschema/dynamodb/ddbiface"
	"github.com/acksell/recordschema/dynamodb/ddbschema"
	"github.com/acksell/recordschema/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var (
	ErrItemNotFound  = errors.New("ddbtable: item not found")
	ErrAlreadyExists = errors.New("ddbtable: item already exists")
)

// Table reads and writes records of type T in one DynamoDB table.
type Table[T any] struct {
	client ddbiface.Client
	name   string
	schema *ddbschema.Schema[T]
	opts   options
}

type Option func(*options)

type options struct {
	projection           func(ddbschema.Index) *types.Projection
	eventuallyConsistent bool
}

// WithProjection sets the projection of each secondary index when the table
// is created. Indexes for which fn returns nil project all attributes.
func WithProjection(fn func(ddbschema.Index) *types.Projection) Option {
	return func(o *options) {
		o.projection = fn
	}
}

// WithEventuallyConsistentReads turns off consistent reads for Get and Query.
func WithEventuallyConsistentReads() Option {
	return func(o *options) {
		o.eventuallyConsistent = true
	}
}

// New returns a table client. When s is nil the schema of T is derived with
// the default cache and New panics if T is not a valid record type.
func New[T any](client ddbiface.Client, name string, s *ddbschema.Schema[T], opts ...Option) *Table[T] {
	if s == nil {
		s = ddbschema.MustNew[T]()
	}
	t := &Table[T]{client: client, name: name, schema: s}
	for _, opt := range opts {
		opt(&t.opts)
	}
	return t
}

func (t *Table[T]) Name() string {
	return t.name
}

func (t *Table[T]) Schema() *ddbschema.Schema[T] {
	return t.schema
}

// Definition lays out the table from the key tags of T.
func (t *Table[T]) Definition() (table.TableDefinition, error) {
	md := t.schema.IndexMetadata()
	def, err := md.TableDefinition(t.name)
	if err != nil {
		return table.TableDefinition{}, err
	}
	if t.opts.projection == nil {
		return def, nil
	}
	project := func(defs []table.IndexDefinition) error {
		for i := range defs {
			idx, err := md.Index(defs[i].Name)
			if err != nil {
				return err
			}
			defs[i].Projection = t.opts.projection(idx)
		}
		return nil
	}
	if err := project(def.GSIs); err != nil {
		return table.TableDefinition{}, err
	}
	if err := project(def.LSIs); err != nil {
		return table.TableDefinition{}, err
	}
	return def, nil
}

func (t *Table[T]) CreateTableInput() (*dynamodb.CreateTableInput, error) {
	def, err := t.Definition()
	if err != nil {
		return nil, err
	}
	return def.CreateTableInput()
}

// CreateTable creates the table with its key schema and secondary indexes.
func (t *Table[T]) CreateTable(ctx context.Context) error {
	in, err := t.CreateTableInput()
	if err != nil {
		return err
	}
	if _, err := t.client.CreateTable(ctx, in); err != nil {
		return fmt.Errorf("create table %s: %w", t.name, err)
	}
	return nil
}

// Put creates or replaces item. Nil fields are not stored.
func (t *Table[T]) Put(ctx context.Context, item T) error {
	return t.put(ctx, item, nil)
}

// Create stores item unless an item with the same primary key exists, in
// which case it returns ErrAlreadyExists.
func (t *Table[T]) Create(ctx context.Context, item T) error {
	primary, ok := t.schema.IndexMetadata().PrimaryIndex()
	if !ok {
		return fmt.Errorf("%s has no primary key", t.schema.Type())
	}
	cond := expression.AttributeNotExists(expression.Name(primary.PartitionKey.Name))
	err := t.put(ctx, item, &cond)
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, t.name)
	}
	return err
}

func (t *Table[T]) put(ctx context.Context, item T, cond *expression.ConditionBuilder) error {
	attrs, err := t.schema.ToAttributeMap(item, false)
	if err != nil {
		return err
	}
	in := &dynamodb.PutItemInput{
		TableName: aws.String(t.name),
		Item:      attrs,
	}
	if cond != nil {
		expr, err := expression.NewBuilder().WithCondition(*cond).Build()
		if err != nil {
			return fmt.Errorf("build condition: %w", err)
		}
		in.ConditionExpression = expr.Condition()
		in.ExpressionAttributeNames = expr.Names()
		in.ExpressionAttributeValues = expr.Values()
	}
	if _, err := t.client.PutItem(ctx, in); err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// Get loads the item with the primary key of key. Only the key fields of key
// are read.
func (t *Table[T]) Get(ctx context.Context, key T) (T, error) {
	var zero T
	k, err := t.schema.KeyOf(key)
	if err != nil {
		return zero, err
	}
	res, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(t.name),
		Key:            k,
		ConsistentRead: aws.Bool(!t.opts.eventuallyConsistent),
	})
	if err != nil {
		return zero, fmt.Errorf("get item: %w", err)
	}
	if res.Item == nil {
		return zero, ErrItemNotFound
	}
	return t.schema.FromAttributeMap(res.Item)
}

// Delete removes the item with the primary key of key. Deleting a missing
// item is not an error.
func (t *Table[T]) Delete(ctx context.Context, key T) error {
	k, err := t.schema.KeyOf(key)
	if err != nil {
		return err
	}
	_, err = t.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(t.name),
		Key:       k,
	})
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// Page is one page of query or scan results. Cursor is nil on the last page.
type Page[T any] struct {
	Items  []T
	Cursor map[string]types.AttributeValue
}

func (p *Page[T]) Done() bool {
	return p.Cursor == nil
}

func (t *Table[T]) decodeAll(items []map[string]types.AttributeValue) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, item := range items {
		v, err := t.schema.FromAttributeMap(item)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
