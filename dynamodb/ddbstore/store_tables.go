package ddbstore

import (
	"context"
	"slices"

	"github.com/acksell/recordschema/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// CreateTable creates a table and its secondary indexes. Throughput settings
// are accepted and ignored.
func (s *Store) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	if params == nil {
		return nil, validationError("params is required")
	}
	def, err := table.FromCreateTableInput(params)
	if err != nil {
		return nil, validationError("%v", err)
	}
	if err := s.createTable(def); err != nil {
		return nil, err
	}
	return &dynamodb.CreateTableOutput{TableDescription: def.Describe()}, nil
}

func (s *Store) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if params == nil {
		return nil, validationError("params is required")
	}
	ts, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	return &dynamodb.DescribeTableOutput{Table: ts.definition.Describe()}, nil
}

// ListTables returns table names in ascending order, paginated like DynamoDB.
func (s *Store) ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error) {
	if params == nil {
		params = &dynamodb.ListTablesInput{}
	}
	names := s.tableNames()
	if start := aws.ToString(params.ExclusiveStartTableName); start != "" {
		i, found := slices.BinarySearch(names, start)
		if found {
			i++
		}
		names = names[i:]
	}
	out := &dynamodb.ListTablesOutput{TableNames: names}
	if limit := int(aws.ToInt32(params.Limit)); limit > 0 && len(names) > limit {
		out.TableNames = names[:limit]
		out.LastEvaluatedTableName = aws.String(names[limit-1])
	}
	return out, nil
}
