package ddbstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/acksell/recordschema/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var singleTableDesign = table.TableDefinition{
	Name: "test-table",
	KeyDefinitions: table.PrimaryKeyDefinition{
		PartitionKey: table.KeyDef{Name: "pk", Kind: table.KeyKindS},
		SortKey:      table.KeyDef{Name: "sk", Kind: table.KeyKindS},
	},
	GSIs: []table.IndexDefinition{
		{
			Name: "gsi1",
			KeyDefinitions: table.PrimaryKeyDefinition{
				PartitionKey: table.KeyDef{Name: "gsi1pk", Kind: table.KeyKindS},
				SortKey:      table.KeyDef{Name: "gsi1sk", Kind: table.KeyKindS},
			},
		},
		{
			Name: "keysOnly",
			KeyDefinitions: table.PrimaryKeyDefinition{
				PartitionKey: table.KeyDef{Name: "gsi1pk", Kind: table.KeyKindS},
			},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeKeysOnly},
		},
	},
	LSIs: []table.IndexDefinition{
		{
			Name: "byRank",
			KeyDefinitions: table.PrimaryKeyDefinition{
				PartitionKey: table.KeyDef{Name: "pk", Kind: table.KeyKindS},
				SortKey:      table.KeyDef{Name: "rank", Kind: table.KeyKindN},
			},
		},
	},
}

var numericSortKeyTable = table.TableDefinition{
	Name: "numeric-sk-table",
	KeyDefinitions: table.PrimaryKeyDefinition{
		PartitionKey: table.KeyDef{Name: "pk", Kind: table.KeyKindS},
		SortKey:      table.KeyDef{Name: "sk", Kind: table.KeyKindN},
	},
}

var noSortKeyTable = table.TableDefinition{
	Name: "no-sk-table",
	KeyDefinitions: table.PrimaryKeyDefinition{
		PartitionKey: table.KeyDef{Name: "pk", Kind: table.KeyKindS},
	},
}

func newTestStore(t *testing.T, defs ...table.TableDefinition) *Store {
	store, err := New(StoreOptions{InMemory: true}, defs...)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func str(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }
func num(v string) types.AttributeValue { return &types.AttributeValueMemberN{Value: v} }

func put(t *testing.T, store *Store, tableName string, item map[string]types.AttributeValue) {
	t.Helper()
	_, err := store.PutItem(context.Background(), &dynamodb.PutItemInput{
		TableName: aws.String(tableName),
		Item:      item,
	})
	require.NoError(t, err)
}

func sortKeys(items []map[string]types.AttributeValue, name string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item[name].(type) {
		case *types.AttributeValueMemberS:
			out = append(out, v.Value)
		case *types.AttributeValueMemberN:
			out = append(out, v.Value)
		}
	}
	return out
}

func TestStore_GetItem(t *testing.T) {
	store := newTestStore(t, singleTableDesign)
	ctx := context.Background()

	item := map[string]types.AttributeValue{
		"pk":   str("user#1"),
		"sk":   str("profile"),
		"name": str("Alice"),
		"tags": &types.AttributeValueMemberSS{Value: []string{"a", "b"}},
		"data": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"list": &types.AttributeValueMemberL{Value: []types.AttributeValue{num("1"), &types.AttributeValueMemberBOOL{Value: true}}},
			"bin":  &types.AttributeValueMemberB{Value: []byte{0, 1, 2}},
			"nil":  &types.AttributeValueMemberNULL{Value: true},
		}},
	}
	put(t, store, singleTableDesign.Name, item)

	t.Run("existing item", func(t *testing.T) {
		out, err := store.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(singleTableDesign.Name),
			Key:       map[string]types.AttributeValue{"pk": str("user#1"), "sk": str("profile")},
		})
		require.NoError(t, err)
		assert.Equal(t, item, out.Item)
	})

	t.Run("missing item", func(t *testing.T) {
		out, err := store.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(singleTableDesign.Name),
			Key:       map[string]types.AttributeValue{"pk": str("user#2"), "sk": str("profile")},
		})
		require.NoError(t, err)
		assert.Nil(t, out.Item)
	})

	t.Run("incomplete key", func(t *testing.T) {
		_, err := store.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(singleTableDesign.Name),
			Key:       map[string]types.AttributeValue{"pk": str("user#1")},
		})
		var apiErr smithy.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "ValidationException", apiErr.ErrorCode())
	})

	t.Run("wrong key type", func(t *testing.T) {
		_, err := store.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(singleTableDesign.Name),
			Key:       map[string]types.AttributeValue{"pk": num("1"), "sk": str("profile")},
		})
		require.Error(t, err)
	})

	t.Run("unknown table", func(t *testing.T) {
		_, err := store.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String("nope"),
			Key:       map[string]types.AttributeValue{"pk": str("x")},
		})
		var notFound *types.ResourceNotFoundException
		require.ErrorAs(t, err, &notFound)
	})
}

func TestStore_PutItem(t *testing.T) {
	store := newTestStore(t, singleTableDesign)
	ctx := context.Background()
	key := map[string]types.AttributeValue{"pk": str("p"), "sk": str("s")}

	put(t, store, singleTableDesign.Name, map[string]types.AttributeValue{"pk": str("p"), "sk": str("s"), "v": num("1")})

	out, err := store.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:    aws.String(singleTableDesign.Name),
		Item:         map[string]types.AttributeValue{"pk": str("p"), "sk": str("s"), "v": num("2")},
		ReturnValues: types.ReturnValueAllOld,
	})
	require.NoError(t, err)
	assert.Equal(t, num("1"), out.Attributes["v"])

	got, err := store.GetItem(ctx, &dynamodb.GetItemInput{TableName: aws.String(singleTableDesign.Name), Key: key})
	require.NoError(t, err)
	assert.Equal(t, num("2"), got.Item["v"])

	_, err = store.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(singleTableDesign.Name),
		Item:      map[string]types.AttributeValue{"pk": str("p")},
	})
	require.Error(t, err, "missing sort key")
}

func TestStore_ConditionExpressions(t *testing.T) {
	store := newTestStore(t, singleTableDesign)
	ctx := context.Background()
	item := map[string]types.AttributeValue{"pk": str("p"), "sk": str("s"), "version": num("1")}

	notExists, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("pk"))).
		Build()
	require.NoError(t, err)

	putIfAbsent := func() error {
		_, err := store.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:                 aws.String(singleTableDesign.Name),
			Item:                      item,
			ConditionExpression:       notExists.Condition(),
			ExpressionAttributeNames:  notExists.Names(),
			ExpressionAttributeValues: notExists.Values(),
		})
		return err
	}
	require.NoError(t, putIfAbsent())

	var condErr *types.ConditionalCheckFailedException
	require.ErrorAs(t, putIfAbsent(), &condErr)

	t.Run("version check", func(t *testing.T) {
		versioned, err := expression.NewBuilder().
			WithCondition(expression.Name("version").Equal(expression.Value(2))).
			Build()
		require.NoError(t, err)

		_, err = store.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName:                 aws.String(singleTableDesign.Name),
			Key:                       map[string]types.AttributeValue{"pk": str("p"), "sk": str("s")},
			ConditionExpression:       versioned.Condition(),
			ExpressionAttributeNames:  versioned.Names(),
			ExpressionAttributeValues: versioned.Values(),
		})
		require.ErrorAs(t, err, &condErr)
	})

	t.Run("unsupported expression", func(t *testing.T) {
		_, err := store.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String(singleTableDesign.Name),
			Item:                item,
			ConditionExpression: aws.String("size(pk) > :n"),
		})
		var apiErr smithy.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "ValidationException", apiErr.ErrorCode())
	})
}

func TestStore_DeleteItem(t *testing.T) {
	store := newTestStore(t, singleTableDesign)
	ctx := context.Background()
	key := map[string]types.AttributeValue{"pk": str("p"), "sk": str("s")}
	put(t, store, singleTableDesign.Name, map[string]types.AttributeValue{
		"pk": str("p"), "sk": str("s"), "gsi1pk": str("g"), "gsi1sk": str("1"),
	})

	out, err := store.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(singleTableDesign.Name),
		Key:          key,
		ReturnValues: types.ReturnValueAllOld,
	})
	require.NoError(t, err)
	assert.Equal(t, str("g"), out.Attributes["gsi1pk"])

	got, err := store.GetItem(ctx, &dynamodb.GetItemInput{TableName: aws.String(singleTableDesign.Name), Key: key})
	require.NoError(t, err)
	assert.Nil(t, got.Item)

	scan, err := store.Scan(ctx, &dynamodb.ScanInput{TableName: aws.String(singleTableDesign.Name), IndexName: aws.String("gsi1")})
	require.NoError(t, err)
	assert.Empty(t, scan.Items)

	_, err = store.DeleteItem(ctx, &dynamodb.DeleteItemInput{TableName: aws.String(singleTableDesign.Name), Key: key})
	require.NoError(t, err, "deleting a missing item succeeds")
}

func TestStore_Indexes(t *testing.T) {
	store := newTestStore(t, singleTableDesign)
	ctx := context.Background()

	put(t, store, singleTableDesign.Name, map[string]types.AttributeValue{
		"pk": str("a"), "sk": str("1"), "gsi1pk": str("g"), "gsi1sk": str("x"), "rank": num("3"), "body": str("first"),
	})
	put(t, store, singleTableDesign.Name, map[string]types.AttributeValue{
		"pk": str("b"), "sk": str("1"), "gsi1pk": str("g"), "gsi1sk": str("x"), "body": str("same index key"),
	})
	put(t, store, singleTableDesign.Name, map[string]types.AttributeValue{
		"pk": str("c"), "sk": str("1"), "body": str("not indexed"),
	})

	queryIndex := func(t *testing.T, index string, pk string) []map[string]types.AttributeValue {
		t.Helper()
		out, err := store.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(singleTableDesign.Name),
			IndexName:                 aws.String(index),
			KeyConditionExpression:    aws.String("gsi1pk = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{":pk": str(pk)},
		})
		require.NoError(t, err)
		return out.Items
	}

	t.Run("sparse with duplicate index keys", func(t *testing.T) {
		items := queryIndex(t, "gsi1", "g")
		assert.Equal(t, []string{"a", "b"}, sortKeys(items, "pk"))
		assert.Equal(t, str("first"), items[0]["body"])
	})

	t.Run("keys only projection", func(t *testing.T) {
		items := queryIndex(t, "keysOnly", "g")
		require.Len(t, items, 2)
		assert.Equal(t, map[string]types.AttributeValue{"pk": str("a"), "sk": str("1"), "gsi1pk": str("g")}, items[0])
	})

	t.Run("entries move when keys change", func(t *testing.T) {
		put(t, store, singleTableDesign.Name, map[string]types.AttributeValue{
			"pk": str("a"), "sk": str("1"), "gsi1pk": str("h"), "gsi1sk": str("x"),
		})
		assert.Equal(t, []string{"b"}, sortKeys(queryIndex(t, "gsi1", "g"), "pk"))
		assert.Equal(t, []string{"a"}, sortKeys(queryIndex(t, "gsi1", "h"), "pk"))
	})

	t.Run("local index", func(t *testing.T) {
		put(t, store, singleTableDesign.Name, map[string]types.AttributeValue{"pk": str("l"), "sk": str("1"), "rank": num("20")})
		put(t, store, singleTableDesign.Name, map[string]types.AttributeValue{"pk": str("l"), "sk": str("2"), "rank": num("3")})
		put(t, store, singleTableDesign.Name, map[string]types.AttributeValue{"pk": str("l"), "sk": str("3")})

		out, err := store.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(singleTableDesign.Name),
			IndexName:                 aws.String("byRank"),
			KeyConditionExpression:    aws.String("pk = :pk AND rank > :min"),
			ExpressionAttributeValues: map[string]types.AttributeValue{":pk": str("l"), ":min": num("1")},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"2", "1"}, sortKeys(out.Items, "sk"))
	})

	t.Run("wrong index key type", func(t *testing.T) {
		_, err := store.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(singleTableDesign.Name),
			Item:      map[string]types.AttributeValue{"pk": str("z"), "sk": str("1"), "rank": str("high")},
		})
		require.Error(t, err)
	})
}

func TestStore_Query(t *testing.T) {
	store := newTestStore(t, singleTableDesign, numericSortKeyTable)
	ctx := context.Background()

	for _, sk := range []string{"a", "aa", "ab", "b", "ba", "bb"} {
		put(t, store, singleTableDesign.Name, map[string]types.AttributeValue{"pk": str("p"), "sk": str(sk)})
	}
	put(t, store, singleTableDesign.Name, map[string]types.AttributeValue{"pk": str("other"), "sk": str("a")})

	tests := []struct {
		name    string
		cond    expression.KeyConditionBuilder
		forward *bool
		want    []string
	}{
		{
			name: "partition only",
			cond: expression.Key("pk").Equal(expression.Value("p")),
			want: []string{"a", "aa", "ab", "b", "ba", "bb"},
		},
		{
			name:    "descending",
			cond:    expression.Key("pk").Equal(expression.Value("p")),
			forward: aws.Bool(false),
			want:    []string{"bb", "ba", "b", "ab", "aa", "a"},
		},
		{
			name: "equal",
			cond: expression.Key("pk").Equal(expression.Value("p")).And(expression.Key("sk").Equal(expression.Value("ab"))),
			want: []string{"ab"},
		},
		{
			name: "less than",
			cond: expression.Key("pk").Equal(expression.Value("p")).And(expression.Key("sk").LessThan(expression.Value("b"))),
			want: []string{"a", "aa", "ab"},
		},
		{
			name: "greater or equal",
			cond: expression.Key("pk").Equal(expression.Value("p")).And(expression.Key("sk").GreaterThanEqual(expression.Value("ba"))),
			want: []string{"ba", "bb"},
		},
		{
			name: "between",
			cond: expression.Key("pk").Equal(expression.Value("p")).And(expression.Key("sk").Between(expression.Value("aa"), expression.Value("b"))),
			want: []string{"aa", "ab", "b"},
		},
		{
			name:    "begins with descending",
			cond:    expression.Key("pk").Equal(expression.Value("p")).And(expression.Key("sk").BeginsWith("b")),
			forward: aws.Bool(false),
			want:    []string{"bb", "ba", "b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := expression.NewBuilder().WithKeyCondition(tt.cond).Build()
			require.NoError(t, err)

			out, err := store.Query(ctx, &dynamodb.QueryInput{
				TableName:                 aws.String(singleTableDesign.Name),
				KeyConditionExpression:    expr.KeyCondition(),
				ExpressionAttributeNames:  expr.Names(),
				ExpressionAttributeValues: expr.Values(),
				ScanIndexForward:          tt.forward,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, sortKeys(out.Items, "sk"))
			assert.Equal(t, int32(len(tt.want)), out.Count)
		})
	}

	t.Run("invalid key conditions", func(t *testing.T) {
		for _, cond := range []string{
			"sk = :v",
			"pk < :v",
			"pk = :v AND other = :v",
			"pk = :v AND sk = :v AND sk = :v",
			"pk = :missing",
			"pk = :v OR sk = :v",
		} {
			_, err := store.Query(ctx, &dynamodb.QueryInput{
				TableName:                 aws.String(singleTableDesign.Name),
				KeyConditionExpression:    aws.String(cond),
				ExpressionAttributeValues: map[string]types.AttributeValue{":v": str("a")},
			})
			assert.Error(t, err, cond)
		}
	})

	t.Run("number ordering", func(t *testing.T) {
		values := []string{"-100", "-10", "-1.5", "0", "1", "10", "100", "1000"}
		for _, v := range []string{"10", "-1.5", "1000", "0", "-100", "1", "100", "-10"} {
			put(t, store, numericSortKeyTable.Name, map[string]types.AttributeValue{"pk": str("n"), "sk": num(v)})
		}
		out, err := store.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(numericSortKeyTable.Name),
			KeyConditionExpression:    aws.String("pk = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{":pk": str("n")},
		})
		require.NoError(t, err)
		assert.Equal(t, values, sortKeys(out.Items, "sk"))

		out, err = store.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(numericSortKeyTable.Name),
			KeyConditionExpression:    aws.String("pk = :pk AND sk BETWEEN :lo AND :hi"),
			ExpressionAttributeValues: map[string]types.AttributeValue{":pk": str("n"), ":lo": num("-2"), ":hi": num("10")},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"-1.5", "0", "1", "10"}, sortKeys(out.Items, "sk"))
	})

	t.Run("filter", func(t *testing.T) {
		put(t, store, singleTableDesign.Name, map[string]types.AttributeValue{"pk": str("f"), "sk": str("1"), "state": str("open")})
		put(t, store, singleTableDesign.Name, map[string]types.AttributeValue{"pk": str("f"), "sk": str("2"), "state": str("closed")})

		out, err := store.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(singleTableDesign.Name),
			KeyConditionExpression:    aws.String("pk = :pk"),
			FilterExpression:          aws.String("#state = :open"),
			ExpressionAttributeNames:  map[string]string{"#state": "state"},
			ExpressionAttributeValues: map[string]types.AttributeValue{":pk": str("f"), ":open": str("open")},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"1"}, sortKeys(out.Items, "sk"))
		assert.Equal(t, int32(2), out.ScannedCount)
	})
}

func TestStore_QueryPagination(t *testing.T) {
	store := newTestStore(t, singleTableDesign)
	ctx := context.Background()
	for i := range 5 {
		put(t, store, singleTableDesign.Name, map[string]types.AttributeValue{"pk": str("p"), "sk": str(fmt.Sprint(i))})
	}

	for _, forward := range []bool{true, false} {
		t.Run(fmt.Sprintf("forward=%v", forward), func(t *testing.T) {
			var got []string
			var start map[string]types.AttributeValue
			pages := 0
			for {
				out, err := store.Query(ctx, &dynamodb.QueryInput{
					TableName:                 aws.String(singleTableDesign.Name),
					KeyConditionExpression:    aws.String("pk = :pk"),
					ExpressionAttributeValues: map[string]types.AttributeValue{":pk": str("p")},
					Limit:                     aws.Int32(2),
					ExclusiveStartKey:         start,
					ScanIndexForward:          aws.Bool(forward),
				})
				require.NoError(t, err)
				pages++
				got = append(got, sortKeys(out.Items, "sk")...)
				if out.LastEvaluatedKey == nil {
					break
				}
				start = out.LastEvaluatedKey
			}
			want := []string{"0", "1", "2", "3", "4"}
			if !forward {
				want = []string{"4", "3", "2", "1", "0"}
			}
			assert.Equal(t, want, got)
			assert.Equal(t, 3, pages)
		})
	}
}

func TestStore_Scan(t *testing.T) {
	store := newTestStore(t, singleTableDesign, noSortKeyTable)
	ctx := context.Background()
	for _, pk := range []string{"c", "a", "b"} {
		put(t, store, noSortKeyTable.Name, map[string]types.AttributeValue{"pk": str(pk)})
	}
	put(t, store, singleTableDesign.Name, map[string]types.AttributeValue{"pk": str("x"), "sk": str("y")})

	out, err := store.Scan(ctx, &dynamodb.ScanInput{TableName: aws.String(noSortKeyTable.Name)})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, sortKeys(out.Items, "pk"))

	out, err = store.Scan(ctx, &dynamodb.ScanInput{TableName: aws.String(noSortKeyTable.Name), Limit: aws.Int32(2)})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, sortKeys(out.Items, "pk"))
	assert.Equal(t, map[string]types.AttributeValue{"pk": str("b")}, out.LastEvaluatedKey)

	out, err = store.Scan(ctx, &dynamodb.ScanInput{TableName: aws.String(noSortKeyTable.Name), ExclusiveStartKey: out.LastEvaluatedKey})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, sortKeys(out.Items, "pk"))
	assert.Nil(t, out.LastEvaluatedKey)
}

func TestStore_Tables(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	in, err := singleTableDesign.CreateTableInput()
	require.NoError(t, err)
	created, err := store.CreateTable(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, types.TableStatusActive, created.TableDescription.TableStatus)

	_, err = store.CreateTable(ctx, in)
	var inUse *types.ResourceInUseException
	require.ErrorAs(t, err, &inUse)

	for _, def := range []table.TableDefinition{numericSortKeyTable, noSortKeyTable} {
		in, err := def.CreateTableInput()
		require.NoError(t, err)
		_, err = store.CreateTable(ctx, in)
		require.NoError(t, err)
	}

	desc, err := store.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(singleTableDesign.Name)})
	require.NoError(t, err)
	assert.Len(t, desc.Table.GlobalSecondaryIndexes, 2)
	assert.Len(t, desc.Table.LocalSecondaryIndexes, 1)

	_, err = store.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String("missing")})
	var notFound *types.ResourceNotFoundException
	require.ErrorAs(t, err, &notFound)

	list, err := store.ListTables(ctx, &dynamodb.ListTablesInput{Limit: aws.Int32(2)})
	require.NoError(t, err)
	assert.Equal(t, []string{"no-sk-table", "numeric-sk-table"}, list.TableNames)
	assert.Equal(t, "numeric-sk-table", aws.ToString(list.LastEvaluatedTableName))

	list, err = store.ListTables(ctx, &dynamodb.ListTablesInput{ExclusiveStartTableName: list.LastEvaluatedTableName})
	require.NoError(t, err)
	assert.Equal(t, []string{"test-table"}, list.TableNames)
	assert.Nil(t, list.LastEvaluatedTableName)
}

func TestStore_PersistentCatalog(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := New(StoreOptions{Path: dir}, singleTableDesign)
	require.NoError(t, err)
	put(t, store, singleTableDesign.Name, map[string]types.AttributeValue{"pk": str("p"), "sk": str("s"), "gsi1pk": str("g"), "gsi1sk": str("1")})
	require.NoError(t, store.Close())

	store, err = New(StoreOptions{Path: dir})
	require.NoError(t, err)
	defer store.Close()

	desc, err := store.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(singleTableDesign.Name)})
	require.NoError(t, err)
	assert.Len(t, desc.Table.GlobalSecondaryIndexes, 2)

	out, err := store.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(singleTableDesign.Name),
		IndexName:                 aws.String("keysOnly"),
		KeyConditionExpression:    aws.String("gsi1pk = :g"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":g": str("g")},
	})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.NotContains(t, out.Items[0], "gsi1sk")
}
