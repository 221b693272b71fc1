package ddbtable

import (
	"context"
	"testing"

	"github.com/acksell/recordschema/dynamodb/ddbschema"
	"github.com/acksell/recordschema/dynamodb/ddbstore"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type order struct {
	Customer string  `dynamo:"customer,pk,index-pk=byCustomerTotal"`
	ID       string  `dynamo:"id,sk"`
	Status   string  `dynamo:"status,index-pk=byStatus"`
	Total    int64   `dynamo:"total,index-sk=byStatus|byCustomerTotal"`
	Note     *string `dynamo:"note"`
}

func newTestStore(t *testing.T) *ddbstore.Store {
	store, err := ddbstore.New(ddbstore.StoreOptions{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func newOrders(t *testing.T, opts ...Option) (*Table[order], *ddbstore.Store) {
	store := newTestStore(t)
	orders := New[order](store, "orders", nil, opts...)
	require.NoError(t, orders.CreateTable(context.Background()))
	return orders, store
}

func seedOrders(t *testing.T, orders *Table[order]) {
	for _, o := range []order{
		{Customer: "c1", ID: "o1", Status: "open", Total: 250},
		{Customer: "c1", ID: "o2", Status: "shipped", Total: 80, Note: aws.String("fragile")},
		{Customer: "c1", ID: "o3", Status: "open", Total: 120},
		{Customer: "c2", ID: "o1", Status: "open", Total: 40},
	} {
		require.NoError(t, orders.Put(context.Background(), o))
	}
}

func TestTable_Definition(t *testing.T) {
	orders := New[order](nil, "orders", nil, WithProjection(func(idx ddbschema.Index) *types.Projection {
		if idx.Name == "byStatus" {
			return &types.Projection{ProjectionType: types.ProjectionTypeKeysOnly}
		}
		return nil
	}))

	def, err := orders.Definition()
	require.NoError(t, err)
	assert.Equal(t, "orders", def.Name)
	assert.Equal(t, []string{"customer", "id"}, def.KeyDefinitions.Names())
	require.Len(t, def.GSIs, 1)
	assert.Equal(t, "byStatus", def.GSIs[0].Name)
	assert.Equal(t, types.ProjectionTypeKeysOnly, def.GSIs[0].Projection.ProjectionType)
	require.Len(t, def.LSIs, 1)
	assert.Equal(t, "byCustomerTotal", def.LSIs[0].Name)
	assert.Nil(t, def.LSIs[0].Projection)

	in, err := orders.CreateTableInput()
	require.NoError(t, err)
	assert.Equal(t, types.BillingModePayPerRequest, in.BillingMode)
	assert.Len(t, in.AttributeDefinitions, 4)
}

func TestTable_PutGetDelete(t *testing.T) {
	orders, _ := newOrders(t)
	ctx := context.Background()
	seedOrders(t, orders)

	got, err := orders.Get(ctx, order{Customer: "c1", ID: "o2"})
	require.NoError(t, err)
	assert.Equal(t, order{Customer: "c1", ID: "o2", Status: "shipped", Total: 80, Note: aws.String("fragile")}, got)

	_, err = orders.Get(ctx, order{Customer: "c3", ID: "o1"})
	require.ErrorIs(t, err, ErrItemNotFound)

	require.NoError(t, orders.Delete(ctx, order{Customer: "c1", ID: "o2"}))
	_, err = orders.Get(ctx, order{Customer: "c1", ID: "o2"})
	require.ErrorIs(t, err, ErrItemNotFound)

	require.NoError(t, orders.Delete(ctx, order{Customer: "c1", ID: "o2"}))
}

func TestTable_PutDropsNulls(t *testing.T) {
	orders, store := newOrders(t)
	ctx := context.Background()
	require.NoError(t, orders.Put(ctx, order{Customer: "c1", ID: "o1", Status: "open"}))

	res, err := store.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String("orders"),
		Key: map[string]types.AttributeValue{
			"customer": &types.AttributeValueMemberS{Value: "c1"},
			"id":       &types.AttributeValueMemberS{Value: "o1"},
		},
	})
	require.NoError(t, err)
	assert.NotContains(t, res.Item, "note")
	assert.Equal(t, &types.AttributeValueMemberN{Value: "0"}, res.Item["total"])
}

func TestTable_Create(t *testing.T) {
	orders, _ := newOrders(t)
	ctx := context.Background()
	o := order{Customer: "c1", ID: "o1", Status: "open", Total: 10}

	require.NoError(t, orders.Create(ctx, o))
	o.Total = 20
	require.ErrorIs(t, orders.Create(ctx, o), ErrAlreadyExists)

	got, err := orders.Get(ctx, o)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Total)
}

func TestTable_Query(t *testing.T) {
	orders, _ := newOrders(t)
	ctx := context.Background()
	seedOrders(t, orders)

	ids := func(items []order) []string {
		var out []string
		for _, o := range items {
			out = append(out, o.Customer+"/"+o.ID)
		}
		return out
	}

	tests := []struct {
		name  string
		query Query[order]
		want  []string
	}{
		{
			name:  "table partition",
			query: Query[order]{Key: order{Customer: "c1"}},
			want:  []string{"c1/o1", "c1/o2", "c1/o3"},
		},
		{
			name:  "table sort condition descending",
			query: Query[order]{Key: order{Customer: "c1"}, Sort: GreaterThanOrEqual("o2"), Descending: true},
			want:  []string{"c1/o3", "c1/o2"},
		},
		{
			name:  "begins with",
			query: Query[order]{Key: order{Customer: "c1"}, Sort: BeginsWith("o3")},
			want:  []string{"c1/o3"},
		},
		{
			name:  "global index",
			query: Query[order]{Index: "byStatus", Key: order{Status: "open"}},
			want:  []string{"c2/o1", "c1/o3", "c1/o1"},
		},
		{
			name:  "global index sort condition",
			query: Query[order]{Index: "byStatus", Key: order{Status: "open"}, Sort: Between(int64(100), int64(300))},
			want:  []string{"c1/o3", "c1/o1"},
		},
		{
			name:  "local index",
			query: Query[order]{Index: "byCustomerTotal", Key: order{Customer: "c1"}, Sort: LessThan(int64(200))},
			want:  []string{"c1/o2", "c1/o3"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := orders.QueryAll(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(items))
		})
	}

	t.Run("pages", func(t *testing.T) {
		page, err := orders.Query(ctx, Query[order]{Key: order{Customer: "c1"}, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"c1/o1", "c1/o2"}, ids(page.Items))
		require.False(t, page.Done())

		page, err = orders.Query(ctx, Query[order]{Key: order{Customer: "c1"}, Limit: 2, Cursor: page.Cursor})
		require.NoError(t, err)
		assert.Equal(t, []string{"c1/o3"}, ids(page.Items))

		all, err := orders.QueryAll(ctx, Query[order]{Key: order{Customer: "c1"}, Limit: 1})
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("unknown index", func(t *testing.T) {
		_, err := orders.Query(ctx, Query[order]{Index: "byDate", Key: order{Customer: "c1"}})
		require.ErrorIs(t, err, ddbschema.ErrIndexNotFound)
	})
}

func TestTable_KeysOnlyIndex(t *testing.T) {
	orders, _ := newOrders(t, WithProjection(func(idx ddbschema.Index) *types.Projection {
		return &types.Projection{ProjectionType: types.ProjectionTypeKeysOnly}
	}))
	ctx := context.Background()
	seedOrders(t, orders)

	items, err := orders.QueryAll(ctx, Query[order]{Index: "byStatus", Key: order{Status: "shipped"}})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, order{Customer: "c1", ID: "o2", Status: "shipped", Total: 80}, items[0])
}

func TestTable_Scan(t *testing.T) {
	orders, _ := newOrders(t)
	ctx := context.Background()
	seedOrders(t, orders)

	page, err := orders.Scan(ctx, Scan{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
	assert.False(t, page.Done())

	all, err := orders.ScanAll(ctx, Scan{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	open, err := orders.ScanAll(ctx, Scan{Index: "byStatus"})
	require.NoError(t, err)
	assert.Len(t, open, 4)
}

func TestTable_DecodeFailure(t *testing.T) {
	orders, store := newOrders(t)
	ctx := context.Background()

	_, err := store.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String("orders"),
		Item: map[string]types.AttributeValue{
			"customer": &types.AttributeValueMemberS{Value: "c1"},
			"id":       &types.AttributeValueMemberS{Value: "bad"},
			"status":   &types.AttributeValueMemberS{Value: "open"},
			"total":    &types.AttributeValueMemberN{Value: "1"},
			"note":     &types.AttributeValueMemberN{Value: "2"},
		},
	})
	require.NoError(t, err)

	_, err = orders.Get(ctx, order{Customer: "c1", ID: "bad"})
	var mappingErr *ddbschema.RecordMappingError
	require.ErrorAs(t, err, &mappingErr)
	assert.Equal(t, "note", mappingErr.Attribute)
}
