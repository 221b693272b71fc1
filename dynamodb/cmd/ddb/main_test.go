package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/acksell/recordschema/dynamodb/ddbstore"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ordersSchema = `tables:
  - name: orders
    partitionKey: {name: customer, kind: S}
    sortKey: {name: id, kind: S}
    gsis:
      - name: byStatus
        partitionKey: {name: status, kind: S}
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), args, &out, io.Discard)
	return out.String(), err
}

func TestRun_Tables(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "data")
	writeFile(t, filepath.Join(dir, "orders", schemaFilename), ordersSchema)

	out, err := runCmd(t, "tables", "create", "--dir", dir, "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "created  orders\n", out)

	out, err = runCmd(t, "tables", "create", "--schema", filepath.Join(dir, "*", "*.yaml"), "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "exists   orders\n", out)

	out, err = runCmd(t, "tables", "list", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "orders\n", out)
}

func TestRun_Items(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "data")
	writeFile(t, filepath.Join(dir, schemaFilename), ordersSchema)
	_, err := runCmd(t, "tables", "create", "--dir", dir, "--db", db)
	require.NoError(t, err)

	store, err := ddbstore.New(ddbstore.StoreOptions{Path: db})
	require.NoError(t, err)
	for _, id := range []string{"o1", "o2"} {
		_, err := store.PutItem(context.Background(), &dynamodb.PutItemInput{
			TableName: aws.String("orders"),
			Item: map[string]types.AttributeValue{
				"customer": &types.AttributeValueMemberS{Value: "c1"},
				"id":       &types.AttributeValueMemberS{Value: id},
				"status":   &types.AttributeValueMemberS{Value: "open"},
				"total":    &types.AttributeValueMemberN{Value: "12"},
			},
		})
		require.NoError(t, err)
	}
	require.NoError(t, store.Close())

	out, err := runCmd(t, "get", "--db", db, "--table", "orders", "--key", "customer=S:c1", "--key", "id=S:o2")
	require.NoError(t, err)
	assert.Equal(t, "- customer: c1\n  id: o2\n  status: open\n  total: 12\n", out)

	_, err = runCmd(t, "get", "--db", db, "--table", "orders", "--key", "customer=S:c1", "--key", "id=S:o3")
	require.ErrorContains(t, err, "no item with key")

	out, err = runCmd(t, "scan", "--db", db, "--table", "orders", "--index", "byStatus", "--page-size", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "id: o1")
	assert.Contains(t, out, "id: o2")

	out, err = runCmd(t, "scan", "--db", db, "--table", "orders", "--max", "1")
	require.NoError(t, err)
	assert.NotContains(t, out, "id: o2")
}

func TestRun_Usage(t *testing.T) {
	_, err := runCmd(t)
	require.ErrorIs(t, err, errUsage)

	_, err = runCmd(t, "frobnicate")
	require.ErrorIs(t, err, errUsage)

	_, err = runCmd(t, "scan", "--memory")
	require.ErrorIs(t, err, errUsage)

	out, err := runCmd(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "ddb version "+version+"\n", out)
}

func TestKeyFlag(t *testing.T) {
	k := keyFlag{}
	require.NoError(t, k.Set("pk=S:user#1"))
	require.NoError(t, k.Set("sk=N:42"))
	require.NoError(t, k.Set("raw=B:AAE="))
	assert.Equal(t, keyFlag{
		"pk":  &types.AttributeValueMemberS{Value: "user#1"},
		"sk":  &types.AttributeValueMemberN{Value: "42"},
		"raw": &types.AttributeValueMemberB{Value: []byte{0, 1}},
	}, k)

	for _, bad := range []string{"pk", "=S:x", "pk=x", "pk=BOOL:true", "pk=B:not base64"} {
		assert.Error(t, keyFlag{}.Set(bad), bad)
	}
}

func TestLoadConfig(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "services", "orders")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	cfg, err := LoadConfig(nested)
	require.NoError(t, err)
	assert.Equal(t, Config{}, cfg)

	writeFile(t, filepath.Join(root, configFilename), "dataDir: ./db\nlogLevel: debug\nregion: eu-west-1\n")
	cfg, err = LoadConfig(nested)
	require.NoError(t, err)
	assert.Equal(t, Config{
		DataDir:  filepath.Join(root, "db"),
		LogLevel: "debug",
		Region:   "eu-west-1",
	}, cfg)

	writeFile(t, filepath.Join(nested, configFilename), "dataDir: [\n")
	_, err = LoadConfig(nested)
	require.Error(t, err)
}

func TestDiscoverWithWalk(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", schemaFilename), ordersSchema)
	writeFile(t, filepath.Join(root, "b", "c", schemaFilename), ordersSchema)
	writeFile(t, filepath.Join(root, "vendor", "x", schemaFilename), ordersSchema)
	writeFile(t, filepath.Join(root, "a", "other.yaml"), ordersSchema)

	files, err := discoverWithWalk(root)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "a", schemaFilename),
		filepath.Join(root, "b", "c", schemaFilename),
	}, files)
}
