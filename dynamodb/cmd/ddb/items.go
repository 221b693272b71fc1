package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"gopkg.in/yaml.v3"
)

func runScan(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		tableName = fs.String("table", "", "table to scan (required)")
		index     = fs.String("index", "", "secondary index to scan")
		pageSize  = fs.Int("page-size", 100, "items read per request")
		maxItems  = fs.Int("max", 0, "stop after this many items (0 for all)")
	)
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *tableName == "" {
		fmt.Fprintln(stderr, "ddb scan: --table is required")
		return errUsage
	}

	b, err := cf.open(ctx, stderr)
	if err != nil {
		return err
	}
	defer b.close()

	in := &dynamodb.ScanInput{
		TableName: tableName,
		Limit:     aws.Int32(int32(*pageSize)),
	}
	if *index != "" {
		in.IndexName = index
	}
	var items []map[string]types.AttributeValue
	for {
		res, err := b.client.Scan(ctx, in)
		if err != nil {
			return fmt.Errorf("scan %s: %w", *tableName, err)
		}
		items = append(items, res.Items...)
		if *maxItems > 0 && len(items) >= *maxItems {
			items = items[:*maxItems]
			break
		}
		if res.LastEvaluatedKey == nil {
			break
		}
		in.ExclusiveStartKey = res.LastEvaluatedKey
	}
	b.log.Debug().Str("table", *tableName).Int("items", len(items)).Msg("scan complete")
	return printItems(stdout, items)
}

func runGet(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	fs.SetOutput(stderr)
	tableName := fs.String("table", "", "table to read from (required)")
	key := keyFlag{}
	fs.Var(key, "key", "key attribute as name=TYPE:value with TYPE S, N or B (base64); repeat for the sort key")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *tableName == "" || len(key) == 0 {
		fmt.Fprintln(stderr, "ddb get: --table and --key are required")
		return errUsage
	}

	b, err := cf.open(ctx, stderr)
	if err != nil {
		return err
	}
	defer b.close()

	res, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      tableName,
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("get item: %w", err)
	}
	if res.Item == nil {
		return fmt.Errorf("no item with key %s in %s", key, *tableName)
	}
	return printItems(stdout, []map[string]types.AttributeValue{res.Item})
}

// keyFlag collects repeated --key name=TYPE:value flags.
type keyFlag map[string]types.AttributeValue

func (k keyFlag) String() string {
	parts := make([]string, 0, len(k))
	for name, av := range k {
		parts = append(parts, fmt.Sprintf("%s=%s", name, formatKeyValue(av)))
	}
	return strings.Join(parts, ",")
}

func (k keyFlag) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return fmt.Errorf("expected name=TYPE:value, got %q", s)
	}
	av, err := parseKeyValue(value)
	if err != nil {
		return fmt.Errorf("key %s: %w", name, err)
	}
	k[name] = av
	return nil
}

func parseKeyValue(s string) (types.AttributeValue, error) {
	kind, value, ok := strings.Cut(s, ":")
	if !ok {
		return nil, fmt.Errorf("expected TYPE:value, got %q", s)
	}
	switch kind {
	case "S":
		return &types.AttributeValueMemberS{Value: value}, nil
	case "N":
		return &types.AttributeValueMemberN{Value: value}, nil
	case "B":
		b, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return nil, fmt.Errorf("decode binary value: %w", err)
		}
		return &types.AttributeValueMemberB{Value: b}, nil
	}
	return nil, fmt.Errorf("unsupported key type %q, use S, N or B", kind)
}

func formatKeyValue(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return "S:" + v.Value
	case *types.AttributeValueMemberN:
		return "N:" + v.Value
	case *types.AttributeValueMemberB:
		return "B:" + base64.StdEncoding.EncodeToString(v.Value)
	}
	return fmt.Sprintf("%T", av)
}

// printItems writes items as a YAML sequence of plain values.
func printItems(w io.Writer, items []map[string]types.AttributeValue) error {
	docs := make([]map[string]any, 0, len(items))
	for _, item := range items {
		var doc map[string]any
		if err := attributevalue.UnmarshalMap(item, &doc); err != nil {
			return fmt.Errorf("decode item: %w", err)
		}
		docs = append(docs, doc)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(docs); err != nil {
		return err
	}
	return enc.Close()
}
