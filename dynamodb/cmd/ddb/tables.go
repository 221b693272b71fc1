package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/acksell/recordschema/dynamodb/schema"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func runTables(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "Usage: ddb tables <create|list> [flags]")
		return errUsage
	}
	switch args[0] {
	case "create":
		return runTablesCreate(ctx, args[1:], stdout, stderr)
	case "list":
		return runTablesList(ctx, args[1:], stdout, stderr)
	}
	fmt.Fprintf(stderr, "ddb tables: unknown command %q\n", args[0])
	return errUsage
}

func runTablesCreate(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("tables create", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		pattern = fs.String("schema", "", "glob pattern for schema YAML files (default: discover "+schemaFilename+" files)")
		dir     = fs.String("dir", ".", "directory to discover schema files in")
	)
	cf := addClientFlags(fs)
	fs.Usage = func() {
		fmt.Fprintln(stderr, `ddb tables create - Create tables from schema files

Usage:
  ddb tables create [flags]

Tables that already exist are left unchanged.

Flags:`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := loadSchemas(*pattern, *dir)
	if err != nil {
		return err
	}

	b, err := cf.open(ctx, stderr)
	if err != nil {
		return err
	}
	defer b.close()

	for _, t := range s.Tables {
		def, err := t.Definition()
		if err != nil {
			return fmt.Errorf("table %s: %w", t.Name, err)
		}
		in, err := def.CreateTableInput()
		if err != nil {
			return fmt.Errorf("table %s: %w", t.Name, err)
		}
		_, err = b.client.CreateTable(ctx, in)
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			b.log.Info().Str("table", t.Name).Msg("table already exists")
			fmt.Fprintf(stdout, "exists   %s\n", t.Name)
			continue
		}
		if err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
		fmt.Fprintf(stdout, "created  %s\n", t.Name)
	}
	return nil
}

func loadSchemas(pattern, dir string) (*schema.Schema, error) {
	if pattern != "" {
		return schema.LoadGlob(pattern)
	}
	files, err := discoverSchemas(dir)
	if err != nil {
		return nil, fmt.Errorf("discover schema files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s files found in %s", schemaFilename, dir)
	}
	return schema.LoadFiles(files...)
}

func runTablesList(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("tables list", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	b, err := cf.open(ctx, stderr)
	if err != nil {
		return err
	}
	defer b.close()

	in := &dynamodb.ListTablesInput{}
	for {
		res, err := b.client.ListTables(ctx, in)
		if err != nil {
			return fmt.Errorf("list tables: %w", err)
		}
		for _, name := range res.TableNames {
			fmt.Fprintln(stdout, name)
		}
		if aws.ToString(res.LastEvaluatedTableName) == "" {
			return nil
		}
		in.ExclusiveStartTableName = res.LastEvaluatedTableName
	}
}
