// ddb is a CLI for working with DynamoDB tables described by schema files,
// either in a local BadgerDB store or in AWS.
//
// # Installation
//
//	go install github.com/acksell/recordschema/dynamodb/cmd/ddb@latest
//
// # Commands
//
//	ddb tables create   Create the tables declared in schema_dynamodb.yaml files
//	ddb tables list     List tables
//	ddb scan            Print every item of a table or index
//	ddb get             Print one item by primary key
//
// # Quick Start
//
// Export a schema from a record type with ddbschema and create its tables in
// the local store:
//
//	ddb tables create --schema ./schema/*.yaml
//	ddb scan --table orders
//
// Pass --aws to run the same commands against DynamoDB.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
)

const version = "0.1.0"

func main() {
	err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if errors.Is(err, errUsage) {
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ddb: %v\n", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("usage error")

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) < 1 {
		printUsage(stderr)
		return errUsage
	}

	cmd, args := args[0], args[1:]
	switch cmd {
	case "tables":
		return runTables(ctx, args, stdout, stderr)
	case "scan":
		return runScan(ctx, args, stdout, stderr)
	case "get":
		return runGet(ctx, args, stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	case "version", "-v", "--version":
		fmt.Fprintf(stdout, "ddb version %s\n", version)
		return nil
	}
	fmt.Fprintf(stderr, "ddb: unknown command %q\n\n", cmd)
	printUsage(stderr)
	return errUsage
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `ddb - DynamoDB development tools

Usage:
  ddb <command> [flags]

Commands:
  tables create   Create tables from schema files
  tables list     List tables
  scan            Print the items of a table or index
  get             Print one item by primary key
  version         Print the ddb version

Examples:
  # Create tables from every schema_dynamodb.yaml in the repository:
  ddb tables create

  # Create tables from specific schema files:
  ddb tables create --schema ./schema/*.yaml

  # Read from the local store:
  ddb scan --table orders --index byStatus
  ddb get --table orders --key customer=S:c1 --key id=S:o1

  # Run against AWS:
  ddb tables list --aws --region eu-west-1

Configuration (optional):
  Create ddb.yaml for defaults:

    dataDir: ./.ddb    # local database directory
    logLevel: info     # trace, debug, info, warn, error
    pretty: true       # console log output
    region: eu-west-1  # AWS region for --aws
    endpoint: ""       # custom DynamoDB endpoint for --aws

Run 'ddb <command> --help' for more information on a command.`)
}
