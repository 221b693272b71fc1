package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/acksell/recordschema/dynamodb/ddbiface"
	"github.com/acksell/recordschema/dynamodb/ddblog"
	"github.com/acksell/recordschema/dynamodb/ddbstore"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog"
)

// clientFlags select the backend every command talks to.
type clientFlags struct {
	useAWS   bool
	db       string
	memory   bool
	region   string
	endpoint string
	logLevel string
}

func addClientFlags(fs *flag.FlagSet) *clientFlags {
	cf := &clientFlags{}
	fs.BoolVar(&cf.useAWS, "aws", false, "use DynamoDB in AWS instead of the local store")
	fs.StringVar(&cf.db, "db", "", "path to the local BadgerDB database (default from ddb.yaml, else ./.ddb)")
	fs.BoolVar(&cf.memory, "memory", false, "use an empty in-memory local store")
	fs.StringVar(&cf.region, "region", "", "AWS region for --aws")
	fs.StringVar(&cf.endpoint, "endpoint", "", "custom DynamoDB endpoint for --aws")
	fs.StringVar(&cf.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	return cf
}

// backend is an open client and the resources behind it.
type backend struct {
	client ddbiface.Client
	log    zerolog.Logger
	close  func() error
}

func (cf *clientFlags) open(ctx context.Context, stderr io.Writer) (*backend, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg, err := LoadConfig(wd)
	if err != nil {
		return nil, err
	}
	if cf.logLevel != "" {
		cfg.LogLevel = cf.logLevel
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "warn"
	}
	log, err := ddblog.New(ddblog.Config{Level: cfg.LogLevel, Pretty: cfg.Pretty, Output: stderr})
	if err != nil {
		return nil, err
	}

	if cf.useAWS {
		return cf.openAWS(ctx, cfg, log)
	}

	path := cf.db
	if path == "" {
		path = cfg.DataDir
	}
	if path == "" {
		path = defaultDataDir
	}
	store, err := ddbstore.New(ddbstore.StoreOptions{
		Path:     path,
		InMemory: cf.memory,
		Logger:   ddblog.Component(log, "store"),
	})
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	if cf.memory {
		log.Debug().Msg("using in-memory store")
	} else {
		log.Debug().Str("path", path).Msg("using local store")
	}
	return &backend{client: store, log: log, close: store.Close}, nil
}

func (cf *clientFlags) openAWS(ctx context.Context, cfg Config, log zerolog.Logger) (*backend, error) {
	region := cf.region
	if region == "" {
		region = cfg.Region
	}
	endpoint := cf.endpoint
	if endpoint == "" {
		endpoint = cfg.Endpoint
	}

	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	log.Debug().Str("region", awsCfg.Region).Str("endpoint", endpoint).Msg("using AWS")
	return &backend{client: client, log: log, close: func() error { return nil }}, nil
}
