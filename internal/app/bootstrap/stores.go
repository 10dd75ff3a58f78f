package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sh3r4rd/mycloud/internal/config"
	"github.com/sh3r4rd/mycloud/internal/store"
	"github.com/sh3r4rd/mycloud/internal/store/dynamo"
	"github.com/sh3r4rd/mycloud/internal/store/memstore"
	"github.com/sh3r4rd/mycloud/internal/store/s3store"
)

// Stores holds the adapters behind the store ports. Bucket, FileTable and
// LogTable are set only for the aws driver.
type Stores struct {
	Objects store.ObjectStore
	Files   store.FileRepository
	Logs    store.ActivityLog

	Bucket    *s3store.Store
	FileTable *dynamo.FileTable
	LogTable  *dynamo.LogTable
}

// NewStores builds the adapters selected by cfg.Storage.Driver.
func NewStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (Stores, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory storage; data is lost on restart",
			"public_base_url", cfg.Storage.PublicBaseURL)
		return Stores{
			Objects: memstore.NewObjectStore(cfg.Storage.PublicBaseURL, nil),
			Files:   memstore.NewFileTable(),
			Logs:    memstore.NewLogTable(),
		}, nil
	case config.DriverAWS:
		return newAWSStores(ctx, cfg, logger)
	default:
		return Stores{}, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func newAWSStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (Stores, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return Stores{}, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := cfg.AWS.Endpoint
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	ddbClient := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	bucket := s3store.New(s3Client, s3.NewPresignClient(s3Client), s3store.Options{
		Bucket:        cfg.Storage.Bucket,
		Region:        cfg.AWS.Region,
		URLMode:       cfg.Storage.URLMode,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
		PresignTTL:    cfg.Storage.PresignTTL,
	})
	files := dynamo.NewFileTable(ddbClient, cfg.Storage.FilesTable)
	logs := dynamo.NewLogTable(ddbClient, cfg.Storage.LogsTable)

	logger.Info("aws storage configured",
		"region", cfg.AWS.Region,
		"bucket", cfg.Storage.Bucket,
		"files_table", cfg.Storage.FilesTable,
		"logs_table", cfg.Storage.LogsTable,
		"url_mode", cfg.Storage.URLMode,
	)
	return Stores{
		Objects:   bucket,
		Files:     files,
		Logs:      logs,
		Bucket:    bucket,
		FileTable: files,
		LogTable:  logs,
	}, nil
}
