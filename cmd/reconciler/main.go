package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/sh3r4rd/mycloud/internal/app/bootstrap"
	"github.com/sh3r4rd/mycloud/internal/config"
)

func main() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := bootstrap.NewLogger(os.Stdout, cfg.ServiceID+"-reconciler", cfg.Log.Level)

	stores, err := bootstrap.NewStores(context.Background(), cfg, logger)
	if err != nil {
		log.Fatalf("build stores: %v", err)
	}
	lambda.Start(bootstrap.NewReconciler(stores, cfg, logger).LambdaHandler)
}
