// Command storecheck verifies that the configured bucket and tables are
// reachable and usable with the current credentials.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sh3r4rd/mycloud/internal/app/bootstrap"
	"github.com/sh3r4rd/mycloud/internal/config"
	"github.com/sh3r4rd/mycloud/internal/storecheck"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config file")
	timeout := flag.Duration("timeout", time.Minute, "overall time limit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Storage.Driver != config.DriverAWS {
		log.Fatalf("storecheck needs the %q storage driver, config has %q", config.DriverAWS, cfg.Storage.Driver)
	}
	logger := bootstrap.NewLogger(os.Stdout, cfg.ServiceID+"-storecheck", cfg.Log.Level)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	stores, err := bootstrap.NewStores(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("build stores: %v", err)
	}
	checker := &storecheck.Checker{
		Bucket:    stores.Bucket,
		Files:     stores.Files,
		FileTable: stores.FileTable,
		Logs:      stores.Logs,
		LogTable:  stores.LogTable,
		Logger:    logger,
	}
	if err := checker.Run(ctx); err != nil {
		logger.Error("store check failed", "error", err)
		fmt.Fprintln(os.Stderr, "Check that the bucket and tables exist in", cfg.AWS.Region, "and that AWS credentials are configured.")
		os.Exit(1)
	}
	logger.Info("all store checks passed")
}
