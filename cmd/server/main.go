package main

import (
	"context"
	"flag"
	"log"

	"github.com/sh3r4rd/mycloud/internal/app/bootstrap"
	"github.com/sh3r4rd/mycloud/internal/config"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config file")
	flag.Parse()

	ctx := context.Background()
	runtime, err := bootstrap.NewRuntime(ctx, *configPath)
	if err != nil {
		log.Fatalf("bootstrap api runtime: %v", err)
	}
	if err := runtime.RunAPI(ctx); err != nil {
		log.Fatalf("run api: %v", err)
	}
}
