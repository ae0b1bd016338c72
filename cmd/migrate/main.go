// Command migrate copies orders from the flat-file store into the structured
// store, skipping records the structured store already holds.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/hasib2k/online-store/internal/aws"
	"github.com/hasib2k/online-store/internal/config"
	"github.com/hasib2k/online-store/internal/logger"
	"github.com/hasib2k/online-store/internal/orders"
	"github.com/hasib2k/online-store/internal/timestamp"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "log what would be imported without writing")
	filePath := flag.String("file", "", "orders file to import (defaults to filestore.path)")
	flag.Parse()

	if err := run(*dryRun, *filePath); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run(dryRun bool, filePath string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	log, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync(log) //nolint:errcheck

	if filePath == "" {
		filePath = cfg.FileStore.Path
	}
	if _, err := os.Stat(filePath); err != nil {
		return fmt.Errorf("orders file %s: %w", filePath, err)
	}

	ctx := context.Background()
	var dynamo aws.DynamoDBAPI
	if cfg.StructuredBackend() == "dynamodb" {
		clients, err := aws.NewAWSClients(ctx, cfg.AWS)
		if err != nil {
			return fmt.Errorf("init aws clients: %w", err)
		}
		dynamo = clients.DynamoDB
	}
	dest, closeDB, err := orders.OpenStructured(cfg, dynamo)
	if err != nil {
		return err
	}
	defer closeDB() //nolint:errcheck
	if dest == nil {
		return errors.New("no structured store configured; set database.url or dynamodb.orders_table")
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	im := &importer{
		file:       orders.NewFileStore(filePath),
		dest:       dest,
		normalizer: timestamp.New(loc),
		strict:     cfg.Reconcile.StrictSignature,
		dryRun:     dryRun,
		log:        log,
		nowFunc:    time.Now,
	}
	_, err = im.run(ctx)
	return err
}
