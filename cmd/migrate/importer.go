package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hasib2k/online-store/internal/orders"
	"github.com/hasib2k/online-store/internal/reconcile"
	"github.com/hasib2k/online-store/internal/timestamp"
)

type importer struct {
	file       orders.Store
	dest       orders.Writable
	normalizer *timestamp.Normalizer
	strict     bool
	dryRun     bool
	log        *zap.Logger
	nowFunc    func() time.Time
}

type summary struct {
	Read       int
	Imported   int
	Duplicates int
	Skipped    int // no usable id
	Failed     int
}

// run imports every file record whose signature is new to the destination.
// Signatures seen earlier in the same run count as duplicates too.
func (im *importer) run(ctx context.Context) (summary, error) {
	var sum summary

	records, err := im.file.ListAll(ctx)
	if err != nil {
		return sum, fmt.Errorf("read orders file: %w", err)
	}
	existing, err := im.dest.ListAll(ctx)
	if err != nil {
		return sum, fmt.Errorf("list %s orders: %w", im.dest.Name(), err)
	}

	seen := make(map[string]struct{}, len(existing)+len(records))
	for _, o := range existing {
		seen[reconcile.Signature(o, im.strict)] = struct{}{}
	}

	for _, o := range records {
		sum.Read++
		if o.ID == "" {
			o.ID = o.GeneratedKey
		}
		if o.ID == "" {
			sum.Skipped++
			im.log.Warn("record has neither id nor key, skipped", zap.String("customer", o.CustomerName))
			continue
		}

		sig := reconcile.Signature(o, im.strict)
		if _, dup := seen[sig]; dup {
			sum.Duplicates++
			im.log.Debug("duplicate, skipped", zap.String("id", o.ID))
			continue
		}
		seen[sig] = struct{}{}

		created, ok := im.normalizer.Parse(o.CreatedAt)
		if !ok {
			created = im.nowFunc()
		}
		o.CreatedAtRaw = &created
		o.Status = orders.ParseStatus(string(o.Status))

		if im.dryRun {
			sum.Imported++
			im.log.Info("would import", zap.String("id", o.ID), zap.Time("created_at", created))
			continue
		}

		err := im.dest.Create(ctx, o)
		switch {
		case err == nil:
			sum.Imported++
			im.log.Info("imported", zap.String("id", o.ID))
		case errors.Is(err, orders.ErrAlreadyExists):
			sum.Duplicates++
			im.log.Info("id already present, skipped", zap.String("id", o.ID))
		default:
			sum.Failed++
			im.log.Error("import failed", zap.String("id", o.ID), zap.Error(err))
		}
	}

	im.log.Info("import finished",
		zap.Bool("dry_run", im.dryRun),
		zap.String("destination", im.dest.Name()),
		zap.Int("read", sum.Read),
		zap.Int("imported", sum.Imported),
		zap.Int("duplicates", sum.Duplicates),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed),
	)
	if sum.Failed > 0 {
		return sum, fmt.Errorf("%d of %d records failed to import", sum.Failed, sum.Read)
	}
	return sum, nil
}
