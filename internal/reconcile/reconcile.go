// Package reconcile merges the structured order store and the flat-file order
// store into the single listing shown to administrators.
package reconcile

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hasib2k/online-store/internal/metrics"
	"github.com/hasib2k/online-store/internal/orderkey"
	"github.com/hasib2k/online-store/internal/orders"
	"github.com/hasib2k/online-store/internal/timestamp"
)

// Stats summarizes one pass.
type Stats struct {
	Structured    int
	File          int
	SkippedByID   int
	Duplicates    int
	Untimed       int
	Result        int
	StructuredErr error
	FileErr       error
	Duration      time.Duration
}

// SourceErrors counts the sources that failed to load.
func (s Stats) SourceErrors() int {
	n := 0
	if s.StructuredErr != nil {
		n++
	}
	if s.FileErr != nil {
		n++
	}
	return n
}

// Reconciler holds no state between passes; every Reconcile call reads both
// sources afresh.
type Reconciler struct {
	structured orders.Store
	file       orders.Store
	normalizer *timestamp.Normalizer
	keyLength  int
	strict     bool
	logger     *zap.Logger
	recorder   metrics.Recorder
	nowFunc    func() time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithKeyLength sets the length of derived display keys.
func WithKeyLength(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.keyLength = n
		}
	}
}

// WithStrictSignature adds product name and quantity to the dedup signature.
func WithStrictSignature(strict bool) Option {
	return func(r *Reconciler) { r.strict = strict }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l.Named("reconcile")
		}
	}
}

func WithRecorder(m metrics.Recorder) Option {
	return func(r *Reconciler) {
		if m != nil {
			r.recorder = m
		}
	}
}

// New returns a Reconciler. structured may be nil when no structured store is
// configured; file may be nil as well, in which case only structured rows show.
func New(structured, file orders.Store, normalizer *timestamp.Normalizer, opts ...Option) *Reconciler {
	if normalizer == nil {
		normalizer = timestamp.New(nil)
	}
	r := &Reconciler{
		structured: structured,
		file:       file,
		normalizer: normalizer,
		keyLength:  orderkey.DefaultLength,
		logger:     zap.NewNop(),
		recorder:   metrics.Nop{},
		nowFunc:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type entry struct {
	order orders.Order
	at    time.Time
	timed bool
}

// Reconcile loads both sources, merges, dedups, sorts newest first and
// assigns keys and display positions. Source failures are logged and the
// source is treated as empty; the result is never an error.
func (r *Reconciler) Reconcile(ctx context.Context) ([]orders.Order, Stats) {
	start := r.nowFunc()
	var (
		stats          Stats
		structuredRows []orders.Order
		fileRows       []orders.Order
	)

	g, gctx := errgroup.WithContext(ctx)
	if r.structured != nil {
		g.Go(func() error {
			rows, err := r.structured.ListAll(gctx)
			if err != nil {
				stats.StructuredErr = err
				r.logger.Warn("structured store read failed, continuing with file rows",
					zap.String("store", r.structured.Name()), zap.Error(err))
				return nil
			}
			structuredRows = rows
			return nil
		})
	}
	if r.file != nil {
		g.Go(func() error {
			rows, err := r.file.ListAll(gctx)
			if err != nil {
				stats.FileErr = err
				r.logger.Warn("file store read failed, treating it as empty", zap.Error(err))
				return nil
			}
			fileRows = rows
			return nil
		})
	}
	_ = g.Wait()

	stats.Structured = len(structuredRows)
	stats.File = len(fileRows)

	merged := make([]entry, 0, len(structuredRows)+len(fileRows))
	structuredIDs := make(map[string]struct{}, len(structuredRows))
	for _, o := range structuredRows {
		e := r.normalize(o)
		structuredIDs[e.order.ID] = struct{}{}
		merged = append(merged, e)
	}
	for _, o := range fileRows {
		e := r.normalize(o)
		if _, taken := structuredIDs[e.order.ID]; taken {
			stats.SkippedByID++
			continue
		}
		merged = append(merged, e)
	}

	seen := make(map[string]struct{}, len(merged))
	deduped := merged[:0]
	for _, e := range merged {
		sig := Signature(e.order, r.strict)
		if _, dup := seen[sig]; dup {
			stats.Duplicates++
			continue
		}
		seen[sig] = struct{}{}
		deduped = append(deduped, e)
	}

	sort.SliceStable(deduped, func(i, j int) bool {
		a, b := deduped[i], deduped[j]
		if a.timed != b.timed {
			return a.timed
		}
		return a.at.After(b.at)
	})

	out := make([]orders.Order, 0, len(deduped))
	for i, e := range deduped {
		o := e.order
		if !e.timed {
			stats.Untimed++
		}
		o.GeneratedKey = orderkey.DisplayKey(o.GeneratedKey, o.ID, r.keyLength)
		o.DisplayID = i + 1
		out = append(out, o)
	}

	stats.Result = len(out)
	stats.Duration = r.nowFunc().Sub(start)
	r.logger.Debug("reconciled orders",
		zap.Int("structured", stats.Structured),
		zap.Int("file", stats.File),
		zap.Int("skipped_by_id", stats.SkippedByID),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("untimed", stats.Untimed),
		zap.Int("result", stats.Result),
		zap.Duration("took", stats.Duration),
	)
	r.recorder.ObserveReconcile(metrics.ReconcileSample{
		Structured:   stats.Structured,
		File:         stats.File,
		SkippedByID:  stats.SkippedByID,
		Duplicates:   stats.Duplicates,
		Untimed:      stats.Untimed,
		Result:       stats.Result,
		SourceErrors: stats.SourceErrors(),
		Duration:     stats.Duration,
	})
	return out, stats
}

// normalize canonicalizes the id and fills whichever half of the timestamp
// pair the source did not provide.
func (r *Reconciler) normalize(o orders.Order) entry {
	o.ID = orders.CanonicalID(o.ID)
	e := entry{}
	switch {
	case o.CreatedAtRaw != nil:
		e.at, e.timed = *o.CreatedAtRaw, true
		o.CreatedAt = r.normalizer.Format(e.at)
	case o.CreatedAt != "":
		if t, ok := r.normalizer.Parse(o.CreatedAt); ok {
			e.at, e.timed = t, true
			at := t
			o.CreatedAtRaw = &at
		}
	}
	e.order = o
	return e
}

// Signature is the dedup key: phone, address, total and customer name as
// text. A zero total contributes empty text. strict adds product name and
// quantity.
func Signature(o orders.Order, strict bool) string {
	total := ""
	if !o.Total.IsZero() {
		total = o.Total.String()
	}
	parts := []string{o.Phone, o.Address, total, o.CustomerName}
	if strict {
		parts = append(parts, o.ProductName, strconv.Itoa(o.Quantity))
	}
	return strings.Join(parts, "|")
}
