package orders

import (
	"context"
	"fmt"

	"github.com/hasib2k/online-store/internal/aws"
	"github.com/hasib2k/online-store/internal/config"
)

// Writable is a structured store that also accepts new orders.
type Writable interface {
	Store
	Create(ctx context.Context, o Order) error
}

// OpenStructured builds the structured store cfg selects: SQL when a database
// URL is set, DynamoDB when an orders table is set. It returns (nil, nil, nil)
// when neither is configured. dynamo is only used for the DynamoDB backend.
// The returned close func is never nil.
//
// The SQL store connects and migrates on first use and retries on every call
// until that succeeds, so an unreachable database is not an error here.
func OpenStructured(cfg *config.Config, dynamo aws.DynamoDBAPI) (Writable, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StructuredBackend() {
	case "sql":
		if _, err := dialectorFor(cfg.Database.URL); err != nil {
			return nil, noop, err
		}
		store := NewReopeningStore("sql", openSQLStore(cfg.Database))
		return store, store.Close, nil
	case "dynamodb":
		if dynamo == nil {
			return nil, noop, fmt.Errorf("%w: dynamodb orders table configured without a client", ErrUnavailable)
		}
		return NewDynamoStore(dynamo, cfg.DynamoDB.OrdersTable), noop, nil
	default:
		return nil, noop, nil
	}
}

func openSQLStore(cfg config.DatabaseConfig) OpenFunc {
	return func(ctx context.Context) (Writable, func() error, error) {
		db, err := OpenSQL(cfg)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("get sql.DB: %w", err)
		}
		store := NewSQLStore(db)
		if err := store.AutoMigrate(); err != nil {
			_ = sqlDB.Close()
			return nil, nil, fmt.Errorf("migrate orders table: %w", err)
		}
		return store, sqlDB.Close, nil
	}
}
