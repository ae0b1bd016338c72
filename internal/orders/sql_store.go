package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hasib2k/online-store/internal/config"
)

// orderModel is the orders table row.
type orderModel struct {
	ID           string          `gorm:"type:varchar(64);primaryKey"`
	CustomerName string          `gorm:"type:varchar(200);not null;default:''"`
	Phone        string          `gorm:"type:varchar(50);not null;default:'';index"`
	Address      string          `gorm:"type:text;not null;default:''"`
	ProductName  string          `gorm:"type:varchar(200);not null;default:''"`
	Price        decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Shipping     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Total        decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Quantity     int             `gorm:"not null;default:1"`
	Area         string          `gorm:"type:varchar(50);not null;default:''"`
	Status       string          `gorm:"type:varchar(20);not null;default:'pending'"`
	GeneratedKey string          `gorm:"type:varchar(32);not null;default:''"`
	CreatedAt    time.Time       `gorm:"not null;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"not null;autoUpdateTime"`
}

// TableName returns the table name for GORM
func (orderModel) TableName() string { return "orders" }

func (m orderModel) toOrder() Order {
	created := m.CreatedAt
	o := Order{
		ID:           m.ID,
		CustomerName: m.CustomerName,
		Phone:        m.Phone,
		Address:      m.Address,
		ProductName:  m.ProductName,
		Price:        m.Price,
		Shipping:     m.Shipping,
		Total:        m.Total,
		Quantity:     m.Quantity,
		Area:         m.Area,
		Status:       ParseStatus(m.Status),
		GeneratedKey: m.GeneratedKey,
	}
	if !created.IsZero() {
		o.CreatedAtRaw = &created
	}
	return o
}

// SQLStore is the structured order store backed by a relational database.
type SQLStore struct {
	db      *gorm.DB
	nowFunc func() time.Time
}

// NewSQLStore wraps an open gorm connection.
func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db, nowFunc: time.Now}
}

// OpenSQL opens the database named by cfg.URL. postgres:// and postgresql://
// URLs use the postgres driver; sqlite://, file: and *.db use SQLite.
func OpenSQL(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg.URL)
	if err != nil {
		return nil, err
	}

	level := logger.Silent
	if cfg.LogQueries {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.Default.LogMode(level),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to database: %v", ErrUnavailable, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)

	return db, nil
}

func dialectorFor(url string) (gorm.Dialector, error) {
	switch {
	case url == "":
		return nil, fmt.Errorf("%w: database url is empty", ErrUnavailable)
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return postgres.Open(url), nil
	case strings.HasPrefix(url, "sqlite://"):
		return sqlite.Open(strings.TrimPrefix(url, "sqlite://")), nil
	case strings.HasPrefix(url, "file:"), strings.HasSuffix(url, ".db"):
		return sqlite.Open(url), nil
	default:
		return nil, fmt.Errorf("unsupported database url scheme: %q", url)
	}
}

// AutoMigrate creates or updates the orders table.
func (s *SQLStore) AutoMigrate() error {
	return s.db.AutoMigrate(&orderModel{})
}

func (s *SQLStore) Name() string { return "sql" }

// ListAll returns every row, newest first.
func (s *SQLStore) ListAll(ctx context.Context) ([]Order, error) {
	var rows []orderModel
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	out := make([]Order, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toOrder())
	}
	return out, nil
}

// FindByID returns the row with the given id, or the row whose id is a
// different spelling of the same number.
func (s *SQLStore) FindByID(ctx context.Context, id string) (*Order, error) {
	o, err := s.findByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		if alias, ok := s.alias(ctx, id); ok {
			return s.findByID(ctx, alias)
		}
	}
	return o, err
}

func (s *SQLStore) findByID(ctx context.Context, id string) (*Order, error) {
	var row orderModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find order: %w", err)
	}
	o := row.toOrder()
	return &o, nil
}

// UpdateStatus sets the status of an existing row and returns the updated order.
func (s *SQLStore) UpdateStatus(ctx context.Context, id string, status Status) (*Order, error) {
	o, err := s.updateStatus(ctx, id, status)
	if errors.Is(err, ErrNotFound) {
		if alias, ok := s.alias(ctx, id); ok {
			return s.updateStatus(ctx, alias, status)
		}
	}
	return o, err
}

func (s *SQLStore) updateStatus(ctx context.Context, id string, status Status) (*Order, error) {
	res := s.db.WithContext(ctx).Model(&orderModel{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": string(status), "updated_at": s.nowFunc()})
	if res.Error != nil {
		return nil, fmt.Errorf("update order status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.findByID(ctx, id)
}

// Delete removes an existing row.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	err := s.delete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		if alias, ok := s.alias(ctx, id); ok {
			return s.delete(ctx, alias)
		}
	}
	return err
}

func (s *SQLStore) delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&orderModel{})
	if res.Error != nil {
		return fmt.Errorf("delete order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// alias looks for a stored id spelling the same number as id. The canonical
// form is always a substring of the stored text, which narrows the scan.
func (s *SQLStore) alias(ctx context.Context, id string) (string, bool) {
	if !numericID.MatchString(id) {
		return "", false
	}
	var ids []string
	err := s.db.WithContext(ctx).Model(&orderModel{}).
		Where("id LIKE ?", "%"+CanonicalID(id)+"%").
		Pluck("id", &ids).Error
	if err != nil {
		return "", false
	}
	return storedAlias(ids, id)
}

// Create inserts a new row. A nil CreatedAtRaw lets the database stamp the row.
func (s *SQLStore) Create(ctx context.Context, o Order) error {
	row := orderModel{
		ID:           o.ID,
		CustomerName: o.CustomerName,
		Phone:        o.Phone,
		Address:      o.Address,
		ProductName:  o.ProductName,
		Price:        o.Price,
		Shipping:     o.Shipping,
		Total:        o.Total,
		Quantity:     o.Quantity,
		Area:         o.Area,
		Status:       string(ParseStatus(string(o.Status))),
		GeneratedKey: o.GeneratedKey,
	}
	if o.CreatedAtRaw != nil {
		row.CreatedAt = *o.CreatedAtRaw
	}
	if row.Quantity == 0 {
		row.Quantity = 1
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&orderModel{}).Where("id = ?", o.ID).Count(&existing).Error; err != nil {
		return fmt.Errorf("check order id: %w", err)
	}
	if existing > 0 {
		return ErrAlreadyExists
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}
