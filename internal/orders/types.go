package orders

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the fulfilment state of an order.
type Status string

// Order statuses
const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// ParseStatus maps stored status text onto a Status. Anything that is not
// "completed" is treated as pending.
func ParseStatus(s string) Status {
	if strings.EqualFold(strings.TrimSpace(s), string(StatusCompleted)) {
		return StatusCompleted
	}
	return StatusPending
}

var (
	// ErrNotFound is returned when no order carries the requested id.
	ErrNotFound = errors.New("order not found")
	// ErrUnavailable is returned when a store is not configured or cannot be reached.
	ErrUnavailable = errors.New("order store unavailable")
	// ErrAlreadyExists is returned by Create when the id is taken.
	ErrAlreadyExists = errors.New("order already exists")
)

// Order is the unified record shown to administrators.
type Order struct {
	ID           string          `json:"id"`
	CustomerName string          `json:"customerName"`
	Phone        string          `json:"phone"`
	Address      string          `json:"address"`
	ProductName  string          `json:"productName"`
	Price        decimal.Decimal `json:"price"`
	Shipping     decimal.Decimal `json:"shipping"`
	Total        decimal.Decimal `json:"total"`
	Quantity     int             `json:"quantity"`
	Area         string          `json:"area"`
	Status       Status          `json:"status"`
	CreatedAt    string          `json:"createdAt"`
	CreatedAtRaw *time.Time      `json:"createdAtRaw"`
	GeneratedKey string          `json:"generatedKey,omitempty"`
	DisplayID    int             `json:"displayId"`
}

// Store is the read/write surface shared by the structured and flat-file stores.
type Store interface {
	ListAll(ctx context.Context) ([]Order, error)
	FindByID(ctx context.Context, id string) (*Order, error)
	UpdateStatus(ctx context.Context, id string, status Status) (*Order, error)
	Delete(ctx context.Context, id string) error
	Name() string
}

var numericID = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// CanonicalID returns the text form used to compare ids across stores.
// Numeric ids collapse to their minimal decimal text ("007" and "7.0" become
// "7"); everything else is only trimmed.
func CanonicalID(id string) string {
	id = strings.TrimSpace(id)
	if !numericID.MatchString(id) {
		return id
	}
	d, err := decimal.NewFromString(id)
	if err != nil {
		return id
	}
	return d.String()
}

// storedAlias returns the stored id that lists as id when the two differ only
// in numeric spelling ("007" lists as "7"). Callers retry an exact-match miss
// with it.
func storedAlias(candidates []string, id string) (string, bool) {
	if !numericID.MatchString(strings.TrimSpace(id)) {
		return "", false
	}
	want := CanonicalID(id)
	for _, c := range candidates {
		if c != id && CanonicalID(c) == want {
			return c, true
		}
	}
	return "", false
}
