package settlement

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateInput creates a settlement from a captured order payment. FeeRate
// overrides the platform default when a store has a negotiated rate.
type CreateInput struct {
	StoreID     uint
	OrderID     string
	GrossAmount decimal.Decimal
	FeeRate     *decimal.Decimal
	Metadata    map[string]interface{}
}

// ListInput filters and pages a store's settlements.
type ListInput struct {
	StoreID uint
	Status  string
	From    *time.Time
	To      *time.Time
	Page    int
	Limit   int
}

// Config holds the service's tunables, injected at construction.
type Config struct {
	Currency        string
	BalanceCacheTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.Currency == "" {
		c.Currency = "KRW"
	}
	if c.BalanceCacheTTL == 0 {
		c.BalanceCacheTTL = 30 * time.Second
	}
	return c
}
