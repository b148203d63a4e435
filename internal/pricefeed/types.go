package pricefeed

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnavailable means the provider returned no usable price for the coin.
var ErrUnavailable = errors.New("price unavailable")

// Quote is one fresh price reading for a coin. It is never persisted.
type Quote struct {
	Coin      string
	PriceUSD  decimal.Decimal
	Change24h *decimal.Decimal // nil when the provider omits it
	UpdatedAt time.Time        // zero when the provider omits it
}

// PricePoint is one sample of a historical price series.
type PricePoint struct {
	Time  time.Time
	Price decimal.Decimal
}
