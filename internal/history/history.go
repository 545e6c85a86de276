// Package history folds price observations into a product's running price
// history and derives the aggregates used for price drop detection.
package history

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/maltedev/price-tracker/internal/models"
	"github.com/shopspring/decimal"
)

var ErrInvalidPrice = errors.New("price must be a finite number")

// Result is the outcome of merging one observation. History is a fresh slice
// owned by the caller.
type Result struct {
	History     []models.PricePoint `json:"price_history"`
	Lowest      float64             `json:"lowest_price"`
	Highest     float64             `json:"highest_price"`
	Average     float64             `json:"average_price"`
	IsPriceDrop bool                `json:"is_price_drop"`
}

// Aggregates over a price history.
type Aggregates struct {
	Lowest  float64
	Highest float64
	Average float64
}

// Merge appends the observation to a copy of history and recomputes the
// aggregates over the full sequence. A drop is flagged only against the most
// recent prior point, never against the running minimum. NaN and infinite
// prices, new or stored, fail with ErrInvalidPrice.
func Merge(history []models.PricePoint, price float64, observedAt time.Time) (Result, error) {
	if !finite(price) {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidPrice, price)
	}

	merged := make([]models.PricePoint, len(history), len(history)+1)
	copy(merged, history)
	merged = append(merged, models.PricePoint{Price: price, ObservedAt: observedAt})

	agg, ok := Stats(merged)
	if !ok {
		return Result{}, fmt.Errorf("%w: history holds a non-finite point", ErrInvalidPrice)
	}

	drop := false
	if len(history) > 0 {
		drop = price < history[len(history)-1].Price
	}

	return Result{
		History:     merged,
		Lowest:      agg.Lowest,
		Highest:     agg.Highest,
		Average:     agg.Average,
		IsPriceDrop: drop,
	}, nil
}

// Stats computes lowest, highest and mean price. It reports false for an
// empty history or one holding a NaN or infinite price.
func Stats(history []models.PricePoint) (Aggregates, bool) {
	if len(history) == 0 {
		return Aggregates{}, false
	}

	agg := Aggregates{Lowest: history[0].Price, Highest: history[0].Price}
	sum := decimal.Zero
	for _, p := range history {
		if !finite(p.Price) {
			return Aggregates{}, false
		}
		agg.Lowest = min(agg.Lowest, p.Price)
		agg.Highest = max(agg.Highest, p.Price)
		sum = sum.Add(decimal.NewFromFloat(p.Price))
	}
	agg.Average = sum.Div(decimal.NewFromInt(int64(len(history)))).InexactFloat64()
	return agg, true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
