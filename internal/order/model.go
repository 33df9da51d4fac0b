package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type Item struct {
	ProductID int64   `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

type Order struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	Items         []Item    `json:"items"`
	TotalPrice    float64   `json:"totalPrice"`
	Status        Status    `json:"status"`
	FailureReason string    `json:"failureReason,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Line is one requested product and quantity, before pricing.
type Line struct {
	ProductID int64 `json:"productId" validate:"gt=0"`
	Quantity  int   `json:"quantity" validate:"gt=0"`
}

// Total sums quantity times price over items, rounded to cents.
func Total(items []Item) float64 {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum.Round(2).InexactFloat64()
}

// amountTolerance absorbs float noise only; any sub-cent difference is a mismatch.
var amountTolerance = decimal.New(1, -6)

func sameAmount(a, b float64) bool {
	return decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Abs().LessThan(amountTolerance)
}

// WholeCents reports whether v has at most two decimals, ignoring float noise.
func WholeCents(v float64) bool {
	d := decimal.NewFromFloat(v)
	return d.Sub(d.Round(2)).Abs().LessThan(amountTolerance)
}
