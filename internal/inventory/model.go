package inventory

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

// Record is the public view of a ledger row.
type Record struct {
	ProductID int64 `json:"productId"`
	Available int   `json:"available"`
}

// InsufficientStockError is returned when a reservation exceeds availability.
type InsufficientStockError struct {
	ProductID int64
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("product %d: available %d, requested %d", e.ProductID, e.Available, e.Requested)
}

// Change is one ledger mutation requested by a message.
type Change struct {
	Consumer  string
	EventID   string
	OrderID   string
	ProductID int64
	Quantity  int
}

type Outcome int

const (
	// Applied means the ledger changed.
	Applied Outcome = iota
	// Duplicate means the event was already processed by this consumer.
	Duplicate
	// Fenced means the order's reservation for the product was already
	// released, so a late reservation is ignored.
	Fenced
	// NothingReserved means a rollback found no reservation to return.
	NothingReserved
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Duplicate:
		return "duplicate"
	case Fenced:
		return "fenced"
	case NothingReserved:
		return "nothing_reserved"
	}
	return "unknown"
}

type Result struct {
	Outcome   Outcome
	Available int
	Returned  int
}
