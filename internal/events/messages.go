package events

import "time"

const (
	InventoryQueue = "inventory.queue"
	OrdersQueue    = "orders.queue"
	PaymentsQueue  = "payments.queue"
	EmailQueue     = "email.queue"
)

const (
	TypeReserveStock      = "RESERVE_STOCK"
	TypeRollbackStock     = "ROLLBACK_STOCK"
	TypeOrderFailed       = "ORDER_FAILED"
	TypePaymentSuccess    = "PAYMENT_SUCCESS"
	TypePaymentFailed     = "PAYMENT_FAILED"
	TypeOrderConfirmation = "ORDER_CONFIRMATION"
)

type ReserveStock struct {
	OrderID   string `json:"orderId" validate:"required,uuid"`
	ProductID int64  `json:"productId" validate:"gt=0"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

// RollbackStock returns stock to the ledger. With OrderID set only what was
// reserved for that order is returned.
type RollbackStock struct {
	OrderID   string `json:"orderId,omitempty" validate:"omitempty,uuid"`
	ProductID int64  `json:"productId" validate:"gt=0"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

type OrderFailed struct {
	OrderID string `json:"orderId" validate:"required,uuid"`
	Reason  string `json:"reason"`
}

type PaymentSucceeded struct {
	OrderID  string  `json:"orderId" validate:"required,uuid"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type PaymentFailed struct {
	OrderID  string  `json:"orderId" validate:"required,uuid"`
	Reason   string  `json:"reason"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type OrderConfirmation struct {
	To           string       `json:"to" validate:"required,email"`
	OrderDetails OrderDetails `json:"orderDetails"`
}

type OrderDetails struct {
	OrderID    string             `json:"orderId" validate:"required,uuid"`
	OrderDate  time.Time          `json:"orderDate"`
	Items      []ConfirmationItem `json:"items"`
	TotalPrice float64            `json:"totalPrice"`
	Username   string             `json:"username"`
}

type ConfirmationItem struct {
	ProductID int64   `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}
