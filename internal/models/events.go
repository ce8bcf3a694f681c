package models

import "time"

// Event types
const (
	EventTypeOrderCreated     = "ORDER_CREATED"
	EventTypePaymentConfirmed = "PAYMENT_CONFIRMED"
	EventTypePaymentFailed    = "PAYMENT_FAILED"
	EventTypeImportCompleted  = "IMPORT_COMPLETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when an order is placed
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     int64       `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	UserID      string      `json:"user_id"`
	Total       float64     `json:"total"`
	Items       []OrderItem `json:"items"`
}

// PaymentConfirmedEvent published when a payment signature verifies
type PaymentConfirmedEvent struct {
	BaseEvent
	OrderID     int64       `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	PaymentID   string      `json:"payment_id"`
	Amount      float64     `json:"amount"`
	Items       []OrderItem `json:"items"`
}

// PaymentFailedEvent published when signature verification fails. Items
// carry the reserved quantities so consumers can release them without
// re-reading the order.
type PaymentFailedEvent struct {
	BaseEvent
	OrderID     int64       `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	Reason      string      `json:"reason"`
	Items       []OrderItem `json:"items"`
}

// ImportCompletedEvent published when an import session finishes its item list
type ImportCompletedEvent struct {
	BaseEvent
	ImportID  string  `json:"import_id"`
	Total     int     `json:"total"`
	Succeeded int     `json:"succeeded"`
	Failed    int     `json:"failed"`
	BookIDs   []int64 `json:"book_ids"`
}
