package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"bookstore-service/internal/broker"
	"bookstore-service/internal/models"
	"bookstore-service/internal/store"
	"bookstore-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// statusMessages maps order statuses to the human-readable timeline
// messages shown to customers
var statusMessages = map[string]string{
	models.OrderStatusPending:    "Order is being processed",
	models.OrderStatusConfirmed:  "Order confirmed and being prepared",
	models.OrderStatusProcessing: "Order is being prepared for shipment",
	models.OrderStatusShipped:    "Order has been shipped",
	models.OrderStatusDelivered:  "Order has been delivered",
	models.OrderStatusCancelled:  "Order has been cancelled",
	models.OrderStatusRefunded:   "Order has been refunded",
}

// StatusMessage returns the timeline message for a status, falling back
// to a generic message for unrecognized statuses
func StatusMessage(status string) string {
	if msg, ok := statusMessages[status]; ok {
		return msg
	}
	return "Status updated"
}

// OrderService handles order lifecycle business logic
type OrderService struct {
	store          *store.Store
	inventory      *InventoryClient
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	store *store.Store,
	inventory *InventoryClient,
	eventPublisher *broker.EventPublisher,
) *OrderService {
	return &OrderService{
		store:          store,
		inventory:      inventory,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// CreateOrderRequest represents a request to place an order
type CreateOrderRequest struct {
	Items           []models.OrderItem    `json:"items" binding:"required,min=1"`
	ShippingAddress json.RawMessage       `json:"shippingAddress" binding:"required"`
	BillingAddress  json.RawMessage       `json:"billingAddress"`
	OrderSummary    models.OrderSummary   `json:"orderSummary"`
	PaymentDetails  models.PaymentDetails `json:"paymentDetails"`
	IsGift          bool                  `json:"isGift"`
	GiftMessage     string                `json:"giftMessage"`
	CustomerNotes   string                `json:"customerNotes"`
}

// CreateOrder places an order: persists it with a generated order number
// and a one-entry timeline, then best-effort deducts stock per line item.
// Stock failures are logged, never propagated; the order stands.
func (os *OrderService) CreateOrder(ctx context.Context, userID string, req *CreateOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	billing := req.BillingAddress
	if len(billing) == 0 {
		billing = req.ShippingAddress
	}

	itemsJSON, err := json.Marshal(req.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize order items: %w", err)
	}
	summaryJSON, _ := json.Marshal(req.OrderSummary)
	paymentJSON, _ := json.Marshal(req.PaymentDetails)
	timelineJSON, _ := json.Marshal([]models.TimelineEntry{{
		Status:    models.OrderStatusPending,
		Message:   "Order placed successfully",
		Timestamp: time.Now(),
	}})

	order := &models.Order{
		OrderNumber:     GenerateOrderNumber(),
		UserID:          userID,
		Items:           string(itemsJSON),
		ShippingAddress: string(req.ShippingAddress),
		BillingAddress:  string(billing),
		OrderSummary:    string(summaryJSON),
		PaymentDetails:  string(paymentJSON),
		OrderStatus:     models.OrderStatusPending,
		Timeline:        string(timelineJSON),
		IsGift:          req.IsGift,
		GiftMessage:     req.GiftMessage,
		CustomerNotes:   req.CustomerNotes,
	}

	if err := os.store.CreateOrder(ctx, order); err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.Inc()
	os.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber))

	for _, item := range req.Items {
		if err := os.inventory.DeductStock(ctx, item.BookID, item.Quantity); err != nil {
			util.StockUpdatesFailedTotal.WithLabelValues("deduct").Inc()
			os.logger.Error("Failed to update book stock",
				zap.Int64("order_id", order.ID),
				zap.Int64("book_id", item.BookID),
				zap.Error(err))
		}
	}

	if os.eventPublisher != nil {
		event := &models.OrderCreatedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderCreated,
				Timestamp: time.Now(),
			},
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			UserID:      userID,
			Total:       req.OrderSummary.Total,
			Items:       req.Items,
		}
		if err := os.eventPublisher.PublishOrderCreated(ctx, event); err != nil {
			os.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
		}
	}

	return order, nil
}

// GetOrder retrieves an order, denying access when the caller neither owns
// it nor has admin access
func (os *OrderService) GetOrder(ctx context.Context, orderID int64, userID string, admin bool) (*models.Order, error) {
	order, err := os.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.UserID != userID && !admin {
		return nil, ErrUnauthorized
	}
	return order, nil
}

// GetUserOrders lists a user's orders, newest first
func (os *OrderService) GetUserOrders(ctx context.Context, userID, status string, limit, offset int) ([]models.Order, int, error) {
	return os.store.GetOrdersByUserID(ctx, userID, status, limit, offset)
}

// GetAllOrders lists orders across users (admin)
func (os *OrderService) GetAllOrders(ctx context.Context, status string, limit, offset int) ([]models.Order, int, error) {
	return os.store.GetAllOrders(ctx, status, limit, offset)
}

// UpdateStatus appends a timeline entry for the new status and persists
// it. Cancelling or refunding an order returns its units to stock.
func (os *OrderService) UpdateStatus(ctx context.Context, orderID int64, status, adminNotes string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus")
	defer span.End()

	order, err := os.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	timeline := ParseTimeline(order.Timeline)
	timeline = append(timeline, models.TimelineEntry{
		Status:     status,
		Message:    StatusMessage(status),
		Timestamp:  time.Now(),
		AdminNotes: adminNotes,
	})
	timelineJSON, _ := json.Marshal(timeline)

	if err := os.store.UpdateOrderStatus(ctx, orderID, status, string(timelineJSON), adminNotes); err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	util.OrderStatusUpdatesTotal.WithLabelValues(status).Inc()

	wasActive := order.OrderStatus != models.OrderStatusCancelled &&
		order.OrderStatus != models.OrderStatusRefunded
	if wasActive && (status == models.OrderStatusCancelled || status == models.OrderStatusRefunded) &&
		!paymentAlreadyFailed(order) {
		os.restoreOrderStock(ctx, order)
	}

	order.OrderStatus = status
	order.Timeline = string(timelineJSON)
	if adminNotes != "" {
		order.AdminNotes = adminNotes
	}
	return order, nil
}

// paymentAlreadyFailed reports whether the order's reservation was already
// released by the failed-payment path; cancelling such an order must not
// restore stock a second time.
func paymentAlreadyFailed(order *models.Order) bool {
	var details models.PaymentDetails
	if err := json.Unmarshal([]byte(order.PaymentDetails), &details); err != nil {
		return false
	}
	return details.Status == models.PaymentStatusFailed
}

func (os *OrderService) restoreOrderStock(ctx context.Context, order *models.Order) {
	var items []models.OrderItem
	if err := json.Unmarshal([]byte(order.Items), &items); err != nil {
		os.logger.Error("Failed to parse order items for stock restore",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
		return
	}

	for _, item := range items {
		if err := os.inventory.RestoreStock(ctx, item.BookID, item.Quantity); err != nil {
			util.StockUpdatesFailedTotal.WithLabelValues("restore").Inc()
			os.logger.Error("Failed to restore book stock",
				zap.Int64("order_id", order.ID),
				zap.Int64("book_id", item.BookID),
				zap.Error(err))
		}
	}
}

// TrackOrderResult is the tracking view of an order
type TrackOrderResult struct {
	OrderNumber string                 `json:"orderNumber"`
	Status      string                 `json:"status"`
	Timeline    []models.TimelineEntry `json:"timeline"`
}

// TrackOrder returns the order's current status and full timeline
func (os *OrderService) TrackOrder(ctx context.Context, orderID int64) (*TrackOrderResult, error) {
	order, err := os.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return &TrackOrderResult{
		OrderNumber: order.OrderNumber,
		Status:      order.OrderStatus,
		Timeline:    ParseTimeline(order.Timeline),
	}, nil
}

// UpdateOrderRequest carries owner-editable order fields
type UpdateOrderRequest struct {
	ShippingAddress json.RawMessage `json:"shippingAddress"`
	CustomerNotes   string          `json:"customerNotes"`
}

// UpdateOrder updates owner-editable fields after an ownership check
func (os *OrderService) UpdateOrder(ctx context.Context, orderID int64, userID string, req *UpdateOrderRequest) (*models.Order, error) {
	order, err := os.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrUnauthorized
	}

	if err := os.store.UpdateOrderFields(ctx, orderID, string(req.ShippingAddress), req.CustomerNotes); err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	return os.store.GetOrderByID(ctx, orderID)
}

// ParseTimeline decodes a stored timeline payload. Malformed JSON is
// treated as an empty timeline rather than a hard failure.
func ParseTimeline(raw string) []models.TimelineEntry {
	if raw == "" {
		return []models.TimelineEntry{}
	}
	var timeline []models.TimelineEntry
	if err := json.Unmarshal([]byte(raw), &timeline); err != nil {
		return []models.TimelineEntry{}
	}
	return timeline
}

const orderNumberAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateOrderNumber builds a human-readable order number from the
// current timestamp and random entropy
func GenerateOrderNumber() string {
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = orderNumberAlphabet[rand.Intn(len(orderNumberAlphabet))]
	}
	return fmt.Sprintf("ORD-%d-%s", time.Now().UnixMilli(), suffix)
}
