package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"bookstore-service/internal/models"
	"bookstore-service/internal/razorpay"
	"bookstore-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// amountEpsilon bounds the allowed deviation between the claimed cart
// total and the server-side computed total
const amountEpsilon = 0.01

// PaymentStore persists orders and prices carts for checkout
type PaymentStore interface {
	GetBookByID(ctx context.Context, id int64) (*models.Book, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	UpdateOrderPayment(ctx context.Context, orderID int64, paymentDetails, orderStatus, timeline string) error
}

// StockMutator reserves and releases book stock
type StockMutator interface {
	DeductStock(ctx context.Context, bookID int64, quantity int) error
	RestoreStock(ctx context.Context, bookID int64, quantity int) error
}

// PaymentGateway is the hosted-checkout provider
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount float64, currency, receipt string, notes map[string]string) (*razorpay.Order, error)
	VerifySignature(orderID, paymentID, signature string) bool
	KeyID() string
}

// PaymentEvents publishes payment lifecycle events
type PaymentEvents interface {
	PublishPaymentConfirmed(ctx context.Context, event *models.PaymentConfirmedEvent) error
	PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error
}

// PaymentService drives hosted-checkout payments: order creation with the
// provider and signature verification of the returned payment.
type PaymentService struct {
	store          PaymentStore
	inventory      StockMutator
	gateway        PaymentGateway
	eventPublisher PaymentEvents
	logger         *zap.Logger
}

// NewPaymentService creates a new payment service. gateway may be nil when
// the provider is not configured; payment endpoints then report service
// unavailable.
func NewPaymentService(
	store PaymentStore,
	inventory StockMutator,
	gateway PaymentGateway,
	eventPublisher PaymentEvents,
) *PaymentService {
	return &PaymentService{
		store:          store,
		inventory:      inventory,
		gateway:        gateway,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// PaymentItemRequest is one cart line submitted for checkout
type PaymentItemRequest struct {
	BookID   int64 `json:"bookId" binding:"required"`
	Quantity int   `json:"quantity" binding:"required,min=1"`
}

// CreatePaymentOrderRequest opens a hosted checkout for a cart
type CreatePaymentOrderRequest struct {
	Amount          float64              `json:"amount" binding:"required"`
	Currency        string               `json:"currency"`
	Items           []PaymentItemRequest `json:"items" binding:"required,min=1"`
	ShippingAddress json.RawMessage      `json:"shippingAddress" binding:"required"`
}

// CreatePaymentOrderResponse returns both the local order and the
// provider's checkout order
type CreatePaymentOrderResponse struct {
	Order struct {
		ID          int64   `json:"id"`
		OrderNumber string  `json:"orderNumber"`
		Total       float64 `json:"total"`
	} `json:"order"`
	RazorpayOrder struct {
		ID       string `json:"id"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	} `json:"razorpayOrder"`
	RazorpayKeyID string `json:"razorpayKeyId"`
}

// CreatePaymentOrder re-prices the cart server-side, validates stock and
// the claimed total, opens a checkout order with the provider, and
// persists a pending local order. Stock is deducted here, at order
// placement, and never again at verification.
func (ps *PaymentService) CreatePaymentOrder(ctx context.Context, userID string, req *CreatePaymentOrderRequest) (*CreatePaymentOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.CreatePaymentOrder")
	defer span.End()

	if ps.gateway == nil {
		return nil, ErrPaymentUnavailable
	}

	util.PaymentAttemptsTotal.Inc()
	start := time.Now()
	defer func() {
		util.PaymentProcessingLatency.Observe(time.Since(start).Seconds())
	}()

	var calculatedTotal float64
	orderItems := make([]models.OrderItem, 0, len(req.Items))

	for _, item := range req.Items {
		book, err := ps.store.GetBookByID(ctx, item.BookID)
		if err != nil {
			return nil, Validationf("Book with ID %d not found", item.BookID)
		}

		if !book.InStock || book.StockCount < item.Quantity {
			return nil, Validationf("Insufficient stock for %s", book.Title)
		}

		calculatedTotal += book.Price * float64(item.Quantity)
		orderItems = append(orderItems, models.OrderItem{
			BookID:   book.ID,
			Quantity: item.Quantity,
			Price:    book.Price,
			Title:    book.Title,
			Author:   book.Author,
			Image:    book.Image,
		})
	}

	if math.Abs(req.Amount-calculatedTotal) > amountEpsilon {
		return nil, Validationf("Amount mismatch")
	}

	currency := req.Currency
	if currency == "" {
		currency = "INR"
	}

	receipt := fmt.Sprintf("order_%d_%s", time.Now().UnixMilli(), userID)
	providerOrder, err := ps.gateway.CreateOrder(ctx, req.Amount, currency, receipt,
		map[string]string{"userId": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to create payment order: %w", err)
	}

	itemsJSON, _ := json.Marshal(orderItems)
	summaryJSON, _ := json.Marshal(models.OrderSummary{
		Subtotal: calculatedTotal,
		Total:    calculatedTotal,
	})
	paymentJSON, _ := json.Marshal(models.PaymentDetails{
		Method:          "razorpay",
		RazorpayOrderID: providerOrder.ID,
		Status:          models.PaymentStatusPending,
	})
	timelineJSON, _ := json.Marshal([]models.TimelineEntry{{
		Status:    models.OrderStatusPending,
		Message:   "Order created, awaiting payment",
		Timestamp: time.Now(),
	}})

	order := &models.Order{
		OrderNumber:     GenerateOrderNumber(),
		UserID:          userID,
		Items:           string(itemsJSON),
		ShippingAddress: string(req.ShippingAddress),
		BillingAddress:  string(req.ShippingAddress),
		OrderSummary:    string(summaryJSON),
		PaymentDetails:  string(paymentJSON),
		OrderStatus:     models.OrderStatusPending,
		Timeline:        string(timelineJSON),
	}

	if err := ps.store.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	for _, item := range orderItems {
		if err := ps.inventory.DeductStock(ctx, item.BookID, item.Quantity); err != nil {
			util.StockUpdatesFailedTotal.WithLabelValues("deduct").Inc()
			ps.logger.Error("Failed to update book stock",
				zap.Int64("order_id", order.ID),
				zap.Int64("book_id", item.BookID),
				zap.Error(err))
		}
	}

	ps.logger.Info("Payment order created",
		zap.Int64("order_id", order.ID),
		zap.String("razorpay_order_id", providerOrder.ID))

	resp := &CreatePaymentOrderResponse{RazorpayKeyID: ps.gateway.KeyID()}
	resp.Order.ID = order.ID
	resp.Order.OrderNumber = order.OrderNumber
	resp.Order.Total = calculatedTotal
	resp.RazorpayOrder.ID = providerOrder.ID
	resp.RazorpayOrder.Amount = providerOrder.Amount
	resp.RazorpayOrder.Currency = providerOrder.Currency
	return resp, nil
}

// VerifyPaymentRequest carries the provider's checkout result
type VerifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id" binding:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" binding:"required"`
	RazorpaySignature string `json:"razorpay_signature" binding:"required"`
	OrderID           int64  `json:"orderId" binding:"required"`
}

// VerifyPaymentResult reports a confirmed payment
type VerifyPaymentResult struct {
	OrderID     int64   `json:"id"`
	OrderNumber string  `json:"orderNumber"`
	Status      string  `json:"status"`
	Total       float64 `json:"total"`
	PaidAt      string  `json:"paidAt"`
}

// VerifyPayment checks that the provider order id belongs to this order
// and that the checkout signature verifies. A failure records the failed
// payment and appends one timeline entry without mutating stock or the
// order status here; the published PaymentFailed event triggers the
// reservation release downstream. A match confirms the order. Either way
// exactly one timeline entry is appended.
func (ps *PaymentService) VerifyPayment(ctx context.Context, req *VerifyPaymentRequest) (*VerifyPaymentResult, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.VerifyPayment")
	defer span.End()

	if ps.gateway == nil {
		return nil, ErrPaymentUnavailable
	}

	order, err := ps.store.GetOrderByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	var details models.PaymentDetails
	if err := json.Unmarshal([]byte(order.PaymentDetails), &details); err != nil {
		details = models.PaymentDetails{Method: "razorpay"}
	}

	timeline := ParseTimeline(order.Timeline)

	// The provider order id must be the one issued for this order at
	// checkout; a valid signature for some other checkout must not
	// confirm this order.
	verified := details.RazorpayOrderID == req.RazorpayOrderID &&
		ps.gateway.VerifySignature(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature)

	if !verified {
		details.Status = models.PaymentStatusFailed
		if details.RazorpayOrderID != req.RazorpayOrderID {
			details.FailureReason = "Order mismatch"
		} else {
			details.FailureReason = "Invalid signature"
		}

		timeline = append(timeline, models.TimelineEntry{
			Status:    "failed",
			Message:   "Payment verification failed",
			Timestamp: time.Now(),
		})

		detailsJSON, _ := json.Marshal(details)
		timelineJSON, _ := json.Marshal(timeline)
		if err := ps.store.UpdateOrderPayment(ctx, order.ID, string(detailsJSON), order.OrderStatus, string(timelineJSON)); err != nil {
			return nil, fmt.Errorf("failed to record failed payment: %w", err)
		}

		util.PaymentFailedTotal.Inc()
		ps.logger.Warn("Payment verification failed",
			zap.Int64("order_id", order.ID),
			zap.String("razorpay_order_id", req.RazorpayOrderID))

		if ps.eventPublisher != nil {
			var items []models.OrderItem
			_ = json.Unmarshal([]byte(order.Items), &items)

			event := &models.PaymentFailedEvent{
				BaseEvent: models.BaseEvent{
					EventID:   uuid.New().String(),
					EventType: models.EventTypePaymentFailed,
					Timestamp: time.Now(),
				},
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				Reason:      "verification_failed",
				Items:       items,
			}
			if err := ps.eventPublisher.PublishPaymentFailed(ctx, event); err != nil {
				ps.logger.Error("Failed to publish PaymentFailed event", zap.Error(err))
			}
		}

		return nil, ErrVerificationFailed
	}

	paidAt := time.Now().Format(time.RFC3339)
	details.Status = models.PaymentStatusPaid
	details.PaymentID = req.RazorpayPaymentID
	details.RazorpaySignature = req.RazorpaySignature
	details.PaidAt = paidAt

	timeline = append(timeline, models.TimelineEntry{
		Status:    models.OrderStatusConfirmed,
		Message:   "Payment confirmed, order processing",
		Timestamp: time.Now(),
	})

	detailsJSON, _ := json.Marshal(details)
	timelineJSON, _ := json.Marshal(timeline)
	if err := ps.store.UpdateOrderPayment(ctx, order.ID, string(detailsJSON), models.OrderStatusConfirmed, string(timelineJSON)); err != nil {
		return nil, fmt.Errorf("failed to record confirmed payment: %w", err)
	}

	util.PaymentSuccessTotal.Inc()
	ps.logger.Info("Payment verified",
		zap.Int64("order_id", order.ID),
		zap.String("payment_id", req.RazorpayPaymentID))

	var summary models.OrderSummary
	_ = json.Unmarshal([]byte(order.OrderSummary), &summary)

	if ps.eventPublisher != nil {
		var items []models.OrderItem
		_ = json.Unmarshal([]byte(order.Items), &items)

		event := &models.PaymentConfirmedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypePaymentConfirmed,
				Timestamp: time.Now(),
			},
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			PaymentID:   req.RazorpayPaymentID,
			Amount:      summary.Total,
			Items:       items,
		}
		if err := ps.eventPublisher.PublishPaymentConfirmed(ctx, event); err != nil {
			ps.logger.Error("Failed to publish PaymentConfirmed event", zap.Error(err))
		}
	}

	return &VerifyPaymentResult{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      models.OrderStatusConfirmed,
		Total:       summary.Total,
		PaidAt:      paidAt,
	}, nil
}

// KeyID exposes the provider's public key id for checkout clients
func (ps *PaymentService) KeyID() (string, error) {
	if ps.gateway == nil {
		return "", ErrPaymentUnavailable
	}
	return ps.gateway.KeyID(), nil
}
