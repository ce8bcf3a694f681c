package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"bookstore-service/internal/models"
	"bookstore-service/internal/razorpay"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePaymentStore struct {
	books   map[int64]*models.Book
	orders  map[int64]*models.Order
	updates []paymentUpdate
	nextID  int64
}

type paymentUpdate struct {
	orderID  int64
	details  string
	status   string
	timeline string
}

func newFakePaymentStore() *fakePaymentStore {
	return &fakePaymentStore{
		books:  make(map[int64]*models.Book),
		orders: make(map[int64]*models.Order),
		nextID: 1000,
	}
}

func (f *fakePaymentStore) GetBookByID(_ context.Context, id int64) (*models.Book, error) {
	book, ok := f.books[id]
	if !ok {
		return nil, assert.AnError
	}
	return book, nil
}

func (f *fakePaymentStore) CreateOrder(_ context.Context, order *models.Order) error {
	f.nextID++
	order.ID = f.nextID
	f.orders[order.ID] = order
	return nil
}

func (f *fakePaymentStore) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, assert.AnError
	}
	return order, nil
}

func (f *fakePaymentStore) UpdateOrderPayment(_ context.Context, orderID int64, details, status, timeline string) error {
	f.updates = append(f.updates, paymentUpdate{orderID, details, status, timeline})
	return nil
}

type stockCall struct {
	bookID   int64
	quantity int
}

type fakeStock struct {
	deducts  []stockCall
	restores []stockCall
}

func (f *fakeStock) DeductStock(_ context.Context, bookID int64, quantity int) error {
	f.deducts = append(f.deducts, stockCall{bookID, quantity})
	return nil
}

func (f *fakeStock) RestoreStock(_ context.Context, bookID int64, quantity int) error {
	f.restores = append(f.restores, stockCall{bookID, quantity})
	return nil
}

type fakePaymentEvents struct {
	confirmed []*models.PaymentConfirmedEvent
	failed    []*models.PaymentFailedEvent
}

func (f *fakePaymentEvents) PublishPaymentConfirmed(_ context.Context, event *models.PaymentConfirmedEvent) error {
	f.confirmed = append(f.confirmed, event)
	return nil
}

func (f *fakePaymentEvents) PublishPaymentFailed(_ context.Context, event *models.PaymentFailedEvent) error {
	f.failed = append(f.failed, event)
	return nil
}

const gatewaySecret = "secret"

type fakeGateway struct {
	createdOrders []*razorpay.Order
}

func (f *fakeGateway) CreateOrder(_ context.Context, amount float64, currency, receipt string, _ map[string]string) (*razorpay.Order, error) {
	order := &razorpay.Order{
		ID:       "order_MkWvK2aBcDeFgH",
		Amount:   int64(amount*100 + 0.5),
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}
	f.createdOrders = append(f.createdOrders, order)
	return order, nil
}

func (f *fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return hmac.Equal([]byte(signFor(orderID, paymentID)), []byte(signature))
}

func (f *fakeGateway) KeyID() string { return "rzp_test_key" }

func signFor(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(gatewaySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func seedPendingOrder(store *fakePaymentStore, providerOrderID string) *models.Order {
	itemsJSON, _ := json.Marshal([]models.OrderItem{
		{BookID: 7, Quantity: 2, Price: 400, Title: "Mahaprasthanam"},
	})
	detailsJSON, _ := json.Marshal(models.PaymentDetails{
		Method:          "razorpay",
		RazorpayOrderID: providerOrderID,
		Status:          models.PaymentStatusPending,
	})
	summaryJSON, _ := json.Marshal(models.OrderSummary{Subtotal: 800, Total: 800})
	timelineJSON, _ := json.Marshal([]models.TimelineEntry{{
		Status:    models.OrderStatusPending,
		Message:   "Order created, awaiting payment",
		Timestamp: time.Now(),
	}})

	order := &models.Order{
		ID:             1,
		OrderNumber:    "ORD-1234567890-abc123def",
		UserID:         "user-1",
		Items:          string(itemsJSON),
		OrderSummary:   string(summaryJSON),
		PaymentDetails: string(detailsJSON),
		OrderStatus:    models.OrderStatusPending,
		Timeline:       string(timelineJSON),
	}
	store.orders[order.ID] = order
	return order
}

func newTestPaymentService(store *fakePaymentStore, stock *fakeStock, events *fakePaymentEvents) *PaymentService {
	return NewPaymentService(store, stock, &fakeGateway{}, events)
}

func TestVerifyPaymentTamperedSignature(t *testing.T) {
	store := newFakePaymentStore()
	stock := &fakeStock{}
	events := &fakePaymentEvents{}
	seedPendingOrder(store, "order_MkWvK2aBcDeFgH")
	ps := newTestPaymentService(store, stock, events)

	valid := signFor("order_MkWvK2aBcDeFgH", "pay_NqXyZ3dEfGhIjK")
	tampered := valid[:len(valid)-1] + "0"

	_, err := ps.VerifyPayment(context.Background(), &VerifyPaymentRequest{
		RazorpayOrderID:   "order_MkWvK2aBcDeFgH",
		RazorpayPaymentID: "pay_NqXyZ3dEfGhIjK",
		RazorpaySignature: tampered,
		OrderID:           1,
	})
	assert.ErrorIs(t, err, ErrVerificationFailed)

	// No stock mutation on this path; the release rides the failed event.
	assert.Empty(t, stock.deducts)
	assert.Empty(t, stock.restores)

	require.Len(t, store.updates, 1)
	update := store.updates[0]
	assert.Equal(t, models.OrderStatusPending, update.status)

	var details models.PaymentDetails
	require.NoError(t, json.Unmarshal([]byte(update.details), &details))
	assert.Equal(t, models.PaymentStatusFailed, details.Status)
	assert.Equal(t, "Invalid signature", details.FailureReason)

	timeline := ParseTimeline(update.timeline)
	require.Len(t, timeline, 2)
	assert.Equal(t, "failed", timeline[1].Status)
	assert.Equal(t, "Payment verification failed", timeline[1].Message)

	require.Len(t, events.failed, 1)
	assert.Equal(t, int64(1), events.failed[0].OrderID)
	require.Len(t, events.failed[0].Items, 1)
	assert.Equal(t, int64(7), events.failed[0].Items[0].BookID)
	assert.Equal(t, 2, events.failed[0].Items[0].Quantity)
	assert.Empty(t, events.confirmed)
}

func TestVerifyPaymentOrderMismatch(t *testing.T) {
	store := newFakePaymentStore()
	stock := &fakeStock{}
	events := &fakePaymentEvents{}
	seedPendingOrder(store, "order_MkWvK2aBcDeFgH")
	ps := newTestPaymentService(store, stock, events)

	// A genuine signature for a different checkout must not confirm
	// this order.
	_, err := ps.VerifyPayment(context.Background(), &VerifyPaymentRequest{
		RazorpayOrderID:   "order_CheapDecoy",
		RazorpayPaymentID: "pay_NqXyZ3dEfGhIjK",
		RazorpaySignature: signFor("order_CheapDecoy", "pay_NqXyZ3dEfGhIjK"),
		OrderID:           1,
	})
	assert.ErrorIs(t, err, ErrVerificationFailed)

	require.Len(t, store.updates, 1)
	assert.Equal(t, models.OrderStatusPending, store.updates[0].status)

	var details models.PaymentDetails
	require.NoError(t, json.Unmarshal([]byte(store.updates[0].details), &details))
	assert.Equal(t, models.PaymentStatusFailed, details.Status)
	assert.Equal(t, "Order mismatch", details.FailureReason)

	assert.Empty(t, stock.deducts)
	assert.Empty(t, stock.restores)
	require.Len(t, events.failed, 1)
}

func TestVerifyPaymentSuccess(t *testing.T) {
	store := newFakePaymentStore()
	stock := &fakeStock{}
	events := &fakePaymentEvents{}
	seedPendingOrder(store, "order_MkWvK2aBcDeFgH")
	ps := newTestPaymentService(store, stock, events)

	result, err := ps.VerifyPayment(context.Background(), &VerifyPaymentRequest{
		RazorpayOrderID:   "order_MkWvK2aBcDeFgH",
		RazorpayPaymentID: "pay_NqXyZ3dEfGhIjK",
		RazorpaySignature: signFor("order_MkWvK2aBcDeFgH", "pay_NqXyZ3dEfGhIjK"),
		OrderID:           1,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, result.Status)
	assert.Equal(t, 800.0, result.Total)

	require.Len(t, store.updates, 1)
	update := store.updates[0]
	assert.Equal(t, models.OrderStatusConfirmed, update.status)

	var details models.PaymentDetails
	require.NoError(t, json.Unmarshal([]byte(update.details), &details))
	assert.Equal(t, models.PaymentStatusPaid, details.Status)
	assert.Equal(t, "pay_NqXyZ3dEfGhIjK", details.PaymentID)
	assert.NotEmpty(t, details.PaidAt)

	timeline := ParseTimeline(update.timeline)
	require.Len(t, timeline, 2)
	assert.Equal(t, models.OrderStatusConfirmed, timeline[1].Status)

	// Confirmation commits the reservation; stock is not touched again.
	assert.Empty(t, stock.deducts)
	assert.Empty(t, stock.restores)
	require.Len(t, events.confirmed, 1)
	assert.Empty(t, events.failed)
}

func TestCreatePaymentOrderAmountMismatch(t *testing.T) {
	store := newFakePaymentStore()
	store.books[7] = &models.Book{ID: 7, Title: "Mahaprasthanam", Price: 400, InStock: true, StockCount: 5}
	ps := newTestPaymentService(store, &fakeStock{}, &fakePaymentEvents{})

	_, err := ps.CreatePaymentOrder(context.Background(), "user-1", &CreatePaymentOrderRequest{
		Amount:          700,
		Items:           []PaymentItemRequest{{BookID: 7, Quantity: 2}},
		ShippingAddress: json.RawMessage(`{"city":"Hyderabad"}`),
	})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Equal(t, "Amount mismatch", err.Error())
}

func TestCreatePaymentOrderInsufficientStock(t *testing.T) {
	store := newFakePaymentStore()
	store.books[7] = &models.Book{ID: 7, Title: "Mahaprasthanam", Price: 400, InStock: true, StockCount: 1}
	ps := newTestPaymentService(store, &fakeStock{}, &fakePaymentEvents{})

	_, err := ps.CreatePaymentOrder(context.Background(), "user-1", &CreatePaymentOrderRequest{
		Amount:          800,
		Items:           []PaymentItemRequest{{BookID: 7, Quantity: 2}},
		ShippingAddress: json.RawMessage(`{"city":"Hyderabad"}`),
	})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Equal(t, "Insufficient stock for Mahaprasthanam", err.Error())
}

func TestCreatePaymentOrderReservesStockOnce(t *testing.T) {
	store := newFakePaymentStore()
	store.books[7] = &models.Book{ID: 7, Title: "Mahaprasthanam", Price: 400, InStock: true, StockCount: 5}
	stock := &fakeStock{}
	ps := newTestPaymentService(store, stock, &fakePaymentEvents{})

	resp, err := ps.CreatePaymentOrder(context.Background(), "user-1", &CreatePaymentOrderRequest{
		Amount:          800,
		Items:           []PaymentItemRequest{{BookID: 7, Quantity: 2}},
		ShippingAddress: json.RawMessage(`{"city":"Hyderabad"}`),
	})
	require.NoError(t, err)

	assert.Equal(t, "order_MkWvK2aBcDeFgH", resp.RazorpayOrder.ID)
	assert.Equal(t, int64(80000), resp.RazorpayOrder.Amount)
	assert.Equal(t, "rzp_test_key", resp.RazorpayKeyID)
	assert.Equal(t, 800.0, resp.Order.Total)

	require.Len(t, stock.deducts, 1)
	assert.Equal(t, stockCall{bookID: 7, quantity: 2}, stock.deducts[0])
	assert.Empty(t, stock.restores)

	order := store.orders[resp.Order.ID]
	require.NotNil(t, order)
	assert.Equal(t, models.OrderStatusPending, order.OrderStatus)
}

func TestPaymentServiceUnavailable(t *testing.T) {
	ps := NewPaymentService(newFakePaymentStore(), &fakeStock{}, nil, &fakePaymentEvents{})

	_, err := ps.CreatePaymentOrder(context.Background(), "user-1", &CreatePaymentOrderRequest{
		Amount: 100,
		Items:  []PaymentItemRequest{{BookID: 1, Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrPaymentUnavailable)

	_, err = ps.VerifyPayment(context.Background(), &VerifyPaymentRequest{OrderID: 1})
	assert.ErrorIs(t, err, ErrPaymentUnavailable)

	_, err = ps.KeyID()
	assert.ErrorIs(t, err, ErrPaymentUnavailable)
}
