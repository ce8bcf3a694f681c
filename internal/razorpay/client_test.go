package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresCredentials(t *testing.T) {
	assert.Nil(t, NewClient("https://api.razorpay.com/v1", "", ""))
	assert.Nil(t, NewClient("https://api.razorpay.com/v1", "rzp_test_key", ""))
	assert.Nil(t, NewClient("https://api.razorpay.com/v1", "", "secret"))
	assert.NotNil(t, NewClient("https://api.razorpay.com/v1", "rzp_test_key", "secret"))
}

func TestVerifySignature(t *testing.T) {
	client := NewClient("https://api.razorpay.com/v1", "rzp_test_key", "secret")

	orderID := "order_MkWvK2aBcDeFgH"
	paymentID := "pay_NqXyZ3dEfGhIjK"

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte(orderID + "|" + paymentID))
	valid := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, client.VerifySignature(orderID, paymentID, valid))
	assert.False(t, client.VerifySignature(orderID, paymentID, valid[:len(valid)-1]+"0"))
	assert.False(t, client.VerifySignature(orderID, paymentID, ""))
	assert.False(t, client.VerifySignature(orderID, "pay_other", valid))
	assert.False(t, client.VerifySignature("order_other", paymentID, valid))
}

func TestCreateOrder(t *testing.T) {
	var captured createOrderRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "secret", pass)

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		json.NewEncoder(w).Encode(Order{
			ID:       "order_MkWvK2aBcDeFgH",
			Amount:   captured.Amount,
			Currency: captured.Currency,
			Receipt:  captured.Receipt,
			Status:   "created",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "rzp_test_key", "secret")

	order, err := client.CreateOrder(context.Background(), 499.50, "INR", "order_1234_user", nil)
	require.NoError(t, err)

	assert.Equal(t, "order_MkWvK2aBcDeFgH", order.ID)
	assert.Equal(t, int64(49950), captured.Amount)
	assert.Equal(t, "INR", captured.Currency)
	assert.Equal(t, "order_1234_user", captured.Receipt)
}

func TestCreateOrderUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"description":"Amount exceeds maximum"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "rzp_test_key", "secret")

	_, err := client.CreateOrder(context.Background(), 100000000, "INR", "r", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 400")
}

func TestKeyID(t *testing.T) {
	client := NewClient("https://api.razorpay.com/v1", "rzp_test_key", "secret")
	assert.Equal(t, "rzp_test_key", client.KeyID())
}
