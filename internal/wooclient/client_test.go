package wooclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCreds(siteURL string) Credentials {
	return Credentials{
		SiteURL:        siteURL,
		ConsumerKey:    "ck_test",
		ConsumerSecret: "cs_test",
	}
}

func TestTestConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wc/v3/products", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("per_page"))
		assert.Equal(t, "ck_test", r.URL.Query().Get("consumer_key"))
		assert.Equal(t, "cs_test", r.URL.Query().Get("consumer_secret"))

		w.Header().Set("X-WP-Total", "156")
		json.NewEncoder(w).Encode([]Product{{ID: 1, Name: "Book"}})
	}))
	defer server.Close()

	client := NewClient(testCreds(server.URL), 50)

	total, err := client.TestConnection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 156, total)
}

func TestTestConnectionInvalidCredentials(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))

		client := NewClient(testCreds(server.URL), 50)
		_, err := client.TestConnection(context.Background())
		require.Error(t, err)
		assert.Equal(t, "Invalid API credentials", err.Error())

		server.Close()
	}
}

func TestTestConnectionMissingAPI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(testCreds(server.URL), 50)
	_, err := client.TestConnection(context.Background())
	require.Error(t, err)
	assert.Equal(t, "WooCommerce REST API not found. Please check the URL.", err.Error())
}

func TestListAllProductsPaginates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))

		w.Header().Set("X-WP-TotalPages", "3")
		json.NewEncoder(w).Encode([]Product{
			{ID: int64(page*10 + 1), Name: fmt.Sprintf("Book %d-1", page)},
			{ID: int64(page*10 + 2), Name: fmt.Sprintf("Book %d-2", page)},
		})
	}))
	defer server.Close()

	client := NewClient(testCreds(server.URL), 50)

	products, err := client.ListAllProducts(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 6)
	assert.Equal(t, int64(11), products[0].ID)
	assert.Equal(t, int64(32), products[5].ID)
}

func TestListAllProductsPageCeiling(t *testing.T) {
	var pagesServed int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pagesServed++
		// Misbehaving endpoint that always reports more pages.
		w.Header().Set("X-WP-TotalPages", "10000")
		json.NewEncoder(w).Encode([]Product{{ID: int64(pagesServed)}})
	}))
	defer server.Close()

	client := NewClient(testCreds(server.URL), 3)

	products, err := client.ListAllProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, pagesServed)
	assert.Len(t, products, 3)
}

func TestPageIterator(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		w.Header().Set("X-WP-TotalPages", "2")
		json.NewEncoder(w).Encode([]Product{{ID: int64(page)}})
	}))
	defer server.Close()

	client := NewClient(testCreds(server.URL), 50)
	it := client.Pages()

	first, ok, err := it.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), first[0].ID)

	second, ok, err := it.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), second[0].ID)

	_, ok, err = it.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListAllProductsMissingTotalPagesHeader(t *testing.T) {
	var pagesServed int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pagesServed++
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))

		// No X-WP-TotalPages header; pagination ends on a short page.
		count := 100
		if page == 3 {
			count = 40
		}
		products := make([]Product, count)
		for i := range products {
			products[i] = Product{ID: int64(page*1000 + i)}
		}
		json.NewEncoder(w).Encode(products)
	}))
	defer server.Close()

	client := NewClient(testCreds(server.URL), 50)

	products, err := client.ListAllProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, pagesServed)
	assert.Len(t, products, 240)
}

func TestListAllProductsSinglePage(t *testing.T) {
	var pagesServed int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pagesServed++
		w.Header().Set("X-WP-TotalPages", "1")
		json.NewEncoder(w).Encode([]Product{{ID: 1}})
	}))
	defer server.Close()

	client := NewClient(testCreds(server.URL), 50)

	products, err := client.ListAllProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, pagesServed)
	assert.Len(t, products, 1)
}

func TestGetProduct(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wc/v3/products/42", r.URL.Path)
		json.NewEncoder(w).Encode(Product{
			ID:           42,
			Name:         "Mahaprasthanam",
			RegularPrice: "500",
			SalePrice:    "400",
		})
	}))
	defer server.Close()

	client := NewClient(testCreds(server.URL), 50)

	product, err := client.GetProduct(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "Mahaprasthanam", product.Name)
	assert.Equal(t, "500", product.RegularPrice)
}

func TestSiteNotFound(t *testing.T) {
	client := NewClient(testCreds("http://definitely-not-a-real-store.invalid"), 50)

	_, err := client.TestConnection(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Site not found. Please check the URL.", err.Error())
}

func TestMetaStringValue(t *testing.T) {
	str := Meta{Key: "_author", Value: json.RawMessage(`"Sri Sri"`)}
	assert.Equal(t, "Sri Sri", str.StringValue())

	num := Meta{Key: "_pages", Value: json.RawMessage(`158`)}
	assert.Equal(t, "", num.StringValue())
}

func TestPreviewRef(t *testing.T) {
	qty := 3
	p := &Product{
		ID:            9,
		Name:          "Book",
		RegularPrice:  "250",
		StockStatus:   "instock",
		StockQuantity: &qty,
	}

	ref := p.PreviewRef()
	assert.Equal(t, int64(9), ref.ID)
	assert.Equal(t, "250", ref.Price)

	empty := &Product{ID: 10}
	assert.Equal(t, "0", empty.PreviewRef().Price)
}
