package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bookstore-service/internal/importer"
	"bookstore-service/internal/models"
	"bookstore-service/internal/service"
	"bookstore-service/internal/util"
	"bookstore-service/internal/wooclient"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	catalogService *service.CatalogService
	orderService   *service.OrderService
	paymentService *service.PaymentService
	importService  *importer.Service
}

// NewHandler creates a new HTTP handler
func NewHandler(
	catalogService *service.CatalogService,
	orderService *service.OrderService,
	paymentService *service.PaymentService,
	importService *importer.Service,
) *Handler {
	return &Handler{
		catalogService: catalogService,
		orderService:   orderService,
		paymentService: paymentService,
		importService:  importService,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/books", h.listBooks)
		v1.GET("/books/search", h.searchBooks)
		v1.GET("/books/featured", h.featuredBooks)
		v1.GET("/books/bestsellers", h.bestsellers)
		v1.GET("/books/category/:category", h.booksByCategory)
		v1.GET("/books/:id", h.getBook)
		v1.POST("/books", h.createBook)
		v1.PUT("/books/:id", h.updateBook)
		v1.DELETE("/books/:id", h.deleteBook)

		v1.POST("/orders", h.createOrder)
		v1.GET("/orders", h.listUserOrders)
		v1.GET("/orders/admin", h.listAllOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.PUT("/orders/:id", h.updateOrder)
		v1.PUT("/orders/:id/status", h.updateOrderStatus)
		v1.GET("/orders/:id/track", h.trackOrder)

		v1.POST("/payments/create-order", h.createPaymentOrder)
		v1.POST("/payments/verify", h.verifyPayment)
		v1.GET("/payments/config", h.paymentConfig)

		v1.POST("/import/test-connection", h.importTestConnection)
		v1.POST("/import/fetch-products", h.importFetchProducts)
		v1.POST("/import/products", h.importProducts)
		v1.POST("/import/progress", h.importProgress)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondMessage(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, gin.H{"success": true, "message": message, "data": data})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

// respondServiceError maps service-layer failures onto the response
// envelope and status codes
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		respondError(c, http.StatusForbidden, "Unauthorized")
	case errors.Is(err, service.ErrPaymentUnavailable):
		respondError(c, http.StatusServiceUnavailable, "Payment service not available")
	case errors.Is(err, service.ErrVerificationFailed):
		respondError(c, http.StatusBadRequest, "Payment verification failed")
	case service.IsValidation(err):
		respondError(c, http.StatusBadRequest, err.Error())
	case strings.Contains(err.Error(), "not found"):
		respondError(c, http.StatusNotFound, err.Error())
	default:
		respondError(c, http.StatusInternalServerError, err.Error())
	}
}

func userID(c *gin.Context) string {
	return c.GetHeader("X-User-ID")
}

func isAdmin(c *gin.Context) bool {
	return c.GetHeader("X-Admin-Access") != ""
}

func intQuery(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	return v
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid ID")
		return 0, false
	}
	return id, true
}

// listBooks handles catalog listing with optional filters
func (h *Handler) listBooks(c *gin.Context) {
	filter := models.BookFilter{
		Category:   c.Query("category"),
		Search:     c.Query("search"),
		Featured:   c.Query("featured") == "true",
		Bestseller: c.Query("bestseller") == "true",
		NewArrival: c.Query("newArrival") == "true",
		Limit:      intQuery(c, "limit", 20),
		Offset:     intQuery(c, "offset", 0),
	}

	books, total, err := h.catalogService.ListBooks(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"books": books, "total": total})
}

func (h *Handler) searchBooks(c *gin.Context) {
	books, total, err := h.catalogService.SearchBooks(c.Request.Context(),
		c.Query("search"), intQuery(c, "limit", 20))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"books": books, "total": total})
}

func (h *Handler) featuredBooks(c *gin.Context) {
	books, err := h.catalogService.GetFeatured(c.Request.Context(), intQuery(c, "limit", 10))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"books": books})
}

func (h *Handler) bestsellers(c *gin.Context) {
	books, err := h.catalogService.GetBestsellers(c.Request.Context(), intQuery(c, "limit", 10))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"books": books})
}

func (h *Handler) booksByCategory(c *gin.Context) {
	books, total, err := h.catalogService.GetByCategory(c.Request.Context(),
		c.Param("category"), intQuery(c, "limit", 20), intQuery(c, "offset", 0))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"books": books, "total": total})
}

func (h *Handler) getBook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	book, err := h.catalogService.GetBook(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, book)
}

func (h *Handler) createBook(c *gin.Context) {
	var book models.Book
	if err := c.ShouldBindJSON(&book); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := h.catalogService.CreateBook(c.Request.Context(), &book); err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusCreated, book)
}

func (h *Handler) updateBook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var book models.Book
	if err := c.ShouldBindJSON(&book); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	book.ID = id

	if err := h.catalogService.UpdateBook(c.Request.Context(), &book); err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, book)
}

func (h *Handler) deleteBook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.catalogService.DeleteBook(c.Request.Context(), id); err != nil {
		respondServiceError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "Book deleted successfully", nil)
}

// createOrder handles order placement
func (h *Handler) createOrder(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		respondError(c, http.StatusBadRequest, "Missing user identity")
		return
	}

	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), uid, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusCreated, order)
}

func (h *Handler) listUserOrders(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		respondError(c, http.StatusBadRequest, "Missing user identity")
		return
	}

	orders, total, err := h.orderService.GetUserOrders(c.Request.Context(),
		uid, c.Query("status"), intQuery(c, "limit", 20), intQuery(c, "offset", 0))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"orders": orders, "total": total})
}

func (h *Handler) listAllOrders(c *gin.Context) {
	if !isAdmin(c) {
		respondError(c, http.StatusForbidden, "Unauthorized")
		return
	}

	orders, total, err := h.orderService.GetAllOrders(c.Request.Context(),
		c.Query("status"), intQuery(c, "limit", 20), intQuery(c, "offset", 0))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"orders": orders, "total": total})
}

func (h *Handler) getOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), id, userID(c), isAdmin(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, order)
}

func (h *Handler) updateOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req service.UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	order, err := h.orderService.UpdateOrder(c.Request.Context(), id, userID(c), &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, order)
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	if !isAdmin(c) {
		respondError(c, http.StatusForbidden, "Unauthorized")
		return
	}

	id, ok := pathID(c)
	if !ok {
		return
	}

	var req struct {
		Status     string `json:"status" binding:"required"`
		AdminNotes string `json:"adminNotes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	order, err := h.orderService.UpdateStatus(c.Request.Context(), id, req.Status, req.AdminNotes)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, order)
}

func (h *Handler) trackOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	result, err := h.orderService.TrackOrder(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, result)
}

// createPaymentOrder opens a hosted checkout for a cart
func (h *Handler) createPaymentOrder(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		respondError(c, http.StatusBadRequest, "Missing user identity")
		return
	}

	var req service.CreatePaymentOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	resp, err := h.paymentService.CreatePaymentOrder(c.Request.Context(), uid, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "Order created successfully", resp)
}

func (h *Handler) verifyPayment(c *gin.Context) {
	var req service.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.paymentService.VerifyPayment(c.Request.Context(), &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "Payment verified successfully", gin.H{"order": result})
}

func (h *Handler) paymentConfig(c *gin.Context) {
	keyID, err := h.paymentService.KeyID()
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"razorpayKeyId": keyID})
}

// importTestConnection probes the external store with caller credentials
func (h *Handler) importTestConnection(c *gin.Context) {
	var creds wooclient.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		respondError(c, http.StatusBadRequest, "Site URL, Consumer Key, and Consumer Secret are required")
		return
	}

	result, err := h.importService.TestConnection(c.Request.Context(), creds)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	respondMessage(c, http.StatusOK, "Connection successful", result)
}

func (h *Handler) importFetchProducts(c *gin.Context) {
	var creds wooclient.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		respondError(c, http.StatusBadRequest, "Site URL, Consumer Key, and Consumer Secret are required")
		return
	}

	products, err := h.importService.FetchProducts(c.Request.Context(), creds)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch products from WooCommerce")
		return
	}
	respondMessage(c, http.StatusOK,
		"Fetched "+strconv.Itoa(len(products))+" products",
		gin.H{"products": products, "total": len(products)})
}

func (h *Handler) importProducts(c *gin.Context) {
	var req struct {
		Config   wooclient.Credentials  `json:"config" binding:"required"`
		Products []wooclient.ProductRef `json:"products" binding:"required"`
		UserID   string                 `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	importID, err := h.importService.StartImport(c.Request.Context(), req.Config, req.Products, req.UserID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to start import process")
		return
	}
	respondMessage(c, http.StatusOK, "Import started",
		gin.H{"importId": importID, "total": len(req.Products)})
}

func (h *Handler) importProgress(c *gin.Context) {
	var req struct {
		ImportID string `json:"importId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	progress, err := h.importService.Progress(c.Request.Context(), req.ImportID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to get import progress")
		return
	}
	if progress == nil {
		respondError(c, http.StatusNotFound, "Import session not found")
		return
	}
	respondData(c, http.StatusOK, progress)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
