package models

import "time"

// Book represents a catalog entry for a Telugu-language book
type Book struct {
	ID                int64      `db:"id" json:"id"`
	Title             string     `db:"title" json:"title"`
	TitleTelugu       string     `db:"title_telugu" json:"titleTelugu"`
	Author            string     `db:"author" json:"author"`
	AuthorTelugu      string     `db:"author_telugu" json:"authorTelugu"`
	Publisher         string     `db:"publisher" json:"publisher"`
	PublisherTelugu   string     `db:"publisher_telugu" json:"publisherTelugu"`
	ISBN              string     `db:"isbn" json:"isbn"`
	Price             float64    `db:"price" json:"price"`
	OriginalPrice     float64    `db:"original_price" json:"originalPrice"`
	Discount          int        `db:"discount" json:"discount"`
	Description       string     `db:"description" json:"description"`
	DescriptionTelugu string     `db:"description_telugu" json:"descriptionTelugu"`
	Image             string     `db:"image" json:"image"`
	Images            string     `db:"images" json:"images"`
	Category          string     `db:"category" json:"category"`
	CategoryTelugu    string     `db:"category_telugu" json:"categoryTelugu"`
	Pages             int        `db:"pages" json:"pages"`
	Language          string     `db:"language" json:"language"`
	Dimensions        string     `db:"dimensions" json:"dimensions"`
	Weight            float64    `db:"weight" json:"weight"`
	PublicationYear   int        `db:"publication_year" json:"publicationYear"`
	Rating            float64    `db:"rating" json:"rating"`
	ReviewCount       int        `db:"review_count" json:"reviewCount"`
	InStock           bool       `db:"in_stock" json:"inStock"`
	StockCount        int        `db:"stock_count" json:"stockCount"`
	Tags              string     `db:"tags" json:"tags"`
	Featured          bool       `db:"featured" json:"featured"`
	Bestseller        bool       `db:"bestseller" json:"bestseller"`
	NewArrival        bool       `db:"new_arrival" json:"newArrival"`
	SalesCount        int        `db:"sales_count" json:"salesCount"`
	IsActive          bool       `db:"is_active" json:"isActive"`
	CreatedBy         string     `db:"created_by" json:"createdBy"`
	WooCommerceID     int64      `db:"woocommerce_id" json:"woocommerceId,omitempty"`
	ImportSource      string     `db:"import_source" json:"importSource,omitempty"`
	ImportDate        *time.Time `db:"import_date" json:"importDate,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updatedAt"`
	DeletedAt         *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`
}

// BookFilter holds optional catalog query constraints.
// A zero field means "no constraint", not "match empty".
type BookFilter struct {
	Category   string
	Search     string
	Featured   bool
	Bestseller bool
	NewArrival bool
	Limit      int
	Offset     int
}

// Order represents a customer order. Item list, addresses, summary,
// payment details and timeline are stored as serialized JSON payloads.
type Order struct {
	ID              int64     `db:"id" json:"id"`
	OrderNumber     string    `db:"order_number" json:"orderNumber"`
	UserID          string    `db:"user_id" json:"userId"`
	Items           string    `db:"items" json:"items"`
	ShippingAddress string    `db:"shipping_address" json:"shippingAddress"`
	BillingAddress  string    `db:"billing_address" json:"billingAddress"`
	OrderSummary    string    `db:"order_summary" json:"orderSummary"`
	PaymentDetails  string    `db:"payment_details" json:"paymentDetails"`
	OrderStatus     string    `db:"order_status" json:"orderStatus"`
	Timeline        string    `db:"timeline" json:"timeline"`
	AdminNotes      string    `db:"admin_notes" json:"adminNotes,omitempty"`
	IsGift          bool      `db:"is_gift" json:"isGift"`
	GiftMessage     string    `db:"gift_message" json:"giftMessage,omitempty"`
	CustomerNotes   string    `db:"customer_notes" json:"customerNotes,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time `db:"updated_at" json:"updatedAt"`
}

// OrderItem is a line item inside an order's serialized item list,
// with the unit price snapshotted at order time.
type OrderItem struct {
	BookID   int64   `json:"bookId"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Title    string  `json:"title"`
	Author   string  `json:"author"`
	Image    string  `json:"image,omitempty"`
}

// OrderSummary is the serialized totals block of an order.
type OrderSummary struct {
	Subtotal     float64 `json:"subtotal"`
	ShippingCost float64 `json:"shippingCost"`
	Tax          float64 `json:"tax"`
	Discount     float64 `json:"discount"`
	Total        float64 `json:"total"`
}

// PaymentDetails is the serialized payment block of an order.
type PaymentDetails struct {
	Method            string `json:"method"`
	RazorpayOrderID   string `json:"razorpayOrderId,omitempty"`
	PaymentID         string `json:"paymentId,omitempty"`
	RazorpaySignature string `json:"razorpaySignature,omitempty"`
	Status            string `json:"status"`
	FailureReason     string `json:"failureReason,omitempty"`
	PaidAt            string `json:"paidAt,omitempty"`
}

// TimelineEntry records one order status transition. The timeline is
// append-only and ordered.
type TimelineEntry struct {
	Status     string    `json:"status"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	AdminNotes string    `json:"adminNotes,omitempty"`
}

// Order statuses
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"
)

// Payment statuses
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

// Import item statuses
const (
	ImportItemPending   = "pending"
	ImportItemImporting = "importing"
	ImportItemSuccess   = "success"
	ImportItemError     = "error"
)

// ImportItem tracks one product inside an import session.
type ImportItem struct {
	ExternalID int64  `json:"id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// ImportSession represents one run of the catalog import pipeline.
// Counters satisfy processed == succeeded + failed after every item,
// and processed never exceeds Total.
type ImportSession struct {
	ID        string       `json:"importId"`
	UserID    string       `json:"userId"`
	Total     int          `json:"total"`
	Processed int          `json:"processed"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Items     []ImportItem `json:"items"`
	StartedAt time.Time    `json:"startedAt"`
}

// ImportProgress is the progress-poll view of a session.
type ImportProgress struct {
	Progress int          `json:"progress"`
	Products []ImportItem `json:"products"`
	Stats    ImportStats  `json:"stats"`
}

// ImportStats aggregates session counters for progress polling.
type ImportStats struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Errors  int `json:"errors"`
	Pending int `json:"pending"`
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
