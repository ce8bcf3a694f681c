package store

import (
	"context"
	"database/sql"
	"fmt"

	"bookstore-service/internal/models"
)

// CreateOrder creates a new order
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (
			order_number, user_id, items, shipping_address, billing_address,
			order_summary, payment_details, order_status, timeline,
			is_gift, gift_message, customer_notes
		) VALUES (
			:order_number, :user_id, :items, :shipping_address, :billing_address,
			:order_summary, :payment_details, :order_status, :timeline,
			:is_gift, :gift_message, :customer_notes
		) RETURNING id, created_at, updated_at`

	rows, err := s.db.NamedQueryContext(ctx, query, order)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return fmt.Errorf("failed to scan created order: %w", err)
		}
	}
	return rows.Err()
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByUserID retrieves orders for a user, newest first
func (s *Store) GetOrdersByUserID(ctx context.Context, userID, status string, limit, offset int) ([]models.Order, int, error) {
	where := "user_id = $1"
	args := []interface{}{userID}

	if status != "" {
		args = append(args, status)
		where += fmt.Sprintf(" AND order_status = $%d", len(args))
	}

	var total int
	if err := s.db.GetContext(ctx, &total,
		fmt.Sprintf("SELECT COUNT(*) FROM orders WHERE %s", where), args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count user orders: %w", err)
	}

	query := fmt.Sprintf("SELECT * FROM orders WHERE %s ORDER BY created_at DESC", where)
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	orders := []models.Order{}
	if err := s.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to fetch user orders: %w", err)
	}
	return orders, total, nil
}

// GetAllOrders retrieves orders across all users, newest first (admin)
func (s *Store) GetAllOrders(ctx context.Context, status string, limit, offset int) ([]models.Order, int, error) {
	where := "TRUE"
	args := []interface{}{}

	if status != "" {
		args = append(args, status)
		where = fmt.Sprintf("order_status = $%d", len(args))
	}

	var total int
	if err := s.db.GetContext(ctx, &total,
		fmt.Sprintf("SELECT COUNT(*) FROM orders WHERE %s", where), args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	query := fmt.Sprintf("SELECT * FROM orders WHERE %s ORDER BY created_at DESC", where)
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	orders := []models.Order{}
	if err := s.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to fetch orders: %w", err)
	}
	return orders, total, nil
}

// UpdateOrderStatus persists a new status, the extended timeline and
// optional admin notes
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, status, timeline, adminNotes string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE orders SET order_status = $1, timeline = $2,
			admin_notes = COALESCE(NULLIF($3, ''), admin_notes),
			updated_at = NOW() WHERE id = $4`,
		status, timeline, adminNotes, orderID)
	return err
}

// UpdateOrderPayment persists payment details together with the order
// status and timeline resulting from a verification attempt
func (s *Store) UpdateOrderPayment(ctx context.Context, orderID int64, paymentDetails, orderStatus, timeline string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE orders SET payment_details = $1, order_status = $2, timeline = $3,
			updated_at = NOW() WHERE id = $4`,
		paymentDetails, orderStatus, timeline, orderID)
	return err
}

// UpdateOrderFields updates owner-editable order fields
func (s *Store) UpdateOrderFields(ctx context.Context, orderID int64, shippingAddress, customerNotes string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE orders SET
			shipping_address = COALESCE(NULLIF($1, ''), shipping_address),
			customer_notes = COALESCE(NULLIF($2, ''), customer_notes),
			updated_at = NOW() WHERE id = $3`,
		shippingAddress, customerNotes, orderID)
	return err
}
