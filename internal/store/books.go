package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"bookstore-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const bookColumns = `id, title, title_telugu, author, author_telugu, publisher, publisher_telugu,
	isbn, price, original_price, discount, description, description_telugu, image, images,
	category, category_telugu, pages, language, dimensions, weight, publication_year,
	rating, review_count, in_stock, stock_count, tags, featured, bestseller, new_arrival,
	sales_count, is_active, created_by, woocommerce_id, import_source, import_date,
	created_at, updated_at, deleted_at`

// GetBooks retrieves active books matching all provided filters,
// sorted newest-first. Absent filters mean no constraint.
func (s *Store) GetBooks(ctx context.Context, filter models.BookFilter) ([]models.Book, int, error) {
	where := []string{"is_active = TRUE"}
	args := []interface{}{}

	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("title ILIKE $%d", len(args)))
	}
	if filter.Featured {
		where = append(where, "featured = TRUE")
	}
	if filter.Bestseller {
		where = append(where, "bestseller = TRUE")
	}
	if filter.NewArrival {
		where = append(where, "new_arrival = TRUE")
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM books WHERE %s", whereClause)
	if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count books: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM books WHERE %s ORDER BY created_at DESC", bookColumns, whereClause)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	books := []models.Book{}
	if err := s.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to fetch books: %w", err)
	}
	return books, total, nil
}

// GetBestsellers retrieves active bestsellers sorted by descending sales count
func (s *Store) GetBestsellers(ctx context.Context, limit int) ([]models.Book, error) {
	query := fmt.Sprintf(`SELECT %s FROM books
		WHERE is_active = TRUE AND bestseller = TRUE
		ORDER BY sales_count DESC LIMIT $1`, bookColumns)

	books := []models.Book{}
	if err := s.db.SelectContext(ctx, &books, query, limit); err != nil {
		return nil, fmt.Errorf("failed to fetch bestsellers: %w", err)
	}
	return books, nil
}

// GetBookByID retrieves a book by ID
func (s *Store) GetBookByID(ctx context.Context, id int64) (*models.Book, error) {
	var book models.Book
	query := fmt.Sprintf("SELECT %s FROM books WHERE id = $1", bookColumns)
	err := s.db.GetContext(ctx, &book, query, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("book not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// GetBooksByIDs retrieves multiple books by IDs
func (s *Store) GetBooksByIDs(ctx context.Context, ids []int64) ([]models.Book, error) {
	if len(ids) == 0 {
		return []models.Book{}, nil
	}

	query, args, err := sqlx.In(
		fmt.Sprintf("SELECT %s FROM books WHERE id IN (?)", bookColumns), ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	books := []models.Book{}
	err = s.db.SelectContext(ctx, &books, query, args...)
	return books, err
}

// CreateBook inserts a new book
func (s *Store) CreateBook(ctx context.Context, book *models.Book) error {
	query := `
		INSERT INTO books (
			title, title_telugu, author, author_telugu, publisher, publisher_telugu,
			isbn, price, original_price, discount, description, description_telugu,
			image, images, category, category_telugu, pages, language, dimensions,
			weight, publication_year, rating, review_count, in_stock, stock_count,
			tags, featured, bestseller, new_arrival, sales_count, is_active,
			created_by, woocommerce_id, import_source, import_date
		) VALUES (
			:title, :title_telugu, :author, :author_telugu, :publisher, :publisher_telugu,
			:isbn, :price, :original_price, :discount, :description, :description_telugu,
			:image, :images, :category, :category_telugu, :pages, :language, :dimensions,
			:weight, :publication_year, :rating, :review_count, :in_stock, :stock_count,
			:tags, :featured, :bestseller, :new_arrival, :sales_count, :is_active,
			:created_by, :woocommerce_id, :import_source, :import_date
		) RETURNING id, created_at, updated_at`

	rows, err := s.db.NamedQueryContext(ctx, query, book)
	if err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&book.ID, &book.CreatedAt, &book.UpdatedAt); err != nil {
			return fmt.Errorf("failed to scan created book: %w", err)
		}
	}
	return rows.Err()
}

// UpdateBook updates all mutable fields of a book
func (s *Store) UpdateBook(ctx context.Context, book *models.Book) error {
	query := `
		UPDATE books SET
			title = :title, title_telugu = :title_telugu,
			author = :author, author_telugu = :author_telugu,
			publisher = :publisher, publisher_telugu = :publisher_telugu,
			isbn = :isbn, price = :price, original_price = :original_price,
			discount = :discount, description = :description,
			description_telugu = :description_telugu, image = :image, images = :images,
			category = :category, category_telugu = :category_telugu,
			pages = :pages, language = :language, dimensions = :dimensions,
			weight = :weight, publication_year = :publication_year,
			in_stock = :in_stock, stock_count = :stock_count, tags = :tags,
			featured = :featured, bestseller = :bestseller, new_arrival = :new_arrival,
			is_active = :is_active, woocommerce_id = :woocommerce_id,
			import_source = :import_source, import_date = :import_date,
			updated_at = NOW()
		WHERE id = :id`

	result, err := s.db.NamedExecContext(ctx, query, book)
	if err != nil {
		return fmt.Errorf("failed to update book: %w", err)
	}
	n, err := result.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("book not found: %d", book.ID)
	}
	return nil
}

// SoftDeleteBook marks a book inactive instead of removing the row
func (s *Store) SoftDeleteBook(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE books SET is_active = FALSE, deleted_at = NOW(), updated_at = NOW() WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}
	n, err := result.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("book not found: %d", id)
	}
	return nil
}

// FindImportMatch finds an existing book for an imported product. Keys are
// checked in order of preference: external source id, then ISBN, then exact
// (title, author) pair; the first match wins. Returns (nil, nil) when no
// candidate matches.
func (s *Store) FindImportMatch(ctx context.Context, wooID int64, isbn, title, author string) (*models.Book, error) {
	var book models.Book
	query := fmt.Sprintf(`SELECT %s FROM books
		WHERE woocommerce_id = $1 OR isbn = $2 OR (title = $3 AND author = $4)
		ORDER BY
			CASE
				WHEN woocommerce_id = $1 THEN 0
				WHEN isbn = $2 THEN 1
				ELSE 2
			END
		LIMIT 1`, bookColumns)

	err := s.db.GetContext(ctx, &book, query, wooID, isbn, title, author)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up existing book: %w", err)
	}
	return &book, nil
}

// DecrementStockTx decrements stock and increments sales count for a sold
// book inside a transaction (FOR UPDATE lock). The stock count is clamped
// at zero. Returns the new stock count.
func (s *Store) DecrementStockTx(ctx context.Context, bookID int64, quantity int) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var stock int
	err = tx.GetContext(ctx, &stock,
		"SELECT stock_count FROM books WHERE id = $1 FOR UPDATE", bookID)
	if err != nil {
		return 0, fmt.Errorf("failed to lock book stock: %w", err)
	}

	newStock := stock - quantity
	if newStock < 0 {
		newStock = 0
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE books SET stock_count = $1, sales_count = sales_count + $2,
			in_stock = $3, updated_at = NOW() WHERE id = $4`,
		newStock, quantity, newStock > 0, bookID)
	if err != nil {
		return 0, fmt.Errorf("failed to update book stock: %w", err)
	}

	return newStock, tx.Commit()
}

// RestoreStockTx returns stock for a book, reversing a sale (compensation)
func (s *Store) RestoreStockTx(ctx context.Context, bookID int64, quantity int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE books SET stock_count = stock_count + $1,
			sales_count = GREATEST(0, sales_count - $1),
			in_stock = TRUE, updated_at = NOW() WHERE id = $2`,
		quantity, bookID)
	return err
}
