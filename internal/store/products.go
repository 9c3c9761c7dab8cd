package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/krm/mini-commerce/internal/database"
	"github.com/krm/mini-commerce/internal/models"
)

const productColumns = `id, sku, name, description, image_url, price, stock, active, featured, category_id, created_at, updated_at`

// ProductParams carries every mutable product field. Create and update both
// take the full set; update overwrites unconditionally.
type ProductParams struct {
	SKU         string
	Name        string
	Description string
	ImageURL    string
	Price       decimal.Decimal
	Stock       int
	Active      bool
	Featured    bool
	CategoryID  int64
}

func scanProduct(row interface{ Scan(...interface{}) error }, p *models.Product) error {
	return row.Scan(
		&p.ID,
		&p.SKU,
		&p.Name,
		&p.Description,
		&p.ImageURL,
		&p.Price,
		&p.Stock,
		&p.Active,
		&p.Featured,
		&p.CategoryID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
}

func CreateProduct(ctx context.Context, db *sql.DB, params ProductParams) (*models.Product, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM categories WHERE id = $1)`,
		params.CategoryID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check category exists: %w", err)
	}
	if !exists {
		return nil, database.ErrCategoryNotFound
	}

	product := &models.Product{}

	query := `
		INSERT INTO products (sku, name, description, image_url, price, stock, active, featured, category_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING ` + productColumns

	err = scanProduct(db.QueryRowContext(ctx, query,
		params.SKU, params.Name, params.Description, params.ImageURL,
		params.Price, params.Stock, params.Active, params.Featured, params.CategoryID), product)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return nil, database.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func GetProduct(ctx context.Context, db *sql.DB, id int64) (*models.Product, error) {
	product := &models.Product{}

	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	err := scanProduct(db.QueryRowContext(ctx, query, id), product)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

// getProductForUpdate reads a product row under a row lock. Order placement
// holds these locks until its transaction commits.
func getProductForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error) {
	product := &models.Product{}

	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`

	err := scanProduct(tx.QueryRowContext(ctx, query, id), product)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProductNotFound
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "55P03" {
			return nil, database.ErrLockTimeout
		}
		return nil, fmt.Errorf("lock product %d: %w", id, err)
	}

	return product, nil
}

// decrementStock is the only stock mutation in the system outside full
// product updates. The WHERE clause re-checks availability so the update is
// an atomic conditional decrement even without the caller's row lock.
func decrementStock(ctx context.Context, tx *sql.Tx, productID int64, quantity int) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE products
		 SET stock = stock - $1,
		     updated_at = NOW()
		 WHERE id = $2
		   AND stock >= $1`,
		quantity, productID)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrInsufficientStock
	}

	return nil
}

func UpdateProduct(ctx context.Context, db *sql.DB, id int64, params ProductParams) (*models.Product, error) {
	product := &models.Product{}

	query := `
		UPDATE products
		SET sku = $1, name = $2, description = $3, image_url = $4,
		    price = $5, stock = $6, active = $7, featured = $8,
		    category_id = $9, updated_at = NOW()
		WHERE id = $10
		RETURNING ` + productColumns

	err := scanProduct(db.QueryRowContext(ctx, query,
		params.SKU, params.Name, params.Description, params.ImageURL,
		params.Price, params.Stock, params.Active, params.Featured,
		params.CategoryID, id), product)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProductNotFound
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			// category re-resolution failed; the statement rolled back, so
			// the product keeps its previous category
			return nil, database.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("update product: %w", err)
	}

	return product, nil
}

func DeleteProduct(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrProductNotFound
	}

	return nil
}

func ListProducts(ctx context.Context, db *sql.DB, page, pageSize int) (*OffsetPage, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	return listProductsPage(ctx, db,
		`SELECT COUNT(*) FROM products`, nil,
		query, nil, page, pageSize)
}

func ListActiveProducts(ctx context.Context, db *sql.DB) ([]models.Product, error) {
	return listProducts(ctx, db,
		`SELECT `+productColumns+` FROM products WHERE active ORDER BY created_at DESC`)
}

func ListFeaturedProducts(ctx context.Context, db *sql.DB) ([]models.Product, error) {
	return listProducts(ctx, db,
		`SELECT `+productColumns+` FROM products WHERE featured AND active ORDER BY created_at DESC`)
}

func ListProductsByCategory(ctx context.Context, db *sql.DB, categoryID int64, page, pageSize int) (*OffsetPage, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE category_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	return listProductsPage(ctx, db,
		`SELECT COUNT(*) FROM products WHERE category_id = $1`, []interface{}{categoryID},
		query, []interface{}{categoryID}, page, pageSize)
}

// SearchProducts matches the keyword case-insensitively against name and
// description of active products.
func SearchProducts(ctx context.Context, db *sql.DB, keyword string, page, pageSize int) (*OffsetPage, error) {
	pattern := "%" + keyword + "%"

	countQuery := `
		SELECT COUNT(*)
		FROM products
		WHERE active AND (name ILIKE $1 OR description ILIKE $1)`

	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE active AND (name ILIKE $1 OR description ILIKE $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	return listProductsPage(ctx, db,
		countQuery, []interface{}{pattern},
		query, []interface{}{pattern}, page, pageSize)
}

func ListProductsByPriceRange(ctx context.Context, db *sql.DB, minPrice, maxPrice decimal.Decimal, page, pageSize int) (*OffsetPage, error) {
	countQuery := `SELECT COUNT(*) FROM products WHERE price BETWEEN $1 AND $2`

	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE price BETWEEN $1 AND $2
		ORDER BY price, id
		LIMIT $3 OFFSET $4`

	return listProductsPage(ctx, db,
		countQuery, []interface{}{minPrice, maxPrice},
		query, []interface{}{minPrice, maxPrice}, page, pageSize)
}

func listProducts(ctx context.Context, db *sql.DB, query string, args ...interface{}) ([]models.Product, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var product models.Product
		if err := scanProduct(rows, &product); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

func listProductsPage(ctx context.Context, db *sql.DB, countQuery string, countArgs []interface{}, query string, args []interface{}, page, pageSize int) (*OffsetPage, error) {
	var total int64
	if err := db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	offset := (page - 1) * pageSize
	args = append(args, pageSize, offset)

	products, err := listProducts(ctx, db, query, args...)
	if err != nil {
		return nil, err
	}

	return &OffsetPage{
		Items:      products,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	}, nil
}
