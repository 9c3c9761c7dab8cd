package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/krm/mini-commerce/internal/database"
	"github.com/krm/mini-commerce/internal/models"
)

const orderColumns = `id, order_number, customer_name, customer_email, customer_phone, shipping_address, status, total_amount, created_at, updated_at`

type CreateOrderRequest struct {
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	ShippingAddress string
	Items           []OrderItemRequest
}

type OrderItemRequest struct {
	ProductID int64
	Quantity  int
}

func generateOrderNumber() string {
	return "ORD-" + uuid.NewString()
}

func scanOrder(row interface{ Scan(...interface{}) error }, o *models.Order) error {
	return row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.CustomerName,
		&o.CustomerEmail,
		&o.CustomerPhone,
		&o.ShippingAddress,
		&o.Status,
		&o.TotalAmount,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
}

// CreateOrder places an order in a single serializable transaction: every
// product row is locked and its stock validated before anything is written,
// so a failed placement leaves no order row, no item rows, and no stock
// change. Prices are snapshotted from the locked rows; the total is the sum
// of snapshot price times quantity.
func CreateOrder(ctx context.Context, db *sql.DB, req CreateOrderRequest) (*models.Order, error) {
	var order *models.Order

	err := database.WithRetry(ctx, db, database.SerializableTxOptions(), func(tx *sql.Tx) error {
		var totalAmount decimal.Decimal
		snapshots := make(map[int64]decimal.Decimal)

		for _, item := range req.Items {
			if item.Quantity <= 0 {
				return fmt.Errorf("product %d: %w", item.ProductID, database.ErrInvalidQuantity)
			}

			product, err := getProductForUpdate(ctx, tx, item.ProductID)
			if err != nil {
				return err
			}

			if product.Stock < item.Quantity {
				return &database.InsufficientStockError{
					ProductID: product.ID,
					Requested: item.Quantity,
					Available: product.Stock,
				}
			}

			snapshots[item.ProductID] = product.Price
			totalAmount = totalAmount.Add(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}

		order = &models.Order{}
		err := scanOrder(tx.QueryRowContext(ctx,
			`INSERT INTO orders (order_number, customer_name, customer_email, customer_phone, shipping_address, status, total_amount, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
			 RETURNING `+orderColumns,
			generateOrderNumber(), req.CustomerName, req.CustomerEmail,
			req.CustomerPhone, req.ShippingAddress, models.OrderStatusCreated,
			totalAmount), order)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, item := range req.Items {
			var orderItem models.OrderItem
			err := tx.QueryRowContext(ctx,
				`INSERT INTO order_items (order_id, product_id, quantity, price_at_purchase, created_at)
				 VALUES ($1, $2, $3, $4, NOW())
				 RETURNING id, order_id, product_id, quantity, price_at_purchase, created_at`,
				order.ID, item.ProductID, item.Quantity, snapshots[item.ProductID]).Scan(
				&orderItem.ID,
				&orderItem.OrderID,
				&orderItem.ProductID,
				&orderItem.Quantity,
				&orderItem.PriceAtPurchase,
				&orderItem.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
			order.Items = append(order.Items, orderItem)
		}

		for _, item := range req.Items {
			if err := decrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return order, nil
}

func GetOrder(ctx context.Context, db *sql.DB, id int64) (*models.Order, error) {
	order := &models.Order{}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	err := scanOrder(db.QueryRowContext(ctx, query, id), order)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := listOrderItems(ctx, db, id)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func listOrderItems(ctx context.Context, q querier, orderID int64) ([]models.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, quantity, price_at_purchase, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`

	rows, err := q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Quantity,
			&item.PriceAtPurchase,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// UpdateOrderStatus overwrites the status without checking the previous
// value; any status may follow any other. The update and the item read run
// in one transaction so the returned order is consistent.
func UpdateOrderStatus(ctx context.Context, db *sql.DB, id int64, status string) (*models.Order, error) {
	if !models.IsValidOrderStatus(status) {
		return nil, fmt.Errorf("%q: %w", status, database.ErrInvalidStatus)
	}

	order := &models.Order{}

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		query := `
			UPDATE orders
			SET status = $1, updated_at = NOW()
			WHERE id = $2
			RETURNING ` + orderColumns

		err := scanOrder(tx.QueryRowContext(ctx, query, status, id), order)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrOrderNotFound
			}
			return fmt.Errorf("update order status: %w", err)
		}

		items, err := listOrderItems(ctx, tx, id)
		if err != nil {
			return err
		}
		order.Items = items

		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

func ListOrders(ctx context.Context, db *sql.DB, page, pageSize int) (*OffsetPage, error) {
	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&total); err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	orders, err := listOrders(ctx, db, query, pageSize, offset)
	if err != nil {
		return nil, err
	}

	return &OffsetPage{
		Items:      orders,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	}, nil
}

func ListOrdersByStatus(ctx context.Context, db *sql.DB, status string) ([]models.Order, error) {
	if !models.IsValidOrderStatus(status) {
		return nil, fmt.Errorf("%q: %w", status, database.ErrInvalidStatus)
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = $1
		ORDER BY created_at DESC, id DESC`

	return listOrders(ctx, db, query, status)
}

func ListOrdersByDateRange(ctx context.Context, db *sql.DB, start, end time.Time) ([]models.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE created_at BETWEEN $1 AND $2
		ORDER BY created_at DESC, id DESC`

	return listOrders(ctx, db, query, start, end)
}

// ListOrdersByEmail pages a customer's order history newest-first with an
// opaque cursor.
func ListOrdersByEmail(ctx context.Context, db *sql.DB, email, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE customer_email = $1
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	orders, err := listOrders(ctx, db, query, email, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, err
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		nextCursor = EncodeCursor(Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func listOrders(ctx context.Context, db *sql.DB, query string, args ...interface{}) ([]models.Order, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}
