package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/krm/mini-commerce/internal/database"
	"github.com/krm/mini-commerce/internal/models"
	"github.com/krm/mini-commerce/internal/store"
)

func orderRequest(items ...store.OrderItemRequest) store.CreateOrderRequest {
	return store.CreateOrderRequest{
		CustomerName:    "Test Customer",
		CustomerEmail:   "customer@example.com",
		CustomerPhone:   "+1-555-0100",
		ShippingAddress: "1 Test Street",
		Items:           items,
	}
}

func TestCreateOrder(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	category := createTestCategory(t, db, "Orders")
	product1 := createTestProduct(t, db, category.ID, "ORD-001", decimal.NewFromInt(100), 50)
	product2 := createTestProduct(t, db, category.ID, "ORD-002", decimal.NewFromInt(200), 30)

	order, err := store.CreateOrder(ctx, db, orderRequest(
		store.OrderItemRequest{ProductID: product1.ID, Quantity: 5},
		store.OrderItemRequest{ProductID: product2.ID, Quantity: 3},
	))
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	if order.ID == 0 {
		t.Error("Order ID should not be 0")
	}
	if order.OrderNumber == "" {
		t.Error("Order number should be set")
	}
	if order.Status != models.OrderStatusCreated {
		t.Errorf("Expected status CREATED, got %s", order.Status)
	}

	expectedTotal := decimal.NewFromInt(100).Mul(decimal.NewFromInt(5)).
		Add(decimal.NewFromInt(200).Mul(decimal.NewFromInt(3)))
	if !order.TotalAmount.Equal(expectedTotal) {
		t.Errorf("Expected total %s, got %s", expectedTotal, order.TotalAmount)
	}

	if len(order.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(order.Items))
	}
	for _, item := range order.Items {
		if item.OrderID != order.ID {
			t.Errorf("Item %d not linked to order %d", item.ID, order.ID)
		}
	}
	if !order.Items[0].PriceAtPurchase.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected snapshot price 100, got %s", order.Items[0].PriceAtPurchase)
	}

	product1After, err := store.GetProduct(ctx, db, product1.ID)
	if err != nil {
		t.Fatalf("Get product 1: %v", err)
	}
	if product1After.Stock != 45 {
		t.Errorf("Expected product 1 stock 45, got %d", product1After.Stock)
	}

	product2After, err := store.GetProduct(ctx, db, product2.ID)
	if err != nil {
		t.Fatalf("Get product 2: %v", err)
	}
	if product2After.Stock != 27 {
		t.Errorf("Expected product 2 stock 27, got %d", product2After.Stock)
	}
}

// Ordering 3 units of a 10.00 product with 5 in stock leaves total 30.00,
// stock 2, snapshot 10.00. The snapshot survives later price changes.
func TestCreateOrderSnapshotScenario(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	category := createTestCategory(t, db, "Snapshot")
	product := createTestProduct(t, db, category.ID, "SNAP-001", decimal.RequireFromString("10.00"), 5)

	order, err := store.CreateOrder(ctx, db, orderRequest(
		store.OrderItemRequest{ProductID: product.ID, Quantity: 3},
	))
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	if !order.TotalAmount.Equal(decimal.RequireFromString("30.00")) {
		t.Errorf("Expected total 30.00, got %s", order.TotalAmount)
	}
	if !order.Items[0].PriceAtPurchase.Equal(decimal.RequireFromString("10.00")) {
		t.Errorf("Expected snapshot 10.00, got %s", order.Items[0].PriceAtPurchase)
	}

	after, err := store.GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if after.Stock != 2 {
		t.Errorf("Expected stock 2, got %d", after.Stock)
	}

	// a later price change must not touch the snapshot
	if _, err := store.UpdateProduct(ctx, db, product.ID, store.ProductParams{
		SKU:        "SNAP-001",
		Name:       product.Name,
		Price:      decimal.RequireFromString("99.00"),
		Stock:      2,
		Active:     true,
		CategoryID: category.ID,
	}); err != nil {
		t.Fatalf("Update product: %v", err)
	}

	fetched, err := store.GetOrder(ctx, db, order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if !fetched.Items[0].PriceAtPurchase.Equal(decimal.RequireFromString("10.00")) {
		t.Errorf("Snapshot changed after price update: %s", fetched.Items[0].PriceAtPurchase)
	}
	if !fetched.TotalAmount.Equal(decimal.RequireFromString("30.00")) {
		t.Errorf("Total changed after price update: %s", fetched.TotalAmount)
	}
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	category := createTestCategory(t, db, "Shortage")
	full := createTestProduct(t, db, category.ID, "SHORT-001", decimal.NewFromInt(100), 50)
	short := createTestProduct(t, db, category.ID, "SHORT-002", decimal.NewFromInt(100), 5)

	// the first item could be satisfied; the second cannot. Nothing may be
	// mutated for either.
	_, err := store.CreateOrder(ctx, db, orderRequest(
		store.OrderItemRequest{ProductID: full.ID, Quantity: 10},
		store.OrderItemRequest{ProductID: short.ID, Quantity: 10},
	))
	if !errors.Is(err, database.ErrInsufficientStock) {
		t.Fatalf("Expected insufficient stock, got: %v", err)
	}

	var stockErr *database.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("Expected InsufficientStockError, got: %v", err)
	}
	if stockErr.ProductID != short.ID {
		t.Errorf("Expected offending product %d, got %d", short.ID, stockErr.ProductID)
	}
	if stockErr.Requested != 10 || stockErr.Available != 5 {
		t.Errorf("Expected requested 10 available 5, got %d/%d", stockErr.Requested, stockErr.Available)
	}

	for _, p := range []struct {
		id    int64
		stock int
	}{{full.ID, 50}, {short.ID, 5}} {
		after, err := store.GetProduct(ctx, db, p.id)
		if err != nil {
			t.Fatalf("Get product: %v", err)
		}
		if after.Stock != p.stock {
			t.Errorf("Stock of product %d should remain %d, got %d", p.id, p.stock, after.Stock)
		}
	}

	page, err := store.ListOrders(ctx, db, 1, 10)
	if err != nil {
		t.Fatalf("List orders: %v", err)
	}
	if page.Total != 0 {
		t.Errorf("Expected no persisted orders, got %d", page.Total)
	}
}

func TestCreateOrderProductNotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	category := createTestCategory(t, db, "Missing")
	product := createTestProduct(t, db, category.ID, "MISS-001", decimal.NewFromInt(10), 20)

	_, err := store.CreateOrder(ctx, db, orderRequest(
		store.OrderItemRequest{ProductID: product.ID, Quantity: 2},
		store.OrderItemRequest{ProductID: 9999, Quantity: 1},
	))
	if !errors.Is(err, database.ErrProductNotFound) {
		t.Fatalf("Expected product not found, got: %v", err)
	}

	after, err := store.GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if after.Stock != 20 {
		t.Errorf("Stock should remain 20, got %d", after.Stock)
	}

	page, err := store.ListOrders(ctx, db, 1, 10)
	if err != nil {
		t.Fatalf("List orders: %v", err)
	}
	if page.Total != 0 {
		t.Errorf("Expected no persisted orders, got %d", page.Total)
	}
}

func TestCreateOrderInvalidQuantity(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	category := createTestCategory(t, db, "Quantities")
	product := createTestProduct(t, db, category.ID, "QTY-001", decimal.NewFromInt(10), 20)

	_, err := store.CreateOrder(context.Background(), db, orderRequest(
		store.OrderItemRequest{ProductID: product.ID, Quantity: 0},
	))
	if !errors.Is(err, database.ErrInvalidQuantity) {
		t.Errorf("Expected invalid quantity, got: %v", err)
	}
}

func TestConcurrentOrderCreation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	category := createTestCategory(t, db, "Concurrent")
	product := createTestProduct(t, db, category.ID, "CONC-001", decimal.NewFromInt(100), 20)

	concurrency := 10
	var wg sync.WaitGroup
	results := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := store.CreateOrder(ctx, db, orderRequest(
				store.OrderItemRequest{ProductID: product.ID, Quantity: 2},
			))
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		switch {
		case err == nil:
			successCount++
		case errors.Is(err, database.ErrInsufficientStock):
		default:
			t.Logf("Unexpected error: %v", err)
		}
	}

	if successCount != concurrency {
		t.Errorf("Expected %d successful orders, got %d", concurrency, successCount)
	}

	after, err := store.GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if after.Stock != 20-successCount*2 {
		t.Errorf("Expected final stock %d, got %d", 20-successCount*2, after.Stock)
	}
}

// Two simultaneous requests competing for the last units: exactly one may
// win, and the store never goes negative.
func TestConcurrentOrdersNeverOversell(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	category := createTestCategory(t, db, "Oversell")
	product := createTestProduct(t, db, category.ID, "OVER-001", decimal.NewFromInt(100), 5)

	var wg sync.WaitGroup
	results := make(chan error, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := store.CreateOrder(ctx, db, orderRequest(
				store.OrderItemRequest{ProductID: product.ID, Quantity: 3},
			))
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		if err == nil {
			successCount++
		} else if !errors.Is(err, database.ErrInsufficientStock) {
			t.Errorf("Unexpected error: %v", err)
		}
	}

	if successCount != 1 {
		t.Errorf("Expected exactly 1 winner, got %d", successCount)
	}

	after, err := store.GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if after.Stock != 2 {
		t.Errorf("Expected stock 2, got %d", after.Stock)
	}
}

func TestUpdateOrderStatus(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	category := createTestCategory(t, db, "Statuses")
	product := createTestProduct(t, db, category.ID, "STAT-001", decimal.NewFromInt(10), 10)

	order, err := store.CreateOrder(ctx, db, orderRequest(
		store.OrderItemRequest{ProductID: product.ID, Quantity: 1},
	))
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	updated, err := store.UpdateOrderStatus(ctx, db, order.ID, models.OrderStatusDelivered)
	if err != nil {
		t.Fatalf("Update status: %v", err)
	}
	if updated.Status != models.OrderStatusDelivered {
		t.Errorf("Expected DELIVERED, got %s", updated.Status)
	}

	// transitions are free: going backwards is allowed
	updated, err = store.UpdateOrderStatus(ctx, db, order.ID, models.OrderStatusCreated)
	if err != nil {
		t.Fatalf("Update status backwards: %v", err)
	}
	if updated.Status != models.OrderStatusCreated {
		t.Errorf("Expected CREATED, got %s", updated.Status)
	}

	if _, err := store.UpdateOrderStatus(ctx, db, order.ID, "REFUNDED"); !errors.Is(err, database.ErrInvalidStatus) {
		t.Errorf("Expected invalid status, got: %v", err)
	}

	if _, err := store.UpdateOrderStatus(ctx, db, 9999, models.OrderStatusPaid); !errors.Is(err, database.ErrOrderNotFound) {
		t.Errorf("Expected not found, got: %v", err)
	}
}

func TestOrderQueries(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	category := createTestCategory(t, db, "Queries")
	product := createTestProduct(t, db, category.ID, "QRY-001", decimal.NewFromInt(10), 100)

	for i := 0; i < 15; i++ {
		req := orderRequest(store.OrderItemRequest{ProductID: product.ID, Quantity: 1})
		if i%3 == 0 {
			req.CustomerEmail = "other@example.com"
		}
		order, err := store.CreateOrder(ctx, db, req)
		if err != nil {
			t.Fatalf("Create order %d: %v", i, err)
		}
		if i == 0 {
			if _, err := store.UpdateOrderStatus(ctx, db, order.ID, models.OrderStatusShipped); err != nil {
				t.Fatalf("Update status: %v", err)
			}
		}
	}

	// cursor paging over one customer's history
	page1, err := store.ListOrdersByEmail(ctx, db, "customer@example.com", "", 6)
	if err != nil {
		t.Fatalf("List by email page 1: %v", err)
	}
	if !page1.HasMore {
		t.Error("Page 1 should have more results")
	}
	if page1.NextCursor == "" {
		t.Error("Page 1 should have a next cursor")
	}

	page2, err := store.ListOrdersByEmail(ctx, db, "customer@example.com", page1.NextCursor, 6)
	if err != nil {
		t.Fatalf("List by email page 2: %v", err)
	}
	if page2.HasMore {
		t.Error("Page 2 should be the last page")
	}
	items, ok := page2.Items.([]models.Order)
	if !ok {
		t.Fatalf("Expected []models.Order items, got %T", page2.Items)
	}
	if len(items) != 4 {
		t.Errorf("Expected 4 orders on page 2, got %d", len(items))
	}

	shipped, err := store.ListOrdersByStatus(ctx, db, models.OrderStatusShipped)
	if err != nil {
		t.Fatalf("List by status: %v", err)
	}
	if len(shipped) != 1 {
		t.Errorf("Expected 1 shipped order, got %d", len(shipped))
	}

	all, err := store.ListOrdersByDateRange(ctx, db, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("List by date range: %v", err)
	}
	if len(all) != 15 {
		t.Errorf("Expected 15 orders in range, got %d", len(all))
	}

	none, err := store.ListOrdersByDateRange(ctx, db, time.Now().Add(-2*time.Hour), time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("List by empty date range: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("Expected no orders in past range, got %d", len(none))
	}
}
