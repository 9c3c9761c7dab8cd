package validation

// CategoryRequest is the payload for POST /categories and PUT /categories/{id}.
type CategoryRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
	Active      bool   `json:"active"`
}

// ProductRequest is the payload for POST /products and PUT /products/{id}.
// Updates overwrite every field with these values.
type ProductRequest struct {
	SKU         string  `json:"sku" validate:"required"`
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description"`
	ImageURL    string  `json:"image_url" validate:"omitempty,url"`
	Price       float64 `json:"price" validate:"gte=0"`
	Stock       int     `json:"stock" validate:"gte=0"`
	Active      bool    `json:"active"`
	Featured    bool    `json:"featured"`
	CategoryID  int64   `json:"category_id" validate:"required"`
}

// OrderItemRequest is one requested line item.
type OrderItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required"`
	Quantity  int   `json:"quantity" validate:"required,min=1"`
}

// CreateOrderRequest is the payload for POST /orders.
type CreateOrderRequest struct {
	CustomerName    string             `json:"customer_name" validate:"required"`
	CustomerEmail   string             `json:"customer_email" validate:"required,email"`
	CustomerPhone   string             `json:"customer_phone"`
	ShippingAddress string             `json:"shipping_address" validate:"required"`
	Items           []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

// UpdateOrderStatusRequest is the payload for PATCH /orders/{id}/status.
type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=CREATED PAID SHIPPED DELIVERED CANCELLED"`
}
