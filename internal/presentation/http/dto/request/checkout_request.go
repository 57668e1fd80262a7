package request

import "github.com/google/uuid"

// CartItemRequest is one requested cart line
type CartItemRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
}

// BeginCheckoutRequest starts a checkout for a cart
type BeginCheckoutRequest struct {
	Items []CartItemRequest `json:"items" binding:"required,min=1,dive"`
}
