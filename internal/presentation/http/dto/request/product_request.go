package request

// CreateProductRequest represents a product creation request
type CreateProductRequest struct {
	Name      string `json:"name" binding:"required,min=2,max=255"`
	Code      string `json:"code" binding:"omitempty,max=100"`
	UnitPrice int64  `json:"unit_price" binding:"required,min=1"`
}

// UpdateProductRequest represents a product update request
type UpdateProductRequest struct {
	Name      *string `json:"name" binding:"omitempty,min=2,max=255"`
	UnitPrice *int64  `json:"unit_price" binding:"omitempty,min=1"`
	Active    *bool   `json:"active"`
}
