package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/vendsur/caja-api/internal/domain/entity"
	"github.com/vendsur/caja-api/internal/domain/repository"
	"github.com/vendsur/caja-api/pkg/apperror"
	"github.com/vendsur/caja-api/pkg/pagination"
	"github.com/vendsur/caja-api/pkg/utils"
)

// ProductService manages the pricing catalog
type ProductService struct {
	productRepo repository.ProductRepository
}

// NewProductService creates a new product service
func NewProductService(productRepo repository.ProductRepository) *ProductService {
	return &ProductService{productRepo: productRepo}
}

// Create adds a catalog item, generating a code when none is given
func (s *ProductService) Create(ctx context.Context, name, code string, unitPrice int64) (*entity.Product, error) {
	if unitPrice <= 0 {
		return nil, apperror.NewBadRequestError("Unit price must be positive")
	}
	if code == "" {
		code = utils.GenerateProductCode()
	}

	product := &entity.Product{
		Name:      name,
		Code:      code,
		UnitPrice: unitPrice,
		Active:    true,
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// GetByID returns a product
func (s *ProductService) GetByID(ctx context.Context, id uuid.UUID) (*entity.Product, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, apperror.NewNotFoundError("Product")
	}
	return product, nil
}

// List returns a page of the catalog
func (s *ProductService) List(ctx context.Context, params *pagination.PaginationParams) ([]entity.Product, int64, error) {
	return s.productRepo.List(ctx, params)
}

// Update changes a product's name, price, or availability. Snapshots
// already taken keep their frozen prices.
func (s *ProductService) Update(ctx context.Context, id uuid.UUID, name *string, unitPrice *int64, active *bool) (*entity.Product, error) {
	product, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if name != nil {
		product.Name = *name
	}
	if unitPrice != nil {
		if *unitPrice <= 0 {
			return nil, apperror.NewBadRequestError("Unit price must be positive")
		}
		product.UnitPrice = *unitPrice
	}
	if active != nil {
		product.Active = *active
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// Delete soft-deletes a product
func (s *ProductService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return s.productRepo.Delete(ctx, id)
}
