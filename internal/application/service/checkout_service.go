package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vendsur/caja-api/internal/domain/entity"
	"github.com/vendsur/caja-api/internal/domain/gateway"
	"github.com/vendsur/caja-api/internal/domain/repository"
	"github.com/vendsur/caja-api/pkg/apperror"
	"github.com/vendsur/caja-api/pkg/fiscal"
	"github.com/vendsur/caja-api/pkg/utils"
)

// CartItem is one requested line of a checkout, by catalog reference
type CartItem struct {
	ProductID uuid.UUID
	Quantity  int
}

// BeginCheckoutResult is what the POS client needs to hand the payer off
// to the gateway's payment page.
type BeginCheckoutResult struct {
	BuyOrder    string `json:"buy_order"`
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
	SubTotal    int64  `json:"sub_total"`
	Tax         int64  `json:"tax"`
	Total       int64  `json:"total"`
}

// CheckoutService prices carts against the catalog and opens payment
// attempts. Prices are resolved server-side at begin time and frozen in
// the snapshot; whatever the catalog says later never changes an
// in-flight sale.
type CheckoutService struct {
	productRepo repository.ProductRepository
	pendingRepo repository.PendingTransactionRepository
	payments    gateway.PaymentGateway
	builder     *fiscal.Builder
	pendingTTL  time.Duration
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	productRepo repository.ProductRepository,
	pendingRepo repository.PendingTransactionRepository,
	payments gateway.PaymentGateway,
	builder *fiscal.Builder,
	pendingTTL time.Duration,
) *CheckoutService {
	return &CheckoutService{
		productRepo: productRepo,
		pendingRepo: pendingRepo,
		payments:    payments,
		builder:     builder,
		pendingTTL:  pendingTTL,
	}
}

// Begin prices the cart, opens a payment attempt with the gateway, and
// stores the snapshot keyed by the gateway token. Each call is a fresh
// attempt with its own buy order; abandoning the redirect costs nothing
// beyond an expiring snapshot row.
func (s *CheckoutService) Begin(ctx context.Context, items []CartItem) (*BeginCheckoutResult, error) {
	if len(items) == 0 {
		return nil, apperror.NewBadRequestError("Cart is empty")
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, apperror.NewBadRequestError("Line quantity must be positive")
		}
		ids = append(ids, item.ProductID)
	}

	products, err := s.productRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*entity.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	lines := make([]entity.CartLine, 0, len(items))
	for _, item := range items {
		product, ok := byID[item.ProductID]
		if !ok {
			return nil, apperror.NewNotFoundError("Product")
		}
		if !product.Active {
			return nil, apperror.NewBadRequestError("Product " + product.Name + " is no longer available")
		}
		lines = append(lines, entity.CartLine{
			ProductID:   product.ID,
			Description: product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   product.UnitPrice,
		})
	}

	subTotal, tax, total := s.builder.Totals(lines)

	buyOrder := utils.GenerateBuyOrder()
	sessionID := utils.GenerateSessionID()

	session, err := s.payments.Authorize(ctx, gateway.AuthorizeRequest{
		BuyOrder:  buyOrder,
		SessionID: sessionID,
		Amount:    total,
	})
	if err != nil {
		return nil, err
	}

	pending := &entity.PendingTransaction{
		Token:     session.Token,
		BuyOrder:  buyOrder,
		SessionID: sessionID,
		SubTotal:  subTotal,
		Tax:       tax,
		Total:     total,
		ExpiresAt: time.Now().Add(s.pendingTTL),
		Lines:     lines,
	}
	if err := s.pendingRepo.Put(ctx, pending); err != nil {
		return nil, err
	}

	return &BeginCheckoutResult{
		BuyOrder:    buyOrder,
		Token:       session.Token,
		RedirectURL: session.RedirectURL,
		SubTotal:    subTotal,
		Tax:         tax,
		Total:       total,
	}, nil
}
