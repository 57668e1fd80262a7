package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/vendsur/caja-api/internal/application/service"
	"github.com/vendsur/caja-api/internal/presentation/http/dto/request"
	"github.com/vendsur/caja-api/internal/presentation/http/dto/response"
)

// PaymentCompleter is the slice of the reconciliation service the
// payment-return endpoint depends on
type PaymentCompleter interface {
	CompletePayment(ctx context.Context, token string) (*service.CompletePaymentResult, error)
}

// CheckoutHandler handles the checkout flow: begin (cart → gateway
// redirect) and the payment-return callback.
type CheckoutHandler struct {
	checkoutService *service.CheckoutService
	completer       PaymentCompleter
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(checkoutService *service.CheckoutService, completer PaymentCompleter) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
		completer:       completer,
	}
}

// Begin prices a cart and opens a payment attempt
func (h *CheckoutHandler) Begin(c *gin.Context) {
	var req request.BeginCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	items := make([]service.CartItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.CartItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	result, err := h.checkoutService.Begin(c.Request.Context(), items)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Checkout started", result)
}

// Return handles the payer coming back from the gateway. The gateway
// posts/redirects with token_ws on success paths and TBK_TOKEN when the
// payer aborted on the payment page.
func (h *CheckoutHandler) Return(c *gin.Context) {
	if aborted := firstParam(c, "TBK_TOKEN"); aborted != "" {
		response.OK(c, "Payment was cancelled by the payer", gin.H{
			"outcome": service.OutcomePaymentFailed.String(),
		})
		return
	}

	token := firstParam(c, "token_ws")
	if token == "" {
		response.BadRequest(c, "Missing payment token")
		return
	}

	result, err := h.completer.CompletePayment(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}

	status := 200
	if result.Outcome == service.OutcomeUnconfirmed {
		status = 202
	}
	response.Success(c, status, result.Message, result)
}

// firstParam reads a value from the query string or the form body; the
// gateway uses GET or POST depending on the flow.
func firstParam(c *gin.Context, name string) string {
	if v := c.Query(name); v != "" {
		return v
	}
	return c.PostForm(name)
}
