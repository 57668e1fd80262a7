package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/vendsur/caja-api/internal/config"
	"github.com/vendsur/caja-api/internal/domain/entity"
	"github.com/vendsur/caja-api/internal/domain/enum"
	domainGateway "github.com/vendsur/caja-api/internal/domain/gateway"
	"github.com/vendsur/caja-api/pkg/apperror"
)

// WebpayClient adapts a Webpay-style card payment REST API. All the
// loosely-typed JSON the gateway speaks is parsed into the normalized
// AuthorizedPayment here; nothing downstream sees raw gateway responses.
type WebpayClient struct {
	baseURL      string
	commerceCode string
	apiKey       string
	returnURL    string
	httpClient   *http.Client
}

// NewWebpayClient creates a payment gateway client from configuration
func NewWebpayClient(cfg *config.WebpayConfig) *WebpayClient {
	return &WebpayClient{
		baseURL:      cfg.BaseURL,
		commerceCode: cfg.CommerceCode,
		apiKey:       cfg.APIKey,
		returnURL:    cfg.ReturnURL,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
	}
}

var _ domainGateway.PaymentGateway = (*WebpayClient)(nil)

type createTransactionRequest struct {
	BuyOrder  string `json:"buy_order"`
	SessionID string `json:"session_id"`
	Amount    int64  `json:"amount"`
	ReturnURL string `json:"return_url"`
}

type createTransactionResponse struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

// commitResponse mirrors the gateway's transaction payload. The same
// shape comes back from both the commit and the status endpoints.
type commitResponse struct {
	BuyOrder          string  `json:"buy_order"`
	SessionID         string  `json:"session_id"`
	Amount            float64 `json:"amount"`
	Status            string  `json:"status"`
	ResponseCode      *int    `json:"response_code"`
	AuthorizationCode string  `json:"authorization_code"`
	CardDetail        struct {
		CardNumber string `json:"card_number"`
	} `json:"card_detail"`
	TransactionDate string `json:"transaction_date"`
}

// Authorize begins a payment attempt. Never retried: a duplicate call
// would open a second attempt at the gateway.
func (c *WebpayClient) Authorize(ctx context.Context, req domainGateway.AuthorizeRequest) (*domainGateway.PaymentSession, error) {
	body := createTransactionRequest{
		BuyOrder:  req.BuyOrder,
		SessionID: req.SessionID,
		Amount:    req.Amount,
		ReturnURL: c.returnURL,
	}

	resp, err := c.do(ctx, http.MethodPost, "/transactions", body)
	if err != nil {
		return nil, fmt.Errorf("webpay authorize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperror.NewAppError(http.StatusBadGateway,
			fmt.Sprintf("payment gateway refused to open transaction (%d)", resp.StatusCode))
	}

	var out createTransactionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("webpay authorize: decoding response: %w", err)
	}
	return &domainGateway.PaymentSession{Token: out.Token, RedirectURL: out.URL}, nil
}

// Commit finalizes a payment after the payer returns. The gateway only
// allows one commit per token; a replayed commit answers 409/422 and is
// resolved through the side-effect-free status endpoint instead. Any
// transport-level failure leaves the outcome unknown and is surfaced as
// ErrPaymentAmbiguous — retrying a commit that actually succeeded could
// double-charge, so the caller must query, not retry.
func (c *WebpayClient) Commit(ctx context.Context, token string) (*entity.AuthorizedPayment, error) {
	resp, err := c.do(ctx, http.MethodPut, "/transactions/"+token, nil)
	if err != nil {
		if isAmbiguousTransport(err) {
			return nil, apperror.ErrPaymentAmbiguous
		}
		return nil, fmt.Errorf("webpay commit: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return c.parsePayment(resp.Body)
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity:
		// Already committed (browser refresh, crash replay). The status
		// endpoint returns the settled result without side effects.
		return c.Status(ctx, token)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperror.NewAppError(http.StatusBadGateway,
			fmt.Sprintf("payment gateway commit failed (%d): %s", resp.StatusCode, body))
	}
}

// Status queries the settled outcome of a payment attempt
func (c *WebpayClient) Status(ctx context.Context, token string) (*entity.AuthorizedPayment, error) {
	resp, err := c.do(ctx, http.MethodGet, "/transactions/"+token, nil)
	if err != nil {
		if isAmbiguousTransport(err) {
			return nil, apperror.ErrPaymentAmbiguous
		}
		return nil, fmt.Errorf("webpay status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperror.NewAppError(http.StatusBadGateway,
			fmt.Sprintf("payment gateway status query failed (%d)", resp.StatusCode))
	}
	return c.parsePayment(resp.Body)
}

func (c *WebpayClient) parsePayment(body io.Reader) (*entity.AuthorizedPayment, error) {
	var out commitResponse
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		return nil, fmt.Errorf("webpay: decoding transaction: %w", err)
	}

	payment := &entity.AuthorizedPayment{
		BuyOrder:          out.BuyOrder,
		SessionID:         out.SessionID,
		Amount:            int64(out.Amount),
		AuthorizationCode: out.AuthorizationCode,
		CardNumber:        out.CardDetail.CardNumber,
	}

	if out.TransactionDate != "" {
		if ts, err := time.Parse(time.RFC3339, out.TransactionDate); err == nil {
			payment.TransactionDate = ts
		}
	}
	if payment.TransactionDate.IsZero() {
		payment.TransactionDate = time.Now()
	}

	// response_code 0 with status AUTHORIZED means the money moved;
	// everything else the gateway can express is a decline.
	if out.ResponseCode != nil && *out.ResponseCode == 0 && out.Status == "AUTHORIZED" {
		payment.Status = enum.PaymentStatusAuthorized
	} else {
		payment.Status = enum.PaymentStatusFailed
	}
	return payment, nil
}

func (c *WebpayClient) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Tbk-Api-Key-Id", c.commerceCode)
	req.Header.Set("Tbk-Api-Key-Secret", c.apiKey)

	return c.httpClient.Do(req)
}

// isAmbiguousTransport reports whether the request may have reached the
// gateway even though we never saw an answer.
func isAmbiguousTransport(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// url.Error wrapping a closed/reset connection: the request may have
	// been in flight. Treat conservatively.
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}
