package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/vendsur/caja-api/internal/config"
	"github.com/vendsur/caja-api/internal/domain/entity"
	domainGateway "github.com/vendsur/caja-api/internal/domain/gateway"
	"github.com/vendsur/caja-api/pkg/apperror"
	"golang.org/x/oauth2/clientcredentials"
)

// TaxAuthorityClient adapts the tax authority's document submission REST
// API. Failure classification happens here and nowhere else: the rest of
// the pipeline only ever sees Transient or Rejected.
type TaxAuthorityClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewTaxAuthorityClient creates a tax authority client. The authority's
// API is token-protected; the client-credentials token source refreshes
// transparently under the returned http.Client.
func NewTaxAuthorityClient(cfg *config.TaxAuthorityConfig) *TaxAuthorityClient {
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}

	httpClient := cc.Client(context.Background())
	httpClient.Timeout = cfg.Timeout

	return &TaxAuthorityClient{
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
	}
}

var _ domainGateway.TaxAuthority = (*TaxAuthorityClient)(nil)

type submitDocumentRequest struct {
	BuyOrder        string              `json:"referencia"`
	TransactionDate string              `json:"fecha_emision"`
	SubTotal        int64               `json:"monto_neto"`
	Tax             int64               `json:"monto_iva"`
	Total           int64               `json:"monto_total"`
	Lines           []submitDocumentRow `json:"detalle"`
}

type submitDocumentRow struct {
	Description string `json:"descripcion"`
	Quantity    int    `json:"cantidad"`
	UnitPrice   int64  `json:"precio_unitario"`
	Total       int64  `json:"monto"`
}

type submitDocumentResponse struct {
	TrackID string `json:"track_id"`
}

type statusResponse struct {
	Estado string `json:"estado"` // "ACEPTADO" | "RECHAZADO" | "EN_PROCESO"
	Folio  int64  `json:"folio"`
	Glosa  string `json:"glosa"` // Human-readable detail on rejection
}

// Submit sends a built document. 5xx and transport failures are
// transient; a 4xx is the authority saying the content itself is
// invalid, which no retry will fix.
func (c *TaxAuthorityClient) Submit(ctx context.Context, doc *entity.FiscalDocument) (string, error) {
	rows := make([]submitDocumentRow, 0, len(doc.Lines))
	for _, l := range doc.Lines {
		rows = append(rows, submitDocumentRow{
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Total:       l.Total,
		})
	}

	body := submitDocumentRequest{
		BuyOrder:        doc.BuyOrder,
		TransactionDate: doc.TransactionDate.Format("2006-01-02"),
		SubTotal:        doc.SubTotal,
		Tax:             doc.Tax,
		Total:           doc.Total,
		Lines:           rows,
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("tax submit: encoding document: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/documents", bytes.NewReader(encoded))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The document may or may not have arrived; safe to retry because
		// the authority dedupes on referencia.
		return "", apperror.TransientSubmission(err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var out submitDocumentResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", apperror.TransientSubmission("decoding submit response: " + err.Error())
		}
		return out.TrackID, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", apperror.TransientSubmission(fmt.Sprintf("authority answered %d", resp.StatusCode))
	default:
		reason, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", apperror.RejectedSubmission(string(reason))
	}
}

// QueryStatus reports the authority's verdict for a submission
func (c *TaxAuthorityClient) QueryStatus(ctx context.Context, trackID string) (*domainGateway.SubmissionStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/documents/"+trackID+"/status", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperror.TransientSubmission(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperror.TransientSubmission(fmt.Sprintf("status query answered %d", resp.StatusCode))
	}

	var out statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperror.TransientSubmission("decoding status response: " + err.Error())
	}

	status := &domainGateway.SubmissionStatus{}
	switch out.Estado {
	case "ACEPTADO":
		status.State = domainGateway.SubmissionAccepted
		status.Folio = out.Folio
	case "RECHAZADO":
		status.State = domainGateway.SubmissionRejected
		status.Reason = out.Glosa
	default:
		status.State = domainGateway.SubmissionPending
	}
	return status, nil
}
