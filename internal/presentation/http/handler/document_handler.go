package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/vendsur/caja-api/internal/application/service"
	"github.com/vendsur/caja-api/internal/domain/enum"
	"github.com/vendsur/caja-api/internal/domain/repository"
	"github.com/vendsur/caja-api/internal/presentation/http/dto/response"
	"github.com/vendsur/caja-api/pkg/pagination"
)

// DocumentHandler handles fiscal document read requests
type DocumentHandler struct {
	documentService *service.DocumentService
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(documentService *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

// List handles listing documents with status and buy-order filters
func (h *DocumentHandler) List(c *gin.Context) {
	params := &repository.DocumentFilterParams{
		Pagination: pagination.DefaultPagination(),
		BuyOrder:   c.Query("buy_order"),
	}
	if err := c.ShouldBindQuery(params.Pagination); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}
	if statusStr := c.Query("status"); statusStr != "" {
		status, err := enum.ParseDocumentStatus(statusStr)
		if err != nil {
			response.BadRequest(c, "Unknown document status")
			return
		}
		params.Status = &status
	}

	docs, total, err := h.documentService.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	params.Pagination.Validate()
	result := pagination.NewPaginatedResult(docs,
		pagination.NewPagination(params.Pagination.Page, params.Pagination.PerPage, total))
	response.SuccessWithPagination(c, 200, "Documents retrieved successfully", result)
}

// Get returns one document by id
func (h *DocumentHandler) Get(c *gin.Context) {
	id, ok := ParseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid document ID")
		return
	}

	doc, err := h.documentService.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Document retrieved successfully", doc)
}

// GetByBuyOrder resolves a buy order to its document through the ledger
func (h *DocumentHandler) GetByBuyOrder(c *gin.Context) {
	buyOrder := c.Param("buyOrder")
	if buyOrder == "" {
		response.BadRequest(c, "Missing buy order")
		return
	}

	doc, err := h.documentService.GetByBuyOrder(c.Request.Context(), buyOrder)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Document retrieved successfully", doc)
}
