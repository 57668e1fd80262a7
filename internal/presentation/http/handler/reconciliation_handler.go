package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/vendsur/caja-api/internal/application/service"
	"github.com/vendsur/caja-api/internal/domain/entity"
	"github.com/vendsur/caja-api/internal/domain/enum"
	"github.com/vendsur/caja-api/internal/domain/repository"
	"github.com/vendsur/caja-api/internal/presentation/http/dto/request"
	"github.com/vendsur/caja-api/internal/presentation/http/dto/response"
	"github.com/vendsur/caja-api/pkg/pagination"
)

// ReconciliationHandler exposes the operator queue and the manual
// resolution actions.
type ReconciliationHandler struct {
	reconciliationService *service.ReconciliationService
}

// NewReconciliationHandler creates a new reconciliation handler
func NewReconciliationHandler(reconciliationService *service.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{reconciliationService: reconciliationService}
}

// ListTasks handles listing queue tasks with kind/status filters
func (h *ReconciliationHandler) ListTasks(c *gin.Context) {
	params := &repository.TaskFilterParams{
		Pagination: pagination.DefaultPagination(),
	}
	if err := c.ShouldBindQuery(params.Pagination); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}
	if kindStr := c.Query("kind"); kindStr != "" {
		kind, err := enum.ParseTaskKind(kindStr)
		if err != nil {
			response.BadRequest(c, "Unknown task kind")
			return
		}
		params.Kind = &kind
	}
	if statusStr := c.Query("status"); statusStr != "" {
		status, err := enum.ParseTaskStatus(statusStr)
		if err != nil {
			response.BadRequest(c, "Unknown task status")
			return
		}
		params.Status = &status
	}

	tasks, total, err := h.reconciliationService.ListTasks(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	params.Pagination.Validate()
	result := pagination.NewPaginatedResult(tasks,
		pagination.NewPagination(params.Pagination.Page, params.Pagination.PerPage, total))
	response.SuccessWithPagination(c, 200, "Tasks retrieved successfully", result)
}

// GetTask returns one queue task
func (h *ReconciliationHandler) GetTask(c *gin.Context) {
	id, ok := ParseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid task ID")
		return
	}

	task, err := h.reconciliationService.GetTask(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Task retrieved successfully", task)
}

// ResolveAmbiguous triggers a gateway status query for an ambiguous
// payment and finishes the pipeline if the payment was captured
func (h *ReconciliationHandler) ResolveAmbiguous(c *gin.Context) {
	id, ok := ParseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid task ID")
		return
	}

	result, err := h.reconciliationService.ResolveAmbiguous(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, result.Message, result)
}

// CloseTask closes a task the operator handled out of band
func (h *ReconciliationHandler) CloseTask(c *gin.Context) {
	id, ok := ParseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid task ID")
		return
	}

	var req request.ResolveTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	if err := h.reconciliationService.CloseTask(c.Request.Context(), id, req.Note); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Task resolved", nil)
}

// ResubmitDocument replaces a rejected document's lines with corrected
// content and submits it again
func (h *ReconciliationHandler) ResubmitDocument(c *gin.Context) {
	id, ok := ParseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid document ID")
		return
	}

	var req request.ResubmitDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	lines := make([]entity.LineItem, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, entity.LineItem{
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
		})
	}

	doc, err := h.reconciliationService.ResubmitCorrected(c.Request.Context(), id, lines)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Document resubmitted", doc)
}
