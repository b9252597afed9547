package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/sangkips/tillsync/internal/application/service"
	"github.com/sangkips/tillsync/internal/domain/enum"
	"github.com/sangkips/tillsync/internal/presentation/http/dto/request"
	"github.com/sangkips/tillsync/internal/presentation/http/dto/response"
	"github.com/sangkips/tillsync/pkg/pagination"
)

// SyncHandler exposes the sync queue and the orchestrator
type SyncHandler struct {
	syncService *service.SyncService
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(syncService *service.SyncService) *SyncHandler {
	return &SyncHandler{syncService: syncService}
}

// Status reports connectivity, queue counts and the last cycle
func (h *SyncHandler) Status(c *gin.Context) {
	status, err := h.syncService.Status(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Sync status retrieved successfully", status)
}

// ListEntries lists queue entries, oldest first
func (h *SyncHandler) ListEntries(c *gin.Context) {
	var filter request.EntryFilterRequest
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	var status *enum.SyncStatus
	if filter.Status != "" {
		s, err := enum.ParseSyncStatus(filter.Status)
		if err != nil {
			response.BadRequest(c, "Invalid status filter")
			return
		}
		status = &s
	}

	params := &pagination.PaginationParams{Page: filter.Page, PerPage: filter.PerPage}
	params.Validate()

	entries, total, err := h.syncService.ListEntries(c.Request.Context(), status, params)
	if err != nil {
		response.Error(c, err)
		return
	}

	result := pagination.NewPaginatedResult(entries, pagination.NewPagination(params.Page, params.PerPage, total))
	response.SuccessWithPagination(c, 200, "Sync entries retrieved successfully", result)
}

// GetEntry returns one queue entry
func (h *SyncHandler) GetEntry(c *gin.Context) {
	entry, err := h.syncService.GetEntry(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Sync entry retrieved successfully", entry)
}

// Resubmit moves an entry back to pending with a fresh attempt budget
func (h *SyncHandler) Resubmit(c *gin.Context) {
	entry, err := h.syncService.ResubmitEntry(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Sync entry resubmitted successfully", entry)
}

// Run executes one sync cycle and returns its outcome
func (h *SyncHandler) Run(c *gin.Context) {
	result, err := h.syncService.RunCycle(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Sync cycle completed", result)
}
