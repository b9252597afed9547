package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/sangkips/tillsync/internal/presentation/http/dto/request"
	"github.com/sangkips/tillsync/internal/presentation/http/dto/response"
	"github.com/sangkips/tillsync/pkg/connectivity"
)

// ConnectivityHandler lets the host push its online/offline signal
type ConnectivityHandler struct {
	publisher *connectivity.Publisher
}

// NewConnectivityHandler creates a new connectivity handler
func NewConnectivityHandler(publisher *connectivity.Publisher) *ConnectivityHandler {
	return &ConnectivityHandler{publisher: publisher}
}

// Get returns the current state
func (h *ConnectivityHandler) Get(c *gin.Context) {
	response.OK(c, "Connectivity retrieved successfully", gin.H{"online": h.publisher.Online()})
}

// Set publishes a new state
func (h *ConnectivityHandler) Set(c *gin.Context) {
	var req request.ConnectivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	changed := h.publisher.Set(*req.Online)
	response.OK(c, "Connectivity updated successfully", gin.H{
		"online":  *req.Online,
		"changed": changed,
	})
}
