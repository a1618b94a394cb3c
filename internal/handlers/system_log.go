package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/ticketflow/backend/internal/services"
	"github.com/huangang/ticketflow/backend/pkg/response"
)

type SystemLogHandler struct {
	logs *services.SystemLogService
}

func NewSystemLogHandler(logs *services.SystemLogService) *SystemLogHandler {
	return &SystemLogHandler{logs: logs}
}

// List returns paginated system log entries.
func (h *SystemLogHandler) List(c *gin.Context) {
	var req services.SystemLogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	result, err := h.logs.List(&req)
	if err != nil {
		response.ServerError(c, "Failed to list system logs: "+err.Error())
		return
	}

	response.Success(c, result)
}
