package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/huangang/ticketflow/backend/internal/services"
	"github.com/huangang/ticketflow/backend/pkg/response"
)

// TicketHandler exposes the read-only admin API over ticket records.
type TicketHandler struct {
	tickets *services.TicketService
}

func NewTicketHandler(tickets *services.TicketService) *TicketHandler {
	return &TicketHandler{tickets: tickets}
}

// List returns paginated ticket records with optional filters.
func (h *TicketHandler) List(c *gin.Context) {
	var req services.TicketListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	result, err := h.tickets.List(&req)
	if err != nil {
		response.ServerError(c, "Failed to list tickets: "+err.Error())
		return
	}

	response.Success(c, result)
}

// GetByID returns a single ticket record.
func (h *TicketHandler) GetByID(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "Invalid ticket ID")
		return
	}

	ticket, err := h.tickets.GetByID(uint(id))
	if err != nil {
		response.NotFound(c, "Ticket not found")
		return
	}

	response.Success(c, ticket)
}
