package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huangang/ticketflow/backend/internal/models"
)

// Health reports service and database liveness.
func Health(c *gin.Context) {
	dbStatus := "ok"
	if db := models.GetDB(); db != nil {
		if sqlDB, err := db.DB(); err != nil || sqlDB.Ping() != nil {
			dbStatus = "error"
		}
	} else {
		dbStatus = "uninitialized"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"database": dbStatus,
	})
}
