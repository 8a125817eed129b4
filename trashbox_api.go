package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/kasmoni_backend/models"
)

func trashboxHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := models.ListTrashbox(c.Request.Context())
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}

func archiveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := models.ListArchive(c.Request.Context())
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}

// paymentAuditHandler returns the full trail for one payment id; it works
// for purged payments too, that's the point of keeping the trail.
func paymentAuditHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		entries, err := models.ListPaymentAudit(c.Request.Context(), id)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}

func auditTrailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0
		if raw := c.Query("first"); raw != "" {
			limit, _ = strconv.Atoi(raw)
		}
		var after *string
		if raw := c.Query("after"); raw != "" {
			after = &raw
		}

		conn, err := models.ListAuditTrail(c.Request.Context(), limit, after)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, conn)
	}
}
