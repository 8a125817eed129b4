package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/kasmoni_backend/models"
	"github.com/mmdatafocus/kasmoni_backend/utils"
)

// writeModelError maps the domain error kinds onto HTTP statuses. The kind
// travels in "code" so clients don't have to parse messages.
func writeModelError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error()})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "error": err.Error()})
	case errors.Is(err, models.ErrDuplicatePayment):
		c.JSON(http.StatusConflict, gin.H{"code": "duplicate_payment", "error": err.Error()})
	case errors.Is(err, models.ErrConflictingActiveRecord):
		c.JSON(http.StatusConflict, gin.H{"code": "conflicting_active_record", "error": err.Error()})
	case errors.Is(err, models.ErrInvalidTransition):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"code": "invalid_transition", "error": err.Error()})
	case errors.Is(err, models.ErrAuditWrite):
		// The mutation may have been rolled back or may have committed;
		// callers should alert, not assume silent success.
		c.JSON(http.StatusInternalServerError, gin.H{"code": "audit_write_failure", "error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "internal", "error": "internal error"})
	}
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": "invalid id"})
		return 0, false
	}
	return id, true
}

// monthQuery reads ?month=YYYY-MM, defaulting to the current calendar month.
func monthQuery(c *gin.Context) (models.MonthString, bool) {
	raw := c.Query("month")
	if raw == "" {
		return models.CurrentMonth(), true
	}
	month := models.MonthString(raw)
	if !month.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": "month must be YYYY-MM"})
		return "", false
	}
	return month, true
}

func intQuery(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func requireAdmin(c *gin.Context) bool {
	isAdmin, _ := utils.GetIsAdminFromContext(c.Request.Context())
	if !isAdmin {
		c.JSON(http.StatusForbidden, gin.H{"code": "forbidden", "error": "admin only"})
		return false
	}
	return true
}
