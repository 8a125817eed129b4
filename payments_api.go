package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/kasmoni_backend/models"
)

func createPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.NewPayment
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error()})
			return
		}

		payment, err := models.CreatePayment(c.Request.Context(), &req)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusCreated, payment)
	}
}

func updatePaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var req models.UpdatePaymentInput
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error()})
			return
		}

		payment, err := models.UpdatePayment(c.Request.Context(), id, &req)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, payment)
	}
}

func getPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		payment, err := models.GetPaymentById(c.Request.Context(), id)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, payment)
	}
}

func listPaymentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.PaymentFilter
		if v, ok := intQuery(c, "group_id"); ok {
			filter.GroupId = &v
		}
		if v, ok := intQuery(c, "member_id"); ok {
			filter.MemberId = &v
		}
		if raw := c.Query("month"); raw != "" {
			month := models.MonthString(raw)
			if !month.Valid() {
				c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": "month must be YYYY-MM"})
				return
			}
			filter.Month = &month
		}

		payments, err := models.ListPayments(c.Request.Context(), filter)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, payments)
	}
}

type transitionRequest struct {
	Details string `json:"details"`
	Reason  string `json:"reason"`
}

func trashPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var req transitionRequest
		_ = c.ShouldBindJSON(&req)

		payment, err := models.TrashPayment(c.Request.Context(), id, req.Details)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, payment)
	}
}

func restorePaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		payment, err := models.RestorePayment(c.Request.Context(), id)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, payment)
	}
}

func archivePaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var req transitionRequest
		_ = c.ShouldBindJSON(&req)

		payment, err := models.ArchivePayment(c.Request.Context(), id, req.Reason)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, payment)
	}
}

func trashArchivedHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var req transitionRequest
		_ = c.ShouldBindJSON(&req)

		payment, err := models.TrashArchivedPayment(c.Request.Context(), id, req.Details)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, payment)
	}
}

func purgePaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		if err := models.PurgePayment(c.Request.Context(), id); err != nil {
			writeModelError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type bulkRequest struct {
	Ids     []int  `json:"ids" binding:"required"`
	Details string `json:"details"`
	Reason  string `json:"reason"`
}

func bulkTrashHandler() gin.HandlerFunc {
	return bulkHandler(func(c *gin.Context, req *bulkRequest) ([]models.BulkResult, error) {
		return models.BulkTrashPayments(c.Request.Context(), req.Ids, req.Details)
	})
}

func bulkRestoreHandler() gin.HandlerFunc {
	return bulkHandler(func(c *gin.Context, req *bulkRequest) ([]models.BulkResult, error) {
		return models.BulkRestorePayments(c.Request.Context(), req.Ids)
	})
}

func bulkArchiveHandler() gin.HandlerFunc {
	return bulkHandler(func(c *gin.Context, req *bulkRequest) ([]models.BulkResult, error) {
		return models.BulkArchivePayments(c.Request.Context(), req.Ids, req.Reason)
	})
}

func bulkPurgeHandler() gin.HandlerFunc {
	return bulkHandler(func(c *gin.Context, req *bulkRequest) ([]models.BulkResult, error) {
		return models.BulkPurgePayments(c.Request.Context(), req.Ids)
	})
}

// bulkHandler reports per-item outcomes with 200 even on partial failure;
// only a missing body or a failed summary audit write is an error.
func bulkHandler(op func(c *gin.Context, req *bulkRequest) ([]models.BulkResult, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req bulkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": "ids are required"})
			return
		}

		results, err := op(c, &req)
		if err != nil {
			writeModelError(c, err)
			return
		}

		succeeded := 0
		for _, r := range results {
			if r.Ok() {
				succeeded++
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"results":   results,
			"succeeded": succeeded,
			"failed":    len(results) - succeeded,
		})
	}
}
