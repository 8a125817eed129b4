package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/kasmoni_backend/models"
	"github.com/mmdatafocus/kasmoni_backend/utils"
)

func createGroupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.NewGroup
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error()})
			return
		}
		group, err := models.CreateGroup(c.Request.Context(), &req)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusCreated, group)
	}
}

func updateGroupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var req models.NewGroup
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error()})
			return
		}
		group, err := models.UpdateGroup(c.Request.Context(), id, &req)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, group)
	}
}

func getGroupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		group, err := models.GetGroupById(c.Request.Context(), id)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, group)
	}
}

func listGroupsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		groups, err := models.ListGroups(c.Request.Context())
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, groups)
	}
}

func deleteGroupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		if err := models.DeleteGroup(c.Request.Context(), id); err != nil {
			writeModelError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// groupStatusHandler returns one group's derived status for the reference
// month (?month=YYYY-MM, default current).
func groupStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		month, ok := monthQuery(c)
		if !ok {
			return
		}
		status, err := models.GetGroupStatus(c.Request.Context(), id, month)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

func groupStatusesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		month, ok := monthQuery(c)
		if !ok {
			return
		}
		statuses, err := models.ListGroupStatuses(c.Request.Context(), month)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, statuses)
	}
}

func dashboardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		month, ok := monthQuery(c)
		if !ok {
			return
		}
		summary, err := models.GetDashboardSummary(c.Request.Context(), month)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func listGroupSlotsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		slots, err := models.ListGroupSlots(c.Request.Context(), id)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, slots)
	}
}

// currentRecipientHandler combines the group's status with whoever holds
// the reference month's slot. Both come from the same aggregation path, so
// this view always matches the group list.
func currentRecipientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		month, ok := monthQuery(c)
		if !ok {
			return
		}

		status, err := models.GetGroupStatus(c.Request.Context(), id, month)
		if err != nil {
			writeModelError(c, err)
			return
		}

		recipient, err := models.CurrentRecipient(c.Request.Context(), id, month)
		if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
			writeModelError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    status,
			"recipient": recipient,
		})
	}
}

func createSlotHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.NewSlot
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error()})
			return
		}
		slot, err := models.CreateSlot(c.Request.Context(), &req)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusCreated, slot)
	}
}

func updateSlotHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var req models.NewSlot
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error()})
			return
		}
		slot, err := models.UpdateSlot(c.Request.Context(), id, &req)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, slot)
	}
}

func deleteSlotHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		if err := models.DeleteSlot(c.Request.Context(), id); err != nil {
			writeModelError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
