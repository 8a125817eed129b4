package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/kasmoni_backend/models"
)

func createMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.NewMember
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error()})
			return
		}
		member, err := models.CreateMember(c.Request.Context(), &req)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusCreated, member)
	}
}

func updateMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var req models.NewMember
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error()})
			return
		}
		member, err := models.UpdateMember(c.Request.Context(), id, &req)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, member)
	}
}

func getMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		member, err := models.GetMemberById(c.Request.Context(), id)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, member)
	}
}

func listMembersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		members, err := models.ListMembers(c.Request.Context())
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, members)
	}
}

func deleteMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		if err := models.DeleteMember(c.Request.Context(), id); err != nil {
			writeModelError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func createBankHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.NewBank
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error()})
			return
		}
		bank, err := models.CreateBank(c.Request.Context(), &req)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusCreated, bank)
	}
}

func listBanksHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		banks, err := models.ListBanks(c.Request.Context())
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, banks)
	}
}

func deleteBankHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		if err := models.DeleteBank(c.Request.Context(), id); err != nil {
			writeModelError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
