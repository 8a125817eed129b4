package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/kasmoni_backend/models"
	"github.com/mmdatafocus/kasmoni_backend/utils"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": "username and password are required"})
			return
		}

		token, user, err := models.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			// Wrong username and wrong password look the same to the client.
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusUnauthorized, gin.H{"code": "unauthorized", "error": "invalid credentials"})
				return
			}
			writeModelError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
	}
}

func createUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireAdmin(c) {
			return
		}

		var req models.NewUser
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error()})
			return
		}

		user, err := models.CreateUser(c.Request.Context(), &req)
		if err != nil {
			writeModelError(c, err)
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}
