package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/arnavshah/covers-scheduler-api/pkg/database"
	"github.com/arnavshah/covers-scheduler-api/pkg/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ListStaff returns the staff directory, optionally filtered by ?role=
func (h *Handler) ListStaff(c *gin.Context) {
	staff, err := database.ListStaff(c.Request.Context(), h.DB, strings.ToLower(c.Query("role")))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not list staff"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"staff": staff})
}

// CreateStaff adds one staff member
func (h *Handler) CreateStaff(c *gin.Context) {
	var req struct {
		Name           string            `json:"name" binding:"required"`
		Phone          string            `json:"phone" binding:"required"`
		Role           string            `json:"role" binding:"required"`
		AvailableStart *models.Timestamp `json:"available_start" binding:"required"`
		AvailableEnd   *models.Timestamp `json:"available_end" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	member, err := database.NewStaffRecord(req.Name, req.Phone, models.Role(strings.ToLower(req.Role)),
		req.AvailableStart.Time, req.AvailableEnd.Time)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := database.CreateStaff(c.Request.Context(), h.DB, &member); err != nil {
		h.Log.Error("create staff failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create staff member"})
		return
	}
	c.JSON(http.StatusCreated, member)
}

// DeleteStaff removes a staff member by id
func (h *Handler) DeleteStaff(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid staff id"})
		return
	}
	err = database.DeleteStaff(c.Request.Context(), h.DB, uint(id))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Staff member not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not delete staff member"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Staff member removed"})
}

// ImportStaffCSV loads staff from an uploaded staff_file
func (h *Handler) ImportStaffCSV(c *gin.Context) {
	header, err := c.FormFile("staff_file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "staff_file is required"})
		return
	}
	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open staff file"})
		return
	}
	defer f.Close()

	n, err := database.ImportStaffCSV(c.Request.Context(), h.DB, f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.Log.Info("staff imported", zap.Int("count", n), zap.String("file", header.Filename))
	c.JSON(http.StatusOK, gin.H{"imported": n})
}
