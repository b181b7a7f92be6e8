package handlers

import (
	"net/http"

	"github.com/arnavshah/covers-scheduler-api/pkg/models"
	"github.com/gin-gonic/gin"
)

// ValidateInput checks a scheduling request and reports the demand it would
// produce, without touching the staff directory.
func (h *Handler) ValidateInput(c *gin.Context) {
	var input models.ScheduleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"valid": false,
			"error": err.Error(),
		})
		return
	}

	window := input.Window()
	if !window.Valid() {
		c.JSON(http.StatusOK, gin.H{
			"valid": false,
			"error": "shift_start must be before shift_end",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":  true,
		"demand": h.Planner.Plan(*input.Covers),
		"stats": gin.H{
			"covers":      *input.Covers,
			"shift_hours": window.End.Sub(window.Start).Hours(),
		},
	})
}
