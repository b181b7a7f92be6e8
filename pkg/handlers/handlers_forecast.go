package handlers

import (
	"errors"
	"net/http"

	"github.com/arnavshah/covers-scheduler-api/pkg/errs"
	"github.com/arnavshah/covers-scheduler-api/pkg/metrics"
	"github.com/arnavshah/covers-scheduler-api/pkg/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Predict forecasts covers for a date and hour and the staff they require
func (h *Handler) Predict(c *gin.Context) {
	var input models.ForecastInput
	if err := c.ShouldBindJSON(&input); err != nil {
		metrics.ForecastsTotal.WithLabelValues("malformed").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.Forecaster.Forecast(c.Request.Context(), input.Date, int(*input.Hour))
	switch {
	case errors.Is(err, errs.ErrFeatureNotFound):
		metrics.ForecastsTotal.WithLabelValues("not_found").Inc()
		c.JSON(http.StatusNotFound, gin.H{"error": "No features found for this date and hour"})
		return
	case errors.Is(err, errs.ErrMalformedInput):
		metrics.ForecastsTotal.WithLabelValues("malformed").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		metrics.ForecastsTotal.WithLabelValues("error").Inc()
		h.Log.Error("forecast failed", zap.String("date", input.Date), zap.Int("hour", int(*input.Hour)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Forecast failed"})
		return
	}

	metrics.ForecastsTotal.WithLabelValues("ok").Inc()
	h.RecordUsage(c, 1, result.Covers, 0)
	c.JSON(http.StatusOK, result)
}
