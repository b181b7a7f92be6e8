package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/arnavshah/covers-scheduler-api/pkg/errs"
	"github.com/arnavshah/covers-scheduler-api/pkg/metrics"
	"github.com/arnavshah/covers-scheduler-api/pkg/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Schedule staffs a shift for a covers count and queues confirmations
func (h *Handler) Schedule(c *gin.Context) {
	var input models.ScheduleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	window := input.Window()
	if !window.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "shift_start must be before shift_end"})
		return
	}

	start := time.Now()
	result, err := h.Scheduler.Schedule(c.Request.Context(), *input.Covers, window)
	metrics.ScheduleDurationSeconds.Observe(time.Since(start).Seconds())
	observeSchedule(result)

	queued := 0
	if h.Notifier != nil && len(result.Notifications) > 0 {
		queued = h.Notifier.Dispatch(result.Notifications)
	}
	h.RecordUsage(c, 0, *input.Covers, result.MatchedCount())

	resp := models.ScheduleResponse{
		Scheduled:           result.Scheduled,
		Unfilled:            result.Unfilled,
		Failures:            result.Failures,
		NotificationsQueued: queued,
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errs.ErrDirectoryUnavailable) {
			status = http.StatusServiceUnavailable
		}
		h.Log.Error("scheduling incomplete", zap.Int("covers", *input.Covers), zap.Error(err))
		resp.Error = "Staff directory unavailable for some roles"
		c.JSON(status, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func observeSchedule(result *models.ScheduleResult) {
	for _, role := range models.Roles {
		r := string(role)
		metrics.StaffDemanded.WithLabelValues(r).Add(float64(result.Demand[role]))
		metrics.StaffMatched.WithLabelValues(r).Add(float64(len(result.Scheduled[role])))
		metrics.StaffUnfilled.WithLabelValues(r).Add(float64(result.Unfilled[role]))
	}
	for _, f := range result.Failures {
		metrics.DirectoryErrors.WithLabelValues(string(f.Role)).Inc()
	}
}
