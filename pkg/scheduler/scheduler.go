package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/arnavshah/covers-scheduler-api/pkg/errs"
	"github.com/arnavshah/covers-scheduler-api/pkg/models"
	"go.uber.org/zap"
)

// Scheduler turns a covers count into a staffed shift
type Scheduler struct {
	planner *Planner
	matcher *Matcher
	log     *zap.Logger
}

// NewScheduler creates a new scheduler instance
func NewScheduler(planner *Planner, matcher *Matcher, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{planner: planner, matcher: matcher, log: log}
}

// ConfirmationMessage is the text sent to each scheduled staff member
func ConfirmationMessage(name string, window models.ShiftWindow) string {
	return fmt.Sprintf("Hi %s, you're scheduled on %s to %s. Reply YES to confirm.",
		name, window.Start.Format(models.TimestampLayout), window.End.Format(models.TimestampLayout))
}

// Schedule plans demand for covers and fills each role from the directory.
// Every role is attempted. The result is always returned; the error joins the
// failures of any roles whose directory query failed.
func (s *Scheduler) Schedule(ctx context.Context, covers int, window models.ShiftWindow) (*models.ScheduleResult, error) {
	demand := s.planner.Plan(covers)
	result := &models.ScheduleResult{
		Window:    window,
		Demand:    demand,
		Scheduled: make(map[models.Role][]string, len(models.Roles)),
		Unfilled:  make(map[models.Role]int),
	}

	var failures []error
	for _, role := range models.Roles {
		needed := demand[role]
		result.Scheduled[role] = []string{}

		matched, err := s.matcher.Match(ctx, role, window, needed)
		if err != nil {
			s.log.Warn("role could not be scheduled", zap.String("role", string(role)), zap.Error(err))
			result.Failures = append(result.Failures, models.RoleFailure{Role: role, Reason: err.Error()})
			if needed > 0 {
				result.Unfilled[role] = needed
			}
			failures = append(failures, &errs.RoleError{Role: string(role), Err: err})
			continue
		}

		for _, c := range matched {
			result.Scheduled[role] = append(result.Scheduled[role], c.Name)
			result.Notifications = append(result.Notifications, models.Notification{
				Name:    c.Name,
				Phone:   c.Phone,
				Role:    role,
				Message: ConfirmationMessage(c.Name, window),
			})
		}
		if short := needed - len(matched); short > 0 {
			result.Unfilled[role] = short
		}

		s.log.Debug("role scheduled",
			zap.String("role", string(role)),
			zap.Int("needed", needed),
			zap.Int("matched", len(matched)),
		)
	}

	return result, errors.Join(failures...)
}
