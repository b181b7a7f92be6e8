package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/arnavshah/covers-scheduler-api/pkg/errs"
	"github.com/arnavshah/covers-scheduler-api/pkg/models"
)

// AvailabilityQuery asks a directory for staff of Role available for the whole Window
type AvailabilityQuery struct {
	Role   models.Role
	Window models.ShiftWindow
	Limit  int
}

// Directory is the staff store the matcher reads from. Results come back in
// storage order and hold at most Limit entries.
type Directory interface {
	FindAvailable(ctx context.Context, q AvailabilityQuery) ([]models.Contact, error)
}

// Eligible reports whether a staff member can work the shift window in the given role.
// The availability window is a daily time-of-day range bounded by a date range, and
// both must contain the shift.
func Eligible(member models.StaffMember, role models.Role, window models.ShiftWindow) bool {
	if member.Role != role {
		return false
	}
	if clock(member.AvailableStart) > clock(window.Start) || clock(member.AvailableEnd) < clock(window.End) {
		return false
	}
	return day(member.AvailableStart) <= day(window.Start) && day(member.AvailableEnd) >= day(window.End)
}

func clock(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}

func day(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// Matcher selects available staff for a role up to a quota
type Matcher struct {
	dir Directory
}

// NewMatcher creates a matcher reading from dir
func NewMatcher(dir Directory) *Matcher {
	return &Matcher{dir: dir}
}

// Match returns at most needed contacts eligible for the window. Finding fewer
// than needed is not an error.
func (m *Matcher) Match(ctx context.Context, role models.Role, window models.ShiftWindow, needed int) ([]models.Contact, error) {
	if needed <= 0 {
		return []models.Contact{}, nil
	}

	contacts, err := m.dir.FindAvailable(ctx, AvailabilityQuery{Role: role, Window: window, Limit: needed})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrDirectoryUnavailable, err)
	}
	if len(contacts) > needed {
		contacts = contacts[:needed]
	}
	if contacts == nil {
		contacts = []models.Contact{}
	}
	return contacts, nil
}

// MemoryDirectory is a Directory over an in-memory slice, queried in slice order
type MemoryDirectory struct {
	Staff []models.StaffMember
}

// FindAvailable implements Directory
func (d *MemoryDirectory) FindAvailable(ctx context.Context, q AvailabilityQuery) ([]models.Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []models.Contact
	for _, member := range d.Staff {
		if len(out) >= q.Limit {
			break
		}
		if Eligible(member, q.Role, q.Window) {
			out = append(out, models.Contact{Name: member.Name, Phone: member.Phone})
		}
	}
	return out, nil
}
