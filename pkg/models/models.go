package models

import "time"

// Role is a staffing category with a fixed covers-to-headcount ratio
type Role string

const (
	RoleWaiter  Role = "waiter"
	RoleChef    Role = "chef"
	RoleCleaner Role = "cleaner"
)

// Roles is the fixed order roles are planned and scheduled in
var Roles = []Role{RoleWaiter, RoleChef, RoleCleaner}

// Valid reports whether r belongs to the closed role set
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// StaffDemand maps each role to the headcount required
type StaffDemand map[Role]int

// StaffMember is a directory entry with a recurring daily availability
// window bounded by the dates of AvailableStart and AvailableEnd.
type StaffMember struct {
	ID             uint      `json:"id"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone"`
	Role           Role      `json:"role"`
	AvailableStart time.Time `json:"available_start"`
	AvailableEnd   time.Time `json:"available_end"`
}

// Contact is the (name, phone) pair returned by a directory query
type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// ShiftWindow is the requested (start, end) pair staff are matched against
type ShiftWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether the window has a positive length
func (w ShiftWindow) Valid() bool {
	return w.Start.Before(w.End)
}

// FeatureRecord is one row of the calendar feature table with its
// categorical fields already encoded.
type FeatureRecord struct {
	Timestamp           time.Time `json:"timestamp"`
	Hour                int       `json:"hour"`
	Weekday             string    `json:"weekday"`
	IsWeekend           int       `json:"is_weekend"`
	Weather             string    `json:"weather"`
	SpecialEvent        string    `json:"special_event"`
	WeatherEncoded      float64   `json:"weather_encoded"`
	SpecialEventEncoded float64   `json:"special_event_encoded"`
}

// ForecastResult is the outcome of the forecast operation
type ForecastResult struct {
	Covers        int         `json:"covers"`
	RequiredStaff StaffDemand `json:"required_staff"`
}

// Notification is a message to deliver to one scheduled staff member
type Notification struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Role    Role   `json:"role"`
	Message string `json:"message"`
}

// RoleFailure describes why a role could not be scheduled
type RoleFailure struct {
	Role   Role   `json:"role"`
	Reason string `json:"reason"`
}

// ScheduleResult is the per-request outcome of scheduling a shift
type ScheduleResult struct {
	Window        ShiftWindow
	Demand        StaffDemand
	Scheduled     map[Role][]string
	Unfilled      map[Role]int
	Failures      []RoleFailure
	Notifications []Notification
}

// MatchedCount returns the number of staff scheduled across all roles
func (r *ScheduleResult) MatchedCount() int {
	n := 0
	for _, names := range r.Scheduled {
		n += len(names)
	}
	return n
}

// ForecastInput is the body of the forecast endpoint
type ForecastInput struct {
	Date string `json:"date" binding:"required"`
	Hour *Hour  `json:"hour" binding:"required"`
}

// ScheduleInput is the body of the scheduling endpoint
type ScheduleInput struct {
	Covers     *int       `json:"covers" binding:"required,min=0"`
	ShiftStart *Timestamp `json:"shift_start" binding:"required"`
	ShiftEnd   *Timestamp `json:"shift_end" binding:"required"`
}

// Window returns the shift window described by the input
func (in ScheduleInput) Window() ShiftWindow {
	return ShiftWindow{Start: in.ShiftStart.Time, End: in.ShiftEnd.Time}
}

// ScheduleResponse is the data structure for the scheduling result
type ScheduleResponse struct {
	Scheduled           map[Role][]string `json:"scheduled"`
	Unfilled            map[Role]int      `json:"unfilled,omitempty"`
	Failures            []RoleFailure     `json:"failures,omitempty"`
	NotificationsQueued int               `json:"notifications_queued"`
	Error               string            `json:"error,omitempty"`
}
