package database

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/arnavshah/covers-scheduler-api/pkg/models"
	"github.com/arnavshah/covers-scheduler-api/pkg/scheduler"
	"gorm.io/gorm"
)

// StaffDirectory answers availability queries from the staff_members table
type StaffDirectory struct {
	db *gorm.DB
}

// NewStaffDirectory creates a directory over db
func NewStaffDirectory(db *gorm.DB) *StaffDirectory {
	return &StaffDirectory{db: db}
}

func wallUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FindAvailable implements scheduler.Directory. The SQL narrows candidates by role
// and date range in id order; the daily time window is checked row by row so the
// query stays portable between SQLite and Postgres.
func (d *StaffDirectory) FindAvailable(ctx context.Context, q scheduler.AvailabilityQuery) ([]models.Contact, error) {
	if q.Limit <= 0 {
		return nil, nil
	}
	window := models.ShiftWindow{Start: wallUTC(q.Window.Start), End: wallUTC(q.Window.End)}

	rows, err := d.db.WithContext(ctx).Model(&StaffMember{}).
		Where("role = ?", string(q.Role)).
		Where("available_start < ?", startOfDay(window.Start).AddDate(0, 0, 1)).
		Where("available_end >= ?", startOfDay(window.End)).
		Order("id").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Contact
	for len(out) < q.Limit && rows.Next() {
		var row StaffMember
		if err := d.db.ScanRows(rows, &row); err != nil {
			return nil, err
		}
		if scheduler.Eligible(row.Model(), q.Role, window) {
			out = append(out, models.Contact{Name: row.Name, Phone: row.Phone})
		}
	}
	return out, rows.Err()
}

// NewStaffRecord validates a staff member before it is stored
func NewStaffRecord(name, phone string, role models.Role, start, end time.Time) (StaffMember, error) {
	name, phone = strings.TrimSpace(name), strings.TrimSpace(phone)
	switch {
	case name == "":
		return StaffMember{}, errors.New("name is required")
	case phone == "":
		return StaffMember{}, errors.New("phone is required")
	case !role.Valid():
		return StaffMember{}, fmt.Errorf("unknown role %q", role)
	case end.Before(start):
		return StaffMember{}, errors.New("available_end is before available_start")
	}
	return StaffMember{
		Name:           name,
		Phone:          phone,
		Role:           string(role),
		AvailableStart: wallUTC(start),
		AvailableEnd:   wallUTC(end),
	}, nil
}

// CreateStaff stores one staff member
func CreateStaff(ctx context.Context, db *gorm.DB, member *StaffMember) error {
	return db.WithContext(ctx).Create(member).Error
}

// ListStaff returns staff in id order, optionally filtered by role
func ListStaff(ctx context.Context, db *gorm.DB, role string) ([]StaffMember, error) {
	var staff []StaffMember
	q := db.WithContext(ctx).Order("id")
	if role != "" {
		q = q.Where("role = ?", role)
	}
	return staff, q.Find(&staff).Error
}

// DeleteStaff removes a staff member, returning gorm.ErrRecordNotFound if none matched
func DeleteStaff(ctx context.Context, db *gorm.DB, id uint) error {
	res := db.WithContext(ctx).Delete(&StaffMember{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ImportStaffCSV reads name, phone, role, available_start and available_end
// columns (any id column is ignored) and inserts every row in one transaction.
// Nothing is stored if any row is invalid.
func ImportStaffCSV(ctx context.Context, db *gorm.DB, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read staff header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range []string{"name", "phone", "role", "available_start", "available_end"} {
		if _, ok := cols[c]; !ok {
			return 0, fmt.Errorf("staff file: missing column %q", c)
		}
	}

	var staff []StaffMember
	line := 1
	for {
		record, err := reader.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("staff line %d: %w", line, err)
		}

		start, err := models.ParseTimestamp(record[cols["available_start"]])
		if err != nil {
			return 0, fmt.Errorf("staff line %d: available_start: %w", line, err)
		}
		end, err := models.ParseTimestamp(record[cols["available_end"]])
		if err != nil {
			return 0, fmt.Errorf("staff line %d: available_end: %w", line, err)
		}
		role := models.Role(strings.ToLower(strings.TrimSpace(record[cols["role"]])))
		member, err := NewStaffRecord(record[cols["name"]], record[cols["phone"]], role, start, end)
		if err != nil {
			return 0, fmt.Errorf("staff line %d: %w", line, err)
		}
		staff = append(staff, member)
	}
	if len(staff) == 0 {
		return 0, nil
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&staff, 100).Error
	})
	if err != nil {
		return 0, err
	}
	return len(staff), nil
}
