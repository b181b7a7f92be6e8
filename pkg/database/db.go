package database

import (
	"time"

	"github.com/arnavshah/covers-scheduler-api/pkg/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// APIKey represents the api_keys table
type APIKey struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Key        string     `gorm:"unique;not null" json:"-"`
	KeyPreview string     `json:"key_preview"`
	Name       string     `gorm:"not null" json:"name"`
	RateLimit  int        `gorm:"default:10000" json:"rate_limit"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsed   *time.Time `json:"last_used"`
}

// APIUsage represents the api_usage table, one row per key per day
type APIUsage struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	KeyID          uint   `gorm:"uniqueIndex:idx_key_date;not null" json:"key_id"`
	Date           string `gorm:"uniqueIndex:idx_key_date;not null" json:"date"`
	RequestCount   int    `gorm:"default:0" json:"request_count"`
	TotalForecasts int    `gorm:"default:0" json:"total_forecasts"`
	TotalCovers    int    `gorm:"default:0" json:"total_covers"`
	TotalScheduled int    `gorm:"default:0" json:"total_scheduled"`
}

// MasterUser represents the master_users table
type MasterUser struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"unique;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// StaffMember represents the staff_members table. AvailableStart and
// AvailableEnd carry both the date range and the daily time window.
type StaffMember struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"not null" json:"name"`
	Phone          string    `gorm:"not null" json:"phone"`
	Role           string    `gorm:"index;not null" json:"role"`
	AvailableStart time.Time `gorm:"not null" json:"available_start"`
	AvailableEnd   time.Time `gorm:"not null" json:"available_end"`
	CreatedAt      time.Time `json:"created_at"`
}

// Model converts the row to the domain type the matcher works with. Availability
// is stored as wall-clock UTC; drivers may hand it back in the server's zone, so
// it is converted back before any clock or date is read.
func (s StaffMember) Model() models.StaffMember {
	return models.StaffMember{
		ID:             s.ID,
		Name:           s.Name,
		Phone:          s.Phone,
		Role:           models.Role(s.Role),
		AvailableStart: s.AvailableStart.UTC(),
		AvailableEnd:   s.AvailableEnd.UTC(),
	}
}

// Open connects to Postgres when dsn is set and to SQLite at dataPath otherwise,
// then migrates the schema.
func Open(dsn, dataPath string) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}

	if dsn != "" {
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), cfg)
	} else {
		db, err = gorm.Open(sqlite.Open(dataPath), cfg)
	}
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&APIKey{}, &APIUsage{}, &MasterUser{}, &StaffMember{}); err != nil {
		return nil, err
	}
	return db, nil
}

// Ping checks the underlying connection
func Ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
