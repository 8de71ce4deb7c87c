package models

import (
	"time"

	"gorm.io/datatypes"
)

// DefaultMembershipType is stored when an import row leaves the tier blank.
const DefaultMembershipType = "BASIC"

type Customer struct {
	ID             uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	CustomerCode   string         `json:"customer_code" gorm:"size:50;uniqueIndex;not null"`
	LastVisitDate  datatypes.Date `json:"last_visit_date" gorm:"not null"`
	TotalSpent     int            `json:"total_spent" gorm:"not null;default:0"`
	VisitCount     int            `json:"visit_count" gorm:"not null;default:0"`
	MembershipType string         `json:"membership_type" gorm:"size:50;index;not null"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// LastVisit returns the stored visit date as a time.Time at UTC midnight.
func (c Customer) LastVisit() time.Time {
	y, m, d := time.Time(c.LastVisitDate).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

const (
	JobStatusProcessing = "processing"
	JobStatusDone       = "done"
	JobStatusFailed     = "failed"
)

type ImportJob struct {
	ID           string     `json:"id" gorm:"type:varchar(36);primaryKey"`
	Filename     string     `json:"filename" gorm:"type:text"`
	Status       string     `json:"status" gorm:"size:20;index;not null"`
	RowCount     *int       `json:"row_count"`
	ErrorMessage *string    `json:"error_message" gorm:"type:text"`
	CreatedAt    time.Time  `json:"created_at"`
	FinishedAt   *time.Time `json:"finished_at"`
}

func (ImportJob) TableName() string { return "imports" }

type User struct {
	ID           uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Email        string    `json:"email" gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
}
