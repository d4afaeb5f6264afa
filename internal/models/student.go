package models

import (
	"time"

	"gorm.io/gorm"
)

// Student represents an enrolled student whose fee obligations are tracked
type Student struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name            string `gorm:"type:varchar(255)" json:"name"`
	AdmissionNumber string `gorm:"type:varchar(50);uniqueIndex" json:"admission_number"`
	Email           string `gorm:"type:varchar(255)" json:"email"`
	ClassName       string `gorm:"type:varchar(100)" json:"class_name"`

	// Guardian contact used for receipts and fee reminders
	GuardianName  string `gorm:"type:varchar(255)" json:"guardian_name"`
	GuardianEmail string `gorm:"type:varchar(255)" json:"guardian_email"`
	GuardianPhone string `gorm:"type:varchar(50)" json:"guardian_phone"`

	// Relationships
	Obligations []Obligation `gorm:"foreignKey:StudentID" json:"obligations,omitempty"`
	Payments    []Payment    `gorm:"foreignKey:StudentID" json:"payments,omitempty"`
}

// ContactEmail resolves the email reminders and receipts should go to.
// Guardian email wins; the student's own email is the fallback.
func (s Student) ContactEmail() string {
	if s.GuardianEmail != "" {
		return s.GuardianEmail
	}
	return s.Email
}
