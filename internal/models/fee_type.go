package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FeeType represents a category of fee a school charges (tuition, boarding, ...)
type FeeType struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name          string          `gorm:"type:varchar(255)" json:"name"`
	DefaultAmount decimal.Decimal `gorm:"type:decimal(15,2)" json:"default_amount"`
	IsActive      bool            `gorm:"default:true" json:"is_active"`

	// Relationships
	Obligations []Obligation `gorm:"foreignKey:FeeTypeID" json:"obligations,omitempty"`
}
