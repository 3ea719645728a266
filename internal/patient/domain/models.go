package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Patient is a record owned by exactly one organization.
type Patient struct {
	ID                  snowflake.ID `gorm:"primaryKey" json:"id"`
	OrganizationID      snowflake.ID `gorm:"column:organization_id;not null;index" json:"organization_id"`
	FirstName           string       `gorm:"column:first_name;type:text;not null" json:"first_name"`
	LastName            string       `gorm:"column:last_name;type:text;not null" json:"last_name"`
	DateOfBirth         *time.Time   `gorm:"column:date_of_birth;type:date" json:"date_of_birth,omitempty"`
	MedicalRecordNumber string       `gorm:"column:medical_record_number;type:text" json:"medical_record_number,omitempty"`
	CreatedBy           snowflake.ID `gorm:"column:created_by;not null" json:"created_by"`
	IsActive            bool         `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt           time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time    `gorm:"not null" json:"updated_at"`
}

func (Patient) TableName() string { return "patients" }

func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}
