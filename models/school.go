package models

import "time"

// Institution is a tenant owning one or more schools.
type Institution struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	Name      string    `gorm:"column:name" json:"name"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Institution) TableName() string { return "institutions" }

// School belongs to exactly one institution.
type School struct {
	ID            string    `gorm:"column:id;primaryKey" json:"id"`
	InstitutionID string    `gorm:"column:institution_id;index" json:"institution_id"`
	Name          string    `gorm:"column:name" json:"name"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (School) TableName() string { return "schools" }
