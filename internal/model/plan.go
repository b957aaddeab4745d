package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Plan struct {
	ID          string          `gorm:"primaryKey;size:64;not null" yaml:"id" json:"id"`
	Name        string          `gorm:"size:128;not null" yaml:"name" json:"name"`
	Description string          `gorm:"size:512" yaml:"description" json:"description"`
	Memory      int64           `gorm:"not null" yaml:"memory" json:"memory"` // MB
	Disk        int64           `gorm:"not null" yaml:"disk" json:"disk"`     // GB
	CPU         int64           `gorm:"not null" yaml:"cpu" json:"cpu"`       // percent of one core
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null" yaml:"price" json:"price"`
	Currency    string          `gorm:"size:3;not null;default:USD" yaml:"currency" json:"currency"`
	IsActive    bool            `gorm:"index;not null" yaml:"active" json:"is_active"`
	CreatedAt   time.Time       `yaml:"-" json:"created_at"`
	UpdatedAt   time.Time       `yaml:"-" json:"updated_at"`
}

// DiskMB converts the plan's disk allowance to the megabytes the panel expects.
func (p *Plan) DiskMB() int64 {
	return p.Disk * 1024
}
