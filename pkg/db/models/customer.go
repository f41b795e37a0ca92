package models

import (
	"time"

	"github.com/google/uuid"
)

// Customer owns at most one active cart at a time. Locked customers are
// excluded from individual edits but included in broadcast cart additions.
type Customer struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Address   string    `gorm:"column:address;not null;default:''"`
	IsLocked  bool      `gorm:"column:is_locked;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
