package models

import (
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Image is a stored product photo. The filename carries the match identity
// used by auto-linking.
type Image struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Path      string    `gorm:"column:path;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// BaseName returns the filename without directory or extension, the token
// compared against product codes during auto-linking.
func (i Image) BaseName() string {
	base := path.Base(i.Path)
	return strings.TrimSuffix(base, path.Ext(base))
}
