package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductImageLink is the durable ledger tying an image to a code pair.
// Rows outlive the products they describe: deleting a product keeps its
// ledger rows so a re-created product with the same codes gets its images
// back. Only an explicit unlink or set-reconcile removes rows.
type ProductImageLink struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ImageID    uuid.UUID `gorm:"column:image_id;type:uuid;not null;uniqueIndex:uq_product_image_links,priority:1"`
	ParentCode string    `gorm:"column:parent_code;not null;uniqueIndex:uq_product_image_links,priority:2;index:idx_product_image_links_codes,priority:1"`
	ChildCode  string    `gorm:"column:child_code;not null;uniqueIndex:uq_product_image_links,priority:3;index:idx_product_image_links_codes,priority:2"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
