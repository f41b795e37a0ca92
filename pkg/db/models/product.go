package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry identified by its (parent_code, child_code) pair.
// The child_code is globally unique; the parent_code groups style variants.
type Product struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ParentCode  string          `gorm:"column:parent_code;not null;index"`
	ChildCode   string          `gorm:"column:child_code;not null;uniqueIndex:uq_products_child_code"`
	Location    string          `gorm:"column:location;not null;default:''"`
	Stock       string          `gorm:"column:stock;not null;default:''"`
	KPO         string          `gorm:"column:kpo;not null;default:''"`
	Weight      decimal.Decimal `gorm:"column:weight;type:numeric(8,2);not null;default:0"`
	ThaiBaht    string          `gorm:"column:thai_baht;not null;default:''"`
	USDRate     string          `gorm:"column:usd_rate;not null;default:''"`
	EuroRate    string          `gorm:"column:euro_rate;not null;default:''"`
	Note1       string          `gorm:"column:note_1;not null;default:''"`
	Note2       string          `gorm:"column:note_2;not null;default:''"`
	Description string          `gorm:"column:description;not null;default:''"`
	Unit        string          `gorm:"column:unit;not null;default:''"`
	TagID       *uuid.UUID      `gorm:"column:tag_id;type:uuid"`
	Tag         *Tag            `gorm:"foreignKey:TagID"`
	QRCodePath  string          `gorm:"column:qrcode_path;not null;default:''"`
	BarcodePath string          `gorm:"column:barcode_path;not null;default:''"`
	PairingSets []PairingSet    `gorm:"many2many:product_pairing_sets"`
	Images      []Image         `gorm:"many2many:product_images"`
	ImageNames  []ImageName     `gorm:"many2many:product_image_names"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
