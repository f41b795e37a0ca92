package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart is the staging document for a customer order, exported to Excel or
// rendered as a quotation.
type Cart struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID      uuid.UUID       `gorm:"column:customer_id;type:uuid;not null;index:idx_carts_customer_active,priority:1"`
	Customer        *Customer       `gorm:"foreignKey:CustomerID"`
	IsActive        bool            `gorm:"column:is_active;not null;default:true;index:idx_carts_customer_active,priority:2"`
	AddressOverride string          `gorm:"column:address_override;not null;default:''"`
	ShippingAmount  decimal.Decimal `gorm:"column:shipping_amount;type:numeric(12,2);not null;default:0"`
	DepositAmount   decimal.Decimal `gorm:"column:deposit_amount;type:numeric(12,2);not null;default:0"`
	GrossWeight     decimal.Decimal `gorm:"column:gross_weight;type:numeric(12,2);not null;default:0"`
	Notes           string          `gorm:"column:notes;not null;default:''"`
	SalesPerson     string          `gorm:"column:sales_person;not null;default:''"`
	DocRef          string          `gorm:"column:doc_ref;not null;default:''"`
	CustomerCode    string          `gorm:"column:customer_code;not null;default:''"`
	Items           []CartItem      `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// CartItem holds one product line; (cart_id, product_id) is unique and
// repeated adds accumulate quantity.
type CartItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID    uuid.UUID `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:uq_cart_items_cart_product,priority:1"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:uq_cart_items_cart_product,priority:2"`
	Product   *Product  `gorm:"foreignKey:ProductID"`
	Quantity  int       `gorm:"column:quantity;not null;default:1"`
	AddedAt   time.Time `gorm:"column:added_at;autoCreateTime"`
}
