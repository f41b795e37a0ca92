package carts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/siamgems/inventory-backend/internal/repo"
	"github.com/siamgems/inventory-backend/pkg/db/models"
)

// Repository persists carts and their items.
type Repository struct {
	repo.Base
}

// NewRepository constructs the cart repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// FindActiveCart loads the customer's open cart with items and their catalog
// rows.
func (r *Repository) FindActiveCart(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.DB(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("cart_items.added_at") }).
		Preload("Items.Product").
		Preload("Items.Product.Tag").
		Preload("Items.Product.Images").
		Preload("Items.Product.PairingSets").
		Where("customer_id = ? AND is_active = ?", customerID, true).
		Order("created_at DESC").
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *Repository) CreateCart(ctx context.Context, tx *gorm.DB, cart *models.Cart) (*models.Cart, error) {
	if err := r.conn(ctx, tx).Create(cart).Error; err != nil {
		return nil, err
	}
	return cart, nil
}

func (r *Repository) SaveCart(ctx context.Context, tx *gorm.DB, cart *models.Cart) error {
	// Items are managed through the item methods below.
	return r.conn(ctx, tx).Omit("Items").Save(cart).Error
}

func (r *Repository) FindItem(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.DB(ctx).
		First(&item, "cart_id = ? AND product_id = ?", cartID, productID).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Repository) CreateItem(ctx context.Context, tx *gorm.DB, item *models.CartItem) error {
	return r.conn(ctx, tx).Create(item).Error
}

func (r *Repository) SaveItem(ctx context.Context, tx *gorm.DB, item *models.CartItem) error {
	return r.conn(ctx, tx).Save(item).Error
}

func (r *Repository) DeleteItem(ctx context.Context, tx *gorm.DB, cartID, productID uuid.UUID) error {
	result := r.conn(ctx, tx).
		Delete(&models.CartItem{}, "cart_id = ? AND product_id = ?", cartID, productID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) ClearItems(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) (int64, error) {
	result := r.conn(ctx, tx).Delete(&models.CartItem{}, "cart_id = ?", cartID)
	return result.RowsAffected, result.Error
}

func (r *Repository) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return r.DB(ctx)
}
