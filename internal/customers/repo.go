package customers

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/siamgems/inventory-backend/internal/repo"
	"github.com/siamgems/inventory-backend/pkg/db/models"
)

// Repository persists customers.
type Repository struct {
	repo.Base
}

// NewRepository constructs the customer repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) Create(ctx context.Context, tx *gorm.DB, customer *models.Customer) (*models.Customer, error) {
	if err := r.conn(ctx, tx).Create(customer).Error; err != nil {
		return nil, err
	}
	return customer, nil
}

func (r *Repository) Save(ctx context.Context, tx *gorm.DB, customer *models.Customer) error {
	return r.conn(ctx, tx).Save(customer).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.DB(ctx).First(&customer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *Repository) List(ctx context.Context, search string, limit, offset int) ([]models.Customer, int64, error) {
	q := r.DB(ctx).Model(&models.Customer{})
	if search = strings.ToLower(strings.TrimSpace(search)); search != "" {
		pattern := "%" + search + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(address) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Customer
	err := q.Order("name").Limit(limit).Offset(offset).Find(&rows).Error
	return rows, total, err
}

func (r *Repository) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	result := r.conn(ctx, tx).Delete(&models.Customer{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (int64, error) {
	result := r.conn(ctx, tx).Delete(&models.Customer{}, "id IN ?", ids)
	return result.RowsAffected, result.Error
}

func (r *Repository) SetLocked(ctx context.Context, tx *gorm.DB, id uuid.UUID, locked bool) error {
	result := r.conn(ctx, tx).
		Model(&models.Customer{}).
		Where("id = ?", id).
		Update("is_locked", locked)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) SetLockedByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, locked bool) (int64, error) {
	result := r.conn(ctx, tx).
		Model(&models.Customer{}).
		Where("id IN ?", ids).
		Update("is_locked", locked)
	return result.RowsAffected, result.Error
}

func (r *Repository) ListLocked(ctx context.Context) ([]models.Customer, error) {
	var rows []models.Customer
	err := r.DB(ctx).Where("is_locked = ?", true).Order("name").Find(&rows).Error
	return rows, err
}

func (r *Repository) CountLocked(ctx context.Context) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(&models.Customer{}).Where("is_locked = ?", true).Count(&count).Error
	return count, err
}

func (r *Repository) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return r.DB(ctx)
}
