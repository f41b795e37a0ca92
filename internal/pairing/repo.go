package pairing

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/siamgems/inventory-backend/internal/repo"
	"github.com/siamgems/inventory-backend/pkg/db/models"
)

// Repository persists pairing set values.
type Repository struct {
	repo.Base
}

// NewRepository constructs the pairing set repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) Create(ctx context.Context, tx *gorm.DB, set *models.PairingSet) (*models.PairingSet, error) {
	if err := r.conn(ctx, tx).Create(set).Error; err != nil {
		return nil, err
	}
	return set, nil
}

func (r *Repository) FindByValue(ctx context.Context, value string) (*models.PairingSet, error) {
	var set models.PairingSet
	if err := r.DB(ctx).First(&set, "pair_value = ?", value).Error; err != nil {
		return nil, err
	}
	return &set, nil
}

func (r *Repository) List(ctx context.Context, search string) ([]models.PairingSet, error) {
	q := r.DB(ctx).Model(&models.PairingSet{})
	if search = strings.ToLower(strings.TrimSpace(search)); search != "" {
		q = q.Where("LOWER(pair_value) LIKE ?", "%"+search+"%")
	}
	var sets []models.PairingSet
	err := q.Order("pair_value").Find(&sets).Error
	return sets, err
}

func (r *Repository) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	result := r.conn(ctx, tx).Delete(&models.PairingSet{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (int64, error) {
	result := r.conn(ctx, tx).Delete(&models.PairingSet{}, "id IN ?", ids)
	return result.RowsAffected, result.Error
}

func (r *Repository) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return r.DB(ctx)
}
