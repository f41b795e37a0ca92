package images

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/siamgems/inventory-backend/internal/repo"
	"github.com/siamgems/inventory-backend/pkg/db/models"
)

// ImageRow is the listing projection with its link count.
type ImageRow struct {
	ID             uuid.UUID
	Path           string
	CreatedAt      time.Time
	LinkedProducts int
}

// Repository persists images, their product associations, and the ledger.
type Repository struct {
	repo.Base
}

// NewRepository constructs the image repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) CreateImage(ctx context.Context, tx *gorm.DB, image *models.Image) (*models.Image, error) {
	if err := r.conn(ctx, tx).Create(image).Error; err != nil {
		return nil, err
	}
	return image, nil
}

func (r *Repository) FindImage(ctx context.Context, id uuid.UUID) (*models.Image, error) {
	var image models.Image
	if err := r.DB(ctx).First(&image, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &image, nil
}

func (r *Repository) ListImages(ctx context.Context, input ListInput) ([]ImageRow, error) {
	q := r.DB(ctx).
		Model(&models.Image{}).
		Select("images.id, images.path, images.created_at, (SELECT COUNT(*) FROM product_images pi WHERE pi.image_id = images.id) AS linked_products")

	if search := strings.ToLower(strings.TrimSpace(input.Search)); search != "" {
		q = q.Where("LOWER(images.path) LIKE ?", "%"+search+"%")
	}
	switch input.Filter {
	case "linked":
		q = q.Where("EXISTS (SELECT 1 FROM product_images pi WHERE pi.image_id = images.id)")
	case "unlinked":
		q = q.Where("NOT EXISTS (SELECT 1 FROM product_images pi WHERE pi.image_id = images.id)")
	}

	var rows []ImageRow
	err := q.Order("images.created_at DESC").
		Limit(input.Limit).
		Offset(input.Offset).
		Scan(&rows).Error
	return rows, err
}

func (r *Repository) ListAllImages(ctx context.Context) ([]models.Image, error) {
	var imgs []models.Image
	if err := r.DB(ctx).Order("created_at").Find(&imgs).Error; err != nil {
		return nil, err
	}
	return imgs, nil
}

// HasImageWithBaseName reports whether any stored path contains the filename
// token, ignoring case. Matching is deliberately loose: "ER-1001-A.jpg" counts
// as a duplicate of an existing "ER-1001-A-front.jpg".
func (r *Repository) HasImageWithBaseName(ctx context.Context, base string) (bool, error) {
	target := strings.ToLower(strings.TrimSpace(base))
	if target == "" {
		return false, nil
	}
	var count int64
	err := r.DB(ctx).
		Model(&models.Image{}).
		Where("LOWER(path) LIKE ?", "%"+target+"%").
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) DeleteImage(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return r.conn(ctx, tx).Delete(&models.Image{}, "id = ?", id).Error
}

func (r *Repository) Attach(ctx context.Context, tx *gorm.DB, productID, imageID uuid.UUID) error {
	return r.conn(ctx, tx).
		Exec("INSERT INTO product_images (product_id, image_id) VALUES (?, ?) ON CONFLICT DO NOTHING", productID, imageID).
		Error
}

func (r *Repository) Detach(ctx context.Context, tx *gorm.DB, productID, imageID uuid.UUID) error {
	return r.conn(ctx, tx).
		Exec("DELETE FROM product_images WHERE product_id = ? AND image_id = ?", productID, imageID).
		Error
}

func (r *Repository) DetachAllForImage(ctx context.Context, tx *gorm.DB, imageID uuid.UUID) error {
	return r.conn(ctx, tx).
		Exec("DELETE FROM product_images WHERE image_id = ?", imageID).
		Error
}

func (r *Repository) ProductIDsForImage(ctx context.Context, imageID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.DB(ctx).
		Table("product_images").
		Where("image_id = ?", imageID).
		Pluck("product_id", &ids).Error
	return ids, err
}

func (r *Repository) ListProductCodes(ctx context.Context) ([]ProductCode, error) {
	var rows []ProductCode
	err := r.DB(ctx).
		Model(&models.Product{}).
		Select("id, parent_code, child_code").
		Scan(&rows).Error
	return rows, err
}

func (r *Repository) FindProductCode(ctx context.Context, productID uuid.UUID) (*ProductCode, error) {
	var row ProductCode
	err := r.DB(ctx).
		Model(&models.Product{}).
		Select("id, parent_code, child_code").
		Where("id = ?", productID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) UpsertLink(ctx context.Context, tx *gorm.DB, link *models.ProductImageLink) error {
	return r.conn(ctx, tx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(link).Error
}

func (r *Repository) DeleteLinks(ctx context.Context, tx *gorm.DB, imageID uuid.UUID, parentCode, childCode string) error {
	return r.conn(ctx, tx).
		Where("image_id = ? AND parent_code = ? AND child_code = ?", imageID, parentCode, childCode).
		Delete(&models.ProductImageLink{}).Error
}

func (r *Repository) ImageIDsLinkedTo(ctx context.Context, parentCode, childCode string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.DB(ctx).
		Model(&models.ProductImageLink{}).
		Where("parent_code = ? AND child_code = ?", parentCode, childCode).
		Pluck("image_id", &ids).Error
	return ids, err
}

func (r *Repository) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return r.DB(ctx)
}
