package products

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/siamgems/inventory-backend/internal/repo"
	"github.com/siamgems/inventory-backend/pkg/db/models"
)

// Repository persists catalog rows and their groupings.
type Repository struct {
	repo.Base
}

// NewRepository constructs the catalog repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) Create(ctx context.Context, tx *gorm.DB, product *models.Product) (*models.Product, error) {
	if err := r.conn(ctx, tx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

func (r *Repository) Save(ctx context.Context, tx *gorm.DB, product *models.Product) error {
	return r.conn(ctx, tx).Save(product).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.DB(ctx).
		Preload("PairingSets").
		Preload("Images").
		Preload("ImageNames").
		Preload("Tag").
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *Repository) FindByChildCode(ctx context.Context, childCode string) (*models.Product, error) {
	var product models.Product
	err := r.DB(ctx).
		Preload("PairingSets").
		Preload("Images").
		Preload("ImageNames").
		First(&product, "child_code = ?", childCode).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByCode resolves an exact child code first, then an exact parent code.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Product, error) {
	product, err := r.FindByChildCode(ctx, code)
	if err == nil {
		return product, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	var byParent models.Product
	err = r.DB(ctx).
		Preload("PairingSets").
		Preload("Images").
		Order("child_code").
		First(&byParent, "parent_code = ?", code).Error
	if err != nil {
		return nil, err
	}
	return &byParent, nil
}

// FindPairByCodes resolves the exact (parent, child) pair used by cart import.
func (r *Repository) FindPairByCodes(ctx context.Context, parentCode, childCode string) (*models.Product, error) {
	var product models.Product
	err := r.DB(ctx).
		First(&product, "parent_code = ? AND child_code = ?", parentCode, childCode).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *Repository) List(ctx context.Context, input ListInput) ([]models.Product, int64, error) {
	q := r.DB(ctx).Model(&models.Product{})
	if search := strings.ToLower(strings.TrimSpace(input.Search)); search != "" {
		pattern := "%" + search + "%"
		q = q.Where("LOWER(parent_code) LIKE ? OR LOWER(child_code) LIKE ? OR LOWER(location) LIKE ?", pattern, pattern, pattern)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Product
	err := q.Preload("PairingSets").
		Preload("Images").
		Order("child_code").
		Limit(input.Limit).
		Offset(input.Offset).
		Find(&rows).Error
	return rows, total, err
}

func (r *Repository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var rows []models.Product
	err := r.DB(ctx).
		Preload("PairingSets").
		Preload("Images").
		Where("id IN ?", ids).
		Order("child_code").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) ListAll(ctx context.Context) ([]models.Product, error) {
	var rows []models.Product
	err := r.DB(ctx).
		Preload("PairingSets").
		Preload("Images").
		Order("child_code").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	result := r.conn(ctx, tx).Delete(&models.Product{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (int64, error) {
	result := r.conn(ctx, tx).Delete(&models.Product{}, "id IN ?", ids)
	return result.RowsAffected, result.Error
}

func (r *Repository) DeleteAll(ctx context.Context, tx *gorm.DB) (int64, error) {
	result := r.conn(ctx, tx).Where("1 = 1").Delete(&models.Product{})
	return result.RowsAffected, result.Error
}

// ReplacePairingSets swaps the product's pairing set membership.
func (r *Repository) ReplacePairingSets(ctx context.Context, tx *gorm.DB, productID uuid.UUID, setIDs []uuid.UUID) error {
	conn := r.conn(ctx, tx)
	if err := conn.Exec("DELETE FROM product_pairing_sets WHERE product_id = ?", productID).Error; err != nil {
		return err
	}
	for _, setID := range setIDs {
		err := conn.Exec(
			"INSERT INTO product_pairing_sets (product_id, pairing_set_id) VALUES (?, ?) ON CONFLICT DO NOTHING",
			productID, setID,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// ReplaceImageNames swaps the product's bound image name tokens.
func (r *Repository) ReplaceImageNames(ctx context.Context, tx *gorm.DB, productID uuid.UUID, nameIDs []uuid.UUID) error {
	conn := r.conn(ctx, tx)
	if err := conn.Exec("DELETE FROM product_image_names WHERE product_id = ?", productID).Error; err != nil {
		return err
	}
	for _, nameID := range nameIDs {
		err := conn.Exec(
			"INSERT INTO product_image_names (product_id, image_name_id) VALUES (?, ?) ON CONFLICT DO NOTHING",
			productID, nameID,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// ReplaceImages swaps the product's image associations (bulk import sets, it
// does not merge).
func (r *Repository) ReplaceImages(ctx context.Context, tx *gorm.DB, productID uuid.UUID, imageIDs []uuid.UUID) error {
	conn := r.conn(ctx, tx)
	if err := conn.Exec("DELETE FROM product_images WHERE product_id = ?", productID).Error; err != nil {
		return err
	}
	for _, imageID := range imageIDs {
		err := conn.Exec(
			"INSERT INTO product_images (product_id, image_id) VALUES (?, ?) ON CONFLICT DO NOTHING",
			productID, imageID,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// GetOrCreatePairingSet resolves a pairing set by value, creating it on miss.
func (r *Repository) GetOrCreatePairingSet(ctx context.Context, tx *gorm.DB, value string) (*models.PairingSet, error) {
	conn := r.conn(ctx, tx)
	var set models.PairingSet
	err := conn.First(&set, "pair_value = ?", value).Error
	if err == nil {
		return &set, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	set = models.PairingSet{PairValue: value}
	if err := conn.Create(&set).Error; err != nil {
		return nil, err
	}
	return &set, nil
}

// GetOrCreateImageName resolves an image name token, creating it on miss.
func (r *Repository) GetOrCreateImageName(ctx context.Context, tx *gorm.DB, name string) (*models.ImageName, error) {
	conn := r.conn(ctx, tx)
	var row models.ImageName
	err := conn.First(&row, "name = ?", name).Error
	if err == nil {
		return &row, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	row = models.ImageName{Name: name}
	if err := conn.Create(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// GetOrCreateTag resolves a tag by name, creating it on miss.
func (r *Repository) GetOrCreateTag(ctx context.Context, tx *gorm.DB, name string) (*models.Tag, error) {
	conn := r.conn(ctx, tx)
	var tag models.Tag
	err := conn.First(&tag, "name = ?", name).Error
	if err == nil {
		return &tag, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	tag = models.Tag{Name: name}
	if err := conn.Create(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

// FindOrCreateImageByPath resolves an image row for a known blob path.
func (r *Repository) FindOrCreateImageByPath(ctx context.Context, tx *gorm.DB, path string) (*models.Image, error) {
	conn := r.conn(ctx, tx)
	var image models.Image
	err := conn.First(&image, "path = ?", path).Error
	if err == nil {
		return &image, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	image = models.Image{Path: path}
	if err := conn.Create(&image).Error; err != nil {
		return nil, err
	}
	return &image, nil
}

// MatchingProducts returns up to perSetLimit products per shared pairing set,
// excluding the product itself, deduplicated across sets.
func (r *Repository) MatchingProducts(ctx context.Context, productID uuid.UUID, perSetLimit int) ([]models.Product, error) {
	var setIDs []uuid.UUID
	err := r.DB(ctx).
		Table("product_pairing_sets").
		Where("product_id = ?", productID).
		Pluck("pairing_set_id", &setIDs).Error
	if err != nil {
		return nil, err
	}

	seen := map[uuid.UUID]struct{}{productID: {}}
	var matches []models.Product
	for _, setID := range setIDs {
		var rows []models.Product
		err := r.DB(ctx).
			Joins("JOIN product_pairing_sets pps ON pps.product_id = products.id").
			Where("pps.pairing_set_id = ? AND products.id <> ?", setID, productID).
			Order("products.child_code").
			Limit(perSetLimit).
			Find(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if _, ok := seen[row.ID]; ok {
				continue
			}
			seen[row.ID] = struct{}{}
			matches = append(matches, row)
		}
	}
	return matches, nil
}

func (r *Repository) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return r.DB(ctx)
}
