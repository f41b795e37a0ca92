package images

import (
	"context"
	"errors"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/siamgems/inventory-backend/pkg/db/models"
	pkgerrors "github.com/siamgems/inventory-backend/pkg/errors"
	"github.com/siamgems/inventory-backend/pkg/storage/local"
)

// Ingest item statuses.
const (
	StatusAdded   = "added"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Service manages product images and the durable code-pair ledger behind them.
type Service interface {
	IngestBatch(ctx context.Context, items []IngestItem) ([]IngestResult, error)
	List(ctx context.Context, input ListInput) ([]ImageDTO, error)
	AutoLink(ctx context.Context, imageID uuid.UUID) (int, error)
	AutoLinkAll(ctx context.Context) (int, error)
	Link(ctx context.Context, imageID, productID uuid.UUID) error
	SetLinks(ctx context.Context, imageID uuid.UUID, productIDs []uuid.UUID) error
	Unlink(ctx context.Context, imageID, productID uuid.UUID) error
	Delete(ctx context.Context, imageID uuid.UUID) error
	DeleteBatch(ctx context.Context, imageIDs []uuid.UUID) []BatchResult
	RestoreLinks(ctx context.Context, tx *gorm.DB, productID uuid.UUID, parentCode, childCode string) (int, error)
}

// IngestItem is one uploaded file.
type IngestItem struct {
	Name string
	Data io.Reader
}

// IngestResult reports the outcome for one uploaded file.
type IngestResult struct {
	Name           string     `json:"name"`
	Status         string     `json:"status"`
	Error          string     `json:"error,omitempty"`
	ImageID        *uuid.UUID `json:"image_id,omitempty"`
	LinkedProducts int        `json:"linked_products"`
}

// BatchResult reports the outcome for one image in a bulk mutation.
type BatchResult struct {
	ImageID uuid.UUID `json:"image_id"`
	Status  string    `json:"status"`
	Error   string    `json:"error,omitempty"`
}

// ListInput filters the image listing.
type ListInput struct {
	Search string
	Filter string // "", "linked", "unlinked"
	Limit  int
	Offset int
}

// ImageDTO is the listing row returned to the API layer.
type ImageDTO struct {
	ID             uuid.UUID `json:"id"`
	Path           string    `json:"path"`
	BaseName       string    `json:"base_name"`
	LinkedProducts int       `json:"linked_products"`
}

// ProductCode is the minimal product projection used for matching.
type ProductCode struct {
	ID         uuid.UUID
	ParentCode string
	ChildCode  string
}

type imageRepository interface {
	CreateImage(ctx context.Context, tx *gorm.DB, image *models.Image) (*models.Image, error)
	FindImage(ctx context.Context, id uuid.UUID) (*models.Image, error)
	ListImages(ctx context.Context, input ListInput) ([]ImageRow, error)
	ListAllImages(ctx context.Context) ([]models.Image, error)
	HasImageWithBaseName(ctx context.Context, base string) (bool, error)
	DeleteImage(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	Attach(ctx context.Context, tx *gorm.DB, productID, imageID uuid.UUID) error
	Detach(ctx context.Context, tx *gorm.DB, productID, imageID uuid.UUID) error
	DetachAllForImage(ctx context.Context, tx *gorm.DB, imageID uuid.UUID) error
	ProductIDsForImage(ctx context.Context, imageID uuid.UUID) ([]uuid.UUID, error)
	ListProductCodes(ctx context.Context) ([]ProductCode, error)
	FindProductCode(ctx context.Context, productID uuid.UUID) (*ProductCode, error)
}

type ledgerRepository interface {
	UpsertLink(ctx context.Context, tx *gorm.DB, link *models.ProductImageLink) error
	DeleteLinks(ctx context.Context, tx *gorm.DB, imageID uuid.UUID, parentCode, childCode string) error
	ImageIDsLinkedTo(ctx context.Context, parentCode, childCode string) ([]uuid.UUID, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo   imageRepository
	ledger ledgerRepository
	tx     txRunner
	store  local.Store
}

// NewService constructs the image linker service.
func NewService(repo imageRepository, ledger ledgerRepository, tx txRunner, store local.Store) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "image repository required")
	}
	if ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ledger repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tx runner required")
	}
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "blob store required")
	}
	return &service{repo: repo, ledger: ledger, tx: tx, store: store}, nil
}

// IngestBatch stores each file, creates its image row, and auto-links it.
// Failures are isolated per item.
func (s *service) IngestBatch(ctx context.Context, items []IngestItem) ([]IngestResult, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no files provided")
	}

	results := make([]IngestResult, 0, len(items))
	for _, item := range items {
		results = append(results, s.ingestOne(ctx, item))
	}
	return results, nil
}

func (s *service) ingestOne(ctx context.Context, item IngestItem) IngestResult {
	name := local.SanitizeFileName(item.Name)
	result := IngestResult{Name: name, Status: StatusFailed}

	base := strings.TrimSuffix(name, path.Ext(name))
	if base == "" || name == "unnamed" {
		result.Error = "file name is empty"
		return result
	}

	exists, err := s.repo.HasImageWithBaseName(ctx, base)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if exists {
		result.Status = StatusSkipped
		result.Error = "an image with this name already exists"
		return result
	}

	key := local.BuildKey(local.ProductImagesPrefix, name)
	if err := s.store.Save(ctx, key, item.Data); err != nil {
		result.Error = err.Error()
		return result
	}

	var created *models.Image
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		row, createErr := s.repo.CreateImage(ctx, tx, &models.Image{Path: key})
		if createErr != nil {
			return createErr
		}
		created = row
		return nil
	}); err != nil {
		result.Error = err.Error()
		return result
	}

	result.Status = StatusAdded
	result.ImageID = &created.ID

	linked, err := s.AutoLink(ctx, created.ID)
	if err != nil {
		// The upload itself succeeded; report the link failure only.
		result.Error = err.Error()
		return result
	}
	result.LinkedProducts = linked
	return result
}

// List returns images with their linked-product counts.
func (s *service) List(ctx context.Context, input ListInput) ([]ImageDTO, error) {
	switch input.Filter {
	case "", "linked", "unlinked":
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "filter must be linked or unlinked")
	}
	if input.Limit <= 0 || input.Limit > 500 {
		input.Limit = 100
	}

	rows, err := s.repo.ListImages(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list images")
	}

	out := make([]ImageDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, ImageDTO{
			ID:             row.ID,
			Path:           row.Path,
			BaseName:       models.Image{Path: row.Path}.BaseName(),
			LinkedProducts: row.LinkedProducts,
		})
	}
	return out, nil
}

// AutoLink matches the image's base name against every product code pair and
// attaches matches. Running it again is a no-op for existing links.
func (s *service) AutoLink(ctx context.Context, imageID uuid.UUID) (int, error) {
	image, err := s.repo.FindImage(ctx, imageID)
	if err != nil {
		return 0, imageLookupError(err)
	}

	products, err := s.repo.ListProductCodes(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list product codes")
	}

	base := image.BaseName()
	matched := make([]ProductCode, 0)
	for _, p := range products {
		if matchesCodes(base, p.ParentCode, p.ChildCode) {
			matched = append(matched, p)
		}
	}
	if len(matched) == 0 {
		return 0, nil
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		for _, p := range matched {
			if err := s.attachWithLedger(ctx, tx, image.ID, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

// AutoLinkAll runs auto-linking across every stored image.
func (s *service) AutoLinkAll(ctx context.Context) (int, error) {
	imgs, err := s.repo.ListAllImages(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list images")
	}

	total := 0
	for _, img := range imgs {
		linked, err := s.AutoLink(ctx, img.ID)
		if err != nil {
			return total, err
		}
		total += linked
	}
	return total, nil
}

// Link attaches the image to one product and records the ledger row.
func (s *service) Link(ctx context.Context, imageID, productID uuid.UUID) error {
	image, err := s.repo.FindImage(ctx, imageID)
	if err != nil {
		return imageLookupError(err)
	}
	product, err := s.repo.FindProductCode(ctx, productID)
	if err != nil {
		return productLookupError(err)
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.attachWithLedger(ctx, tx, image.ID, *product)
	})
}

// SetLinks reconciles the image's links to exactly the given products.
// Deselected products lose both the association and their ledger rows.
func (s *service) SetLinks(ctx context.Context, imageID uuid.UUID, productIDs []uuid.UUID) error {
	image, err := s.repo.FindImage(ctx, imageID)
	if err != nil {
		return imageLookupError(err)
	}

	current, err := s.repo.ProductIDsForImage(ctx, imageID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list image links")
	}

	currentSet := dedupe(current)
	desiredSet := dedupe(productIDs)

	toAdd := sortedIDs(difference(desiredSet, currentSet))
	toRemove := sortedIDs(difference(currentSet, desiredSet))

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		for _, productID := range toAdd {
			product, err := s.repo.FindProductCode(ctx, productID)
			if err != nil {
				return productLookupError(err)
			}
			if err := s.attachWithLedger(ctx, tx, image.ID, *product); err != nil {
				return err
			}
		}
		for _, productID := range toRemove {
			if err := s.detachWithLedger(ctx, tx, image.ID, productID); err != nil {
				return err
			}
		}
		return nil
	})
}

// Unlink severs the association and deletes the matching ledger rows, so the
// image will not return on product re-creation.
func (s *service) Unlink(ctx context.Context, imageID, productID uuid.UUID) error {
	if _, err := s.repo.FindImage(ctx, imageID); err != nil {
		return imageLookupError(err)
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.detachWithLedger(ctx, tx, imageID, productID)
	})
}

// Delete removes the image row, its associations, and its blob. Ledger rows
// stay behind; they are inert once the image is gone.
func (s *service) Delete(ctx context.Context, imageID uuid.UUID) error {
	image, err := s.repo.FindImage(ctx, imageID)
	if err != nil {
		return imageLookupError(err)
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.DetachAllForImage(ctx, tx, image.ID); err != nil {
			return err
		}
		return s.repo.DeleteImage(ctx, tx, image.ID)
	}); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, image.Path); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete image blob")
	}
	return nil
}

// DeleteBatch deletes each image independently and reports per-item outcomes.
func (s *service) DeleteBatch(ctx context.Context, imageIDs []uuid.UUID) []BatchResult {
	results := make([]BatchResult, 0, len(imageIDs))
	for _, id := range imageIDs {
		result := BatchResult{ImageID: id, Status: "deleted"}
		if err := s.Delete(ctx, id); err != nil {
			result.Status = StatusFailed
			result.Error = err.Error()
		}
		results = append(results, result)
	}
	return results
}

// RestoreLinks re-attaches every image whose ledger rows name the exact code
// pair. Called inside the product-creation transaction.
func (s *service) RestoreLinks(ctx context.Context, tx *gorm.DB, productID uuid.UUID, parentCode, childCode string) (int, error) {
	imageIDs, err := s.ledger.ImageIDsLinkedTo(ctx, parentCode, childCode)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: read image ledger")
	}

	restored := 0
	for _, imageID := range imageIDs {
		if _, err := s.repo.FindImage(ctx, imageID); err != nil {
			if isNotFound(err) {
				// Orphaned ledger row: the image was deleted after linking.
				continue
			}
			return restored, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find ledger image")
		}
		if err := s.repo.Attach(ctx, tx, productID, imageID); err != nil {
			return restored, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: attach restored image")
		}
		restored++
	}
	return restored, nil
}

func (s *service) attachWithLedger(ctx context.Context, tx *gorm.DB, imageID uuid.UUID, product ProductCode) error {
	if err := s.repo.Attach(ctx, tx, product.ID, imageID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: attach image")
	}
	link := &models.ProductImageLink{
		ImageID:    imageID,
		ParentCode: product.ParentCode,
		ChildCode:  product.ChildCode,
	}
	if err := s.ledger.UpsertLink(ctx, tx, link); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: upsert ledger row")
	}
	return nil
}

func (s *service) detachWithLedger(ctx context.Context, tx *gorm.DB, imageID, productID uuid.UUID) error {
	product, err := s.repo.FindProductCode(ctx, productID)
	if err != nil {
		return productLookupError(err)
	}
	if err := s.repo.Detach(ctx, tx, productID, imageID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: detach image")
	}
	if err := s.ledger.DeleteLinks(ctx, tx, imageID, product.ParentCode, product.ChildCode); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete ledger rows")
	}
	return nil
}

// matchesCodes applies the case-insensitive substring rule in both directions:
// a file named for a parent code links every child under it, and a file named
// with extra suffixes still links its product.
func matchesCodes(base string, codes ...string) bool {
	token := strings.ToLower(strings.TrimSpace(base))
	if token == "" {
		return false
	}
	for _, code := range codes {
		c := strings.ToLower(strings.TrimSpace(code))
		if c == "" {
			continue
		}
		if strings.Contains(token, c) || strings.Contains(c, token) {
			return true
		}
	}
	return false
}

func dedupe(ids []uuid.UUID) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{})
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}

func difference(a, b map[uuid.UUID]struct{}) map[uuid.UUID]struct{} {
	out := make(map[uuid.UUID]struct{})
	for id := range a {
		if _, ok := b[id]; !ok {
			out[id] = struct{}{}
		}
	}
	return out
}

func sortedIDs(set map[uuid.UUID]struct{}) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func imageLookupError(err error) error {
	if isNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "image not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find image")
}

func productLookupError(err error) error {
	if isNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find product")
}
