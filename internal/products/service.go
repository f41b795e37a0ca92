package products

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	pkgdb "github.com/siamgems/inventory-backend/pkg/db"
	"github.com/siamgems/inventory-backend/pkg/db/models"
	pkgerrors "github.com/siamgems/inventory-backend/pkg/errors"
)

const matchingItemsPerSet = 5

// Service exposes catalog management operations.
type Service interface {
	Create(ctx context.Context, input ProductInput) (*ProductDTO, error)
	Update(ctx context.Context, id uuid.UUID, input ProductInput) (*ProductDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteBatch(ctx context.Context, ids []uuid.UUID) []BatchResult
	DeleteAll(ctx context.Context) (int64, error)
	Lookup(ctx context.Context, code string) (*LookupResult, error)
	ImportCatalog(ctx context.Context, data io.Reader) (*ImportReport, error)
	Export(ctx context.Context, ids []uuid.UUID) ([]byte, error)
}

// ProductInput is the validated payload for create and update.
type ProductInput struct {
	ParentCode  string
	ChildCode   string
	Location    string
	Stock       string
	KPO         string
	Weight      decimal.Decimal
	ThaiBaht    string
	USDRate     string
	EuroRate    string
	Note1       string
	Note2       string
	Description string
	Unit        string
	TagName     *string
	PairingSets []string
}

// ProductDTO is the catalog row returned to the API layer.
type ProductDTO struct {
	ID          uuid.UUID `json:"id"`
	ParentCode  string    `json:"parent_code"`
	ChildCode   string    `json:"child_code"`
	Location    string    `json:"location"`
	Stock       string    `json:"stock"`
	KPO         string    `json:"kpo"`
	Weight      string    `json:"weight"`
	ThaiBaht    string    `json:"thai_baht"`
	USDRate     string    `json:"usd_rate"`
	EuroRate    string    `json:"euro_rate"`
	Note1       string    `json:"note_1"`
	Note2       string    `json:"note_2"`
	Description string    `json:"description"`
	Unit        string    `json:"unit"`
	Tag         string    `json:"tag,omitempty"`
	PairingSets []string  `json:"pairing_sets"`
	Images      []string  `json:"images"`
	QRCodePath  string    `json:"qrcode_path"`
	BarcodePath string    `json:"barcode_path"`
}

// ListInput filters the catalog listing.
type ListInput struct {
	Search string
	Limit  int
	Offset int
}

// ListResult is a page of catalog rows.
type ListResult struct {
	Items []ProductDTO `json:"items"`
	Total int64        `json:"total"`
}

// BatchResult reports one product's outcome in a bulk delete.
type BatchResult struct {
	ProductID uuid.UUID `json:"product_id"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
}

// LookupResult pairs a resolved product with recommendations from its
// pairing sets.
type LookupResult struct {
	Product       ProductDTO   `json:"product"`
	MatchingItems []ProductDTO `json:"matching_items"`
}

type catalogRepository interface {
	Create(ctx context.Context, tx *gorm.DB, product *models.Product) (*models.Product, error)
	Save(ctx context.Context, tx *gorm.DB, product *models.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByChildCode(ctx context.Context, childCode string) (*models.Product, error)
	FindByCode(ctx context.Context, code string) (*models.Product, error)
	List(ctx context.Context, input ListInput) ([]models.Product, int64, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	ListAll(ctx context.Context) ([]models.Product, error)
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (int64, error)
	DeleteAll(ctx context.Context, tx *gorm.DB) (int64, error)
	ReplacePairingSets(ctx context.Context, tx *gorm.DB, productID uuid.UUID, setIDs []uuid.UUID) error
	ReplaceImageNames(ctx context.Context, tx *gorm.DB, productID uuid.UUID, nameIDs []uuid.UUID) error
	ReplaceImages(ctx context.Context, tx *gorm.DB, productID uuid.UUID, imageIDs []uuid.UUID) error
	GetOrCreatePairingSet(ctx context.Context, tx *gorm.DB, value string) (*models.PairingSet, error)
	GetOrCreateImageName(ctx context.Context, tx *gorm.DB, name string) (*models.ImageName, error)
	GetOrCreateTag(ctx context.Context, tx *gorm.DB, name string) (*models.Tag, error)
	FindOrCreateImageByPath(ctx context.Context, tx *gorm.DB, path string) (*models.Image, error)
	MatchingProducts(ctx context.Context, productID uuid.UUID, perSetLimit int) ([]models.Product, error)
}

type linkRestorer interface {
	RestoreLinks(ctx context.Context, tx *gorm.DB, productID uuid.UUID, parentCode, childCode string) (int, error)
}

type codeGenerator interface {
	Generate(ctx context.Context, childCode string) (qrKey, barcodeKey string, err error)
}

type blobChecker interface {
	Exists(ctx context.Context, key string) (bool, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type importMetrics interface {
	ObserveDuration(job string, d time.Duration)
	AddRows(job, outcome string, count int)
	IncSuccess(job string)
	IncFailure(job string)
}

type service struct {
	repo    catalogRepository
	links   linkRestorer
	codes   codeGenerator
	blobs   blobChecker
	tx      txRunner
	metrics importMetrics
	maxRows int
}

// ServiceParams wires the catalog service dependencies.
type ServiceParams struct {
	Repo          catalogRepository
	LinkRestorer  linkRestorer
	CodeGenerator codeGenerator
	BlobChecker   blobChecker
	TxRunner      txRunner
	Metrics       importMetrics
	MaxImportRows int
}

// NewService constructs the catalog service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "catalog repository required")
	}
	if params.LinkRestorer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "link restorer required")
	}
	if params.CodeGenerator == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code generator required")
	}
	if params.BlobChecker == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "blob checker required")
	}
	if params.TxRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tx runner required")
	}
	maxRows := params.MaxImportRows
	if maxRows <= 0 {
		maxRows = 20000
	}
	return &service{
		repo:    params.Repo,
		links:   params.LinkRestorer,
		codes:   params.CodeGenerator,
		blobs:   params.BlobChecker,
		tx:      params.TxRunner,
		metrics: params.Metrics,
		maxRows: maxRows,
	}, nil
}

// Create inserts a catalog row, restores ledger-linked images, and renders
// its code images.
func (s *service) Create(ctx context.Context, input ProductInput) (*ProductDTO, error) {
	if err := validateCodes(input); err != nil {
		return nil, err
	}

	if _, err := s.repo.FindByChildCode(ctx, input.ChildCode); err == nil {
		return nil, duplicateChildCode(input.ChildCode)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: check child code")
	}

	qrKey, barcodeKey, err := s.codes.Generate(ctx, input.ChildCode)
	if err != nil {
		return nil, err
	}

	var createdID uuid.UUID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		product := &models.Product{
			ParentCode:  input.ParentCode,
			ChildCode:   input.ChildCode,
			Location:    input.Location,
			Stock:       input.Stock,
			KPO:         input.KPO,
			Weight:      input.Weight,
			ThaiBaht:    input.ThaiBaht,
			USDRate:     input.USDRate,
			EuroRate:    input.EuroRate,
			Note1:       input.Note1,
			Note2:       input.Note2,
			Description: input.Description,
			Unit:        input.Unit,
			QRCodePath:  qrKey,
			BarcodePath: barcodeKey,
		}

		if input.TagName != nil && strings.TrimSpace(*input.TagName) != "" {
			tag, tagErr := s.repo.GetOrCreateTag(ctx, tx, strings.TrimSpace(*input.TagName))
			if tagErr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, tagErr, "db: resolve tag")
			}
			product.TagID = &tag.ID
		}

		created, createErr := s.repo.Create(ctx, tx, product)
		if createErr != nil {
			if pkgdb.IsUniqueViolation(createErr, "uq_products_child_code") {
				return duplicateChildCode(input.ChildCode)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "db: insert product")
		}
		createdID = created.ID

		if err := s.applyPairingSets(ctx, tx, created.ID, input.PairingSets); err != nil {
			return err
		}

		if _, err := s.links.RestoreLinks(ctx, tx, created.ID, created.ParentCode, created.ChildCode); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, createdID)
}

// Update mutates a catalog row and unconditionally re-renders its code
// images.
func (s *service) Update(ctx context.Context, id uuid.UUID, input ProductInput) (*ProductDTO, error) {
	if err := validateCodes(input); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrDependency(err, "product")
	}

	if input.ChildCode != existing.ChildCode {
		if _, err := s.repo.FindByChildCode(ctx, input.ChildCode); err == nil {
			return nil, duplicateChildCode(input.ChildCode)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: check child code")
		}
	}

	qrKey, barcodeKey, err := s.codes.Generate(ctx, input.ChildCode)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		existing.ParentCode = input.ParentCode
		existing.ChildCode = input.ChildCode
		existing.Location = input.Location
		existing.Stock = input.Stock
		existing.KPO = input.KPO
		existing.Weight = input.Weight
		existing.ThaiBaht = input.ThaiBaht
		existing.USDRate = input.USDRate
		existing.EuroRate = input.EuroRate
		existing.Note1 = input.Note1
		existing.Note2 = input.Note2
		existing.Description = input.Description
		existing.Unit = input.Unit
		existing.QRCodePath = qrKey
		existing.BarcodePath = barcodeKey

		if input.TagName != nil {
			name := strings.TrimSpace(*input.TagName)
			if name == "" {
				existing.TagID = nil
			} else {
				tag, tagErr := s.repo.GetOrCreateTag(ctx, tx, name)
				if tagErr != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, tagErr, "db: resolve tag")
				}
				existing.TagID = &tag.ID
			}
		}

		// Save only touches column fields; associations go through the
		// replace helpers below.
		existing.PairingSets = nil
		existing.Images = nil
		existing.ImageNames = nil
		if saveErr := s.repo.Save(ctx, tx, existing); saveErr != nil {
			if pkgdb.IsUniqueViolation(saveErr, "uq_products_child_code") {
				return duplicateChildCode(input.ChildCode)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, saveErr, "db: update product")
		}

		return s.applyPairingSets(ctx, tx, existing.ID, input.PairingSets)
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrDependency(err, "product")
	}
	dto := toDTO(product)
	return &dto, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	if input.Limit <= 0 || input.Limit > 500 {
		input.Limit = 100
	}
	rows, total, err := s.repo.List(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list products")
	}
	items := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		items = append(items, toDTO(&rows[i]))
	}
	return &ListResult{Items: items, Total: total}, nil
}

// Delete removes the product. Ledger rows referencing its codes survive so a
// re-created product gets its images back.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.Delete(ctx, tx, id); err != nil {
			return notFoundOrDependency(err, "product")
		}
		return nil
	})
}

func (s *service) DeleteBatch(ctx context.Context, ids []uuid.UUID) []BatchResult {
	results := make([]BatchResult, 0, len(ids))
	for _, id := range ids {
		result := BatchResult{ProductID: id, Status: "deleted"}
		if err := s.Delete(ctx, id); err != nil {
			result.Status = "failed"
			result.Error = err.Error()
		}
		results = append(results, result)
	}
	return results
}

func (s *service) DeleteAll(ctx context.Context) (int64, error) {
	var deleted int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		count, err := s.repo.DeleteAll(ctx, tx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete products")
		}
		deleted = count
		return nil
	})
	return deleted, err
}

// Lookup resolves an exact child or parent code and recommends products that
// share a pairing set.
func (s *service) Lookup(ctx context.Context, code string) (*LookupResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}

	product, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, notFoundOrDependency(err, "product")
	}

	matches, err := s.repo.MatchingProducts(ctx, product.ID, matchingItemsPerSet)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: matching products")
	}

	result := &LookupResult{Product: toDTO(product), MatchingItems: make([]ProductDTO, 0, len(matches))}
	for i := range matches {
		result.MatchingItems = append(result.MatchingItems, toDTO(&matches[i]))
	}
	return result, nil
}

func (s *service) applyPairingSets(ctx context.Context, tx *gorm.DB, productID uuid.UUID, values []string) error {
	setIDs := make([]uuid.UUID, 0, len(values))
	seen := map[string]struct{}{}
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		set, err := s.repo.GetOrCreatePairingSet(ctx, tx, value)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: resolve pairing set")
		}
		setIDs = append(setIDs, set.ID)
	}
	if err := s.repo.ReplacePairingSets(ctx, tx, productID, setIDs); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: replace pairing sets")
	}
	return nil
}

func toDTO(product *models.Product) ProductDTO {
	dto := ProductDTO{
		ID:          product.ID,
		ParentCode:  product.ParentCode,
		ChildCode:   product.ChildCode,
		Location:    product.Location,
		Stock:       product.Stock,
		KPO:         product.KPO,
		Weight:      product.Weight.StringFixed(2),
		ThaiBaht:    product.ThaiBaht,
		USDRate:     product.USDRate,
		EuroRate:    product.EuroRate,
		Note1:       product.Note1,
		Note2:       product.Note2,
		Description: product.Description,
		Unit:        product.Unit,
		QRCodePath:  product.QRCodePath,
		BarcodePath: product.BarcodePath,
		PairingSets: make([]string, 0, len(product.PairingSets)),
		Images:      make([]string, 0, len(product.Images)),
	}
	if product.Tag != nil {
		dto.Tag = product.Tag.Name
	}
	for _, set := range product.PairingSets {
		dto.PairingSets = append(dto.PairingSets, set.PairValue)
	}
	for _, image := range product.Images {
		dto.Images = append(dto.Images, image.Path)
	}
	return dto
}

func validateCodes(input ProductInput) error {
	if strings.TrimSpace(input.ParentCode) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "parent_code is required")
	}
	if strings.TrimSpace(input.ChildCode) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "child_code is required")
	}
	return nil
}

func duplicateChildCode(code string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "child code already exists").
		WithDetails(map[string]string{"child_code": code})
}

func notFoundOrDependency(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, what+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find "+what)
}
