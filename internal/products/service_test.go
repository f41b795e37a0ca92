package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/siamgems/inventory-backend/pkg/db/models"
	pkgerrors "github.com/siamgems/inventory-backend/pkg/errors"
)

func TestCreate_RejectsDuplicateChildCode(t *testing.T) {
	t.Parallel()

	repo := newStubCatalogRepo()
	svc := newTestService(t, repo, &stubLinks{}, &stubCodes{}, &stubBlobs{})

	if _, err := svc.Create(context.Background(), testInput("P-100", "P-100-A")); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	_, err := svc.Create(context.Background(), testInput("P-200", "P-100-A"))
	if err == nil {
		t.Fatal("expected duplicate child code error")
	}
	var coded *pkgerrors.Error
	if !errors.As(err, &coded) || coded.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreate_GeneratesCodesAndRestoresLinks(t *testing.T) {
	t.Parallel()

	repo := newStubCatalogRepo()
	links := &stubLinks{}
	codes := &stubCodes{}
	svc := newTestService(t, repo, links, codes, &stubBlobs{})

	dto, err := svc.Create(context.Background(), testInput("P-100", "P-100-A"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if codes.calls != 1 {
		t.Fatalf("expected 1 code generation, got %d", codes.calls)
	}
	if dto.QRCodePath != "qrcode_images/P-100-A.png" {
		t.Fatalf("unexpected qr path %q", dto.QRCodePath)
	}
	if dto.BarcodePath != "barcode_images/P-100-A.png" {
		t.Fatalf("unexpected barcode path %q", dto.BarcodePath)
	}
	if len(links.restored) != 1 || links.restored[0] != "P-100/P-100-A" {
		t.Fatalf("expected ledger restore for P-100/P-100-A, got %v", links.restored)
	}
}

func TestCreate_AssignsPairingSets(t *testing.T) {
	t.Parallel()

	repo := newStubCatalogRepo()
	svc := newTestService(t, repo, &stubLinks{}, &stubCodes{}, &stubBlobs{})

	input := testInput("P-100", "P-100-A")
	input.PairingSets = []string{"emerald-drop", "emerald-drop", " ", "gold-chain"}

	dto, err := svc.Create(context.Background(), input)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if len(dto.PairingSets) != 2 {
		t.Fatalf("expected 2 pairing sets, got %v", dto.PairingSets)
	}
}

func TestUpdate_RegeneratesCodes(t *testing.T) {
	t.Parallel()

	repo := newStubCatalogRepo()
	codes := &stubCodes{}
	svc := newTestService(t, repo, &stubLinks{}, codes, &stubBlobs{})

	dto, err := svc.Create(context.Background(), testInput("P-100", "P-100-A"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	input := testInput("P-100", "P-100-A")
	input.Location = "vault-2"
	if _, err := svc.Update(context.Background(), dto.ID, input); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if codes.calls != 2 {
		t.Fatalf("expected code regeneration on update, got %d calls", codes.calls)
	}
}

func TestUpdate_RejectsChildCodeCollision(t *testing.T) {
	t.Parallel()

	repo := newStubCatalogRepo()
	svc := newTestService(t, repo, &stubLinks{}, &stubCodes{}, &stubBlobs{})

	if _, err := svc.Create(context.Background(), testInput("P-100", "P-100-A")); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second, err := svc.Create(context.Background(), testInput("P-100", "P-100-B"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	input := testInput("P-100", "P-100-A")
	if _, err := svc.Update(context.Background(), second.ID, input); err == nil {
		t.Fatal("expected collision error")
	}
}

func TestLookup_ReturnsMatchingItems(t *testing.T) {
	t.Parallel()

	repo := newStubCatalogRepo()
	svc := newTestService(t, repo, &stubLinks{}, &stubCodes{}, &stubBlobs{})

	dto, err := svc.Create(context.Background(), testInput("P-100", "P-100-A"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	mate, err := svc.Create(context.Background(), testInput("P-100", "P-100-B"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	repo.matching[dto.ID] = []uuid.UUID{mate.ID}

	result, err := svc.Lookup(context.Background(), "P-100-A")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if result.Product.ChildCode != "P-100-A" {
		t.Fatalf("unexpected product %q", result.Product.ChildCode)
	}
	if len(result.MatchingItems) != 1 || result.MatchingItems[0].ChildCode != "P-100-B" {
		t.Fatalf("unexpected matching items %v", result.MatchingItems)
	}
}

func TestLookup_RequiresCode(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newStubCatalogRepo(), &stubLinks{}, &stubCodes{}, &stubBlobs{})
	if _, err := svc.Lookup(context.Background(), "   "); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestDeleteBatch_ReportsPerItem(t *testing.T) {
	t.Parallel()

	repo := newStubCatalogRepo()
	svc := newTestService(t, repo, &stubLinks{}, &stubCodes{}, &stubBlobs{})

	dto, err := svc.Create(context.Background(), testInput("P-100", "P-100-A"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	missing := uuid.New()
	results := svc.DeleteBatch(context.Background(), []uuid.UUID{dto.ID, missing})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Status != "deleted" {
		t.Fatalf("expected first delete to succeed: %+v", results[0])
	}
	if results[1].Status != "failed" || results[1].Error == "" {
		t.Fatalf("expected second delete to fail with reason: %+v", results[1])
	}
}

// --- stubs ---

type stubCatalogRepo struct {
	products     map[uuid.UUID]*models.Product
	byChild      map[string]uuid.UUID
	pairingSets  map[string]*models.PairingSet
	imageNames   map[string]*models.ImageName
	tags         map[string]*models.Tag
	imagesByPath map[string]*models.Image

	productSets   map[uuid.UUID][]uuid.UUID
	productNames  map[uuid.UUID][]uuid.UUID
	productImages map[uuid.UUID][]uuid.UUID
	matching      map[uuid.UUID][]uuid.UUID
}

func newStubCatalogRepo() *stubCatalogRepo {
	return &stubCatalogRepo{
		products:      map[uuid.UUID]*models.Product{},
		byChild:       map[string]uuid.UUID{},
		pairingSets:   map[string]*models.PairingSet{},
		imageNames:    map[string]*models.ImageName{},
		tags:          map[string]*models.Tag{},
		imagesByPath:  map[string]*models.Image{},
		productSets:   map[uuid.UUID][]uuid.UUID{},
		productNames:  map[uuid.UUID][]uuid.UUID{},
		productImages: map[uuid.UUID][]uuid.UUID{},
		matching:      map[uuid.UUID][]uuid.UUID{},
	}
}

func (s *stubCatalogRepo) Create(_ context.Context, _ *gorm.DB, product *models.Product) (*models.Product, error) {
	if _, exists := s.byChild[product.ChildCode]; exists {
		return nil, fmt.Errorf("duplicate key value violates unique constraint %q", "uq_products_child_code")
	}
	product.ID = uuid.New()
	s.products[product.ID] = product
	s.byChild[product.ChildCode] = product.ID
	return product, nil
}

func (s *stubCatalogRepo) Save(_ context.Context, _ *gorm.DB, product *models.Product) error {
	stored, ok := s.products[product.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if stored.ChildCode != product.ChildCode {
		delete(s.byChild, stored.ChildCode)
		s.byChild[product.ChildCode] = product.ID
	}
	s.products[product.ID] = product
	return nil
}

func (s *stubCatalogRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	product, ok := s.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return s.hydrate(product), nil
}

func (s *stubCatalogRepo) FindByChildCode(_ context.Context, childCode string) (*models.Product, error) {
	id, ok := s.byChild[childCode]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return s.hydrate(s.products[id]), nil
}

func (s *stubCatalogRepo) FindByCode(ctx context.Context, code string) (*models.Product, error) {
	if product, err := s.FindByChildCode(ctx, code); err == nil {
		return product, nil
	}
	for _, product := range s.products {
		if product.ParentCode == code {
			return s.hydrate(product), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCatalogRepo) List(_ context.Context, _ ListInput) ([]models.Product, int64, error) {
	rows := make([]models.Product, 0, len(s.products))
	for _, product := range s.products {
		rows = append(rows, *s.hydrate(product))
	}
	return rows, int64(len(rows)), nil
}

func (s *stubCatalogRepo) ListByIDs(_ context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var rows []models.Product
	for _, id := range ids {
		if product, ok := s.products[id]; ok {
			rows = append(rows, *s.hydrate(product))
		}
	}
	return rows, nil
}

func (s *stubCatalogRepo) ListAll(_ context.Context) ([]models.Product, error) {
	rows, _, err := s.List(context.Background(), ListInput{})
	return rows, err
}

func (s *stubCatalogRepo) Delete(_ context.Context, _ *gorm.DB, id uuid.UUID) error {
	product, ok := s.products[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	delete(s.byChild, product.ChildCode)
	delete(s.products, id)
	return nil
}

func (s *stubCatalogRepo) DeleteByIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID) (int64, error) {
	var deleted int64
	for _, id := range ids {
		if err := s.Delete(context.Background(), nil, id); err == nil {
			deleted++
		}
	}
	return deleted, nil
}

func (s *stubCatalogRepo) DeleteAll(_ context.Context, _ *gorm.DB) (int64, error) {
	deleted := int64(len(s.products))
	s.products = map[uuid.UUID]*models.Product{}
	s.byChild = map[string]uuid.UUID{}
	return deleted, nil
}

func (s *stubCatalogRepo) ReplacePairingSets(_ context.Context, _ *gorm.DB, productID uuid.UUID, setIDs []uuid.UUID) error {
	s.productSets[productID] = setIDs
	return nil
}

func (s *stubCatalogRepo) ReplaceImageNames(_ context.Context, _ *gorm.DB, productID uuid.UUID, nameIDs []uuid.UUID) error {
	s.productNames[productID] = nameIDs
	return nil
}

func (s *stubCatalogRepo) ReplaceImages(_ context.Context, _ *gorm.DB, productID uuid.UUID, imageIDs []uuid.UUID) error {
	s.productImages[productID] = imageIDs
	return nil
}

func (s *stubCatalogRepo) GetOrCreatePairingSet(_ context.Context, _ *gorm.DB, value string) (*models.PairingSet, error) {
	if set, ok := s.pairingSets[value]; ok {
		return set, nil
	}
	set := &models.PairingSet{ID: uuid.New(), PairValue: value}
	s.pairingSets[value] = set
	return set, nil
}

func (s *stubCatalogRepo) GetOrCreateImageName(_ context.Context, _ *gorm.DB, name string) (*models.ImageName, error) {
	if row, ok := s.imageNames[name]; ok {
		return row, nil
	}
	row := &models.ImageName{ID: uuid.New(), Name: name}
	s.imageNames[name] = row
	return row, nil
}

func (s *stubCatalogRepo) GetOrCreateTag(_ context.Context, _ *gorm.DB, name string) (*models.Tag, error) {
	if tag, ok := s.tags[name]; ok {
		return tag, nil
	}
	tag := &models.Tag{ID: uuid.New(), Name: name}
	s.tags[name] = tag
	return tag, nil
}

func (s *stubCatalogRepo) FindOrCreateImageByPath(_ context.Context, _ *gorm.DB, path string) (*models.Image, error) {
	if image, ok := s.imagesByPath[path]; ok {
		return image, nil
	}
	image := &models.Image{ID: uuid.New(), Path: path}
	s.imagesByPath[path] = image
	return image, nil
}

func (s *stubCatalogRepo) MatchingProducts(_ context.Context, productID uuid.UUID, _ int) ([]models.Product, error) {
	var rows []models.Product
	for _, id := range s.matching[productID] {
		if product, ok := s.products[id]; ok {
			rows = append(rows, *s.hydrate(product))
		}
	}
	return rows, nil
}

// hydrate resolves join-table state into the preload fields the way the real
// repository does.
func (s *stubCatalogRepo) hydrate(product *models.Product) *models.Product {
	copied := *product
	copied.PairingSets = nil
	copied.Images = nil
	for _, setID := range s.productSets[product.ID] {
		for _, set := range s.pairingSets {
			if set.ID == setID {
				copied.PairingSets = append(copied.PairingSets, *set)
			}
		}
	}
	for _, imageID := range s.productImages[product.ID] {
		for _, image := range s.imagesByPath {
			if image.ID == imageID {
				copied.Images = append(copied.Images, *image)
			}
		}
	}
	return &copied
}

type stubLinks struct {
	restored []string
}

func (s *stubLinks) RestoreLinks(_ context.Context, _ *gorm.DB, _ uuid.UUID, parentCode, childCode string) (int, error) {
	s.restored = append(s.restored, parentCode+"/"+childCode)
	return 0, nil
}

type stubCodes struct {
	calls int
	err   error
}

func (s *stubCodes) Generate(_ context.Context, childCode string) (string, string, error) {
	if s.err != nil {
		return "", "", s.err
	}
	s.calls++
	return "qrcode_images/" + childCode + ".png", "barcode_images/" + childCode + ".png", nil
}

type stubBlobs struct {
	existing map[string]bool
}

func (s *stubBlobs) Exists(_ context.Context, key string) (bool, error) {
	return s.existing[key], nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(testTx())
}

type fakeConnPool struct{}

func (fakeConnPool) PrepareContext(_ context.Context, _ string) (*sql.Stmt, error) {
	return nil, errors.New("not implemented")
}

func (fakeConnPool) ExecContext(_ context.Context, _ string, _ ...interface{}) (sql.Result, error) {
	return nil, errors.New("not implemented")
}

func (fakeConnPool) QueryContext(_ context.Context, _ string, _ ...interface{}) (*sql.Rows, error) {
	return nil, errors.New("not implemented")
}

func (fakeConnPool) QueryRowContext(_ context.Context, _ string, _ ...interface{}) *sql.Row {
	return &sql.Row{}
}

func testTx() *gorm.DB {
	return &gorm.DB{Statement: &gorm.Statement{ConnPool: fakeConnPool{}}}
}

func newTestService(t *testing.T, repo catalogRepository, links linkRestorer, codes codeGenerator, blobs blobChecker) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:          repo,
		LinkRestorer:  links,
		CodeGenerator: codes,
		BlobChecker:   blobs,
		TxRunner:      stubTxRunner{},
	})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func testInput(parent, child string) ProductInput {
	return ProductInput{
		ParentCode: parent,
		ChildCode:  child,
		Location:   "vault-1",
		Stock:      "1",
		Weight:     decimal.NewFromFloat(2.5),
		ThaiBaht:   "1500",
		USDRate:    "45",
		EuroRate:   "42",
	}
}
