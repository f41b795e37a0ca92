package images

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/siamgems/inventory-backend/pkg/db/models"
)

type linkKey struct {
	productID uuid.UUID
	imageID   uuid.UUID
}

type stubImageRepo struct {
	images   map[uuid.UUID]*models.Image
	products map[uuid.UUID]ProductCode
	attached map[linkKey]bool

	createErr error
}

func newStubImageRepo() *stubImageRepo {
	return &stubImageRepo{
		images:   map[uuid.UUID]*models.Image{},
		products: map[uuid.UUID]ProductCode{},
		attached: map[linkKey]bool{},
	}
}

func (s *stubImageRepo) CreateImage(_ context.Context, _ *gorm.DB, image *models.Image) (*models.Image, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	image.ID = uuid.New()
	s.images[image.ID] = image
	return image, nil
}

func (s *stubImageRepo) FindImage(_ context.Context, id uuid.UUID) (*models.Image, error) {
	if img, ok := s.images[id]; ok {
		return img, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubImageRepo) ListImages(_ context.Context, _ ListInput) ([]ImageRow, error) {
	rows := make([]ImageRow, 0, len(s.images))
	for _, img := range s.images {
		count := 0
		for key := range s.attached {
			if key.imageID == img.ID {
				count++
			}
		}
		rows = append(rows, ImageRow{ID: img.ID, Path: img.Path, LinkedProducts: count})
	}
	return rows, nil
}

func (s *stubImageRepo) ListAllImages(_ context.Context) ([]models.Image, error) {
	out := make([]models.Image, 0, len(s.images))
	for _, img := range s.images {
		out = append(out, *img)
	}
	return out, nil
}

func (s *stubImageRepo) HasImageWithBaseName(_ context.Context, base string) (bool, error) {
	target := strings.ToLower(strings.TrimSpace(base))
	for _, img := range s.images {
		if strings.Contains(strings.ToLower(img.Path), target) {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubImageRepo) DeleteImage(_ context.Context, _ *gorm.DB, id uuid.UUID) error {
	delete(s.images, id)
	return nil
}

func (s *stubImageRepo) Attach(_ context.Context, _ *gorm.DB, productID, imageID uuid.UUID) error {
	s.attached[linkKey{productID: productID, imageID: imageID}] = true
	return nil
}

func (s *stubImageRepo) Detach(_ context.Context, _ *gorm.DB, productID, imageID uuid.UUID) error {
	delete(s.attached, linkKey{productID: productID, imageID: imageID})
	return nil
}

func (s *stubImageRepo) DetachAllForImage(_ context.Context, _ *gorm.DB, imageID uuid.UUID) error {
	for key := range s.attached {
		if key.imageID == imageID {
			delete(s.attached, key)
		}
	}
	return nil
}

func (s *stubImageRepo) ProductIDsForImage(_ context.Context, imageID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for key := range s.attached {
		if key.imageID == imageID {
			ids = append(ids, key.productID)
		}
	}
	return ids, nil
}

func (s *stubImageRepo) ListProductCodes(_ context.Context) ([]ProductCode, error) {
	out := make([]ProductCode, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	return out, nil
}

func (s *stubImageRepo) FindProductCode(_ context.Context, productID uuid.UUID) (*ProductCode, error) {
	if p, ok := s.products[productID]; ok {
		return &p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type ledgerRow struct {
	imageID    uuid.UUID
	parentCode string
	childCode  string
}

type stubLedgerRepo struct {
	rows map[ledgerRow]bool
}

func newStubLedgerRepo() *stubLedgerRepo {
	return &stubLedgerRepo{rows: map[ledgerRow]bool{}}
}

func (s *stubLedgerRepo) UpsertLink(_ context.Context, _ *gorm.DB, link *models.ProductImageLink) error {
	s.rows[ledgerRow{imageID: link.ImageID, parentCode: link.ParentCode, childCode: link.ChildCode}] = true
	return nil
}

func (s *stubLedgerRepo) DeleteLinks(_ context.Context, _ *gorm.DB, imageID uuid.UUID, parentCode, childCode string) error {
	delete(s.rows, ledgerRow{imageID: imageID, parentCode: parentCode, childCode: childCode})
	return nil
}

func (s *stubLedgerRepo) ImageIDsLinkedTo(_ context.Context, parentCode, childCode string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for row := range s.rows {
		if row.parentCode == parentCode && row.childCode == childCode {
			ids = append(ids, row.imageID)
		}
	}
	return ids, nil
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

type memBlobStore struct {
	blobs   map[string][]byte
	saveErr error
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{blobs: map[string][]byte{}}
}

func (s *memBlobStore) Save(_ context.Context, key string, data io.Reader) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.blobs[key] = raw
	return nil
}

func (s *memBlobStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	raw, ok := s.blobs[key]
	if !ok {
		return nil, errors.New("blob not found")
	}
	return io.NopCloser(strings.NewReader(string(raw))), nil
}

func (s *memBlobStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := s.blobs[key]
	return ok, nil
}

func (s *memBlobStore) Delete(_ context.Context, key string) error {
	delete(s.blobs, key)
	return nil
}

func newTestService(t *testing.T, repo *stubImageRepo, ledger *stubLedgerRepo, store *memBlobStore) Service {
	t.Helper()
	svc, err := NewService(repo, ledger, stubTxRunner{}, store)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func addProduct(repo *stubImageRepo, parent, child string) uuid.UUID {
	id := uuid.New()
	repo.products[id] = ProductCode{ID: id, ParentCode: parent, ChildCode: child}
	return id
}

func addImage(repo *stubImageRepo, filePath string) uuid.UUID {
	id := uuid.New()
	repo.images[id] = &models.Image{ID: id, Path: filePath}
	return id
}

func TestAutoLink_SubstringBothDirections(t *testing.T) {
	t.Parallel()

	repo := newStubImageRepo()
	ledger := newStubLedgerRepo()
	svc := newTestService(t, repo, ledger, newMemBlobStore())

	// File token contains the child code.
	withSuffix := addProduct(repo, "ER-1001", "ER-1001-A")
	// Parent code contains the file token.
	shorter := addProduct(repo, "er-1001-a-long", "XX-9")
	// Unrelated.
	addProduct(repo, "RN-2002", "RN-2002-B")

	imageID := addImage(repo, "product_images/er-1001-a.jpg")

	linked, err := svc.AutoLink(context.Background(), imageID)
	if err != nil {
		t.Fatalf("AutoLink failed: %v", err)
	}
	if linked != 2 {
		t.Fatalf("expected 2 linked products, got %d", linked)
	}
	if !repo.attached[linkKey{productID: withSuffix, imageID: imageID}] {
		t.Fatal("expected child-code match to attach")
	}
	if !repo.attached[linkKey{productID: shorter, imageID: imageID}] {
		t.Fatal("expected parent-code reverse match to attach")
	}
	if len(ledger.rows) != 2 {
		t.Fatalf("expected 2 ledger rows, got %d", len(ledger.rows))
	}
}

func TestAutoLink_Idempotent(t *testing.T) {
	t.Parallel()

	repo := newStubImageRepo()
	ledger := newStubLedgerRepo()
	svc := newTestService(t, repo, ledger, newMemBlobStore())

	addProduct(repo, "ER-1001", "ER-1001-A")
	imageID := addImage(repo, "product_images/ER-1001-A.jpg")

	for i := 0; i < 2; i++ {
		if _, err := svc.AutoLink(context.Background(), imageID); err != nil {
			t.Fatalf("AutoLink run %d failed: %v", i+1, err)
		}
	}
	if len(repo.attached) != 1 {
		t.Fatalf("expected a single association, got %d", len(repo.attached))
	}
	if len(ledger.rows) != 1 {
		t.Fatalf("expected a single ledger row, got %d", len(ledger.rows))
	}
}

func TestUnlink_SeversLedger(t *testing.T) {
	t.Parallel()

	repo := newStubImageRepo()
	ledger := newStubLedgerRepo()
	svc := newTestService(t, repo, ledger, newMemBlobStore())

	productID := addProduct(repo, "ER-1001", "ER-1001-A")
	imageID := addImage(repo, "product_images/ER-1001-A.jpg")

	if err := svc.Link(context.Background(), imageID, productID); err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	if len(ledger.rows) != 1 {
		t.Fatalf("expected ledger row after link, got %d", len(ledger.rows))
	}

	if err := svc.Unlink(context.Background(), imageID, productID); err != nil {
		t.Fatalf("Unlink failed: %v", err)
	}
	if len(repo.attached) != 0 {
		t.Fatal("expected association removed")
	}
	if len(ledger.rows) != 0 {
		t.Fatal("expected ledger row removed; re-creation must not restore this image")
	}
}

func TestDelete_KeepsLedgerRows(t *testing.T) {
	t.Parallel()

	repo := newStubImageRepo()
	ledger := newStubLedgerRepo()
	store := newMemBlobStore()
	svc := newTestService(t, repo, ledger, store)

	productID := addProduct(repo, "ER-1001", "ER-1001-A")
	imageID := addImage(repo, "product_images/ER-1001-A.jpg")
	store.blobs["product_images/ER-1001-A.jpg"] = []byte("img")

	if err := svc.Link(context.Background(), imageID, productID); err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	if err := svc.Delete(context.Background(), imageID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if len(repo.images) != 0 {
		t.Fatal("expected image row removed")
	}
	if len(repo.attached) != 0 {
		t.Fatal("expected associations removed")
	}
	if _, ok := store.blobs["product_images/ER-1001-A.jpg"]; ok {
		t.Fatal("expected blob removed")
	}
	if len(ledger.rows) != 1 {
		t.Fatalf("expected ledger row to survive image deletion, got %d", len(ledger.rows))
	}
}

func TestSetLinks_Reconciles(t *testing.T) {
	t.Parallel()

	repo := newStubImageRepo()
	ledger := newStubLedgerRepo()
	svc := newTestService(t, repo, ledger, newMemBlobStore())

	kept := addProduct(repo, "ER-1001", "ER-1001-A")
	removed := addProduct(repo, "RN-2002", "RN-2002-B")
	added := addProduct(repo, "NK-3003", "NK-3003-C")
	imageID := addImage(repo, "product_images/set.jpg")

	if err := svc.Link(context.Background(), imageID, kept); err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	if err := svc.Link(context.Background(), imageID, removed); err != nil {
		t.Fatalf("Link failed: %v", err)
	}

	if err := svc.SetLinks(context.Background(), imageID, []uuid.UUID{kept, added}); err != nil {
		t.Fatalf("SetLinks failed: %v", err)
	}

	if !repo.attached[linkKey{productID: kept, imageID: imageID}] {
		t.Fatal("expected kept product to stay attached")
	}
	if !repo.attached[linkKey{productID: added, imageID: imageID}] {
		t.Fatal("expected added product to be attached")
	}
	if repo.attached[linkKey{productID: removed, imageID: imageID}] {
		t.Fatal("expected deselected product to be detached")
	}
	if ledger.rows[ledgerRow{imageID: imageID, parentCode: "RN-2002", childCode: "RN-2002-B"}] {
		t.Fatal("expected deselected product's ledger row to be removed")
	}
	if !ledger.rows[ledgerRow{imageID: imageID, parentCode: "NK-3003", childCode: "NK-3003-C"}] {
		t.Fatal("expected added product's ledger row")
	}
}

func TestRestoreLinks_ReattachesAndSkipsOrphans(t *testing.T) {
	t.Parallel()

	repo := newStubImageRepo()
	ledger := newStubLedgerRepo()
	svc := newTestService(t, repo, ledger, newMemBlobStore())

	surviving := addImage(repo, "product_images/ER-1001-A.jpg")
	orphan := uuid.New() // ledger row whose image was deleted

	ledger.rows[ledgerRow{imageID: surviving, parentCode: "ER-1001", childCode: "ER-1001-A"}] = true
	ledger.rows[ledgerRow{imageID: orphan, parentCode: "ER-1001", childCode: "ER-1001-A"}] = true
	ledger.rows[ledgerRow{imageID: surviving, parentCode: "RN-2002", childCode: "RN-2002-B"}] = true

	newProductID := uuid.New()
	restored, err := svc.RestoreLinks(context.Background(), testTx(), newProductID, "ER-1001", "ER-1001-A")
	if err != nil {
		t.Fatalf("RestoreLinks failed: %v", err)
	}
	if restored != 1 {
		t.Fatalf("expected 1 restored image, got %d", restored)
	}
	if !repo.attached[linkKey{productID: newProductID, imageID: surviving}] {
		t.Fatal("expected surviving ledger image to be re-attached")
	}
}

func TestIngestBatch_PerItemIsolation(t *testing.T) {
	t.Parallel()

	repo := newStubImageRepo()
	ledger := newStubLedgerRepo()
	store := newMemBlobStore()
	svc := newTestService(t, repo, ledger, store)

	addProduct(repo, "ER-1001", "ER-1001-A")
	addImage(repo, "product_images/existing.jpg")

	results, err := svc.IngestBatch(context.Background(), []IngestItem{
		{Name: "ER-1001-A.jpg", Data: strings.NewReader("one")},
		{Name: "EXISTING.png", Data: strings.NewReader("dup")}, // same base name, different case/ext
		{Name: "unrelated.jpg", Data: strings.NewReader("three")},
	})
	if err != nil {
		t.Fatalf("IngestBatch failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	if results[0].Status != StatusAdded || results[0].LinkedProducts != 1 {
		t.Fatalf("expected first file added and linked, got %+v", results[0])
	}
	if results[1].Status != StatusSkipped {
		t.Fatalf("expected duplicate base name skipped, got %+v", results[1])
	}
	if results[2].Status != StatusAdded || results[2].LinkedProducts != 0 {
		t.Fatalf("expected third file added without links, got %+v", results[2])
	}
}

func TestIngestBatch_SkipsWhenStoredPathContainsBaseName(t *testing.T) {
	t.Parallel()

	repo := newStubImageRepo()
	svc := newTestService(t, repo, newStubLedgerRepo(), newMemBlobStore())

	addImage(repo, "product_images/ER-1001-A-front.jpg")

	results, err := svc.IngestBatch(context.Background(), []IngestItem{
		{Name: "er-1001-a.jpg", Data: strings.NewReader("dup")},
	})
	if err != nil {
		t.Fatalf("IngestBatch failed: %v", err)
	}
	if results[0].Status != StatusSkipped {
		t.Fatalf("expected near-duplicate name skipped, got %+v", results[0])
	}
	if len(repo.images) != 1 {
		t.Fatalf("expected no new image row, got %d", len(repo.images))
	}
}

func TestIngestBatch_StorageFailureIsolated(t *testing.T) {
	t.Parallel()

	repo := newStubImageRepo()
	svc := newTestService(t, repo, newStubLedgerRepo(), &memBlobStore{saveErr: errors.New("disk full"), blobs: map[string][]byte{}})

	results, err := svc.IngestBatch(context.Background(), []IngestItem{
		{Name: "a.jpg", Data: strings.NewReader("x")},
		{Name: "b.jpg", Data: strings.NewReader("y")},
	})
	if err != nil {
		t.Fatalf("IngestBatch failed: %v", err)
	}
	for _, result := range results {
		if result.Status != StatusFailed {
			t.Fatalf("expected failure status, got %+v", result)
		}
		if result.Error == "" {
			t.Fatal("expected per-item error message")
		}
	}
}

func TestDeleteBatch_ReportsPerItem(t *testing.T) {
	t.Parallel()

	repo := newStubImageRepo()
	svc := newTestService(t, repo, newStubLedgerRepo(), newMemBlobStore())

	good := addImage(repo, "product_images/good.jpg")
	missing := uuid.New()

	results := svc.DeleteBatch(context.Background(), []uuid.UUID{good, missing})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Status != "deleted" {
		t.Fatalf("expected first delete to succeed, got %+v", results[0])
	}
	if results[1].Status != StatusFailed {
		t.Fatalf("expected missing image to fail, got %+v", results[1])
	}
}
