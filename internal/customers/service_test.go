package customers

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/siamgems/inventory-backend/pkg/db/models"
	pkgerrors "github.com/siamgems/inventory-backend/pkg/errors"
)

func TestCreate_RequiresName(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newStubRepo())
	_, err := svc.Create(context.Background(), CustomerInput{Name: "  "})
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreate_TrimsFields(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newStubRepo())
	dto, err := svc.Create(context.Background(), CustomerInput{Name: "  Anong  ", Address: " Bangkok "})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if dto.Name != "Anong" || dto.Address != "Bangkok" {
		t.Fatalf("expected trimmed fields, got %+v", dto)
	}
}

func TestSetLocked_TogglesFlag(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	svc := newTestService(t, repo)

	dto, err := svc.Create(context.Background(), CustomerInput{Name: "Anong"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	locked, err := svc.SetLocked(context.Background(), dto.ID, true)
	if err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	if !locked.IsLocked {
		t.Fatal("expected customer to be locked")
	}

	unlocked, err := svc.SetLocked(context.Background(), dto.ID, false)
	if err != nil {
		t.Fatalf("unlock failed: %v", err)
	}
	if unlocked.IsLocked {
		t.Fatal("expected customer to be unlocked")
	}
}

func TestSetLocked_UnknownCustomer(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newStubRepo())
	_, err := svc.SetLocked(context.Background(), uuid.New(), true)
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLockedSummary(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	svc := newTestService(t, repo)

	first, _ := svc.Create(context.Background(), CustomerInput{Name: "Anong"})
	second, _ := svc.Create(context.Background(), CustomerInput{Name: "Boon"})
	if _, err := svc.SetLocked(context.Background(), first.ID, true); err != nil {
		t.Fatalf("lock failed: %v", err)
	}

	summary, err := svc.LockedSummary(context.Background())
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if summary.Count != 1 || len(summary.IDs) != 1 || summary.IDs[0] != first.ID {
		t.Fatalf("unexpected summary %+v (second=%s)", summary, second.ID)
	}
}

func TestSetLockedMany_CountsUpdatedRows(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	svc := newTestService(t, repo)

	first, _ := svc.Create(context.Background(), CustomerInput{Name: "Anong"})
	second, _ := svc.Create(context.Background(), CustomerInput{Name: "Boon"})

	updated, err := svc.SetLockedMany(context.Background(), []uuid.UUID{first.ID, second.ID, uuid.New()}, true)
	if err != nil {
		t.Fatalf("bulk lock failed: %v", err)
	}
	if updated != 2 {
		t.Fatalf("expected 2 updated, got %d", updated)
	}

	summary, err := svc.LockedSummary(context.Background())
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if summary.Count != 2 {
		t.Fatalf("expected 2 locked, got %d", summary.Count)
	}

	if _, err := svc.SetLockedMany(context.Background(), nil, true); pkgerrors.As(err) == nil {
		t.Fatal("expected validation error for empty id list")
	}
}

func TestDeleteMany_CountsDeleted(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	svc := newTestService(t, repo)

	dto, _ := svc.Create(context.Background(), CustomerInput{Name: "Anong"})
	deleted, err := svc.DeleteMany(context.Background(), []uuid.UUID{dto.ID, uuid.New()})
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}
}

type stubRepo struct {
	customers map[uuid.UUID]*models.Customer
}

func newStubRepo() *stubRepo {
	return &stubRepo{customers: map[uuid.UUID]*models.Customer{}}
}

func (s *stubRepo) Create(_ context.Context, _ *gorm.DB, customer *models.Customer) (*models.Customer, error) {
	customer.ID = uuid.New()
	s.customers[customer.ID] = customer
	return customer, nil
}

func (s *stubRepo) Save(_ context.Context, _ *gorm.DB, customer *models.Customer) error {
	if _, ok := s.customers[customer.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	s.customers[customer.ID] = customer
	return nil
}

func (s *stubRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Customer, error) {
	customer, ok := s.customers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *customer
	return &copied, nil
}

func (s *stubRepo) List(_ context.Context, search string, _, _ int) ([]models.Customer, int64, error) {
	var rows []models.Customer
	for _, customer := range s.customers {
		if search == "" || strings.Contains(strings.ToLower(customer.Name), strings.ToLower(search)) {
			rows = append(rows, *customer)
		}
	}
	return rows, int64(len(rows)), nil
}

func (s *stubRepo) Delete(_ context.Context, _ *gorm.DB, id uuid.UUID) error {
	if _, ok := s.customers[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(s.customers, id)
	return nil
}

func (s *stubRepo) DeleteByIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID) (int64, error) {
	var deleted int64
	for _, id := range ids {
		if _, ok := s.customers[id]; ok {
			delete(s.customers, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *stubRepo) SetLocked(_ context.Context, _ *gorm.DB, id uuid.UUID, locked bool) error {
	customer, ok := s.customers[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	customer.IsLocked = locked
	return nil
}

func (s *stubRepo) SetLockedByIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID, locked bool) (int64, error) {
	var updated int64
	for _, id := range ids {
		if customer, ok := s.customers[id]; ok {
			customer.IsLocked = locked
			updated++
		}
	}
	return updated, nil
}

func (s *stubRepo) ListLocked(_ context.Context) ([]models.Customer, error) {
	var rows []models.Customer
	for _, customer := range s.customers {
		if customer.IsLocked {
			rows = append(rows, *customer)
		}
	}
	return rows, nil
}

func (s *stubRepo) CountLocked(_ context.Context) (int64, error) {
	rows, _ := s.ListLocked(context.Background())
	return int64(len(rows)), nil
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

func newTestService(t *testing.T, repo customerRepository) Service {
	t.Helper()
	svc, err := NewService(repo, stubTxRunner{})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}
