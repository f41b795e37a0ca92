package customers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/siamgems/inventory-backend/pkg/db/models"
	pkgerrors "github.com/siamgems/inventory-backend/pkg/errors"
)

// Service manages customer records. The lock flag marks customers whose
// devices should receive cart broadcasts.
type Service interface {
	Create(ctx context.Context, input CustomerInput) (*CustomerDTO, error)
	Update(ctx context.Context, id uuid.UUID, input CustomerInput) (*CustomerDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*CustomerDTO, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteMany(ctx context.Context, ids []uuid.UUID) (int64, error)
	SetLocked(ctx context.Context, id uuid.UUID, locked bool) (*CustomerDTO, error)
	SetLockedMany(ctx context.Context, ids []uuid.UUID, locked bool) (int64, error)
	LockedSummary(ctx context.Context) (*LockedSummary, error)
}

// CustomerInput is the validated payload for create and update.
type CustomerInput struct {
	Name    string
	Address string
}

// CustomerDTO is a customer row returned to the API layer.
type CustomerDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	IsLocked  bool      `json:"is_locked"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListInput filters the customer listing.
type ListInput struct {
	Search string
	Limit  int
	Offset int
}

// ListResult is a page of customers.
type ListResult struct {
	Items []CustomerDTO `json:"items"`
	Total int64         `json:"total"`
}

// LockedSummary reports the customers currently flagged for broadcast.
type LockedSummary struct {
	Count int64       `json:"count"`
	IDs   []uuid.UUID `json:"ids"`
}

type customerRepository interface {
	Create(ctx context.Context, tx *gorm.DB, customer *models.Customer) (*models.Customer, error)
	Save(ctx context.Context, tx *gorm.DB, customer *models.Customer) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	List(ctx context.Context, search string, limit, offset int) ([]models.Customer, int64, error)
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (int64, error)
	SetLocked(ctx context.Context, tx *gorm.DB, id uuid.UUID, locked bool) error
	SetLockedByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, locked bool) (int64, error)
	ListLocked(ctx context.Context) ([]models.Customer, error)
	CountLocked(ctx context.Context) (int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo customerRepository
	tx   txRunner
}

// NewService constructs the customer service.
func NewService(repo customerRepository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tx runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) Create(ctx context.Context, input CustomerInput) (*CustomerDTO, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}

	var created *models.Customer
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		customer, createErr := s.repo.Create(ctx, tx, &models.Customer{
			Name:    strings.TrimSpace(input.Name),
			Address: strings.TrimSpace(input.Address),
		})
		if createErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "db: create customer")
		}
		created = customer
		return nil
	})
	if err != nil {
		return nil, err
	}

	dto := toDTO(created)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input CustomerInput) (*CustomerDTO, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}

	customer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrDependency(err)
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		customer.Name = strings.TrimSpace(input.Name)
		customer.Address = strings.TrimSpace(input.Address)
		if saveErr := s.repo.Save(ctx, tx, customer); saveErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, saveErr, "db: update customer")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	dto := toDTO(customer)
	return &dto, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*CustomerDTO, error) {
	customer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrDependency(err)
	}
	dto := toDTO(customer)
	return &dto, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	if input.Limit <= 0 || input.Limit > 500 {
		input.Limit = 100
	}
	rows, total, err := s.repo.List(ctx, input.Search, input.Limit, input.Offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list customers")
	}
	items := make([]CustomerDTO, 0, len(rows))
	for i := range rows {
		items = append(items, toDTO(&rows[i]))
	}
	return &ListResult{Items: items, Total: total}, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.Delete(ctx, tx, id); err != nil {
			return notFoundOrDependency(err)
		}
		return nil
	})
}

func (s *service) DeleteMany(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "ids are required")
	}
	var deleted int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		count, err := s.repo.DeleteByIDs(ctx, tx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete customers")
		}
		deleted = count
		return nil
	})
	return deleted, err
}

func (s *service) SetLocked(ctx context.Context, id uuid.UUID, locked bool) (*CustomerDTO, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.SetLocked(ctx, tx, id, locked); err != nil {
			return notFoundOrDependency(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *service) SetLockedMany(ctx context.Context, ids []uuid.UUID, locked bool) (int64, error) {
	if len(ids) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "ids are required")
	}
	var updated int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		count, err := s.repo.SetLockedByIDs(ctx, tx, ids, locked)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update customer locks")
		}
		updated = count
		return nil
	})
	return updated, err
}

func (s *service) LockedSummary(ctx context.Context) (*LockedSummary, error) {
	count, err := s.repo.CountLocked(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: count locked customers")
	}
	locked, err := s.repo.ListLocked(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list locked customers")
	}
	summary := &LockedSummary{Count: count, IDs: make([]uuid.UUID, 0, len(locked))}
	for _, customer := range locked {
		summary.IDs = append(summary.IDs, customer.ID)
	}
	return summary, nil
}

func toDTO(customer *models.Customer) CustomerDTO {
	return CustomerDTO{
		ID:        customer.ID,
		Name:      customer.Name,
		Address:   customer.Address,
		IsLocked:  customer.IsLocked,
		CreatedAt: customer.CreatedAt,
		UpdatedAt: customer.UpdatedAt,
	}
}

func notFoundOrDependency(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: customer lookup")
}
