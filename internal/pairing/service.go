package pairing

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/siamgems/inventory-backend/pkg/db/models"
	pkgerrors "github.com/siamgems/inventory-backend/pkg/errors"
)

// Service manages pairing set values, the grouping key behind matching-item
// recommendations.
type Service interface {
	List(ctx context.Context, search string) ([]PairingSetDTO, error)
	Create(ctx context.Context, value string) (*PairingSetDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteMany(ctx context.Context, ids []uuid.UUID) (int64, error)
	Import(ctx context.Context, data io.Reader) (*ImportReport, error)
	Export(ctx context.Context) ([]byte, error)
}

// PairingSetDTO is a pairing set row returned to the API layer.
type PairingSetDTO struct {
	ID        uuid.UUID `json:"id"`
	PairValue string    `json:"pair_value"`
	CreatedAt time.Time `json:"created_at"`
}

// ImportReport summarizes a pairing set workbook import.
type ImportReport struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

type pairingRepository interface {
	Create(ctx context.Context, tx *gorm.DB, set *models.PairingSet) (*models.PairingSet, error)
	FindByValue(ctx context.Context, value string) (*models.PairingSet, error)
	List(ctx context.Context, search string) ([]models.PairingSet, error)
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo pairingRepository
	tx   txRunner
}

// NewService constructs the pairing set service.
func NewService(repo pairingRepository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pairing repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tx runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) List(ctx context.Context, search string) ([]PairingSetDTO, error) {
	sets, err := s.repo.List(ctx, search)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list pairing sets")
	}
	dtos := make([]PairingSetDTO, 0, len(sets))
	for _, set := range sets {
		dtos = append(dtos, toDTO(set))
	}
	return dtos, nil
}

func (s *service) Create(ctx context.Context, value string) (*PairingSetDTO, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pair_value is required")
	}

	if _, err := s.repo.FindByValue(ctx, value); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "pairing set already exists").
			WithDetails(map[string]string{"pair_value": value})
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: check pairing set")
	}

	var created *models.PairingSet
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		set, createErr := s.repo.Create(ctx, tx, &models.PairingSet{PairValue: value})
		if createErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "db: create pairing set")
		}
		created = set
		return nil
	})
	if err != nil {
		return nil, err
	}

	dto := toDTO(*created)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.Delete(ctx, tx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "pairing set not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete pairing set")
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
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete pairing sets")
		}
		deleted = count
		return nil
	})
	return deleted, err
}

// Import reads pairing set values from the first column of a workbook,
// creating missing ones and skipping values that already exist.
func (s *service) Import(ctx context.Context, data io.Reader) (*ImportReport, error) {
	workbook, err := excelize.OpenReader(data)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "open workbook")
	}
	defer workbook.Close()

	rows, err := workbook.GetRows(workbook.GetSheetName(0))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read sheet")
	}

	report := &ImportReport{}
	seen := map[string]struct{}{}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		value := strings.TrimSpace(row[0])
		if value == "" {
			continue
		}
		if _, dup := seen[value]; dup {
			report.Skipped++
			continue
		}
		seen[value] = struct{}{}

		_, err := s.Create(ctx, value)
		coded := pkgerrors.As(err)
		switch {
		case err == nil:
			report.Created++
		case coded != nil && coded.Code() == pkgerrors.CodeConflict:
			report.Skipped++
		default:
			report.Errors = append(report.Errors, value+": "+err.Error())
		}
	}
	return report, nil
}

// Export writes every pairing set value into the first column of a workbook.
func (s *service) Export(ctx context.Context) ([]byte, error) {
	sets, err := s.repo.List(ctx, "")
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: export pairing sets")
	}

	workbook := excelize.NewFile()
	defer workbook.Close()
	sheet := workbook.GetSheetName(0)

	if err := workbook.SetCellValue(sheet, "A1", "Pair Value"); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "excelize: write header")
	}
	for i, set := range sets {
		cell, cellErr := excelize.CoordinatesToCellName(1, i+2)
		if cellErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, cellErr, "excelize: data cell")
		}
		if err := workbook.SetCellValue(sheet, cell, set.PairValue); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "excelize: write row")
		}
	}

	var buf bytes.Buffer
	if err := workbook.Write(&buf); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "excelize: serialize workbook")
	}
	return buf.Bytes(), nil
}

func toDTO(set models.PairingSet) PairingSetDTO {
	return PairingSetDTO{ID: set.ID, PairValue: set.PairValue, CreatedAt: set.CreatedAt}
}
