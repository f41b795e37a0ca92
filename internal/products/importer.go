package products

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/siamgems/inventory-backend/pkg/db/models"
	pkgerrors "github.com/siamgems/inventory-backend/pkg/errors"
	"github.com/siamgems/inventory-backend/pkg/storage/local"
)

const (
	catalogJobName     = "catalog_import"
	catalogMinColumns  = 13
	colParentCode      = 0
	colChildCode       = 1
	colLocation        = 2
	colStock           = 3
	colKPO             = 4
	colPairingSets     = 5
	colWeight          = 6
	colThaiBaht        = 7
	colUSDRate         = 8
	colEuroRate        = 9
	colNote1           = 10
	colNote2           = 11
	colImageNameTokens = 12
)

// RowError reports a single failed or skipped import row.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// ImportReport summarizes a bulk catalog import.
type ImportReport struct {
	Processed int        `json:"processed"`
	Created   int        `json:"created"`
	Updated   int        `json:"updated"`
	Skipped   int        `json:"skipped"`
	Errors    []RowError `json:"errors,omitempty"`
}

// ImportCatalog upserts catalog rows from a workbook. The first data row is
// checked for the expected column count before any row is written, rows with a
// blank parent code are skipped, and each row commits independently so one bad
// row never aborts the file.
func (s *service) ImportCatalog(ctx context.Context, data io.Reader) (*ImportReport, error) {
	start := time.Now()

	report, err := s.importCatalog(ctx, data)

	if s.metrics != nil {
		s.metrics.ObserveDuration(catalogJobName, time.Since(start))
		if err != nil {
			s.metrics.IncFailure(catalogJobName)
		} else {
			s.metrics.IncSuccess(catalogJobName)
			s.metrics.AddRows(catalogJobName, "created", report.Created)
			s.metrics.AddRows(catalogJobName, "updated", report.Updated)
			s.metrics.AddRows(catalogJobName, "skipped", report.Skipped)
		}
	}
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (s *service) importCatalog(ctx context.Context, data io.Reader) (*ImportReport, error) {
	workbook, err := excelize.OpenReader(data)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "open workbook")
	}
	defer workbook.Close()

	sheet := workbook.GetSheetName(0)
	rows, err := workbook.GetRows(sheet)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read sheet")
	}
	if len(rows) < 2 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "workbook has no data rows")
	}
	if len(rows)-1 > s.maxRows {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("workbook exceeds %d row limit", s.maxRows))
	}
	// Trailing blank cells are truncated when reading, so the header row is
	// the reliable witness of the sheet's column layout.
	if len(rows[0]) < catalogMinColumns {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("expected at least %d columns, got %d", catalogMinColumns, len(rows[0])))
	}

	report := &ImportReport{}
	for i, row := range rows[1:] {
		rowNum := i + 2
		row = padRow(row, catalogMinColumns)

		if strings.TrimSpace(row[colParentCode]) == "" {
			report.Skipped++
			continue
		}
		report.Processed++

		created, err := s.importRow(ctx, row)
		if err != nil {
			report.Errors = append(report.Errors, RowError{Row: rowNum, Reason: err.Error()})
			continue
		}
		if created {
			report.Created++
		} else {
			report.Updated++
		}
	}
	return report, nil
}

// importRow upserts a single catalog row keyed on child_code. Returns whether
// the row created a new product.
func (s *service) importRow(ctx context.Context, row []string) (bool, error) {
	childCode := strings.TrimSpace(row[colChildCode])
	if childCode == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "child_code is required")
	}

	weight, err := decimal.NewFromString(strings.TrimSpace(row[colWeight]))
	if err != nil {
		weight = decimal.Zero
	}

	existing, findErr := s.repo.FindByChildCode(ctx, childCode)
	if findErr != nil && findErr != gorm.ErrRecordNotFound {
		return false, findErr
	}
	creating := findErr == gorm.ErrRecordNotFound

	qrKey, barcodeKey, err := s.codes.Generate(ctx, childCode)
	if err != nil {
		return false, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var product *models.Product
		if creating {
			product = &models.Product{
				ParentCode: strings.TrimSpace(row[colParentCode]),
				ChildCode:  childCode,
			}
		} else {
			product = existing
			product.PairingSets = nil
			product.Images = nil
			product.ImageNames = nil
		}

		product.Location = strings.TrimSpace(row[colLocation])
		product.Stock = strings.TrimSpace(row[colStock])
		product.KPO = strings.TrimSpace(row[colKPO])
		product.Weight = weight
		product.ThaiBaht = strings.TrimSpace(row[colThaiBaht])
		product.USDRate = strings.TrimSpace(row[colUSDRate])
		product.EuroRate = strings.TrimSpace(row[colEuroRate])
		product.Note1 = strings.TrimSpace(row[colNote1])
		product.Note2 = strings.TrimSpace(row[colNote2])
		product.QRCodePath = qrKey
		product.BarcodePath = barcodeKey

		if creating {
			if _, err := s.repo.Create(ctx, tx, product); err != nil {
				return err
			}
		} else if err := s.repo.Save(ctx, tx, product); err != nil {
			return err
		}

		if err := s.applyPairingSets(ctx, tx, product.ID, splitTokens(row[colPairingSets])); err != nil {
			return err
		}
		if err := s.applyImageNames(ctx, tx, product.ID, splitTokens(row[colImageNameTokens])); err != nil {
			return err
		}

		if creating {
			if _, err := s.links.RestoreLinks(ctx, tx, product.ID, product.ParentCode, product.ChildCode); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return creating, nil
}

// applyImageNames binds name tokens to the product and replaces its image set
// with the blobs those names resolve to. This replaces rather than merges,
// unlike the additive auto-link path.
func (s *service) applyImageNames(ctx context.Context, tx *gorm.DB, productID uuid.UUID, tokens []string) error {
	nameIDs := make([]uuid.UUID, 0, len(tokens))
	imageIDs := make([]uuid.UUID, 0, len(tokens))

	for _, token := range tokens {
		name, err := s.repo.GetOrCreateImageName(ctx, tx, token)
		if err != nil {
			return err
		}
		nameIDs = append(nameIDs, name.ID)

		key := local.BuildKey(local.ProductImagesPrefix, token)
		exists, err := s.blobs.Exists(ctx, key)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		image, err := s.repo.FindOrCreateImageByPath(ctx, tx, key)
		if err != nil {
			return err
		}
		imageIDs = append(imageIDs, image.ID)
	}

	if err := s.repo.ReplaceImageNames(ctx, tx, productID, nameIDs); err != nil {
		return err
	}
	return s.repo.ReplaceImages(ctx, tx, productID, imageIDs)
}

func padRow(row []string, width int) []string {
	for len(row) < width {
		row = append(row, "")
	}
	return row
}

func splitTokens(raw string) []string {
	parts := strings.Split(raw, ",")
	tokens := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			tokens = append(tokens, part)
		}
	}
	return tokens
}
