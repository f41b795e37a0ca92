package products

import (
	"bytes"
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/siamgems/inventory-backend/pkg/db/models"
	pkgerrors "github.com/siamgems/inventory-backend/pkg/errors"
)

var exportHeader = []string{
	"Parent Code", "Child Code", "Location", "Stock", "KPO", "Pairing Sets",
	"Weight", "Thai Baht", "USD", "Euro", "Note 1", "Note 2", "Images",
}

// Export renders the catalog (all rows, or the given ids) into a workbook
// mirroring the import column layout, with a trailing image column.
func (s *service) Export(ctx context.Context, ids []uuid.UUID) ([]byte, error) {
	var (
		rows []models.Product
		err  error
	)
	if len(ids) > 0 {
		rows, err = s.repo.ListByIDs(ctx, ids)
	} else {
		rows, err = s.repo.ListAll(ctx)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: export products")
	}

	workbook := excelize.NewFile()
	defer workbook.Close()
	sheet := workbook.GetSheetName(0)

	for col, label := range exportHeader {
		cell, cellErr := excelize.CoordinatesToCellName(col+1, 1)
		if cellErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, cellErr, "excelize: header cell")
		}
		if err := workbook.SetCellValue(sheet, cell, label); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "excelize: write header")
		}
	}

	for i := range rows {
		product := &rows[i]
		values := []any{
			product.ParentCode,
			product.ChildCode,
			product.Location,
			product.Stock,
			product.KPO,
			joinPairingSets(product.PairingSets),
			product.Weight.StringFixed(2),
			product.ThaiBaht,
			product.USDRate,
			product.EuroRate,
			product.Note1,
			product.Note2,
			joinImagePaths(product.Images),
		}
		for col, value := range values {
			cell, cellErr := excelize.CoordinatesToCellName(col+1, i+2)
			if cellErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, cellErr, "excelize: data cell")
			}
			if err := workbook.SetCellValue(sheet, cell, value); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "excelize: write row")
			}
		}
	}

	var buf bytes.Buffer
	if err := workbook.Write(&buf); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "excelize: serialize workbook")
	}
	return buf.Bytes(), nil
}

func joinPairingSets(sets []models.PairingSet) string {
	values := make([]string, 0, len(sets))
	for _, set := range sets {
		values = append(values, set.PairValue)
	}
	return strings.Join(values, ",")
}

func joinImagePaths(images []models.Image) string {
	values := make([]string, 0, len(images))
	for _, image := range images {
		values = append(values, image.Path)
	}
	return strings.Join(values, ",")
}
