package carts

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/siamgems/inventory-backend/pkg/db/models"
	pkgerrors "github.com/siamgems/inventory-backend/pkg/errors"
)

var (
	codeHeaderAliases     = []string{"product code", "code"}
	quantityHeaderAliases = []string{"quantity", "qty"}
)

// ImportReport summarizes a cart workbook import. Bad rows are counted as
// ignored, never turned into failures.
type ImportReport struct {
	Processed int `json:"processed"`
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Ignored   int `json:"ignored"`
}

// ImportItems merges a two-column (product code, quantity) workbook into the
// customer's active cart. Quantities accumulate onto existing lines.
func (s *service) ImportItems(ctx context.Context, customerID uuid.UUID, data io.Reader) (*ImportReport, error) {
	cart, err := s.activeCart(ctx, customerID)
	if err != nil {
		return nil, err
	}

	workbook, err := excelize.OpenReader(data)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "open workbook")
	}
	defer workbook.Close()

	rows, err := workbook.GetRows(workbook.GetSheetName(0))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read sheet")
	}
	if len(rows) == 0 {
		return &ImportReport{}, nil
	}

	codeCol, qtyCol, dataStart := detectCartColumns(rows[0])

	report := &ImportReport{}
	for _, row := range rows[dataStart:] {
		if len(row) == 0 || isBlankRow(row) {
			continue
		}
		report.Processed++

		code := cellAt(row, codeCol)
		product, resolveErr := s.resolveProductCode(ctx, code)
		if resolveErr != nil {
			if errors.Is(resolveErr, gorm.ErrRecordNotFound) {
				report.Ignored++
				continue
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, resolveErr, "db: resolve product code")
		}

		quantity := parseQuantity(cellAt(row, qtyCol))
		if quantity <= 0 {
			report.Ignored++
			continue
		}

		added, mergeErr := s.mergeImportedLine(ctx, cart.ID, product.ID, quantity)
		if mergeErr != nil {
			return nil, mergeErr
		}
		if added {
			report.Added++
		} else {
			report.Updated++
		}
	}
	return report, nil
}

// mergeImportedLine accumulates quantity and reports whether a new line was
// created.
func (s *service) mergeImportedLine(ctx context.Context, cartID, productID uuid.UUID, quantity int) (bool, error) {
	var created bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		item, err := s.repo.FindItem(ctx, cartID, productID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			created = true
			if createErr := s.repo.CreateItem(ctx, tx, &models.CartItem{
				CartID:    cartID,
				ProductID: productID,
				Quantity:  quantity,
			}); createErr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "db: create cart item")
			}
			return nil
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find cart item")
		}
		item.Quantity += quantity
		if saveErr := s.repo.SaveItem(ctx, tx, item); saveErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, saveErr, "db: update cart item")
		}
		return nil
	})
	return created, err
}

// detectCartColumns inspects the first row for recognized header labels. When
// found, data starts at the second row using the detected positions; when
// not, the sheet is assumed headerless with (code, quantity) column order.
func detectCartColumns(firstRow []string) (codeCol, qtyCol, dataStart int) {
	codeCol, qtyCol = 0, 1
	found := false
	for i, cell := range firstRow {
		normalized := strings.ToLower(strings.TrimSpace(cell))
		if matchesAlias(normalized, codeHeaderAliases) {
			codeCol = i
			found = true
		}
		if matchesAlias(normalized, quantityHeaderAliases) {
			qtyCol = i
			found = true
		}
	}
	if found {
		return codeCol, qtyCol, 1
	}
	return 0, 1, 0
}

func matchesAlias(value string, aliases []string) bool {
	for _, alias := range aliases {
		if value == alias {
			return true
		}
	}
	return false
}

// parseQuantity accepts "2.0"-style numeric cells, truncating to an integer.
// Anything that is not a plain number defaults to 1; the strip-and-retry
// leniency of toFloat is reserved for price cells.
func parseQuantity(raw string) int {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 1
	}
	return int(value)
}

func cellAt(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
