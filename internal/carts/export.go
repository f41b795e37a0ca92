package carts

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	pkgerrors "github.com/siamgems/inventory-backend/pkg/errors"
)

// Export renders the active cart into a workbook: customer block, document
// block, the selected columns, totals, and category counts. All numbers come
// from the same quote PrintView serves.
func (s *service) Export(ctx context.Context, customerID uuid.UUID, currency Currency, cols []ColumnKey) ([]byte, error) {
	view, err := s.PrintView(ctx, customerID, currency, cols)
	if err != nil {
		return nil, err
	}
	quote := view.Cart.Quote

	workbook := excelize.NewFile()
	defer workbook.Close()
	sheet := workbook.GetSheetName(0)

	write := func(col, row int, value any) error {
		cell, cellErr := excelize.CoordinatesToCellName(col, row)
		if cellErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, cellErr, "excelize: cell name")
		}
		if setErr := workbook.SetCellValue(sheet, cell, value); setErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, setErr, "excelize: write cell")
		}
		return nil
	}

	address := view.Customer.Address
	if view.Cart.AddressOverride != "" {
		address = view.Cart.AddressOverride
	}

	headerBlock := [][2]any{
		{"Customer", view.Customer.Name},
		{"Address", address},
		{"Customer Code", view.Cart.CustomerCode},
		{"Sales Person", view.Cart.SalesPerson},
		{"Doc Ref", view.Cart.DocRef},
		{"Currency", string(quote.Currency)},
	}
	row := 1
	for _, pair := range headerBlock {
		if err := write(1, row, pair[0]); err != nil {
			return nil, err
		}
		if err := write(2, row, pair[1]); err != nil {
			return nil, err
		}
		row++
	}
	row++

	tableStart := row
	for col, label := range view.Headers {
		if err := write(col+1, tableStart, label); err != nil {
			return nil, err
		}
	}
	for i, cells := range view.Rows {
		for col, value := range cells {
			if err := write(col+1, tableStart+1+i, value); err != nil {
				return nil, err
			}
		}
	}
	row = tableStart + 1 + len(view.Rows) + 1

	totals := [][2]any{
		{"Total Quantity", quote.TotalQuantity},
		{"Total Weight", quote.TotalWeight},
		{"Total", quote.TotalAmount},
		{"Shipping", quote.Shipping},
		{"Deposit", quote.Deposit},
		{"Grand Total", quote.GrandTotal},
	}
	for _, pair := range totals {
		if err := write(1, row, pair[0]); err != nil {
			return nil, err
		}
		if err := write(2, row, pair[1]); err != nil {
			return nil, err
		}
		row++
	}
	row++

	if err := write(1, row, "Summary"); err != nil {
		return nil, err
	}
	row++
	categories := [][2]any{
		{"Earring", quote.Categories.Earring},
		{"Ring", quote.Categories.Ring},
		{"Bracelet/Bangle", quote.Categories.BraceletBangle},
		{"Necklace", quote.Categories.Necklace},
		{"Others", quote.Categories.Others},
	}
	for _, pair := range categories {
		if err := write(1, row, pair[0]); err != nil {
			return nil, err
		}
		if err := write(2, row, pair[1]); err != nil {
			return nil, err
		}
		row++
	}

	if view.Cart.Notes != "" {
		row++
		if err := write(1, row, fmt.Sprintf("Notes: %s", view.Cart.Notes)); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := workbook.Write(&buf); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "excelize: serialize workbook")
	}
	return buf.Bytes(), nil
}
