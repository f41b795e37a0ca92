package carts

import (
	"strings"

	"github.com/siamgems/inventory-backend/pkg/db/models"
)

// ColumnKey names one exportable cart column. The set is closed: unknown keys
// in a request are dropped, never invented.
type ColumnKey string

const (
	ColProductCode ColumnKey = "product_code"
	ColPicture     ColumnKey = "picture"
	ColName        ColumnKey = "name"
	ColWeight      ColumnKey = "wt_g"
	ColQuantity    ColumnKey = "qty"
	ColPrice       ColumnKey = "price_thb"
	ColAmount      ColumnKey = "amount_thb"
	ColLocation    ColumnKey = "location"
	ColKPO         ColumnKey = "kpo"
	ColPairingSet  ColumnKey = "pairing_set"
	ColNote1       ColumnKey = "note1"
	ColNote2       ColumnKey = "note2"
	ColTHB         ColumnKey = "thb"
	ColUSD         ColumnKey = "usd"
	ColEuro        ColumnKey = "euro"
)

// columnSpec binds a key to its header label and value extractor. Export and
// print both read from this one table, so a column can never mean two things.
type columnSpec struct {
	Label string
	Value func(line QuoteLine) any
}

var columnSpecs = map[ColumnKey]columnSpec{
	ColProductCode: {"Product Code", func(l QuoteLine) any { return l.ProductCode }},
	ColPicture:     {"Picture", func(l QuoteLine) any { return firstImagePath(l.Product) }},
	ColName:        {"Name", func(l QuoteLine) any { return productField(l.Product, func(p *models.Product) string { return p.Description }) }},
	ColWeight:      {"Wt.(g)", func(l QuoteLine) any { return l.WeightTotal }},
	ColQuantity:    {"Qty", func(l QuoteLine) any { return l.Quantity }},
	ColPrice:       {"Price", func(l QuoteLine) any { return l.UnitPrice }},
	ColAmount:      {"Amount", func(l QuoteLine) any { return l.Amount }},
	ColLocation:    {"Location", func(l QuoteLine) any { return productField(l.Product, func(p *models.Product) string { return p.Location }) }},
	ColKPO:         {"KPO", func(l QuoteLine) any { return productField(l.Product, func(p *models.Product) string { return p.KPO }) }},
	ColPairingSet:  {"Pairing Set", func(l QuoteLine) any { return pairingValues(l.Product) }},
	ColNote1:       {"Note 1", func(l QuoteLine) any { return productField(l.Product, func(p *models.Product) string { return p.Note1 }) }},
	ColNote2:       {"Note 2", func(l QuoteLine) any { return productField(l.Product, func(p *models.Product) string { return p.Note2 }) }},
	ColTHB:         {"THB", func(l QuoteLine) any { return productField(l.Product, func(p *models.Product) string { return p.ThaiBaht }) }},
	ColUSD:         {"USD", func(l QuoteLine) any { return productField(l.Product, func(p *models.Product) string { return p.USDRate }) }},
	ColEuro:        {"Euro", func(l QuoteLine) any { return productField(l.Product, func(p *models.Product) string { return p.EuroRate }) }},
}

// defaultColumns is the layout used when the caller selects nothing.
var defaultColumns = []ColumnKey{
	ColProductCode, ColName, ColWeight, ColQuantity, ColPrice, ColAmount,
}

// ParseColumns resolves a comma-separated column-key list, dropping unknown
// and duplicate keys. An empty or fully unknown selection yields the default
// layout.
func ParseColumns(raw string) []ColumnKey {
	parts := strings.Split(raw, ",")
	keys := make([]ColumnKey, 0, len(parts))
	seen := map[ColumnKey]struct{}{}
	for _, part := range parts {
		key := ColumnKey(strings.ToLower(strings.TrimSpace(part)))
		if _, known := columnSpecs[key]; !known {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return append([]ColumnKey(nil), defaultColumns...)
	}
	return keys
}

// RenderColumns projects a quote into header labels and cell rows for the
// selected columns.
func RenderColumns(quote *Quote, keys []ColumnKey) ([]string, [][]any) {
	headers := make([]string, 0, len(keys))
	for _, key := range keys {
		headers = append(headers, columnSpecs[key].Label)
	}

	rows := make([][]any, 0, len(quote.Lines))
	for _, line := range quote.Lines {
		row := make([]any, 0, len(keys))
		for _, key := range keys {
			row = append(row, columnSpecs[key].Value(line))
		}
		rows = append(rows, row)
	}
	return headers, rows
}

func productField(product *models.Product, get func(*models.Product) string) string {
	if product == nil {
		return ""
	}
	return get(product)
}

func firstImagePath(product *models.Product) string {
	if product == nil || len(product.Images) == 0 {
		return ""
	}
	return product.Images[0].Path
}

func pairingValues(product *models.Product) string {
	if product == nil {
		return ""
	}
	values := make([]string, 0, len(product.PairingSets))
	for _, set := range product.PairingSets {
		values = append(values, set.PairValue)
	}
	return strings.Join(values, ",")
}
