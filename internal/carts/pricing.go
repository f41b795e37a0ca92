package carts

import (
	"strconv"
	"strings"

	"github.com/siamgems/inventory-backend/pkg/db/models"
)

// Currency selects which stored price field drives cart pricing.
type Currency string

const (
	CurrencyTHB Currency = "THB"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

// ParseCurrency maps a request value onto a supported currency. Unknown
// values fall back to THB rather than failing.
func ParseCurrency(raw string) Currency {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(CurrencyUSD):
		return CurrencyUSD
	case string(CurrencyEUR):
		return CurrencyEUR
	default:
		return CurrencyTHB
	}
}

func priceField(product *models.Product, currency Currency) string {
	if product == nil {
		return ""
	}
	switch currency {
	case CurrencyUSD:
		return product.USDRate
	case CurrencyEUR:
		return product.EuroRate
	default:
		return product.ThaiBaht
	}
}

// toFloat parses stored price and weight text. Catalog data is hand-entered,
// so parse failures mean "no usable number", never an error: try as-is, retry
// with surrounding junk stripped, then give up and return zero.
func toFloat(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if value, err := strconv.ParseFloat(raw, 64); err == nil {
		return value
	}
	stripped := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, raw)
	if value, err := strconv.ParseFloat(stripped, 64); err == nil {
		return value
	}
	return 0
}

// QuoteLine is one cart item with its computed pricing.
type QuoteLine struct {
	Product     *models.Product `json:"-"`
	ProductCode string          `json:"product_code"`
	Quantity    int             `json:"quantity"`
	UnitPrice   float64         `json:"unit_price"`
	Amount      float64         `json:"amount"`
	WeightTotal float64         `json:"weight_total"`
}

// CategoryCounts buckets quantities by tag-name substring match.
type CategoryCounts struct {
	Earring        int `json:"earring_count"`
	Ring           int `json:"ring_count"`
	BraceletBangle int `json:"bracelet_bangle_count"`
	Necklace       int `json:"necklace_count"`
	Others         int `json:"others_count"`
}

// Quote is the computed state of a cart for one currency. Export and print
// both render from this structure, so the two can never disagree.
type Quote struct {
	Currency      Currency       `json:"currency"`
	Lines         []QuoteLine    `json:"lines"`
	TotalAmount   float64        `json:"total_amount"`
	TotalQuantity int            `json:"total_quantity"`
	TotalWeight   float64        `json:"total_weight"`
	Shipping      float64        `json:"shipping_amount"`
	Deposit       float64        `json:"deposit_amount"`
	GrandTotal    float64        `json:"grand_total"`
	Categories    CategoryCounts `json:"categories"`
}

// BuildQuote computes line and aggregate pricing for a cart. Items must have
// their products (and product tags) loaded.
func BuildQuote(cart *models.Cart, currency Currency) *Quote {
	quote := &Quote{Currency: currency, Lines: make([]QuoteLine, 0, len(cart.Items))}

	for i := range cart.Items {
		item := &cart.Items[i]
		line := QuoteLine{
			Product:  item.Product,
			Quantity: item.Quantity,
		}
		if item.Product != nil {
			line.ProductCode = item.Product.ChildCode
			line.UnitPrice = toFloat(priceField(item.Product, currency))
			line.Amount = line.UnitPrice * float64(item.Quantity)
			line.WeightTotal = item.Product.Weight.InexactFloat64() * float64(item.Quantity)
		}

		quote.Lines = append(quote.Lines, line)
		quote.TotalAmount += line.Amount
		quote.TotalQuantity += item.Quantity
		quote.TotalWeight += line.WeightTotal
		classify(&quote.Categories, item)
	}

	quote.Shipping = cart.ShippingAmount.InexactFloat64()
	quote.Deposit = cart.DepositAmount.InexactFloat64()
	quote.GrandTotal = quote.TotalAmount + quote.Shipping - quote.Deposit
	return quote
}

// classify buckets the item's quantity by tag name. Order matters: "earring"
// must be checked before "ring" since one contains the other.
func classify(counts *CategoryCounts, item *models.CartItem) {
	var tag string
	if item.Product != nil && item.Product.Tag != nil {
		tag = strings.ToLower(item.Product.Tag.Name)
	}
	switch {
	case strings.Contains(tag, "earring"):
		counts.Earring += item.Quantity
	case strings.Contains(tag, "ring"):
		counts.Ring += item.Quantity
	case strings.Contains(tag, "bracelet"), strings.Contains(tag, "bangle"):
		counts.BraceletBangle += item.Quantity
	case strings.Contains(tag, "necklace"):
		counts.Necklace += item.Quantity
	default:
		counts.Others += item.Quantity
	}
}
