package carts

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/siamgems/inventory-backend/pkg/db/models"
	pkgerrors "github.com/siamgems/inventory-backend/pkg/errors"
)

// Service manages the single active cart per customer and everything rendered
// from it.
type Service interface {
	GetActiveCart(ctx context.Context, customerID uuid.UUID) (*CartDTO, error)
	GetActiveCartIn(ctx context.Context, customerID uuid.UUID, currency Currency) (*CartDTO, error)
	AddItem(ctx context.Context, customerID, productID uuid.UUID, quantity int) (*CartDTO, error)
	UpdateItem(ctx context.Context, customerID, productID uuid.UUID, quantity int) (*CartDTO, error)
	RemoveItem(ctx context.Context, customerID, productID uuid.UUID) (*CartDTO, error)
	BulkUpdate(ctx context.Context, customerID uuid.UUID, items []ItemInput) (*CartDTO, error)
	BulkRemove(ctx context.Context, customerID uuid.UUID, productIDs []uuid.UUID) (*CartDTO, error)
	Clear(ctx context.Context, customerID uuid.UUID) (*CartDTO, error)
	UpdateCartInfo(ctx context.Context, customerID uuid.UUID, info CartInfoInput) (*CartDTO, error)
	Broadcast(ctx context.Context, input BroadcastInput) (*BroadcastReport, error)
	PrintView(ctx context.Context, customerID uuid.UUID, currency Currency, cols []ColumnKey) (*PrintViewResult, error)
	Export(ctx context.Context, customerID uuid.UUID, currency Currency, cols []ColumnKey) ([]byte, error)
	ImportItems(ctx context.Context, customerID uuid.UUID, data io.Reader) (*ImportReport, error)
}

// ItemInput is one (product, quantity) pair in a bulk update.
type ItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// CartInfoInput carries the cart-level fields of an update_cart_info action.
// Nil pointers leave the current value untouched.
type CartInfoInput struct {
	AddressOverride *string
	ShippingAmount  *float64
	DepositAmount   *float64
	GrossWeight     *float64
	Notes           *string
	SalesPerson     *string
	DocRef          *string
	CustomerCode    *string
}

// BroadcastInput adds one product to many customers' active carts. With no
// explicit CustomerIDs the broadcast targets every locked customer.
type BroadcastInput struct {
	ProductID   uuid.UUID
	Quantity    int
	CustomerIDs []uuid.UUID
}

// BroadcastReport reports per-customer broadcast outcomes.
type BroadcastReport struct {
	Targeted int                `json:"targeted"`
	Added    int                `json:"added"`
	Failures []BroadcastFailure `json:"failures,omitempty"`
}

// BroadcastFailure is one customer the broadcast could not reach.
type BroadcastFailure struct {
	CustomerID uuid.UUID `json:"customer_id"`
	Error      string    `json:"error"`
}

// CartItemDTO is one cart line returned to the API layer.
type CartItemDTO struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductCode string    `json:"product_code"`
	Description string    `json:"description"`
	Quantity    int       `json:"quantity"`
	AddedAt     time.Time `json:"added_at"`
}

// CartDTO is the active cart with its computed THB quote.
type CartDTO struct {
	ID              uuid.UUID     `json:"id"`
	CustomerID      uuid.UUID     `json:"customer_id"`
	AddressOverride string        `json:"address_override"`
	Notes           string        `json:"notes"`
	SalesPerson     string        `json:"sales_person"`
	DocRef          string        `json:"doc_ref"`
	CustomerCode    string        `json:"customer_code"`
	Items           []CartItemDTO `json:"items"`
	Quote           *Quote        `json:"quote"`
}

// PrintViewResult is the print rendering of a cart: the same quote the export
// uses plus the projected column cells.
type PrintViewResult struct {
	Customer *models.Customer `json:"customer"`
	Cart     *CartDTO         `json:"cart"`
	Headers  []string         `json:"headers"`
	Rows     [][]any          `json:"rows"`
}

type cartRepository interface {
	FindActiveCart(ctx context.Context, customerID uuid.UUID) (*models.Cart, error)
	CreateCart(ctx context.Context, tx *gorm.DB, cart *models.Cart) (*models.Cart, error)
	SaveCart(ctx context.Context, tx *gorm.DB, cart *models.Cart) error
	FindItem(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error)
	CreateItem(ctx context.Context, tx *gorm.DB, item *models.CartItem) error
	SaveItem(ctx context.Context, tx *gorm.DB, item *models.CartItem) error
	DeleteItem(ctx context.Context, tx *gorm.DB, cartID, productID uuid.UUID) error
	ClearItems(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) (int64, error)
}

type customerSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	ListLocked(ctx context.Context) ([]models.Customer, error)
}

type productSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByCode(ctx context.Context, code string) (*models.Product, error)
	FindPairByCodes(ctx context.Context, parentCode, childCode string) (*models.Product, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo      cartRepository
	customers customerSource
	products  productSource
	tx        txRunner
}

// NewService constructs the cart service.
func NewService(repo cartRepository, customers customerSource, products productSource, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart repository required")
	}
	if customers == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer source required")
	}
	if products == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product source required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tx runner required")
	}
	return &service{repo: repo, customers: customers, products: products, tx: tx}, nil
}

// activeCart returns the customer's open cart, creating one on first use.
func (s *service) activeCart(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	if _, err := s.customers.FindByID(ctx, customerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find customer")
	}

	cart, err := s.repo.FindActiveCart(ctx, customerID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find active cart")
	}

	var created *models.Cart
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cart, createErr := s.repo.CreateCart(ctx, tx, &models.Cart{
			CustomerID: customerID,
			IsActive:   true,
		})
		if createErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "db: create cart")
		}
		created = cart
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) GetActiveCart(ctx context.Context, customerID uuid.UUID) (*CartDTO, error) {
	return s.GetActiveCartIn(ctx, customerID, CurrencyTHB)
}

// GetActiveCartIn quotes the cart in the requested currency.
func (s *service) GetActiveCartIn(ctx context.Context, customerID uuid.UUID, currency Currency) (*CartDTO, error) {
	cart, err := s.activeCart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return toCartDTOWithQuote(cart, BuildQuote(cart, currency)), nil
}

// AddItem accumulates quantity onto an existing line, or creates the line.
func (s *service) AddItem(ctx context.Context, customerID, productID uuid.UUID, quantity int) (*CartDTO, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	cart, err := s.activeCart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find product")
	}

	if err := s.addToCart(ctx, cart.ID, product.ID, quantity); err != nil {
		return nil, err
	}
	return s.GetActiveCart(ctx, customerID)
}

// addToCart is the accumulate upsert shared by AddItem, import, and broadcast.
func (s *service) addToCart(ctx context.Context, cartID, productID uuid.UUID, quantity int) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		item, err := s.repo.FindItem(ctx, cartID, productID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
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
}

// UpdateItem overwrites a line's quantity.
func (s *service) UpdateItem(ctx context.Context, customerID, productID uuid.UUID, quantity int) (*CartDTO, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	cart, err := s.activeCart(ctx, customerID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		item, findErr := s.repo.FindItem(ctx, cart.ID, productID)
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		if findErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "db: find cart item")
		}
		item.Quantity = quantity
		if saveErr := s.repo.SaveItem(ctx, tx, item); saveErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, saveErr, "db: update cart item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetActiveCart(ctx, customerID)
}

func (s *service) RemoveItem(ctx context.Context, customerID, productID uuid.UUID) (*CartDTO, error) {
	cart, err := s.activeCart(ctx, customerID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if delErr := s.repo.DeleteItem(ctx, tx, cart.ID, productID); delErr != nil {
			if errors.Is(delErr, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, delErr, "db: delete cart item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetActiveCart(ctx, customerID)
}

func (s *service) BulkUpdate(ctx context.Context, customerID uuid.UUID, items []ItemInput) (*CartDTO, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "items are required")
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]string{"product_id": item.ProductID.String()})
		}
	}

	cart, err := s.activeCart(ctx, customerID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		for _, input := range items {
			item, findErr := s.repo.FindItem(ctx, cart.ID, input.ProductID)
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				if createErr := s.repo.CreateItem(ctx, tx, &models.CartItem{
					CartID:    cart.ID,
					ProductID: input.ProductID,
					Quantity:  input.Quantity,
				}); createErr != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "db: create cart item")
				}
				continue
			}
			if findErr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "db: find cart item")
			}
			item.Quantity = input.Quantity
			if saveErr := s.repo.SaveItem(ctx, tx, item); saveErr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, saveErr, "db: update cart item")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetActiveCart(ctx, customerID)
}

func (s *service) BulkRemove(ctx context.Context, customerID uuid.UUID, productIDs []uuid.UUID) (*CartDTO, error) {
	if len(productIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_ids are required")
	}
	cart, err := s.activeCart(ctx, customerID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		for _, productID := range productIDs {
			delErr := s.repo.DeleteItem(ctx, tx, cart.ID, productID)
			if delErr != nil && !errors.Is(delErr, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, delErr, "db: delete cart item")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetActiveCart(ctx, customerID)
}

func (s *service) Clear(ctx context.Context, customerID uuid.UUID) (*CartDTO, error) {
	cart, err := s.activeCart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, clearErr := s.repo.ClearItems(ctx, tx, cart.ID); clearErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, clearErr, "db: clear cart")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetActiveCart(ctx, customerID)
}

func (s *service) UpdateCartInfo(ctx context.Context, customerID uuid.UUID, info CartInfoInput) (*CartDTO, error) {
	cart, err := s.activeCart(ctx, customerID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if info.AddressOverride != nil {
			cart.AddressOverride = *info.AddressOverride
		}
		if info.ShippingAmount != nil {
			cart.ShippingAmount = decimal.NewFromFloat(*info.ShippingAmount)
		}
		if info.DepositAmount != nil {
			cart.DepositAmount = decimal.NewFromFloat(*info.DepositAmount)
		}
		if info.GrossWeight != nil {
			cart.GrossWeight = decimal.NewFromFloat(*info.GrossWeight)
		}
		if info.Notes != nil {
			cart.Notes = *info.Notes
		}
		if info.SalesPerson != nil {
			cart.SalesPerson = *info.SalesPerson
		}
		if info.DocRef != nil {
			cart.DocRef = *info.DocRef
		}
		if info.CustomerCode != nil {
			cart.CustomerCode = *info.CustomerCode
		}
		if saveErr := s.repo.SaveCart(ctx, tx, cart); saveErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, saveErr, "db: update cart")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetActiveCart(ctx, customerID)
}

// Broadcast pushes one product into many active carts: either the explicit
// customer list, or every locked customer when none is given.
func (s *service) Broadcast(ctx context.Context, input BroadcastInput) (*BroadcastReport, error) {
	quantity := input.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	if _, err := s.products.FindByID(ctx, input.ProductID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find product")
	}

	targets := input.CustomerIDs
	if len(targets) == 0 {
		locked, err := s.customers.ListLocked(ctx)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list locked customers")
		}
		for _, customer := range locked {
			targets = append(targets, customer.ID)
		}
	}

	report := &BroadcastReport{Targeted: len(targets)}
	for _, customerID := range targets {
		cart, err := s.activeCart(ctx, customerID)
		if err != nil {
			report.Failures = append(report.Failures, BroadcastFailure{CustomerID: customerID, Error: err.Error()})
			continue
		}
		if err := s.addToCart(ctx, cart.ID, input.ProductID, quantity); err != nil {
			report.Failures = append(report.Failures, BroadcastFailure{CustomerID: customerID, Error: err.Error()})
			continue
		}
		report.Added++
	}
	return report, nil
}

// PrintView computes the quote and column projection the print rendering
// consumes. It shares every number with Export by construction.
func (s *service) PrintView(ctx context.Context, customerID uuid.UUID, currency Currency, cols []ColumnKey) (*PrintViewResult, error) {
	customer, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find customer")
	}

	cart, err := s.activeCart(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if len(cols) == 0 {
		cols = ParseColumns("")
	}
	quote := BuildQuote(cart, currency)
	headers, rows := RenderColumns(quote, cols)

	dto := toCartDTOWithQuote(cart, quote)
	return &PrintViewResult{
		Customer: customer,
		Cart:     dto,
		Headers:  headers,
		Rows:     rows,
	}, nil
}

func toCartDTOWithQuote(cart *models.Cart, quote *Quote) *CartDTO {
	dto := &CartDTO{
		ID:              cart.ID,
		CustomerID:      cart.CustomerID,
		AddressOverride: cart.AddressOverride,
		Notes:           cart.Notes,
		SalesPerson:     cart.SalesPerson,
		DocRef:          cart.DocRef,
		CustomerCode:    cart.CustomerCode,
		Items:           make([]CartItemDTO, 0, len(cart.Items)),
		Quote:           quote,
	}
	for _, item := range cart.Items {
		line := CartItemDTO{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			AddedAt:   item.AddedAt,
		}
		if item.Product != nil {
			line.ProductCode = item.Product.ChildCode
			line.Description = item.Product.Description
		}
		dto.Items = append(dto.Items, line)
	}
	return dto
}

// resolveProductCode maps a spreadsheet code cell to a catalog row: split on
// the last hyphen and try the exact (parent, child) pair first, then fall
// back to the whole code as an exact child or parent code.
func (s *service) resolveProductCode(ctx context.Context, code string) (*models.Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, gorm.ErrRecordNotFound
	}

	if idx := strings.LastIndex(code, "-"); idx > 0 && idx < len(code)-1 {
		parent := code[:idx]
		child := code[idx+1:]
		product, err := s.products.FindPairByCodes(ctx, parent, child)
		if err == nil {
			return product, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return s.products.FindByCode(ctx, code)
}
