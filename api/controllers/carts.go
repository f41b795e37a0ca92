package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/siamgems/inventory-backend/api/responses"
	"github.com/siamgems/inventory-backend/api/validators"
	"github.com/siamgems/inventory-backend/internal/carts"
	"github.com/siamgems/inventory-backend/pkg/config"
	pkgerrors "github.com/siamgems/inventory-backend/pkg/errors"
	"github.com/siamgems/inventory-backend/pkg/logger"
)

func CartFetch(svc carts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := uuidParam(r, "customerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cart, err := svc.GetActiveCartIn(r.Context(), customerID, carts.ParseCurrency(r.URL.Query().Get("currency")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cart)
	}
}

type cartItemPayload struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type cartActionRequest struct {
	Action string `json:"action" validate:"required"`

	ProductID  string            `json:"product_id"`
	Quantity   int               `json:"quantity"`
	Items      []cartItemPayload `json:"items"`
	ProductIDs []string          `json:"product_ids"`

	AddressOverride *string  `json:"address_override"`
	ShippingAmount  *float64 `json:"shipping_amount"`
	DepositAmount   *float64 `json:"deposit_amount"`
	GrossWeight     *float64 `json:"gross_weight"`
	Notes           *string  `json:"notes"`
	SalesPerson     *string  `json:"sales_person"`
	DocRef          *string  `json:"doc_ref"`
	CustomerCode    *string  `json:"customer_code"`
}

// CartAction dispatches the cart mutations behind one endpoint. Every branch
// returns the refreshed cart so the client never needs a follow-up fetch.
func CartAction(svc carts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := uuidParam(r, "customerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload cartActionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cart, err := runCartAction(r, svc, customerID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cart)
	}
}

func runCartAction(r *http.Request, svc carts.Service, customerID uuid.UUID, payload cartActionRequest) (*carts.CartDTO, error) {
	ctx := r.Context()
	switch payload.Action {
	case "add_item":
		productID, err := requiredUUID(payload.ProductID, "product_id")
		if err != nil {
			return nil, err
		}
		return svc.AddItem(ctx, customerID, productID, payload.Quantity)
	case "update_item":
		productID, err := requiredUUID(payload.ProductID, "product_id")
		if err != nil {
			return nil, err
		}
		return svc.UpdateItem(ctx, customerID, productID, payload.Quantity)
	case "remove_item":
		productID, err := requiredUUID(payload.ProductID, "product_id")
		if err != nil {
			return nil, err
		}
		return svc.RemoveItem(ctx, customerID, productID)
	case "bulk_update":
		items := make([]carts.ItemInput, 0, len(payload.Items))
		for _, item := range payload.Items {
			productID, err := requiredUUID(item.ProductID, "product_id")
			if err != nil {
				return nil, err
			}
			items = append(items, carts.ItemInput{ProductID: productID, Quantity: item.Quantity})
		}
		return svc.BulkUpdate(ctx, customerID, items)
	case "bulk_remove":
		productIDs, err := parseUUIDs(payload.ProductIDs)
		if err != nil {
			return nil, err
		}
		return svc.BulkRemove(ctx, customerID, productIDs)
	case "clear_cart":
		return svc.Clear(ctx, customerID)
	case "update_cart_info":
		return svc.UpdateCartInfo(ctx, customerID, carts.CartInfoInput{
			AddressOverride: payload.AddressOverride,
			ShippingAmount:  payload.ShippingAmount,
			DepositAmount:   payload.DepositAmount,
			GrossWeight:     payload.GrossWeight,
			Notes:           payload.Notes,
			SalesPerson:     payload.SalesPerson,
			DocRef:          payload.DocRef,
			CustomerCode:    payload.CustomerCode,
		})
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown action").WithDetails(map[string]string{"action": payload.Action})
}

// CartPrint returns the print-ready view: customer block, selected columns,
// and the priced totals.
func CartPrint(svc carts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := uuidParam(r, "customerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.PrintView(r.Context(), customerID,
			carts.ParseCurrency(r.URL.Query().Get("currency")),
			carts.ParseColumns(r.URL.Query().Get("cols")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CartExport(svc carts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := uuidParam(r, "customerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		data, err := svc.Export(r.Context(), customerID,
			carts.ParseCurrency(r.URL.Query().Get("currency")),
			carts.ParseColumns(r.URL.Query().Get("cols")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeWorkbook(w, "cart.xlsx", data)
	}
}

// CartImport reconciles an uploaded order sheet into the active cart.
func CartImport(svc carts.Service, cfg *config.Config, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := uuidParam(r, "customerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		file, err := spreadsheetUpload(r, cfg.Importer.MaxUploadMB)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer file.Close()

		report, err := svc.ImportItems(r.Context(), customerID, file)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

type cartBroadcastRequest struct {
	ProductID   string   `json:"product_id" validate:"required"`
	Quantity    int      `json:"quantity"`
	CustomerIDs []string `json:"customer_ids"`
}

// CartBroadcast pushes one product into many carts. With no explicit customer
// list it targets every locked customer.
func CartBroadcast(svc carts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload cartBroadcastRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := requiredUUID(payload.ProductID, "product_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		customerIDs, err := parseUUIDs(payload.CustomerIDs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		report, err := svc.Broadcast(r.Context(), carts.BroadcastInput{
			ProductID:   productID,
			Quantity:    payload.Quantity,
			CustomerIDs: customerIDs,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}
