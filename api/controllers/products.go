package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/siamgems/inventory-backend/api/responses"
	"github.com/siamgems/inventory-backend/api/validators"
	"github.com/siamgems/inventory-backend/internal/products"
	"github.com/siamgems/inventory-backend/pkg/config"
	pkgerrors "github.com/siamgems/inventory-backend/pkg/errors"
	"github.com/siamgems/inventory-backend/pkg/logger"
)

type productRequest struct {
	ParentCode  string   `json:"parent_code" validate:"required"`
	ChildCode   string   `json:"child_code" validate:"required"`
	Location    string   `json:"location"`
	Stock       string   `json:"stock"`
	KPO         string   `json:"kpo"`
	Weight      string   `json:"weight"`
	ThaiBaht    string   `json:"thai_baht"`
	USDRate     string   `json:"usd_rate"`
	EuroRate    string   `json:"euro_rate"`
	Note1       string   `json:"note1"`
	Note2       string   `json:"note2"`
	Description string   `json:"description"`
	Unit        string   `json:"unit"`
	TagName     *string  `json:"tag_name"`
	PairingSets []string `json:"pairing_sets"`
}

func (req productRequest) toInput() (products.ProductInput, error) {
	weight := decimal.Zero
	if raw := strings.TrimSpace(req.Weight); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			return products.ProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid weight")
		}
		weight = parsed
	}
	return products.ProductInput{
		ParentCode:  req.ParentCode,
		ChildCode:   req.ChildCode,
		Location:    req.Location,
		Stock:       req.Stock,
		KPO:         req.KPO,
		Weight:      weight,
		ThaiBaht:    req.ThaiBaht,
		USDRate:     req.USDRate,
		EuroRate:    req.EuroRate,
		Note1:       req.Note1,
		Note2:       req.Note2,
		Description: req.Description,
		Unit:        req.Unit,
		TagName:     req.TagName,
		PairingSets: req.PairingSets,
	}, nil
}

func ProductCreate(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload productRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto)
	}
}

func ProductUpdate(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload productRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func ProductDetail(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func ProductList(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1_000_000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.List(r.Context(), products.ListInput{
			Search: validators.SanitizeString(r.URL.Query().Get("search"), 200),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func ProductDelete(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

type productBatchRequest struct {
	ProductIDs []string `json:"product_ids" validate:"required,min=1"`
}

func ProductDeleteBatch(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload productBatchRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ids, err := parseUUIDs(payload.ProductIDs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, svc.DeleteBatch(r.Context(), ids))
	}
}

func ProductDeleteAll(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deleted, err := svc.DeleteAll(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"deleted": deleted})
	}
}

// ProductLookup resolves a scanned or typed code to its product plus the
// matching items from shared pairing sets.
func ProductLookup(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := validators.SanitizeString(r.URL.Query().Get("code"), 200)
		result, err := svc.Lookup(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func ProductImport(svc products.Service, cfg *config.Config, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, err := spreadsheetUpload(r, cfg.Importer.MaxUploadMB)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer file.Close()

		report, err := svc.ImportCatalog(r.Context(), file)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

type productExportRequest struct {
	ProductIDs []string `json:"product_ids"`
}

// ProductExport writes the catalog workbook. An empty or missing id list
// exports everything.
func ProductExport(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ids []uuid.UUID
		if r.Method == http.MethodPost {
			var payload productExportRequest
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			parsed, err := parseUUIDs(payload.ProductIDs)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			ids = parsed
		}
		data, err := svc.Export(r.Context(), ids)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeWorkbook(w, "catalog.xlsx", data)
	}
}
