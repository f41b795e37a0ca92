package controllers

import (
	"mime/multipart"
	"net/http"

	"github.com/google/uuid"

	"github.com/siamgems/inventory-backend/api/responses"
	"github.com/siamgems/inventory-backend/api/validators"
	"github.com/siamgems/inventory-backend/internal/images"
	"github.com/siamgems/inventory-backend/pkg/config"
	pkgerrors "github.com/siamgems/inventory-backend/pkg/errors"
	"github.com/siamgems/inventory-backend/pkg/logger"
)

func ImageList(svc images.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 100, 1, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1_000_000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.List(r.Context(), images.ListInput{
			Search: validators.SanitizeString(r.URL.Query().Get("search"), 200),
			Filter: r.URL.Query().Get("filter"),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// ImageUnlinkedList is a fixed-filter view of the listing for the cleanup
// screen.
func ImageUnlinkedList(svc images.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.List(r.Context(), images.ListInput{Filter: "unlinked", Limit: 500})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// ImageUpload ingests one or more files from the "files" multipart field and
// reports a per-file outcome.
func ImageUpload(svc images.Service, cfg *config.Config, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		maxBytes := int64(cfg.Storage.MaxUploadMB) << 20
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form"))
			return
		}

		headers := r.MultipartForm.File["files"]
		items := make([]images.IngestItem, 0, len(headers))
		opened := make([]multipart.File, 0, len(headers))
		defer func() {
			for _, f := range opened {
				_ = f.Close()
			}
		}()
		for _, header := range headers {
			file, err := header.Open()
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "open uploaded file"))
				return
			}
			opened = append(opened, file)
			items = append(items, images.IngestItem{Name: header.Filename, Data: file})
		}

		results, err := svc.IngestBatch(r.Context(), items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, results)
	}
}

type imageActionRequest struct {
	Action     string   `json:"action" validate:"required"`
	ImageID    string   `json:"image_id"`
	ProductID  string   `json:"product_id"`
	ProductIDs []string `json:"product_ids"`
	ImageIDs   []string `json:"image_ids"`
}

// ImageAction dispatches the linking mutations behind one endpoint, matching
// how the admin screen batches its buttons.
func ImageAction(svc images.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload imageActionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := runImageAction(r, svc, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func runImageAction(r *http.Request, svc images.Service, payload imageActionRequest) (any, error) {
	ctx := r.Context()
	switch payload.Action {
	case "link":
		imageID, productID, err := imageProductPair(payload)
		if err != nil {
			return nil, err
		}
		if err := svc.Link(ctx, imageID, productID); err != nil {
			return nil, err
		}
		return map[string]string{"status": "linked"}, nil
	case "set_links":
		imageID, err := requiredUUID(payload.ImageID, "image_id")
		if err != nil {
			return nil, err
		}
		productIDs, err := parseUUIDs(payload.ProductIDs)
		if err != nil {
			return nil, err
		}
		if err := svc.SetLinks(ctx, imageID, productIDs); err != nil {
			return nil, err
		}
		return map[string]string{"status": "updated"}, nil
	case "unlink":
		imageID, productID, err := imageProductPair(payload)
		if err != nil {
			return nil, err
		}
		if err := svc.Unlink(ctx, imageID, productID); err != nil {
			return nil, err
		}
		return map[string]string{"status": "unlinked"}, nil
	case "auto_link":
		imageID, err := requiredUUID(payload.ImageID, "image_id")
		if err != nil {
			return nil, err
		}
		linked, err := svc.AutoLink(ctx, imageID)
		if err != nil {
			return nil, err
		}
		return map[string]int{"linked_products": linked}, nil
	case "auto_link_all":
		linked, err := svc.AutoLinkAll(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]int{"linked_products": linked}, nil
	case "delete":
		imageID, err := requiredUUID(payload.ImageID, "image_id")
		if err != nil {
			return nil, err
		}
		if err := svc.Delete(ctx, imageID); err != nil {
			return nil, err
		}
		return map[string]string{"status": "deleted"}, nil
	case "bulk_delete":
		imageIDs, err := parseUUIDs(payload.ImageIDs)
		if err != nil {
			return nil, err
		}
		if len(imageIDs) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "image_ids required")
		}
		return svc.DeleteBatch(ctx, imageIDs), nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown action").WithDetails(map[string]string{"action": payload.Action})
}

func imageProductPair(payload imageActionRequest) (uuid.UUID, uuid.UUID, error) {
	imageID, err := requiredUUID(payload.ImageID, "image_id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	productID, err := requiredUUID(payload.ProductID, "product_id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return imageID, productID, nil
}

func requiredUUID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field)
	}
	return id, nil
}
