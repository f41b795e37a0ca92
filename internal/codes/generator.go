package codes

import (
	"bytes"
	"context"
	"image/png"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code39"
	"github.com/boombuler/barcode/qr"

	pkgerrors "github.com/siamgems/inventory-backend/pkg/errors"
	"github.com/siamgems/inventory-backend/pkg/storage/local"
)

const (
	qrSizePx       = 290
	barcodeWidthPx = 600
	barcodeHeight  = 140
)

// Generator renders and stores the QR and Code-39 images for a child code.
type Generator interface {
	Generate(ctx context.Context, childCode string) (qrKey, barcodeKey string, err error)
}

type generator struct {
	store local.Store
}

// NewGenerator constructs the code image generator.
func NewGenerator(store local.Store) (Generator, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "blob store required")
	}
	return &generator{store: store}, nil
}

// Generate overwrites both code images for the child code and returns their
// storage keys. Existing images are always replaced.
func (g *generator) Generate(ctx context.Context, childCode string) (string, string, error) {
	childCode = strings.TrimSpace(childCode)
	if childCode == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "child code required")
	}

	qrKey := local.BuildKey(local.QRCodeImagesPrefix, childCode+".png")
	if err := g.renderQR(ctx, qrKey, childCode); err != nil {
		return "", "", err
	}

	barcodeKey := local.BuildKey(local.BarcodeImagesPrefix, childCode+".png")
	if err := g.renderCode39(ctx, barcodeKey, childCode); err != nil {
		return "", "", err
	}

	return qrKey, barcodeKey, nil
}

func (g *generator) renderQR(ctx context.Context, key, content string) error {
	code, err := qr.Encode(content, qr.M, qr.Auto)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "encode qr")
	}
	scaled, err := barcode.Scale(code, qrSizePx, qrSizePx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "scale qr")
	}
	return g.persist(ctx, key, scaled)
}

func (g *generator) renderCode39(ctx context.Context, key, content string) error {
	// Code-39 only carries uppercase alphanumerics and a few symbols.
	code, err := code39.Encode(strings.ToUpper(content), false, false)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "encode code39")
	}
	scaled, err := barcode.Scale(code, barcodeWidthPx, barcodeHeight)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "scale code39")
	}
	return g.persist(ctx, key, scaled)
}

func (g *generator) persist(ctx context.Context, key string, img barcode.Barcode) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode png")
	}
	if err := g.store.Save(ctx, key, &buf); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store code image")
	}
	return nil
}
