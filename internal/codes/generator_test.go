package codes

import (
	"bytes"
	"context"
	"image/png"
	"io"
	"testing"
)

type memStore struct {
	blobs map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{blobs: map[string][]byte{}}
}

func (s *memStore) Save(_ context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.blobs[key] = raw
	return nil
}

func (s *memStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.blobs[key])), nil
}

func (s *memStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := s.blobs[key]
	return ok, nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	delete(s.blobs, key)
	return nil
}

func TestGenerate_WritesBothImages(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	gen, err := NewGenerator(store)
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}

	qrKey, barcodeKey, err := gen.Generate(context.Background(), "ER-1001-A")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if qrKey != "qrcode_images/ER-1001-A.png" {
		t.Fatalf("unexpected qr key %q", qrKey)
	}
	if barcodeKey != "barcode_images/ER-1001-A.png" {
		t.Fatalf("unexpected barcode key %q", barcodeKey)
	}

	for _, key := range []string{qrKey, barcodeKey} {
		raw, ok := store.blobs[key]
		if !ok {
			t.Fatalf("missing blob %s", key)
		}
		if _, err := png.Decode(bytes.NewReader(raw)); err != nil {
			t.Fatalf("blob %s is not a PNG: %v", key, err)
		}
	}
}

func TestGenerate_ReplacesExisting(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	gen, _ := NewGenerator(store)

	if _, _, err := gen.Generate(context.Background(), "RN-2002-B"); err != nil {
		t.Fatalf("first Generate failed: %v", err)
	}
	first := append([]byte(nil), store.blobs["qrcode_images/RN-2002-B.png"]...)

	store.blobs["qrcode_images/RN-2002-B.png"] = []byte("stale")
	if _, _, err := gen.Generate(context.Background(), "RN-2002-B"); err != nil {
		t.Fatalf("second Generate failed: %v", err)
	}
	if !bytes.Equal(store.blobs["qrcode_images/RN-2002-B.png"], first) {
		t.Fatalf("expected regenerated image to replace stale blob")
	}
}

func TestGenerate_RequiresChildCode(t *testing.T) {
	t.Parallel()

	gen, _ := NewGenerator(newMemStore())
	if _, _, err := gen.Generate(context.Background(), "   "); err == nil {
		t.Fatal("expected blank child code to fail")
	}
}
