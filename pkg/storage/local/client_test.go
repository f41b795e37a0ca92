package local

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/siamgems/inventory-backend/pkg/config"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(context.Background(), config.StorageConfig{MediaRoot: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func TestSaveOpenDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	key := BuildKey(ProductImagesPrefix, "ER-1001-A.jpg")
	if err := client.Save(ctx, key, strings.NewReader("payload")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	exists, err := client.Exists(ctx, key)
	if err != nil || !exists {
		t.Fatalf("expected blob to exist, got exists=%v err=%v", exists, err)
	}

	r, err := client.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	data, _ := io.ReadAll(r)
	r.Close()
	if string(data) != "payload" {
		t.Fatalf("unexpected blob content %q", data)
	}

	if err := client.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	exists, err = client.Exists(ctx, key)
	if err != nil || exists {
		t.Fatalf("expected blob gone, got exists=%v err=%v", exists, err)
	}

	// Deleting again is a no-op.
	if err := client.Delete(ctx, key); err != nil {
		t.Fatalf("Delete of missing blob failed: %v", err)
	}
}

func TestResolveRejectsTraversal(t *testing.T) {
	t.Parallel()
	client := newTestClient(t)

	if _, err := client.resolve("../outside.txt"); err == nil {
		t.Fatal("expected traversal key to be rejected")
	}
	if _, err := client.resolve(""); err == nil {
		t.Fatal("expected empty key to be rejected")
	}
}

func TestSanitizeFileName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"ER-1001-A.jpg", "ER-1001-A.jpg"},
		{"  my photo (1).png ", "my_photo_(1).png"},
		{"../../etc/passwd", "passwd"},
		{"###", "unnamed"},
	}
	for _, tc := range cases {
		if got := SanitizeFileName(tc.in); got != tc.want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
