package tiles

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDirStoreFetch(t *testing.T) {
	root := t.TempDir()
	tilePath := filepath.Join(root, "dronbreen", "20200226", "DAT_0086_A1_1", "tile_0_0.jpg")
	if err := os.MkdirAll(filepath.Dir(tilePath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(tilePath, []byte("jpegbytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewDirStore(root)
	rc, contentType, err := store.Fetch(context.Background(), "dronbreen/20200226/DAT_0086_A1_1/tile_0_0.jpg")
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "jpegbytes" {
		t.Errorf("data = %q", data)
	}
	if !strings.HasPrefix(contentType, "image/jpeg") {
		t.Errorf("content type = %q", contentType)
	}
}

func TestDirStoreRefusesTraversal(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "inside.txt"), []byte("ok"), 0o644); err != nil {
		t.Fatal(err)
	}
	outside := filepath.Join(filepath.Dir(root), "outside.txt")
	if err := os.WriteFile(outside, []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}
	defer os.Remove(outside)

	store := NewDirStore(root)
	rc, _, err := store.Fetch(context.Background(), "../outside.txt")
	if err == nil {
		data, _ := io.ReadAll(rc)
		rc.Close()
		if string(data) == "secret" {
			t.Fatal("path traversal escaped the tile root")
		}
	}
}
