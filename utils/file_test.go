package utils

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test PNG: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("failed to write test PNG %s: %v", path, err)
	}
}

func TestIsValidImage(t *testing.T) {
	dir := t.TempDir()

	genuine := filepath.Join(dir, "real.png")
	writePNG(t, genuine)

	// a non-image renamed to a supported extension must fail the open check
	fakeJPG := filepath.Join(dir, "fake.jpg")
	if err := os.WriteFile(fakeJPG, []byte("definitely not an image"), 0644); err != nil {
		t.Fatal(err)
	}

	// a genuine image behind an unsupported extension must fail the extension check
	hiddenPNG := filepath.Join(dir, "image.txt")
	writePNG(t, hiddenPNG)

	missing := filepath.Join(dir, "missing.png")

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"genuine png", genuine, true},
		{"renamed text file", fakeJPG, false},
		{"png with txt extension", hiddenPNG, false},
		{"nonexistent file", missing, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidImage(tt.path); got != tt.want {
				t.Errorf("IsValidImage(%s) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestListImagesMembership(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"))
	writePNG(t, filepath.Join(dir, "b.png"))
	writePNG(t, filepath.Join(dir, ".hidden.png"))
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("text"), 0644); err != nil {
		t.Fatal(err)
	}

	subDir := filepath.Join(dir, "nested")
	if err := os.Mkdir(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writePNG(t, filepath.Join(subDir, "c.png"))

	hiddenDir := filepath.Join(dir, ".cache")
	if err := os.Mkdir(hiddenDir, 0755); err != nil {
		t.Fatal(err)
	}
	writePNG(t, filepath.Join(hiddenDir, "d.png"))

	toSet := func(paths []string) map[string]bool {
		set := make(map[string]bool, len(paths))
		for _, p := range paths {
			set[filepath.Base(p)] = true
		}
		return set
	}

	flat, err := ListImages(dir, false)
	if err != nil {
		t.Fatalf("ListImages failed: %v", err)
	}
	flatSet := toSet(flat)
	if len(flatSet) != 2 || !flatSet["a.png"] || !flatSet["b.png"] {
		t.Errorf("non-recursive: expected {a.png, b.png}, got %v", flatSet)
	}

	deep, err := ListImages(dir, true)
	if err != nil {
		t.Fatalf("recursive ListImages failed: %v", err)
	}
	deepSet := toSet(deep)
	if len(deepSet) != 3 || !deepSet["a.png"] || !deepSet["b.png"] || !deepSet["c.png"] {
		t.Errorf("recursive: expected {a.png, b.png, c.png}, got %v", deepSet)
	}
}

func TestListImagesRejectsNonDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.png")
	writePNG(t, file)

	if _, err := ListImages(file, false); err == nil {
		t.Error("expected an error when listing a non-directory")
	}
	if _, err := ListImages(filepath.Join(dir, "missing"), false); err == nil {
		t.Error("expected an error for a missing directory")
	}
}

func TestImageMimeType(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"a.jpg", "image/jpeg"},
		{"a.JPG", "image/jpeg"},
		{"a.png", "image/png"},
		{"a.webp", "image/webp"},
		{"a.heic", "image/heic"},
		{"a.unknown", "image/jpeg"},
	}
	for _, tt := range tests {
		if got := ImageMimeType(tt.path); got != tt.want {
			t.Errorf("ImageMimeType(%s) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestGenerateThumbnail(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	writePNG(t, src)

	thumbDir := filepath.Join(dir, "thumbs")
	thumbPath, err := GenerateThumbnail(src, thumbDir, 100)
	if err != nil {
		t.Fatalf("GenerateThumbnail failed: %v", err)
	}
	if filepath.Ext(thumbPath) != ".jpg" {
		t.Errorf("expected a .jpg thumbnail, got %s", thumbPath)
	}
	if _, err := os.Stat(thumbPath); err != nil {
		t.Errorf("expected thumbnail file to exist: %v", err)
	}
}
