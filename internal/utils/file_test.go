package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGenerateOutputFilename(t *testing.T) {
	tests := []struct {
		input, prefix, suffix, format, want string
	}{
		{"/img/photo.JPG", "", "_400x300", "webp", "out/photo_400x300.webp"},
		{"photo.png", "fr_", "_no_region", "", "out/fr_photo_no_region.png"},
		{"photo", "", "", "", "out/photo.jpg"},
	}
	for _, tt := range tests {
		if got := GenerateOutputFilename(tt.input, "out", tt.prefix, tt.suffix, tt.format); got != filepath.FromSlash(tt.want) {
			t.Errorf("%s: expected %q, got %q", tt.input, tt.want, got)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"<no region>": "no_region",
		"a/b:c":       "a_b_c",
		" .hidden. ":  "hidden",
	}
	for in, want := range tests {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestListImageFiles(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "sub"), 0755)
	for _, name := range []string{"b.png", "a.JPG", "notes.txt", "sub/c.webp"} {
		os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644)
	}

	files, err := ListImageFiles(dir)
	if err != nil {
		t.Fatalf("ListImageFiles failed: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("Expected 3 images, got %v", files)
	}
	if filepath.Base(files[0]) != "a.JPG" {
		t.Errorf("Expected sorted output, got %v", files)
	}
	if !DirExists(dir) || DirExists(files[0]) {
		t.Error("DirExists mismatch")
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := map[int64]string{
		512:     "512 B",
		2048:    "2.0 KB",
		5 << 20: "5.0 MB",
	}
	for in, want := range tests {
		if got := FormatFileSize(in); got != want {
			t.Errorf("FormatFileSize(%d): expected %q, got %q", in, want, got)
		}
	}
}
