package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/menta2k/img-frameright/internal/config"
	"github.com/menta2k/img-frameright/pkg/regions"
)

const testRegions = `[{"id":"wide","shape":"rectangle","absolute":true,"x":100,"y":100,"width":200,"height":100},{"id":"tall","shape":"rectangle","absolute":false,"x":0.5,"y":0,"width":0.2,"height":0.5}]`

// run executes the CLI with a default config file written to a temp dir
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := config.Default().SaveToFile(cfgPath); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	root := NewRootCommand(&stdout, &stderr)
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// createTestImage writes a flat gray PNG
func createTestImage(t *testing.T, path string, width, height int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{64, 64, 64, 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestStyleCommand(t *testing.T) {
	out, _, err := run(t, "style", "--natural", "1000x2000", "--box", "400x300", "--regions", testRegions, "--attr", "alt=A dog")
	if err != nil {
		t.Fatalf("style failed: %v", err)
	}

	if !strings.Contains(out, "id=wide") || !strings.Contains(out, "best-fit") {
		t.Errorf("Expected wide by best fit, got:\n%s", out)
	}
	want := "style: visibility: visible; transform-origin: 133px 100px; transform: translate(-133px, -100px) scale(3.000);"
	if !strings.Contains(out, want) {
		t.Errorf("Expected %q in:\n%s", want, out)
	}
	if !strings.Contains(out, `<img alt="A dog" style="visibility: visible;`) {
		t.Errorf("Expected img tag with forwarded alt, got:\n%s", out)
	}
}

func TestStyleCommandRegionsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.json")
	os.WriteFile(path, []byte(testRegions), 0644)

	out, _, err := run(t, "style", "--natural", "1000x2000", "--box", "400x300", "--regions", path, "--region-id", "tall")
	if err != nil {
		t.Fatalf("style failed: %v", err)
	}
	if !strings.Contains(out, "id=tall") || !strings.Contains(out, "override") {
		t.Errorf("Expected override to tall, got:\n%s", out)
	}
}

func TestStyleCommandDebug(t *testing.T) {
	_, logs, err := run(t, "style", "--natural", "1000x2000", "--box", "400x300", "--regions", testRegions, "--srcset", "--debug")
	if err != nil {
		t.Fatalf("style failed: %v", err)
	}
	if !strings.Contains(logs, "Do not use absolute regions together with srcset=") {
		t.Errorf("Expected srcset warning in logs, got:\n%s", logs)
	}
}

func TestStyleCommandErrors(t *testing.T) {
	if _, _, err := run(t, "style", "--natural", "abc", "--box", "400x300"); err == nil {
		t.Error("Expected error for invalid natural size")
	}
	if _, _, err := run(t, "style", "--natural", "10x10", "--box", "10x10", "--regions", "missing.json"); err == nil {
		t.Error("Expected error for missing regions file")
	}
	if _, _, err := run(t, "style", "--box", "10x10"); err == nil {
		t.Error("Expected error for missing --natural")
	}
}

func TestRenderCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "photo.png")
	createTestImage(t, in, 1000, 2000)
	outDir := filepath.Join(dir, "out")

	_, _, err := run(t, "render", "--in", in, "--regions", testRegions, "--box", "400x300,300x400", "--out", outDir, "--ext", "png", "--debug")
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	for _, name := range []string{"photo_400x300_wide.png", "photo_300x400_no_region.png", "photo_400x300_debug.png"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("Expected %s to be written: %v", name, err)
		}
	}

	f, err := os.Open(filepath.Join(outDir, "photo_400x300_wide.png"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil || cfg.Width != 400 || cfg.Height != 300 {
		t.Errorf("Expected a 400x300 preview, got %+v (%v)", cfg, err)
	}
}

func TestRenderCommandDirectory(t *testing.T) {
	dir := t.TempDir()
	createTestImage(t, filepath.Join(dir, "a.png"), 200, 100)
	createTestImage(t, filepath.Join(dir, "b.png"), 100, 200)
	outDir := t.TempDir()

	if _, _, err := run(t, "render", "--in", dir, "--box", "50x50", "--out", outDir, "--ext", "jpg", "-w", "2"); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	files, _ := filepath.Glob(filepath.Join(outDir, "*.jpg"))
	if len(files) != 2 {
		t.Errorf("Expected 2 previews, got %v", files)
	}
}

func TestRenderCommandUnreadableInput(t *testing.T) {
	dir := t.TempDir()
	createTestImage(t, filepath.Join(dir, "a.png"), 200, 100)
	if err := os.WriteFile(filepath.Join(dir, "b.png"), []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	outDir := t.TempDir()

	_, _, err := run(t, "render", "--in", dir, "--box", "50x50,80x40", "--out", outDir, "--ext", "png", "-w", "1")
	if err == nil || !strings.Contains(err.Error(), "b.png") {
		t.Fatalf("Expected a load error for b.png, got %v", err)
	}

	// With one worker a.png is done before b.png is decoded
	files, _ := filepath.Glob(filepath.Join(outDir, "a_*.png"))
	if len(files) != 2 {
		t.Errorf("Expected both previews of a.png, got %v", files)
	}
}

func TestRenderCommandMissingInput(t *testing.T) {
	_, _, err := run(t, "render", "--in", filepath.Join(t.TempDir(), "missing.png"), "--box", "50x50", "--out", t.TempDir())
	if err == nil {
		t.Error("Expected error for missing input")
	}
}

func TestSuggestCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"model": "test",
			"message": map[string]any{
				"role":    "assistant",
				"content": `{"primary":{"label":"Cat","confidence":0.9,"box":{"x":0.25,"y":0.25,"w":0.5,"h":0.5},"cx":0.5,"cy":0.5},"description":"a cat","tags":["cat"]}`,
			},
			"done": true,
		})
	}))
	defer srv.Close()

	dir := t.TempDir()
	in := filepath.Join(dir, "cat.png")
	createTestImage(t, in, 200, 100)
	save := filepath.Join(dir, "analysis.json")

	out, _, err := run(t, "suggest", "--in", in, "--backend", "ollama", "--url", srv.URL, "--aspect", "1:1", "--save", save)
	if err != nil {
		t.Fatalf("suggest failed: %v", err)
	}

	descs, err := regions.ParseDescriptors(out)
	if err != nil {
		t.Fatalf("Expected an image-regions value, got %q: %v", out, err)
	}
	if len(descs) != 2 || descs[0].ID != "cat" || descs[1].ID != "cat-square" {
		t.Errorf("Unexpected descriptors %+v", descs)
	}
	if _, err := os.Stat(save); err != nil {
		t.Errorf("Expected analysis to be saved: %v", err)
	}
}

func TestSuggestCommandUnknownBackend(t *testing.T) {
	in := filepath.Join(t.TempDir(), "x.png")
	createTestImage(t, in, 10, 10)
	if _, _, err := run(t, "suggest", "--in", in, "--backend", "openai"); err == nil {
		t.Error("Expected error for unknown backend")
	}
}

func TestConfigMissingExplicit(t *testing.T) {
	var stdout, stderr bytes.Buffer
	root := NewRootCommand(&stdout, &stderr)
	root.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml"), "style", "--natural", "1x1", "--box", "1x1"})
	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Error("Expected error for missing explicit config")
	}
}

func TestParseBoxes(t *testing.T) {
	boxes, err := parseBoxes([]string{"400x300, 300x400", "100x100"})
	if err != nil || len(boxes) != 3 {
		t.Fatalf("Expected 3 boxes, got %v (%v)", boxes, err)
	}
	if _, err := parseBoxes(nil); err == nil {
		t.Error("Expected error for no boxes")
	}
	if _, err := parseBoxes([]string{"0x10"}); err == nil {
		t.Error("Expected error for empty box")
	}
}

func TestSuggestCommandOffline(t *testing.T) {
	in := filepath.Join(t.TempDir(), "flat.png")
	createTestImage(t, in, 120, 80)

	out, _, err := run(t, "suggest", "--in", in, "--backend", "saliency")
	if err != nil {
		t.Fatalf("suggest failed: %v", err)
	}
	descs, err := regions.ParseDescriptors(out)
	if err != nil {
		t.Fatalf("Expected an image-regions value, got %q: %v", out, err)
	}
	// A flat image has no subject, only the default aspect crops remain
	if len(descs) != 3 || descs[0].ID != "subject-square" {
		t.Errorf("Unexpected descriptors %+v", descs)
	}
}
