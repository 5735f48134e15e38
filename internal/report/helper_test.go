package report

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/nao1215/portalshot/internal/model"
)

// writePNG writes a solid w×h PNG into dir and returns its path.
func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: 0x40, B: 0x80, A: 0xff})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create image: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

// sampleInput returns the a/c:8443 grouping with b.com failed:
// a.com and c.com:8443 render the same page, d.com a different one.
func sampleInput(t *testing.T) Input {
	t.Helper()

	dir := t.TempDir()
	shotA := writePNG(t, dir, "0000_screenshot_https___a.com.png", 64, 48)
	shotD := writePNG(t, dir, "0003_screenshot_http___d.com.png", 32, 24)

	return Input{
		Order: []model.Target{
			model.NewTarget("https://a.com"),
			model.NewTarget("https://c.com:8443"),
			model.NewTarget("http://d.com"),
		},
		Groups: []model.Group{
			{Fingerprint: "ffff0000ffff0000", URLs: []string{"https://a.com", "https://c.com:8443"}},
			{Fingerprint: "0000ffff0000ffff", URLs: []string{"http://d.com"}},
		},
		Images: map[string]string{
			"https://a.com":      shotA,
			"https://c.com:8443": shotA,
			"http://d.com":       shotD,
		},
		Titles: map[string]string{
			"https://a.com": "Sign in *now*",
		},
	}
}

// assertNoTempFiles fails when a temporary report file is left in dir.
func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join(dir, ".*.tmp"))
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("temporary files left behind: %v", matches)
	}
}
