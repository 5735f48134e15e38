package report

import (
	"fmt"

	"github.com/nao1215/portalshot/internal/model"
)

// Title is the heading of the index section in every report.
const Title = "List of Internet Facing Portals"

// RGB is an 8-bit color.
type RGB struct {
	R, G, B uint8
}

// Hex returns the color as "#rrggbb".
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

var (
	black     = RGB{0x00, 0x00, 0x00}
	red       = RGB{0xff, 0x00, 0x00}
	chocolate = RGB{0xd1, 0x69, 0x1f}
	grey      = RGB{0x80, 0x80, 0x80}
	white     = RGB{0xff, 0xff, 0xff}
)

// ColorFor returns the report color of a color class.
// ClassOther shares the HTTPS color.
func ColorFor(class model.ColorClass) RGB {
	switch class {
	case model.ClassHTTP:
		return red
	case model.ClassNonStandardPort:
		return chocolate
	default:
		return black
	}
}

// ColorForURL classifies raw and returns its report color.
func ColorForURL(raw string) RGB {
	return ColorFor(model.ClassifyURL(raw))
}

// LegendEntry is one row of the color legend.
type LegendEntry struct {
	Name    string
	Color   RGB
	Meaning string
}

// LegendHeader is the heading row of the color legend.
var LegendHeader = []string{"Color Legend", ""}

// Legend returns the legend rows in display order. ClassOther is not listed.
func Legend() []LegendEntry {
	return []LegendEntry{
		{Name: "Black", Color: black, Meaning: "HTTPS URLs"},
		{Name: "Red", Color: red, Meaning: "HTTP URLs"},
		{Name: "Brown", Color: chocolate, Meaning: "URLs with non-standard ports"},
	}
}
