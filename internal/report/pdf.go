package report

import (
	"context"
	"fmt"
	"image"
	_ "image/png" // screenshots are PNG
	"io"
	"os"

	"github.com/go-pdf/fpdf"
	"github.com/nao1215/portalshot/internal/model"
)

// PDF layout, in points.
const (
	indexPageWidth  = 1920.0
	indexPageHeight = 1080.0

	titleFontSize    = 46.0
	titleBaseline    = 80.0
	legendFontSize   = 18.0
	legendTop        = 120.0
	legendRowHeight  = 36.0
	legendNameWidth  = 252.0
	legendMeanWidth  = 324.0
	indexFontSize    = 26.0
	indexLineHeight  = 34.0
	indexLeft        = 100.0
	indexTopMargin   = 100.0
	indexBottomLimit = indexPageHeight - 60.0

	captionFontSize   = 16.0
	captionLeft       = 30.0
	captionLineHeight = 15.0
	captionBand       = 50.0
	captionOffset     = 20.0

	pdfFont = "Helvetica"
)

// PDFBuilder renders the report as a PDF document.
//
// The first page carries the title, the color legend and the index of
// captured URLs (continuing onto further pages when it does not fit).
// Each group then gets a page sized to its screenshot plus a caption band
// listing the representative and additional URLs.
type PDFBuilder struct {
	creator string
}

// PDFOption configures a PDFBuilder.
type PDFOption func(*PDFBuilder)

// WithCreator sets the PDF creator metadata.
func WithCreator(creator string) PDFOption {
	return func(b *PDFBuilder) {
		b.creator = creator
	}
}

// NewPDFBuilder creates a PDFBuilder.
func NewPDFBuilder(opts ...PDFOption) *PDFBuilder {
	b := &PDFBuilder{creator: "portalshot"}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build implements Builder.
func (b *PDFBuilder) Build(ctx context.Context, in Input, outputPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: indexPageWidth, Ht: indexPageHeight},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(Title, true)
	pdf.SetCreator(b.creator, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// One link target per group so index entries jump to their page.
	links := make([]int, len(in.Groups))
	groupOf := make(map[string]int)
	for i, g := range in.Groups {
		links[i] = pdf.AddLink()
		for _, u := range g.URLs {
			groupOf[u] = i
		}
	}

	b.writeIndex(pdf, tr, in.Order, groupOf, links)

	for i, g := range in.Groups {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.writeGroup(pdf, tr, in, g, links[i]); err != nil {
			return err
		}
	}

	if pdf.Err() {
		return fmt.Errorf("failed to render PDF: %w", pdf.Error())
	}

	return writeAtomic(outputPath, func(w io.Writer) error {
		if err := pdf.Output(w); err != nil {
			return fmt.Errorf("failed to write PDF: %w", err)
		}
		return nil
	})
}

// writeIndex renders the title, the legend and the colored URL list.
func (b *PDFBuilder) writeIndex(pdf *fpdf.Fpdf, tr func(string) string, order []model.Target, groupOf map[string]int, links []int) {
	pdf.AddPage()

	pdf.SetFont(pdfFont, "B", titleFontSize)
	pdf.SetTextColor(int(black.R), int(black.G), int(black.B))
	title := tr(Title)
	pdf.Text((indexPageWidth-pdf.GetStringWidth(title))/2, titleBaseline, title)

	b.writeLegend(pdf, tr)

	pdf.SetFont(pdfFont, "", indexFontSize)
	y := legendTop + legendRowHeight*float64(len(Legend())+1) + 60
	for _, target := range order {
		if y > indexBottomLimit {
			pdf.AddPage()
			pdf.SetFont(pdfFont, "", indexFontSize)
			y = indexTopMargin
		}
		c := ColorFor(target.Class())
		pdf.SetTextColor(int(c.R), int(c.G), int(c.B))
		line := tr(target.Raw)
		pdf.Text(indexLeft, y, line)
		if i, ok := groupOf[target.Raw]; ok {
			pdf.Link(indexLeft, y-indexFontSize, pdf.GetStringWidth(line), indexLineHeight, links[i])
		}
		y += indexLineHeight
	}
}

// writeLegend draws the color legend table centered below the title.
func (b *PDFBuilder) writeLegend(pdf *fpdf.Fpdf, tr func(string) string) {
	x := (indexPageWidth - legendNameWidth - legendMeanWidth) / 2
	pdf.SetFont(pdfFont, "", legendFontSize)
	pdf.SetDrawColor(int(black.R), int(black.G), int(black.B))
	pdf.SetLineWidth(0.5)

	pdf.SetXY(x, legendTop)
	pdf.SetFillColor(int(grey.R), int(grey.G), int(grey.B))
	pdf.SetTextColor(int(black.R), int(black.G), int(black.B))
	pdf.CellFormat(legendNameWidth, legendRowHeight, tr(LegendHeader[0]), "1", 0, "CM", true, 0, "")
	pdf.CellFormat(legendMeanWidth, legendRowHeight, tr(LegendHeader[1]), "1", 1, "CM", true, 0, "")

	for i, entry := range Legend() {
		pdf.SetXY(x, legendTop+legendRowHeight*float64(i+1))
		pdf.SetFillColor(int(entry.Color.R), int(entry.Color.G), int(entry.Color.B))
		pdf.SetTextColor(int(white.R), int(white.G), int(white.B))
		pdf.CellFormat(legendNameWidth, legendRowHeight, tr(entry.Name), "1", 0, "CM", true, 0, "")
		pdf.SetTextColor(int(black.R), int(black.G), int(black.B))
		pdf.CellFormat(legendMeanWidth, legendRowHeight, tr(entry.Meaning), "1", 1, "CM", false, 0, "")
	}
}

// writeGroup adds the page of one fingerprint group.
func (b *PDFBuilder) writeGroup(pdf *fpdf.Fpdf, tr func(string) string, in Input, g model.Group, link int) error {
	path, err := in.representativeImage(g)
	if err != nil {
		return err
	}
	width, height, err := imageSize(path)
	if err != nil {
		return err
	}

	n := float64(len(g.URLs))
	pageHeight := height + captionBand + captionLineHeight*n
	pdf.AddPageFormat("P", fpdf.SizeType{Wd: width, Ht: pageHeight})
	pdf.SetLink(link, 0, -1)
	pdf.ImageOptions(path, 0, 0, width, height, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	pdf.SetFont(pdfFont, "B", captionFontSize)
	y := height + captionOffset
	for i, u := range g.URLs {
		label := "Additional URL: "
		if i == 0 {
			label = "URL: "
		}
		c := ColorForURL(u)
		pdf.SetTextColor(int(c.R), int(c.G), int(c.B))
		pdf.Text(captionLeft, y, tr(label+u))
		y += captionLineHeight
	}
	return nil
}

// imageSize returns the pixel size of a screenshot, used as its size in
// points.
func imageSize(path string) (float64, float64, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the run's own work directory
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open screenshot: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read screenshot %s: %w", path, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return 0, 0, fmt.Errorf("%w: %s has no pixels", ErrMissingImage, path)
	}
	return float64(cfg.Width), float64(cfg.Height), nil
}
