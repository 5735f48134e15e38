package report

import (
	"context"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/portalshot/internal/model"
)

// Size every embedded screenshot is normalized to, in pixels.
const (
	markdownImageWidth  = 384
	markdownImageHeight = 288
)

// MarkdownBuilder renders the report as a Markdown document.
// Screenshots are copied into "<report name>_images/" next to the report
// and referenced relatively, so the directory can be moved as a whole.
type MarkdownBuilder struct{}

// NewMarkdownBuilder creates a MarkdownBuilder.
func NewMarkdownBuilder() *MarkdownBuilder {
	return &MarkdownBuilder{}
}

// ImagesDir returns the directory the screenshots of outputPath are copied to.
func ImagesDir(outputPath string) string {
	base := strings.TrimSuffix(outputPath, filepath.Ext(outputPath))
	return base + "_images"
}

// Build implements Builder.
func (b *MarkdownBuilder) Build(ctx context.Context, in Input, outputPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	imagesDir := ImagesDir(outputPath)
	relDir := filepath.Base(imagesDir)
	embedded := make(map[string]string, len(in.Groups))
	if len(in.Groups) > 0 {
		names, err := stageImages(ctx, in, imagesDir)
		if err != nil {
			return err
		}
		for rep, name := range names {
			embedded[rep] = filepath.ToSlash(filepath.Join(relDir, name))
		}
	}

	return writeAtomic(outputPath, func(w io.Writer) error {
		md := markdown.NewMarkdown(w)
		b.writeIndex(md, in.Order)
		b.writeLegend(md)
		b.writeGroups(md, in, embedded)
		if err := md.Build(); err != nil {
			return fmt.Errorf("failed to write markdown: %w", err)
		}
		return nil
	})
}

// writeIndex writes the title and one colored line per captured URL.
func (b *MarkdownBuilder) writeIndex(md *markdown.Markdown, order []model.Target) {
	md.H1(Title)
	md.PlainText("")

	if len(order) == 0 {
		md.Note("No portal was captured.")
		md.PlainText("")
		return
	}

	items := make([]string, 0, len(order))
	for _, target := range order {
		items = append(items, colored(target.Raw, ColorFor(target.Class())))
	}
	md.BulletList(items...)
	md.PlainText("")
}

// writeLegend writes the color legend table.
func (b *MarkdownBuilder) writeLegend(md *markdown.Markdown) {
	rows := make([][]string, 0, len(Legend()))
	for _, entry := range Legend() {
		rows = append(rows, []string{colored(entry.Name, entry.Color), entry.Meaning})
	}
	md.Table(markdown.TableSet{
		Header: LegendHeader,
		Rows:   rows,
	})
	md.PlainText("")
}

// writeGroups writes one section per fingerprint group.
func (b *MarkdownBuilder) writeGroups(md *markdown.Markdown, in Input, embedded map[string]string) {
	if len(in.Groups) == 0 {
		return
	}
	md.HorizontalRule()

	for i, g := range in.Groups {
		rep := g.Representative()
		md.H2(fmt.Sprintf("Portal %d", i+1))
		md.PlainText("")
		md.PlainTextf(`<img src="%s" width="%d" height="%d" alt="%s">`,
			html.EscapeString(embedded[rep]), markdownImageWidth, markdownImageHeight, html.EscapeString(rep))
		md.PlainText("")
		md.PlainText("URL: " + colored(rep, ColorForURL(rep)) + "<br>")
		for _, u := range g.Additional() {
			md.PlainText("Additional URL: " + colored(u, ColorForURL(u)) + "<br>")
		}
		if title := in.Titles[rep]; title != "" {
			md.PlainText("")
			md.PlainTextf("*%s*", markdownEscaper.Replace(title))
		}
		md.PlainText("")
	}
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, `*`, `\*`, `_`, `\_`, "`", "\\`", `[`, `\[`, `]`, `\]`, `<`, "&lt;", `>`, "&gt;",
)

// colored wraps text in an inline HTML span of the given color.
func colored(text string, c RGB) string {
	return fmt.Sprintf(`<span style="color:%s">%s</span>`, c.Hex(), html.EscapeString(text))
}

// stageImages copies the representative screenshots into a temporary
// sibling of imagesDir and moves it into place once every copy succeeded.
// It returns the image file name of each group representative.
func stageImages(ctx context.Context, in Input, imagesDir string) (map[string]string, error) {
	parent := filepath.Dir(imagesDir)
	if err := os.MkdirAll(parent, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	staging, err := os.MkdirTemp(parent, "."+filepath.Base(imagesDir)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(staging) }()

	names := make(map[string]string, len(in.Groups))
	for _, g := range in.Groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src, err := in.representativeImage(g)
		if err != nil {
			return nil, err
		}
		name := filepath.Base(src)
		if err := copyFile(src, filepath.Join(staging, name)); err != nil {
			return nil, err
		}
		names[g.Representative()] = name
	}

	if err := os.RemoveAll(imagesDir); err != nil {
		return nil, fmt.Errorf("failed to replace image directory: %w", err)
	}
	if err := os.Rename(staging, imagesDir); err != nil {
		return nil, fmt.Errorf("failed to move image directory into place: %w", err)
	}
	return names, nil
}

// copyFile copies src to dst, creating the parent directory.
func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("failed to create image directory: %w", err)
	}

	in, err := os.Open(src) //nolint:gosec // path comes from the run's own work directory
	if err != nil {
		return fmt.Errorf("failed to open screenshot: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // destination is derived from the report path
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy screenshot: %w", err)
	}
	return out.Close()
}
