package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/portalshot/internal/config"
	"github.com/nao1215/portalshot/internal/model"
)

// Format selects a report variant.
type Format string

// Supported report formats.
const (
	FormatPDF      Format = config.FormatPDF
	FormatMarkdown Format = config.FormatMarkdown
)

// ParseFormat converts a user-supplied name into a Format.
// "md" is accepted as an alias of markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pdf":
		return FormatPDF, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// FormatFromPath infers the format from the output file extension.
func FormatFromPath(path string) (Format, error) {
	f := config.FormatFromPath(path)
	if f == "" {
		return "", fmt.Errorf("%w: cannot infer from %q", ErrUnknownFormat, filepath.Base(path))
	}
	return Format(f), nil
}

// Input is everything a Builder needs.
type Input struct {
	// Order lists the successfully captured targets in first-seen order.
	Order []model.Target

	// Groups are the fingerprint groups in formation order.
	Groups []model.Group

	// Images maps a URL to its screenshot path. Every group representative
	// must be present.
	Images map[string]string

	// Titles maps a URL to its page title. Optional.
	Titles map[string]string
}

// Builder renders a report document.
type Builder interface {
	// Build writes the report to outputPath. The file is replaced
	// atomically; on error no partial report is left behind.
	Build(ctx context.Context, in Input, outputPath string) error
}

// NewBuilder returns the Builder for format.
func NewBuilder(format Format) (Builder, error) {
	switch format {
	case FormatPDF:
		return NewPDFBuilder(), nil
	case FormatMarkdown:
		return NewMarkdownBuilder(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// representativeImage returns the screenshot of the group representative.
func (in Input) representativeImage(g model.Group) (string, error) {
	path, ok := in.Images[g.Representative()]
	if !ok || path == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingImage, g.Representative())
	}
	return path, nil
}

// writeAtomic writes path through a temporary file in the same directory
// and renames it into place once write succeeds.
func writeAtomic(path string, write func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err = write(tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move report into place: %w", err)
	}
	return nil
}
