package fingerprint

import (
	"fmt"
	"image"

	"github.com/corona10/goimagehash"
	"github.com/nao1215/portalshot/internal/model"
)

// Hasher computes the fingerprint of an image.
type Hasher func(img image.Image) (model.Fingerprint, error)

// AverageHash is the default Hasher.
func AverageHash(img image.Image) (model.Fingerprint, error) {
	if img == nil || img.Bounds().Empty() {
		return "", ErrEmptyImage
	}
	h, err := goimagehash.AverageHash(img)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCorruptImage, err)
	}
	return model.FingerprintFromUint64(h.GetHash()), nil
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b model.Fingerprint) (int, error) {
	av, err := a.Uint64()
	if err != nil {
		return 0, err
	}
	bv, err := b.Uint64()
	if err != nil {
		return 0, err
	}
	return goimagehash.NewImageHash(av, goimagehash.AHash).
		Distance(goimagehash.NewImageHash(bv, goimagehash.AHash))
}
