// Package fingerprint computes perceptual fingerprints of screenshots and
// groups URLs whose rendered pages look the same.
//
// A fingerprint is the 64-bit average hash of the image (8x8 grayscale,
// one bit per cell above the mean), printed as 16 hex digits. It survives
// re-encoding and small rendering noise but changes for materially
// different pages. It only sees luminance layout, so blank pages of
// different colors can collide.
//
// A Store lives for one run. It keeps the latest fingerprint per URL, the
// groups in formation order and an append-only change log with exactly one
// record per Record or RecordFailure call.
package fingerprint
