// Package report renders the results of a capture run.
//
// Two Builder variants produce the final document:
//   - PDFBuilder: an index page with a color legend, then one page per
//     fingerprint group sized to the screenshot
//   - MarkdownBuilder: a flowing document with the screenshots copied
//     into a directory beside it
//
// Both share the same color policy: HTTPS URLs are black, HTTP URLs are
// red, and URLs with a non-standard port are chocolate brown.
//
// The package also writes the change log (CSV or XLSX) and prints the
// colored index to a terminal.
package report
