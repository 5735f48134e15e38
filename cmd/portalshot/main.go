// Package main provides the entry point for the portalshot CLI.
//
// portalshot screenshots every internet-facing portal listed in a CSV or
// XLSX file, groups visually identical pages by perceptual hash, and writes
// a color-coded PDF or Markdown report plus a change log.
//
// Usage:
//
//	portalshot capture portals.csv -o report.pdf
//	portalshot capture portals.xlsx -o report.md --login-only
//
// See --help for all available options.
package main

// main is the entry point for portalshot.
func main() {
	Execute()
}
