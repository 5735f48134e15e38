// Package targets reads the list of URLs to capture from a tabular file.
//
// CSV and XLSX inputs are supported. The first row is a header. The URL
// column is chosen by zero-based index (default 3, the fourth column) or by
// header name. Cells are trimmed; empty and NA-marker cells are dropped;
// duplicates are removed case-sensitively keeping the first occurrence, so
// the resulting order is the order of first appearance.
package targets
