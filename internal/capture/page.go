package capture

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PasswordSelector matches the login form field waited for in login-gate mode.
const PasswordSelector = `input[type="password"]`

// unsafeFileChars are characters not allowed in file names on common systems.
var unsafeFileChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)

// maxNameBytes keeps screenshot names well below filesystem limits.
const maxNameBytes = 180

// PageTitle returns the whitespace-normalized <title> of an HTML document.
func PageTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
}

// HasPasswordField reports whether the document contains a password input.
func HasPasswordField(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	return doc.Find(PasswordSelector).Length() > 0
}

// SanitizeFilename replaces characters that are unsafe in file names with "_".
func SanitizeFilename(s string) string {
	s = unsafeFileChars.ReplaceAllString(s, "_")
	if len(s) > maxNameBytes {
		s = strings.ToValidUTF8(s[:maxNameBytes], "")
	}
	return s
}

// ScreenshotName returns the file name for the screenshot of the target at
// index. The index prefix keeps names unique after sanitization.
func ScreenshotName(index int, rawURL string) string {
	return fmt.Sprintf("%04d_screenshot_%s.png", index, SanitizeFilename(rawURL))
}
