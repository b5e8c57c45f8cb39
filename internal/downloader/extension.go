package downloader

import "strings"

// ExtensionFor maps a Content-Type header to a file suffix. It is a
// substring match: png is checked before webp, anything else is .jpg.
func ExtensionFor(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "png"):
		return ".png"
	case strings.Contains(ct, "webp"):
		return ".webp"
	default:
		return ".jpg"
	}
}
