// Package extractor turns the image elements of a results page into
// absolute candidate URLs.
package extractor

import "strings"

// Element is one result-card image as reported by a renderer.
// Empty strings mean the attribute or property was absent.
type Element struct {
	Src        string `json:"src"`
	DataSrc    string `json:"dataSrc"`
	CurrentSrc string `json:"currentSrc"`
}

// EffectiveSource returns the first non-empty of Src, DataSrc and CurrentSrc.
func EffectiveSource(e Element) string {
	switch {
	case e.Src != "":
		return e.Src
	case e.DataSrc != "":
		return e.DataSrc
	default:
		return e.CurrentSrc
	}
}

// Normalize rewrites protocol-relative references ("//host/path") to https.
// Any other value is returned unchanged, so Normalize is idempotent.
func Normalize(ref string) string {
	if strings.HasPrefix(ref, "//") {
		return "https:" + ref
	}
	return ref
}

// IsCandidate reports whether ref is an absolute http(s) URL.
func IsCandidate(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// Extract maps elements to candidate URLs in document order, dropping
// duplicates and anything that is not an absolute http(s) reference
// (data: URIs, relative paths, empty sources).
func Extract(elements []Element) []string {
	urls := make([]string, 0, len(elements))
	seen := make(map[string]struct{}, len(elements))
	for _, el := range elements {
		ref := Normalize(EffectiveSource(el))
		if !IsCandidate(ref) {
			continue
		}
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		urls = append(urls, ref)
	}
	return urls
}
