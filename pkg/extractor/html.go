package extractor

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ElementsFromHTML parses an HTML document and returns every element that
// matches selector. Without a live DOM there is no currentSrc, so the first
// srcset candidate stands in for it.
func ElementsFromHTML(r io.Reader, selector string) ([]Element, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return ElementsFromDocument(doc, selector), nil
}

// ElementsFromDocument runs selector against an already parsed document.
func ElementsFromDocument(doc *goquery.Document, selector string) []Element {
	var elements []Element
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		elements = append(elements, Element{
			Src:        strings.TrimSpace(s.AttrOr("src", "")),
			DataSrc:    strings.TrimSpace(s.AttrOr("data-src", "")),
			CurrentSrc: firstSrcsetURL(s.AttrOr("srcset", "")),
		})
	})
	return elements
}

// firstSrcsetURL returns the URL part of the first "url descriptor" entry.
func firstSrcsetURL(srcset string) string {
	first, _, _ := strings.Cut(srcset, ",")
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
