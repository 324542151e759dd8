package scraper

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"vrstore/pkg/models"
)

// Page is one fetched storefront page, parsed once and shared by every rule.
type Page struct {
	HTML string
	URL  *url.URL
	Doc  *goquery.Document
}

// NewPage parses html. A parse failure leaves an empty document so rules
// simply find nothing.
func NewPage(html, sourceURL string) *Page {
	p := &Page{HTML: html}
	if u, err := url.Parse(sourceURL); err == nil {
		p.URL = u
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		doc, _ = goquery.NewDocumentFromReader(strings.NewReader(""))
	}
	p.Doc = doc
	return p
}

// Resolve makes ref absolute against the page URL.
func (p *Page) Resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || p.URL == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return p.URL.ResolveReference(u).String()
}

// Rule is a single extraction strategy for one field. It returns ok=false
// when it found nothing usable.
type Rule[T any] func(p *Page) (T, bool)

// firstMatch evaluates rules in order and returns the first hit together with
// the index of the rule that produced it.
func firstMatch[T any](p *Page, rules []Rule[T]) (T, int, bool) {
	for i, r := range rules {
		if v, ok := r(p); ok {
			return v, i, true
		}
	}
	var zero T
	return zero, -1, false
}

var innerWhitespace = regexp.MustCompile(`\s+`)

// cleanText trims and collapses whitespace runs to one space.
func cleanText(s string) string {
	return strings.TrimSpace(innerWhitespace.ReplaceAllString(s, " "))
}

var blankLines = regexp.MustCompile(`\n\s*\n\s*(\n\s*)+`)

// cleanBlock trims a multi-line text, keeping paragraph breaks.
func cleanBlock(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = cleanText(l)
	}
	out := strings.Join(lines, "\n")
	out = blankLines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// textOf matches the first element for selector and returns its cleaned text.
func textOf(selector string) Rule[string] {
	return func(p *Page) (string, bool) {
		s := cleanText(p.Doc.Find(selector).First().Text())
		return s, s != ""
	}
}

// blockOf is textOf for multi-paragraph content.
func blockOf(selector string) Rule[string] {
	return func(p *Page) (string, bool) {
		found := p.Doc.Find(selector).First()
		if found.Length() == 0 {
			return "", false
		}
		// work on a copy so the shared document stays untouched
		sel := found.Clone()
		sel.Find("br").ReplaceWithHtml("\n")
		sel.Find("p, li, div, h1, h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
			s.AppendHtml("\n")
		})
		s := cleanBlock(sel.Text())
		return s, s != ""
	}
}

// attrOf returns an attribute of the first element matching selector.
func attrOf(selector, attr string) Rule[string] {
	return func(p *Page) (string, bool) {
		v, ok := p.Doc.Find(selector).First().Attr(attr)
		v = cleanText(v)
		return v, ok && v != ""
	}
}

// urlAttrOf is attrOf with the value resolved against the page URL.
func urlAttrOf(selector, attr string) Rule[string] {
	inner := attrOf(selector, attr)
	return func(p *Page) (string, bool) {
		v, ok := inner(p)
		if !ok {
			return "", false
		}
		return p.Resolve(v), true
	}
}

func metaContent(name string) Rule[string] {
	return attrOf(`meta[property="`+name+`"], meta[name="`+name+`"]`, "content")
}

// titleWithout returns <title> with any of the given suffixes cut off.
func titleWithout(suffixes ...string) Rule[string] {
	return func(p *Page) (string, bool) {
		t := cleanText(p.Doc.Find("title").First().Text())
		for _, suf := range suffixes {
			if i := strings.LastIndex(t, suf); i > 0 {
				t = strings.TrimSpace(t[:i])
				break
			}
		}
		return t, t != ""
	}
}

// regexText returns capture group 1 of re matched against the raw HTML.
func regexText(re *regexp.Regexp) Rule[string] {
	return func(p *Page) (string, bool) {
		m := re.FindStringSubmatch(p.HTML)
		if len(m) < 2 {
			return "", false
		}
		s := cleanText(stripTags(m[1]))
		return s, s != ""
	}
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

func stripTags(s string) string {
	return tagPattern.ReplaceAllString(s, " ")
}

// readabilityExcerpt is the last-resort description rule: let readability
// guess the main content and take its excerpt.
func readabilityExcerpt() Rule[string] {
	return func(p *Page) (string, bool) {
		if p.URL == nil || strings.TrimSpace(p.HTML) == "" {
			return "", false
		}
		rp := readability.NewParser()
		article, err := rp.Parse(strings.NewReader(p.HTML), p.URL)
		if err != nil {
			return "", false
		}
		s := cleanBlock(article.Excerpt)
		if s == "" {
			s = cleanBlock(article.TextContent)
		}
		return s, s != ""
	}
}

// sizeIn parses a file size out of whatever text rule produces.
func sizeIn(rule Rule[string]) Rule[int64] {
	return func(p *Page) (int64, bool) {
		s, ok := rule(p)
		if !ok {
			return 0, false
		}
		return ParseFileSize(s)
	}
}

// screenshotsOf collects image URLs from attr of every element matching selector.
func screenshotsOf(selector, attr string) Rule[[]models.Screenshot] {
	return func(p *Page) ([]models.Screenshot, bool) {
		var shots []models.Screenshot
		seen := make(map[string]struct{})
		p.Doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			v, ok := s.Attr(attr)
			if !ok {
				return true
			}
			v = p.Resolve(cleanText(v))
			if v == "" {
				return true
			}
			if _, dup := seen[v]; dup {
				return true
			}
			seen[v] = struct{}{}
			caption := cleanText(s.AttrOr("alt", s.AttrOr("title", "")))
			shots = append(shots, models.Screenshot{URL: v, Caption: caption})
			return len(shots) < maxScreenshots
		})
		return shots, len(shots) > 0
	}
}
