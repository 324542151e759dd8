package scraper

import (
	"fmt"
	"strings"
)

// StoreInfo describes a supported storefront for callers that sent an
// unsupported URL.
type StoreInfo struct {
	ID      StoreID `json:"id"`
	Name    string  `json:"name"`
	Example string  `json:"example"`
}

// UnsupportedURLError is returned by Router.Route when no extractor claims a URL.
type UnsupportedURLError struct {
	URL    string
	Stores []StoreInfo
}

func (e *UnsupportedURLError) Error() string {
	names := make([]string, len(e.Stores))
	for i, s := range e.Stores {
		names[i] = s.Name
	}
	return fmt.Sprintf("unsupported store URL %q (supported: %s)", e.URL, strings.Join(names, ", "))
}

// Router picks the extractor for a storefront URL.
type Router struct {
	extractors []*Extractor
}

// NewRouter registers extractors in match order. With no arguments the three
// built-in storefronts are used.
func NewRouter(extractors ...*Extractor) *Router {
	if len(extractors) == 0 {
		extractors = []*Extractor{MetaQuest(), SideQuest(), Steam()}
	}
	return &Router{extractors: extractors}
}

// Normalize trims raw and adds https:// when it has no scheme. The URL is
// otherwise left as given.
func Normalize(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return u
	}
	// any scheme is kept verbatim; non-http ones simply match no store
	if !strings.Contains(u, "://") {
		u = "https://" + u
	}
	return u
}

// Route returns the normalized URL and the first extractor whose patterns
// match it.
func (r *Router) Route(raw string) (string, *Extractor, error) {
	u := Normalize(raw)
	for _, e := range r.extractors {
		if e.Matches(u) {
			return u, e, nil
		}
	}
	return u, nil, &UnsupportedURLError{URL: strings.TrimSpace(raw), Stores: r.Stores()}
}

// Overlaps lists every extractor that matches raw. More than one entry means
// Route resolved the URL by registration order.
func (r *Router) Overlaps(raw string) []StoreID {
	u := Normalize(raw)
	var ids []StoreID
	for _, e := range r.extractors {
		if e.Matches(u) {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

// Stores lists the registered storefronts.
func (r *Router) Stores() []StoreInfo {
	out := make([]StoreInfo, len(r.extractors))
	for i, e := range r.extractors {
		out[i] = StoreInfo{ID: e.ID, Name: e.Name, Example: e.Example}
	}
	return out
}

// Extractor returns the registered extractor with the given id.
func (r *Router) Extractor(id StoreID) (*Extractor, bool) {
	for _, e := range r.extractors {
		if e.ID == id {
			return e, true
		}
	}
	return nil, false
}
