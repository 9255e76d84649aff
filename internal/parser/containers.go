package parser

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
)

// Container is one known shape of embedded search data. Locate returns the raw
// script body; Entries returns the raw product entries inside it.
type Container struct {
	Name    string
	Locate  func(doc *goquery.Document) (string, bool)
	Entries func(raw string) ([]gjson.Result, error)
}

const (
	ContainerStructuredData = "structured-data"
	ContainerNextData       = "next-data"
	ContainerApolloState    = "apollo-state"

	apolloMarker = "window.__APOLLO_STATE__"

	// nested page state is never this deep
	maxWalkDepth = 24
)

// DefaultContainers lists the shapes the site has shipped, newest first.
func DefaultContainers() []Container {
	return []Container{
		{
			Name:    ContainerStructuredData,
			Locate:  scriptByID("thd-helmet__script--browseSearchStructuredData"),
			Entries: structuredDataEntries,
		},
		{
			Name:    ContainerNextData,
			Locate:  scriptByID("__NEXT_DATA__"),
			Entries: walkedEntries,
		},
		{
			Name:    ContainerApolloState,
			Locate:  locateApolloState,
			Entries: walkedEntries,
		},
	}
}

func scriptByID(id string) func(doc *goquery.Document) (string, bool) {
	return func(doc *goquery.Document) (string, bool) {
		sel := doc.Find(`script[id="` + id + `"]`).First()
		if sel.Length() == 0 {
			return "", false
		}
		return strings.TrimSpace(sel.Text()), true
	}
}

func locateApolloState(doc *goquery.Document) (string, bool) {
	var raw string
	found := false

	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		idx := strings.Index(text, apolloMarker)
		if idx == -1 {
			return true
		}
		found = true

		rest := text[idx+len(apolloMarker):]
		if eq := strings.Index(rest, "="); eq != -1 {
			rest = rest[eq+1:]
		}
		raw = firstJSONValue(rest)
		return false
	})

	return raw, found
}

// firstJSONValue returns the JSON value at the start of s, ignoring any
// statements after it. Unparseable input is returned trimmed so the caller
// reports it as malformed.
func firstJSONValue(s string) string {
	var value json.RawMessage
	if err := json.NewDecoder(strings.NewReader(s)).Decode(&value); err != nil {
		return strings.TrimSuffix(strings.TrimSpace(s), ";")
	}
	return string(value)
}

// structuredDataEntries reads the ld+json search blob:
// [ { "mainEntity": { "offers": { "itemOffered": [ ... ] } } } ]
func structuredDataEntries(raw string) ([]gjson.Result, error) {
	if !gjson.Valid(raw) {
		return nil, errMalformed
	}

	root := gjson.Parse(raw)
	if root.IsArray() {
		root = root.Get("0")
	}

	items := root.Get("mainEntity.offers.itemOffered")
	switch {
	case items.IsArray():
		return items.Array(), nil
	case items.IsObject():
		return []gjson.Result{items}, nil
	default:
		return nil, errMissingPath
	}
}

// walkedEntries collects products from page state of unknown shape.
func walkedEntries(raw string) ([]gjson.Result, error) {
	if !gjson.Valid(raw) {
		return nil, errMalformed
	}

	c := &collector{}
	c.walk(gjson.Parse(raw), 0)
	if !c.found {
		return nil, errMissingPath
	}
	return c.entries, nil
}

type collector struct {
	entries []gjson.Result
	seen    map[string]bool
	found   bool
}

// add keeps the first copy of an entry. Page state often repeats the same
// list in a cache next to the rendered one.
func (c *collector) add(entry gjson.Result) {
	if c.seen == nil {
		c.seen = make(map[string]bool)
	}
	if c.seen[entry.Raw] {
		return
	}
	c.seen[entry.Raw] = true
	c.entries = append(c.entries, entry)
}

// walk gathers every array stored under a "products" key and every
// apollo entity typed as Product. Collected entries are not descended into.
func (c *collector) walk(node gjson.Result, depth int) {
	if depth > maxWalkDepth {
		return
	}

	switch {
	case node.IsObject():
		node.ForEach(func(key, value gjson.Result) bool {
			switch {
			case key.String() == "products" && value.IsArray():
				c.found = true
				for _, entry := range value.Array() {
					c.add(entry)
				}
			case value.IsObject() && value.Get("__typename").String() == "Product":
				c.found = true
				c.add(value)
			default:
				c.walk(value, depth+1)
			}
			return true
		})
	case node.IsArray():
		node.ForEach(func(_, value gjson.Result) bool {
			c.walk(value, depth+1)
			return true
		})
	}
}
