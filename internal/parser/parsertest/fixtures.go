// Package parsertest renders search pages in each embedded data shape the
// parser understands, for use in tests.
package parsertest

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Product is a raw listing as the site would embed it. Zero-value fields are
// omitted from the rendered JSON.
type Product struct {
	Name     string
	Price    any
	Original any
	URL      string
	Image    string
}

// Products returns n products named "<prefix> <i>" with ascending prices.
func Products(prefix string, n int) []Product {
	out := make([]Product, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, Product{
			Name:  fmt.Sprintf("%s %d", prefix, i),
			Price: float64(i) + 0.99,
			URL:   fmt.Sprintf("/p/%s-%d/%d", strings.ReplaceAll(strings.ToLower(prefix), " ", "-"), i, 300000000+i),
			Image: fmt.Sprintf("https://images.example.com/%d_<SIZE>.jpg", i),
		})
	}
	return out
}

// StructuredDataPage renders the ld+json search container.
func StructuredDataPage(products []Product, nextHref string) string {
	items := make([]map[string]any, 0, len(products))
	for _, p := range products {
		item := map[string]any{"@type": "Product"}
		if p.Name != "" {
			item["name"] = p.Name
		}
		if p.Image != "" {
			item["image"] = p.Image
		}
		offers := map[string]any{"@type": "Offer", "priceCurrency": "USD"}
		if p.Price != nil {
			offers["price"] = p.Price
		}
		if p.URL != "" {
			offers["url"] = p.URL
		}
		item["offers"] = offers
		items = append(items, item)
	}

	blob := []map[string]any{{
		"@context": "https://schema.org",
		"@type":    "WebPage",
		"mainEntity": map[string]any{
			"@type": "OfferCatalog",
			"offers": map[string]any{
				"@type":       "AggregateOffer",
				"itemOffered": items,
			},
		},
	}}

	script := fmt.Sprintf(`<script id="thd-helmet__script--browseSearchStructuredData" type="application/ld+json">%s</script>`, mustJSON(blob))
	return page(script, nextHref)
}

// NextDataPage renders a Next.js __NEXT_DATA__ container with the products
// nested a few levels down and priced with an {original, specialPrice} pair.
func NextDataPage(products []Product, nextHref string) string {
	items := make([]map[string]any, 0, len(products))
	for _, p := range products {
		item := map[string]any{}
		identifiers := map[string]any{}
		if p.Name != "" {
			identifiers["productLabel"] = p.Name
		}
		if p.URL != "" {
			identifiers["canonicalUrl"] = p.URL
		}
		item["identifiers"] = identifiers

		pricing := map[string]any{}
		if p.Price != nil {
			pricing["specialPrice"] = p.Price
		}
		if p.Original != nil {
			pricing["original"] = p.Original
		}
		item["pricing"] = pricing

		if p.Image != "" {
			item["media"] = map[string]any{"images": []map[string]any{{"url": p.Image}}}
		}
		items = append(items, item)
	}

	blob := map[string]any{
		"props": map[string]any{
			"pageProps": map[string]any{
				"searchModel": map[string]any{
					"searchReport": map[string]any{"totalProducts": len(items)},
					"products":     items,
				},
			},
		},
		"page": "/s/[keyword]",
	}

	script := fmt.Sprintf(`<script id="__NEXT_DATA__" type="application/json">%s</script>`, mustJSON(blob))
	return page(script, nextHref)
}

// ApolloStatePage renders an inline window.__APOLLO_STATE__ assignment with
// normalized Product entities.
func ApolloStatePage(products []Product, nextHref string) string {
	state := map[string]any{}
	for i, p := range products {
		entity := map[string]any{"__typename": "Product", "itemId": fmt.Sprint(i)}
		if p.Name != "" {
			entity["name"] = p.Name
		}
		if p.Price != nil {
			entity["price"] = p.Price
		}
		if p.URL != "" {
			entity["url"] = p.URL
		}
		if p.Image != "" {
			entity["imageUrl"] = p.Image
		}
		state[fmt.Sprintf("Product:%03d", i)] = entity
	}
	state["ROOT_QUERY"] = map[string]any{"__typename": "Query"}

	script := fmt.Sprintf(`<script>window.__APOLLO_STATE__ = %s;</script>`, mustJSON(state))
	return page(script, nextHref)
}

// BarePage renders a search page without any embedded data container.
func BarePage(nextHref string) string {
	return page(`<script>window.dataLayer = [];</script>`, nextHref)
}

// RawContainerPage renders the structured-data script with an arbitrary body.
func RawContainerPage(body, nextHref string) string {
	script := fmt.Sprintf(`<script id="thd-helmet__script--browseSearchStructuredData" type="application/ld+json">%s</script>`, body)
	return page(script, nextHref)
}

func page(script, nextHref string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><title>Search</title>")
	b.WriteString(script)
	b.WriteString("</head><body><main><div class=\"results\">results</div>")
	if nextHref != "" {
		b.WriteString(`<nav aria-label="Pagination Navigation"><ul>`)
		b.WriteString(`<li><a aria-label="Previous" href="#">&lt;</a></li>`)
		fmt.Fprintf(&b, `<li><a aria-label="Skip to Next Page" href="%s">&gt;</a></li>`, nextHref)
		b.WriteString(`</ul></nav>`)
	}
	b.WriteString("</main></body></html>")
	return b.String()
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}
