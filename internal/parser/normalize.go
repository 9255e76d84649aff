package parser

import (
	"regexp"
	"strings"

	"github.com/maltedev/product-search-scraper/internal/models"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

var (
	namePaths  = []string{"name", "productLabel", "identifiers.productLabel", "title"}
	linkPaths  = []string{"offers.url", "offers.0.url", "url", "canonicalUrl", "identifiers.canonicalUrl"}
	imagePaths = []string{"image", "media.images.0.url", "imageUrl", "thumbnail"}

	// objects that may carry an {original, special/current} pair, in priority order
	priceObjects  = []string{"pricing", "price", "offers", "offers.0"}
	originalKeys  = []string{"original", "originalPrice", "wasPrice"}
	currentKeys   = []string{"specialPrice", "special", "current", "value", "price", "lowPrice"}
	whitespaceRe  = regexp.MustCompile(`\s+`)
	priceNumberRe = regexp.MustCompile(`\d*\.?\d+`)
)

// Normalize converts one raw entry into a ProductRecord. Entries without a
// usable name are rejected.
func (p *SearchParser) Normalize(entry gjson.Result) (models.ProductRecord, bool) {
	if !entry.IsObject() {
		return models.ProductRecord{}, false
	}

	name := cleanText(firstString(entry, namePaths...))
	if name == "" {
		return models.ProductRecord{}, false
	}

	current, original := extractPrices(entry)

	link := p.resolve(firstString(entry, linkPaths...))
	if link == "" {
		link = "#"
	}

	return models.ProductRecord{
		Name:          name,
		CurrentPrice:  current,
		OriginalPrice: original,
		Link:          link,
		ImageURL:      p.imageURL(entry),
	}, true
}

func (p *SearchParser) imageURL(entry gjson.Result) string {
	var image string
	for _, path := range imagePaths {
		if image = scalarOrFirst(entry.Get(path)); image != "" {
			break
		}
	}

	image = strings.TrimSpace(image)
	if image == "" {
		return models.PlaceholderImageURL
	}

	image = strings.ReplaceAll(image, "<SIZE>", "400")
	return p.resolve(image)
}

// scalarOrFirst reads an image reference that may be a string, an array of
// strings or objects, or an object with a url.
func scalarOrFirst(r gjson.Result) string {
	switch {
	case !r.Exists():
		return ""
	case r.IsArray():
		arr := r.Array()
		if len(arr) == 0 {
			return ""
		}
		return scalarOrFirst(arr[0])
	case r.IsObject():
		return r.Get("url").String()
	default:
		return r.String()
	}
}

func extractPrices(entry gjson.Result) (current, original decimal.NullDecimal) {
	for _, obj := range priceObjects {
		o := entry.Get(obj)
		if !o.IsObject() {
			continue
		}
		original = parsePrice(firstResult(o, originalKeys...))
		current = parsePrice(firstResult(o, currentKeys...))
		if current.Valid || original.Valid {
			return reconcile(current, original)
		}
	}

	flat := entry.Get("price")
	if flat.IsObject() || flat.IsArray() {
		return decimal.NullDecimal{}, decimal.NullDecimal{}
	}
	return reconcile(parsePrice(flat), decimal.NullDecimal{})
}

// reconcile applies the discount rules: an equal pair means no discount and a
// lone original price is the current price.
func reconcile(current, original decimal.NullDecimal) (decimal.NullDecimal, decimal.NullDecimal) {
	if !current.Valid && original.Valid {
		return original, decimal.NullDecimal{}
	}
	if current.Valid && original.Valid && current.Decimal.Equal(original.Decimal) {
		return current, decimal.NullDecimal{}
	}
	return current, original
}

func parsePrice(r gjson.Result) decimal.NullDecimal {
	var text string
	switch r.Type {
	case gjson.Number:
		text = r.Raw
	case gjson.String:
		text = strings.ReplaceAll(r.String(), ",", "")
		text = priceNumberRe.FindString(text)
		if strings.HasPrefix(text, ".") {
			text = "0" + text
		}
	default:
		return decimal.NullDecimal{}
	}

	if text == "" {
		return decimal.NullDecimal{}
	}

	d, err := decimal.NewFromString(text)
	if err != nil || d.IsNegative() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func firstResult(r gjson.Result, paths ...string) gjson.Result {
	for _, path := range paths {
		if v := r.Get(path); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

func firstString(r gjson.Result, paths ...string) string {
	for _, path := range paths {
		v := r.Get(path)
		if v.Type != gjson.String {
			continue
		}
		if s := strings.TrimSpace(v.String()); s != "" {
			return s
		}
	}
	return ""
}

func cleanText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
