package scraper

import "github.com/maltedev/product-search-scraper/internal/models"

// Partition splits records into the first occurrence of every name and all
// later occurrences. Names compare case-sensitively. Order is preserved in
// both slices.
func Partition(records []models.ProductRecord) (unique, duplicates []models.ProductRecord) {
	unique = make([]models.ProductRecord, 0, len(records))
	duplicates = make([]models.ProductRecord, 0)
	seen := make(map[string]struct{}, len(records))

	for _, r := range records {
		if _, ok := seen[r.Name]; ok {
			duplicates = append(duplicates, r)
			continue
		}
		seen[r.Name] = struct{}{}
		unique = append(unique, r)
	}

	return unique, duplicates
}
