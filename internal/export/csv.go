package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/maltedev/product-search-scraper/internal/models"
	"github.com/shopspring/decimal"
)

var csvHeader = []string{"name", "current_price", "original_price", "link", "image_url", "page"}

// WriteCSV writes one row per record. Missing prices are empty cells.
func WriteCSV(w io.Writer, records []models.ProductRecord) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, r := range records {
		row := []string{
			r.Name,
			csvPrice(r.CurrentPrice),
			csvPrice(r.OriginalPrice),
			r.Link,
			r.ImageURL,
			strconv.Itoa(r.Page),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func csvPrice(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}
