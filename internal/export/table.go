package export

import (
	"fmt"
	"io"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/maltedev/product-search-scraper/internal/models"
)

const maxNameWidth = 60

// WriteTable renders the unique records, optionally followed by the
// duplicates, and a summary line.
func WriteTable(w io.Writer, result *models.RunResult, opts Options) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	writeRows(tw, result.Unique)
	if opts.ShowDuplicates && len(result.Duplicates) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "DUPLICATES")
		writeRows(tw, result.Duplicates)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to write table: %w", err)
	}

	fmt.Fprintf(w, "\n%d unique, %d duplicates, %d page(s) fetched, stopped: %s\n",
		len(result.Unique), len(result.Duplicates), result.PagesFetched, result.StopReason)
	if result.Error != "" {
		fmt.Fprintf(w, "error: %s\n", result.Error)
	}
	return nil
}

func writeRows(w io.Writer, records []models.ProductRecord) {
	fmt.Fprintln(w, "#\tNAME\tPRICE\tWAS\tPAGE\tLINK")
	for i, r := range records {
		was := ""
		if r.HasDiscount() {
			was = r.DisplayOriginalPrice()
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
			i+1, truncate(r.Name, maxNameWidth), r.DisplayPrice(), was, r.Page, r.Link)
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-3]) + "..."
}
