// Package export writes run results as a terminal table, CSV or JSON.
package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/maltedev/product-search-scraper/internal/models"
)

type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatCSV, FormatJSON:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown format %q (want table, csv or json)", s)
	}
}

// Options controls what a writer includes.
type Options struct {
	ShowDuplicates bool
}

func Write(w io.Writer, format Format, result *models.RunResult, opts Options) error {
	switch format {
	case FormatTable:
		return WriteTable(w, result, opts)
	case FormatCSV:
		records := result.Unique
		if opts.ShowDuplicates {
			records = append(append([]models.ProductRecord{}, result.Unique...), result.Duplicates...)
		}
		return WriteCSV(w, records)
	case FormatJSON:
		return WriteJSON(w, result)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// WriteFile writes to a temp file next to path and renames it into place, so
// readers never see a partial export.
func WriteFile(path string, format Format, result *models.RunResult, opts Options) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	buf := bufio.NewWriter(tmp)
	if err := Write(buf, format, result, opts); err != nil {
		tmp.Close()
		return err
	}
	if err := buf.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move export into place: %w", err)
	}
	return nil
}
