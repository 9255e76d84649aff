package api

import (
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/maltedev/product-search-scraper/internal/models"
)

const (
	minFormPages = 1
	maxFormPages = 5
)

var pageTemplate = template.Must(template.New("search").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Product search{{if .Keyword}}: {{.Keyword}}{{end}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
table { border-collapse: collapse; width: 100%; }
th, td { border-bottom: 1px solid #e2e8f0; padding: .5rem; text-align: left; vertical-align: middle; }
img { width: 100px; height: 100px; object-fit: contain; }
.was { color: #718096; text-decoration: line-through; margin-left: .5rem; }
.error { color: #c53030; }
</style>
</head>
<body>
<form method="get" action="/">
  <input type="text" name="keyword" value="{{.Keyword}}" placeholder="e.g. milwaukee" required>
  <select name="pages">
  {{range .PageOptions}}<option value="{{.}}"{{if eq . $.Pages}} selected{{end}}>{{.}} page{{if gt . 1}}s{{end}}</option>
  {{end}}</select>
  <button type="submit">Search</button>
</form>
{{if .Result}}
<p>{{len .Result.Unique}} unique products, {{len .Result.Duplicates}} duplicates across {{.Result.PagesFetched}} page(s). Stopped: {{.Result.StopReason}}.</p>
{{if .Result.Error}}<p class="error">{{.Result.Error}}</p>{{end}}
<table>
<thead><tr><th>Image</th><th>Name</th><th>Price</th><th>Link</th></tr></thead>
<tbody>
{{range .Result.Unique}}<tr>
  <td><img src="{{.ImageURL}}" alt="{{.Name}}" loading="lazy"></td>
  <td>{{.Name}}</td>
  <td>{{.DisplayPrice}}{{if .HasDiscount}}<span class="was">{{.DisplayOriginalPrice}}</span>{{end}}</td>
  <td><a href="{{.Link}}" target="_blank" rel="noopener">View</a></td>
</tr>
{{end}}</tbody>
</table>
{{end}}
</body>
</html>
`))

type pageData struct {
	Keyword     string
	Pages       int
	PageOptions []int
	Result      *models.RunResult
}

// SearchPage handles GET /. With a keyword it runs the crawl synchronously
// and renders the unique products as a table.
func (h *Handlers) SearchPage(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Keyword:     strings.TrimSpace(r.URL.Query().Get("keyword")),
		Pages:       formPages(r.URL.Query().Get("pages")),
		PageOptions: make([]int, 0, maxFormPages),
	}
	for i := minFormPages; i <= maxFormPages; i++ {
		data.PageOptions = append(data.PageOptions, i)
	}

	if data.Keyword != "" {
		data.Result = h.searcher.Search(r.Context(), data.Keyword, data.Pages)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		h.logger.Error("failed to render page", "error", err)
	}
}

func formPages(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < minFormPages {
		return minFormPages
	}
	if n > maxFormPages {
		return maxFormPages
	}
	return n
}
