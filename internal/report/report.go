// Package report summarizes a crawl run.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/template"
	"time"

	"github.com/FranksOps/shelf/internal/storage"
)

// Summary contains aggregated counts about one crawl run.
type Summary struct {
	RunID           string         `json:"run_id"`
	StartTime       time.Time      `json:"start_time"`
	EndTime         time.Time      `json:"end_time"`
	Duration        time.Duration  `json:"duration"`
	Excluded        int            `json:"excluded"`
	PagesScanned    int            `json:"pages_scanned"`
	LinksCollected  int            `json:"links_collected"`
	Short           bool           `json:"short"`
	ProductsWritten int            `json:"products_written"`
	ProductsFailed  int            `json:"products_failed"`
	ImagesSaved     int            `json:"images_saved"`
	FieldFill       map[string]int `json:"field_fill"`
	// FailedURLs holds masked URLs of products that could not be processed.
	FailedURLs []string `json:"failed_urls,omitempty"`
}

// New starts a Summary for a run.
func New(runID string, start time.Time) *Summary {
	fill := make(map[string]int, len(storage.Columns))
	for _, c := range storage.Columns {
		fill[c] = 0
	}
	return &Summary{RunID: runID, StartTime: start, FieldFill: fill}
}

// AddProduct counts a written product and its filled fields.
func (s *Summary) AddProduct(p *storage.Product) {
	s.ProductsWritten++
	row := p.Row()
	for i, c := range storage.Columns {
		if row[i] != "" {
			s.FieldFill[c]++
		}
	}
	if p.ImagePath != nil {
		s.ImagesSaved++
	}
}

// AddFailure counts a product that could not be fetched, parsed or saved.
func (s *Summary) AddFailure(maskedURL string) {
	s.ProductsFailed++
	s.FailedURLs = append(s.FailedURLs, maskedURL)
}

// Finish stamps the end time.
func (s *Summary) Finish(end time.Time) {
	s.EndTime = end
	s.Duration = end.Sub(s.StartTime)
}

// FieldCount is how many written products had a field filled.
type FieldCount struct {
	Field string
	Count int
}

// Fields returns fill counts in column order.
func (s *Summary) Fields() []FieldCount {
	out := make([]FieldCount, 0, len(s.FieldFill))
	order := make(map[string]int, len(storage.Columns))
	for i, c := range storage.Columns {
		order[c] = i
	}
	for f, n := range s.FieldFill {
		out = append(out, FieldCount{Field: f, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return order[out[i].Field] < order[out[j].Field] })
	return out
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary *Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	return nil
}

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary *Summary) error {
	const textTmpl = `Shelf Crawl Summary
-------------------
Run:           {{.RunID}}
Time:          {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Duration:      {{.Duration}}
Pages:         {{.PagesScanned}} listing page(s)
Links:         {{.LinksCollected}} new, {{.Excluded}} already stored{{if .Short}} (short of target){{end}}
Written:       {{.ProductsWritten}}
Failed:        {{.ProductsFailed}}
Images:        {{.ImagesSaved}}

Field fill:
{{- range .Fields}}
  {{printf "%-20s" .Field}} {{.Count}}/{{$.ProductsWritten}}
{{- end}}
{{- if .FailedURLs}}

Failed URLs:
{{- range .FailedURLs}}
  {{.}}
{{- end}}
{{- end}}
`

	t, err := template.New("textReport").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("report: parse template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: render: %w", err)
	}

	return nil
}
