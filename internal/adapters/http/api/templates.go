package api

import (
	"embed"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"strconv"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("").Funcs(template.FuncMap{
	"abxField": abxField,
	"mosField": mosField,
	"float":    formatFloat,
	"pvalue":   formatPValue,
	"add":      func(a, b int) int { return a + b },
	"seq":      seq,
}).ParseFS(templateFS, "templates/*.html"))

// page is the data passed to every template.
type page struct {
	Title   string
	Error   []string
	Notice  string
	Surveys []string
	Data    any
}

func render(w http.ResponseWriter, status int, name string, p page) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, name, p); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRender, name, err)
	}
	return nil
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func abxField(item int) string { return "choice-" + strconv.Itoa(item) }

func mosField(item, pos, metric int) string {
	return "score-" + strconv.Itoa(item) + "-" + strconv.Itoa(pos) + "-" + strconv.Itoa(metric)
}

func formatFloat(v any) string {
	switch f := v.(type) {
	case float64:
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "n/a"
		}
		return strconv.FormatFloat(f, 'f', 3, 64)
	case *float64:
		if f == nil {
			return "n/a"
		}
		return formatFloat(*f)
	}
	return ""
}

func formatPValue(p *float64) string {
	if p == nil {
		return "n/a"
	}
	if *p < 0.001 {
		return "<0.001"
	}
	return strconv.FormatFloat(*p, 'f', 3, 64)
}
