package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.6/bundles/datastar.js"

// Section groups reports under one heading on the page.
type Section struct {
	Title   string
	Reports []string
}

// DefaultSections lays out every report the engine serves.
func DefaultSections() []Section {
	return []Section{
		{Title: "Overview", Reports: []string{"summary", "funnel", "data_quality"}},
		{Title: "Products & Payments", Reports: []string{"categories", "priorities", "payments", "installments"}},
		{Title: "Cart", Reports: []string{"cart_sizes", "cart_values", "friction_factors", "high_value_at_risk"}},
		{Title: "Time", Reports: []string{"monthly", "quarterly", "weekdays", "day_types", "hour_buckets"}},
		{Title: "Geography", Reports: []string{"states", "state_recovery", "cities"}},
		{Title: "Customers", Reports: []string{"cohorts"}},
	}
}

// Dashboard renders the page shell. Each report card pulls its own table
// over SSE once the page loads.
func Dashboard(sections []Section) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		b.WriteString(`<title>Cart Abandonment Analytics</title>`)
		fmt.Fprintf(&b, `<script type="module" src="%s"></script>`, datastarScript)
		b.WriteString(`<style>` + styles + `</style></head>`)
		b.WriteString(`<body data-signals="{reports: {}, stats: {}}">`)
		b.WriteString(`<header><h1>Cart Abandonment Analytics</h1>`)
		b.WriteString(`<button data-on-click="@get('/sse/refresh-all')">Refresh all</button>`)
		b.WriteString(`<div id="status"></div></header><main>`)

		for _, s := range sections {
			fmt.Fprintf(&b, `<section><h2>%s</h2><div class="grid">`, templ.EscapeString(s.Title))
			for _, name := range s.Reports {
				n := templ.EscapeString(name)
				fmt.Fprintf(&b, `<article class="card"><h3>%s</h3>`, title(n))
				fmt.Fprintf(&b, `<div id="report-%s" class="report" data-init="@get('/sse/reports/%s')">Loading...</div>`, n, n)
				b.WriteString(`</article>`)
			}
			b.WriteString(`</div></section>`)
		}

		b.WriteString(`</main><footer><a href="/api/facts.csv">Download facts (CSV)</a> · <a href="/api/pipeline">Pipeline summary</a></footer>`)
		b.WriteString(`</body></html>`)

		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func title(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

const styles = `
body{font-family:system-ui,sans-serif;margin:0;background:#f6f7f9;color:#1f2933}
header{display:flex;gap:1rem;align-items:center;padding:1rem 2rem;background:#fff;border-bottom:1px solid #e4e7eb}
main{padding:1rem 2rem}
.grid{display:grid;grid-template-columns:repeat(auto-fill,minmax(420px,1fr));gap:1rem}
.card{background:#fff;border:1px solid #e4e7eb;border-radius:6px;padding:.75rem;overflow:auto}
.modern-table{border-collapse:collapse;width:100%;font-size:.85rem}
.modern-table th,.modern-table td{padding:.3rem .5rem;border-bottom:1px solid #eef0f2;text-align:left}
.empty{color:#7b8794}
footer{padding:1rem 2rem}
`
