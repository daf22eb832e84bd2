// Package validate provides post-hoc conformance checking for parsed norms:
// structural counts against declared totals, content quality rates, and a
// pass/warn/fail verdict.
package validate

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/laguileracl/leychile-epub/pkg/norma"
)

// ValidationStatus indicates the overall verdict.
type ValidationStatus string

const (
	StatusPass ValidationStatus = "PASS"
	StatusWarn ValidationStatus = "WARN"
	StatusFail ValidationStatus = "FAIL"
)

// ValidationIssue is a single finding.
type ValidationIssue struct {
	Category string `json:"category"`
	Severity string `json:"severity"` // "error", "warning", "info"
	Message  string `json:"message"`
}

// Expected holds externally declared totals to check the tree against. Zero
// values mean "not declared" and skip the corresponding check.
type Expected struct {
	Articles int `json:"total_articulos,omitempty"`
	Titles   int `json:"total_titulos,omitempty"`
	Chapters int `json:"total_capitulos,omitempty"`
}

// Result is the validation report of one document.
type Result struct {
	Status ValidationStatus `json:"status"`

	Counts norma.Statistics `json:"counts"`

	ArticlesWithContent int     `json:"articles_with_content"`
	ArticlesEmpty       int     `json:"articles_empty"`
	ContentRate         float64 `json:"content_rate"`

	Issues   []ValidationIssue `json:"issues"`
	Warnings []ValidationIssue `json:"warnings"`
}

// emptyRateThreshold is the empty-article share above which the verdict
// degrades to WARN even without count mismatches.
const emptyRateThreshold = 0.10

// declaredTotalPattern matches an inline declared total in the source text:
// "total_articulos=350", "total_titulos=9".
var declaredTotalPattern = regexp.MustCompile(`total_(articulos|titulos|capitulos)\s*=\s*(\d+)`)

// ParseExpected scans raw text for declared totals annotations.
func ParseExpected(text string) Expected {
	var exp Expected
	for _, m := range declaredTotalPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		switch m[1] {
		case "articulos":
			exp.Articles = n
		case "titulos":
			exp.Titles = n
		case "capitulos":
			exp.Chapters = n
		}
	}
	return exp
}

// Document checks a parsed document against the declared totals and its own
// content quality. Count mismatches are errors; empty articles and parser
// diagnostics degrade the verdict to WARN.
func Document(doc *norma.Document, expected Expected) *Result {
	res := &Result{Counts: doc.Statistics()}

	checkCount := func(name string, got, want int) {
		if want == 0 {
			return
		}
		if got != want {
			res.Issues = append(res.Issues, ValidationIssue{
				Category: "counts",
				Severity: "error",
				Message:  fmt.Sprintf("%s: extraídos %d, declarados %d", name, got, want),
			})
		}
	}
	checkCount("artículos", res.Counts.Articles, expected.Articles)
	checkCount("títulos", res.Counts.Titles, expected.Titles)
	checkCount("capítulos", res.Counts.Chapters, expected.Chapters)

	for _, a := range doc.AllArticles() {
		if a.FlatText() == "" {
			res.ArticlesEmpty++
		} else {
			res.ArticlesWithContent++
		}
	}
	if res.Counts.Articles > 0 {
		res.ContentRate = float64(res.ArticlesWithContent) / float64(res.Counts.Articles)
	}
	if res.ArticlesEmpty > 0 {
		res.Warnings = append(res.Warnings, ValidationIssue{
			Category: "content",
			Severity: "warning",
			Message:  fmt.Sprintf("%d artículos sin texto", res.ArticlesEmpty),
		})
	}

	warnings := 0
	doc.Walk(func(n *norma.Node) {
		for _, d := range n.Diagnostics {
			if d.Severity == norma.SeverityWarning {
				warnings++
			}
		}
	})
	for _, d := range doc.Diagnostics {
		if d.Severity == norma.SeverityWarning {
			warnings++
		}
	}
	if warnings > 0 {
		res.Warnings = append(res.Warnings, ValidationIssue{
			Category: "parser",
			Severity: "warning",
			Message:  fmt.Sprintf("%d advertencias del analizador", warnings),
		})
	}

	switch {
	case len(res.Issues) > 0:
		res.Status = StatusFail
	case len(res.Warnings) > 0,
		res.Counts.Articles > 0 && 1-res.ContentRate > emptyRateThreshold:
		res.Status = StatusWarn
	default:
		res.Status = StatusPass
	}
	return res
}
