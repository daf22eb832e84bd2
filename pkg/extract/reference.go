package extract

import (
	"regexp"
	"strings"

	"github.com/laguileracl/leychile-epub/pkg/norma"
)

var (
	// articleRefPattern matches an in-text article reference, lowercase or
	// capitalized, with an optional Latin suffix and an optional norm tail:
	// "el artículo 10 de la presente ley", "artículos 3 y siguientes",
	// "artículo 2 bis de la Ley N° 20.720", "artículo 1.223 del Código de
	// Comercio". Group 1 is the number (with suffix), group 2 the norm tail.
	articleRefPattern = regexp.MustCompile(`(?i)\bart[íi]culos?\s+(\d+(?:\.\d{3})*(?:\s+(?:bis|ter|qu[áa]ter|quinquies|sexies|septies|octies|novies|decies))?)[º°]?` +
		`(?:\s+(?:de\s+la\s+|de\s+el\s+|del\s+|de\s+)(presente\s+(?:ley|decreto|resoluci[óo]n|norma|instructivo)|esta\s+ley|` +
		`ley\s+(?:n[°º]?\s*)?[\d][\d.]*|` +
		`c[óo]digo\s+(?:org[áa]nico\s+de\s+tribunales|de\s+procedimiento\s+civil|de\s+procedimiento\s+penal|procesal\s+penal|de[l]?\s+[a-záéíóúñ]+|[a-záéíóúñ]+)|` +
		`d\.?\s*f\.?\s*l\.?\s*(?:n[°º]?\s*)?[\d][\d.]*|` +
		`decreto\s+(?:supremo\s+|ley\s+)?(?:n[°º]?\s*)?[\d][\d.]*))?`)

	// articleListPattern matches the enumeration continuing a plural
	// reference: "artículos 3, 4 y 5".
	articleListPattern = regexp.MustCompile(`^\s*,?\s*(?:y\s+)?(\d+(?:\.\d{3})*)[º°]?`)

	// lawRefPattern matches a standalone external-norm citation for the
	// metadata LawRefs field.
	lawRefPattern = regexp.MustCompile(`(?i)\b(ley|d\.?\s*f\.?\s*l\.?|decreto\s+supremo|decreto\s+ley|d\.?\s*s\.?|ncg|norma\s+de\s+car[áa]cter\s+general)\s+(?:n[°º]?\s*)?([\d][\d.]*)`)
)

// ReferenceExtractor finds explicit article references inside article text.
// References are deduplicated per article by (number, norm) and kept in
// first-mention order.
type ReferenceExtractor struct{}

// NewReferenceExtractor returns a reference extractor.
func NewReferenceExtractor() *ReferenceExtractor {
	return &ReferenceExtractor{}
}

// Extract scans one article's flat text. "y siguientes" ranges record only
// their starting article; self-references ("de la presente ley") carry an
// empty norm.
func (e *ReferenceExtractor) Extract(text string) []norma.Reference {
	var refs []norma.Reference
	seen := make(map[string]bool)

	add := func(article, normName string) {
		key := normalizeRefKey(article, normName)
		if seen[key] {
			return
		}
		seen[key] = true
		refs = append(refs, norma.Reference{Article: article, Norm: normName})
	}

	locs := articleRefPattern.FindAllStringSubmatchIndex(text, -1)
	for _, loc := range locs {
		number := strings.ToUpper(strings.Join(strings.Fields(text[loc[2]:loc[3]]), " "))
		normName := ""
		if loc[4] >= 0 {
			normName = canonicalNormRef(text[loc[4]:loc[5]])
		}
		add(number, normName)

		// A plural "artículos" may enumerate more numbers before the norm
		// tail: "artículos 3, 4 y 5 de la Ley N° 20.720".
		tailStart := loc[3]
		tailEnd := len(text)
		if loc[4] >= 0 {
			tailEnd = loc[4]
		}
		tail := text[tailStart:tailEnd]
		for {
			m := articleListPattern.FindStringSubmatchIndex(tail)
			if m == nil {
				break
			}
			add(tail[m[2]:m[3]], normName)
			tail = tail[m[1]:]
		}
	}

	return refs
}

// canonicalNormRef normalizes the norm tail of an article reference. The
// "presente ley"/"esta ley" forms are self-references and become empty.
func canonicalNormRef(raw string) string {
	folded := strings.ToLower(strings.Join(strings.Fields(raw), " "))
	if strings.HasPrefix(folded, "presente") || strings.HasPrefix(folded, "esta ") {
		return ""
	}

	if m := lawRefPattern.FindStringSubmatch(folded); m != nil {
		return canonicalNormType(normTypeToken(m[1])) + " " + formatLawNumber(m[2])
	}

	if strings.HasPrefix(folded, "código") || strings.HasPrefix(folded, "codigo") {
		return titleCaseUpper(strings.Replace(folded, "codigo", "código", 1))
	}

	return titleCaseUpper(folded)
}

// normTypeToken folds a matched norm-type token to the canonical spelling
// canonicalNormType expects.
func normTypeToken(raw string) string {
	t := strings.ToUpper(strings.Join(strings.Fields(raw), " "))
	return strings.ReplaceAll(t, " .", ".")
}

// normalizeRefKey builds the dedupe key: article numbers compare verbatim,
// norm names compare by their digits so "Ley 20.720" and "ley 20720"
// collapse.
func normalizeRefKey(article, normName string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, normName)
	if digits == "" {
		digits = strings.ToLower(normName)
	}
	return article + "|" + digits
}

// lawReferenceScanner collects the external norms cited anywhere in a
// document for the metadata LawRefs field.
type lawReferenceScanner struct{}

func newLawReferenceScanner() *lawReferenceScanner {
	return &lawReferenceScanner{}
}

// Scan returns cited norms ("Ley 20.720", "DFL 1", "NCG 14") deduplicated by
// type and digits, dotted display preferred, in first-mention order.
func (s *lawReferenceScanner) Scan(text string) []string {
	var out []string
	seen := make(map[string]bool)

	for _, m := range lawRefPattern.FindAllStringSubmatch(text, -1) {
		display := canonicalNormType(normTypeToken(m[1])) + " " + formatLawNumber(m[2])
		key := strings.ToLower(strings.Map(func(r rune) rune {
			if r == '.' || r == ' ' {
				return -1
			}
			return r
		}, display))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, display)
	}
	return out
}

// appendUnique appends the value when the slice does not already hold it.
func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}
