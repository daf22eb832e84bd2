package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/laguileracl/leychile-epub/pkg/norma"
)

// spanishMonths maps lowercase Spanish month names to their number.
var spanishMonths = map[string]int{
	"enero": 1, "febrero": 2, "marzo": 3, "abril": 4,
	"mayo": 5, "junio": 6, "julio": 7, "agosto": 8,
	"septiembre": 9, "setiembre": 9, "octubre": 10,
	"noviembre": 11, "diciembre": 12,
}

var (
	// normHeaderPattern matches the identifying header of a norm.
	// "LEY NÚM. 20.720", "DECRETO SUPREMO N° 1.377", "NCG N° 452".
	normHeaderPattern = regexp.MustCompile(`(?i)^(LEY|DECRETO\s+CON\s+FUERZA\s+DE\s+LEY|D\.?\s*F\.?\s*L\.?|DECRETO\s+SUPREMO|D\.?\s*S\.?|DECRETO\s+LEY|DECRETO|NORMA\s+DE\s+CAR[ÁA]CTER\s+GENERAL|NCG|INSTRUCTIVO|CIRCULAR|RESOLUCI[ÓO]N\s+EXENTA|RESOLUCI[ÓO]N)\s*(?:N[ÚU]M\.?|N[°º.]?)?\s*([\d][\d.]*)`)

	// placeDatePattern matches the dateline of Chilean official acts.
	// "Santiago, 30 de diciembre de 2013.-"
	placeDatePattern = regexp.MustCompile(`(?i)Santiago,?\s+(\d{1,2})\s+de\s+(\w+)\s+de\s+(\d{4})`)

	// publicationPattern matches Diario Oficial publication mentions.
	// "publicada en el Diario Oficial el 9 de enero de 2014"
	publicationPattern = regexp.MustCompile(`(?i)publicad[ao].{0,40}?(\d{1,2})\s+de\s+(\w+)\s+de\s+(\d{4})`)

	// fieldPattern matches labelled header fields that may continue on the
	// following lines. "MAT.: Imparte instrucciones sobre…"
	fieldPattern = regexp.MustCompile(`(?i)^(MAT|REF|ANT)\s*\.?\s*:\s*(.*)$`)

	// organismPattern matches the issuing-organism lines of the header.
	organismPattern = regexp.MustCompile(`(?i)^(MINISTERIO\s+DE[L]?\s+.+|SUPERINTENDENCIA\s+DE\s+.+|SUBSECRETAR[ÍI]A\s+DE\s+.+|COMISI[ÓO]N\s+PARA\s+EL\s+MERCADO\s+FINANCIERO)$`)

	// sourcePattern matches the act that carries the norm.
	sourcePattern = regexp.MustCompile(`(?i)RESOLUCI[ÓO]N\s+EXENTA\s+N[°º]?\s*([\d.]+)`)
)

// subjectVocabulary is the controlled vocabulary for materia tagging: a
// keyword found anywhere in the header region adds the canonical subject.
var subjectVocabulary = []struct {
	keyword string
	subject string
}{
	{"insolvencia", "Insolvencia y Reemprendimiento"},
	{"reemprendimiento", "Insolvencia y Reemprendimiento"},
	{"quiebra", "Quiebras"},
	{"liquidación", "Procedimiento Concursal de Liquidación"},
	{"reorganización", "Procedimiento Concursal de Reorganización"},
	{"mercado de valores", "Mercado de Valores"},
	{"seguros", "Seguros"},
	{"bancos", "Bancos e Instituciones Financieras"},
	{"veedor", "Veedores y Liquidadores"},
	{"liquidador", "Veedores y Liquidadores"},
	{"boletín concursal", "Boletín Concursal"},
}

// headerWindow bounds how many leading lines the extractor inspects for
// identity fields; datelines and law references are scanned document-wide.
const headerWindow = 40

// MetadataExtractor pulls header-level metadata out of preprocessed lines.
// Extraction is best-effort: a field the text does not state stays empty.
type MetadataExtractor struct {
	lawRefs *lawReferenceScanner
}

// NewMetadataExtractor returns a metadata extractor with the built-in
// vocabulary and law-reference scanner.
func NewMetadataExtractor() *MetadataExtractor {
	return &MetadataExtractor{lawRefs: newLawReferenceScanner()}
}

// Extract scans the document lines and returns whatever metadata the header
// states. It never fabricates a value.
func (e *MetadataExtractor) Extract(lines []string) norma.Metadata {
	var meta norma.Metadata

	window := lines
	if len(window) > headerWindow {
		window = window[:headerWindow]
	}

	var fieldBuf *string
	for _, line := range window {
		if line == "" {
			fieldBuf = nil
			continue
		}

		if m := fieldPattern.FindStringSubmatch(line); m != nil {
			label := strings.ToUpper(m[1])
			switch label {
			case "MAT":
				meta.Title = m[2]
				fieldBuf = &meta.Title
			case "REF", "ANT":
				// Reference fields cite prior acts; they feed LawRefs below
				// through the document-wide scan.
				fieldBuf = nil
			}
			continue
		}
		if fieldBuf != nil && !organismPattern.MatchString(line) &&
			!normHeaderPattern.MatchString(line) {
			// Labelled fields wrap onto following lines until a blank.
			*fieldBuf += " " + line
			continue
		}
		fieldBuf = nil

		if m := organismPattern.FindStringSubmatch(line); m != nil {
			meta.Organisms = appendUnique(meta.Organisms, titleCaseUpper(m[1]))
			continue
		}

		if meta.Type == "" {
			if m := normHeaderPattern.FindStringSubmatch(line); m != nil {
				meta.Type = canonicalNormType(m[1])
				meta.Number = formatLawNumber(m[2])
				continue
			}
		}

		// The first substantial non-identity header line is the title for
		// laws, which carry it right under "LEY NÚM. …".
		if meta.Title == "" && meta.Type != "" && len(line) > 20 &&
			!placeDatePattern.MatchString(line) {
			meta.Title = line
		}
	}

	full := strings.Join(lines, "\n")
	if m := placeDatePattern.FindStringSubmatch(full); m != nil {
		if iso, ok := isoDate(m[1], m[2], m[3]); ok {
			meta.Dates.Promulgation = iso
		}
	}
	if m := publicationPattern.FindStringSubmatch(full); m != nil {
		if iso, ok := isoDate(m[1], m[2], m[3]); ok {
			meta.Dates.Publication = iso
		}
	}
	if m := sourcePattern.FindStringSubmatch(full); m != nil {
		meta.Source = "Resolución Exenta"
		meta.SourceNumber = formatLawNumber(m[1])
	}

	header := strings.ToLower(strings.Join(window, "\n"))
	for _, entry := range subjectVocabulary {
		if strings.Contains(header, entry.keyword) {
			meta.Subjects = appendUnique(meta.Subjects, entry.subject)
		}
	}

	meta.LawRefs = e.lawRefs.Scan(full)
	return meta
}

// isoDate converts a Spanish textual date to ISO form.
func isoDate(day, month, year string) (string, bool) {
	m, ok := spanishMonths[strings.ToLower(month)]
	if !ok {
		return "", false
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return "", false
	}
	return fmt.Sprintf("%s-%02d-%02d", year, m, d), true
}

// canonicalNormType normalizes the matched norm-type token.
func canonicalNormType(raw string) string {
	t := strings.ToUpper(strings.Join(strings.Fields(raw), " "))
	t = strings.ReplaceAll(t, ".", "")
	t = strings.ReplaceAll(t, " ", "")
	switch t {
	case "LEY":
		return "Ley"
	case "DFL", "DECRETOCONFUERZADELEY":
		return "DFL"
	case "DS", "DECRETOSUPREMO":
		return "Decreto Supremo"
	case "DECRETOLEY":
		return "Decreto Ley"
	case "DECRETO":
		return "Decreto"
	case "NCG", "NORMADECARÁCTERGENERAL", "NORMADECARACTERGENERAL":
		return "NCG"
	case "INSTRUCTIVO":
		return "Instructivo"
	case "CIRCULAR":
		return "Circular"
	case "RESOLUCIÓNEXENTA", "RESOLUCIONEXENTA":
		return "Resolución Exenta"
	case "RESOLUCIÓN", "RESOLUCION":
		return "Resolución"
	default:
		return raw
	}
}

// formatLawNumber renders a norm number with thousands dots: "20720" and
// "20.720" both display as "20.720". Short numbers stay plain.
func formatLawNumber(raw string) string {
	digits := strings.ReplaceAll(raw, ".", "")
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// titleCaseUpper converts an all-caps organism line to title case, keeping
// short connective words lowercase.
func titleCaseUpper(s string) string {
	words := strings.Fields(strings.ToLower(s))
	small := map[string]bool{"de": true, "del": true, "la": true, "las": true,
		"el": true, "los": true, "y": true, "para": true}
	for i, w := range words {
		if i > 0 && small[w] {
			continue
		}
		words[i] = upperFirst(w)
	}
	return strings.Join(words, " ")
}

// upperFirst uppercases the first rune of a word, accent-aware.
func upperFirst(w string) string {
	runes := []rune(w)
	if len(runes) == 0 {
		return w
	}
	switch runes[0] {
	case 'á':
		runes[0] = 'Á'
	case 'é':
		runes[0] = 'É'
	case 'í':
		runes[0] = 'Í'
	case 'ó':
		runes[0] = 'Ó'
	case 'ú':
		runes[0] = 'Ú'
	case 'ñ':
		runes[0] = 'Ñ'
	default:
		if runes[0] >= 'a' && runes[0] <= 'z' {
			runes[0] = runes[0] - 'a' + 'A'
		}
	}
	return string(runes)
}
