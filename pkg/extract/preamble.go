package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/laguileracl/leychile-epub/pkg/norma"
)

var (
	// vistosPattern matches the VISTOS section header, with or without the
	// content starting on the same line. "VISTOS:", "VISTO: Lo dispuesto en…"
	vistosPattern = regexp.MustCompile(`(?i)^VISTOS?\s*:?\s*(.*)$`)

	// considerandoPattern matches the CONSIDERANDO section header.
	considerandoPattern = regexp.MustCompile(`(?i)^CONSIDERANDO\s*:?\s*(.*)$`)

	// resuelvoPattern matches the operative section header. "RESUELVO:",
	// "DECRETO:", "RESOLUCIÓN:".
	resuelvoPattern = regexp.MustCompile(`(?i)^(RESUELVO|DECRETO|RESOLUCI[ÓO]N|SE\s+RESUELVE)\s*:?\s*(.*)$`)

	// considerandoItemPattern matches one numbered recital. "1° Que, …",
	// "2. Que el artículo…"
	considerandoItemPattern = regexp.MustCompile(`^(\d+)\s*[°º.)]\s*(.+)$`)
)

// preambleSection is a parsing phase of ParsePreamble.
type preambleSection int

const (
	sectionHead preambleSection = iota
	sectionVistos
	sectionConsiderando
	sectionResuelvo
	sectionClosing
)

// ParsePreamble splits the lines before the first structural header into the
// canonical sections of a Chilean administrative norm: the untagged head,
// VISTOS, CONSIDERANDO (with numbered recitals), and the operative RESUELVO.
// Laws without those markers keep everything in Text.
func ParsePreamble(lines []string) norma.Preamble {
	var pre norma.Preamble
	section := sectionHead
	var head, vistos, considerando, resuelvo, closing []string

	for _, line := range lines {
		if line == "" {
			continue
		}

		if m := vistosPattern.FindStringSubmatch(line); m != nil && section == sectionHead {
			section = sectionVistos
			if m[1] != "" {
				vistos = append(vistos, m[1])
			}
			continue
		}
		if m := considerandoPattern.FindStringSubmatch(line); m != nil && section != sectionResuelvo {
			section = sectionConsiderando
			if m[1] != "" {
				considerando = append(considerando, m[1])
			}
			continue
		}
		if m := resuelvoPattern.FindStringSubmatch(line); m != nil && section != sectionHead {
			// "RESOLUCIÓN:" only opens the operative part after VISTOS or
			// CONSIDERANDO; in the head it is part of the norm's heading.
			section = sectionResuelvo
			if m[2] != "" {
				resuelvo = append(resuelvo, m[2])
			}
			continue
		}
		if closingFormulaPattern.MatchString(line) {
			section = sectionClosing
		}

		switch section {
		case sectionHead:
			head = append(head, line)
		case sectionVistos:
			vistos = append(vistos, line)
		case sectionConsiderando:
			considerando = append(considerando, line)
		case sectionResuelvo:
			resuelvo = append(resuelvo, line)
		case sectionClosing:
			closing = append(closing, line)
		}
	}

	pre.Text = strings.Join(head, "\n")
	pre.Vistos = strings.Join(vistos, "\n")
	pre.Considerando = strings.Join(considerando, "\n")
	pre.Resuelvo = strings.Join(resuelvo, "\n")
	pre.Closing = strings.Join(closing, "\n")
	pre.ConsiderandoItems = splitConsiderandos(considerando)
	return pre
}

// splitConsiderandos groups the CONSIDERANDO lines into numbered recitals.
// Lines before the first numbered item and unnumbered continuation lines
// attach to the current item.
func splitConsiderandos(lines []string) []norma.ConsiderandoItem {
	var items []norma.ConsiderandoItem
	for _, line := range lines {
		if m := considerandoItemPattern.FindStringSubmatch(line); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil {
				items = append(items, norma.ConsiderandoItem{Number: n, Text: m[2]})
				continue
			}
		}
		if len(items) > 0 {
			items[len(items)-1].Text += " " + line
		}
	}
	return items
}
