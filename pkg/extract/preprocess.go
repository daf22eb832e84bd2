// Package extract implements the structure extraction engine for Chilean
// legal norms: line classification, hierarchy building, article segmentation,
// metadata extraction, reference resolution, and relationship tracking.
package extract

import (
	"regexp"
	"strings"
)

var (
	// controlCharPattern matches control characters other than tab, which is
	// normalized to a space along with runs of ordinary whitespace.
	controlCharPattern = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)

	// innerSpacePattern matches runs of spaces and tabs inside a line.
	innerSpacePattern = regexp.MustCompile(`[ \t]+`)

	// pageNumberPattern matches lines containing only a page number, common
	// in PDF-extracted Diario Oficial text.
	pageNumberPattern = regexp.MustCompile(`^\d{1,4}\s*$`)

	// hyphenBreakPattern matches lines ending mid-word with a hyphen.
	hyphenBreakPattern = regexp.MustCompile(`[a-záéíóúñ]-$`)
)

// Preprocess normalizes raw norm text into clean lines for classification:
// line endings become LF, control characters are stripped, inner whitespace
// runs collapse to single spaces, lines are trimmed, runs of blank lines
// squeeze to one, and words hyphenated across line breaks are rejoined.
// Classification and parsing operate only on its output.
func Preprocess(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = controlCharPattern.ReplaceAllString(text, "")

	raw := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(raw))
	blank := false
	for _, line := range raw {
		line = strings.TrimSpace(innerSpacePattern.ReplaceAllString(line, " "))

		if pageNumberPattern.MatchString(line) {
			continue
		}

		if line == "" {
			// One blank line is structure (it separates incisos in some
			// corpora); runs of them are noise.
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		cleaned = append(cleaned, line)
	}

	// Drop leading and trailing blanks left by the squeeze.
	for len(cleaned) > 0 && cleaned[0] == "" {
		cleaned = cleaned[1:]
	}
	for len(cleaned) > 0 && cleaned[len(cleaned)-1] == "" {
		cleaned = cleaned[:len(cleaned)-1]
	}

	return rejoinHyphenated(cleaned)
}

// rejoinHyphenated merges lines where a word is split across a line break
// with a hyphen. For example:
//
//	"el procedimiento con-"
//	"cursal de liquidación"
//
// becomes:
//
//	"el procedimiento concursal de liquidación"
func rejoinHyphenated(lines []string) []string {
	if len(lines) == 0 {
		return lines
	}

	var result []string
	for i := 0; i < len(lines); i++ {
		current := lines[i]

		if i+1 < len(lines) && hyphenBreakPattern.MatchString(current) {
			next := lines[i+1]

			// Only rejoin when the next line continues in lowercase; an
			// uppercase start means a heading or new sentence, where the
			// hyphen is likely real.
			if startsLower(next) {
				result = append(result, current[:len(current)-1]+next)
				i++
				continue
			}
		}

		result = append(result, current)
	}

	return result
}

// startsLower reports whether the line begins with a lowercase letter,
// including the accented Spanish letters.
func startsLower(line string) bool {
	for _, ch := range line {
		return (ch >= 'a' && ch <= 'z') || ch == 'ñ' ||
			ch == 'á' || ch == 'é' || ch == 'í' || ch == 'ó' || ch == 'ú'
	}
	return false
}
