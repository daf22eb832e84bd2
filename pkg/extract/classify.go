package extract

import (
	"strings"

	"github.com/laguileracl/leychile-epub/pkg/norma"
	"github.com/laguileracl/leychile-epub/pkg/pattern"
)

// LineClass tags what a physical line is, as decided by the classifier.
type LineClass string

const (
	LineBlank    LineClass = "blank"
	LineDivision LineClass = "division"
	LineArticle  LineClass = "articulo"
	LineMarker   LineClass = "marcador"
	LineContent  LineClass = "contenido"
)

// Line is one classified input line. Classification is total: every line gets
// a class, with LineContent as the fallback.
type Line struct {
	Number int
	Text   string
	Class  LineClass

	// Division fields.
	Kind           norma.Kind
	DivisionNumber string

	// Article fields. ArticleNumber is normalized ("3 BIS", "355 A",
	// "1 TRANSITORIO", "PRIMERO").
	ArticleNumber string
	Transitory    bool

	// Marker fields.
	ItemKind     norma.ItemKind
	MarkerNumber string

	// Rest is the text remaining on the line after a division, article or
	// marker head. For content lines it equals Text.
	Rest string
}

// Classifier assigns a class to each line using the ordered rule families of
// a rule set. Division rules run first, then article rules, then markers;
// within a family the first matching rule wins.
type Classifier struct {
	rules *pattern.RuleSet
}

// NewClassifier returns a classifier over the given rule set, which must be
// compiled. A nil rule set selects the built-in Chilean set.
func NewClassifier(rs *pattern.RuleSet) *Classifier {
	if rs == nil {
		rs = pattern.Default()
	}
	return &Classifier{rules: rs}
}

// Classify classifies a single preprocessed line.
func (c *Classifier) Classify(text string, number int) Line {
	line := Line{Number: number, Text: text}

	if text == "" {
		line.Class = LineBlank
		return line
	}

	if rule, groups, end := c.rules.MatchDivision(text); rule != nil {
		line.Class = LineDivision
		line.Kind = norma.Kind(rule.Kind)
		line.DivisionNumber = strings.ToUpper(groups[1])
		// An inline division title follows the header, set off by
		// punctuation: "Párrafo 1. Del inicio del procedimiento".
		line.Rest = strings.TrimSpace(strings.TrimLeft(text[end:], ".-–—:°º "))
		return line
	}

	if rule, groups, end := c.rules.MatchArticle(text); rule != nil {
		line.Class = LineArticle
		line.ArticleNumber, line.Transitory = normalizeArticleNumber(rule.Form, groups)
		line.Rest = strings.TrimSpace(text[end:])
		return line
	}

	if rule, groups := c.rules.MatchMarker(text); rule != nil {
		line.Class = LineMarker
		line.ItemKind = norma.ItemKind(rule.Kind)
		line.MarkerNumber = strings.ToLower(groups[1])
		line.Rest = strings.TrimSpace(groups[2])
		return line
	}

	line.Class = LineContent
	line.Rest = text
	return line
}

// ClassifyAll classifies every line, preserving order. Output length always
// equals input length.
func (c *Classifier) ClassifyAll(lines []string) []Line {
	out := make([]Line, len(lines))
	for i, text := range lines {
		out[i] = c.Classify(text, i+1)
	}
	return out
}

// normalizeArticleNumber builds the canonical article number from the capture
// groups of the matched rule form. Latin suffixes and ordinal words are
// uppercased; transitory articles carry a TRANSITORIO component or flag.
func normalizeArticleNumber(form pattern.ArticleForm, groups []string) (string, bool) {
	switch form {
	case pattern.FormTransitoryWord:
		// "Artículo PRIMERO TRANSITORIO.-": group 2 ordinal word, group 3
		// the optional explicit marker.
		number := strings.ToUpper(groups[2])
		transitory := strings.TrimSpace(groups[3]) != ""
		return number, transitory

	case pattern.FormTransitoryNumber:
		// "Artículo 1 TRANSITORIO.-", optional Latin suffix in group 3.
		number := groups[2]
		if s := groups[3]; s != "" {
			number += " " + normalizeSuffix(s)
		}
		return number + " TRANSITORIO", true

	case pattern.FormLetter:
		// "Artículo 355 A.-".
		return groups[2] + " " + strings.ToUpper(groups[3]), false

	default:
		// Standard: number plus optional Latin suffix, "Artículo 3º bis.-"
		// becomes "3 BIS".
		number := groups[2]
		if s := groups[3]; s != "" {
			number += " " + normalizeSuffix(s)
		}
		return number, false
	}
}

var suffixAccents = strings.NewReplacer("Á", "A", "É", "E", "Í", "I", "Ó", "O", "Ú", "U")

// normalizeSuffix canonicalizes a Latin ordinal suffix: uppercase with
// accents dropped, so "quáter" and "QUATER" both yield "QUATER".
func normalizeSuffix(s string) string {
	return suffixAccents.Replace(strings.ToUpper(strings.TrimSpace(s)))
}
