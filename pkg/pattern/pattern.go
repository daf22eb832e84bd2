// Package pattern provides ordered, declarative rule tables for classifying
// lines of Chilean legal text. Rule sets can be loaded from YAML files through
// the Registry or taken from the built-in default set; priority is the order
// rules appear in, first match wins.
package pattern

import (
	"fmt"
	"regexp"
)

// ArticleForm names the capture semantics of an article-header rule.
type ArticleForm string

const (
	// FormTransitoryWord matches textual transitory articles:
	// "Artículo PRIMERO.-", "Artículo SEGUNDO TRANSITORIO.-".
	// Group 2 is the ordinal word, group 3 the optional TRANSITORIO marker.
	FormTransitoryWord ArticleForm = "transitorio-textual"

	// FormTransitoryNumber matches numbered transitory articles:
	// "Artículo 1 TRANSITORIO.-", "Artículo 2 bis transitorio.-".
	// Group 2 is the number, group 3 the optional Latin suffix.
	FormTransitoryNumber ArticleForm = "transitorio-numerado"

	// FormLetter matches articles with a trailing letter: "Artículo 355 A.-",
	// "Artículo 39-C.-". Group 2 is the number, group 3 the letter.
	FormLetter ArticleForm = "letra"

	// FormStandard matches plain numbered articles with an optional Latin
	// ordinal suffix: "Artículo 3º bis.-". Group 2 is the number, group 3 the
	// optional suffix.
	FormStandard ArticleForm = "estandar"
)

// DivisionRule matches a division header (Libro, Título, Capítulo, Párrafo,
// Sección) against the start of a line, case-insensitively. Kind holds the
// norma.Kind string value.
type DivisionRule struct {
	Kind    string `yaml:"kind" json:"kind"`
	Pattern string `yaml:"pattern" json:"pattern"`

	compiled *regexp.Regexp
}

// ArticleRule matches an article header. Patterns are case-sensitive on the
// leading "Artículo"/"Art." token: a lowercase "artículo 5" inside prose is a
// reference, never a header.
type ArticleRule struct {
	Form    ArticleForm `yaml:"form" json:"form"`
	Pattern string      `yaml:"pattern" json:"pattern"`

	compiled *regexp.Regexp
}

// MarkerRule matches a line-initial content marker inside an article body:
// a numbered inciso ("1)", "2°)", "3. ") or a lettered item ("a)", "ñ)",
// accented letters included).
// Kind holds the norma.ItemKind string value.
type MarkerRule struct {
	Kind    string `yaml:"kind" json:"kind"`
	Pattern string `yaml:"pattern" json:"pattern"`

	compiled *regexp.Regexp
}

// RuleSet is one ordered set of classification rules for a document corpus.
type RuleSet struct {
	Name    string `yaml:"name" json:"name"`
	ID      string `yaml:"id" json:"id"`
	Version string `yaml:"version" json:"version"`

	Divisions []DivisionRule `yaml:"divisions" json:"divisions"`
	Articles  []ArticleRule  `yaml:"articles" json:"articles"`
	Markers   []MarkerRule   `yaml:"markers" json:"markers"`

	compiled bool
}

// Compile compiles every regular expression in the rule set. It fails on the
// first invalid pattern, identifying the rule by family and position.
func (rs *RuleSet) Compile() error {
	for i := range rs.Divisions {
		r := &rs.Divisions[i]
		compiled, err := regexp.Compile(r.Pattern)
		if err != nil {
			return fmt.Errorf("compiling division rule %d (%s): %w", i, r.Kind, err)
		}
		r.compiled = compiled
	}
	for i := range rs.Articles {
		r := &rs.Articles[i]
		compiled, err := regexp.Compile(r.Pattern)
		if err != nil {
			return fmt.Errorf("compiling article rule %d (%s): %w", i, r.Form, err)
		}
		r.compiled = compiled
	}
	for i := range rs.Markers {
		r := &rs.Markers[i]
		compiled, err := regexp.Compile(r.Pattern)
		if err != nil {
			return fmt.Errorf("compiling marker rule %d (%s): %w", i, r.Kind, err)
		}
		r.compiled = compiled
	}
	rs.compiled = true
	return nil
}

// IsCompiled reports whether Compile has run successfully.
func (rs *RuleSet) IsCompiled() bool {
	return rs.compiled
}

// Validate checks that the rule set carries the required identity fields and
// at least one rule per family needed for structural parsing.
func (rs *RuleSet) Validate() error {
	if rs.ID == "" {
		return fmt.Errorf("rule set id is required")
	}
	if rs.Name == "" {
		return fmt.Errorf("rule set name is required")
	}
	if len(rs.Divisions) == 0 {
		return fmt.Errorf("at least one division rule is required")
	}
	if len(rs.Articles) == 0 {
		return fmt.Errorf("at least one article rule is required")
	}
	return nil
}

// MatchDivision tests the line against the division rules in priority order
// and returns the matched rule, its submatches, and the end offset of the
// match (an inline division title starts there), or nil.
func (rs *RuleSet) MatchDivision(line string) (*DivisionRule, []string, int) {
	for i := range rs.Divisions {
		r := &rs.Divisions[i]
		loc := r.compiled.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}
		groups := make([]string, 0, r.compiled.NumSubexp()+1)
		for g := 0; g <= r.compiled.NumSubexp(); g++ {
			if loc[2*g] < 0 {
				groups = append(groups, "")
			} else {
				groups = append(groups, line[loc[2*g]:loc[2*g+1]])
			}
		}
		return r, groups, loc[1]
	}
	return nil, nil, 0
}

// MatchArticle tests the line against the article rules in priority order and
// returns the matched rule, its submatches, and the end offset of the match
// (the article's inline text starts there), or nil.
func (rs *RuleSet) MatchArticle(line string) (*ArticleRule, []string, int) {
	for i := range rs.Articles {
		r := &rs.Articles[i]
		loc := r.compiled.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}
		groups := make([]string, 0, r.compiled.NumSubexp()+1)
		for g := 0; g <= r.compiled.NumSubexp(); g++ {
			if loc[2*g] < 0 {
				groups = append(groups, "")
			} else {
				groups = append(groups, line[loc[2*g]:loc[2*g+1]])
			}
		}
		return r, groups, loc[1]
	}
	return nil, nil, 0
}

// MatchMarker tests the line against the marker rules in priority order and
// returns the matched rule and its submatches, or nil.
func (rs *RuleSet) MatchMarker(line string) (*MarkerRule, []string) {
	for i := range rs.Markers {
		r := &rs.Markers[i]
		if m := r.compiled.FindStringSubmatch(line); m != nil {
			return r, m
		}
	}
	return nil, nil
}

// Default returns the built-in rule set for Chilean norms, compiled. Division
// and marker patterns are case-insensitive; article patterns are deliberately
// case-sensitive on the leading token so in-text references ("según el
// artículo 5") never classify as headers.
func Default() *RuleSet {
	rs := &RuleSet{
		Name:    "Normas legales chilenas",
		ID:      "cl-default",
		Version: "1.0",
		Divisions: []DivisionRule{
			{Kind: "libro", Pattern: `(?i)^LIBRO\s+(PRIMERO|SEGUNDO|TERCERO|CUARTO|QUINTO|SEXTO|S[ÉE]PTIMO|OCTAVO|NOVENO|D[ÉE]CIMO|[IVXLCDM]+|[0-9]+)`},
			{Kind: "titulo", Pattern: `(?i)^T[ÍI]TULO\s+(PRELIMINAR|FINAL|PRIMERO|SEGUNDO|TERCERO|CUARTO|QUINTO|SEXTO|S[ÉE]PTIMO|OCTAVO|NOVENO|D[ÉE]CIMO|[IVXLCDM]+|[0-9]+)`},
			{Kind: "capitulo", Pattern: `(?i)^CAP[ÍI]TULO\s+([IVXLCDM]+|[0-9]+|PRIMERO|SEGUNDO|TERCERO|CUARTO|QUINTO|SEXTO|S[ÉE]PTIMO|OCTAVO|NOVENO|D[ÉE]CIMO|[ÚU]NICO)`},
			{Kind: "parrafo", Pattern: `(?i)^P[ÁA]RRAFO\s+([0-9]+[º°]?|[IVXLCDM]+|PRIMERO|SEGUNDO|TERCERO|[ÚU]NICO)`},
			{Kind: "seccion", Pattern: `(?i)^SECCI[ÓO]N\s+([0-9]+[ªa]?|[IVXLCDM]+|PRIMERA|SEGUNDA|TERCERA|[ÚU]NICA)`},
			// The § sign heads a Párrafo in Chilean codes.
			{Kind: "parrafo", Pattern: `^§\s*([0-9]+|[IVXLCDM]+)\.?`},
		},
		Articles: []ArticleRule{
			{Form: FormTransitoryWord, Pattern: `^(Art[íi]culo|ART[ÍI]CULO)\s+((?i:PRIMERO|SEGUNDO|TERCERO|CUARTO|QUINTO|SEXTO|S[ÉE]PTIMO|OCTAVO|NOVENO|D[ÉE]CIMO|UND[ÉE]CIMO|DUOD[ÉE]CIMO|[ÚU]NICO|FINAL))(\s+(?i:TRANSITORIO))?\s*\.?\s*[-–—.]?\s*`},
			{Form: FormTransitoryNumber, Pattern: `^(Art[íi]culo|ART[ÍI]CULO)\s+([0-9]+)[º°]?\s*((?i:bis|ter|quater|qu[áa]ter))?\s*(?i:TRANSITORIO)\s*\.?\s*[-–—.]?\s*`},
			{Form: FormLetter, Pattern: `^(Art[íi]culo|ART[ÍI]CULO|Art\.?)\s*([0-9]+)\s*[º°]?\s*[-–—]?\s*([A-ZÑ])\s*[º°]?\s*[.\-–—][-–—.]?\s*`},
			{Form: FormStandard, Pattern: `^(Art[íi]culo|ART[ÍI]CULO|Art\.?)\s*([0-9]+)\s*[º°]?\s*((?i:bis|ter|quater|qu[áa]ter|quinquies|sexies|septies|octies|novies|decies|und[ée]cies|duod[ée]cies|terd[ée]cies))?\s*[º°]?\s*\.?\s*[-–—.]?\s*`},
		},
		Markers: []MarkerRule{
			{Kind: "inciso", Pattern: `^([0-9]+)[°º]?\)\s*(.+)`},
			{Kind: "inciso", Pattern: `^([0-9]+)\.\s+(.+)`},
			{Kind: "letra", Pattern: `(?i)^([a-zñáéíóúü])\)\s*(.+)`},
		},
	}
	if err := rs.Compile(); err != nil {
		// The built-in patterns are covered by tests; failing to compile
		// them is a programming error.
		panic(err)
	}
	return rs
}
