package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/laguileracl/leychile-epub/pkg/norma"
	"github.com/laguileracl/leychile-epub/pkg/pattern"
)

var (
	// transitorySectionPattern matches the heading that opens the transitory
	// part of a norm. "DISPOSICIONES TRANSITORIAS", "Artículos transitorios".
	transitorySectionPattern = regexp.MustCompile(`(?i)^(DISPOSICI[ÓO]N(ES)?|ART[ÍI]CULOS?)\s+TRANSITORI[AO]S?\s*\.?$`)

	// closingFormulaPattern matches the formulas that close an administrative
	// norm. "ANÓTESE, REGÍSTRESE Y PUBLÍQUESE."
	closingFormulaPattern = regexp.MustCompile(`(?i)^(AN[ÓO]TESE|REG[ÍI]STRESE|COMUN[ÍI]QUESE|PUBL[ÍI]QUESE|NOTIF[ÍI]QUESE|T[ÓO]MESE\s+RAZ[ÓO]N)`)

	// epigraphPattern splits a leading article epigraph from the body:
	// "Ámbito de aplicación. Esta ley establece ..." The epigraph is a short
	// capitalized phrase without inner periods.
	epigraphPattern = regexp.MustCompile(`^([A-ZÁÉÍÓÚÑ][^.]{1,100})\.\s+(.*)$`)
)

// Parser turns preprocessed norm text into a Document tree. It is a stack
// machine over classified lines: division headers push and pop the open
// division stack by precedence, article headers open a body buffer that the
// segmenter consumes on flush.
type Parser struct {
	classifier *Classifier
	segmenter  *Segmenter
	refs       *ReferenceExtractor
	meta       *MetadataExtractor
}

// Option configures a Parser.
type Option func(*Parser)

// WithRules selects the rule set used for line classification.
func WithRules(rs *pattern.RuleSet) Option {
	return func(p *Parser) { p.classifier = NewClassifier(rs) }
}

// WithSegmentPolicy selects how article bodies are segmented.
func WithSegmentPolicy(policy SegmentPolicy) Option {
	return func(p *Parser) { p.segmenter = NewSegmenter(policy) }
}

// NewParser returns a parser with the built-in Chilean rule set, structured
// segmentation, and reference extraction enabled.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		classifier: NewClassifier(nil),
		segmenter:  NewSegmenter(PolicyStructured),
		refs:       NewReferenceExtractor(),
		meta:       NewMetadataExtractor(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// parseState is the mutable state of one Parse run.
type parseState struct {
	doc   *norma.Document
	stack []*norma.Node

	// article is the open article; body buffers its classified lines until
	// the next header flushes it.
	article *norma.Node
	body    []Line

	// pendingDivision awaits its descriptive title from the following
	// content lines.
	pendingDivision *norma.Node

	transitory   bool
	closing      []string
	inClosing    bool
	counters     map[norma.Kind]int
	rootMaxLevel int
}

// Parse runs the full pipeline on raw text: preprocess, classify, build the
// tree, segment articles, extract references and metadata. It never fails on
// malformed structure; anomalies become diagnostics on the document.
func (p *Parser) Parse(text string) (*norma.Document, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty input")
	}

	lines := Preprocess(text)
	classified := p.classifier.ClassifyAll(lines)

	st := &parseState{
		doc:      &norma.Document{Vigency: norma.VigencyVigente},
		counters: make(map[norma.Kind]int),
	}

	// Everything before the first structural header is the preamble.
	bodyStart := len(classified)
	for i, line := range classified {
		if line.Class == LineDivision || line.Class == LineArticle {
			bodyStart = i
			break
		}
	}
	st.doc.Preamble = ParsePreamble(lines[:bodyStart])

	for _, line := range classified[bodyStart:] {
		p.step(st, line)
	}
	p.flushArticle(st)
	p.closeEmptyDivisions(st, 0)

	if st.inClosing && len(st.closing) > 0 {
		st.doc.Preamble.Closing = strings.Join(st.closing, "\n")
	}

	st.doc.Metadata = p.meta.Extract(lines)
	st.doc.ID = documentID(st.doc.Metadata)

	return st.doc, nil
}

// step consumes one classified line.
func (p *Parser) step(st *parseState, line Line) {
	switch line.Class {
	case LineDivision:
		p.flushArticle(st)
		st.inClosing = false
		p.pushDivision(st, line)

	case LineArticle:
		p.flushArticle(st)
		st.inClosing = false
		st.pendingDivision = nil
		p.openArticle(st, line)

	case LineBlank:
		st.pendingDivision = nil
		if st.article != nil {
			st.body = append(st.body, line)
		}

	default:
		// Marker and content lines.
		if line.Class == LineContent {
			if transitorySectionPattern.MatchString(line.Text) {
				p.flushArticle(st)
				st.transitory = true
				st.pendingDivision = nil
				return
			}
			if closingFormulaPattern.MatchString(line.Text) {
				p.flushArticle(st)
				st.inClosing = true
			}
		}
		if st.inClosing {
			st.closing = append(st.closing, line.Text)
			return
		}
		if st.article != nil {
			st.body = append(st.body, line)
			return
		}
		if st.pendingDivision != nil && line.Class == LineContent {
			// A division header with no inline title takes its description
			// from the following line(s).
			if st.pendingDivision.Title == "" {
				st.pendingDivision.Title = line.Text
			} else {
				st.pendingDivision.Title += " " + line.Text
			}
			return
		}
		// Stray content outside any article is recorded, not dropped.
		st.doc.Diagnostics = append(st.doc.Diagnostics, norma.Diagnostic{
			Rule:     "contenido-suelto",
			Reason:   fmt.Sprintf("línea %d fuera de todo artículo: %q", line.Number, truncate(line.Text, 60)),
			Severity: norma.SeverityInfo,
		})
	}
}

// pushDivision closes open divisions of equal or lower level and attaches the
// new one at the right depth.
func (p *Parser) pushDivision(st *parseState, line Line) {
	prec := line.Kind.Precedence()
	for len(st.stack) > 0 && st.stack[len(st.stack)-1].Kind.Precedence() <= prec {
		p.closeDivision(st)
	}

	node := &norma.Node{
		ID:            p.nextID(st, line.Kind),
		Kind:          line.Kind,
		Label:         divisionLabel(line.Kind, line.DivisionNumber),
		OriginalLabel: line.Text,
		Number:        line.DivisionNumber,
		Title:         line.Rest,
		ContextPath:   st.contextPath(),
	}

	if len(st.stack) == 0 {
		// A higher-level division arriving after lower-level siblings at the
		// root means the source inverts the canonical order. Keep it as a
		// root sibling and flag it.
		if st.rootMaxLevel > 0 && prec > st.rootMaxLevel {
			st.doc.Diagnostics = append(st.doc.Diagnostics, norma.Diagnostic{
				NodeID:   node.ID,
				Rule:     "jerarquia-invertida",
				Reason:   fmt.Sprintf("%s aparece después de divisiones de nivel inferior", node.Label),
				Severity: norma.SeverityWarning,
			})
		}
		if prec > st.rootMaxLevel {
			st.rootMaxLevel = prec
		}
		st.doc.Nodes = append(st.doc.Nodes, node)
	} else {
		parent := st.stack[len(st.stack)-1]
		parent.Children = append(parent.Children, node)
	}

	st.stack = append(st.stack, node)
	if node.Title == "" {
		st.pendingDivision = node
	} else {
		st.pendingDivision = nil
	}
}

// closeDivision pops the top of the stack, flagging divisions that closed
// without any content.
func (p *Parser) closeDivision(st *parseState) {
	top := st.stack[len(st.stack)-1]
	st.stack = st.stack[:len(st.stack)-1]
	if len(top.Children) == 0 {
		top.Diagnostics = append(top.Diagnostics, norma.Diagnostic{
			NodeID:   top.ID,
			Rule:     "division-vacia",
			Reason:   fmt.Sprintf("%s no contiene artículos ni subdivisiones", top.Label),
			Severity: norma.SeverityInfo,
		})
	}
}

// closeEmptyDivisions drains the stack down to the given depth at end of
// input so empty trailing divisions get flagged too.
func (p *Parser) closeEmptyDivisions(st *parseState, depth int) {
	for len(st.stack) > depth {
		p.closeDivision(st)
	}
}

// openArticle starts a new article under the current division (or at the
// root when no division is open).
func (p *Parser) openArticle(st *parseState, line Line) {
	node := &norma.Node{
		ID:            p.nextID(st, norma.KindArticle),
		Kind:          norma.KindArticle,
		Label:         articleLabel(line.ArticleNumber, line.Transitory || st.transitory),
		OriginalLabel: articleHeading(line),
		Number:        line.ArticleNumber,
		Transitory:    line.Transitory || st.transitory,
		ContextPath:   st.contextPath(),
	}
	if len(st.stack) == 0 {
		st.doc.Nodes = append(st.doc.Nodes, node)
	} else {
		parent := st.stack[len(st.stack)-1]
		parent.Children = append(parent.Children, node)
	}

	st.article = node
	st.body = st.body[:0]
	if line.Rest != "" {
		st.body = append(st.body, Line{
			Number: line.Number,
			Text:   line.Rest,
			Class:  LineContent,
			Rest:   line.Rest,
		})
	}
}

// flushArticle finalizes the open article: epigraph split, segmentation,
// reference extraction.
func (p *Parser) flushArticle(st *parseState) {
	if st.article == nil {
		return
	}
	article := st.article
	body := st.body
	st.article = nil
	st.body = nil

	// A short capitalized first phrase ending in a period is the epigraph,
	// not body text. Full sentences stay in the body; real epigraphs are
	// noun phrases of a few words.
	if len(body) > 0 && body[0].Class == LineContent {
		if m := epigraphPattern.FindStringSubmatch(body[0].Text); m != nil && len(strings.Fields(m[1])) <= 8 {
			article.Title = strings.TrimSpace(m[1])
			body[0].Text = m[2]
			body[0].Rest = m[2]
		}
	}

	article.Content = p.segmenter.Segment(body)
	article.Text = flatten(body)
	if article.Text == "" {
		article.Diagnostics = append(article.Diagnostics, norma.Diagnostic{
			NodeID:   article.ID,
			Rule:     "articulo-vacio",
			Reason:   fmt.Sprintf("%s no tiene texto", article.Label),
			Severity: norma.SeverityWarning,
		})
	}
	article.References = p.refs.Extract(article.FlatText())
}

// contextPath snapshots the original labels of the open divisions, outermost
// first.
func (st *parseState) contextPath() []string {
	if len(st.stack) == 0 {
		return nil
	}
	path := make([]string, len(st.stack))
	for i, n := range st.stack {
		path[i] = n.OriginalLabel
	}
	return path
}

// articleHeading recovers the verbatim article header from the classified
// line: the line text minus the inline body that follows it.
func articleHeading(line Line) string {
	if line.Rest == "" {
		return line.Text
	}
	return strings.TrimSpace(strings.TrimSuffix(line.Text, line.Rest))
}

// nextID issues sequential per-kind node IDs: "titulo-1", "articulo-12".
func (p *Parser) nextID(st *parseState, kind norma.Kind) string {
	st.counters[kind]++
	return fmt.Sprintf("%s-%d", kind, st.counters[kind])
}

// divisionLabel renders the display label of a division header.
func divisionLabel(kind norma.Kind, number string) string {
	names := map[norma.Kind]string{
		norma.KindBook:      "Libro",
		norma.KindTitle:     "Título",
		norma.KindChapter:   "Capítulo",
		norma.KindParagraph: "Párrafo",
		norma.KindSection:   "Sección",
	}
	name, ok := names[kind]
	if !ok {
		name = string(kind)
	}
	if number == "" {
		return name
	}
	return name + " " + number
}

// articleLabel renders the display label of an article.
func articleLabel(number string, transitory bool) string {
	label := "Artículo " + number
	if transitory && !strings.Contains(number, "TRANSITORIO") {
		label += " transitorio"
	}
	return label
}

// flatten joins the text of buffered body lines with newlines, skipping
// blanks.
func flatten(body []Line) string {
	var parts []string
	for _, line := range body {
		if line.Class == LineBlank {
			continue
		}
		parts = append(parts, line.Text)
	}
	return strings.Join(parts, "\n")
}

// documentID derives a stable document identifier from metadata, falling
// back to "documento" when nothing identifies the norm.
func documentID(meta norma.Metadata) string {
	if meta.Type != "" && meta.Number != "" {
		return foldAccents(strings.ToLower(strings.ReplaceAll(meta.Type, " ", "-"))) + "-" +
			strings.ReplaceAll(meta.Number, ".", "")
	}
	if meta.Number != "" {
		return "norma-" + strings.ReplaceAll(meta.Number, ".", "")
	}
	return "documento"
}

// truncate shortens a string for diagnostics.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
