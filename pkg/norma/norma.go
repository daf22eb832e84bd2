// Package norma defines the document model produced by the structure
// extraction engine for Chilean legal norms (laws, decrees, codes, NCGs,
// instructivos).
package norma

// Kind identifies a structural level in the articulated body of a norm.
type Kind string

const (
	KindBook      Kind = "libro"
	KindTitle     Kind = "titulo"
	KindChapter   Kind = "capitulo"
	KindParagraph Kind = "parrafo"
	KindSection   Kind = "seccion"
	KindArticle   Kind = "articulo"
)

// divisionPrecedence orders structural levels from highest (Libro) to lowest
// (Artículo). A division may only nest divisions of strictly lower precedence.
var divisionPrecedence = map[Kind]int{
	KindBook:      6,
	KindTitle:     5,
	KindChapter:   4,
	KindParagraph: 3,
	KindSection:   2,
	KindArticle:   1,
}

// Precedence returns the nesting precedence of the kind (higher is closer to
// the document root). Unknown kinds return 0.
func (k Kind) Precedence() int {
	return divisionPrecedence[k]
}

// IsDivision reports whether the kind is a grouping level above Artículo.
func (k Kind) IsDivision() bool {
	return k != KindArticle && divisionPrecedence[k] > 0
}

// ItemKind tags a content element inside an article.
type ItemKind string

const (
	ItemParagraph ItemKind = "parrafo"
	ItemInciso    ItemKind = "inciso"
	ItemLetter    ItemKind = "letra"
)

// ContentItem is one ordered content element of an article: a free paragraph,
// a numbered inciso ("1)") or a lettered item ("a)"). Text is verbatim.
type ContentItem struct {
	Kind   ItemKind `json:"tipo"`
	Number string   `json:"numero,omitempty"`
	Text   string   `json:"texto"`
}

// Reference is an explicit mention of another article, in this norm or in an
// external one. Norm is empty for self-references.
type Reference struct {
	Article string `json:"articulo"`
	Norm    string `json:"norma,omitempty"`
}

// Severity classifies a diagnostic.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Diagnostic is a structured, non-fatal finding attached to a node or to the
// document. The engine never aborts a document; it reports through these.
type Diagnostic struct {
	NodeID   string   `json:"node_id,omitempty"`
	Rule     string   `json:"rule"`
	Reason   string   `json:"reason"`
	Severity Severity `json:"severity"`
}

// Node is one element of the structural tree: a division (Libro, Título,
// Capítulo, Párrafo, Sección) or an Artículo. Articles are structural leaves
// that own their content items and references. Children hold no back-pointer;
// ancestry is the ContextPath snapshot of the ancestors' original labels,
// taken when the node was attached.
type Node struct {
	ID     string `json:"id"`
	Kind   Kind   `json:"kind"`
	Label  string `json:"label"`
	Number string `json:"numero,omitempty"`

	// OriginalLabel is the heading text verbatim as found in the source
	// ("TÍTULO I NORMAS GENERALES", "Artículo 1°.-"). Label is the
	// normalized rendering.
	OriginalLabel string `json:"original_label,omitempty"`

	// Title is the article epigraph ("Ámbito de aplicación") when the source
	// carries one; empty otherwise.
	Title string `json:"titulo,omitempty"`

	ContextPath []string `json:"contexto,omitempty"`
	Children    []*Node  `json:"children,omitempty"`

	// Article-only fields.
	Text       string        `json:"texto,omitempty"`
	Content    []ContentItem `json:"contenido,omitempty"`
	References []Reference   `json:"referencias,omitempty"`
	Transitory bool          `json:"transitorio,omitempty"`

	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// Dates groups the date metadata of a norm, each in ISO form when known.
type Dates struct {
	Promulgation string `json:"promulgacion,omitempty"`
	Publication  string `json:"publicacion,omitempty"`
	Version      string `json:"version,omitempty"`
}

// Metadata is the header-level metadata of a norm. Extraction is best-effort:
// a field the preamble does not state is left empty, never invented.
type Metadata struct {
	Title        string   `json:"titulo,omitempty"`
	Type         string   `json:"tipo,omitempty"`
	Number       string   `json:"numero,omitempty"`
	Organisms    []string `json:"organismos,omitempty"`
	Subjects     []string `json:"materias,omitempty"`
	CommonNames  []string `json:"nombres_comunes,omitempty"`
	Dates        Dates    `json:"fechas"`
	Source       string   `json:"fuente,omitempty"`
	SourceNumber string   `json:"numero_fuente,omitempty"`

	// LawRefs are external norms cited in the preamble ("Ley 20.720",
	// "DFL 1", "NCG 14"), deduplicated, in first-mention order.
	LawRefs []string `json:"leyes_referenciadas,omitempty"`
}

// ConsiderandoItem is a numbered recital of the CONSIDERANDO section.
type ConsiderandoItem struct {
	Number int    `json:"numero"`
	Text   string `json:"texto"`
}

// Preamble is everything before the first division or article header, split
// into the canonical sections of a Chilean administrative norm. Absent
// sections are empty strings.
type Preamble struct {
	Text              string             `json:"texto,omitempty"`
	Vistos            string             `json:"vistos,omitempty"`
	Considerando      string             `json:"considerando,omitempty"`
	ConsiderandoItems []ConsiderandoItem `json:"considerandos,omitempty"`
	Resuelvo          string             `json:"resuelvo,omitempty"`
	Closing           string             `json:"cierre,omitempty"`
}

// VigencyState is the legal-force status of a norm.
type VigencyState string

const (
	VigencyVigente  VigencyState = "vigente"
	VigencyDerogado VigencyState = "derogado"
	VigencyParcial  VigencyState = "parcial"
)

// Document is the root of a parsed norm: metadata, preamble, and the ordered
// structural tree.
type Document struct {
	ID          string       `json:"id"`
	Metadata    Metadata     `json:"metadatos"`
	Preamble    Preamble     `json:"encabezado"`
	Nodes       []*Node      `json:"contenido,omitempty"`
	Vigency     VigencyState `json:"estado"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// Statistics are structural counts used by the external serializer for the
// total_articulos/total_titulos attributes and by conformance auditing.
type Statistics struct {
	Articles   int `json:"articulos"`
	Books      int `json:"libros"`
	Titles     int `json:"titulos"`
	Chapters   int `json:"capitulos"`
	Paragraphs int `json:"parrafos"`
	Sections   int `json:"secciones"`
	Transitory int `json:"transitorios"`
}

// Statistics counts nodes of each kind across the whole tree.
func (d *Document) Statistics() Statistics {
	var stats Statistics
	d.Walk(func(n *Node) {
		switch n.Kind {
		case KindArticle:
			stats.Articles++
			if n.Transitory {
				stats.Transitory++
			}
		case KindBook:
			stats.Books++
		case KindTitle:
			stats.Titles++
		case KindChapter:
			stats.Chapters++
		case KindParagraph:
			stats.Paragraphs++
		case KindSection:
			stats.Sections++
		}
	})
	return stats
}

// Walk visits every node of the tree in document order.
func (d *Document) Walk(visit func(*Node)) {
	var rec func(nodes []*Node)
	rec = func(nodes []*Node) {
		for _, n := range nodes {
			visit(n)
			rec(n.Children)
		}
	}
	rec(d.Nodes)
}

// AllArticles returns every article node in document order.
func (d *Document) AllArticles() []*Node {
	var articles []*Node
	d.Walk(func(n *Node) {
		if n.Kind == KindArticle {
			articles = append(articles, n)
		}
	})
	return articles
}

// FindArticle returns the first article with the given normalized number
// ("3 BIS", "1 TRANSITORIO"), or nil.
func (d *Document) FindArticle(number string) *Node {
	for _, a := range d.AllArticles() {
		if a.Number == number {
			return a
		}
	}
	return nil
}

// FlatText concatenates an article's content items (or raw text when no
// segmentation ran) into one string for reference scanning.
func (n *Node) FlatText() string {
	if len(n.Content) == 0 {
		return n.Text
	}
	var out string
	for i, item := range n.Content {
		if i > 0 {
			out += "\n"
		}
		out += item.Text
	}
	return out
}
