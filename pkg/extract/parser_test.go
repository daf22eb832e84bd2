package extract

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/laguileracl/leychile-epub/pkg/norma"
)

// loadTestdata is a test helper that reads a fixture document.
func loadTestdata(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("reading fixture %s: %v", name, err)
	}
	return string(data)
}

// parseFixture parses a fixture with the default pipeline.
func parseFixture(t *testing.T, name string) *norma.Document {
	t.Helper()
	doc, err := NewParser().Parse(loadTestdata(t, name))
	if err != nil {
		t.Fatalf("Parse(%s) error: %v", name, err)
	}
	return doc
}

func TestParseLeyStructure(t *testing.T) {
	doc := parseFixture(t, "ley-ejemplo.txt")

	stats := doc.Statistics()
	if stats.Articles != 6 {
		t.Errorf("articles = %d, want 6", stats.Articles)
	}
	if stats.Titles != 2 {
		t.Errorf("titles = %d, want 2", stats.Titles)
	}
	if stats.Paragraphs != 2 {
		t.Errorf("paragraphs = %d, want 2", stats.Paragraphs)
	}
	if stats.Transitory != 1 {
		t.Errorf("transitory articles = %d, want 1", stats.Transitory)
	}

	if len(doc.Nodes) != 2 {
		t.Fatalf("root nodes = %d, want 2 títulos", len(doc.Nodes))
	}
	t1 := doc.Nodes[0]
	if t1.Kind != norma.KindTitle || t1.Number != "I" {
		t.Errorf("first root = %s %s, want titulo I", t1.Kind, t1.Number)
	}
	if t1.OriginalLabel != "TÍTULO I" {
		t.Errorf("título I original label = %q, want %q", t1.OriginalLabel, "TÍTULO I")
	}
	if t1.Title != "DISPOSICIONES GENERALES" {
		t.Errorf("título I description = %q, want %q", t1.Title, "DISPOSICIONES GENERALES")
	}
	if len(t1.Children) != 3 {
		t.Errorf("título I children = %d, want 3 articles", len(t1.Children))
	}

	t2 := doc.Nodes[1]
	if len(t2.Children) != 2 {
		t.Fatalf("título II children = %d, want 2 párrafos", len(t2.Children))
	}
	p1 := t2.Children[0]
	if p1.Kind != norma.KindParagraph || p1.Title != "Del inicio del procedimiento" {
		t.Errorf("párrafo 1 = %s %q", p1.Kind, p1.Title)
	}
	if p1.OriginalLabel != "Párrafo 1. Del inicio del procedimiento" {
		t.Errorf("párrafo 1 original label = %q", p1.OriginalLabel)
	}
	p2 := t2.Children[1]
	if p2.Number != "2" || p2.Title != "De las audiencias" {
		t.Errorf("§ párrafo = number %q title %q", p2.Number, p2.Title)
	}
}

func TestParseLeyArticles(t *testing.T) {
	doc := parseFixture(t, "ley-ejemplo.txt")

	a1 := doc.FindArticle("1")
	if a1 == nil {
		t.Fatal("artículo 1 not found")
	}
	if a1.Title != "Ámbito de aplicación" {
		t.Errorf("artículo 1 epigraph = %q, want %q", a1.Title, "Ámbito de aplicación")
	}
	if a1.OriginalLabel != "Artículo 1°.-" {
		t.Errorf("artículo 1 original label = %q, want %q", a1.OriginalLabel, "Artículo 1°.-")
	}

	a2 := doc.FindArticle("2")
	if a2 == nil {
		t.Fatal("artículo 2 not found")
	}
	var incisos int
	for _, item := range a2.Content {
		if item.Kind == norma.ItemInciso {
			incisos++
		}
	}
	if incisos != 2 {
		t.Errorf("artículo 2 incisos = %d, want 2", incisos)
	}

	if doc.FindArticle("3 BIS") == nil {
		t.Error("artículo 3 BIS not found under its normalized number")
	}

	a4 := doc.FindArticle("4")
	if a4 == nil {
		t.Fatal("artículo 4 not found")
	}
	wantPath := []string{"TÍTULO II", "Párrafo 1. Del inicio del procedimiento"}
	if !reflect.DeepEqual(a4.ContextPath, wantPath) {
		t.Errorf("artículo 4 context = %v, want %v", a4.ContextPath, wantPath)
	}

	trans := doc.FindArticle("PRIMERO")
	if trans == nil {
		t.Fatal("artículo transitorio not found")
	}
	if !trans.Transitory {
		t.Error("artículo PRIMERO not flagged transitory")
	}
}

func TestParseLeyReferences(t *testing.T) {
	doc := parseFixture(t, "ley-ejemplo.txt")

	a3 := doc.FindArticle("3 BIS")
	if a3 == nil {
		t.Fatal("artículo 3 BIS not found")
	}
	want := []norma.Reference{
		{Article: "2"},
		{Article: "1.223", Norm: "Código de Comercio"},
	}
	if !reflect.DeepEqual(a3.References, want) {
		t.Errorf("artículo 3 BIS references = %+v, want %+v", a3.References, want)
	}

	// "artículos 5 y siguientes" records only the starting article.
	a4 := doc.FindArticle("4")
	if a4 == nil {
		t.Fatal("artículo 4 not found")
	}
	if len(a4.References) != 1 || a4.References[0].Article != "5" {
		t.Errorf("artículo 4 references = %+v, want only article 5", a4.References)
	}
}

func TestParseLeyMetadata(t *testing.T) {
	doc := parseFixture(t, "ley-ejemplo.txt")

	meta := doc.Metadata
	if meta.Type != "Ley" {
		t.Errorf("type = %q, want Ley", meta.Type)
	}
	if meta.Number != "20.720" {
		t.Errorf("number = %q, want 20.720", meta.Number)
	}
	if meta.Dates.Promulgation != "2013-12-30" {
		t.Errorf("promulgation = %q, want 2013-12-30", meta.Dates.Promulgation)
	}
	if doc.ID != "ley-20720" {
		t.Errorf("document ID = %q, want ley-20720", doc.ID)
	}

	found := false
	for _, ref := range meta.LawRefs {
		if ref == "Ley 19.880" {
			found = true
		}
	}
	if !found {
		t.Errorf("law refs = %v, want to include Ley 19.880", meta.LawRefs)
	}
}

func TestParseLeyClosing(t *testing.T) {
	doc := parseFixture(t, "ley-ejemplo.txt")
	if doc.Preamble.Closing != "Anótese, tómese razón y publíquese." {
		t.Errorf("closing = %q", doc.Preamble.Closing)
	}
}

func TestParseDeterministic(t *testing.T) {
	text := loadTestdata(t, "ley-ejemplo.txt")
	first, err := NewParser().Parse(text)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	second, err := NewParser().Parse(text)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("two parses of the same input differ")
	}
}

func TestParseInstructivoPreamble(t *testing.T) {
	doc := parseFixture(t, "instructivo-ejemplo.txt")

	if len(doc.Nodes) != 0 {
		t.Errorf("root nodes = %d, want 0 for a headerless instructivo", len(doc.Nodes))
	}
	if doc.Preamble.Vistos == "" {
		t.Error("vistos section empty")
	}
	if len(doc.Preamble.ConsiderandoItems) != 2 {
		t.Fatalf("considerando items = %d, want 2", len(doc.Preamble.ConsiderandoItems))
	}
	if doc.Preamble.ConsiderandoItems[1].Number != 2 {
		t.Errorf("second considerando number = %d, want 2", doc.Preamble.ConsiderandoItems[1].Number)
	}
	if doc.Preamble.Resuelvo == "" {
		t.Error("resuelvo section empty")
	}

	meta := doc.Metadata
	if meta.Type != "Resolución Exenta" {
		t.Errorf("type = %q, want Resolución Exenta", meta.Type)
	}
	if meta.SourceNumber != "4.515" {
		t.Errorf("source number = %q, want 4.515", meta.SourceNumber)
	}
	if meta.Title != "Aprueba Instructivo N° 2 sobre presentación de antecedentes." {
		t.Errorf("title = %q", meta.Title)
	}
	if meta.Dates.Promulgation != "2019-08-12" {
		t.Errorf("promulgation = %q, want 2019-08-12", meta.Dates.Promulgation)
	}
	wantOrg := []string{"Superintendencia de Insolvencia y Reemprendimiento"}
	if !reflect.DeepEqual(meta.Organisms, wantOrg) {
		t.Errorf("organisms = %v, want %v", meta.Organisms, wantOrg)
	}
}

func TestParseArticlesUnderRoot(t *testing.T) {
	doc, err := NewParser().Parse("Artículo 1°.- Primero.\n\nArtículo 2°.- Segundo.\n")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(doc.Nodes) != 2 {
		t.Fatalf("root nodes = %d, want 2 articles", len(doc.Nodes))
	}
	if doc.Nodes[0].Kind != norma.KindArticle || doc.Nodes[0].ContextPath != nil {
		t.Errorf("root article = %+v, want article with empty context", doc.Nodes[0])
	}
}

func TestParseInversionWarns(t *testing.T) {
	// A Título appearing after a root-level Capítulo inverts the canonical
	// order; the parser keeps both as siblings and warns.
	doc, err := NewParser().Parse(
		"CAPÍTULO I\nArtículo 1°.- X.\n\nTÍTULO I\nArtículo 2°.- Y.\n")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(doc.Nodes) != 2 {
		t.Fatalf("root nodes = %d, want 2", len(doc.Nodes))
	}

	found := false
	for _, d := range doc.Diagnostics {
		if d.Rule == "jerarquia-invertida" && d.Severity == norma.SeverityWarning {
			found = true
		}
	}
	if !found {
		t.Errorf("missing inversion warning, diagnostics = %+v", doc.Diagnostics)
	}
}

func TestParseEmptyDivisionKept(t *testing.T) {
	doc, err := NewParser().Parse("TÍTULO I\n\nTÍTULO II\nArtículo 1°.- X.\n")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(doc.Nodes) != 2 {
		t.Fatalf("root nodes = %d, want 2 (empty división kept)", len(doc.Nodes))
	}

	empty := doc.Nodes[0]
	found := false
	for _, d := range empty.Diagnostics {
		if d.Rule == "division-vacia" {
			found = true
		}
	}
	if !found {
		t.Errorf("empty división carries no diagnostic: %+v", empty.Diagnostics)
	}
}

func TestParseEmptyInput(t *testing.T) {
	if _, err := NewParser().Parse("   \n\n  "); err == nil {
		t.Error("Parse() accepted empty input")
	}
}

func TestParsePrecedenceHoldsUnderRandomHeaders(t *testing.T) {
	// Whatever order headers arrive in, the built tree must only nest
	// divisions of strictly lower precedence, articles at the bottom.
	rng := rand.New(rand.NewSource(20720))
	forms := []string{
		"LIBRO %d",
		"TÍTULO %d",
		"CAPÍTULO %d",
		"Párrafo %d",
		"Sección %d",
		"Artículo %d.- Texto del precepto.",
	}

	var b strings.Builder
	for i := 1; i <= 150; i++ {
		fmt.Fprintf(&b, forms[rng.Intn(len(forms))]+"\n\n", i)
	}

	doc, err := NewParser().Parse(b.String())
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	var check func(nodes []*norma.Node, parent *norma.Node)
	check = func(nodes []*norma.Node, parent *norma.Node) {
		for _, n := range nodes {
			if parent != nil && parent.Kind.Precedence() <= n.Kind.Precedence() {
				t.Errorf("%s nested under %s breaks precedence order",
					n.Label, parent.Label)
			}
			check(n.Children, n)
		}
	}
	check(doc.Nodes, nil)
}

func TestParseKeepsEveryArticleHeader(t *testing.T) {
	// One article node per line classified as an article header: the
	// builder never merges or drops articles.
	for _, name := range []string{"ley-ejemplo.txt", "instructivo-ejemplo.txt"} {
		t.Run(name, func(t *testing.T) {
			text := loadTestdata(t, name)

			headers := 0
			for _, line := range NewClassifier(nil).ClassifyAll(Preprocess(text)) {
				if line.Class == LineArticle {
					headers++
				}
			}

			doc, err := NewParser().Parse(text)
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			if got := len(doc.AllArticles()); got != headers {
				t.Errorf("article nodes = %d, header lines = %d", got, headers)
			}
		})
	}
}
