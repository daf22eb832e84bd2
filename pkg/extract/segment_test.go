package extract

import (
	"reflect"
	"testing"

	"github.com/laguileracl/leychile-epub/pkg/norma"
)

// classifyBody is a test helper that classifies raw lines the way the parser
// buffers an article body.
func classifyBody(t *testing.T, lines ...string) []Line {
	t.Helper()
	c := NewClassifier(nil)
	return c.ClassifyAll(lines)
}

func TestSegmentIncisos(t *testing.T) {
	// Line-initial numbered markers become incisos; no free paragraphs
	// remain when every line is marked.
	s := NewSegmenter(PolicyStructured)

	got := s.Segment(classifyBody(t, "1) Primero.", "2) Segundo."))
	want := []norma.ContentItem{
		{Kind: norma.ItemInciso, Number: "1", Text: "Primero."},
		{Kind: norma.ItemInciso, Number: "2", Text: "Segundo."},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Segment() = %+v, want %+v", got, want)
	}
}

func TestSegmentMixed(t *testing.T) {
	s := NewSegmenter(PolicyStructured)

	got := s.Segment(classifyBody(t,
		"Para efectos de esta ley, se entenderá por:",
		"a) Acreedor: titular de un crédito",
		"que consta en el boletín.",
		"b) Deudor: la empresa o persona.",
		"",
		"Las definiciones anteriores rigen para todo procedimiento.",
	))
	want := []norma.ContentItem{
		{Kind: norma.ItemParagraph, Text: "Para efectos de esta ley, se entenderá por:"},
		{Kind: norma.ItemLetter, Number: "a", Text: "Acreedor: titular de un crédito que consta en el boletín."},
		{Kind: norma.ItemLetter, Number: "b", Text: "Deudor: la empresa o persona."},
		{Kind: norma.ItemParagraph, Text: "Las definiciones anteriores rigen para todo procedimiento."},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Segment() = %+v, want %+v", got, want)
	}
}

func TestSegmentInlineNumberDoesNotSplit(t *testing.T) {
	// A "1)" inside running prose is not a marker.
	s := NewSegmenter(PolicyStructured)

	got := s.Segment(classifyBody(t,
		"El deudor indicado en el numeral 1) anterior deberá comparecer.",
	))
	if len(got) != 1 || got[0].Kind != norma.ItemParagraph {
		t.Fatalf("Segment() = %+v, want one paragraph", got)
	}
}

func TestSegmentSingleParagraphPolicy(t *testing.T) {
	s := NewSegmenter(PolicySingleParagraph)

	got := s.Segment(classifyBody(t, "1) Primero.", "2) Segundo."))
	want := []norma.ContentItem{
		{Kind: norma.ItemParagraph, Text: "1) Primero. 2) Segundo."},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Segment() = %+v, want %+v", got, want)
	}
}

func TestSegmentEmptyBody(t *testing.T) {
	for _, policy := range []SegmentPolicy{PolicyStructured, PolicySingleParagraph} {
		s := NewSegmenter(policy)
		if got := s.Segment(nil); got != nil {
			t.Errorf("Segment(nil) with policy %d = %+v, want nil", policy, got)
		}
	}
}

func TestSegmentEmptyMarker(t *testing.T) {
	// A marker line whose text continues below still opens an item.
	s := NewSegmenter(PolicyStructured)

	got := s.Segment(classifyBody(t, "1) Primer inciso", "continúa aquí."))
	want := []norma.ContentItem{
		{Kind: norma.ItemInciso, Number: "1", Text: "Primer inciso continúa aquí."},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Segment() = %+v, want %+v", got, want)
	}
}
