package extract

import (
	"testing"

	"github.com/laguileracl/leychile-epub/pkg/norma"
	"github.com/laguileracl/leychile-epub/pkg/store"
)

// trackFixture parses a fixture and runs the tracker against a fresh store.
func trackFixture(t *testing.T, name string) (*norma.Document, []store.Edge, []norma.Diagnostic, *store.MemStore) {
	t.Helper()
	doc := parseFixture(t, name)
	st := store.NewMemStore()
	edges, diags, err := NewRelationTracker(st).Track(doc)
	if err != nil {
		t.Fatalf("Track() error: %v", err)
	}
	return doc, edges, diags, st
}

func TestTrackDerogation(t *testing.T) {
	doc, edges, _, st := trackFixture(t, "instructivo-ejemplo.txt")

	if doc.ID != "resolucion-exenta-4515" {
		t.Errorf("document ID = %q, want resolucion-exenta-4515", doc.ID)
	}

	var derog *store.Edge
	for i := range edges {
		if edges[i].Kind == store.KindDerogates {
			derog = &edges[i]
		}
	}
	if derog == nil {
		t.Fatalf("no derogation edge, edges = %+v", edges)
	}
	if derog.Target != "instructivo-3-2018" {
		t.Errorf("derogation target = %q, want instructivo-3-2018", derog.Target)
	}

	rec, ok, err := st.Vigency("instructivo-3-2018")
	if err != nil {
		t.Fatalf("Vigency() error: %v", err)
	}
	if !ok {
		t.Fatal("no vigency record for the derogated norm")
	}
	if rec.State != norma.VigencyDerogado {
		t.Errorf("vigency = %q, want %q", rec.State, norma.VigencyDerogado)
	}
}

func TestTrackCitations(t *testing.T) {
	_, edges, _, _ := trackFixture(t, "instructivo-ejemplo.txt")

	found := false
	for _, e := range edges {
		if e.Kind == store.KindCites && e.Target == "ley-20720" {
			found = true
		}
	}
	if !found {
		t.Errorf("missing cites edge to ley-20720, edges = %+v", edges)
	}
}

func TestTrackIdempotent(t *testing.T) {
	doc := parseFixture(t, "instructivo-ejemplo.txt")
	st := store.NewMemStore()
	tracker := NewRelationTracker(st)

	if _, _, err := tracker.Track(doc); err != nil {
		t.Fatalf("first Track() error: %v", err)
	}
	first, _ := st.AllEdges()

	if _, _, err := tracker.Track(doc); err != nil {
		t.Fatalf("second Track() error: %v", err)
	}
	second, _ := st.AllEdges()

	if len(first) != len(second) {
		t.Errorf("edge count changed on re-run: %d then %d", len(first), len(second))
	}
}

// trackText runs the tracker over a minimal document with the given
// operative text.
func trackText(t *testing.T, resuelvo string) ([]store.Edge, []norma.Diagnostic, *store.MemStore) {
	t.Helper()
	doc := &norma.Document{
		ID:       "norma-prueba",
		Preamble: norma.Preamble{Resuelvo: resuelvo},
		Vigency:  norma.VigencyVigente,
	}
	st := store.NewMemStore()
	edges, diags, err := NewRelationTracker(st).Track(doc)
	if err != nil {
		t.Fatalf("Track() error: %v", err)
	}
	return edges, diags, st
}

func TestTrackModification(t *testing.T) {
	edges, _, st := trackText(t, "SUSTITÚYASE el numeral tercero del Instructivo N° 5, de 2019.")

	if len(edges) != 1 {
		t.Fatalf("edges = %+v, want one", edges)
	}
	if edges[0].Kind != store.KindModifies || edges[0].Target != "instructivo-5-2019" {
		t.Errorf("edge = %+v, want modifica instructivo-5-2019", edges[0])
	}

	// Modification does not touch vigency.
	if _, ok, _ := st.Vigency("instructivo-5-2019"); ok {
		t.Error("modification created a vigency record")
	}
}

func TestTrackExcludedTarget(t *testing.T) {
	edges, diags, _ := trackText(t, "DÉJASE SIN EFECTO el Oficio N° 12, de 2017.")

	if len(edges) != 0 {
		t.Errorf("edges = %+v, want none for an oficio target", edges)
	}
	found := false
	for _, d := range diags {
		if d.Rule == "objetivo-excluido" {
			found = true
		}
	}
	if !found {
		t.Errorf("missing exclusion finding, diags = %+v", diags)
	}
}

func TestTrackUnresolvedTarget(t *testing.T) {
	edges, diags, _ := trackText(t, "DERÓGUESE lo señalado anteriormente.")

	if len(edges) != 0 {
		t.Errorf("edges = %+v, want none", edges)
	}
	found := false
	for _, d := range diags {
		if d.Rule == "objetivo-no-resuelto" && d.Severity == norma.SeverityWarning {
			found = true
		}
	}
	if !found {
		t.Errorf("missing unresolved-target warning, diags = %+v", diags)
	}
}

func TestTrackConsiderandoDerogation(t *testing.T) {
	// Resolutive verbs inside the recitals carry the same weight as in the
	// operative section.
	doc := &norma.Document{
		ID: "resolucion-exenta-812",
		Preamble: norma.Preamble{
			Considerando: "Que las instrucciones previas quedaron refundidas. Derógase el Instructivo N° 3 de 2018.",
		},
		Vigency: norma.VigencyVigente,
	}
	st := store.NewMemStore()
	edges, _, err := NewRelationTracker(st).Track(doc)
	if err != nil {
		t.Fatalf("Track() error: %v", err)
	}

	var derog *store.Edge
	for i := range edges {
		if edges[i].Kind == store.KindDerogates {
			derog = &edges[i]
		}
	}
	if derog == nil {
		t.Fatalf("no derogation edge, edges = %+v", edges)
	}
	if derog.Target != "instructivo-3-2018" {
		t.Errorf("derogation target = %q, want instructivo-3-2018", derog.Target)
	}

	rec, ok, err := st.Vigency("instructivo-3-2018")
	if err != nil || !ok {
		t.Fatalf("Vigency() = %v, %v", ok, err)
	}
	if rec.State != norma.VigencyDerogado {
		t.Errorf("vigency = %q, want %q", rec.State, norma.VigencyDerogado)
	}
}

func TestTrackRecitalVerbOverridesCitation(t *testing.T) {
	// A norm derogated inside the recitals is not also recorded as a plain
	// citation of the same section.
	doc := &norma.Document{
		ID: "resolucion-exenta-813",
		Preamble: norma.Preamble{
			Considerando: "Que resulta necesario ordenar la normativa. Derógase la Ley N° 18.175.",
		},
		Vigency: norma.VigencyVigente,
	}
	edges, _, err := NewRelationTracker(store.NewMemStore()).Track(doc)
	if err != nil {
		t.Fatalf("Track() error: %v", err)
	}

	if len(edges) != 1 {
		t.Fatalf("edges = %+v, want only the derogation", edges)
	}
	if edges[0].Kind != store.KindDerogates || edges[0].Target != "ley-18175" {
		t.Errorf("edge = %+v, want deroga ley-18175", edges[0])
	}
}

func TestTrackResidualVigency(t *testing.T) {
	// A residual clause is noted, but the norm still records as derogated.
	edges, diags, st := trackText(t,
		"DERÓGASE la Circular N° 10, de 2015, sin perjuicio de que sus anexos mantendrán su vigencia hasta la dictación del nuevo texto.")

	if len(edges) != 1 || edges[0].Kind != store.KindDerogates {
		t.Fatalf("edges = %+v, want one derogation", edges)
	}

	rec, ok, _ := st.Vigency("circular-10-2015")
	if !ok {
		t.Fatal("no vigency record")
	}
	if rec.State != norma.VigencyDerogado {
		t.Errorf("state = %q, want derogado despite the residual clause", rec.State)
	}
	if rec.Note == "" {
		t.Error("residual clause left no note")
	}

	found := false
	for _, d := range diags {
		if d.Rule == "vigencia-residual" {
			found = true
		}
	}
	if !found {
		t.Errorf("missing residual finding, diags = %+v", diags)
	}
}
