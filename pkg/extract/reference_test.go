package extract

import (
	"reflect"
	"testing"

	"github.com/laguileracl/leychile-epub/pkg/norma"
)

func TestExtractReferences(t *testing.T) {
	e := NewReferenceExtractor()

	tests := []struct {
		name string
		text string
		want []norma.Reference
	}{
		{
			"self reference",
			"Conforme al artículo 10 de la presente ley.",
			[]norma.Reference{{Article: "10"}},
		},
		{
			"bare reference",
			"Según lo dispuesto en el artículo 5.",
			[]norma.Reference{{Article: "5"}},
		},
		{
			"external law",
			"En relación con el artículo 2 de la Ley N° 19.880.",
			[]norma.Reference{{Article: "2", Norm: "Ley 19.880"}},
		},
		{
			"code reference",
			"Aplica el artículo 1.223 del Código de Comercio.",
			[]norma.Reference{{Article: "1.223", Norm: "Código de Comercio"}},
		},
		{
			"y siguientes records only the start",
			"Regulado en los artículos 5 y siguientes.",
			[]norma.Reference{{Article: "5"}},
		},
		{
			"enumeration",
			"Según los artículos 3, 4 y 5 de la presente ley.",
			[]norma.Reference{{Article: "3"}, {Article: "4"}, {Article: "5"}},
		},
		{
			"latin suffix",
			"Sin perjuicio del artículo 3 bis de esta ley.",
			[]norma.Reference{{Article: "3 BIS"}},
		},
		{
			"no references",
			"Texto sin menciones normativas.",
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Extract(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Extract() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestExtractReferencesDeduped(t *testing.T) {
	e := NewReferenceExtractor()

	got := e.Extract(
		"El artículo 5 rige el plazo; vencido éste, el artículo 5 ordena notificar. " +
			"Distinto es el artículo 5 de la Ley N° 19.880.")
	want := []norma.Reference{
		{Article: "5"},
		{Article: "5", Norm: "Ley 19.880"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extract() = %+v, want %+v", got, want)
	}
}

func TestLawReferenceScannerExcludesOficios(t *testing.T) {
	// Oficios and circulares are correspondence, not norms; they never
	// enter the cited-laws list.
	s := newLawReferenceScanner()

	got := s.Scan("Según el Oficio N° 12 y la Circular N° 3, y la Ley N° 20.720.")
	want := []string{"Ley 20.720"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Scan() = %v, want %v", got, want)
	}
}
