package extract

import (
	"reflect"
	"testing"
)

func TestPreprocess(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			"crlf and trim",
			"  TÍTULO I  \r\nTexto\r\n",
			[]string{"TÍTULO I", "Texto"},
		},
		{
			"blank run squeeze",
			"a\n\n\n\nb",
			[]string{"a", "", "b"},
		},
		{
			"inner whitespace collapse",
			"Artículo  1°.-\tTexto",
			[]string{"Artículo 1°.- Texto"},
		},
		{
			"page numbers dropped",
			"Texto\n42\nMás texto",
			[]string{"Texto", "Más texto"},
		},
		{
			"control characters stripped",
			"Tex\x0cto",
			[]string{"Texto"},
		},
		{
			"hyphenated word rejoined",
			"el procedimiento con-\ncursal de liquidación",
			[]string{"el procedimiento concursal de liquidación"},
		},
		{
			"hyphen before heading kept",
			"régimen anti-\nDUMPING",
			[]string{"régimen anti-", "DUMPING"},
		},
		{
			"leading and trailing blanks dropped",
			"\n\nTexto\n\n",
			[]string{"Texto"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Preprocess(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Preprocess() = %q, want %q", got, tt.want)
			}
		})
	}
}
