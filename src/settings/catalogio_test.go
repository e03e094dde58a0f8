package settings

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestCatalogExportImport(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatYAML, FormatTOML} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := ExportCatalog(&buf, Defaults().Catalog, format); err != nil {
				t.Fatalf("export: %v", err)
			}
			got, err := ImportCatalog(&buf, format)
			if err != nil {
				t.Fatalf("import: %v", err)
			}
			want := Defaults().Catalog
			if len(got) != len(want) {
				t.Fatalf("expected %d categories, got %d", len(want), len(got))
			}
			for i := range want {
				if got[i].Name != want[i].Name || len(got[i].Options) != len(want[i].Options) {
					t.Fatalf("category %d mismatch: %+v", i, got[i])
				}
				for j := range want[i].Options {
					if got[i].Options[j] != want[i].Options[j] {
						t.Fatalf("option %s/%d mismatch: %+v", want[i].Name, j, got[i].Options[j])
					}
				}
			}
		})
	}
}

func TestImportCatalogYAMLByHand(t *testing.T) {
	src := `categories:
  - name: tones
    options:
      - name: Pirate
        prompt: Talk like a pirate.
  - name: formats
    options:
      - name: Haiku
        prompt: Rewrite as a haiku.
`
	c, err := ImportCatalog(strings.NewReader(src), FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	if e, ok := c.Lookup("formats", "Haiku"); !ok || e.Instruction != "Rewrite as a haiku." {
		t.Fatalf("unexpected lookup %+v ok=%v", e, ok)
	}
}

func TestImportCatalogRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"missing formats", `[[categories]]
name = "tones"
[[categories.options]]
name = "A"
prompt = "x"
`},
		{"empty prompt", `[[categories]]
name = "tones"
[[categories.options]]
name = "A"
prompt = ""
[[categories]]
name = "formats"
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ImportCatalog(strings.NewReader(tt.src), FormatTOML)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"json": FormatJSON, ".yml": FormatYAML, "YAML": FormatYAML, ".toml": FormatTOML} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := FormatFromPath("catalog.xml"); err == nil {
		t.Error("expected error for xml")
	}
}
