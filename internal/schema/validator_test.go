package schema

import (
	"strings"
	"testing"

	"github.com/fulmenhq/stigmergylite/internal/assets"
)

func TestEmbeddedCatalogIsValid(t *testing.T) {
	res, err := ValidateYAML(assets.ToolCatalog, CatalogV1)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Valid {
		t.Errorf("embedded catalog should validate, got errors: %v", res.Errors)
	}
}

func TestValidateRejectsBadCatalogs(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "unknown os",
			doc: `
version: 1
tools:
  - name: git
    executable: git
    strategies:
      - label: x
        os: beos
        command: install git
`,
			want: "os",
		},
		{
			name: "artifact without artifact block",
			doc: `
version: 1
tools:
  - name: git
    executable: git
    strategies:
      - label: tarball
        os: linux
        kind: artifact
`,
			want: "artifact",
		},
		{
			name: "command strategy without command",
			doc: `
version: 1
tools:
  - name: git
    executable: git
    strategies:
      - label: apt
        os: linux
`,
			want: "command",
		},
		{
			name: "neither executable nor marker",
			doc: `
version: 1
tools:
  - name: git
    strategies: []
`,
			want: "",
		},
		{
			name: "bad platform key",
			doc: `
version: 1
tools:
  - name: opencode
    executable: opencode
    platforms: [win-x64]
    strategies: []
`,
			want: "platforms",
		},
		{
			name: "unknown field",
			doc: `
version: 1
tools:
  - name: git
    executable: git
    strategies: []
    colour: blue
`,
			want: "colour",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ValidateYAML([]byte(tt.doc), CatalogV1)
			if err != nil {
				t.Fatal(err)
			}
			if res.Valid {
				t.Fatal("expected invalid catalog")
			}
			if tt.want == "" {
				return
			}
			var joined []string
			for _, e := range res.Errors {
				joined = append(joined, e.String())
			}
			if !strings.Contains(strings.Join(joined, "\n"), tt.want) {
				t.Errorf("errors %v should mention %q", joined, tt.want)
			}
		})
	}
}

func TestValidateUnknownSchema(t *testing.T) {
	if _, err := Validate(map[string]interface{}{}, "nonexistent"); err == nil {
		t.Error("expected error for unknown schema")
	}
}

func TestValidateYAMLSyntaxError(t *testing.T) {
	if _, err := ValidateYAML([]byte("tools: [\n"), CatalogV1); err == nil {
		t.Error("expected YAML syntax error")
	}
}
