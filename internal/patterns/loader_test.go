package patterns

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const validCatalog = `
patterns:
  first_pattern:
    name: "First"
    description: "first in the file"
    conditions:
      - name: check_a
        indicator: RSI_14
        operator: ">"
        value: 50
  second_pattern:
    name: "Second"
    description: "second in the file"
    variants:
      variant_b:
        conditions:
          - name: check_b
            indicator: ADX
            operator: "<"
            value: 20
      variant_a:
        conditions:
          - name: check_c
            indicator: ADX
            operator: ">"
            value: 25
  third_pattern:
    name: "Third"
    description: "third in the file"
    conditions:
      - name: check_d
        indicator: close
        operator: near
        reference: EMA_21
`

func writeGateFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "gate1_patterns.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadGatePatternsPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	writeGateFile(t, dir, validCatalog)

	loader := NewLoader(dir, zerolog.Nop())
	catalog, err := loader.LoadGatePatterns(1)
	if err != nil {
		t.Fatal(err)
	}

	wantPatterns := []string{"first_pattern", "second_pattern", "third_pattern"}
	if len(catalog.PatternOrder) != len(wantPatterns) {
		t.Fatalf("pattern order = %v", catalog.PatternOrder)
	}
	for i, want := range wantPatterns {
		if catalog.PatternOrder[i] != want {
			t.Errorf("pattern order[%d] = %q, want %q", i, catalog.PatternOrder[i], want)
		}
	}

	// Variant order follows the file, not map iteration.
	second := catalog.Patterns["second_pattern"]
	wantVariants := []string{"variant_b", "variant_a"}
	for i, want := range wantVariants {
		if second.VariantOrder[i] != want {
			t.Errorf("variant order[%d] = %q, want %q", i, second.VariantOrder[i], want)
		}
	}
}

func TestLoadGatePatternsCachesByModTime(t *testing.T) {
	dir := t.TempDir()
	path := writeGateFile(t, dir, validCatalog)

	loader := NewLoader(dir, zerolog.Nop())
	first, err := loader.LoadGatePatterns(1)
	if err != nil {
		t.Fatal(err)
	}

	second, err := loader.LoadGatePatterns(1)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("unchanged file should return the cached catalog")
	}

	// Advance the mtime to force a reload.
	updated := `
patterns:
  only_pattern:
    name: "Only"
    description: "rewritten"
    conditions:
      - name: check
        indicator: RSI_14
        operator: "<"
        value: 30
`
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	third, err := loader.LoadGatePatterns(1)
	if err != nil {
		t.Fatal(err)
	}
	if third == first {
		t.Error("modified file should be re-parsed")
	}
	if len(third.PatternOrder) != 1 || third.PatternOrder[0] != "only_pattern" {
		t.Errorf("reloaded catalog = %v", third.PatternOrder)
	}
}

func TestLoadGatePatternsRejectsInvalidGate(t *testing.T) {
	loader := NewLoader(t.TempDir(), zerolog.Nop())
	if _, err := loader.LoadGatePatterns(0); err == nil {
		t.Error("gate 0 should be rejected")
	}
	if _, err := loader.LoadGatePatterns(4); err == nil {
		t.Error("gate 4 should be rejected")
	}
}

func TestLoadGatePatternsMissingFile(t *testing.T) {
	loader := NewLoader(t.TempDir(), zerolog.Nop())
	if _, err := loader.LoadGatePatterns(1); err == nil {
		t.Error("missing file should return an error")
	}
}

func TestValidateRejectsBadCatalogs(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "empty catalog",
			content: `patterns: {}`,
		},
		{
			name: "missing description",
			content: `
patterns:
  p:
    name: "Pattern"
    conditions:
      - name: c
        indicator: RSI_14
        operator: ">"
        value: 1
`,
		},
		{
			name: "unknown operator",
			content: `
patterns:
  p:
    name: "Pattern"
    description: "test"
    conditions:
      - name: c
        indicator: RSI_14
        operator: above
        value: 1
`,
		},
		{
			name: "condition without indicator",
			content: `
patterns:
  p:
    name: "Pattern"
    description: "test"
    conditions:
      - name: c
        operator: ">"
        value: 1
`,
		},
		{
			name: "variant without conditions",
			content: `
patterns:
  p:
    name: "Pattern"
    description: "test"
    variants:
      empty: {}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeGateFile(t, dir, tt.content)
			loader := NewLoader(dir, zerolog.Nop())
			if _, err := loader.LoadGatePatterns(1); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestParseFailureKeepsPreviousCatalog(t *testing.T) {
	dir := t.TempDir()
	path := writeGateFile(t, dir, validCatalog)

	loader := NewLoader(dir, zerolog.Nop())
	good, err := loader.LoadGatePatterns(1)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("patterns: [broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	if _, err := loader.LoadGatePatterns(1); err == nil {
		t.Fatal("broken file should return an error")
	}

	cached := loader.cache[1]
	if cached == nil || cached.catalog != good {
		t.Error("parse failure must not evict the cached catalog")
	}
}
