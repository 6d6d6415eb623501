package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestNonStandardImport(t *testing.T) {
	cases := map[string]bool{
		"fmt":                            false,
		"encoding/json":                  false,
		"github.com/rs/zerolog":          true,
		"protocoldesk/pkg/domain":        true,
		"golang.org/x/tools/go/packages": true,
	}
	for in, want := range cases {
		if got := NonStandardImport(in); got != want {
			t.Fatalf("NonStandardImport(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInternalImport(t *testing.T) {
	if !InternalImport("protocoldesk/internal/core") || InternalImport("protocoldesk/pkg/domain") {
		t.Fatalf("internal predicate mismatch")
	}
}

func writeFile(t *testing.T, dir, name, src string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package tmp\nimport (\n\t\"fmt\"\n\t\"github.com/rs/zerolog\"\n)\nvar _ = fmt.Sprint\nvar _ zerolog.Level\n")
	writeFile(t, dir, "a_test.go", "package tmp\nimport \"protocoldesk/internal/core\"\n")

	viols, err := directImportViolations(dir, NonStandardImport)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !slices.Equal(viols, []string{"github.com/rs/zerolog (in a.go)"}) {
		t.Fatalf("violations = %v", viols)
	}
	AssertNoDirectImports(t, dir, InternalImport, "test files are exempt")
}

func TestFacadeViolations(t *testing.T) {
	graph := map[string][]string{
		"protocoldesk/internal/core":          {"protocoldesk/internal/infra/persistence/memory"},
		"protocoldesk/internal/refdata":       {"protocoldesk/internal/infra/persistence/memory", "protocoldesk/pkg/domain"},
		"protocoldesk/internal/infra/blob/fs": {"protocoldesk/internal/blob/core"},
	}
	rules := []FacadeRule{{
		Target:  "protocoldesk/internal/infra/persistence",
		Allowed: []string{"protocoldesk/internal/core", "protocoldesk/internal/infra/persistence"},
	}}
	viols := facadeViolations(graph, rules)
	if len(viols) != 1 || !strings.HasPrefix(viols[0], "protocoldesk/internal/refdata imports") {
		t.Fatalf("violations = %v", viols)
	}
}

type recorder struct {
	msg string
}

func (r *recorder) Helper() {}

func (r *recorder) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func TestFailIfViolationsReportsReason(t *testing.T) {
	var r recorder
	failIfViolations(&r, "forbidden direct imports", "domain stays pure", nil)
	if r.msg != "" {
		t.Fatalf("unexpected failure: %s", r.msg)
	}
	failIfViolations(&r, "forbidden direct imports", "domain stays pure", []string{"a", "b"})
	if !strings.Contains(r.msg, "domain stays pure") || !strings.Contains(r.msg, "a\nb") {
		t.Fatalf("message = %q", r.msg)
	}
}
