// Package testutil holds test helpers that enforce import boundaries between
// the layers of the module.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// ModulePath is the import path prefix of this module.
const ModulePath = "protocoldesk"

// NonStandardImport matches anything outside the standard library: paths whose
// first element contains a dot, and module-local paths.
func NonStandardImport(path string) bool {
	first, _, _ := strings.Cut(path, "/")
	return strings.Contains(first, ".") || first == ModulePath
}

// InternalImport matches import paths that reach into an internal tree.
func InternalImport(path string) bool {
	return strings.Contains(path, "/internal/") || strings.HasSuffix(path, "/internal")
}

// AssertNoDirectImports fails when a non-test .go file in dir imports a path
// matched by forbidden. Build tags are ignored.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	viols, err := directImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("scan %s: %v", dir, err)
	}
	failIfViolations(t, "forbidden direct imports", reason, viols)
}

// FacadeRule says that packages under Target may only be imported from
// packages under one of Allowed.
type FacadeRule struct {
	Target  string
	Allowed []string
}

// AssertFacadeImports loads pattern, test packages included, and fails for
// every import that breaks one of rules.
func AssertFacadeImports(t testing.TB, pattern string, rules ...FacadeRule) {
	t.Helper()
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	graph := make(map[string][]string, len(pkgs))
	for _, pkg := range pkgs {
		for importPath := range pkg.Imports {
			graph[pkg.PkgPath] = append(graph[pkg.PkgPath], importPath)
		}
	}
	failIfViolations(t, "forbidden facade bypass", "infra packages are reached through their facades", facadeViolations(graph, rules))
}

func facadeViolations(graph map[string][]string, rules []FacadeRule) []string {
	var viols []string
	for pkg, imports := range graph {
		for _, rule := range rules {
			if underAny(pkg, rule.Allowed) {
				continue
			}
			for _, importPath := range imports {
				if under(importPath, rule.Target) {
					viols = append(viols, pkg+" imports "+importPath)
				}
			}
		}
	}
	slices.Sort(viols)
	return slices.Compact(viols)
}

func under(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func underAny(path string, prefixes []string) bool {
	return slices.ContainsFunc(prefixes, func(p string) bool { return under(path, p) })
}

func directImportViolations(dir string, forbidden func(importPath string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range file.Imports {
			path, err := strconv.Unquote(imp.Path.Value)
			if err != nil {
				return nil, err
			}
			if forbidden(path) {
				viols = append(viols, path+" (in "+name+")")
			}
		}
	}
	return viols, nil
}

type fatalLogger interface {
	Helper()
	Fatalf(format string, args ...any)
}

func failIfViolations(t fatalLogger, kind, reason string, viols []string) {
	t.Helper()
	if len(viols) > 0 {
		t.Fatalf("%s (%s):\n%s", kind, reason, strings.Join(viols, "\n"))
	}
}
