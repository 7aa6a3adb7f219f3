package exports_test

import (
	"testing"

	"github.com/modresolve/resolver/exports"
	"github.com/modresolve/resolver/rerror"
)

func parseField(t *testing.T, doc []byte, field string) exports.Entry {
	t.Helper()
	entry, ok := exports.ParseField(doc, field)
	if !ok {
		t.Fatalf("ParseField(%q) not found in %s", field, doc)
	}
	return entry
}

func TestResolveExportsMainString(t *testing.T) {
	doc := []byte(`{"exports": "./index.js"}`)
	e := parseField(t, doc, "exports")

	got, err := exports.ResolveExports("/pkg", e, ".", nil, false)
	if err != nil {
		t.Fatalf("ResolveExports() error = %v", err)
	}
	if got != "/pkg/index.js" {
		t.Errorf("ResolveExports() = %q, want /pkg/index.js", got)
	}
}

func TestResolveExportsMainQueryFallsBack(t *testing.T) {
	doc := []byte(`{"exports": "./index.js"}`)
	e := parseField(t, doc, "exports")

	_, err := exports.ResolveExports("/pkg", e, ".", nil, true)
	var rerr *rerror.Error
	if !rerror.As(err, &rerr) || rerr.Kind != rerror.PackagePathNotExported {
		t.Fatalf("expected PackagePathNotExported for main export with query, got %v", err)
	}
}

func TestResolveExportsConditions(t *testing.T) {
	doc := []byte(`{
		"exports": {
			".": {
				"import": "./esm/index.js",
				"require": "./cjs/index.js",
				"default": "./index.js"
			}
		}
	}`)
	e := parseField(t, doc, "exports")

	got, err := exports.ResolveExports("/pkg", e, ".", []string{"import", "default"}, false)
	if err != nil {
		t.Fatalf("ResolveExports() error = %v", err)
	}
	if got != "/pkg/esm/index.js" {
		t.Errorf("ResolveExports() = %q, want /pkg/esm/index.js", got)
	}
}

func TestResolveExportsConditionsFallsToDefault(t *testing.T) {
	doc := []byte(`{
		"exports": {
			".": {
				"import": "./esm/index.js",
				"default": "./index.js"
			}
		}
	}`)
	e := parseField(t, doc, "exports")

	got, err := exports.ResolveExports("/pkg", e, ".", []string{"require"}, false)
	if err != nil {
		t.Fatalf("ResolveExports() error = %v", err)
	}
	if got != "/pkg/index.js" {
		t.Errorf("ResolveExports() = %q, want /pkg/index.js", got)
	}
}

func TestResolveExportsSubpathExact(t *testing.T) {
	doc := []byte(`{
		"exports": {
			".": "./index.js",
			"./feature": "./src/feature.js"
		}
	}`)
	e := parseField(t, doc, "exports")

	got, err := exports.ResolveExports("/pkg", e, "./feature", nil, false)
	if err != nil {
		t.Fatalf("ResolveExports() error = %v", err)
	}
	if got != "/pkg/src/feature.js" {
		t.Errorf("ResolveExports() = %q, want /pkg/src/feature.js", got)
	}
}

func TestResolveExportsWildcardLongestBaseWins(t *testing.T) {
	doc := []byte(`{
		"exports": {
			"./features/*": "./src/features/*.js",
			"./features/special/*": "./src/special/*.js"
		}
	}`)
	e := parseField(t, doc, "exports")

	got, err := exports.ResolveExports("/pkg", e, "./features/special/button", nil, false)
	if err != nil {
		t.Fatalf("ResolveExports() error = %v", err)
	}
	if got != "/pkg/src/special/button.js" {
		t.Errorf("ResolveExports() = %q, want the longer-base pattern to win, got %q", got, got)
	}
}

func TestResolveExportsWildcardSuffixMustMatch(t *testing.T) {
	doc := []byte(`{
		"exports": {
			"./*.css": "./dist/*.css"
		}
	}`)
	e := parseField(t, doc, "exports")

	_, err := exports.ResolveExports("/pkg", e, "./button.js", nil, false)
	var rerr *rerror.Error
	if !rerror.As(err, &rerr) || rerr.Kind != rerror.PackagePathNotExported {
		t.Fatalf("expected PackagePathNotExported when suffix doesn't match, got %v", err)
	}
}

func TestResolveExportsDirectoryKeyLegacy(t *testing.T) {
	doc := []byte(`{
		"exports": {
			"./legacy/": "./src/legacy/"
		}
	}`)
	e := parseField(t, doc, "exports")

	got, err := exports.ResolveExports("/pkg", e, "./legacy/thing.js", nil, false)
	if err != nil {
		t.Fatalf("ResolveExports() error = %v", err)
	}
	if got != "/pkg/src/legacy/thing.js" {
		t.Errorf("ResolveExports() = %q", got)
	}
}

func TestResolveExportsNotExported(t *testing.T) {
	doc := []byte(`{"exports": {"./feature": "./src/feature.js"}}`)
	e := parseField(t, doc, "exports")

	_, err := exports.ResolveExports("/pkg", e, "./missing", nil, false)
	var rerr *rerror.Error
	if !rerror.As(err, &rerr) || rerr.Kind != rerror.PackagePathNotExported {
		t.Fatalf("expected PackagePathNotExported, got %v", err)
	}
}

func TestResolveExportsRejectsMixedKeys(t *testing.T) {
	doc := []byte(`{
		"exports": {
			"./feature": "./src/feature.js",
			"import": "./index.js"
		}
	}`)
	e := parseField(t, doc, "exports")

	_, err := exports.ResolveExports("/pkg", e, ".", nil, false)
	var rerr *rerror.Error
	if !rerror.As(err, &rerr) || rerr.Kind != rerror.InvalidPackageConfig {
		t.Fatalf("expected InvalidPackageConfig for mixed keys, got %v", err)
	}
}

func TestResolveExportsTargetEscapeRejected(t *testing.T) {
	doc := []byte(`{"exports": {"./feature": "../escape.js"}}`)
	e := parseField(t, doc, "exports")

	_, err := exports.ResolveExports("/pkg", e, "./feature", nil, false)
	var rerr *rerror.Error
	if !rerror.As(err, &rerr) || rerr.Kind != rerror.InvalidPackageTarget {
		t.Fatalf("expected InvalidPackageTarget for non-./ target, got %v", err)
	}
}

func TestResolveExportsArrayFallback(t *testing.T) {
	doc := []byte(`{
		"exports": {
			"./feature": ["./bad/../escape.js", "./src/feature.js"]
		}
	}`)
	e := parseField(t, doc, "exports")

	got, err := exports.ResolveExports("/pkg", e, "./feature", nil, false)
	if err != nil {
		t.Fatalf("ResolveExports() error = %v", err)
	}
	if got != "/pkg/src/feature.js" {
		t.Errorf("ResolveExports() = %q, want the array to fall through to the valid entry", got)
	}
}

func TestResolveImportsPrivateMapping(t *testing.T) {
	doc := []byte(`{
		"imports": {
			"#internal/*": "./src/internal/*.js"
		}
	}`)
	e := parseField(t, doc, "imports")

	got, bare, err := exports.ResolveImports("/pkg", e, "#internal/util", nil)
	if err != nil {
		t.Fatalf("ResolveImports() error = %v", err)
	}
	if bare != "" {
		t.Fatalf("expected no bare specifier, got %q", bare)
	}
	if got != "/pkg/src/internal/util.js" {
		t.Errorf("ResolveImports() = %q", got)
	}
}

func TestResolveImportsBareTargetSurfacedForDispatcher(t *testing.T) {
	doc := []byte(`{
		"imports": {
			"#ponyfill": "lodash"
		}
	}`)
	e := parseField(t, doc, "imports")

	_, bare, err := exports.ResolveImports("/pkg", e, "#ponyfill", nil)
	if err != nil {
		t.Fatalf("ResolveImports() error = %v", err)
	}
	if bare != "lodash" {
		t.Errorf("ResolveImports() bare = %q, want lodash", bare)
	}
}

func TestResolveImportsRejectsBareHash(t *testing.T) {
	doc := []byte(`{"imports": {}}`)
	e := parseField(t, doc, "imports")

	_, _, err := exports.ResolveImports("/pkg", e, "#", nil)
	var rerr *rerror.Error
	if !rerror.As(err, &rerr) || rerr.Kind != rerror.InvalidModuleSpecifier {
		t.Fatalf("expected InvalidModuleSpecifier for bare #, got %v", err)
	}
}

func TestResolveImportsNotDefined(t *testing.T) {
	doc := []byte(`{"imports": {"#known": "./known.js"}}`)
	e := parseField(t, doc, "imports")

	_, _, err := exports.ResolveImports("/pkg", e, "#unknown", nil)
	var rerr *rerror.Error
	if !rerror.As(err, &rerr) || rerr.Kind != rerror.PackageImportNotDefined {
		t.Fatalf("expected PackageImportNotDefined, got %v", err)
	}
}

func TestParseFieldMissing(t *testing.T) {
	doc := []byte(`{"name": "pkg"}`)
	if _, ok := exports.ParseField(doc, "exports"); ok {
		t.Error("expected ParseField to report absent field")
	}
}
