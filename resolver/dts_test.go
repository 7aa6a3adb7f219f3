package resolver_test

import (
	"testing"

	"github.com/modresolve/resolver/fs/memfs"
	"github.com/modresolve/resolver/resolver"
)

// TestResolveTypesSubstitutesDeclarationExtension covers a plain relative
// specifier written with a ".js" extension resolving to its sibling ".d.ts"
// declaration file, the way ts.resolveModuleName prefers declarations over
// the runtime source.
func TestResolveTypesSubstitutesDeclarationExtension(t *testing.T) {
	mfs := memfs.New()
	mfs.AddFile("/project/src/foo.d.ts", "", 0o644)
	mfs.AddFile("/project/src/foo.js", "", 0o644)

	r := resolver.NewResolver(resolver.DefaultOptions(), mfs)
	res, err := r.ResolveTypes("/project/src/index.ts", "./foo.js")
	if err != nil {
		t.Fatalf("ResolveTypes() error = %v", err)
	}
	if res.Path() != "/project/src/foo.d.ts" {
		t.Errorf("Path() = %q, want the sibling .d.ts", res.Path())
	}
}

// TestResolveTypesExtensionlessPrefersTypeScriptSource covers an
// extensionless relative specifier preferring a ".ts" source file over a
// same-named ".js" file.
func TestResolveTypesExtensionlessPrefersTypeScriptSource(t *testing.T) {
	mfs := memfs.New()
	mfs.AddFile("/project/src/foo.ts", "", 0o644)
	mfs.AddFile("/project/src/foo.js", "", 0o644)

	r := resolver.NewResolver(resolver.DefaultOptions(), mfs)
	res, err := r.ResolveTypes("/project/src/index.ts", "./foo")
	if err != nil {
		t.Fatalf("ResolveTypes() error = %v", err)
	}
	if res.Path() != "/project/src/foo.ts" {
		t.Errorf("Path() = %q, want foo.ts", res.Path())
	}
}

// TestResolveTypesFallsBackToAtTypesPackage covers the two-pass
// node_modules walk: an implementation package with no bundled types falls
// back to its "@types" scoped counterpart, with the package name mangled
// per DefinitelyTyped convention.
func TestResolveTypesFallsBackToAtTypesPackage(t *testing.T) {
	mfs := memfs.New()
	mfs.AddFile("/project/node_modules/widget/package.json", `{"name":"widget","main":"./index.js"}`, 0o644)
	mfs.AddFile("/project/node_modules/widget/index.js", "", 0o644)
	mfs.AddFile("/project/node_modules/@types/widget/package.json", `{"name":"@types/widget","types":"./index.d.ts"}`, 0o644)
	mfs.AddFile("/project/node_modules/@types/widget/index.d.ts", "", 0o644)

	r := resolver.NewResolver(resolver.DefaultOptions(), mfs)
	res, err := r.ResolveTypes("/project/src/index.ts", "widget")
	if err != nil {
		t.Fatalf("ResolveTypes() error = %v", err)
	}
	if res.Path() != "/project/node_modules/@types/widget/index.d.ts" {
		t.Errorf("Path() = %q, want the @types package's declaration file", res.Path())
	}
}

// TestResolveTypesManglesScopedAtTypesName covers the scoped-package name
// mangling DefinitelyTyped uses: "@scope/name" publishes its declarations
// under "@types/scope__name".
func TestResolveTypesManglesScopedAtTypesName(t *testing.T) {
	mfs := memfs.New()
	mfs.AddFile("/project/node_modules/@scope/widget/package.json", `{"name":"@scope/widget","main":"./index.js"}`, 0o644)
	mfs.AddFile("/project/node_modules/@scope/widget/index.js", "", 0o644)
	mfs.AddFile("/project/node_modules/@types/scope__widget/package.json", `{"name":"@types/scope__widget","types":"./index.d.ts"}`, 0o644)
	mfs.AddFile("/project/node_modules/@types/scope__widget/index.d.ts", "", 0o644)

	r := resolver.NewResolver(resolver.DefaultOptions(), mfs)
	res, err := r.ResolveTypes("/project/src/index.ts", "@scope/widget")
	if err != nil {
		t.Fatalf("ResolveTypes() error = %v", err)
	}
	if res.Path() != "/project/node_modules/@types/scope__widget/index.d.ts" {
		t.Errorf("Path() = %q, want the mangled @types package's declaration file", res.Path())
	}
}

// TestResolveTypesPrefersBundledTypesOverAtTypes covers the PASS 1 priority
// order: a package that ships its own "types" field wins over a "@types"
// counterpart that also exists in node_modules.
func TestResolveTypesPrefersBundledTypesOverAtTypes(t *testing.T) {
	mfs := memfs.New()
	mfs.AddFile("/project/node_modules/widget/package.json", `{"name":"widget","types":"./index.d.ts","main":"./index.js"}`, 0o644)
	mfs.AddFile("/project/node_modules/widget/index.d.ts", "", 0o644)
	mfs.AddFile("/project/node_modules/widget/index.js", "", 0o644)
	mfs.AddFile("/project/node_modules/@types/widget/package.json", `{"name":"@types/widget","types":"./index.d.ts"}`, 0o644)
	mfs.AddFile("/project/node_modules/@types/widget/index.d.ts", "", 0o644)

	r := resolver.NewResolver(resolver.DefaultOptions(), mfs)
	res, err := r.ResolveTypes("/project/src/index.ts", "widget")
	if err != nil {
		t.Fatalf("ResolveTypes() error = %v", err)
	}
	if res.Path() != "/project/node_modules/widget/index.d.ts" {
		t.Errorf("Path() = %q, want the package's own bundled declaration file", res.Path())
	}
}

// TestResolveTypesExportsFieldBlocksTypesFallback covers the exports-first
// priority rule: when a package declares "exports" but no "types" condition
// target matches, resolution fails rather than falling back to "types" or
// "main".
func TestResolveTypesExportsFieldBlocksTypesFallback(t *testing.T) {
	mfs := memfs.New()
	mfs.AddFile("/project/node_modules/widget/package.json", `{
		"name": "widget",
		"types": "./index.d.ts",
		"main": "./index.js",
		"exports": { "import": "./esm/index.js" }
	}`, 0o644)
	mfs.AddFile("/project/node_modules/widget/index.d.ts", "", 0o644)
	mfs.AddFile("/project/node_modules/widget/index.js", "", 0o644)
	mfs.AddFile("/project/node_modules/widget/esm/index.js", "", 0o644)

	r := resolver.NewResolver(resolver.DefaultOptions(), mfs)
	_, err := r.ResolveTypes("/project/src/index.ts", "widget")
	if err == nil {
		t.Fatal("ResolveTypes() error = nil, want exports-without-types-condition to fail")
	}
}

// TestResolveTypesExportsFieldHonoursTypesCondition covers the same
// exports-first rule succeeding: a "types" condition target in "exports" is
// used, ahead of the package's "types"/"main" fields.
func TestResolveTypesExportsFieldHonoursTypesCondition(t *testing.T) {
	mfs := memfs.New()
	mfs.AddFile("/project/node_modules/widget/package.json", `{
		"name": "widget",
		"main": "./index.js",
		"exports": { "types": "./index.d.ts", "default": "./index.js" }
	}`, 0o644)
	mfs.AddFile("/project/node_modules/widget/index.d.ts", "", 0o644)
	mfs.AddFile("/project/node_modules/widget/index.js", "", 0o644)

	r := resolver.NewResolver(resolver.DefaultOptions(), mfs)
	res, err := r.ResolveTypes("/project/src/index.ts", "widget")
	if err != nil {
		t.Fatalf("ResolveTypes() error = %v", err)
	}
	if res.Path() != "/project/node_modules/widget/index.d.ts" {
		t.Errorf("Path() = %q, want the exports \"types\" condition target", res.Path())
	}
}

// TestResolveTypesVersionsRedirectsDirectoryEntry covers a package's
// "typesVersions" field redirecting the package's own entry point.
func TestResolveTypesVersionsRedirectsDirectoryEntry(t *testing.T) {
	mfs := memfs.New()
	mfs.AddFile("/project/node_modules/widget/package.json", `{
		"name": "widget",
		"types": "./index.d.ts",
		"typesVersions": { "*": { "*": ["ts4.0/*"] } }
	}`, 0o644)
	mfs.AddFile("/project/node_modules/widget/index.d.ts", "", 0o644)
	mfs.AddFile("/project/node_modules/widget/ts4.0/index.d.ts", "", 0o644)

	r := resolver.NewResolver(resolver.DefaultOptions(), mfs)
	res, err := r.ResolveTypes("/project/src/index.ts", "widget")
	if err != nil {
		t.Fatalf("ResolveTypes() error = %v", err)
	}
	if res.Path() != "/project/node_modules/widget/ts4.0/index.d.ts" {
		t.Errorf("Path() = %q, want the typesVersions-redirected declaration file", res.Path())
	}
}

// TestResolveTypesVersionsRedirectsSubpathImport covers "typesVersions"
// redirecting a subpath import (widget/feature) rather than the package's
// bare entry point.
func TestResolveTypesVersionsRedirectsSubpathImport(t *testing.T) {
	mfs := memfs.New()
	mfs.AddFile("/project/node_modules/widget/package.json", `{
		"name": "widget",
		"typesVersions": { "*": { "feature": ["ts4.0/feature.d.ts"] } }
	}`, 0o644)
	mfs.AddFile("/project/node_modules/widget/feature.js", "", 0o644)
	mfs.AddFile("/project/node_modules/widget/ts4.0/feature.d.ts", "", 0o644)

	r := resolver.NewResolver(resolver.DefaultOptions(), mfs)
	res, err := r.ResolveTypes("/project/src/index.ts", "widget/feature")
	if err != nil {
		t.Fatalf("ResolveTypes() error = %v", err)
	}
	if res.Path() != "/project/node_modules/widget/ts4.0/feature.d.ts" {
		t.Errorf("Path() = %q, want the typesVersions-redirected subpath", res.Path())
	}
}

// TestResolveTypesTsconfigPaths covers a tsconfig "paths" alias driving
// declaration-file resolution the same way it drives ordinary resolution.
func TestResolveTypesTsconfigPaths(t *testing.T) {
	mfs := memfs.New()
	mfs.AddFile("/project/tsconfig.json", `{
		"compilerOptions": { "baseUrl": ".", "paths": { "@app/*": ["src/*"] } }
	}`, 0o644)
	mfs.AddFile("/project/src/utils.d.ts", "", 0o644)
	mfs.AddFile("/project/src/utils.js", "", 0o644)

	opts := resolver.DefaultOptions()
	opts.Tsconfig = resolver.TsconfigOptions{Mode: resolver.TsconfigManual, ConfigFile: "/project/tsconfig.json"}
	r := resolver.NewResolver(opts, mfs)

	res, err := r.ResolveTypes("/project/src/index.ts", "@app/utils")
	if err != nil {
		t.Fatalf("ResolveTypes() error = %v", err)
	}
	if res.Path() != "/project/src/utils.d.ts" {
		t.Errorf("Path() = %q, want the tsconfig-paths-redirected declaration file", res.Path())
	}
}

// TestResolveTypesTypingsFieldWinsOverTypes covers the legacy "typings"
// field being preferred over "types" when both are present, matching
// TypeScript's own typings-then-types fallback order.
func TestResolveTypesTypingsFieldWinsOverTypes(t *testing.T) {
	mfs := memfs.New()
	mfs.AddFile("/project/node_modules/widget/package.json", `{
		"name": "widget",
		"typings": "./typings.d.ts",
		"types": "./types.d.ts"
	}`, 0o644)
	mfs.AddFile("/project/node_modules/widget/typings.d.ts", "", 0o644)
	mfs.AddFile("/project/node_modules/widget/types.d.ts", "", 0o644)

	r := resolver.NewResolver(resolver.DefaultOptions(), mfs)
	res, err := r.ResolveTypes("/project/src/index.ts", "widget")
	if err != nil {
		t.Fatalf("ResolveTypes() error = %v", err)
	}
	if res.Path() != "/project/node_modules/widget/typings.d.ts" {
		t.Errorf("Path() = %q, want the \"typings\" field honoured ahead of \"types\"", res.Path())
	}
}

// TestResolveTypesFallsBackToMainWhenNoDeclarationField covers a package
// with neither "types" nor "typings" falling back to resolving its "main"
// field's file directly (TypeScript still returns a result; it just won't
// carry type information unless a sibling .d.ts happens to exist).
func TestResolveTypesFallsBackToMainWhenNoDeclarationField(t *testing.T) {
	mfs := memfs.New()
	mfs.AddFile("/project/node_modules/widget/package.json", `{"name":"widget","main":"./index.js"}`, 0o644)
	mfs.AddFile("/project/node_modules/widget/index.js", "", 0o644)

	r := resolver.NewResolver(resolver.DefaultOptions(), mfs)
	res, err := r.ResolveTypes("/project/src/index.ts", "widget")
	if err != nil {
		t.Fatalf("ResolveTypes() error = %v", err)
	}
	if res.Path() != "/project/node_modules/widget/index.js" {
		t.Errorf("Path() = %q, want the main field's file", res.Path())
	}
}

func TestResolveTypesNotFoundReportsKind(t *testing.T) {
	mfs := memfs.New()
	mfs.AddDir("/project/src", 0o755)

	r := resolver.NewResolver(resolver.DefaultOptions(), mfs)
	_, err := r.ResolveTypes("/project/src/index.ts", "./missing")
	if err == nil {
		t.Fatal("ResolveTypes() error = nil, want NotFound")
	}
}
