package alias_test

import (
	"testing"

	"github.com/modresolve/resolver/alias"
	"github.com/modresolve/resolver/fs/memfs"
	"github.com/modresolve/resolver/pathgraph"
	"github.com/modresolve/resolver/rerror"
)

func TestResolveExactAlias(t *testing.T) {
	mfs := memfs.New()
	cache := pathgraph.NewCache(mfs)

	entries := alias.Compile([]alias.RawEntry{
		{Key: "react$", Targets: []alias.Target{{Kind: alias.TargetPath, Path: "/vendor/react.js"}}},
	})

	match, err := alias.Resolve(entries, cache, mfs, "react")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if match == nil || len(match.Candidates) != 1 || match.Candidates[0].Specifier != "/vendor/react.js" {
		t.Fatalf("Resolve() = %+v", match)
	}
}

func TestResolveExactAliasDoesNotMatchSubpath(t *testing.T) {
	mfs := memfs.New()
	cache := pathgraph.NewCache(mfs)

	entries := alias.Compile([]alias.RawEntry{
		{Key: "react$", Targets: []alias.Target{{Kind: alias.TargetPath, Path: "/vendor/react.js"}}},
	})

	match, err := alias.Resolve(entries, cache, mfs, "react/jsx-runtime")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if match != nil {
		t.Fatalf("expected no match for exact alias on a subpath, got %+v", match)
	}
}

func TestResolvePrefixAliasAppendsTailToDirectory(t *testing.T) {
	mfs := memfs.New()
	mfs.AddDir("/src", 0o755)
	cache := pathgraph.NewCache(mfs)

	entries := alias.Compile([]alias.RawEntry{
		{Key: "@", Targets: []alias.Target{{Kind: alias.TargetPath, Path: "/src"}}},
	})

	match, err := alias.Resolve(entries, cache, mfs, "@/components/button")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if match == nil || len(match.Candidates) != 1 {
		t.Fatalf("Resolve() = %+v", match)
	}
	if got := match.Candidates[0].Specifier; got != "/src/components/button" {
		t.Errorf("Resolve() candidate = %q, want /src/components/button", got)
	}
}

func TestResolvePrefixAliasDiscardsTailWhenValueIsFile(t *testing.T) {
	mfs := memfs.New()
	mfs.AddFile("/vendor/shim.js", "", 0o644)
	cache := pathgraph.NewCache(mfs)

	entries := alias.Compile([]alias.RawEntry{
		{Key: "legacy", Targets: []alias.Target{{Kind: alias.TargetPath, Path: "/vendor/shim.js"}}},
	})

	match, err := alias.Resolve(entries, cache, mfs, "legacy/anything")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if match != nil {
		t.Fatalf("expected alias targeting a file to produce no candidate for a subpath tail, got %+v", match)
	}
}

func TestResolveWildcardAlias(t *testing.T) {
	mfs := memfs.New()
	cache := pathgraph.NewCache(mfs)

	entries := alias.Compile([]alias.RawEntry{
		{Key: "@app/*", Targets: []alias.Target{{Kind: alias.TargetPath, Path: "./src/*"}}},
	})

	match, err := alias.Resolve(entries, cache, mfs, "@app/button")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if match == nil || match.Candidates[0].Specifier != "./src/button" {
		t.Fatalf("Resolve() = %+v", match)
	}
}

func TestResolveIgnoreTarget(t *testing.T) {
	mfs := memfs.New()
	cache := pathgraph.NewCache(mfs)

	entries := alias.Compile([]alias.RawEntry{
		{Key: "fs$", Targets: []alias.Target{{Kind: alias.TargetIgnore}}},
	})

	match, err := alias.Resolve(entries, cache, mfs, "fs")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if match == nil || len(match.Candidates) != 1 || !match.Candidates[0].Ignore {
		t.Fatalf("Resolve() = %+v", match)
	}
}

func TestResolveSkipsNoOpEntry(t *testing.T) {
	mfs := memfs.New()
	cache := pathgraph.NewCache(mfs)

	entries := alias.Compile([]alias.RawEntry{
		{Key: "same", Targets: []alias.Target{{Kind: alias.TargetPath, Path: "same"}}},
		{Key: "same", Targets: []alias.Target{{Kind: alias.TargetPath, Path: "/real/target.js"}}},
	})

	match, err := alias.Resolve(entries, cache, mfs, "same")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if match == nil || match.Candidates[0].Specifier != "/real/target.js" {
		t.Fatalf("expected the second, non-self-referential entry to match, got %+v", match)
	}
}

func TestProbeExtensions(t *testing.T) {
	mfs := memfs.New()
	mfs.AddFile("/pkg/index.ts", "", 0o644)
	cache := pathgraph.NewCache(mfs)

	got, ok := alias.ProbeExtensions(cache, mfs, "/pkg/index", []string{".js", ".ts"})
	if !ok {
		t.Fatal("ProbeExtensions() did not find a match")
	}
	if got != "/pkg/index.ts" {
		t.Errorf("ProbeExtensions() = %q", got)
	}
}

func TestResolveExtensionAliasMatchesAliased(t *testing.T) {
	mfs := memfs.New()
	mfs.AddFile("/pkg/foo.mjs", "", 0o644)
	cache := pathgraph.NewCache(mfs)

	result, err := alias.ResolveExtensionAlias(cache, mfs, "/pkg/foo.js", ".js", []string{".mjs", ".cjs"})
	if err != nil {
		t.Fatalf("ResolveExtensionAlias() error = %v", err)
	}
	if !result.Matched || result.Path != "/pkg/foo.mjs" {
		t.Fatalf("ResolveExtensionAlias() = %+v", result)
	}
}

func TestResolveExtensionAliasBailsWhenOriginalExists(t *testing.T) {
	mfs := memfs.New()
	mfs.AddFile("/pkg/foo.js", "", 0o644)
	cache := pathgraph.NewCache(mfs)

	result, err := alias.ResolveExtensionAlias(cache, mfs, "/pkg/foo.js", ".js", []string{".mjs"})
	if err != nil {
		t.Fatalf("ResolveExtensionAlias() error = %v", err)
	}
	if result.Matched {
		t.Fatalf("expected a silent bail when the original file exists, got %+v", result)
	}
}

func TestResolveExtensionAliasFailsWhenNothingExists(t *testing.T) {
	mfs := memfs.New()
	cache := pathgraph.NewCache(mfs)

	_, err := alias.ResolveExtensionAlias(cache, mfs, "/pkg/foo.js", ".js", []string{".mjs"})
	var rerr *rerror.Error
	if !rerror.As(err, &rerr) || rerr.Kind != rerror.ExtensionAlias {
		t.Fatalf("expected ExtensionAlias error, got %v", err)
	}
	if len(rerr.Attempted) != 1 || rerr.Attempted[0] != "/pkg/foo.mjs" {
		t.Errorf("Attempted = %v", rerr.Attempted)
	}
}
