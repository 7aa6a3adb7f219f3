/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/
package local_test

import (
	"testing"

	"github.com/modresolve/resolver/fs/memfs"
	"github.com/modresolve/resolver/packagejson"
	"github.com/modresolve/resolver/resolve/local"
)

func TestResolverAddsDirectDependencyEntry(t *testing.T) {
	mfs := memfs.New()
	mfs.AddFile("/project/package.json", `{"name":"app","dependencies":{"lit":"^3.0.0"}}`, 0o644)
	mfs.AddFile("/project/node_modules/lit/package.json", `{"name":"lit","main":"index.js"}`, 0o644)

	r := local.New(mfs, nil)
	im, err := r.Resolve("/project")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got := im.Imports["lit"]; got != "/node_modules/lit/index.js" {
		t.Errorf("Imports[lit] = %q", got)
	}
}

func TestResolverAddsTransitiveScope(t *testing.T) {
	mfs := memfs.New()
	mfs.AddFile("/project/package.json", `{"name":"app","dependencies":{"a":"^1.0.0"}}`, 0o644)
	mfs.AddFile("/project/node_modules/a/package.json", `{"name":"a","main":"index.js","dependencies":{"b":"^1.0.0"}}`, 0o644)
	mfs.AddFile("/project/node_modules/b/package.json", `{"name":"b","main":"index.js"}`, 0o644)

	r := local.New(mfs, nil)
	im, err := r.Resolve("/project")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	scope, ok := im.Scopes["/node_modules/a/"]
	if !ok {
		t.Fatalf("Scopes = %v, want a scope for /node_modules/a/", im.Scopes)
	}
	if got := scope["b"]; got != "/node_modules/b/index.js" {
		t.Errorf("Scopes[/node_modules/a/][b] = %q", got)
	}
}

func TestResolveSpecifiersUsesRealExportsResolution(t *testing.T) {
	mfs := memfs.New()
	mfs.AddFile("/project/package.json", `{"name":"app"}`, 0o644)
	mfs.AddFile("/project/node_modules/pkg/package.json", `{
		"name": "pkg",
		"exports": { "./*.js": "./src/*.ts" }
	}`, 0o644)
	mfs.AddFile("/project/node_modules/pkg/src/button.ts", "", 0o644)

	r := local.New(mfs, nil)
	got := r.ResolveSpecifiers("/project", []string{"pkg/button.js"})
	if got["pkg/button.js"] != "/node_modules/pkg/src/button.ts" {
		t.Errorf("ResolveSpecifiers()[pkg/button.js] = %q", got["pkg/button.js"])
	}
}

func TestWithPackageCacheReusesParsedDescriptor(t *testing.T) {
	mfs := memfs.New()
	mfs.AddFile("/project/package.json", `{"name":"app","dependencies":{"lit":"^3.0.0"}}`, 0o644)
	mfs.AddFile("/project/node_modules/lit/package.json", `{"name":"lit","main":"index.js"}`, 0o644)

	cache := packagejson.NewMemoryCache()
	r := local.New(mfs, nil).WithPackageCache(cache)
	if _, err := r.Resolve("/project"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if _, ok := cache.Get("/project/node_modules/lit/package.json"); !ok {
		t.Errorf("expected lit's package.json to be cached after Resolve")
	}
}

func TestWithIncludeRootExportsMapsOwnPackageName(t *testing.T) {
	mfs := memfs.New()
	mfs.AddFile("/project/package.json", `{"name":"my-lib","main":"lib/index.js"}`, 0o644)

	r := local.New(mfs, nil).WithIncludeRootExports()
	im, err := r.Resolve("/project")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got := im.Imports["my-lib"]; got != "/lib/index.js" {
		t.Errorf("Imports[my-lib] = %q", got)
	}
}
