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

package resolver

import (
	"strings"

	"github.com/modresolve/resolver/exports"
	"github.com/modresolve/resolver/internal/pathutil"
	"github.com/modresolve/resolver/packagejson"
	"github.com/modresolve/resolver/pathgraph"
	"github.com/modresolve/resolver/rerror"
	"github.com/modresolve/resolver/specifier"
)

// dtsExtensions is a bitflag set of which TypeScript-facing extension
// categories a declaration-file search should try next, mirroring
// ts.resolveModuleName's own TYPESCRIPT/JAVASCRIPT/DECLARATION grouping
// rather than the ordinary Options.Extensions list.
type dtsExtensions uint8

const (
	dtsTypeScript  dtsExtensions = 1 << iota // .ts, .tsx, .mts, .cts
	dtsJavaScript                            // .js, .jsx, .mjs, .cjs
	dtsDeclaration                           // .d.ts, .d.mts, .d.cts
)

const dtsAllExtensions = dtsTypeScript | dtsJavaScript | dtsDeclaration
const dtsPriorityExtensions = dtsTypeScript | dtsDeclaration

func (e dtsExtensions) has(other dtsExtensions) bool { return e&other == other }

// ResolveTypes resolves spec from the directory containing containingFile
// against TypeScript's own module resolution algorithm
// (ts.resolveModuleName under moduleResolution "bundler"), a structurally
// distinct search from Resolve: it substitutes .ts/.d.ts extensions instead
// of Options.Extensions, walks node_modules twice (first for TypeScript and
// declaration files in each ancestor's package, with its "@types"
// counterpart as a fallback; then for JavaScript files in the package
// alone), and honours a
// package's "typesVersions" redirection. "#"-imports and self-referencing
// package names still go through the ordinary loadPackageImports/
// loadPackageSelf machinery: TypeScript applies no declaration-specific
// substitution there either.
func (r *Resolver) ResolveTypes(containingFile, spec string) (*Resolution, error) {
	ctx := NewContext()
	node := r.cache.Value(pathutil.Dirname(containingFile))

	parsed, err := specifier.Parse(spec)
	if err != nil {
		return nil, &rerror.Error{Kind: rerror.Specifier, Request: spec}
	}
	ctx.query = parsed.Query
	ctx.fragment = parsed.Fragment
	path := parsed.Path
	if path == "" {
		return nil, rerror.New(rerror.NotFound, spec)
	}

	if path[0] != '.' && path[0] != '/' {
		got, err := r.dtsResolveTsconfigPaths(path, ctx)
		if err != nil {
			return nil, err
		}
		if got != nil {
			return r.dtsFinalize(got, ctx)
		}
	}

	var result *pathgraph.CachedPath
	switch {
	case path[0] == '.' || path[0] == '/':
		candidate := r.cache.Value(pathutil.NormaliseWith(node.Path, path))
		result, err = r.dtsResolveRelative(dtsAllExtensions, candidate, ctx)
	case path[0] == '#':
		result, err = r.loadPackageImports(node, path, ctx)
	case strings.Contains(path, ":"):
		result, err = nil, nil
	default:
		name, rest := parsePackageSpecifier(path)
		result, err = r.loadPackageSelf(node, path, ctx)
		if err == nil && result == nil {
			result, err = r.dtsResolveNodeModules(dtsAllExtensions, path, name, rest, node, ctx)
		}
	}
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, rerror.New(rerror.NotFound, spec)
	}
	return r.dtsFinalize(result, ctx)
}

func (r *Resolver) dtsFinalize(node *pathgraph.CachedPath, ctx *Context) (*Resolution, error) {
	resolved := node
	if r.options.Symlinks {
		canonical, err := node.Canonicalise(r.cache, r.fs)
		if err != nil {
			return nil, err
		}
		resolved = canonical
	}
	_, pkg, err := resolved.FindPackageJSON(r.cache, r.fs, r.options.DescriptionFiles)
	if err != nil {
		return nil, err
	}
	ctx.trackFile(resolved.Path)
	return &Resolution{
		path:       resolved.Path,
		query:      ctx.query,
		fragment:   ctx.fragment,
		pkg:        pkg,
		moduleType: dtsModuleType(resolved.Path),
	}, nil
}

func dtsModuleType(path string) ModuleType {
	switch {
	case strings.HasSuffix(path, ".d.mts"), strings.HasSuffix(path, ".mts"):
		return ModuleESM
	case strings.HasSuffix(path, ".d.cts"), strings.HasSuffix(path, ".cts"):
		return ModuleCommonJS
	case strings.HasSuffix(path, ".json"):
		return ModuleJSON
	default:
		return ModuleUnknown
	}
}

func (r *Resolver) dtsIsFile(node *pathgraph.CachedPath) bool {
	meta, err := node.Metadata(r.fs)
	return err == nil && meta.IsFile
}

func (r *Resolver) dtsIsDir(node *pathgraph.CachedPath) bool {
	meta, err := node.Metadata(r.fs)
	return err == nil && meta.IsDir
}

func (r *Resolver) dtsResolveRelative(extensions dtsExtensions, candidate *pathgraph.CachedPath, ctx *Context) (*pathgraph.CachedPath, error) {
	if got := r.dtsResolveAsFile(extensions, candidate, ctx); got != nil {
		return got, nil
	}
	return r.dtsResolveAsDirectory(extensions, candidate, ctx)
}

// dtsResolveAsFile is TypeScript's loadModuleFromFile: it first strips a
// known extension and retries the substitution on the extensionless base
// (./foo.js -> ./foo.ts), then tries adding an extension outright
// (./foo -> ./foo.ts).
func (r *Resolver) dtsResolveAsFile(extensions dtsExtensions, candidate *pathgraph.CachedPath, ctx *Context) *pathgraph.CachedPath {
	if ext, ok := dtsKnownExtension(candidate.Path); ok {
		base := r.cache.Value(candidate.Path[:len(candidate.Path)-len(ext)])
		if got := r.dtsTryExtensions(base, extensions, ext, ctx); got != nil {
			return got
		}
	}
	return r.dtsTryExtensions(candidate, extensions, "", ctx)
}

// dtsKnownExtension returns the recognised extension at the end of path,
// compound declaration extensions first, then any other short extension
// (including an unrecognised one like ".vue", handled by dtsTryExtensions'
// default case).
func dtsKnownExtension(path string) (string, bool) {
	for _, ext := range []string{".d.ts", ".d.mts", ".d.cts"} {
		if strings.HasSuffix(path, ext) {
			return ext, true
		}
	}
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 {
		return "", false
	}
	ext := path[idx:]
	switch ext {
	case ".ts", ".tsx", ".mts", ".cts", ".js", ".jsx", ".mjs", ".cjs", ".json":
		return ext, true
	default:
		if ext != "" && len(ext) < 10 {
			return ext, true
		}
		return "", false
	}
}

// dtsTryExtensions is TypeScript's tryAddingExtensions: given the extension
// the request already carried (or "" for an extensionless request), it
// tries the declaration-file substitutions TypeScript considers equivalent,
// in TypeScript's own priority order.
func (r *Resolver) dtsTryExtensions(base *pathgraph.CachedPath, extensions dtsExtensions, originalExt string, ctx *Context) *pathgraph.CachedPath {
	switch originalExt {
	case ".mjs", ".mts", ".d.mts":
		if extensions.has(dtsTypeScript) {
			if p := r.dtsTryFile(base, ".mts", ctx); p != nil {
				return p
			}
		}
		if extensions.has(dtsDeclaration) {
			if p := r.dtsTryFile(base, ".d.mts", ctx); p != nil {
				return p
			}
		}
		if extensions.has(dtsJavaScript) {
			if p := r.dtsTryFile(base, ".mjs", ctx); p != nil {
				return p
			}
		}
	case ".cjs", ".cts", ".d.cts":
		if extensions.has(dtsTypeScript) {
			if p := r.dtsTryFile(base, ".cts", ctx); p != nil {
				return p
			}
		}
		if extensions.has(dtsDeclaration) {
			if p := r.dtsTryFile(base, ".d.cts", ctx); p != nil {
				return p
			}
		}
		if extensions.has(dtsJavaScript) {
			if p := r.dtsTryFile(base, ".cjs", ctx); p != nil {
				return p
			}
		}
	case ".json":
		if extensions.has(dtsDeclaration) {
			if p := r.dtsTryFile(base, ".d.json.ts", ctx); p != nil {
				return p
			}
		}
	case ".tsx", ".jsx":
		if extensions.has(dtsTypeScript) {
			if p := r.dtsTryFile(base, ".tsx", ctx); p != nil {
				return p
			}
			if p := r.dtsTryFile(base, ".ts", ctx); p != nil {
				return p
			}
		}
		if extensions.has(dtsDeclaration) {
			if p := r.dtsTryFile(base, ".d.ts", ctx); p != nil {
				return p
			}
		}
		if extensions.has(dtsJavaScript) {
			if p := r.dtsTryFile(base, ".jsx", ctx); p != nil {
				return p
			}
			if p := r.dtsTryFile(base, ".js", ctx); p != nil {
				return p
			}
		}
	case ".ts", ".d.ts", ".js", "":
		if extensions.has(dtsTypeScript) {
			if p := r.dtsTryFile(base, ".ts", ctx); p != nil {
				return p
			}
			if p := r.dtsTryFile(base, ".tsx", ctx); p != nil {
				return p
			}
		}
		if extensions.has(dtsDeclaration) {
			if p := r.dtsTryFile(base, ".d.ts", ctx); p != nil {
				return p
			}
		}
		if extensions.has(dtsJavaScript) {
			if p := r.dtsTryFile(base, ".js", ctx); p != nil {
				return p
			}
			if p := r.dtsTryFile(base, ".jsx", ctx); p != nil {
				return p
			}
		}
	default:
		if extensions.has(dtsDeclaration) {
			if p := r.dtsTryFile(base, ".d"+originalExt+".ts", ctx); p != nil {
				return p
			}
		}
	}
	return nil
}

func (r *Resolver) dtsTryFile(base *pathgraph.CachedPath, ext string, ctx *Context) *pathgraph.CachedPath {
	candidate := r.cache.Value(base.Path + ext)
	if r.dtsIsFile(candidate) {
		return candidate
	}
	return nil
}

// dtsResolveAsDirectory is TypeScript's loadNodeModuleFromDirectoryWorker:
// it tries a typesVersions redirect first, then the governing package's
// types/typings/main entry point, finally falling back to an "index" file.
func (r *Resolver) dtsResolveAsDirectory(extensions dtsExtensions, candidate *pathgraph.CachedPath, ctx *Context) (*pathgraph.CachedPath, error) {
	if !r.dtsIsDir(candidate) {
		return nil, nil
	}
	pkg, _ := candidate.PackageJSON(r.fs, r.options.DescriptionFiles)

	if pkg != nil {
		if versionPaths := pkg.TypesVersions(); len(versionPaths) > 0 {
			vpSpecifier := dtsEntrySpecifier(extensions, pkg)
			if vpSpecifier == "" {
				vpSpecifier = "index"
			}
			got, err := r.dtsResolveViaVersionPaths(extensions, vpSpecifier, candidate, versionPaths, ctx)
			if err != nil {
				return nil, err
			}
			if got != nil {
				return got, nil
			}
		}

		if entry := dtsEntrySpecifier(extensions, pkg); entry != "" {
			entryPath := r.cache.Value(pathutil.NormaliseWith(candidate.Path, entry))
			if got := r.dtsResolveAsFile(extensions, entryPath, ctx); got != nil {
				return got, nil
			}
			if r.dtsIsDir(entryPath) {
				index := r.cache.Value(pathutil.Join(entryPath.Path, "index"))
				if got := r.dtsResolveAsFile(extensions, index, ctx); got != nil {
					return got, nil
				}
			}
		}
	}

	index := r.cache.Value(pathutil.Join(candidate.Path, "index"))
	return r.dtsResolveAsFile(extensions, index, ctx), nil
}

// dtsEntrySpecifier picks a package's declared entry point: "typings" or
// "types" when a declaration file is wanted, falling back to "main" when
// any of TypeScript/JavaScript/Declaration was requested.
func dtsEntrySpecifier(extensions dtsExtensions, pkg *packagejson.PackageJSON) string {
	var entry string
	if extensions.has(dtsDeclaration) {
		entry = pkg.Typings()
		if entry == "" {
			entry = pkg.Types()
		}
	}
	if entry == "" && extensions != 0 {
		if mains := pkg.MainFields([]string{"main"}); len(mains) > 0 {
			entry = mains[0]
		}
	}
	return entry
}

// dtsResolveNodeModules walks node_modules ancestors twice: once for
// TypeScript/declaration extensions (trying the implementation package,
// then its mangled "@types" counterpart, at every ancestor before falling
// through to plain JavaScript), and once more for any JavaScript-only
// extensions with no "@types" involved, matching TypeScript's own
// two-pass module lookup.
func (r *Resolver) dtsResolveNodeModules(extensions dtsExtensions, spec, packageName, rest string, directory *pathgraph.CachedPath, ctx *Context) (*pathgraph.CachedPath, error) {
	priorityExts := extensions & dtsPriorityExtensions
	secondaryExts := extensions &^ dtsPriorityExtensions

	if priorityExts != 0 {
		for ancestor := directory; ancestor != nil; ancestor = ancestor.Parent {
			nm := r.cache.Value(pathutil.Join(ancestor.Path, "node_modules"))
			if !r.dtsIsDir(nm) {
				continue
			}

			got, err := r.dtsResolveInNodeModulesDir(priorityExts, spec, nm, ctx)
			if err != nil {
				return nil, err
			}
			if got != nil {
				return got, nil
			}

			if priorityExts.has(dtsDeclaration) {
				mangled := dtsMangleScopedName(packageName)
				atTypesDir := r.cache.Value(pathutil.Join(nm.Path, "@types"))
				if r.dtsIsDir(atTypesDir) {
					atTypesSpecifier := mangled + rest
					got, err := r.dtsResolveInNodeModulesDir(dtsDeclaration, atTypesSpecifier, atTypesDir, ctx)
					if err != nil {
						return nil, err
					}
					if got != nil {
						return got, nil
					}
				}
			}
		}
	}

	if secondaryExts != 0 {
		for ancestor := directory; ancestor != nil; ancestor = ancestor.Parent {
			nm := r.cache.Value(pathutil.Join(ancestor.Path, "node_modules"))
			if !r.dtsIsDir(nm) {
				continue
			}
			got, err := r.dtsResolveInNodeModulesDir(secondaryExts, spec, nm, ctx)
			if err != nil {
				return nil, err
			}
			if got != nil {
				return got, nil
			}
		}
	}

	return nil, nil
}

// dtsResolveInNodeModulesDir resolves spec against one already-located
// node_modules directory. A package's "exports" field, when present, is
// authoritative and blocks every other entry-point field, exactly as it
// does for ordinary (non-declaration) resolution.
func (r *Resolver) dtsResolveInNodeModulesDir(extensions dtsExtensions, spec string, nmDir *pathgraph.CachedPath, ctx *Context) (*pathgraph.CachedPath, error) {
	packageName, rest := parsePackageSpecifier(spec)
	pkgDir := r.cache.Value(pathutil.NormaliseWith(nmDir.Path, packageName))
	if !r.dtsIsDir(pkgDir) {
		return nil, nil
	}

	pkg, _ := pkgDir.PackageJSON(r.fs, r.options.DescriptionFiles)

	if pkg != nil && pkg.Exports != nil {
		subpath := "."
		if rest != "" {
			subpath = "." + rest
		}
		conditions := dtsConditions(r.options.ConditionNames)
		for _, fieldPath := range r.options.ExportsFields {
			entry, ok := exports.ParseField(pkg.RawJSON(), strings.Join(fieldPath, "."))
			if !ok {
				continue
			}
			resolved, err := exports.ResolveExports(pkgDir.Path, entry, subpath, conditions, ctx.query != "" || ctx.fragment != "")
			if err != nil {
				continue
			}
			target := r.cache.Value(resolved)
			if got := r.dtsResolveEsmMatch(target, ctx); got != nil {
				return got, nil
			}
			return target, nil
		}
		return nil, nil
	}

	if rest != "" && pkg != nil {
		if versionPaths := pkg.TypesVersions(); len(versionPaths) > 0 {
			restWithoutSlash := strings.TrimPrefix(rest, "/")
			got, err := r.dtsResolveViaVersionPaths(extensions, restWithoutSlash, pkgDir, versionPaths, ctx)
			if err != nil {
				return nil, err
			}
			if got != nil {
				return got, nil
			}
		}
	}

	if rest != "" {
		candidate := r.cache.Value(pathutil.NormaliseWith(nmDir.Path, spec))
		if got := r.dtsResolveAsFile(extensions, candidate, ctx); got != nil {
			return got, nil
		}
		if r.dtsIsDir(candidate) {
			return r.dtsResolveAsDirectory(extensions, candidate, ctx)
		}
	}

	return r.dtsResolveAsDirectory(extensions, pkgDir, ctx)
}

// dtsResolveEsmMatch tolerates an exports target resolved without its
// declaration extension, the same tolerance resolveEsmMatch gives ordinary
// ESM exports targets.
func (r *Resolver) dtsResolveEsmMatch(node *pathgraph.CachedPath, ctx *Context) *pathgraph.CachedPath {
	if r.dtsIsFile(node) {
		return node
	}
	return r.dtsResolveAsFile(dtsAllExtensions, node, ctx)
}

// dtsConditions always includes "types" in the condition list used to
// resolve a package's "exports" field for declaration-file lookups, ahead
// of the resolver's ordinary condition names.
func dtsConditions(base []string) []string {
	for _, c := range base {
		if c == "types" {
			return base
		}
	}
	out := make([]string, 0, len(base)+1)
	out = append(out, "types")
	out = append(out, base...)
	return out
}

// dtsMangleScopedName turns a scoped package name into the name its
// "@types" counterpart is published under: "@babel/core" -> "babel__core".
func dtsMangleScopedName(name string) string {
	rest, ok := strings.CutPrefix(name, "@")
	if !ok {
		return name
	}
	return strings.Replace(rest, "/", "__", 1)
}

// dtsResolveViaVersionPaths resolves spec against a package's
// "typesVersions" pattern table, trying each target in turn for the first
// pattern that matches.
func (r *Resolver) dtsResolveViaVersionPaths(extensions dtsExtensions, spec string, baseDir *pathgraph.CachedPath, versionPaths []packagejson.TypesVersionsEntry, ctx *Context) (*pathgraph.CachedPath, error) {
	for _, entry := range versionPaths {
		matched, ok := dtsMatchPattern(entry.Pattern, spec)
		if !ok {
			continue
		}
		for _, target := range entry.Targets {
			resolvedTarget := strings.ReplaceAll(target, "*", matched)
			candidate := r.cache.Value(pathutil.NormaliseWith(baseDir.Path, resolvedTarget))
			if got := r.dtsResolveAsFile(extensions, candidate, ctx); got != nil {
				return got, nil
			}
			if r.dtsIsDir(candidate) {
				got, err := r.dtsResolveAsDirectory(extensions, candidate, ctx)
				if err != nil {
					return nil, err
				}
				if got != nil {
					return got, nil
				}
			}
		}
	}
	return nil, nil
}

// dtsMatchPattern matches spec against pattern, which may contain one "*"
// wildcard, returning the captured substring.
func dtsMatchPattern(pattern, spec string) (string, bool) {
	star := strings.IndexByte(pattern, '*')
	if star < 0 {
		if pattern == spec {
			return "", true
		}
		return "", false
	}
	prefix, suffix := pattern[:star], pattern[star+1:]
	if !strings.HasPrefix(spec, prefix) || (suffix != "" && !strings.HasSuffix(spec, suffix)) {
		return "", false
	}
	if len(spec) < len(prefix)+len(suffix) {
		return "", false
	}
	return spec[len(prefix) : len(spec)-len(suffix)], true
}

func (r *Resolver) dtsResolveTsconfigPaths(path string, ctx *Context) (*pathgraph.CachedPath, error) {
	if r.options.Tsconfig.Mode == TsconfigNone {
		return nil, nil
	}
	cfg, err := r.ensureTsconfig()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, nil
	}
	for _, candidate := range cfg.MatchPaths(path) {
		resolvedNode := r.cache.Value(candidate)
		got, err := r.dtsResolveRelative(dtsAllExtensions, resolvedNode, ctx)
		if err != nil {
			return nil, err
		}
		if got != nil {
			return got, nil
		}
	}
	return nil, nil
}
