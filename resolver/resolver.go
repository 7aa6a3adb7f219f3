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

// Package resolver implements the Node.js/ESM-compatible module resolution
// algorithm: given a directory and a specifier, it returns the absolute
// path that would be loaded, the query/fragment carried along, and the
// package descriptor governing it. It is the dispatcher that drives every
// other package in this module (specifier parsing, the cached path graph,
// the exports/imports matcher, the alias engine, and tsconfig paths) rather
// than reimplementing any of their algorithms itself.
package resolver

import (
	"strings"
	"sync"

	"github.com/modresolve/resolver/alias"
	"github.com/modresolve/resolver/exports"
	"github.com/modresolve/resolver/fs"
	"github.com/modresolve/resolver/internal/pathutil"
	"github.com/modresolve/resolver/packagejson"
	"github.com/modresolve/resolver/pathgraph"
	"github.com/modresolve/resolver/rerror"
	"github.com/modresolve/resolver/specifier"
	"github.com/modresolve/resolver/tsconfig"
)

// Resolver drives module resolution against one Options configuration and
// one cached path graph. It is safe for concurrent use: the underlying
// Cache interns nodes behind its own lock, and a Resolver holds no other
// mutable state besides the lazily-loaded tsconfig.
type Resolver struct {
	options  Options
	fs       fs.FileSystem
	cache    *pathgraph.Cache
	aliases  []alias.Entry
	fallback []alias.Entry

	tsconfigLoader *tsconfig.Loader
	tsconfigOnce   sync.Once
	tsconfigCfg    *tsconfig.ResolvedConfig
	tsconfigErr    error
}

// NewResolver constructs a Resolver over filesystem, configured by options.
func NewResolver(options Options, filesystem fs.FileSystem) *Resolver {
	options = sanitize(options)
	r := &Resolver{
		options:  options,
		fs:       filesystem,
		cache:    pathgraph.NewCache(filesystem),
		aliases:  alias.Compile(options.Alias),
		fallback: alias.Compile(options.Fallback),
	}
	r.tsconfigLoader = tsconfig.NewLoader(filesystem, r)
	return r
}

// CloneWithOptions returns a new Resolver over the same cached path graph
// (and so the same filesystem) but governed by newOptions, letting a caller
// vary conditions/extensions per call site without re-walking a cold cache.
func (r *Resolver) CloneWithOptions(newOptions Options) *Resolver {
	newOptions = sanitize(newOptions)
	clone := &Resolver{
		options:  newOptions,
		fs:       r.fs,
		cache:    r.cache,
		aliases:  alias.Compile(newOptions.Alias),
		fallback: alias.Compile(newOptions.Fallback),
	}
	clone.tsconfigLoader = tsconfig.NewLoader(r.fs, clone)
	return clone
}

// Options returns the Resolver's governing configuration.
func (r *Resolver) Options() Options { return r.options }

// ClearCache discards every cached filesystem probe and tsconfig, so the
// next Resolve call re-reads directory state from scratch.
func (r *Resolver) ClearCache() {
	r.cache.Clear()
	r.tsconfigOnce = sync.Once{}
	r.tsconfigCfg = nil
	r.tsconfigErr = nil
}

// Resolve resolves specifier from directory fromDir.
func (r *Resolver) Resolve(fromDir, spec string) (*Resolution, error) {
	return r.ResolveWithContext(fromDir, spec, NewContext())
}

// ResolveWithContext resolves specifier from directory fromDir, recording
// the resolved file and the missing extension candidates into ctx (see
// Context for what is not recorded).
func (r *Resolver) ResolveWithContext(fromDir, spec string, ctx *Context) (*Resolution, error) {
	ctx.fullySpecified = r.options.FullySpecified
	node := r.cache.Value(fromDir)

	resolved, err := r.require(node, spec, ctx)
	if err != nil {
		return nil, err
	}

	if r.options.Symlinks {
		canonical, err := resolved.Canonicalise(r.cache, r.fs)
		if err != nil {
			return nil, err
		}
		resolved = canonical
	}

	if err := r.checkRestrictions(resolved.Path); err != nil {
		return nil, err
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
		moduleType: computeModuleType(resolved.Path, pkg),
	}, nil
}

func computeModuleType(path string, pkg *packagejson.PackageJSON) ModuleType {
	ext := extensionOf(path)
	switch ext {
	case ".mjs":
		return ModuleESM
	case ".cjs":
		return ModuleCommonJS
	case ".json":
		return ModuleJSON
	case ".node":
		return ModuleAddon
	case ".wasm":
		return ModuleWasm
	case ".js", "":
		if pkg != nil && pkg.ModuleType() == packagejson.TypeModule {
			return ModuleESM
		}
		return ModuleCommonJS
	default:
		return ModuleUnknown
	}
}

func extensionOf(path string) string {
	base := pathutil.Basename(path)
	if idx := strings.LastIndexByte(base, '.'); idx > 0 {
		return base[idx:]
	}
	return ""
}

func (r *Resolver) checkRestrictions(path string) error {
	for _, re := range r.options.Restrictions {
		switch re.Kind {
		case RestrictionPath:
			if !isWithinDir(path, re.Dir) {
				return rerror.Newf(rerror.Restriction, path, re.Dir)
			}
		case RestrictionRegExp:
			return &rerror.Error{Kind: rerror.Restriction, Path: path, Request: "regexp restrictions are not implemented"}
		}
	}
	return nil
}

func isWithinDir(path, dir string) bool {
	if !strings.HasPrefix(path, dir) {
		return false
	}
	if len(path) == len(dir) {
		return true
	}
	return strings.HasPrefix(path[len(dir):], "/")
}

// require is the specifier-parsing entry point: it bumps and checks the
// recursion depth, parses the raw specifier, handles the "#"-without-"?"
// literal-vs-fragment retry, and delegates to requireWithoutParse.
func (r *Resolver) require(node *pathgraph.CachedPath, raw string, ctx *Context) (*pathgraph.CachedPath, error) {
	ctx.depth++
	if ctx.depth > maxDepth {
		return nil, rerror.New(rerror.Recursion, raw)
	}
	defer func() { ctx.depth-- }()

	parsed, err := specifier.Parse(raw)
	if err != nil {
		return nil, &rerror.Error{Kind: rerror.Specifier, Request: raw}
	}
	if parsed.Query != "" {
		ctx.query = parsed.Query
	}
	if parsed.Fragment != "" {
		ctx.fragment = parsed.Fragment
	}

	if parsed.Fragment != "" && parsed.Query == "" {
		literal := parsed.WithoutFragment()
		if got, err := r.requireWithoutParse(node, literal.Path, literal.Family, ctx); err == nil {
			return got, nil
		}
		ctx.fragment = parsed.Fragment
	}

	return r.requireWithoutParse(node, parsed.Path, parsed.Family, ctx)
}

// requireWithoutParse tries tsconfig paths, then aliases, dispatches by
// family, and finally retries through the fallback alias list on any
// non-Ignored error.
func (r *Resolver) requireWithoutParse(node *pathgraph.CachedPath, path string, family specifier.Family, ctx *Context) (*pathgraph.CachedPath, error) {
	if !node.InsideNodeModules {
		if got, err := r.loadTsconfigPaths(node, path, ctx); err != nil {
			return nil, err
		} else if got != nil {
			return got, nil
		}
	}

	got, err := r.loadAliasList(node, path, r.aliases, ctx)
	if err == nil && got != nil {
		return got, nil
	}
	if err != nil && rerror.IsIgnored(err) {
		return nil, err
	}
	if err == nil {
		got, err = r.dispatchFamily(node, path, family, ctx)
		if err == nil {
			return got, nil
		}
		if rerror.IsIgnored(err) {
			return nil, err
		}
	}

	if fb, fbErr := r.loadAliasList(node, path, r.fallback, ctx); fbErr == nil && fb != nil {
		return fb, nil
	} else if fbErr != nil && !isNotFoundLike(fbErr) {
		return nil, fbErr
	}

	return nil, err
}

func isNotFoundLike(err error) bool {
	var rerr *rerror.Error
	return rerror.As(err, &rerr) && (rerr.Kind == rerror.NotFound || rerr.Kind == rerror.MatchedAliasNotFound)
}

func (r *Resolver) dispatchFamily(node *pathgraph.CachedPath, path string, family specifier.Family, ctx *Context) (*pathgraph.CachedPath, error) {
	switch family {
	case specifier.FamilyAbsolute:
		return r.requireAbsolute(node, path, ctx)
	case specifier.FamilyRelative:
		return r.requireRelative(node, path, ctx)
	case specifier.FamilyHash:
		return r.requireHash(node, path, ctx)
	default:
		return r.requireBare(node, path, ctx)
	}
}

func (r *Resolver) requireAbsolute(node *pathgraph.CachedPath, path string, ctx *Context) (*pathgraph.CachedPath, error) {
	if r.options.PreferAbsolute && !r.options.PreferRelative {
		if got, err := r.loadPackageSelfOrNodeModules(node, path, ctx); err == nil {
			return got, nil
		}
	}
	if got, err := r.loadRoots(node, path, ctx); err != nil {
		return nil, err
	} else if got != nil {
		return got, nil
	}
	target := r.cache.Value(path)
	got, err := r.loadAsFileOrDirectory(target, ctx)
	if err != nil {
		return nil, err
	}
	if got == nil {
		return nil, rerror.New(rerror.NotFound, path)
	}
	return got, nil
}

func (r *Resolver) requireRelative(node *pathgraph.CachedPath, path string, ctx *Context) (*pathgraph.CachedPath, error) {
	target := r.cache.Value(pathutil.NormaliseWith(node.Path, path))
	got, err := r.loadAsFileOrDirectory(target, ctx)
	if err != nil {
		return nil, err
	}
	if got == nil {
		return nil, rerror.New(rerror.NotFound, path)
	}
	return got, nil
}

func (r *Resolver) requireHash(node *pathgraph.CachedPath, path string, ctx *Context) (*pathgraph.CachedPath, error) {
	got, err := r.loadPackageImports(node, path, ctx)
	if err != nil {
		return nil, err
	}
	if got != nil {
		return got, nil
	}
	return r.loadPackageSelfOrNodeModules(node, path, ctx)
}

func (r *Resolver) requireBare(node *pathgraph.CachedPath, path string, ctx *Context) (*pathgraph.CachedPath, error) {
	if r.options.BuiltinModules {
		if err := requireCore(path); err != nil {
			return nil, err
		}
	}
	if r.options.PreferRelative {
		if got, err := r.requireRelative(node, path, ctx); err == nil {
			return got, nil
		}
	}
	return r.loadPackageSelfOrNodeModules(node, path, ctx)
}

func (r *Resolver) loadPackageSelfOrNodeModules(node *pathgraph.CachedPath, path string, ctx *Context) (*pathgraph.CachedPath, error) {
	_, subpath := parsePackageSpecifier(path)
	if subpath == "" {
		ctx.fullySpecified = false
	}

	got, err := r.loadPackageSelf(node, path, ctx)
	if err != nil {
		return nil, err
	}
	if got != nil {
		return got, nil
	}

	got, err = r.loadNodeModules(node, path, ctx)
	if err != nil {
		return nil, err
	}
	if got != nil {
		return got, nil
	}

	return nil, rerror.New(rerror.NotFound, path)
}

// loadAsFileOrDirectory tries path as a file first (unless it ends in "/"),
// then as a directory.
func (r *Resolver) loadAsFileOrDirectory(node *pathgraph.CachedPath, ctx *Context) (*pathgraph.CachedPath, error) {
	if r.options.ResolveToContext {
		meta, err := node.Metadata(r.fs)
		if err == nil && meta.IsDir {
			return node, nil
		}
		return nil, nil
	}

	if !strings.HasSuffix(node.Path, "/") {
		got, err := r.loadAsFile(node, ctx)
		if err != nil {
			return nil, err
		}
		if got != nil {
			return got, nil
		}
	}

	meta, err := node.Metadata(r.fs)
	if err == nil && meta.IsDir {
		got, err := r.loadAsDirectory(node, ctx)
		if err != nil {
			return nil, err
		}
		if got != nil {
			return got, nil
		}
	}

	return nil, nil
}

func (r *Resolver) loadAsFile(node *pathgraph.CachedPath, ctx *Context) (*pathgraph.CachedPath, error) {
	if len(r.options.ExtensionAlias) > 0 {
		ext := extensionOf(node.Path)
		if aliased, ok := r.options.ExtensionAlias[ext]; ok {
			result, err := alias.ResolveExtensionAlias(r.cache, r.fs, node.Path, ext, aliased)
			if err != nil {
				return nil, err
			}
			if result.Matched {
				return r.cache.Value(result.Path), nil
			}
		}
	}

	if !r.options.enforceExtensionEnabled() {
		got, err := r.loadAliasOrFile(node, ctx)
		if err != nil {
			return nil, err
		}
		if got != nil {
			return got, nil
		}
	}

	return r.loadExtensions(node, r.options.Extensions, ctx)
}

func (r *Resolver) loadAsDirectory(node *pathgraph.CachedPath, ctx *Context) (*pathgraph.CachedPath, error) {
	if len(r.options.DescriptionFiles) > 0 {
		pkg, err := node.PackageJSON(r.fs, r.options.DescriptionFiles)
		if err == nil && pkg != nil {
			for _, mainField := range pkg.MainFields(r.options.MainFields) {
				candidate := mainField
				if !strings.HasPrefix(candidate, "./") && !strings.HasPrefix(candidate, "../") && !pathutil.IsRoot(candidate) {
					candidate = "./" + candidate
				}
				target := r.cache.Value(pathutil.NormaliseWith(node.Path, candidate))

				got, err := r.loadAsFile(target, ctx)
				if err != nil {
					return nil, err
				}
				if got != nil {
					return got, nil
				}

				got, err = r.loadIndex(target, ctx)
				if err != nil {
					return nil, err
				}
				if got != nil {
					return got, nil
				}
			}
		}
	}

	return r.loadIndex(node, ctx)
}

func (r *Resolver) loadIndex(node *pathgraph.CachedPath, ctx *Context) (*pathgraph.CachedPath, error) {
	for _, mainFile := range r.options.MainFiles {
		target := r.cache.Value(pathutil.NormaliseWith(node.Path, mainFile))

		if !r.options.enforceExtensionEnabled() {
			got, err := r.loadAliasOrFile(target, ctx)
			if err != nil {
				return nil, err
			}
			if got != nil {
				return got, nil
			}
		}

		got, err := r.loadExtensions(target, r.options.Extensions, ctx)
		if err != nil {
			return nil, err
		}
		if got != nil {
			return got, nil
		}
	}
	return nil, nil
}

func (r *Resolver) loadExtensions(node *pathgraph.CachedPath, extensions []string, ctx *Context) (*pathgraph.CachedPath, error) {
	if ctx.fullySpecified {
		return nil, nil
	}
	for _, ext := range extensions {
		candidate := r.cache.Value(node.Path + ext)
		got, err := r.loadAliasOrFile(candidate, ctx)
		if err != nil {
			return nil, err
		}
		if got != nil {
			return got, nil
		}
		ctx.trackMissing(candidate.Path)
	}
	return nil, nil
}

func (r *Resolver) loadAliasOrFile(node *pathgraph.CachedPath, ctx *Context) (*pathgraph.CachedPath, error) {
	got, err := r.loadBrowserFieldOrAlias(node, "", false, ctx)
	if err != nil {
		return nil, err
	}
	if got != nil {
		return got, nil
	}
	meta, err := node.Metadata(r.fs)
	if err == nil && meta.IsFile {
		return node, nil
	}
	return nil, nil
}

// loadBrowserFieldOrAlias applies the governing package's browser-field
// mapping (keyed by node's path relative to the package, or by
// moduleSpecifier when hasModuleSpecifier), then the configured alias list,
// to node itself (the "this exact file might be remapped" case, as opposed
// to loadAliasList's "this specifier string might be remapped" case).
func (r *Resolver) loadBrowserFieldOrAlias(node *pathgraph.CachedPath, moduleSpecifier string, hasModuleSpecifier bool, ctx *Context) (*pathgraph.CachedPath, error) {
	if len(r.options.AliasFields) > 0 {
		pkgNode, pkg, err := node.FindPackageJSON(r.cache, r.fs, r.options.DescriptionFiles)
		if err != nil {
			return nil, err
		}
		if pkg != nil {
			got, err := r.loadBrowserField(node, moduleSpecifier, hasModuleSpecifier, pkgNode, pkg, ctx)
			if err != nil {
				return nil, err
			}
			if got != nil {
				return got, nil
			}
		}
	}

	if len(r.aliases) > 0 {
		match, err := alias.Resolve(r.aliases, r.cache, r.fs, node.Path)
		if err != nil {
			return nil, err
		}
		if match != nil {
			return r.followAliasMatch(node, match, ctx)
		}
	}

	return nil, nil
}

func (r *Resolver) loadBrowserField(node *pathgraph.CachedPath, moduleSpecifier string, hasModuleSpecifier bool, pkgNode *pathgraph.CachedPath, pkg *packagejson.PackageJSON, ctx *Context) (*pathgraph.CachedPath, error) {
	rel := strings.TrimPrefix(strings.TrimPrefix(node.Path, pkgNode.Path), "/")
	request := ""
	if hasModuleSpecifier {
		request = moduleSpecifier
	}

	mapping, err := pkg.ResolveBrowserField(rel, request, r.options.AliasFields)
	if err != nil {
		return nil, err
	}
	if mapping == nil {
		return nil, nil
	}
	if mapping.Ignored {
		return nil, &rerror.Error{Kind: rerror.Ignored, Path: node.Path}
	}

	newSpec := mapping.Rewrite
	if hasModuleSpecifier && newSpec == moduleSpecifier {
		return nil, nil
	}
	if ctx.resolvingAlias == newSpec {
		if strings.HasPrefix(newSpec, "./") && strings.HasSuffix(node.Path, strings.TrimPrefix(newSpec, "./")) {
			meta, err := node.Metadata(r.fs)
			if err == nil && meta.IsFile {
				return node, nil
			}
			return nil, rerror.New(rerror.NotFound, newSpec)
		}
		return nil, rerror.New(rerror.Recursion, newSpec)
	}

	prevAlias := ctx.resolvingAlias
	ctx.resolvingAlias = newSpec
	ctx.fullySpecified = false
	got, err := r.require(pkgNode, newSpec, ctx)
	ctx.resolvingAlias = prevAlias
	return got, err
}

// loadAliasList resolves specifier against entries (the resolver's
// primary alias or fallback list), recursively re-entering require for
// each candidate in turn and treating a NotFound/MatchedAliasNotFound
// result as "try the next candidate", per the alias plugin's own no-op
// fallthrough semantics.
func (r *Resolver) loadAliasList(node *pathgraph.CachedPath, spec string, entries []alias.Entry, ctx *Context) (*pathgraph.CachedPath, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	match, err := alias.Resolve(entries, r.cache, r.fs, spec)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, nil
	}
	return r.followAliasMatch(node, match, ctx)
}

func (r *Resolver) followAliasMatch(node *pathgraph.CachedPath, match *alias.Match, ctx *Context) (*pathgraph.CachedPath, error) {
	for _, c := range match.Candidates {
		if c.Ignore {
			return nil, &rerror.Error{Kind: rerror.Ignored, Path: pathutil.NormaliseWith(node.Path, match.AliasKey)}
		}
		ctx.fullySpecified = false
		got, err := r.require(node, c.Specifier, ctx)
		if err == nil {
			return got, nil
		}
		if rerror.IsIgnored(err) {
			return nil, err
		}
		if isNotFoundLike(err) {
			continue
		}
		return nil, err
	}
	return nil, &rerror.Error{Kind: rerror.MatchedAliasNotFound, Request: node.Path, Key: match.AliasKey}
}

func (r *Resolver) loadRoots(node *pathgraph.CachedPath, path string, ctx *Context) (*pathgraph.CachedPath, error) {
	if len(r.options.Roots) == 0 || !strings.HasPrefix(path, "/") {
		return nil, nil
	}
	rest := strings.TrimPrefix(path, "/")
	for _, root := range r.options.Roots {
		rootNode := r.cache.Value(root)
		got, err := r.requireRelative(rootNode, "./"+rest, ctx)
		if err == nil {
			return got, nil
		}
	}
	return nil, nil
}

func (r *Resolver) loadTsconfigPaths(node *pathgraph.CachedPath, path string, ctx *Context) (*pathgraph.CachedPath, error) {
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
		target := r.cache.Value(candidate)
		got, err := r.requireRelative(target, ".", ctx)
		if err == nil {
			return got, nil
		}
	}
	return nil, nil
}

func (r *Resolver) ensureTsconfig() (*tsconfig.ResolvedConfig, error) {
	r.tsconfigOnce.Do(func() {
		if r.options.Tsconfig.Mode == TsconfigNone {
			return
		}
		hint := r.options.Tsconfig.ConfigFile
		if hint == "" {
			hint = "."
		}
		cfg, err := r.tsconfigLoader.Load(hint)
		if r.options.Tsconfig.Mode == TsconfigAuto {
			for err != nil && hint != "/" && hint != "." {
				parent := pathutil.Dirname(hint)
				if parent == hint {
					break
				}
				hint = parent
				cfg, err = r.tsconfigLoader.Load(hint)
			}
		}
		if err != nil {
			// No governing tsconfig is not fatal: paths resolution simply
			// contributes no candidates, same as an empty paths map would.
			return
		}
		if len(r.options.Tsconfig.References) > 0 {
			cfg.ConfigureReferences(tsconfig.ReferencesPaths, r.options.Tsconfig.References)
		}
		r.tsconfigCfg = cfg
	})
	return r.tsconfigCfg, r.tsconfigErr
}

// ResolveTsconfig loads and returns the fully merged tsconfig reachable
// from hint, independent of path resolution.
func (r *Resolver) ResolveTsconfig(hint string) (*tsconfig.ResolvedConfig, error) {
	return r.tsconfigLoader.Load(hint)
}

// ResolveTsconfigExtends implements tsconfig's extendResolver contract: it
// resolves a bare `extends` entry (a package name, optionally with a
// subpath) through the configured module directories, the same way a bare
// import specifier resolves, but constrained to a single tsconfig.json (or
// explicit subpath) candidate rather than the full load-as-file-or-directory
// chain.
func (r *Resolver) ResolveTsconfigExtends(fromDir, spec string) (string, error) {
	name, subpath := parsePackageSpecifier(spec)
	node := r.cache.Value(fromDir)

	for _, moduleName := range r.options.Modules {
		if pathutil.IsRoot(moduleName) {
			continue
		}
		for cur := node; cur != nil; cur = cur.Parent {
			modDir := r.getModuleDirectory(cur, moduleName)
			if modDir == nil {
				continue
			}
			pkgDir := r.cache.Value(pathutil.NormaliseWith(modDir.Path, name))
			meta, err := pkgDir.Metadata(r.fs)
			if err != nil || !meta.IsDir {
				continue
			}
			target := subpath
			if target == "" {
				target = "/tsconfig.json"
			} else if !strings.HasSuffix(target, ".json") {
				target += ".json"
			}
			candidate := r.cache.Value(pathutil.NormaliseWith(pkgDir.Path, strings.TrimPrefix(target, "/")))
			if meta, err := candidate.Metadata(r.fs); err == nil && meta.IsFile {
				return candidate.Path, nil
			}
		}
	}

	return "", rerror.New(rerror.NotFound, spec)
}

func (r *Resolver) loadPackageImports(node *pathgraph.CachedPath, spec string, ctx *Context) (*pathgraph.CachedPath, error) {
	pkgNode, pkg, err := node.FindPackageJSON(r.cache, r.fs, r.options.DescriptionFiles)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, nil
	}

	for _, fieldPath := range r.options.ImportsFields {
		entry, ok := exports.ParseField(pkg.RawJSON(), strings.Join(fieldPath, "."))
		if !ok {
			continue
		}

		resolved, bare, err := exports.ResolveImports(pkgNode.Path, entry, spec, r.options.ConditionNames)
		if err != nil {
			return nil, err
		}
		if bare != "" {
			target, err := r.require(pkgNode, bare, ctx)
			if err != nil {
				return nil, err
			}
			return r.resolveEsmMatch(spec, target, ctx)
		}
		return r.resolveEsmMatch(spec, r.cache.Value(resolved), ctx)
	}

	return nil, nil
}

func (r *Resolver) loadPackageSelf(node *pathgraph.CachedPath, spec string, ctx *Context) (*pathgraph.CachedPath, error) {
	pkgNode, pkg, err := node.FindPackageJSON(r.cache, r.fs, r.options.DescriptionFiles)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, nil
	}

	if name, ok := pkg.PackageName(); ok {
		if subpath, ok := stripPackageName(spec, name); ok {
			for _, fieldPath := range r.options.ExportsFields {
				entry, ok := exports.ParseField(pkg.RawJSON(), strings.Join(fieldPath, "."))
				if !ok {
					continue
				}
				resolved, err := exports.ResolveExports(pkgNode.Path, entry, "."+subpath, r.options.ConditionNames, ctx.query != "" || ctx.fragment != "")
				if err != nil {
					return nil, err
				}
				return r.resolveEsmMatch(spec, r.cache.Value(resolved), ctx)
			}
		}
	}

	return r.loadBrowserField(node, spec, true, pkgNode, pkg, ctx)
}

func (r *Resolver) loadNodeModules(node *pathgraph.CachedPath, spec string, ctx *Context) (*pathgraph.CachedPath, error) {
	name, subpath := parsePackageSpecifier(spec)

	for _, moduleName := range r.options.Modules {
		if pathutil.IsRoot(moduleName) {
			got, err := r.tryModuleDir(r.cache.Value(moduleName), name, subpath, spec, ctx)
			if err != nil {
				return nil, err
			}
			if got != nil {
				return got, nil
			}
			continue
		}

		for cur := node; cur != nil; cur = cur.Parent {
			modDir := r.getModuleDirectory(cur, moduleName)
			if modDir == nil {
				continue
			}
			got, err := r.tryModuleDir(modDir, name, subpath, spec, ctx)
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

func (r *Resolver) getModuleDirectory(cur *pathgraph.CachedPath, moduleName string) *pathgraph.CachedPath {
	if moduleName == "node_modules" {
		return cur.CachedNodeModules(r.cache, r.fs)
	}
	if pathutil.Basename(cur.Path) == moduleName {
		return cur
	}
	candidate := r.cache.Value(pathutil.Join(cur.Path, moduleName))
	if meta, err := candidate.Metadata(r.fs); err == nil && meta.IsDir {
		return candidate
	}
	return nil
}

func (r *Resolver) tryModuleDir(modDir *pathgraph.CachedPath, name, subpath, spec string, ctx *Context) (*pathgraph.CachedPath, error) {
	if name != "" {
		pkgDirNode := r.cache.Value(pathutil.NormaliseWith(modDir.Path, name))
		if meta, err := pkgDirNode.Metadata(r.fs); err == nil && meta.IsDir {
			got, err := r.loadPackageExports(spec, subpath, pkgDirNode, ctx)
			if err != nil {
				return nil, err
			}
			if got != nil {
				return got, nil
			}
		}
	}

	target := r.cache.Value(pathutil.NormaliseWith(modDir.Path, spec))

	if r.options.ResolveToContext {
		if meta, err := target.Metadata(r.fs); err == nil && meta.IsDir {
			return target, nil
		}
		return nil, nil
	}

	if meta, err := target.Metadata(r.fs); err == nil && meta.IsDir {
		got, err := r.loadBrowserFieldOrAlias(target, "", false, ctx)
		if err != nil {
			return nil, err
		}
		if got != nil {
			return got, nil
		}
		got, err = r.loadAsDirectory(target, ctx)
		if err != nil {
			return nil, err
		}
		if got != nil {
			return got, nil
		}
	}

	got, err := r.loadAsFile(target, ctx)
	if err != nil {
		return nil, err
	}
	if got != nil {
		return got, nil
	}

	return r.loadAsDirectory(target, ctx)
}

func (r *Resolver) loadPackageExports(spec, subpath string, pkgDirNode *pathgraph.CachedPath, ctx *Context) (*pathgraph.CachedPath, error) {
	pkg, err := pkgDirNode.PackageJSON(r.fs, r.options.DescriptionFiles)
	if err != nil || pkg == nil {
		return nil, nil
	}

	for _, fieldPath := range r.options.ExportsFields {
		entry, ok := exports.ParseField(pkg.RawJSON(), strings.Join(fieldPath, "."))
		if !ok {
			continue
		}
		resolved, err := exports.ResolveExports(pkgDirNode.Path, entry, "."+subpath, r.options.ConditionNames, ctx.query != "" || ctx.fragment != "")
		if err != nil {
			return nil, err
		}
		return r.resolveEsmMatch(spec, r.cache.Value(resolved), ctx)
	}

	return nil, nil
}

// resolveEsmMatch implements the ESM match's tolerance for a query string
// wrongly folded into the file path: it tries node as a file or directory
// outright, then progressively strips trailing "?..."-looking suffixes and
// retries, exactly as oxc-resolver's resolve_esm_match does.
func (r *Resolver) resolveEsmMatch(spec string, node *pathgraph.CachedPath, ctx *Context) (*pathgraph.CachedPath, error) {
	if got, err := r.loadAsFileOrDirectory(node, ctx); err != nil {
		return nil, err
	} else if got != nil {
		return got, nil
	}

	path := node.Path
	for {
		idx := strings.LastIndexByte(path, '?')
		if idx < 0 {
			break
		}
		before := path[:idx]
		candidate := r.cache.Value(before)
		if got, err := r.loadAsFileOrDirectory(candidate, ctx); err == nil && got != nil {
			return node, nil
		}
		path = before
	}

	return nil, rerror.New(rerror.NotFound, spec)
}

// parsePackageSpecifier splits spec into a package name (scoped "@a/b" or
// plain "a") and the remaining subpath (starting with "/", or "" if spec
// names the package itself).
func parsePackageSpecifier(spec string) (name, subpath string) {
	if spec == "" {
		return "", ""
	}
	if spec[0] == '@' {
		firstSlash := strings.IndexByte(spec, '/')
		if firstSlash == -1 {
			return spec, ""
		}
		secondSlash := strings.IndexByte(spec[firstSlash+1:], '/')
		if secondSlash == -1 {
			return spec, ""
		}
		nameEnd := firstSlash + 1 + secondSlash
		return spec[:nameEnd], spec[nameEnd:]
	}
	if idx := strings.IndexByte(spec, '/'); idx != -1 {
		return spec[:idx], spec[idx:]
	}
	return spec, ""
}

// stripPackageName reports whether spec names package name itself (exact
// match, subpath "") or one of its subpaths (spec == name + "/" + rest,
// subpath "/rest").
func stripPackageName(spec, name string) (string, bool) {
	if spec == name {
		return "", true
	}
	rest, ok := strings.CutPrefix(spec, name)
	if !ok || rest == "" || rest[0] != '/' {
		return "", false
	}
	return rest, true
}

// requireCore reports a Builtin error when spec names a Node.js core
// module, with or without its "node:" protocol prefix.
func requireCore(spec string) error {
	name, isProtocol := strings.CutPrefix(spec, "node:")
	if isProtocol {
		return &rerror.Error{Kind: rerror.Builtin, Request: spec}
	}
	if nodeBuiltinModules[name] {
		return &rerror.Error{Kind: rerror.Builtin, Request: "node:" + name}
	}
	return nil
}

var nodeBuiltinModules = map[string]bool{
	"assert": true, "assert/strict": true, "async_hooks": true, "buffer": true,
	"child_process": true, "cluster": true, "console": true, "constants": true,
	"crypto": true, "dgram": true, "diagnostics_channel": true, "dns": true,
	"dns/promises": true, "domain": true, "events": true, "fs": true,
	"fs/promises": true, "http": true, "http2": true, "https": true,
	"inspector": true, "inspector/promises": true, "module": true, "net": true,
	"os": true, "path": true, "path/posix": true, "path/win32": true,
	"perf_hooks": true, "process": true, "punycode": true, "querystring": true,
	"readline": true, "readline/promises": true, "repl": true, "stream": true,
	"stream/consumers": true, "stream/promises": true, "stream/web": true,
	"string_decoder": true, "sys": true, "timers": true, "timers/promises": true,
	"tls": true, "trace_events": true, "tty": true, "url": true, "util": true,
	"util/types": true, "v8": true, "vm": true, "wasi": true,
	"worker_threads": true, "zlib": true,
}
