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

// Package local resolves a traced dependency set against a project's own
// node_modules, producing import map entries that point at local files.
package local

import (
	"maps"
	"path/filepath"
	"strings"
	"sync"

	"github.com/modresolve/resolver/fs"
	"github.com/modresolve/resolver/importmap"
	"github.com/modresolve/resolver/packagejson"
	"github.com/modresolve/resolver/resolve"
	"github.com/modresolve/resolver/resolver"
)

// Resolver generates import maps pointing at local node_modules paths.
type Resolver struct {
	fs                 fs.FileSystem
	logger             resolve.Logger
	pkgCache           packagejson.Cache
	additionalPackages []string
	template           *resolve.Template
	inputMap           *importmap.ImportMap
	conditions         []string
	includeRootExports bool
}

// New creates a Resolver. logger may be nil.
func New(fsys fs.FileSystem, logger resolve.Logger) *Resolver {
	tmpl, _ := resolve.ParseTemplate(resolve.DefaultLocalTemplate)
	return &Resolver{fs: fsys, logger: logger, template: tmpl}
}

func (r *Resolver) clone() *Resolver {
	c := *r
	return &c
}

// WithPackageCache returns a Resolver that reuses parsed package.json
// descriptors across calls instead of reparsing them per package.
func (r *Resolver) WithPackageCache(cache packagejson.Cache) *Resolver {
	c := r.clone()
	c.pkgCache = cache
	return c
}

// WithPackages returns a Resolver that also resolves the given bare
// specifiers, beyond the root package's own dependencies.
func (r *Resolver) WithPackages(packages []string) *Resolver {
	c := r.clone()
	c.additionalPackages = packages
	return c
}

// WithTemplate returns a Resolver using the given URL template.
func (r *Resolver) WithTemplate(pattern string) (*Resolver, error) {
	tmpl, err := resolve.ParseTemplate(pattern)
	if err != nil {
		return nil, err
	}
	c := r.clone()
	c.template = tmpl
	return c, nil
}

// WithInputMap returns a Resolver that merges im into the generated map,
// with im's entries taking precedence over generated ones.
func (r *Resolver) WithInputMap(im *importmap.ImportMap) *Resolver {
	c := r.clone()
	c.inputMap = im
	return c
}

// WithConditions returns a Resolver using the given export condition
// priority in place of packagejson.DefaultConditions.
func (r *Resolver) WithConditions(conditions []string) *Resolver {
	c := r.clone()
	c.conditions = conditions
	return c
}

// WithIncludeRootExports returns a Resolver that also maps the root
// package's own name to its exports, so a project can import itself by
// name during development.
func (r *Resolver) WithIncludeRootExports() *Resolver {
	c := r.clone()
	c.includeRootExports = true
	return c
}

func (r *Resolver) loadPackage(path string) (*packagejson.PackageJSON, error) {
	if r.pkgCache != nil {
		return r.pkgCache.GetOrLoad(path, func() (*packagejson.PackageJSON, error) {
			return packagejson.ParseFile(r.fs, path)
		})
	}
	return packagejson.ParseFile(r.fs, path)
}

func (r *Resolver) resolveOptions() *packagejson.ResolveOptions {
	if len(r.conditions) == 0 {
		return nil
	}
	return &packagejson.ResolveOptions{Conditions: r.conditions}
}

// Resolve generates an ImportMap for a project rooted at rootDir: the root
// package's dependencies (plus any WithPackages additions) mapped through
// the template, with scopes for their own transitive dependencies.
func (r *Resolver) Resolve(rootDir string) (*importmap.ImportMap, error) {
	absRoot, err := filepath.Abs(rootDir)
	if err == nil {
		rootDir = absRoot
	}

	result := &importmap.ImportMap{
		Imports: make(map[string]string),
		Scopes:  make(map[string]map[string]string),
	}

	workspaceRoot := resolve.FindWorkspaceRoot(r.fs, rootDir)

	rootPkg, err := r.loadPackage(filepath.Join(rootDir, "package.json"))
	if err != nil {
		if r.inputMap != nil {
			return result.Merge(r.inputMap), nil
		}
		return result, nil
	}

	if r.includeRootExports && rootPkg.Name != "" {
		r.addRootPackageExports(result, rootPkg, rootDir)
	}

	packagesToProcess := make(map[string]bool)
	for depName := range rootPkg.Dependencies {
		packagesToProcess[depName] = true
	}
	for _, pkg := range r.additionalPackages {
		packagesToProcess[parsePackageName(pkg)] = true
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	sem := make(chan struct{}, 10)

	for depName := range packagesToProcess {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			depPath := filepath.Join(workspaceRoot, "node_modules", name)
			if !r.fs.Exists(depPath) {
				if r.logger != nil {
					r.logger.Warning("dependency %s not found in node_modules", name)
				}
				return
			}
			if err := r.addPackageToImportMapSafe(result, &mu, name, depPath); err != nil && r.logger != nil {
				r.logger.Warning("failed to add package %s: %v", name, err)
			}
		}(depName)
	}
	wg.Wait()

	r.addTransitiveDependencies(result, workspaceRoot, rootPkg)

	if len(result.Scopes) == 0 {
		result.Scopes = nil
	}

	if r.inputMap != nil {
		result = result.Merge(r.inputMap)
	}

	return result, nil
}

// ResolveSpecifiers resolves each traced specifier (a bare package name, or
// a name with a subpath such as "lit/decorators.js") to its exact target
// by running it through the Node-resolution-algorithm engine rooted at the
// package's own directory, so conditional exports, wildcard subpaths, and
// a package's main field are all honoured exactly rather than approximated
// by export-entry enumeration.
func (r *Resolver) ResolveSpecifiers(rootDir string, specs []string) map[string]string {
	result := make(map[string]string)
	nodeModules := filepath.Join(resolve.FindWorkspaceRoot(r.fs, rootDir), "node_modules")

	opts := resolver.DefaultOptions()
	if len(r.conditions) > 0 {
		opts.ConditionNames = r.conditions
	}
	engine := resolver.NewResolver(opts, r.fs)

	for _, spec := range specs {
		name, _ := parsePackageSpec(spec)
		pkgDir := filepath.Join(nodeModules, name)
		if !r.fs.Exists(pkgDir) {
			continue
		}

		res, err := engine.Resolve(pkgDir, spec)
		if err != nil {
			if r.logger != nil {
				r.logger.Warning("failed to resolve %s: %v", spec, err)
			}
			continue
		}

		rel, err := filepath.Rel(pkgDir, res.Path())
		if err != nil {
			continue
		}
		result[spec] = r.template.Expand(name, "", filepath.ToSlash(rel))
	}

	return result
}

func (r *Resolver) addRootPackageExports(im *importmap.ImportMap, pkg *packagejson.PackageJSON, rootDir string) {
	opts := r.resolveOptions()
	entries := pkg.ExportEntries(opts)
	for _, entry := range entries {
		im.Imports[exportImportKey(pkg.Name, entry.Subpath)] = "/" + strings.TrimPrefix(entry.Target, "./")
	}

	wildcards := pkg.WildcardExports(opts)
	for _, w := range wildcards {
		patternPrefix := strings.TrimSuffix(strings.TrimPrefix(w.Pattern, "./"), "*")
		im.Imports[pkg.Name+"/"+patternPrefix] = "/" + strings.TrimSuffix(strings.TrimPrefix(w.Target, "./"), "*")
	}

	if len(entries) == 0 && pkg.Main != "" {
		im.Imports[pkg.Name] = "/" + strings.TrimPrefix(pkg.Main, "./")
	}

	if pkg.HasTrailingSlashExport(opts) && len(wildcards) == 0 {
		im.Imports[pkg.Name+"/"] = "/"
	}
}

func (r *Resolver) addPackageToImportMapSafe(im *importmap.ImportMap, mu *sync.Mutex, pkgName, pkgPath string) error {
	pkg, err := r.loadPackage(filepath.Join(pkgPath, "package.json"))
	if err != nil {
		return err
	}

	opts := r.resolveOptions()
	imports := make(map[string]string)

	entries := pkg.ExportEntries(opts)
	for _, entry := range entries {
		imports[exportImportKey(pkgName, entry.Subpath)] = r.template.Expand(pkgName, "", entry.Target)
	}

	wildcards := pkg.WildcardExports(opts)
	for _, w := range wildcards {
		patternPrefix := strings.TrimSuffix(strings.TrimPrefix(w.Pattern, "./"), "*")
		imports[pkgName+"/"+patternPrefix] = r.template.Expand(pkgName, "", w.Target)
	}

	if len(entries) == 0 && pkg.Main != "" {
		imports[pkgName] = r.template.Expand(pkgName, "", strings.TrimPrefix(pkg.Main, "./"))
	}

	if pkg.HasTrailingSlashExport(opts) && len(wildcards) == 0 {
		imports[pkgName+"/"] = r.template.Expand(pkgName, "", "")
	}

	mu.Lock()
	maps.Copy(im.Imports, imports)
	mu.Unlock()

	return nil
}

// addTransitiveDependencies adds scopes for dependencies of dependencies,
// so a package pinned to a different version than the root's copy still
// resolves to its own node_modules subtree.
func (r *Resolver) addTransitiveDependencies(im *importmap.ImportMap, rootDir string, rootPkg *packagejson.PackageJSON) {
	nodeModulesPath := filepath.Join(rootDir, "node_modules")

	var (
		mu      sync.Mutex
		visited sync.Map
		wg      sync.WaitGroup
		sem     = make(chan struct{}, 10)
	)

	for depName := range rootPkg.Dependencies {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			r.processPackageDependencies(im, &mu, &visited, nodeModulesPath, name)
		}(depName)
	}

	wg.Wait()
}

func (r *Resolver) processPackageDependencies(im *importmap.ImportMap, mu *sync.Mutex, visited *sync.Map, nodeModulesPath, pkgName string) {
	if _, loaded := visited.LoadOrStore(pkgName, true); loaded {
		return
	}

	pkgPath := filepath.Join(nodeModulesPath, pkgName)
	pkg, err := r.loadPackage(filepath.Join(pkgPath, "package.json"))
	if err != nil || len(pkg.Dependencies) == 0 {
		return
	}

	opts := r.resolveOptions()
	scopeKey := r.template.Expand(pkgName, "", "")
	if !strings.HasSuffix(scopeKey, "/") {
		scopeKey += "/"
	}

	scopeEntries := make(map[string]string)

	for depName := range pkg.Dependencies {
		depPath := filepath.Join(nodeModulesPath, depName)
		if !r.fs.Exists(depPath) {
			continue
		}

		depPkg, err := r.loadPackage(filepath.Join(depPath, "package.json"))
		if err != nil {
			continue
		}

		entries := depPkg.ExportEntries(opts)
		for _, entry := range entries {
			scopeEntries[exportImportKey(depName, entry.Subpath)] = r.template.Expand(depName, "", entry.Target)
		}

		wildcards := depPkg.WildcardExports(opts)
		for _, w := range wildcards {
			patternPrefix := strings.TrimSuffix(strings.TrimPrefix(w.Pattern, "./"), "*")
			scopeEntries[depName+"/"+patternPrefix] = r.template.Expand(depName, "", w.Target)
		}

		if len(entries) == 0 && depPkg.Main != "" {
			scopeEntries[depName] = r.template.Expand(depName, "", strings.TrimPrefix(depPkg.Main, "./"))
		}

		r.processPackageDependencies(im, mu, visited, nodeModulesPath, depName)
	}

	if len(scopeEntries) > 0 {
		mu.Lock()
		if im.Scopes[scopeKey] == nil {
			im.Scopes[scopeKey] = make(map[string]string)
		}
		maps.Copy(im.Scopes[scopeKey], scopeEntries)
		mu.Unlock()
	}
}

func exportImportKey(pkgName, subpath string) string {
	if subpath == "." {
		return pkgName
	}
	return pkgName + "/" + strings.TrimPrefix(subpath, "./")
}

// parsePackageName extracts the package name from a specifier that may
// carry a subpath, handling scoped packages (@scope/name).
func parsePackageName(spec string) string {
	name, _ := parsePackageSpec(spec)
	return name
}

// parsePackageSpec splits a bare specifier into its package name and
// subpath (without a leading "./"), handling scoped packages.
func parsePackageSpec(spec string) (name, subpath string) {
	if strings.HasPrefix(spec, "@") {
		parts := strings.SplitN(spec, "/", 3)
		if len(parts) >= 2 {
			name = parts[0] + "/" + parts[1]
			if len(parts) == 3 {
				subpath = parts[2]
			}
			return name, subpath
		}
		return spec, ""
	}
	if idx := strings.Index(spec, "/"); idx > 0 {
		return spec[:idx], spec[idx+1:]
	}
	return spec, ""
}
