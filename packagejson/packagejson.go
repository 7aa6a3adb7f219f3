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

// Package packagejson parses package.json once into a cached JSON value and
// exposes the accessors the resolution dispatcher and the exports/imports
// matcher need, without itself implementing conditional-exports matching
// (that lives in the exports package, driven off the raw entries returned
// here).
package packagejson

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/modresolve/resolver/fs"
	"github.com/modresolve/resolver/rerror"
)

// workspacesObjectFormat represents the object format for the workspaces
// field, used by yarn classic with nohoist: {"packages": [...], "nohoist": [...]}.
type workspacesObjectFormat struct {
	Packages []string `json:"packages"`
}

// ErrNotExported is returned when a subpath is not exported by package.json.
var ErrNotExported = errors.New("not exported by package.json")

// DefaultConditions is the default export condition priority for browser environments.
var DefaultConditions = []string{"browser", "import", "default"}

// PackageType is the package's module system, from its "type" field.
type PackageType int

const (
	// TypeUnspecified means no "type" field was present; the governing
	// module system is inferred from the file extension by the caller.
	TypeUnspecified PackageType = iota
	TypeCommonJS
	TypeModule
)

// ResolveOptions configures how conditional exports are resolved.
type ResolveOptions struct {
	// Conditions is the ordered list of conditions to try when resolving exports.
	// If nil, defaults to DefaultConditions.
	Conditions []string
}

// PackageJSON represents a parsed package.json, caching both its well-known
// fields and a generic decode for arbitrary nested-path lookups.
type PackageJSON struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Main            string            `json:"main,omitempty"`
	Module          string            `json:"module,omitempty"`
	Type            string            `json:"type,omitempty"`
	Exports         any               `json:"exports,omitempty"`
	Imports         any               `json:"imports,omitempty"`
	Dependencies    map[string]string `json:"dependencies,omitempty"`
	DevDependencies map[string]string `json:"devDependencies,omitempty"`
	RawWorkspaces   json.RawMessage   `json:"workspaces,omitempty"`

	// Path is the absolute filesystem path this descriptor was parsed from,
	// used to report JSONError locations and as the directory for resolving
	// a governing package's relative exports targets.
	Path string `json:"-"`

	// raw is the generic decode of the whole document, used for nested
	// paths like ["publishConfig","exports"] that the typed fields above
	// don't cover.
	raw map[string]any

	// data holds the original document bytes, so the exports/imports
	// matcher can re-read "exports"/"imports" preserving object key order,
	// which a map[string]any decode loses.
	data []byte
}

// ExportEntry represents a single export from a package.
type ExportEntry struct {
	Subpath string // The export subpath (e.g., ".", "./button")
	Target  string // The resolved target path (e.g., "index.js")
}

// WildcardExport represents a wildcard export pattern.
type WildcardExport struct {
	Pattern string // The pattern (e.g., "./*")
	Target  string // The target prefix (e.g., "dist/")
}

// BrowserMapping is the result of resolving a request or path against a
// package's "browser" field.
type BrowserMapping struct {
	// Rewrite is the replacement string, when the mapped value was a string.
	Rewrite string
	// Ignored is true when the mapped value was boolean false: the module
	// should be treated as an empty shim.
	Ignored bool
}

// Parse parses package.json data, surfacing malformed JSON as a
// *rerror.Error of Kind JSON.
func Parse(data []byte) (*PackageJSON, error) {
	var pkg PackageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, &rerror.Error{Kind: rerror.JSON, Wrapped: err}
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &rerror.Error{Kind: rerror.JSON, Wrapped: err}
	}
	pkg.raw = raw
	pkg.data = data
	return &pkg, nil
}

// RawJSON returns the original package.json bytes this descriptor was
// parsed from, for callers (the exports matcher) that need to re-read a
// field with its object key order intact.
func (pkg *PackageJSON) RawJSON() []byte {
	return pkg.data
}

// ParseFile parses a package.json file, tagging any JSON error with its
// source path.
func ParseFile(filesystem fs.FileSystem, path string) (*PackageJSON, error) {
	data, err := filesystem.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pkg, err := Parse(data)
	if err != nil {
		var rerr *rerror.Error
		if rerror.As(err, &rerr) {
			rerr.Path = path
		}
		return nil, err
	}
	pkg.Path = path
	return pkg, nil
}

// PackageName returns the "name" field, or false if absent.
func (pkg *PackageJSON) PackageName() (string, bool) {
	return pkg.Name, pkg.Name != ""
}

// ModuleType returns the package's declared module type from its "type"
// field.
func (pkg *PackageJSON) ModuleType() PackageType {
	switch pkg.Type {
	case "module":
		return TypeModule
	case "commonjs":
		return TypeCommonJS
	default:
		return TypeUnspecified
	}
}

// MainFields walks names in order and returns the string value of each
// field present, skipping fields that are absent or not strings.
func (pkg *PackageJSON) MainFields(names []string) []string {
	var out []string
	for _, name := range names {
		if v, ok := pkg.raw[name]; ok {
			if s, ok := v.(string); ok && s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// Types returns the "types" field, naming the package's entry point
// declaration file, or "" if absent.
func (pkg *PackageJSON) Types() string {
	return pkg.stringField("types")
}

// Typings returns the "typings" field, the legacy name for Types that some
// packages still publish instead of (or alongside) it, or "" if absent.
func (pkg *PackageJSON) Typings() string {
	return pkg.stringField("typings")
}

func (pkg *PackageJSON) stringField(name string) string {
	if v, ok := pkg.raw[name]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// TypesVersionsEntry is one pattern-to-targets mapping nested under a
// matched TypeScript version range in the "typesVersions" field.
type TypesVersionsEntry struct {
	// Pattern is the raw key, e.g. "*" or "lib/*".
	Pattern string
	// Targets are the declaration-file candidates the pattern maps to.
	Targets []string
}

// TypesVersions reads the "typesVersions" field and returns the pattern
// mapping for the "*" version range when present, and otherwise for the
// lexicographically first range key. Ranges are not compared against a
// TypeScript version, which this resolver does not track.
func (pkg *PackageJSON) TypesVersions() []TypesVersionsEntry {
	v, ok := pkg.raw["typesVersions"]
	if !ok {
		return nil
	}
	versions, ok := v.(map[string]any)
	if !ok {
		return nil
	}

	var ranges []string
	for r := range versions {
		ranges = append(ranges, r)
	}
	sort.Strings(ranges)

	var chosen map[string]any
	for _, r := range ranges {
		if r == "*" {
			chosen, _ = versions[r].(map[string]any)
			break
		}
	}
	if chosen == nil && len(ranges) > 0 {
		chosen, _ = versions[ranges[0]].(map[string]any)
	}
	if chosen == nil {
		return nil
	}

	var patterns []string
	for p := range chosen {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)

	var entries []TypesVersionsEntry
	for _, pattern := range patterns {
		targetsRaw, ok := chosen[pattern].([]any)
		if !ok {
			continue
		}
		var targets []string
		for _, t := range targetsRaw {
			if s, ok := t.(string); ok {
				targets = append(targets, s)
			}
		}
		if len(targets) > 0 {
			entries = append(entries, TypesVersionsEntry{Pattern: pattern, Targets: targets})
		}
	}
	return entries
}

// ExportsFields reads each nested JSON path in turn (e.g. ["exports"],
// ["publishConfig","exports"]) and returns every entry found, in the order
// of paths, each usable directly by the exports matcher. A path may address a string, object, or
// array export value.
func (pkg *PackageJSON) ExportsFields(paths [][]string) []any {
	var out []any
	for _, path := range paths {
		if v, ok := getNestedPath(pkg.raw, path); ok {
			out = append(out, v)
		}
	}
	return out
}

// ImportsFields reads each nested JSON path and returns the ones that
// decode as an object map, since the imports field is always a map keyed
// by "#"-prefixed import specifiers.
func (pkg *PackageJSON) ImportsFields(paths [][]string) []map[string]any {
	var out []map[string]any
	for _, path := range paths {
		if v, ok := getNestedPath(pkg.raw, path); ok {
			if m, ok := v.(map[string]any); ok {
				out = append(out, m)
			}
		}
	}
	return out
}

// ResolveBrowserField resolves the browser-field mapping for either a bare
// request (a package name) or an already-resolved relative path, trying
// each candidate key (the raw request, then with/without a leading "./")
// against each field path in turn. Returns (nil, nil) when nothing maps.
func (pkg *PackageJSON) ResolveBrowserField(resolvedPath, request string, fieldPaths [][]string) (*BrowserMapping, error) {
	candidates := browserFieldCandidates(resolvedPath, request)

	for _, path := range fieldPaths {
		v, ok := getNestedPath(pkg.raw, path)
		if !ok {
			continue
		}
		browserMap, ok := v.(map[string]any)
		if !ok {
			continue
		}
		for _, key := range candidates {
			mapped, ok := browserMap[key]
			if !ok {
				continue
			}
			switch m := mapped.(type) {
			case bool:
				if !m {
					return &BrowserMapping{Ignored: true}, nil
				}
			case string:
				return &BrowserMapping{Rewrite: m}, nil
			}
		}
	}
	return nil, nil
}

func browserFieldCandidates(resolvedPath, request string) []string {
	var candidates []string
	if request != "" {
		candidates = append(candidates, request)
	}
	if resolvedPath != "" {
		candidates = append(candidates, resolvedPath)
		if !strings.HasPrefix(resolvedPath, "./") && !strings.HasPrefix(resolvedPath, "/") {
			candidates = append(candidates, "./"+resolvedPath)
		}
		candidates = append(candidates, strings.TrimPrefix(resolvedPath, "./"))
	}
	return candidates
}

// getNestedPath walks path through nested map[string]any values rooted at m.
func getNestedPath(m map[string]any, path []string) (any, bool) {
	var cur any = m
	for _, key := range path {
		asMap, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = asMap[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// WorkspacePatterns returns the workspace glob patterns from the workspaces field.
// Handles both array format ["packages/*"] and object format {"packages": ["libs/*"]}.
func (pkg *PackageJSON) WorkspacePatterns() []string {
	if len(pkg.RawWorkspaces) == 0 {
		return nil
	}

	var patterns []string
	if err := json.Unmarshal(pkg.RawWorkspaces, &patterns); err == nil {
		return patterns
	}

	var obj workspacesObjectFormat
	if err := json.Unmarshal(pkg.RawWorkspaces, &obj); err == nil {
		return obj.Packages
	}

	return nil
}

// HasWorkspaces returns true if the package has workspace patterns defined.
func (pkg *PackageJSON) HasWorkspaces() bool {
	return len(pkg.WorkspacePatterns()) > 0
}

// ResolveExport resolves a subpath export to its target file path.
// The subpath should be "." for the main export or "./subpath" for subpath exports.
// Returns the resolved path without leading "./".
// Pass nil for opts to use DefaultConditions.
func (pkg *PackageJSON) ResolveExport(subpath string, opts *ResolveOptions) (string, error) {
	if pkg.Exports == nil {
		if pkg.Main != "" {
			if subpath == "." {
				return trimDotSlash(pkg.Main), nil
			}
			return "", ErrNotExported
		}
		return "", ErrNotExported
	}

	if exportStr, ok := pkg.Exports.(string); ok {
		if subpath == "." {
			return trimDotSlash(exportStr), nil
		}
		return "", ErrNotExported
	}

	exportsMap, ok := pkg.Exports.(map[string]any)
	if !ok {
		return "", ErrNotExported
	}

	hasSubpaths := false
	for key := range exportsMap {
		if strings.HasPrefix(key, ".") {
			hasSubpaths = true
			break
		}
	}

	if !hasSubpaths {
		if subpath == "." {
			return resolveConditionsWithOpts(exportsMap, opts)
		}
		return "", ErrNotExported
	}

	exportValue, ok := exportsMap[subpath]
	if !ok {
		return "", ErrNotExported
	}

	return resolveExportValueWithOpts(exportValue, opts)
}

// ExportEntries returns all non-wildcard export entries from the package.
// Pass nil for opts to use DefaultConditions.
func (pkg *PackageJSON) ExportEntries(opts *ResolveOptions) []ExportEntry {
	var entries []ExportEntry

	if pkg.Exports == nil {
		if pkg.Main != "" {
			entries = append(entries, ExportEntry{
				Subpath: ".",
				Target:  trimDotSlash(pkg.Main),
			})
		}
		return entries
	}

	if exportStr, ok := pkg.Exports.(string); ok {
		entries = append(entries, ExportEntry{
			Subpath: ".",
			Target:  trimDotSlash(exportStr),
		})
		return entries
	}

	exportsMap, ok := pkg.Exports.(map[string]any)
	if !ok {
		return entries
	}

	hasSubpaths := false
	for key := range exportsMap {
		if strings.HasPrefix(key, ".") {
			hasSubpaths = true
			break
		}
	}

	if !hasSubpaths {
		if resolved, err := resolveConditionsWithOpts(exportsMap, opts); err == nil {
			entries = append(entries, ExportEntry{
				Subpath: ".",
				Target:  resolved,
			})
		}
		return entries
	}

	for subpath, exportValue := range exportsMap {
		if strings.Contains(subpath, "*") {
			continue
		}

		resolved, err := resolveExportValueWithOpts(exportValue, opts)
		if err != nil {
			continue
		}

		entries = append(entries, ExportEntry{
			Subpath: subpath,
			Target:  resolved,
		})
	}

	return entries
}

// WildcardExports returns all wildcard export patterns from the package.
// Pass nil for opts to use DefaultConditions.
func (pkg *PackageJSON) WildcardExports(opts *ResolveOptions) []WildcardExport {
	var wildcards []WildcardExport

	exportsMap, ok := pkg.Exports.(map[string]any)
	if !ok {
		return wildcards
	}

	for pattern, targetValue := range exportsMap {
		if !strings.Contains(pattern, "*") {
			continue
		}

		targetStr := resolveWildcardTargetWithOpts(targetValue, opts)
		if targetStr == "" || !strings.Contains(targetStr, "*") {
			continue
		}

		target := trimDotSlash(targetStr)
		wildcardIdx := strings.Index(target, "*")
		targetPrefix := target[:wildcardIdx]

		wildcards = append(wildcards, WildcardExport{
			Pattern: pattern,
			Target:  targetPrefix,
		})
	}

	return wildcards
}

func resolveWildcardTargetWithOpts(value any, opts *ResolveOptions) string {
	switch v := value.(type) {
	case string:
		return v
	case map[string]any:
		if result, err := resolveConditionsWithOpts(v, opts); err == nil {
			return result
		}
	case []any:
		for _, item := range v {
			if result := resolveWildcardTargetWithOpts(item, opts); result != "" {
				return result
			}
		}
	}
	return ""
}

// HasTrailingSlashExport returns true if the package should have a trailing slash import.
// Pass nil for opts to use DefaultConditions.
func (pkg *PackageJSON) HasTrailingSlashExport(opts *ResolveOptions) bool {
	if len(pkg.WildcardExports(opts)) > 0 {
		return true
	}
	if pkg.Exports == nil {
		return true
	}
	return false
}

func resolveExportValueWithOpts(value any, opts *ResolveOptions) (string, error) {
	switch v := value.(type) {
	case string:
		return trimDotSlash(v), nil
	case map[string]any:
		return resolveConditionsWithOpts(v, opts)
	}
	return "", ErrNotExported
}

func resolveConditionsWithOpts(conditions map[string]any, opts *ResolveOptions) (string, error) {
	conditionList := DefaultConditions
	if opts != nil && len(opts.Conditions) > 0 {
		conditionList = opts.Conditions
	}

	for _, cond := range conditionList {
		if value, ok := conditions[cond]; ok {
			if valueMap, ok := value.(map[string]any); ok {
				if result, err := resolveConditionsWithOpts(valueMap, opts); err == nil {
					return result, nil
				}
			} else if valueStr, ok := value.(string); ok {
				return trimDotSlash(valueStr), nil
			}
		}
	}

	return "", ErrNotExported
}

// trimDotSlash removes a leading "./" from a path.
func trimDotSlash(path string) string {
	return strings.TrimPrefix(path, "./")
}
