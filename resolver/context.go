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

import "github.com/modresolve/resolver/packagejson"

// maxDepth bounds recursive re-entry into require through aliases, browser
// field rewrites, and package imports, so a misconfigured cycle surfaces as
// a Recursion error rather than an unbounded call stack.
const maxDepth = 64

// Context accumulates diagnostics across one Resolve call, for callers (a
// bundler's watch mode) that need to know what to invalidate on change:
// FileDependencies holds the resolved file, and MissingDependencies the
// extension-appended candidates that were probed and not found. Descriptor
// files read along the way, and candidates probed by other steps, are not
// recorded.
// The zero value, from NewContext, is ready to use.
type Context struct {
	FileDependencies    []string
	MissingDependencies []string

	fullySpecified bool
	query          string
	fragment       string
	resolvingAlias string
	depth          int
}

// NewContext returns an empty Context for a fresh top-level Resolve call.
func NewContext() *Context {
	return &Context{}
}

func (c *Context) trackFile(path string) {
	c.FileDependencies = append(c.FileDependencies, path)
}

func (c *Context) trackMissing(path string) {
	c.MissingDependencies = append(c.MissingDependencies, path)
}

// ModuleType classifies the resolved file's module system, inferred from
// its extension and, for plain ".js", the governing package's "type" field.
type ModuleType int

const (
	ModuleUnknown ModuleType = iota
	ModuleCommonJS
	ModuleESM
	ModuleJSON
	ModuleWasm
	ModuleAddon
)

// Resolution is the successful result of a Resolve call: the absolute file
// path that would be loaded, any query/fragment carried by the original
// specifier, and the package descriptor (if any) that governs it.
type Resolution struct {
	path       string
	query      string
	fragment   string
	pkg        *packagejson.PackageJSON
	moduleType ModuleType
}

// Path returns the resolved absolute filesystem path, without query or
// fragment.
func (r *Resolution) Path() string { return r.path }

// FullPath returns Path with Query and Fragment appended, the form the
// original specifier's path portion would round-trip to.
func (r *Resolution) FullPath() string { return r.path + r.query + r.fragment }

// Query returns the leading-"?" query string carried by the request, or
// "" if none.
func (r *Resolution) Query() string { return r.query }

// Fragment returns the leading-"#" fragment carried by the request, or ""
// if none.
func (r *Resolution) Fragment() string { return r.fragment }

// PackageJSON returns the nearest governing package descriptor, or nil if
// the resolved path has none (e.g. it sits outside any package).
func (r *Resolution) PackageJSON() *packagejson.PackageJSON { return r.pkg }

// ModuleType returns the resolved file's inferred module system.
func (r *Resolution) ModuleType() ModuleType { return r.moduleType }
