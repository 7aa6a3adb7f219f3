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

// Package resolve provides the import-map-generation layer: turning a
// traced set of bare specifiers into concrete URLs, on top of the
// Node-resolution-algorithm engine in the resolver package.
package resolve

import (
	"path/filepath"
	"strings"

	"github.com/modresolve/resolver/fs"
	"github.com/modresolve/resolver/importmap"
	"github.com/modresolve/resolver/packagejson"
)

// Resolver generates import map entries for packages.
type Resolver interface {
	Resolve(rootDir string) (*importmap.ImportMap, error)
}

// Logger reports non-fatal problems encountered while building an import
// map (a missing dependency, an unparsable package.json).
type Logger interface {
	Warning(format string, args ...any)
	Debug(format string, args ...any)
}

// FindWorkspaceRoot walks up from startDir looking for the directory that
// governs node_modules resolution: the nearest ancestor with its own
// node_modules, a package.json declaring workspaces, or a .git directory.
// Falls back to startDir if none is found.
func FindWorkspaceRoot(fsys fs.FileSystem, startDir string) string {
	dir := startDir
	for {
		nodeModulesPath := filepath.Join(dir, "node_modules")
		if stat, err := fsys.Stat(nodeModulesPath); err == nil && stat.IsDir() {
			return dir
		}

		pkgPath := filepath.Join(dir, "package.json")
		if pkg, err := packagejson.ParseFile(fsys, pkgPath); err == nil && pkg.HasWorkspaces() {
			return dir
		}

		gitDir := filepath.Join(dir, ".git")
		if stat, err := fsys.Stat(gitDir); err == nil && stat.IsDir() {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// ToWebPath converts a filesystem path relative to rootDir into a web path,
// e.g. "node_modules/lit" -> "/node_modules/lit". Returns "" if fullPath
// does not sit under rootDir.
func ToWebPath(rootDir, fullPath string) string {
	relPath, err := filepath.Rel(rootDir, fullPath)
	if err != nil || relPath == "." || strings.HasPrefix(relPath, "..") {
		return ""
	}
	return "/" + filepath.ToSlash(relPath)
}
