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
	"os"
	"path/filepath"

	"github.com/modresolve/resolver/alias"
)

// TsconfigMode selects how a Resolver discovers its governing tsconfig.json.
type TsconfigMode int

const (
	// TsconfigNone disables tsconfig paths resolution entirely.
	TsconfigNone TsconfigMode = iota
	// TsconfigAuto walks ancestors from TsconfigOptions.ConfigFile (a
	// directory hint) looking for a tsconfig.json.
	TsconfigAuto
	// TsconfigManual loads exactly TsconfigOptions.ConfigFile, with
	// References overriding the config's own "references" field.
	TsconfigManual
)

// TsconfigOptions configures tsconfig-driven path resolution.
type TsconfigOptions struct {
	Mode       TsconfigMode
	ConfigFile string
	References []string
}

// EnforceExtension controls whether an extensionless request may resolve
// to a file with an extension.
type EnforceExtension int

const (
	// EnforceAuto becomes Enabled iff Options.Extensions contains "".
	EnforceAuto EnforceExtension = iota
	EnforceEnabled
	EnforceDisabled
)

// RestrictionKind discriminates a configured result restriction.
type RestrictionKind int

const (
	RestrictionPath RestrictionKind = iota
	RestrictionRegExp
)

// Restriction constrains which final paths a resolution may return.
// RestrictionRegExp is accepted but rejected at evaluation time: no regex
// engine is wired in, matching the source's own documented Unimplemented
// status for this case (see DESIGN.md).
type Restriction struct {
	Kind    RestrictionKind
	Dir     string // for RestrictionPath
	Pattern string // for RestrictionRegExp
}

// Options is the immutable configuration record driving a Resolver. All
// behavioural knobs live here; CloneWithOptions produces a new Resolver
// sharing the existing cache under a new Options value.
type Options struct {
	Tsconfig         TsconfigOptions
	Alias            []alias.RawEntry
	AliasFields      [][]string
	Fallback         []alias.RawEntry
	ConditionNames   []string
	DescriptionFiles []string
	EnforceExtension EnforceExtension
	ExportsFields    [][]string
	ImportsFields    [][]string
	ExtensionAlias   map[string][]string
	Extensions       []string
	FullySpecified   bool
	MainFields       []string
	MainFiles        []string
	Modules          []string
	ResolveToContext bool
	PreferRelative   bool
	PreferAbsolute   bool
	Restrictions     []Restriction
	Roots            []string
	Symlinks         bool
	BuiltinModules   bool
}

// DefaultOptions returns the same baseline webpack/enhanced-resolve and
// Node ship with: a single node_modules module directory, package.json as
// the sole descriptor file, and symlink-following on.
func DefaultOptions() Options {
	return Options{
		DescriptionFiles: []string{"package.json"},
		EnforceExtension: EnforceAuto,
		ExportsFields:    [][]string{{"exports"}},
		ImportsFields:    [][]string{{"imports"}},
		Extensions:       []string{".js", ".json", ".node"},
		MainFields:       []string{"main"},
		MainFiles:        []string{"index"},
		Modules:          []string{"node_modules"},
		Symlinks:         true,
	}
}

func (o Options) enforceExtensionEnabled() bool {
	switch o.EnforceExtension {
	case EnforceEnabled:
		return true
	case EnforceDisabled:
		return false
	default:
		for _, ext := range o.Extensions {
			if ext == "" {
				return true
			}
		}
		return false
	}
}

// sanitize fills in zero-value defaults the caller left unset and extends
// Modules with NODE_PATH, the only ambient environment input the resolver
// consults (mirroring the source's node_path.rs, which appends
// env::split_paths(NODE_PATH) onto the module roots list at construction).
func sanitize(o Options) Options {
	if len(o.DescriptionFiles) == 0 {
		o.DescriptionFiles = []string{"package.json"}
	}
	if len(o.Extensions) == 0 {
		o.Extensions = []string{".js", ".json", ".node"}
	}
	if len(o.MainFields) == 0 {
		o.MainFields = []string{"main"}
	}
	if len(o.MainFiles) == 0 {
		o.MainFiles = []string{"index"}
	}
	if len(o.Modules) == 0 {
		o.Modules = []string{"node_modules"}
	}
	if nodePath := os.Getenv("NODE_PATH"); nodePath != "" {
		modules := make([]string, len(o.Modules))
		copy(modules, o.Modules)
		o.Modules = append(modules, filepath.SplitList(nodePath)...)
	}
	return o
}
